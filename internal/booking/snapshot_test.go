package booking_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-booking/internal/booking"
	"github.com/iliyamo/cinema-booking/internal/model"
)

func TestSeatPrice(t *testing.T) {
	base := uint32(1500)

	standard := model.ShowingSeat{SeatType: "STANDARD", PriceMultiplier: 1.0}
	assert.Equal(t, 1500.0, booking.SeatPrice(base, standard))

	premium := model.ShowingSeat{SeatType: "PREMIUM", PriceMultiplier: 1.5}
	assert.Equal(t, 2250.0, booking.SeatPrice(base, premium))

	// The multiplier result is handed back unrounded.
	odd := model.ShowingSeat{SeatType: "STANDARD", PriceMultiplier: 1.333}
	assert.InDelta(t, 1999.5, booking.SeatPrice(base, odd), 1e-9)

	// An explicit override wins over the multiplier.
	override := uint32(999)
	fixed := model.ShowingSeat{SeatType: "PREMIUM", PriceMultiplier: 2.0, OverridePriceCents: &override}
	assert.Equal(t, 999.0, booking.SeatPrice(base, fixed))
}

func TestBuildSnapshot(t *testing.T) {
	sh := seatedShowing(1)

	snap, err := booking.BuildSnapshot(sh)
	require.NoError(t, err)
	assert.Equal(t, "Stalker", snap.MovieTitle)
	assert.Equal(t, "PG", snap.MovieRating)
	assert.Equal(t, "Grand Central", snap.TheatreName)
	assert.Equal(t, "Screen 1", snap.ScreenName)
}

func TestBuildSnapshot_IncompleteCatalog(t *testing.T) {
	for _, tc := range []struct {
		name   string
		mangle func(*model.Showing)
	}{
		{"missing movie title", func(sh *model.Showing) { sh.Movie.Title = "" }},
		{"missing theatre name", func(sh *model.Showing) { sh.Theatre.Name = "" }},
		{"missing screen name", func(sh *model.Showing) { sh.Screen.Name = "" }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			sh := seatedShowing(1)
			tc.mangle(sh)
			_, err := booking.BuildSnapshot(sh)
			assert.ErrorIs(t, err, booking.ErrIncompleteCatalog)
		})
	}
}
