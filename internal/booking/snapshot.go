package booking

import (
	"errors"
	"math"

	"github.com/iliyamo/cinema-booking/internal/model"
)

// ErrIncompleteCatalog is returned when a showing is missing the
// display data a snapshot needs.  Snapshot failures are fatal to
// reservation creation; a reservation must never be persisted with a
// partial snapshot.
var ErrIncompleteCatalog = errors.New("showing is missing catalog data for snapshot")

// BuildSnapshot freezes the showing's catalog display data into an
// immutable snapshot.  Pure function: it only reads the populated
// showing passed in and never re-reads live data, so the result
// reflects the catalog exactly as it was at the moment of booking.
func BuildSnapshot(sh *model.Showing) (model.Snapshot, error) {
	if sh.Movie.Title == "" || sh.Theatre.Name == "" || sh.Screen.Name == "" {
		return model.Snapshot{}, ErrIncompleteCatalog
	}
	return model.Snapshot{
		MovieTitle:  sh.Movie.Title,
		MovieRating: sh.Movie.Rating,
		TheatreName: sh.Theatre.Name,
		ScreenName:  sh.Screen.Name,
	}, nil
}

// SeatPrice resolves the price of one seat in cents, unrounded: the
// explicit override when present, otherwise the showing's base price
// times the seat's multiplier.  Currency rounding is the caller's
// responsibility.
func SeatPrice(basePriceCents uint32, seat model.ShowingSeat) float64 {
	if seat.OverridePriceCents != nil {
		return float64(*seat.OverridePriceCents)
	}
	return float64(basePriceCents) * seat.PriceMultiplier
}

// roundedSeatPrice is SeatPrice rounded to whole cents.
func roundedSeatPrice(basePriceCents uint32, seat model.ShowingSeat) float64 {
	return math.Round(SeatPrice(basePriceCents, seat))
}
