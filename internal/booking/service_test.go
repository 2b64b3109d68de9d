package booking_test

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-booking/internal/booking"
	"github.com/iliyamo/cinema-booking/internal/model"
	"github.com/iliyamo/cinema-booking/internal/repository"
)

func TestCreateReservation_SeatedSuccess(t *testing.T) {
	f := newFixture(10*time.Minute, seatedShowing(1))
	ctx := context.Background()

	res, err := f.svc.CreateReservation(ctx, 7, 1, booking.Request{SeatIDs: []uint64{1, 5}})
	require.NoError(t, err)

	assert.Equal(t, model.StatusReserved, res.Status)
	assert.Equal(t, model.KindReservedSeats, res.Kind)
	assert.Equal(t, uint32(2), res.TicketCount)
	assert.NotEmpty(t, res.Reference)
	require.NotNil(t, res.ExpiresAt)
	assert.Equal(t, f.clock.Now().Add(10*time.Minute), *res.ExpiresAt)

	// 1500 for A1 plus 1500*1.5 for the premium A5.
	assert.Equal(t, uint32(1500+2250), res.TotalAmountCents)
	require.Len(t, res.Seats, 2)
	assert.Equal(t, "Stalker", res.MovieTitle)
	assert.Equal(t, "Grand Central", res.TheatreName)
	assert.Equal(t, "Screen 1", res.ScreenName)
}

func TestCreateReservation_SeatAlreadyHeld(t *testing.T) {
	f := newFixture(10*time.Minute, seatedShowing(1))
	ctx := context.Background()

	_, err := f.svc.CreateReservation(ctx, 7, 1, booking.Request{SeatIDs: []uint64{2}})
	require.NoError(t, err)

	_, err = f.svc.CreateReservation(ctx, 8, 1, booking.Request{SeatIDs: []uint64{2, 3}})
	assert.ErrorIs(t, err, repository.ErrSeatUnavailable)
}

func TestCreateReservation_UnknownSeat(t *testing.T) {
	f := newFixture(10*time.Minute, seatedShowing(1))

	_, err := f.svc.CreateReservation(context.Background(), 7, 1, booking.Request{SeatIDs: []uint64{99}})
	assert.ErrorIs(t, err, repository.ErrSeatUnavailable)
}

func TestCreateReservation_RequestModeMismatch(t *testing.T) {
	f := newFixture(10*time.Minute, seatedShowing(1), admissionShowing(2, 50))
	ctx := context.Background()

	_, err := f.svc.CreateReservation(ctx, 7, 1, booking.Request{TicketCount: 2})
	assert.ErrorIs(t, err, booking.ErrInvalidRequest)

	_, err = f.svc.CreateReservation(ctx, 7, 2, booking.Request{SeatIDs: []uint64{1}})
	assert.ErrorIs(t, err, booking.ErrInvalidRequest)
}

func TestCreateReservation_ShowingMissing(t *testing.T) {
	f := newFixture(10 * time.Minute)

	_, err := f.svc.CreateReservation(context.Background(), 7, 42, booking.Request{TicketCount: 1})
	assert.ErrorIs(t, err, repository.ErrShowingNotFound)
}

// Two concurrent requests race for the same seat: exactly one must win
// and the loser must see the deterministic lock-conflict error.
func TestCreateReservation_ConcurrentSeatRace(t *testing.T) {
	f := newFixture(10*time.Minute, seatedShowing(1))
	ctx := context.Background()

	const racers = 8
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.CreateReservation(ctx, uint64(100+i), 1, booking.Request{SeatIDs: []uint64{4}})
		}(i)
	}
	wg.Wait()

	wins, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case err == repository.ErrSeatLockConflict || err == repository.ErrSeatUnavailable:
			// Losers that raced the insert see the lock conflict; losers
			// that arrived after the winner committed fail availability.
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, racers-1, conflicts)
}

func TestCreateReservation_GeneralAdmissionCapacity(t *testing.T) {
	f := newFixture(10*time.Minute, admissionShowing(2, 50))
	ctx := context.Background()

	// Fill 48 of 50 tickets with paid reservations.
	res, err := f.svc.CreateReservation(ctx, 1, 2, booking.Request{TicketCount: 48})
	require.NoError(t, err)
	_, err = f.svc.MarkPaid(ctx, 1, res.ID)
	require.NoError(t, err)

	_, err = f.svc.CreateReservation(ctx, 2, 2, booking.Request{TicketCount: 3})
	assert.ErrorIs(t, err, repository.ErrCapacityExceeded)

	got, err := f.svc.CreateReservation(ctx, 2, 2, booking.Request{TicketCount: 2})
	require.NoError(t, err)
	assert.Equal(t, uint32(2), got.TicketCount)
	assert.Equal(t, uint32(2*1200), got.TotalAmountCents)
}

// Ticket counts chosen to wrap 32-bit addition past the cap must still
// be rejected; the capacity comparison is done in 64 bits.
func TestCreateReservation_HostileTicketCount(t *testing.T) {
	f := newFixture(10*time.Minute, admissionShowing(2, 50))
	ctx := context.Background()

	res, err := f.svc.CreateReservation(ctx, 1, 2, booking.Request{TicketCount: 48})
	require.NoError(t, err)
	_, err = f.svc.MarkPaid(ctx, 1, res.ID)
	require.NoError(t, err)

	// 48 + (MaxUint32-40) wraps to 7 in uint32 arithmetic.
	_, err = f.svc.CreateReservation(ctx, 2, 2, booking.Request{TicketCount: math.MaxUint32 - 40})
	assert.ErrorIs(t, err, repository.ErrCapacityExceeded)

	_, err = f.svc.CreateReservation(ctx, 2, 2, booking.Request{TicketCount: math.MaxUint32})
	assert.ErrorIs(t, err, repository.ErrCapacityExceeded)

	// The showing is left untouched for honest requests.
	got, err := f.svc.CreateReservation(ctx, 2, 2, booking.Request{TicketCount: 2})
	require.NoError(t, err)
	assert.Equal(t, uint32(2), got.TicketCount)
}

// A live unexpired hold reserves general-admission capacity alongside
// paid tickets, preventing oversell.
func TestCreateReservation_HoldsReserveCapacity(t *testing.T) {
	f := newFixture(10*time.Minute, admissionShowing(2, 10))
	ctx := context.Background()

	_, err := f.svc.CreateReservation(ctx, 1, 2, booking.Request{TicketCount: 9})
	require.NoError(t, err)

	_, err = f.svc.CreateReservation(ctx, 2, 2, booking.Request{TicketCount: 2})
	assert.ErrorIs(t, err, repository.ErrCapacityExceeded)

	// Once the hold lapses its capacity is released.
	f.clock.Advance(11 * time.Minute)
	_, err = f.svc.CreateReservation(ctx, 2, 2, booking.Request{TicketCount: 2})
	assert.NoError(t, err)
}

func TestMarkPaid_OwnerOnly(t *testing.T) {
	f := newFixture(10*time.Minute, seatedShowing(1))
	ctx := context.Background()

	res, err := f.svc.CreateReservation(ctx, 7, 1, booking.Request{SeatIDs: []uint64{1}})
	require.NoError(t, err)

	_, err = f.svc.MarkPaid(ctx, 8, res.ID)
	assert.ErrorIs(t, err, repository.ErrOwnershipMismatch)

	paid, err := f.svc.MarkPaid(ctx, 7, res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaid, paid.Status)
	assert.Nil(t, paid.ExpiresAt)
	require.NotNil(t, paid.SettledAt)
}

func TestMarkPaid_AfterDeadlineFails(t *testing.T) {
	f := newFixture(10*time.Minute, seatedShowing(1))
	ctx := context.Background()

	res, err := f.svc.CreateReservation(ctx, 7, 1, booking.Request{SeatIDs: []uint64{1}})
	require.NoError(t, err)

	f.clock.Advance(11 * time.Minute)
	_, err = f.svc.MarkPaid(ctx, 7, res.ID)
	assert.ErrorIs(t, err, repository.ErrInvalidStateTransition)
}

func TestCancel_OwnershipAndState(t *testing.T) {
	f := newFixture(10*time.Minute, seatedShowing(1))
	ctx := context.Background()

	res, err := f.svc.CreateReservation(ctx, 7, 1, booking.Request{SeatIDs: []uint64{1}})
	require.NoError(t, err)

	// A stranger cannot cancel and the status must not move.
	_, err = f.svc.Cancel(ctx, 8, res.ID)
	assert.ErrorIs(t, err, repository.ErrOwnershipMismatch)
	cur, err := f.svc.GetReservation(ctx, 7, res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusReserved, cur.Status)

	cancelled, err := f.svc.Cancel(ctx, 7, res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)
	assert.Nil(t, cancelled.ExpiresAt)

	// Cancelling twice is an invalid transition.
	_, err = f.svc.Cancel(ctx, 7, res.ID)
	assert.ErrorIs(t, err, repository.ErrInvalidStateTransition)

	// The cancelled reservation's seat is free again.
	_, err = f.svc.CreateReservation(ctx, 9, 1, booking.Request{SeatIDs: []uint64{1}})
	assert.NoError(t, err)
}

func TestRefund_Transitions(t *testing.T) {
	f := newFixture(10*time.Minute, seatedShowing(1))
	ctx := context.Background()

	res, err := f.svc.CreateReservation(ctx, 7, 1, booking.Request{SeatIDs: []uint64{1}})
	require.NoError(t, err)

	// RESERVED -> REFUNDED is not a legal transition.
	_, err = f.svc.Refund(ctx, 7, false, res.ID)
	assert.ErrorIs(t, err, repository.ErrInvalidStateTransition)

	_, err = f.svc.MarkPaid(ctx, 7, res.ID)
	require.NoError(t, err)

	// A stranger without the admin role cannot refund.
	_, err = f.svc.Refund(ctx, 8, false, res.ID)
	assert.ErrorIs(t, err, repository.ErrOwnershipMismatch)

	// An admin can refund on the owner's behalf.
	refunded, err := f.svc.Refund(ctx, 8, true, res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRefunded, refunded.Status)
}

// expiresAt must be present exactly while the reservation is RESERVED.
func TestExpiresAtTracksReservedStatus(t *testing.T) {
	f := newFixture(10*time.Minute, seatedShowing(1))
	ctx := context.Background()

	res, err := f.svc.CreateReservation(ctx, 7, 1, booking.Request{SeatIDs: []uint64{3}})
	require.NoError(t, err)
	assert.NotNil(t, res.ExpiresAt)

	paid, err := f.svc.MarkPaid(ctx, 7, res.ID)
	require.NoError(t, err)
	assert.Nil(t, paid.ExpiresAt)
}

// Snapshots must stay byte-identical to the catalog values at creation
// time even after the catalog record changes.
func TestSnapshotSurvivesCatalogMutation(t *testing.T) {
	sh := seatedShowing(1)
	f := newFixture(10*time.Minute, sh)
	ctx := context.Background()

	res, err := f.svc.CreateReservation(ctx, 7, 1, booking.Request{SeatIDs: []uint64{1}})
	require.NoError(t, err)
	_, err = f.svc.MarkPaid(ctx, 7, res.ID)
	require.NoError(t, err)

	// Rename everything in the live catalog and reprice the showing.
	sh.Movie.Title = "Renamed"
	sh.Theatre.Name = "Torn Down"
	sh.Screen.Name = "Screen 9"
	sh.BasePriceCents = 9999

	got, err := f.svc.GetReservation(ctx, 7, res.ID)
	require.NoError(t, err)
	assert.Equal(t, "Stalker", got.MovieTitle)
	assert.Equal(t, "Grand Central", got.TheatreName)
	assert.Equal(t, "Screen 1", got.ScreenName)
	assert.Equal(t, uint32(1500), got.Seats[0].PriceCents)
}

func TestListReservations(t *testing.T) {
	f := newFixture(10*time.Minute, seatedShowing(1), admissionShowing(2, 50))
	ctx := context.Background()

	_, err := f.svc.CreateReservation(ctx, 7, 1, booking.Request{SeatIDs: []uint64{1}})
	require.NoError(t, err)
	_, err = f.svc.CreateReservation(ctx, 7, 2, booking.Request{TicketCount: 3})
	require.NoError(t, err)
	_, err = f.svc.CreateReservation(ctx, 8, 1, booking.Request{SeatIDs: []uint64{2}})
	require.NoError(t, err)

	mine, err := f.svc.ListReservations(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, mine, 2)
	for _, r := range mine {
		assert.Equal(t, uint64(7), r.UserID)
	}
}
