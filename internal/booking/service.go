// Package booking implements the reservation lifecycle engine: it turns
// a seat selection or ticket count into a RESERVED reservation, drives
// reservations through their state machine (pay, cancel, refund,
// expire), and freezes catalog snapshots at creation time.  The engine
// is the sole write path for reservations; it holds no in-process locks
// and relies entirely on the store's constrained insert for the
// seat-lock invariant, so any number of service instances may run
// concurrently.
package booking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/cinema-booking/internal/model"
	"github.com/iliyamo/cinema-booking/internal/repository"
)

// ErrInvalidRequest is returned when a booking request does not match
// the showing's seating mode, e.g. seat IDs for a general-admission
// showing or a missing ticket count.
var ErrInvalidRequest = errors.New("invalid booking request")

// Store is the persistence surface the engine writes reservations
// through.  *repository.ReservationRepo satisfies it; tests substitute
// an in-memory implementation that simulates the unique-index conflict.
type Store interface {
	Create(ctx context.Context, res *model.Reservation, capacity uint32, now time.Time) error
	GetByID(ctx context.Context, id uint64) (*model.Reservation, error)
	TakenSeats(ctx context.Context, showingID uint64, seatIDs []uint64, now time.Time) ([]uint64, error)
	AdmissionCount(ctx context.Context, showingID uint64, now time.Time) (uint32, error)
	MarkPaid(ctx context.Context, id uint64, now time.Time) (bool, error)
	Cancel(ctx context.Context, id uint64, now time.Time) (bool, error)
	Refund(ctx context.Context, id uint64, now time.Time) (bool, error)
	DueForExpiry(ctx context.Context, now time.Time, limit int) ([]uint64, error)
	Expire(ctx context.Context, id uint64, now time.Time) (bool, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.Reservation, error)
}

// Catalog is the read-only showing lookup the engine depends on.
// *repository.ShowingRepo satisfies it.
type Catalog interface {
	ShowingByID(ctx context.Context, id uint64) (*model.Showing, error)
}

// Service orchestrates the reservation lifecycle.  All status changes
// go through its methods; nothing else writes reservation rows.
type Service struct {
	store      Store
	catalog    Catalog
	holdWindow time.Duration
	now        func() time.Time
}

// NewService constructs the lifecycle service.  holdWindow is how long
// a RESERVED reservation keeps its seats before expiring.  now is the
// time source; pass nil to use time.Now.
func NewService(store Store, catalog Catalog, holdWindow time.Duration, now func() time.Time) *Service {
	if store == nil || catalog == nil {
		panic("nil dependency passed to booking.NewService")
	}
	if holdWindow <= 0 {
		holdWindow = 10 * time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, catalog: catalog, holdWindow: holdWindow, now: now}
}

// Request describes what the caller wants to book: specific seats for
// reserved-seating showings, or a plain ticket count for
// general-admission showings.  Exactly one of the two must be set.
type Request struct {
	SeatIDs     []uint64 `json:"seat_ids,omitempty"`
	TicketCount uint32   `json:"ticket_count,omitempty"`
}

// dedupe drops zero and repeated seat IDs while preserving order.
func dedupe(ids []uint64) []uint64 {
	out := make([]uint64, 0, len(ids))
	seen := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// CreateReservation books seats or tickets for the user on the given
// showing.  It resolves availability, freezes the catalog snapshot,
// and persists the reservation under the seat-lock constraint.  On a
// lost race it returns repository.ErrSeatLockConflict; the caller is
// expected to re-resolve availability and retry with different seats,
// not to retry the identical request.
func (s *Service) CreateReservation(ctx context.Context, userID, showingID uint64, req Request) (*model.Reservation, error) {
	now := s.now().UTC()
	sh, err := s.catalog.ShowingByID(ctx, showingID)
	if err != nil {
		return nil, err
	}

	var seats []model.ReservationSeat
	var ticketCount uint32
	var total uint32
	kind := model.KindGeneralAdmission

	if sh.CanReserveSeats {
		kind = model.KindReservedSeats
		seatIDs := dedupe(req.SeatIDs)
		if len(seatIDs) == 0 || req.TicketCount != 0 {
			return nil, ErrInvalidRequest
		}
		if err := s.checkSeats(ctx, sh, seatIDs, now); err != nil {
			return nil, err
		}
		seats, total, err = buildSeatSnapshots(sh, seatIDs)
		if err != nil {
			return nil, err
		}
		ticketCount = uint32(len(seats))
	} else {
		if req.TicketCount == 0 || len(req.SeatIDs) != 0 {
			return nil, ErrInvalidRequest
		}
		if err := s.checkCapacity(ctx, sh, req.TicketCount, now); err != nil {
			return nil, err
		}
		ticketCount = req.TicketCount
		total64 := uint64(ticketCount) * uint64(sh.BasePriceCents)
		if total64 > math.MaxUint32 {
			return nil, ErrInvalidRequest
		}
		total = uint32(total64)
	}

	snap, err := BuildSnapshot(sh)
	if err != nil {
		return nil, fmt.Errorf("build snapshot: %w", err)
	}

	expiresAt := now.Add(s.holdWindow)
	res := &model.Reservation{
		Reference:        uuid.NewString(),
		UserID:           userID,
		ShowingID:        sh.ID,
		Kind:             kind,
		Status:           model.StatusReserved,
		TicketCount:      ticketCount,
		TotalAmountCents: total,
		Snapshot:         snap,
		Seats:            seats,
		ExpiresAt:        &expiresAt,
	}
	if err := s.store.Create(ctx, res, sh.Capacity, now); err != nil {
		return nil, err
	}
	return res, nil
}

// getOwned fetches a reservation and verifies the acting user owns it.
func (s *Service) getOwned(ctx context.Context, userID, reservationID uint64) (*model.Reservation, error) {
	res, err := s.store.GetByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if res.UserID != userID {
		return nil, repository.ErrOwnershipMismatch
	}
	return res, nil
}

// MarkPaid records a successful payment, transitioning the caller's
// reservation from RESERVED to PAID.  A reservation past its hold
// deadline cannot be paid even if the sweeper has not expired it yet.
func (s *Service) MarkPaid(ctx context.Context, userID, reservationID uint64) (*model.Reservation, error) {
	if _, err := s.getOwned(ctx, userID, reservationID); err != nil {
		return nil, err
	}
	ok, err := s.store.MarkPaid(ctx, reservationID, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, repository.ErrInvalidStateTransition
	}
	return s.store.GetByID(ctx, reservationID)
}

// Cancel transitions the caller's RESERVED reservation to CANCELLED,
// releasing its seats immediately.
func (s *Service) Cancel(ctx context.Context, userID, reservationID uint64) (*model.Reservation, error) {
	if _, err := s.getOwned(ctx, userID, reservationID); err != nil {
		return nil, err
	}
	ok, err := s.store.Cancel(ctx, reservationID, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, repository.ErrInvalidStateTransition
	}
	return s.store.GetByID(ctx, reservationID)
}

// Refund transitions a PAID reservation to REFUNDED.  The acting user
// must own the reservation unless admin is true.
func (s *Service) Refund(ctx context.Context, actingUserID uint64, admin bool, reservationID uint64) (*model.Reservation, error) {
	res, err := s.store.GetByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if !admin && res.UserID != actingUserID {
		return nil, repository.ErrOwnershipMismatch
	}
	ok, err := s.store.Refund(ctx, reservationID, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, repository.ErrInvalidStateTransition
	}
	return s.store.GetByID(ctx, reservationID)
}

// GetReservation returns the caller's reservation by ID, enforcing ownership.
func (s *Service) GetReservation(ctx context.Context, userID, reservationID uint64) (*model.Reservation, error) {
	return s.getOwned(ctx, userID, reservationID)
}

// ListReservations returns all reservations owned by the user, newest first.
func (s *Service) ListReservations(ctx context.Context, userID uint64) ([]model.Reservation, error) {
	return s.store.ListByUser(ctx, userID)
}

// buildSeatSnapshots resolves each requested seat against the showing's
// seat map and freezes its display data and final price.  The unrounded
// price from the snapshot builder is rounded to whole cents here; the
// returned total is the sum of the rounded per-seat prices.
func buildSeatSnapshots(sh *model.Showing, seatIDs []uint64) ([]model.ReservationSeat, uint32, error) {
	byID := make(map[uint64]*model.ShowingSeat, len(sh.Seats))
	for i := range sh.Seats {
		byID[sh.Seats[i].ID] = &sh.Seats[i]
	}
	seats := make([]model.ReservationSeat, 0, len(seatIDs))
	var total uint32
	for _, id := range seatIDs {
		seat, ok := byID[id]
		if !ok {
			return nil, 0, repository.ErrSeatUnavailable
		}
		cents := uint32(math.Round(SeatPrice(sh.BasePriceCents, *seat)))
		total += cents
		seats = append(seats, model.ReservationSeat{
			ShowingID:  sh.ID,
			SeatID:     seat.ID,
			RowLabel:   seat.RowLabel,
			SeatNumber: seat.SeatNumber,
			SeatType:   seat.SeatType,
			PriceCents: cents,
		})
	}
	return seats, total, nil
}
