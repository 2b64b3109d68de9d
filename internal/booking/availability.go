package booking

import (
	"context"
	"time"

	"github.com/iliyamo/cinema-booking/internal/model"
	"github.com/iliyamo/cinema-booking/internal/repository"
)

// Availability is the result of a successful availability check.  For
// reserved-seating showings Seats carries the per-seat view; for
// general-admission showings Remaining is the ticket margin left.
type Availability struct {
	ShowingID       uint64       `json:"showing_id"`
	CanReserveSeats bool         `json:"can_reserve_seats"`
	Capacity        uint32       `json:"capacity"`
	Remaining       uint32       `json:"remaining"`
	Seats           []SeatStatus `json:"seats,omitempty"`
}

// SeatStatus describes one seat of a reserved-seating showing as seen
// by a customer picking seats.
type SeatStatus struct {
	SeatID     uint64 `json:"seat_id"`
	RowLabel   string `json:"row_label"`
	SeatNumber uint32 `json:"seat_number"`
	SeatType   string `json:"seat_type"`
	PriceCents uint32 `json:"price_cents"`
	Available  bool   `json:"available"`
}

// checkSeats verifies that every requested seat is currently free.  A
// seat counts as occupied when a PAID reservation references it or a
// RESERVED reservation holds it with an unexpired deadline; the store
// re-validates expires_at against now itself, so a stale hold the
// sweeper has not reached yet never blocks a seat.  Read-only.
func (s *Service) checkSeats(ctx context.Context, sh *model.Showing, seatIDs []uint64, now time.Time) error {
	taken, err := s.store.TakenSeats(ctx, sh.ID, seatIDs, now)
	if err != nil {
		return err
	}
	if len(taken) > 0 {
		return repository.ErrSeatUnavailable
	}
	return nil
}

// checkCapacity verifies that a general-admission request fits in the
// showing's remaining margin.  Live unexpired holds reserve capacity
// alongside paid tickets to prevent oversell.  The sum is compared in
// 64 bits: tickets is client-controlled and a value near MaxUint32
// must not wrap the addition back under the cap.  Read-only; the store
// repeats this check under a row lock at write time.
func (s *Service) checkCapacity(ctx context.Context, sh *model.Showing, tickets uint32, now time.Time) error {
	sold, err := s.store.AdmissionCount(ctx, sh.ID, now)
	if err != nil {
		return err
	}
	if uint64(sold)+uint64(tickets) > uint64(sh.Capacity) {
		return repository.ErrCapacityExceeded
	}
	return nil
}

// ResolveAvailability reports whether the request can be satisfied
// right now without creating anything.  It returns
// repository.ErrSeatUnavailable or repository.ErrCapacityExceeded when
// it cannot; because the check takes no lock, a concurrent request may
// still win the subsequent create, which then fails with
// repository.ErrSeatLockConflict.
func (s *Service) ResolveAvailability(ctx context.Context, showingID uint64, req Request) (*Availability, error) {
	now := s.now().UTC()
	sh, err := s.catalog.ShowingByID(ctx, showingID)
	if err != nil {
		return nil, err
	}
	if sh.CanReserveSeats {
		seatIDs := dedupe(req.SeatIDs)
		if len(seatIDs) == 0 {
			return nil, ErrInvalidRequest
		}
		if err := s.checkSeats(ctx, sh, seatIDs, now); err != nil {
			return nil, err
		}
	} else {
		if req.TicketCount == 0 {
			return nil, ErrInvalidRequest
		}
		if err := s.checkCapacity(ctx, sh, req.TicketCount, now); err != nil {
			return nil, err
		}
	}
	return s.availabilityOf(ctx, sh, now)
}

// ShowingAvailability returns the full availability view of a showing:
// every seat with its live status for reserved seating, or the
// remaining ticket margin for general admission.  Used by the public
// seat-map endpoint.
func (s *Service) ShowingAvailability(ctx context.Context, showingID uint64) (*Availability, error) {
	sh, err := s.catalog.ShowingByID(ctx, showingID)
	if err != nil {
		return nil, err
	}
	return s.availabilityOf(ctx, sh, s.now().UTC())
}

func (s *Service) availabilityOf(ctx context.Context, sh *model.Showing, now time.Time) (*Availability, error) {
	av := &Availability{
		ShowingID:       sh.ID,
		CanReserveSeats: sh.CanReserveSeats,
		Capacity:        sh.Capacity,
	}
	if !sh.CanReserveSeats {
		sold, err := s.store.AdmissionCount(ctx, sh.ID, now)
		if err != nil {
			return nil, err
		}
		if sold < sh.Capacity {
			av.Remaining = sh.Capacity - sold
		}
		return av, nil
	}
	allIDs := make([]uint64, 0, len(sh.Seats))
	for _, seat := range sh.Seats {
		allIDs = append(allIDs, seat.ID)
	}
	taken, err := s.store.TakenSeats(ctx, sh.ID, allIDs, now)
	if err != nil {
		return nil, err
	}
	occupied := make(map[uint64]struct{}, len(taken))
	for _, id := range taken {
		occupied[id] = struct{}{}
	}
	av.Seats = make([]SeatStatus, 0, len(sh.Seats))
	var free uint32
	for _, seat := range sh.Seats {
		_, isTaken := occupied[seat.ID]
		if !isTaken {
			free++
		}
		av.Seats = append(av.Seats, SeatStatus{
			SeatID:     seat.ID,
			RowLabel:   seat.RowLabel,
			SeatNumber: seat.SeatNumber,
			SeatType:   seat.SeatType,
			PriceCents: uint32(roundedSeatPrice(sh.BasePriceCents, seat)),
			Available:  !isTaken,
		})
	}
	av.Remaining = free
	return av, nil
}
