package booking_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/cinema-booking/internal/booking"
	"github.com/iliyamo/cinema-booking/internal/model"
	"github.com/iliyamo/cinema-booking/internal/repository"
)

// fakeClock is an adjustable time source handed to the service so tests
// can cross hold deadlines without sleeping.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// memStore is an in-memory booking.Store that mirrors the SQL store's
// semantics, including the filtered uniqueness constraint: an insert
// conflicts when any other RESERVED reservation holds one of the same
// seats for the showing. A single mutex plays the role of the
// database's atomic constrained insert.
type memStore struct {
	mu     sync.Mutex
	nextID uint64
	res    map[uint64]*model.Reservation
}

func newMemStore() *memStore {
	return &memStore{res: make(map[uint64]*model.Reservation)}
}

func copyRes(r *model.Reservation) *model.Reservation {
	cp := *r
	cp.Seats = append([]model.ReservationSeat(nil), r.Seats...)
	if r.ExpiresAt != nil {
		t := *r.ExpiresAt
		cp.ExpiresAt = &t
	}
	if r.SettledAt != nil {
		t := *r.SettledAt
		cp.SettledAt = &t
	}
	return &cp
}

func (s *memStore) live(r *model.Reservation, now time.Time) bool {
	return r.Status == model.StatusReserved && r.ExpiresAt != nil && r.ExpiresAt.After(now)
}

func (s *memStore) Create(ctx context.Context, res *model.Reservation, capacity uint32, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Opportunistic expiry of stale holds for the showing, as the SQL
	// store does inside the create transaction.
	for _, r := range s.res {
		if r.ShowingID == res.ShowingID && r.Status == model.StatusReserved &&
			r.ExpiresAt != nil && !r.ExpiresAt.After(now) {
			r.Status = model.StatusExpired
			r.ExpiresAt = nil
			t := now
			r.SettledAt = &t
		}
	}
	if res.Kind == model.KindGeneralAdmission {
		var sold uint32
		for _, r := range s.res {
			if r.ShowingID == res.ShowingID && (r.Status == model.StatusPaid || s.live(r, now)) {
				sold += r.TicketCount
			}
		}
		if uint64(sold)+uint64(res.TicketCount) > uint64(capacity) {
			return repository.ErrCapacityExceeded
		}
	}
	for _, seat := range res.Seats {
		for _, r := range s.res {
			if r.ShowingID != res.ShowingID || r.Status != model.StatusReserved {
				continue
			}
			for _, held := range r.Seats {
				if held.SeatID == seat.SeatID {
					return repository.ErrSeatLockConflict
				}
			}
		}
	}
	s.nextID++
	res.ID = s.nextID
	res.CreatedAt = now
	res.UpdatedAt = now
	for i := range res.Seats {
		res.Seats[i].ReservationID = res.ID
	}
	s.res[res.ID] = copyRes(res)
	return nil
}

func (s *memStore) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.res[id]
	if !ok {
		return nil, repository.ErrReservationNotFound
	}
	return copyRes(r), nil
}

func (s *memStore) TakenSeats(ctx context.Context, showingID uint64, seatIDs []uint64, now time.Time) ([]uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[uint64]struct{}, len(seatIDs))
	for _, id := range seatIDs {
		want[id] = struct{}{}
	}
	seen := make(map[uint64]struct{})
	var taken []uint64
	for _, r := range s.res {
		if r.ShowingID != showingID {
			continue
		}
		if r.Status != model.StatusPaid && !s.live(r, now) {
			continue
		}
		for _, seat := range r.Seats {
			if _, ok := want[seat.SeatID]; !ok {
				continue
			}
			if _, dup := seen[seat.SeatID]; dup {
				continue
			}
			seen[seat.SeatID] = struct{}{}
			taken = append(taken, seat.SeatID)
		}
	}
	sort.Slice(taken, func(i, j int) bool { return taken[i] < taken[j] })
	return taken, nil
}

func (s *memStore) AdmissionCount(ctx context.Context, showingID uint64, now time.Time) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sold uint32
	for _, r := range s.res {
		if r.ShowingID == showingID && (r.Status == model.StatusPaid || s.live(r, now)) {
			sold += r.TicketCount
		}
	}
	return sold, nil
}

func (s *memStore) transition(id uint64, from, to string, now time.Time, pred func(*model.Reservation) bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.res[id]
	if !ok || r.Status != from {
		return false, nil
	}
	if pred != nil && !pred(r) {
		return false, nil
	}
	r.Status = to
	r.ExpiresAt = nil
	t := now
	r.SettledAt = &t
	r.UpdatedAt = now
	return true, nil
}

func (s *memStore) MarkPaid(ctx context.Context, id uint64, now time.Time) (bool, error) {
	return s.transition(id, model.StatusReserved, model.StatusPaid, now, func(r *model.Reservation) bool {
		return r.ExpiresAt != nil && r.ExpiresAt.After(now)
	})
}

func (s *memStore) Cancel(ctx context.Context, id uint64, now time.Time) (bool, error) {
	return s.transition(id, model.StatusReserved, model.StatusCancelled, now, nil)
}

func (s *memStore) Refund(ctx context.Context, id uint64, now time.Time) (bool, error) {
	return s.transition(id, model.StatusPaid, model.StatusRefunded, now, nil)
}

func (s *memStore) Expire(ctx context.Context, id uint64, now time.Time) (bool, error) {
	return s.transition(id, model.StatusReserved, model.StatusExpired, now, func(r *model.Reservation) bool {
		return r.ExpiresAt != nil && !r.ExpiresAt.After(now)
	})
}

func (s *memStore) DueForExpiry(ctx context.Context, now time.Time, limit int) ([]uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uint64
	for id, r := range s.res {
		if r.Status == model.StatusReserved && r.ExpiresAt != nil && !r.ExpiresAt.After(now) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (s *memStore) ListByUser(ctx context.Context, userID uint64) ([]model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Reservation
	for _, r := range s.res {
		if r.UserID == userID {
			out = append(out, *copyRes(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// memCatalog serves showings from a map, returning copies the way a
// repository query would.
type memCatalog struct {
	mu       sync.Mutex
	showings map[uint64]*model.Showing
}

func newMemCatalog(shs ...*model.Showing) *memCatalog {
	c := &memCatalog{showings: make(map[uint64]*model.Showing)}
	for _, sh := range shs {
		c.showings[sh.ID] = sh
	}
	return c
}

func (c *memCatalog) ShowingByID(ctx context.Context, id uint64) (*model.Showing, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sh, ok := c.showings[id]
	if !ok {
		return nil, repository.ErrShowingNotFound
	}
	cp := *sh
	cp.Seats = append([]model.ShowingSeat(nil), sh.Seats...)
	return &cp, nil
}

// seatedShowing builds a reserved-seating showing with five standard
// seats A1..A5 (seat IDs 1..5) at 1500 cents base price. Seat 5 is
// PREMIUM with a 1.5x multiplier.
func seatedShowing(id uint64) *model.Showing {
	sh := &model.Showing{
		ID:              id,
		ScreenID:        1,
		MovieID:         1,
		StartsAt:        time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC),
		EndsAt:          time.Date(2026, 3, 1, 22, 0, 0, 0, time.UTC),
		BasePriceCents:  1500,
		CanReserveSeats: true,
		Capacity:        5,
		Movie:           model.Movie{ID: 1, Title: "Stalker", Rating: "PG"},
		Theatre:         model.Theatre{ID: 1, Name: "Grand Central", City: "Amsterdam"},
		Screen:          model.Screen{ID: 1, TheatreID: 1, Name: "Screen 1", Capacity: 5},
	}
	for i := uint64(1); i <= 5; i++ {
		seat := model.ShowingSeat{
			ID:              i,
			ShowingID:       id,
			RowLabel:        "A",
			SeatNumber:      uint32(i),
			SeatType:        "STANDARD",
			PriceMultiplier: 1.0,
		}
		if i == 5 {
			seat.SeatType = "PREMIUM"
			seat.PriceMultiplier = 1.5
		}
		sh.Seats = append(sh.Seats, seat)
	}
	return sh
}

// admissionShowing builds a general-admission showing with the given capacity.
func admissionShowing(id uint64, capacity uint32) *model.Showing {
	return &model.Showing{
		ID:              id,
		ScreenID:        2,
		MovieID:         2,
		StartsAt:        time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC),
		EndsAt:          time.Date(2026, 3, 2, 20, 0, 0, 0, time.UTC),
		BasePriceCents:  1200,
		CanReserveSeats: false,
		Capacity:        capacity,
		Movie:           model.Movie{ID: 2, Title: "Playtime", Rating: "G"},
		Theatre:         model.Theatre{ID: 1, Name: "Grand Central", City: "Amsterdam"},
		Screen:          model.Screen{ID: 2, TheatreID: 1, Name: "Screen 2", Capacity: capacity},
	}
}

// fixture bundles a service wired to in-memory collaborators.
type fixture struct {
	clock   *fakeClock
	store   *memStore
	catalog *memCatalog
	svc     *booking.Service
}

func newFixture(holdWindow time.Duration, shs ...*model.Showing) *fixture {
	clock := newFakeClock(time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC))
	store := newMemStore()
	catalog := newMemCatalog(shs...)
	return &fixture{
		clock:   clock,
		store:   store,
		catalog: catalog,
		svc:     booking.NewService(store, catalog, holdWindow, clock.Now),
	}
}
