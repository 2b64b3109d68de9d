// Package repository contains data access logic for the booking engine.
// This file provides read-only access to showings. The catalog service
// owns showings, screens, theatres and movies; the engine only needs to
// look a showing up with its references populated so that availability
// can be resolved and snapshots built.
package repository

import (
	"context"      // context for controlling query lifetime
	"database/sql" // sql provides DB abstraction
	"errors"       // errors for sentinel comparisons

	"github.com/iliyamo/cinema-booking/internal/model"
)

// ShowingRepo provides lookups over showings and their seat maps.
// All timestamp fields are stored in UTC.
type ShowingRepo struct {
	db *sql.DB
}

// NewShowingRepo constructs a ShowingRepo with the given DB handle.
func NewShowingRepo(db *sql.DB) *ShowingRepo {
	return &ShowingRepo{db: db}
}

// DB exposes the underlying sql.DB.  It allows callers to begin
// transactions spanning multiple repositories.
func (r *ShowingRepo) DB() *sql.DB {
	return r.db
}

// ShowingByID retrieves a showing with its movie, theatre and screen
// references populated, plus the full seat map for reserved-seating
// showings. It returns ErrShowingNotFound when no row matches.
func (r *ShowingRepo) ShowingByID(ctx context.Context, id uint64) (*model.Showing, error) {
	const q = `SELECT sh.id, sh.screen_id, sh.movie_id, sh.starts_at, sh.ends_at,
	                  sh.base_price_cents, sh.can_reserve_seats, sh.capacity,
	                  sh.created_at, sh.updated_at,
	                  m.id, m.title, m.rating,
	                  sc.id, sc.theatre_id, sc.name, sc.capacity,
	                  t.id, t.name, t.city
	           FROM showings sh
	           JOIN movies m ON m.id = sh.movie_id
	           JOIN screens sc ON sc.id = sh.screen_id
	           JOIN theatres t ON t.id = sc.theatre_id
	           WHERE sh.id = ?`
	var sh model.Showing
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&sh.ID, &sh.ScreenID, &sh.MovieID, &sh.StartsAt, &sh.EndsAt,
		&sh.BasePriceCents, &sh.CanReserveSeats, &sh.Capacity,
		&sh.CreatedAt, &sh.UpdatedAt,
		&sh.Movie.ID, &sh.Movie.Title, &sh.Movie.Rating,
		&sh.Screen.ID, &sh.Screen.TheatreID, &sh.Screen.Name, &sh.Screen.Capacity,
		&sh.Theatre.ID, &sh.Theatre.Name, &sh.Theatre.City,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrShowingNotFound
		}
		return nil, err
	}
	if sh.CanReserveSeats {
		seats, err := r.seatsByShowing(ctx, sh.ID)
		if err != nil {
			return nil, err
		}
		sh.Seats = seats
	}
	return &sh, nil
}

// seatsByShowing loads the seat map of a reserved-seating showing.
// Ordering by row and seat number provides deterministic output.
func (r *ShowingRepo) seatsByShowing(ctx context.Context, showingID uint64) ([]model.ShowingSeat, error) {
	const q = `SELECT id, showing_id, row_label, seat_number, seat_type,
	                  price_multiplier, override_price_cents
	           FROM showing_seats
	           WHERE showing_id = ?
	           ORDER BY row_label, seat_number`
	rows, err := r.db.QueryContext(ctx, q, showingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var seats []model.ShowingSeat
	for rows.Next() {
		var s model.ShowingSeat
		var override sql.NullInt64
		if err := rows.Scan(&s.ID, &s.ShowingID, &s.RowLabel, &s.SeatNumber, &s.SeatType,
			&s.PriceMultiplier, &override); err != nil {
			return nil, err
		}
		if override.Valid {
			v := uint32(override.Int64)
			s.OverridePriceCents = &v
		}
		seats = append(seats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return seats, nil
}
