package model

import "time"

// Showing represents a scheduled screening of a movie on a particular
// screen.  The booking engine reads showings but never writes them;
// the catalog service owns their lifecycle.  A showing either allows
// seat selection (CanReserveSeats, with a seat map in Seats) or sells
// general-admission tickets against the screen's capacity.
//
// Fields:
//  ID              – primary key identifier.
//  ScreenID        – screen where the showing takes place.
//  MovieID         – movie being screened.
//  StartsAt        – when the showing begins.
//  EndsAt          – when the showing ends (after StartsAt).
//  BasePriceCents  – default ticket price in cents before seat
//                    multipliers or overrides.
//  CanReserveSeats – true when customers pick specific seats.
//  Capacity        – total seats available; copied from the screen.
//  Movie           – populated movie reference.
//  Theatre         – populated theatre reference.
//  Screen          – populated screen reference.
//  Seats           – seat map; empty for general-admission showings.
//  CreatedAt       – creation timestamp.
//  UpdatedAt       – last update timestamp.
type Showing struct {
	ID              uint64    // showings.id
	ScreenID        uint64    // showings.screen_id
	MovieID         uint64    // showings.movie_id
	StartsAt        time.Time // showings.starts_at
	EndsAt          time.Time // showings.ends_at
	BasePriceCents  uint32    // showings.base_price_cents
	CanReserveSeats bool      // showings.can_reserve_seats
	Capacity        uint32    // showings.capacity
	Movie           Movie
	Theatre         Theatre
	Screen          Screen
	Seats           []ShowingSeat
	CreatedAt       time.Time // showings.created_at
	UpdatedAt       time.Time // showings.updated_at
}

// ShowingSeat describes one sellable seat of a reserved-seating
// showing, including its pricing rule.  The final price for the seat
// is OverridePriceCents when set, otherwise the showing's base price
// multiplied by PriceMultiplier.
type ShowingSeat struct {
	ID                 uint64  // showing_seats.id
	ShowingID          uint64  // showing_seats.showing_id
	RowLabel           string  // showing_seats.row_label
	SeatNumber         uint32  // showing_seats.seat_number
	SeatType           string  // showing_seats.seat_type (STANDARD, PREMIUM, ...)
	PriceMultiplier    float64 // showing_seats.price_multiplier
	OverridePriceCents *uint32 // showing_seats.override_price_cents (nullable)
}
