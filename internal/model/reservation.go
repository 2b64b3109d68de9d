package model

import "time"

// Reservation statuses.  RESERVED is the only non-terminal state; every
// other status is final and retained for audit history.  A reservation in
// RESERVED holds its seats (or general-admission capacity) until it is
// paid, cancelled or swept as expired.
const (
	StatusReserved  = "RESERVED"
	StatusPaid      = "PAID"
	StatusCancelled = "CANCELLED"
	StatusRefunded  = "REFUNDED"
	StatusExpired   = "EXPIRED"
)

// Reservation kinds.  RESERVED_SEATS reservations carry an explicit seat
// selection; GENERAL_ADMISSION reservations carry only a ticket count.
const (
	KindGeneralAdmission = "GENERAL_ADMISSION"
	KindReservedSeats    = "RESERVED_SEATS"
)

// Snapshot holds catalog display data frozen into a reservation at
// creation time.  The values are copied from the live showing exactly
// once and are never refreshed, so financial records stay stable even
// when the catalog is later edited or deleted.
//
// Fields:
//  MovieTitle  – title of the movie at booking time.
//  MovieRating – age/content rating at booking time.
//  TheatreName – name of the theatre at booking time.
//  ScreenName  – name of the screen at booking time.
type Snapshot struct {
	MovieTitle  string // reservations.movie_title
	MovieRating string // reservations.movie_rating
	TheatreName string // reservations.theatre_name
	ScreenName  string // reservations.screen_name
}

// Reservation records a user's booking for a specific showing.  It is
// the central entity of the booking engine: the row itself acts as the
// seat lock while the status is RESERVED, and it embeds an immutable
// snapshot of the catalog data it was priced against.
//
// Fields:
//  ID               – primary key identifier.
//  Reference        – public UUID handed to clients.
//  UserID           – user who owns the reservation.
//  ShowingID        – showing being booked.
//  Kind             – GENERAL_ADMISSION or RESERVED_SEATS.
//  Status           – current lifecycle state (see status constants).
//  TicketCount      – number of tickets; equals len(Seats) for
//                     RESERVED_SEATS reservations.
//  TotalAmountCents – total price in cents across all tickets.
//  Snapshot         – embedded catalog snapshot (set once at creation).
//  Seats            – per-seat records for RESERVED_SEATS reservations.
//  ExpiresAt        – hold deadline; set iff Status is RESERVED.
//  SettledAt        – when the reservation reached a terminal state.
//  CreatedAt        – creation timestamp.
//  UpdatedAt        – last update timestamp.
type Reservation struct {
	ID               uint64 // reservations.id
	Reference        string // reservations.reference
	UserID           uint64 // reservations.user_id
	ShowingID        uint64 // reservations.showing_id
	Kind             string // reservations.kind
	Status           string // reservations.status
	TicketCount      uint32 // reservations.ticket_count
	TotalAmountCents uint32 // reservations.total_amount_cents
	Snapshot                // reservations.movie_title .. screen_name
	Seats            []ReservationSeat
	ExpiresAt        *time.Time // reservations.expires_at (NULL unless RESERVED)
	SettledAt        *time.Time // reservations.settled_at (nullable)
	CreatedAt        time.Time  // reservations.created_at
	UpdatedAt        time.Time  // reservations.updated_at
}

// ReservationSeat links a reservation to one selected seat and freezes
// that seat's display data and final price.  While the parent
// reservation is RESERVED, the row also carries the seat lock: a
// filtered unique index over (showing_id, seat_id, lock_active)
// guarantees at most one live lock per seat per showing.
//
// Fields:
//  ID            – primary key identifier.
//  ReservationID – reference to the owning reservation.
//  ShowingID     – showing in which the seat is booked (denormalised
//                  so the lock index needs no join).
//  SeatID        – seat that has been reserved.
//  RowLabel      – seat row label frozen at booking time.
//  SeatNumber    – seat number frozen at booking time.
//  SeatType      – seat classification frozen at booking time.
//  PriceCents    – price actually charged for this seat in cents.
//  CreatedAt     – creation timestamp.
type ReservationSeat struct {
	ID            uint64    // reservation_seats.id
	ReservationID uint64    // reservation_seats.reservation_id
	ShowingID     uint64    // reservation_seats.showing_id
	SeatID        uint64    // reservation_seats.seat_id
	RowLabel      string    // reservation_seats.row_label
	SeatNumber    uint32    // reservation_seats.seat_number
	SeatType      string    // reservation_seats.seat_type
	PriceCents    uint32    // reservation_seats.price_cents
	CreatedAt     time.Time // reservation_seats.created_at
}
