// Package repository defines error types that are reused across multiple
// repositories and by the booking engine. These sentinel values allow
// higher layers such as handlers to distinguish between different
// failure scenarios. For example, ErrSeatLockConflict indicates that a
// concurrent request won the race for the same seat and should map to
// an HTTP 409 response, while ErrOwnershipMismatch is an authorization
// failure and should map to 403.
package repository

import "errors"

// ErrShowingNotFound indicates that a showing was not located in the DB.
var ErrShowingNotFound = errors.New("showing not found")

// ErrReservationNotFound indicates that a reservation was not located in the DB.
var ErrReservationNotFound = errors.New("reservation not found")

// ErrSeatUnavailable is returned when one or more requested seats of a
// reserved-seating showing are already taken by a live hold or a paid
// reservation. The caller should pick different seats; retrying the
// same request will not succeed until a hold expires.
var ErrSeatUnavailable = errors.New("seat unavailable")

// ErrCapacityExceeded is returned when a general-admission request asks
// for more tickets than the showing has left. Handlers should translate
// this into an HTTP 409 response.
var ErrCapacityExceeded = errors.New("capacity exceeded")

// ErrSeatLockConflict is returned when the constrained insert lost a
// race: another request created a live lock on the same (showing, seat)
// between the availability check and the write. The request is
// retryable with a different seat selection, never verbatim.
var ErrSeatLockConflict = errors.New("seat lock conflict")

// ErrInvalidStateTransition is returned when a status change is not
// allowed from the reservation's current state, e.g. paying a
// reservation that already expired. Not retryable.
var ErrInvalidStateTransition = errors.New("invalid state transition")

// ErrOwnershipMismatch is returned when the acting user does not own
// the reservation being mutated. Handlers should translate this into
// an HTTP 403 response rather than silently ignoring the call.
var ErrOwnershipMismatch = errors.New("ownership mismatch")
