package handler // handler defines http handlers

import (
	"errors"  // errors provides sentinel comparisons via errors.Is
	"net/http" // HTTP status codes
	"strconv" // parsing path parameters
	"time"    // formatting event timestamps

	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/iliyamo/cinema-booking/internal/booking"
	"github.com/iliyamo/cinema-booking/internal/model"
	"github.com/iliyamo/cinema-booking/internal/queue"
	"github.com/iliyamo/cinema-booking/internal/repository"
	queue_publisher "github.com/iliyamo/cinema-booking/internal/service"
)

// BookingHandler exposes the reservation lifecycle engine over HTTP.
// All methods assume JWT authentication has already run, except the
// public availability view.  Handlers stay thin: they parse input,
// delegate to the booking service and translate sentinel errors into
// HTTP statuses.
type BookingHandler struct {
	Service *booking.Service
}

// NewBookingHandler constructs a BookingHandler.  The service must be non-nil.
func NewBookingHandler(svc *booking.Service) *BookingHandler {
	if svc == nil {
		panic("nil service passed to NewBookingHandler")
	}
	return &BookingHandler{Service: svc}
}

// getUserID extracts the user_id from echo.Context and converts it to uint64.
func getUserID(c echo.Context) (uint64, error) {
	v := c.Get("user_id")
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// isAdmin reports whether the JWT role claim stored in context is ADMIN.
func isAdmin(c echo.Context) bool {
	role, _ := c.Get("role").(string)
	return role == "ADMIN"
}

// pathID parses the numeric :id path parameter.
func pathID(c echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

// writeError maps booking/repository sentinel errors onto HTTP responses.
// Conflict-class errors (seat taken, capacity, lost race) become 409 with a
// machine-readable code so clients can distinguish "pick other seats" from
// "try again after re-resolving availability".
func writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrShowingNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "showing not found"})
	case errors.Is(err, repository.ErrReservationNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
	case errors.Is(err, repository.ErrSeatUnavailable):
		return c.JSON(http.StatusConflict, echo.Map{"error": "seat unavailable", "code": "SEAT_UNAVAILABLE"})
	case errors.Is(err, repository.ErrCapacityExceeded):
		return c.JSON(http.StatusConflict, echo.Map{"error": "not enough tickets left", "code": "CAPACITY_EXCEEDED"})
	case errors.Is(err, repository.ErrSeatLockConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "seat was just taken", "code": "SEAT_LOCK_CONFLICT"})
	case errors.Is(err, repository.ErrInvalidStateTransition):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "reservation state does not allow this operation", "code": "INVALID_STATE_TRANSITION"})
	case errors.Is(err, repository.ErrOwnershipMismatch):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "reservation belongs to another user"})
	case errors.Is(err, booking.ErrInvalidRequest):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "request does not match the showing's seating mode"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}

// GetAvailability handles GET /v1/showings/:id/availability.  It returns the
// live availability view of a showing: every seat with its status for
// reserved seating, or the remaining ticket margin for general admission.
// Public; responses may be served from the Redis cache for a short TTL.
func (h *BookingHandler) GetAvailability(c echo.Context) error {
	showingID, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showing id"})
	}
	av, err := h.Service.ShowingAvailability(c.Request().Context(), showingID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, av)
}

// CheckAvailability handles POST /v1/showings/:id/availability.  The body
// carries the intended seat selection or ticket count; the response states
// whether the request could be satisfied right now.  Read-only: passing the
// check does not reserve anything, and a subsequent create can still lose a
// race and return 409 SEAT_LOCK_CONFLICT.
func (h *BookingHandler) CheckAvailability(c echo.Context) error {
	showingID, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showing id"})
	}
	var req booking.Request
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	av, err := h.Service.ResolveAvailability(c.Request().Context(), showingID, req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"available": true, "availability": av})
}

// CreateReservation handles POST /v1/showings/:id/reservations.  It books
// the requested seats or ticket count for the authenticated user and
// returns the created reservation with its hold deadline.
func (h *BookingHandler) CreateReservation(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	showingID, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showing id"})
	}
	var req booking.Request
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	res, err := h.Service.CreateReservation(c.Request().Context(), userID, showingID, req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// MarkPaid handles POST /v1/reservations/:id/pay.  It records a successful
// payment for the caller's reservation and publishes a reservation.paid
// event.  Publish failures are logged inside the publisher and deliberately
// ignored here; the payment itself is already committed.
func (h *BookingHandler) MarkPaid(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	res, err := h.Service.MarkPaid(c.Request().Context(), userID, id)
	if err != nil {
		return writeError(c, err)
	}
	_ = queue_publisher.PublishReservationPaid(c.Request().Context(), paidEvent(res))
	return c.JSON(http.StatusOK, res)
}

// paidEvent builds the broker payload from a paid reservation's snapshot.
func paidEvent(res *model.Reservation) queue.ReservationPaidEvent {
	labels := make([]string, 0, len(res.Seats))
	for _, s := range res.Seats {
		labels = append(labels, s.RowLabel+strconv.FormatUint(uint64(s.SeatNumber), 10))
	}
	paidAt := time.Now().UTC()
	if res.SettledAt != nil {
		paidAt = res.SettledAt.UTC()
	}
	return queue.ReservationPaidEvent{
		ReservationID:    res.ID,
		Reference:        res.Reference,
		UserID:           res.UserID,
		ShowingID:        res.ShowingID,
		Kind:             res.Kind,
		MovieTitle:       res.MovieTitle,
		TheatreName:      res.TheatreName,
		ScreenName:       res.ScreenName,
		SeatLabels:       labels,
		TicketCount:      res.TicketCount,
		TotalAmountCents: res.TotalAmountCents,
		PaidAt:           paidAt.Format(time.RFC3339),
	}
}

// Cancel handles POST /v1/reservations/:id/cancel.  Only the owner may
// cancel, and only while the reservation is still RESERVED.
func (h *BookingHandler) Cancel(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	res, err := h.Service.Cancel(c.Request().Context(), userID, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Refund handles POST /v1/reservations/:id/refund.  The owner may refund
// their own PAID reservation; users with the ADMIN role may refund any.
func (h *BookingHandler) Refund(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	res, err := h.Service.Refund(c.Request().Context(), userID, isAdmin(c), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// ListReservations handles GET /v1/reservations.  It returns the caller's
// reservations, newest first, including frozen snapshot data.
func (h *BookingHandler) ListReservations(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	list, err := h.Service.ListReservations(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

// GetReservation handles GET /v1/reservations/:id with ownership enforcement.
func (h *BookingHandler) GetReservation(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	res, err := h.Service.GetReservation(c.Request().Context(), userID, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}
