// Package queue defines message payloads exchanged over the message broker.
package queue

// ReservationPaidEvent is published when a reservation is successfully paid.
// It carries the reservation's frozen snapshot data so downstream consumers
// can log or notify without querying the primary database; the values stay
// correct even if the catalog changes later.
type ReservationPaidEvent struct {
	ReservationID    uint64   `json:"reservation_id"`
	Reference        string   `json:"reference"`
	UserID           uint64   `json:"user_id"`
	ShowingID        uint64   `json:"showing_id"`
	Kind             string   `json:"kind"`
	MovieTitle       string   `json:"movie_title"`
	TheatreName      string   `json:"theatre_name"`
	ScreenName       string   `json:"screen_name"`
	SeatLabels       []string `json:"seats,omitempty"`
	TicketCount      uint32   `json:"ticket_count"`
	TotalAmountCents uint32   `json:"total_amount_cents"`
	PaidAt           string   `json:"paid_at"`
}
