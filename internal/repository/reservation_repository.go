package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/cinema-booking/internal/model"
)

// ReservationRepo is the durable store for reservations and their seat
// locks.  The seat-lock invariant is enforced structurally by the
// uq_seat_lock unique index over (showing_id, seat_id, lock_active) on
// reservation_seats: lock_active is 1 while the owning reservation is
// RESERVED and NULL otherwise, and MySQL unique indexes never treat
// NULLs as colliding.  There is no application-level mutex anywhere;
// the constrained insert itself decides races, which keeps the
// invariant correct across any number of concurrent server instances.
//
// All timestamp fields are stored in UTC.  Expiration comparisons use
// the caller-supplied time so that the engine's injectable clock is
// honoured down to the SQL level.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// DB exposes the underlying sql.DB for callers that need to begin
// transactions spanning multiple repositories.
func (r *ReservationRepo) DB() *sql.DB { return r.db }

// isDuplicateLock reports whether err is a MySQL duplicate-entry error
// (1062) on the seat-lock index, i.e. another request holds a live
// lock on the same (showing, seat).
func isDuplicateLock(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062 && strings.Contains(me.Message, "uq_seat_lock")
}

// placeholders returns a comma-joined list of n "?" markers for IN clauses.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// TakenSeats returns the subset of seatIDs that are currently occupied
// for the given showing: referenced by a PAID reservation or by a
// RESERVED reservation whose hold has not yet expired.  A RESERVED row
// past its deadline does not count even if the sweeper has not touched
// it yet; the expiry re-check here is deliberately independent of the
// sweeper's cadence.
func (r *ReservationRepo) TakenSeats(ctx context.Context, showingID uint64, seatIDs []uint64, now time.Time) ([]uint64, error) {
	if len(seatIDs) == 0 {
		return nil, nil
	}
	q := `SELECT DISTINCT rs.seat_id
	      FROM reservation_seats rs
	      JOIN reservations res ON res.id = rs.reservation_id
	      WHERE rs.showing_id = ? AND rs.seat_id IN (` + placeholders(len(seatIDs)) + `)
	        AND (res.status = ? OR (res.status = ? AND res.expires_at > ?))`
	args := make([]interface{}, 0, len(seatIDs)+4)
	args = append(args, showingID)
	for _, id := range seatIDs {
		args = append(args, id)
	}
	args = append(args, model.StatusPaid, model.StatusReserved, now.UTC())
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var taken []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		taken = append(taken, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return taken, nil
}

// AdmissionCount sums the tickets consuming a showing's capacity: paid
// tickets plus tickets held by live (unexpired) RESERVED reservations.
func (r *ReservationRepo) AdmissionCount(ctx context.Context, showingID uint64, now time.Time) (uint32, error) {
	return r.admissionCount(ctx, r.db, showingID, now)
}

// queryer abstracts *sql.DB and *sql.Tx so aggregate checks can run
// both standalone and inside the create transaction.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (r *ReservationRepo) admissionCount(ctx context.Context, q queryer, showingID uint64, now time.Time) (uint32, error) {
	const query = `SELECT COALESCE(SUM(ticket_count), 0)
	               FROM reservations
	               WHERE showing_id = ?
	                 AND (status = ? OR (status = ? AND expires_at > ?))`
	var n uint32
	err := q.QueryRowContext(ctx, query, showingID, model.StatusPaid, model.StatusReserved, now.UTC()).Scan(&n)
	return n, err
}

// Create persists a new RESERVED reservation atomically.  Within one
// transaction it first force-expires stale holds for the showing (so a
// dead lock row cannot cause a spurious conflict), re-validates
// general-admission capacity under a row lock on the showing, then
// performs the constrained insert.  A duplicate-entry violation on the
// seat-lock index is reported as ErrSeatLockConflict.  Any failure
// rolls the whole insert back.
//
// capacity is the showing's total capacity as resolved by the caller;
// it is only consulted for general-admission reservations.
func (r *ReservationRepo) Create(ctx context.Context, res *model.Reservation, capacity uint32, now time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := r.expireDueTx(ctx, tx, res.ShowingID, now); err != nil {
		return err
	}

	if res.Kind == model.KindGeneralAdmission {
		// Lock the showing row so concurrent general-admission creates
		// for the same showing serialise their capacity re-check.
		var lockedID uint64
		if err := tx.QueryRowContext(ctx, `SELECT id FROM showings WHERE id = ? FOR UPDATE`, res.ShowingID).Scan(&lockedID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrShowingNotFound
			}
			return err
		}
		sold, err := r.admissionCount(ctx, tx, res.ShowingID, now)
		if err != nil {
			return err
		}
		// 64-bit sum; a hostile ticket count must not wrap under the cap.
		if uint64(sold)+uint64(res.TicketCount) > uint64(capacity) {
			return ErrCapacityExceeded
		}
	}

	const ins = `INSERT INTO reservations
	             (reference, user_id, showing_id, kind, status, ticket_count, total_amount_cents,
	              movie_title, movie_rating, theatre_name, screen_name, expires_at)
	             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, ins,
		res.Reference, res.UserID, res.ShowingID, res.Kind, model.StatusReserved,
		res.TicketCount, res.TotalAmountCents,
		res.MovieTitle, res.MovieRating, res.TheatreName, res.ScreenName,
		res.ExpiresAt.UTC())
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)

	if len(res.Seats) > 0 {
		q := `INSERT INTO reservation_seats
		      (reservation_id, showing_id, seat_id, row_label, seat_number, seat_type, price_cents, lock_active)
		      VALUES `
		args := make([]interface{}, 0, len(res.Seats)*8)
		for i := range res.Seats {
			if i > 0 {
				q += ","
			}
			q += "(?, ?, ?, ?, ?, ?, ?, 1)"
			s := &res.Seats[i]
			s.ReservationID = res.ID
			args = append(args, s.ReservationID, s.ShowingID, s.SeatID, s.RowLabel, s.SeatNumber, s.SeatType, s.PriceCents)
		}
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			if isDuplicateLock(err) {
				return ErrSeatLockConflict
			}
			return err
		}
	}

	// Query back the row to populate DB-default timestamps.
	const sel = `SELECT status, created_at, updated_at FROM reservations WHERE id = ?`
	if err := tx.QueryRowContext(ctx, sel, res.ID).Scan(&res.Status, &res.CreatedAt, &res.UpdatedAt); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// expireDueTx force-expires every RESERVED reservation of the showing
// whose deadline has passed and releases its seat locks, all within the
// caller's transaction.  Run before any constrained insert so that a
// stale hold nobody swept yet cannot block a seat that is logically free.
func (r *ReservationRepo) expireDueTx(ctx context.Context, tx *sql.Tx, showingID uint64, now time.Time) error {
	const upd = `UPDATE reservations
	             SET status = ?, expires_at = NULL, settled_at = ?
	             WHERE showing_id = ? AND status = ? AND expires_at <= ?`
	if _, err := tx.ExecContext(ctx, upd, model.StatusExpired, now.UTC(), showingID, model.StatusReserved, now.UTC()); err != nil {
		return err
	}
	const rel = `UPDATE reservation_seats rs
	             JOIN reservations res ON res.id = rs.reservation_id
	             SET rs.lock_active = NULL
	             WHERE rs.showing_id = ? AND rs.lock_active = 1 AND res.status <> ?`
	_, err := tx.ExecContext(ctx, rel, showingID, model.StatusReserved)
	return err
}

// GetByID retrieves a reservation and its seats.  It returns
// ErrReservationNotFound if there is no matching row.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	const q = `SELECT id, reference, user_id, showing_id, kind, status, ticket_count,
	                  total_amount_cents, movie_title, movie_rating, theatre_name, screen_name,
	                  expires_at, settled_at, created_at, updated_at
	           FROM reservations WHERE id = ?`
	var res model.Reservation
	var expiresAt, settledAt sql.NullTime
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&res.ID, &res.Reference, &res.UserID, &res.ShowingID, &res.Kind, &res.Status,
		&res.TicketCount, &res.TotalAmountCents,
		&res.MovieTitle, &res.MovieRating, &res.TheatreName, &res.ScreenName,
		&expiresAt, &settledAt, &res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		res.ExpiresAt = &t
	}
	if settledAt.Valid {
		t := settledAt.Time
		res.SettledAt = &t
	}
	seats, err := r.seatsByReservation(ctx, []uint64{res.ID})
	if err != nil {
		return nil, err
	}
	res.Seats = seats[res.ID]
	return &res, nil
}

// settle applies a guarded status transition and, on success, releases
// the reservation's seat locks in the same transaction.  cond is the
// extra predicate after "WHERE id = ?" and decides which current states
// the transition is legal from.  It returns false without error when no
// row matched, which callers surface as an invalid state transition.
func (r *ReservationRepo) settle(ctx context.Context, id uint64, toStatus string, cond string, condArgs []interface{}, now time.Time) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	q := `UPDATE reservations SET status = ?, expires_at = NULL, settled_at = ? WHERE id = ? AND ` + cond
	args := append([]interface{}{toStatus, now.UTC(), id}, condArgs...)
	result, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	// The seat stops being locked the instant the reservation leaves RESERVED.
	if _, err := tx.ExecContext(ctx, `UPDATE reservation_seats SET lock_active = NULL WHERE reservation_id = ?`, id); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	committed = true
	return true, nil
}

// MarkPaid transitions RESERVED -> PAID provided the hold has not
// expired.  It returns false when the reservation is in any other
// state or already past its deadline.
func (r *ReservationRepo) MarkPaid(ctx context.Context, id uint64, now time.Time) (bool, error) {
	return r.settle(ctx, id, model.StatusPaid,
		`status = ? AND expires_at > ?`,
		[]interface{}{model.StatusReserved, now.UTC()}, now)
}

// Cancel transitions RESERVED -> CANCELLED.
func (r *ReservationRepo) Cancel(ctx context.Context, id uint64, now time.Time) (bool, error) {
	return r.settle(ctx, id, model.StatusCancelled,
		`status = ?`, []interface{}{model.StatusReserved}, now)
}

// Refund transitions PAID -> REFUNDED.
func (r *ReservationRepo) Refund(ctx context.Context, id uint64, now time.Time) (bool, error) {
	return r.settle(ctx, id, model.StatusRefunded,
		`status = ?`, []interface{}{model.StatusPaid}, now)
}

// Expire transitions RESERVED -> EXPIRED once the deadline has passed.
// Sweeping a reservation that already left RESERVED matches no row and
// returns false, which the sweeper treats as a no-op.
func (r *ReservationRepo) Expire(ctx context.Context, id uint64, now time.Time) (bool, error) {
	return r.settle(ctx, id, model.StatusExpired,
		`status = ? AND expires_at <= ?`,
		[]interface{}{model.StatusReserved, now.UTC()}, now)
}

// DueForExpiry returns up to limit reservation IDs whose holds have
// lapsed, oldest deadline first.  The (status, expires_at) index makes
// this a range scan.
func (r *ReservationRepo) DueForExpiry(ctx context.Context, now time.Time, limit int) ([]uint64, error) {
	const q = `SELECT id FROM reservations
	           WHERE status = ? AND expires_at <= ?
	           ORDER BY expires_at
	           LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, model.StatusReserved, now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// ListByUser returns all reservations owned by the given user, newest
// first, with their seats populated.  The (showing_id, user_id) index
// also serves lookups of a user's bookings for one showing.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Reservation, error) {
	const q = `SELECT id, reference, user_id, showing_id, kind, status, ticket_count,
	                  total_amount_cents, movie_title, movie_rating, theatre_name, screen_name,
	                  expires_at, settled_at, created_at, updated_at
	           FROM reservations
	           WHERE user_id = ?
	           ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := make([]model.Reservation, 0)
	index := make(map[uint64]int)
	var ids []uint64
	for rows.Next() {
		var res model.Reservation
		var expiresAt, settledAt sql.NullTime
		if err := rows.Scan(
			&res.ID, &res.Reference, &res.UserID, &res.ShowingID, &res.Kind, &res.Status,
			&res.TicketCount, &res.TotalAmountCents,
			&res.MovieTitle, &res.MovieRating, &res.TheatreName, &res.ScreenName,
			&expiresAt, &settledAt, &res.CreatedAt, &res.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if expiresAt.Valid {
			t := expiresAt.Time
			res.ExpiresAt = &t
		}
		if settledAt.Valid {
			t := settledAt.Time
			res.SettledAt = &t
		}
		index[res.ID] = len(list)
		ids = append(ids, res.ID)
		list = append(list, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return list, nil
	}
	seats, err := r.seatsByReservation(ctx, ids)
	if err != nil {
		return nil, err
	}
	for rid, ss := range seats {
		if i, ok := index[rid]; ok {
			list[i].Seats = ss
		}
	}
	return list, nil
}

// seatsByReservation fetches the seats of multiple reservations in one
// query and groups them by reservation ID.
func (r *ReservationRepo) seatsByReservation(ctx context.Context, ids []uint64) (map[uint64][]model.ReservationSeat, error) {
	if len(ids) == 0 {
		return map[uint64][]model.ReservationSeat{}, nil
	}
	q := `SELECT id, reservation_id, showing_id, seat_id, row_label, seat_number, seat_type, price_cents, created_at
	      FROM reservation_seats
	      WHERE reservation_id IN (` + placeholders(len(ids)) + `)
	      ORDER BY reservation_id, row_label, seat_number`
	args := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uint64][]model.ReservationSeat)
	for rows.Next() {
		var s model.ReservationSeat
		if err := rows.Scan(&s.ID, &s.ReservationID, &s.ShowingID, &s.SeatID,
			&s.RowLabel, &s.SeatNumber, &s.SeatType, &s.PriceCents, &s.CreatedAt); err != nil {
			return nil, err
		}
		out[s.ReservationID] = append(out[s.ReservationID], s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
