package database

import (
	"context"
	"database/sql"
)

// schema holds the DDL for every table the booking engine touches.
// The decisive piece is uq_seat_lock on reservation_seats: lock_active
// is 1 while the owning reservation is RESERVED and NULL otherwise, and
// MySQL unique indexes skip NULLs, so the index acts as a filtered
// uniqueness constraint over live seat locks. The constraint on the
// reservation rows themselves is the lock; there is no separate lock
// table.
//
// Catalog tables (movies, theatres, screens, showings, showing_seats)
// are created here so the engine can run standalone, but they are
// written by the catalog service, not by this module. Cascading
// deletes from the catalog remove dependent reservations.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS movies (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		rating VARCHAR(16) NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS theatres (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		city VARCHAR(128) NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS screens (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		theatre_id BIGINT UNSIGNED NOT NULL,
		name VARCHAR(128) NOT NULL,
		capacity INT UNSIGNED NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT fk_screens_theatre FOREIGN KEY (theatre_id)
			REFERENCES theatres (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS showings (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		screen_id BIGINT UNSIGNED NOT NULL,
		movie_id BIGINT UNSIGNED NOT NULL,
		starts_at DATETIME NOT NULL,
		ends_at DATETIME NOT NULL,
		base_price_cents INT UNSIGNED NOT NULL DEFAULT 0,
		can_reserve_seats TINYINT(1) NOT NULL DEFAULT 1,
		capacity INT UNSIGNED NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		KEY idx_showings_screen (screen_id),
		CONSTRAINT fk_showings_screen FOREIGN KEY (screen_id)
			REFERENCES screens (id) ON DELETE CASCADE,
		CONSTRAINT fk_showings_movie FOREIGN KEY (movie_id)
			REFERENCES movies (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS showing_seats (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		showing_id BIGINT UNSIGNED NOT NULL,
		row_label VARCHAR(8) NOT NULL,
		seat_number INT UNSIGNED NOT NULL,
		seat_type VARCHAR(32) NOT NULL DEFAULT 'STANDARD',
		price_multiplier DECIMAL(6,3) NOT NULL DEFAULT 1.000,
		override_price_cents INT UNSIGNED NULL,
		UNIQUE KEY uq_showing_seat (showing_id, row_label, seat_number),
		CONSTRAINT fk_showing_seats_showing FOREIGN KEY (showing_id)
			REFERENCES showings (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS reservations (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		reference CHAR(36) NOT NULL,
		user_id BIGINT UNSIGNED NOT NULL,
		showing_id BIGINT UNSIGNED NOT NULL,
		kind ENUM('GENERAL_ADMISSION','RESERVED_SEATS') NOT NULL,
		status ENUM('RESERVED','PAID','CANCELLED','REFUNDED','EXPIRED') NOT NULL DEFAULT 'RESERVED',
		ticket_count INT UNSIGNED NOT NULL,
		total_amount_cents INT UNSIGNED NOT NULL DEFAULT 0,
		movie_title VARCHAR(255) NOT NULL,
		movie_rating VARCHAR(16) NOT NULL DEFAULT '',
		theatre_name VARCHAR(255) NOT NULL,
		screen_name VARCHAR(128) NOT NULL,
		expires_at DATETIME NULL,
		settled_at DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_reservations_reference (reference),
		KEY idx_reservations_showing_user (showing_id, user_id),
		KEY idx_reservations_status_expires (status, expires_at),
		CONSTRAINT fk_reservations_showing FOREIGN KEY (showing_id)
			REFERENCES showings (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS reservation_seats (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		reservation_id BIGINT UNSIGNED NOT NULL,
		showing_id BIGINT UNSIGNED NOT NULL,
		seat_id BIGINT UNSIGNED NOT NULL,
		row_label VARCHAR(8) NOT NULL,
		seat_number INT UNSIGNED NOT NULL,
		seat_type VARCHAR(32) NOT NULL DEFAULT 'STANDARD',
		price_cents INT UNSIGNED NOT NULL,
		lock_active TINYINT NULL DEFAULT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_seat_lock (showing_id, seat_id, lock_active),
		KEY idx_reservation_seats_reservation (reservation_id),
		CONSTRAINT fk_reservation_seats_reservation FOREIGN KEY (reservation_id)
			REFERENCES reservations (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// EnsureSchema creates every table the engine needs when it does not
// exist yet. Statements are idempotent and applied in dependency order.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
