// Package repository persists users, meters, serials, descriptions and readings.
// Every method returns an explicit error; absence is reported as ErrNotFound.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/meterbot/core/logger"
	"github.com/m3rciful/meterbot/internal/meter"
)

// Repository wraps a sqlx handle; queries are written with ? placeholders and
// rebound for the active driver.
type Repository struct {
	db *sqlx.DB
}

// New constructs a Repository.
func New(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// EnsureMeterTypes seeds the four meter types when the table is empty.
func (r *Repository) EnsureMeterTypes(ctx context.Context) error {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM meter_types`); err != nil {
		return fmt.Errorf("count meter types: %w", err)
	}
	if n > 0 {
		return nil
	}
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		for _, s := range meter.Seeds() {
			if _, err := tx.NamedExecContext(ctx, `INSERT INTO meter_types (name, unit) VALUES (:name, :unit)`, s); err != nil {
				return fmt.Errorf("insert meter type %s: %w", s.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info(ctx, "db.seed", "meter_types.seeded",
		slog.String("status", "ok"),
		slog.Int("count", len(meter.Seeds())),
	)
	return nil
}

// RegisterApartment stores a completed registration atomically. When the
// apartment already has meters (another resident registered it), only the
// user row is inserted.
func (r *Repository) RegisterApartment(ctx context.Context, reg meter.Registration) error {
	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO users (user_id, apartment_number, first_name, last_name)
			VALUES (?, ?, ?, ?)`),
			reg.UserID, reg.Apartment, reg.FirstName, reg.LastName,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrAlreadyRegistered
			}
			return fmt.Errorf("insert user: %w", err)
		}

		var existing int
		if err := tx.GetContext(ctx, &existing, tx.Rebind(`SELECT COUNT(*) FROM meters WHERE apartment_number = ?`), reg.Apartment); err != nil {
			return fmt.Errorf("count apartment meters: %w", err)
		}
		if existing > 0 {
			return nil
		}

		for _, sec := range reg.Sections {
			if len(sec.Serials) == 0 {
				continue
			}
			if err := insertSection(ctx, tx, reg.Apartment, sec); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertSection(ctx context.Context, tx *sqlx.Tx, apartment int, sec meter.Section) error {
	var typeID int64
	err := tx.GetContext(ctx, &typeID, tx.Rebind(`SELECT type_id FROM meter_types WHERE name = ?`), string(sec.Type))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("meter type %s not seeded: %w", sec.Type, ErrNotFound)
		}
		return fmt.Errorf("lookup meter type %s: %w", sec.Type, err)
	}

	var meterID int64
	err = tx.QueryRowxContext(ctx, tx.Rebind(`
		INSERT INTO meters (apartment_number, type_id, count_meter)
		VALUES (?, ?, ?)
		RETURNING meter_id`),
		apartment, typeID, len(sec.Serials),
	).Scan(&meterID)
	if err != nil {
		return fmt.Errorf("insert meter %s: %w", sec.Type, err)
	}

	for i, serial := range sec.Serials {
		var serialID int64
		err := tx.QueryRowxContext(ctx, tx.Rebind(`
			INSERT INTO serials (meter_id, serial_number)
			VALUES (?, ?)
			RETURNING serial_id`),
			meterID, serial,
		).Scan(&serialID)
		if err != nil {
			return fmt.Errorf("insert serial %s: %w", serial, err)
		}
		if i >= len(sec.Descriptions) {
			continue
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO meter_descriptions (serial_id, description)
			VALUES (?, ?)`),
			serialID, sec.Descriptions[i],
		); err != nil {
			return fmt.Errorf("insert description for %s: %w", serial, err)
		}
	}
	return nil
}

// UserInfo returns the stored profile of a resident.
func (r *Repository) UserInfo(ctx context.Context, userID int64) (meter.Profile, error) {
	var p meter.Profile
	err := r.db.GetContext(ctx, &p, r.db.Rebind(`
		SELECT user_id, apartment_number, first_name, last_name
		FROM users
		WHERE user_id = ?`), userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return meter.Profile{}, ErrNotFound
		}
		return meter.Profile{}, fmt.Errorf("get user %d: %w", userID, err)
	}
	return p, nil
}

// ApartmentHasMeters reports whether meters were already registered for the apartment.
func (r *Repository) ApartmentHasMeters(ctx context.Context, apartment int) (bool, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, r.db.Rebind(`SELECT COUNT(*) FROM meters WHERE apartment_number = ?`), apartment); err != nil {
		return false, fmt.Errorf("count apartment meters: %w", err)
	}
	return n > 0, nil
}

const metersQuery = `
	SELECT serials.serial_id, meter_types.name, serials.serial_number, COALESCE(meter_descriptions.description, '') AS description
	FROM serials
		JOIN meters ON meters.meter_id = serials.meter_id
		JOIN meter_types ON meter_types.type_id = meters.type_id
		LEFT JOIN meter_descriptions ON meter_descriptions.serial_id = serials.serial_id
	WHERE meters.apartment_number = ?`

// MetersForApartment lists serials with descriptions, optionally filtered by type.
// An apartment without matching meters yields an empty slice and nil error.
func (r *Repository) MetersForApartment(ctx context.Context, apartment int, t *meter.Type) ([]meter.Info, error) {
	query := metersQuery
	args := []any{apartment}
	if t != nil {
		query += ` AND meter_types.name = ?`
		args = append(args, string(*t))
	}
	query += ` ORDER BY meters.type_id, serials.serial_id`

	out := []meter.Info{}
	if err := r.db.SelectContext(ctx, &out, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list meters for apartment %d: %w", apartment, err)
	}
	return out, nil
}

// RecordReading resolves the serial within the apartment and stores the value
// for the period. A second reading for the same serial and period fails with
// ErrDuplicateReading.
func (r *Repository) RecordReading(ctx context.Context, sub meter.Submission, period meter.Period, readingDate time.Time) error {
	var ids struct {
		MeterID  int64 `db:"meter_id"`
		SerialID int64 `db:"serial_id"`
	}
	err := r.db.GetContext(ctx, &ids, r.db.Rebind(`
		SELECT meters.meter_id, serials.serial_id
		FROM meters
			JOIN meter_types ON meter_types.type_id = meters.type_id
			JOIN serials ON serials.meter_id = meters.meter_id
		WHERE meters.apartment_number = ?
			AND meter_types.name = ?
			AND serials.serial_number = ?
		LIMIT 1`),
		sub.Apartment, string(sub.Type), sub.SerialNumber,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("resolve serial %s: %w", sub.SerialNumber, err)
	}

	_, err = r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO readings (meter_id, user_id, serial_id, value, reading_date, period)
		VALUES (?, ?, ?, ?, ?, ?)`),
		ids.MeterID, sub.UserID, ids.SerialID, sub.Value, readingDate, period.String(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateReading
		}
		return fmt.Errorf("insert reading: %w", err)
	}
	logger.Debug(ctx, "db", "reading.recorded",
		slog.Int("apartment", sub.Apartment),
		slog.String("meter_type", string(sub.Type)),
		slog.String("serial", sub.SerialNumber),
		slog.String("period", period.String()),
	)
	return nil
}

// ReadingTypesForPeriod returns the meter types of the apartment with at least
// one reading in the period.
func (r *Repository) ReadingTypesForPeriod(ctx context.Context, apartment int, period meter.Period) (map[meter.Type]bool, error) {
	var names []string
	err := r.db.SelectContext(ctx, &names, r.db.Rebind(`
		SELECT DISTINCT meter_types.name
		FROM readings
			JOIN meters ON meters.meter_id = readings.meter_id
			JOIN meter_types ON meter_types.type_id = meters.type_id
		WHERE meters.apartment_number = ?
			AND readings.period = ?`),
		apartment, period.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("reading types for period: %w", err)
	}
	done := make(map[meter.Type]bool, len(names))
	for _, n := range names {
		done[meter.Type(n)] = true
	}
	return done, nil
}

// PreviousReading returns the latest reading of the serial from a period
// strictly before the given one.
func (r *Repository) PreviousReading(ctx context.Context, apartment int, t meter.Type, serial string, before meter.Period) (meter.Reading, error) {
	var rd meter.Reading
	err := r.db.GetContext(ctx, &rd, r.db.Rebind(`
		SELECT readings.value, readings.reading_date, readings.period
		FROM readings
			JOIN serials ON serials.serial_id = readings.serial_id
			JOIN meters ON meters.meter_id = readings.meter_id
			JOIN meter_types ON meter_types.type_id = meters.type_id
		WHERE meters.apartment_number = ?
			AND meter_types.name = ?
			AND serials.serial_number = ?
			AND readings.period < ?
		ORDER BY readings.period DESC, readings.reading_date DESC
		LIMIT 1`),
		apartment, string(t), serial, before.String(),
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return meter.Reading{}, ErrNotFound
		}
		return meter.Reading{}, fmt.Errorf("previous reading for %s: %w", serial, err)
	}
	return rd, nil
}

// UpdateSerialNumber renames one serial of the owner's apartment and returns
// the number of rows changed, zero when the serial belongs elsewhere. A number
// already used by another meter of the same type in the apartment fails with
// meter.ErrDuplicateSerial.
func (r *Repository) UpdateSerialNumber(ctx context.Context, serialID int64, newSerial string, ownerUserID int64) (int64, error) {
	var n int64
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		var owner struct {
			Apartment int   `db:"apartment_number"`
			TypeID    int64 `db:"type_id"`
		}
		err := tx.GetContext(ctx, &owner, tx.Rebind(`
			SELECT meters.apartment_number, meters.type_id
			FROM serials
				JOIN meters ON meters.meter_id = serials.meter_id
				JOIN users ON users.apartment_number = meters.apartment_number
			WHERE serials.serial_id = ?
				AND users.user_id = ?`),
			serialID, ownerUserID,
		)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("resolve serial %d: %w", serialID, err)
		}

		var taken int
		err = tx.GetContext(ctx, &taken, tx.Rebind(`
			SELECT COUNT(*)
			FROM serials
				JOIN meters ON meters.meter_id = serials.meter_id
			WHERE meters.apartment_number = ?
				AND meters.type_id = ?
				AND serials.serial_number = ?
				AND serials.serial_id <> ?`),
			owner.Apartment, owner.TypeID, newSerial, serialID,
		)
		if err != nil {
			return fmt.Errorf("check serial %s: %w", newSerial, err)
		}
		if taken > 0 {
			return meter.ErrDuplicateSerial
		}

		res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE serials SET serial_number = ? WHERE serial_id = ?`), newSerial, serialID)
		if err != nil {
			return fmt.Errorf("update serial %d: %w", serialID, err)
		}
		if n, err = res.RowsAffected(); err != nil {
			return fmt.Errorf("update serial rows affected: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// ReadingsForPeriod returns every reading of the period ordered by apartment and type name.
func (r *Repository) ReadingsForPeriod(ctx context.Context, period meter.Period) ([]meter.ReadingRow, error) {
	rows := []meter.ReadingRow{}
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`
		SELECT meters.apartment_number, meter_types.name, serials.serial_number, readings.value, readings.reading_date
		FROM readings
			JOIN meters ON meters.meter_id = readings.meter_id
			JOIN serials ON serials.serial_id = readings.serial_id
			JOIN meter_types ON meter_types.type_id = meters.type_id
		WHERE readings.period = ?
		ORDER BY meters.apartment_number, meter_types.name, serials.serial_id`),
		period.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("readings for period %s: %w", period, err)
	}
	return rows, nil
}

// ApartmentsMissingReadings lists registered apartments without any reading in the period.
func (r *Repository) ApartmentsMissingReadings(ctx context.Context, period meter.Period) ([]int, error) {
	apartments := []int{}
	err := r.db.SelectContext(ctx, &apartments, r.db.Rebind(`
		SELECT DISTINCT users.apartment_number
		FROM users
		WHERE users.apartment_number NOT IN (
			SELECT meters.apartment_number
			FROM readings
				JOIN meters ON meters.meter_id = readings.meter_id
			WHERE readings.period = ?
		)
		ORDER BY users.apartment_number`),
		period.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("apartments missing readings: %w", err)
	}
	return apartments, nil
}

// UsersByApartment lists the residents of an apartment.
func (r *Repository) UsersByApartment(ctx context.Context, apartment int) ([]meter.Resident, error) {
	users := []meter.Resident{}
	err := r.db.SelectContext(ctx, &users, r.db.Rebind(`
		SELECT user_id, first_name
		FROM users
		WHERE apartment_number = ?
		ORDER BY user_id`), apartment)
	if err != nil {
		return nil, fmt.Errorf("users of apartment %d: %w", apartment, err)
	}
	return users, nil
}

// AllUserIDs returns every registered identity.
func (r *Repository) AllUserIDs(ctx context.Context) ([]int64, error) {
	ids := []int64{}
	if err := r.db.SelectContext(ctx, &ids, `SELECT user_id FROM users ORDER BY user_id`); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return ids, nil
}

// DeleteUser removes the resident identified by apartment and identity.
// Under DeleteCascade the apartment's meter data goes too once nobody lives there.
func (r *Repository) DeleteUser(ctx context.Context, apartment int, userID int64, policy DeletionPolicy) error {
	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, tx.Rebind(`
			DELETE FROM users
			WHERE apartment_number = ? AND user_id = ?`),
			apartment, userID,
		)
		if err != nil {
			return fmt.Errorf("delete user %d: %w", userID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete user rows affected: %w", err)
		}
		if n == 0 {
			return ErrNotFound
		}
		if policy != DeleteCascade {
			return nil
		}

		var remaining int
		if err := tx.GetContext(ctx, &remaining, tx.Rebind(`SELECT COUNT(*) FROM users WHERE apartment_number = ?`), apartment); err != nil {
			return fmt.Errorf("count remaining residents: %w", err)
		}
		if remaining > 0 {
			return nil
		}
		for _, stmt := range cascadeStatements {
			if _, err := tx.ExecContext(ctx, tx.Rebind(stmt), apartment); err != nil {
				return fmt.Errorf("cascade apartment %d: %w", apartment, err)
			}
		}
		return nil
	})
}

// cascadeStatements run children first so foreign keys hold at every step.
var cascadeStatements = []string{
	`DELETE FROM meter_descriptions WHERE serial_id IN (
		SELECT serials.serial_id FROM serials
			JOIN meters ON meters.meter_id = serials.meter_id
		WHERE meters.apartment_number = ?)`,
	`DELETE FROM readings WHERE meter_id IN (SELECT meter_id FROM meters WHERE apartment_number = ?)`,
	`DELETE FROM serials WHERE meter_id IN (SELECT meter_id FROM meters WHERE apartment_number = ?)`,
	`DELETE FROM meters WHERE apartment_number = ?`,
}
