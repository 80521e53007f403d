package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/eps.report/internal/eps"
)

// Session is one run of the daemon. Telegrams and linearity points are
// keyed by session so a later run can restore or export them.
type Session struct {
	ID        string             `json:"session_id"`
	StartedAt time.Time          `json:"started_at"`
	Format    eps.TelegramFormat `json:"telegram_format"`
	Threshold int                `json:"threshold"`
	Source    string             `json:"source"`
}

// ArchivedTelegram is an accepted telegram as it was received.
type ArchivedTelegram = eps.Telegram

// NewSession records the start of a run.
func (db *DB) NewSession(format eps.TelegramFormat, threshold int, source string) (*Session, error) {
	s := &Session{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		Format:    format,
		Threshold: threshold,
		Source:    source,
	}
	_, err := db.Exec(
		`INSERT INTO sessions (session_id, started_unix_nanos, telegram_format, threshold, source)
		 VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.StartedAt.UnixNano(), int(s.Format), s.Threshold, s.Source,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return s, nil
}

// LatestSession returns the most recently started session other than
// exclude, or ErrNoSession.
func (db *DB) LatestSession(exclude string) (*Session, error) {
	var (
		s       Session
		started int64
		format  int
	)
	err := db.QueryRow(
		`SELECT session_id, started_unix_nanos, telegram_format, threshold, source
		 FROM sessions WHERE session_id != ?
		 ORDER BY started_unix_nanos DESC, rowid DESC LIMIT 1`,
		exclude,
	).Scan(&s.ID, &started, &format, &s.Threshold, &s.Source)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}
	s.StartedAt = time.Unix(0, started)
	s.Format = eps.TelegramFormat(format)
	return &s, nil
}

// RecordTelegram archives one accepted telegram.
func (db *DB) RecordTelegram(sessionID string, at time.Time, raw string, s eps.SensorSample) error {
	return db.RecordTelegrams(sessionID, []eps.Telegram{{ReceivedAt: at, Raw: raw, Sample: s}})
}

// RecordTelegrams archives a batch of accepted telegrams in one
// transaction, preserving their order.
func (db *DB) RecordTelegrams(sessionID string, batch []eps.Telegram) error {
	if len(batch) == 0 {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO telegrams (session_id, received_unix_nanos, raw, speed, angle, torque, current)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range batch {
		var current sql.NullFloat64
		if t.Sample.HasCurrent {
			current = sql.NullFloat64{Float64: t.Sample.Current, Valid: true}
		}
		if _, err := stmt.Exec(sessionID, t.ReceivedAt.UnixNano(), t.Raw,
			t.Sample.Speed, t.Sample.Angle, t.Sample.Torque, current); err != nil {
			return fmt.Errorf("failed to archive telegram %q: %w", t.Raw, err)
		}
	}
	return tx.Commit()
}

// SessionTelegrams returns the archived telegrams of a session in arrival
// order.
func (db *DB) SessionTelegrams(sessionID string) ([]ArchivedTelegram, error) {
	return db.queryTelegrams(
		`SELECT received_unix_nanos, raw, speed, angle, torque, current
		 FROM telegrams WHERE session_id = ? ORDER BY telegram_id`,
		sessionID,
	)
}

// UndrainedTelegrams returns the telegrams archived after the last drain of
// a session. Their linearity points are not part of the session history.
func (db *DB) UndrainedTelegrams(sessionID string) ([]ArchivedTelegram, error) {
	return db.queryTelegrams(
		`SELECT t.received_unix_nanos, t.raw, t.speed, t.angle, t.torque, t.current
		 FROM telegrams t JOIN sessions s ON s.session_id = t.session_id
		 WHERE t.session_id = ? AND t.telegram_id > s.drained_telegram_id
		 ORDER BY t.telegram_id`,
		sessionID,
	)
}

func (db *DB) queryTelegrams(query string, args ...any) ([]ArchivedTelegram, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ArchivedTelegram
	for rows.Next() {
		var (
			received int64
			t        ArchivedTelegram
			current  sql.NullFloat64
		)
		if err := rows.Scan(&received, &t.Raw, &t.Sample.Speed, &t.Sample.Angle, &t.Sample.Torque, &current); err != nil {
			return nil, err
		}
		t.ReceivedAt = time.Unix(0, received)
		if current.Valid {
			t.Sample.Current = current.Float64
			t.Sample.HasCurrent = true
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// RecordPoints appends linearity points to the session history in a
// single transaction.
func (db *DB) RecordPoints(sessionID string, at time.Time, points eps.BandPoints) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertPoints(tx, sessionID, at, points); err != nil {
		return err
	}
	return tx.Commit()
}

// RecordDrain appends the points of a drained evaluation and marks every
// telegram archived so far as drained, in one transaction.
func (db *DB) RecordDrain(sessionID string, at time.Time, points eps.BandPoints) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertPoints(tx, sessionID, at, points); err != nil {
		return err
	}
	res, err := tx.Exec(
		`UPDATE sessions SET drained_telegram_id = (
		   SELECT COALESCE(MAX(telegram_id), 0) FROM telegrams WHERE session_id = ?
		 ) WHERE session_id = ?`,
		sessionID, sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark drain: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNoSession, sessionID)
	}
	return tx.Commit()
}

func insertPoints(tx *sql.Tx, sessionID string, at time.Time, points eps.BandPoints) error {
	stmt, err := tx.Prepare(
		`INSERT INTO linearity_points (session_id, band, interval_len, ratio, recorded_unix_nanos)
		 VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for band, pts := range points {
		for _, p := range pts {
			if _, err := stmt.Exec(sessionID, band, p.Interval, p.Ratio, at.UnixNano()); err != nil {
				return fmt.Errorf("failed to record %s point: %w", eps.Band(band), err)
			}
		}
	}
	return nil
}

// LinearityHistory returns every recorded point of a session grouped by
// band, oldest first.
func (db *DB) LinearityHistory(sessionID string) (eps.BandPoints, error) {
	var history eps.BandPoints
	rows, err := db.Query(
		`SELECT band, interval_len, ratio FROM linearity_points
		 WHERE session_id = ? ORDER BY point_id`,
		sessionID,
	)
	if err != nil {
		return history, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			band int
			p    eps.LinearityPoint
		)
		if err := rows.Scan(&band, &p.Interval, &p.Ratio); err != nil {
			return history, err
		}
		if band < 0 || band >= eps.NumBands {
			return history, fmt.Errorf("invalid band %d in linearity history", band)
		}
		history[band] = append(history[band], p)
	}
	return history, rows.Err()
}

// Recorder binds a DB to one session.
type Recorder struct {
	db        *DB
	sessionID string
	now       func() time.Time
}

// NewRecorder returns a Recorder writing into sessionID.
func NewRecorder(db *DB, sessionID string) *Recorder {
	return &Recorder{db: db, sessionID: sessionID, now: time.Now}
}

// SessionID returns the session the recorder writes into.
func (r *Recorder) SessionID() string { return r.sessionID }

func (r *Recorder) RecordTelegrams(batch []eps.Telegram) error {
	return r.db.RecordTelegrams(r.sessionID, batch)
}

func (r *Recorder) RecordDrain(points eps.BandPoints) error {
	return r.db.RecordDrain(r.sessionID, r.now(), points)
}
