package tape

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"
)

// Run represents one bounded recording session.
type Run struct {
	ID        int64
	StartTime time.Time

	// EndTime is the zero value while the run is still open.
	EndTime time.Time
}

// Open reports whether the run has not been finalised yet.
func (r Run) Open() bool {
	return r.EndTime.IsZero()
}

// Message represents one captured MQTT publish event.
type Message struct {
	ID        int64
	RunID     int64
	Timestamp time.Time
	Topic     string
	Payload   []byte
}

// Store provides access to the runs and messages tables.
// It is the only component that touches the on-disk database.
//
// The store is single-writer: the recorder's message callback is the sole
// writer while recording, and playback only reads. Callers must not share
// one database file between two active engines.
type Store struct {
	db *sql.DB
}

// NewStore creates a store on top of an open database connection.
// The runs and messages tables must have been created via migrations.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateRun inserts a new open run and returns its id.
//
// Run ids are assigned by SQLite (AUTOINCREMENT) and are strictly
// increasing across the lifetime of the database file.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - startTime: Wall-clock start of the recording session
//
// Returns:
//   - int64: The new run id
//   - error: If the insert fails
func (s *Store) CreateRun(ctx context.Context, startTime time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"INSERT INTO runs (start_time) VALUES (?)",
		unixSeconds(startTime),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("resolving run id: %w", err)
	}

	return id, nil
}

// CloseRun finalises a run by setting its end time.
//
// A run is closed at most once. Closing an already-closed run returns
// ErrRunClosed and leaves the stored end time untouched; closing an
// unknown run returns ErrRunNotFound.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - runID: The run to finalise
//   - endTime: Wall-clock end of the recording session
//
// Returns:
//   - error: nil on success, ErrRunClosed, ErrRunNotFound, or a wrapped write error
func (s *Store) CloseRun(ctx context.Context, runID int64, endTime time.Time) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE runs SET end_time = ? WHERE id = ? AND end_time IS NULL",
		unixSeconds(endTime), runID,
	)
	if err != nil {
		return fmt.Errorf("closing run %d: %w", runID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("closing run %d: %w", runID, err)
	}
	if affected == 1 {
		return nil
	}

	// Nothing updated: distinguish "already closed" from "no such run".
	var exists int
	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM runs WHERE id = ?", runID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking run %d: %w", runID, err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: id %d", ErrRunNotFound, runID)
	}
	return fmt.Errorf("%w: id %d", ErrRunClosed, runID)
}

// AppendMessage inserts one captured message for a run.
//
// Called from the recorder's message callback; the insert is a single
// parameterized statement, so a failed append leaves no partial row.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - runID: The run that captured the message
//   - timestamp: Arrival time of the message
//   - topic: Concrete topic as received (never a wildcard filter)
//   - payload: Raw payload bytes, stored without transformation
//
// Returns:
//   - int64: The new message id
//   - error: If the insert fails (including unknown run, via FK enforcement)
func (s *Store) AppendMessage(ctx context.Context, runID int64, timestamp time.Time, topic string, payload []byte) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"INSERT INTO messages (run_id, timestamp, topic, payload) VALUES (?, ?, ?, ?)",
		runID, unixSeconds(timestamp), topic, payload,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting message for run %d: %w", runID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("resolving message id: %w", err)
	}

	return id, nil
}

// GetRun returns a single run by id.
//
// Returns:
//   - *Run: The run, with a zero EndTime if still open
//   - error: ErrRunNotFound if the run does not exist
func (s *Store) GetRun(ctx context.Context, runID int64) (*Run, error) {
	var run Run
	var start float64
	var end sql.NullFloat64

	err := s.db.QueryRowContext(ctx,
		"SELECT id, start_time, end_time FROM runs WHERE id = ?", runID,
	).Scan(&run.ID, &start, &end)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("querying run %d: %w", runID, err)
	}

	run.StartTime = fromUnixSeconds(start)
	if end.Valid {
		run.EndTime = fromUnixSeconds(end.Float64)
	}
	return &run, nil
}

// LatestRunID resolves the most recent run (greatest id).
//
// Returns:
//   - int64: The latest run id
//   - error: ErrNoRuns if no run has ever been recorded
func (s *Store) LatestRunID(ctx context.Context) (int64, error) {
	var id sql.NullInt64
	err := s.db.QueryRowContext(ctx, "SELECT MAX(id) FROM runs").Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("resolving latest run: %w", err)
	}
	if !id.Valid {
		return 0, ErrNoRuns
	}
	return id.Int64, nil
}

// ReadRunMessages returns all messages for a run in replay order.
//
// Order is (timestamp, id) ascending; the id tie-break guarantees a
// deterministic total order even when timestamps collide. A run with no
// messages (or an unknown run id) yields an empty slice, not an error.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - runID: The run to read
//
// Returns:
//   - []Message: Messages in replay order
//   - error: If the query fails
func (s *Store) ReadRunMessages(ctx context.Context, runID int64) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, timestamp, topic, payload
		 FROM messages
		 WHERE run_id = ?
		 ORDER BY timestamp ASC, id ASC`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying messages for run %d: %w", runID, err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		var ts float64
		if err := rows.Scan(&m.ID, &m.RunID, &ts, &m.Topic, &m.Payload); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}
		m.Timestamp = fromUnixSeconds(ts)
		messages = append(messages, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages for run %d: %w", runID, err)
	}
	return messages, nil
}

// CountRunMessages returns the number of messages captured for a run.
func (s *Store) CountRunMessages(ctx context.Context, runID int64) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM messages WHERE run_id = ?", runID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting messages for run %d: %w", runID, err)
	}
	return count, nil
}

// unixSeconds converts a time to fractional Unix seconds for storage.
// Sub-second precision is what makes inter-message gaps reproducible.
func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// fromUnixSeconds converts stored fractional Unix seconds back to a time.
func fromUnixSeconds(f float64) time.Time {
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*float64(time.Second)))
}
