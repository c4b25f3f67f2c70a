package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Attempt represents one evaluated frame of a session.
type Attempt struct {
	ID            string        `json:"id"`
	SessionID     string        `json:"session_id"`
	Number        int           `json:"number"`
	FiveStarCount int           `json:"five_star_count"`
	Required      int           `json:"required"`
	Columns       []float64     `json:"columns"`
	TargetName    string        `json:"target_name,omitempty"`
	Success       bool          `json:"success"`
	Almost        bool          `json:"almost"`
	Message       string        `json:"message"`
	Snapshot      string        `json:"snapshot,omitempty"`
	Duration      time.Duration `json:"duration_ns"`
	CreatedAt     time.Time     `json:"created_at"`
}

// AttemptRepository provides operations for session attempts.
type AttemptRepository struct {
	db *sql.DB
}

// Attempts returns the attempt repository for this store.
func (s *Store) Attempts() *AttemptRepository {
	return &AttemptRepository{db: s.db}
}

// Create inserts an attempt and updates its session's counters in a single
// transaction. An empty ID is filled with a fresh UUID.
func (r *AttemptRepository) Create(a *Attempt) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	a.CreatedAt = time.Now()

	columns, err := json.Marshal(a.Columns)
	if err != nil {
		return err
	}
	if a.Columns == nil {
		columns = []byte("[]")
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO attempts (id, session_id, number, five_star_count, required, columns,
			target_name, success, almost, message, snapshot, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.SessionID, a.Number, a.FiveStarCount, a.Required, string(columns),
		a.TargetName, a.Success, a.Almost, a.Message, a.Snapshot, a.Duration.Milliseconds(), a.CreatedAt,
	)
	if err != nil {
		return err
	}

	result, err := tx.Exec(
		`UPDATE sessions SET attempts = attempts + 1, succeeded = MAX(succeeded, ?) WHERE id = ?`,
		a.Success, a.SessionID,
	)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

// GetByID retrieves an attempt by its ID.
func (r *AttemptRepository) GetByID(id string) (*Attempt, error) {
	row := r.db.QueryRow(
		`SELECT id, session_id, number, five_star_count, required, columns, target_name,
			success, almost, message, snapshot, duration_ms, created_at
		 FROM attempts WHERE id = ?`,
		id,
	)

	a, err := scanAttempt(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

// ListBySession retrieves the attempts of a session in attempt order.
// A limit of 0 returns all attempts; otherwise only the latest limit are kept.
func (r *AttemptRepository) ListBySession(sessionID string, limit int) ([]*Attempt, error) {
	query := `SELECT id, session_id, number, five_star_count, required, columns, target_name,
			success, almost, message, snapshot, duration_ms, created_at
		 FROM attempts WHERE session_id = ?`
	args := []any{sessionID}
	if limit > 0 {
		query = `SELECT * FROM (` + query + ` ORDER BY number DESC LIMIT ?) ORDER BY number`
		args = append(args, limit)
	} else {
		query += ` ORDER BY number`
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []*Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return attempts, nil
}

func scanAttempt(row scanner) (*Attempt, error) {
	a := &Attempt{}
	var columns string
	var durationMs int64

	err := row.Scan(&a.ID, &a.SessionID, &a.Number, &a.FiveStarCount, &a.Required, &columns,
		&a.TargetName, &a.Success, &a.Almost, &a.Message, &a.Snapshot, &durationMs, &a.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(columns), &a.Columns); err != nil {
		return nil, err
	}
	a.Duration = time.Duration(durationMs) * time.Millisecond
	return a, nil
}
