package store

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Mode is the reroll mode a session ran in.
type Mode string

const (
	// ModeGeneral succeeds on the qualifying card count alone.
	ModeGeneral Mode = "general"
	// ModeTarget also requires a target character in a qualifying card.
	ModeTarget Mode = "target"
)

// Session represents one run of the reroll loop.
type Session struct {
	ID          string     `json:"id"`
	Mode        Mode       `json:"mode"`
	MinFiveStar int        `json:"min_five_star"`
	Targets     []string   `json:"targets"`
	Attempts    int        `json:"attempts"`
	Succeeded   bool       `json:"succeeded"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
}

// SessionRepository provides CRUD operations for sessions.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Create inserts a new session. An empty ID is filled with a fresh UUID.
func (r *SessionRepository) Create(sess *Session) error {
	if sess.ID == "" {
		sess.ID = uuid.New().String()
	}
	sess.StartedAt = time.Now()

	_, err := r.db.Exec(
		`INSERT INTO sessions (id, mode, min_five_star, targets, started_at)
		 VALUES (?, ?, ?, ?, ?)`,
		sess.ID, string(sess.Mode), sess.MinFiveStar, strings.Join(sess.Targets, ","), sess.StartedAt,
	)
	return err
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	row := r.db.QueryRow(
		`SELECT id, mode, min_five_star, targets, attempts, succeeded, started_at, ended_at
		 FROM sessions WHERE id = ?`,
		id,
	)

	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sess, nil
}

// List retrieves all sessions, newest first.
func (r *SessionRepository) List() ([]*Session, error) {
	rows, err := r.db.Query(
		`SELECT id, mode, min_five_star, targets, attempts, succeeded, started_at, ended_at
		 FROM sessions ORDER BY started_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

// Finish stamps the end time of a session.
func (r *SessionRepository) Finish(id string) error {
	result, err := r.db.Exec(`UPDATE sessions SET ended_at = ? WHERE id = ?`, time.Now(), id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes a session and its attempts.
func (r *SessionRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	sess := &Session{}
	var mode, targets string
	var ended sql.NullTime

	err := row.Scan(&sess.ID, &mode, &sess.MinFiveStar, &targets, &sess.Attempts, &sess.Succeeded, &sess.StartedAt, &ended)
	if err != nil {
		return nil, err
	}

	sess.Mode = Mode(mode)
	if targets != "" {
		sess.Targets = strings.Split(targets, ",")
	}
	if ended.Valid {
		t := ended.Time
		sess.EndedAt = &t
	}
	return sess, nil
}
