package store

import (
	"database/sql"
	"errors"
	"time"
)

// DefaultListLimit caps List when no limit is given.
const DefaultListLimit = 100

// Action is one journaled gesture action.
type Action struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Kind      string    `json:"kind"`
	X         int       `json:"x"`
	Y         int       `json:"y"`
	DY        float64   `json:"dy"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}

// ActionRepository provides access to journaled actions.
type ActionRepository struct {
	db *sql.DB
}

// Actions returns the action repository for this store.
func (s *Store) Actions() *ActionRepository {
	return &ActionRepository{db: s.db}
}

// Record inserts a and fills in its ID. A zero CreatedAt is set to now.
func (r *ActionRepository) Record(a *Action) error {
	if a.SessionID == "" {
		return errors.New("action has no session")
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	a.CreatedAt = a.CreatedAt.UTC()

	result, err := r.db.Exec(
		`INSERT INTO actions (session_id, kind, x, y, dy, state, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.SessionID, a.Kind, a.X, a.Y, a.DY, a.State, a.CreatedAt,
	)
	if err != nil {
		return err
	}

	a.ID, err = result.LastInsertId()
	return err
}

// List returns the most recent actions, newest first. limit <= 0 means
// DefaultListLimit.
func (r *ActionRepository) List(limit int) ([]*Action, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := r.db.Query(
		`SELECT id, session_id, kind, x, y, dy, state, created_at
		 FROM actions ORDER BY created_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []*Action
	for rows.Next() {
		a := &Action{}
		if err := rows.Scan(&a.ID, &a.SessionID, &a.Kind, &a.X, &a.Y, &a.DY, &a.State, &a.CreatedAt); err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return actions, nil
}

// CountByKind returns how many actions of each kind a session produced.
func (r *ActionRepository) CountByKind(sessionID string) (map[string]int, error) {
	rows, err := r.db.Query(
		`SELECT kind, COUNT(*) FROM actions WHERE session_id = ? GROUP BY kind`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		counts[kind] = n
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return counts, nil
}
