package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/abhisek/predinator/internal/engine"
	"github.com/abhisek/predinator/internal/learning"
)

// SessionRepo persists game state between requests, keyed by game ID.
type SessionRepo struct {
	db  *sql.DB
	now func() time.Time
}

// Save upserts the state for id.
func (r *SessionRepo) Save(ctx context.Context, id string, st engine.GameState) error {
	data, err := st.Marshal()
	if err != nil {
		return fmt.Errorf("marshal game state: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO game_sessions (id, state, model_version, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET state = excluded.state,
			model_version = excluded.model_version, updated_at = excluded.updated_at`,
		id, string(data), st.ModelVersion, r.now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("save session %s: %w", id, err)
	}
	return nil
}

// Get returns the state for id, or ErrNotFound.
func (r *SessionRepo) Get(ctx context.Context, id string) (engine.GameState, error) {
	var data string
	err := r.db.QueryRowContext(ctx, `SELECT state FROM game_sessions WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.GameState{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return engine.GameState{}, fmt.Errorf("get session %s: %w", id, err)
	}
	return engine.UnmarshalGameState([]byte(data))
}

// SavePrepared stores the learning context returned when a question was added
// during game id, so a later learn call can reuse its path answers.
func (r *SessionRepo) SavePrepared(ctx context.Context, id string, p learning.PreparedLearn) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal prepared learn: %w", err)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE game_sessions SET prepared = ?, updated_at = ? WHERE id = ?`,
		string(data), r.now().UTC().Format(timeLayout), id,
	)
	if err != nil {
		return fmt.Errorf("save prepared %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return nil
}

// Prepared returns the stored learning context for id, or nil if no question
// was added during that game.
func (r *SessionRepo) Prepared(ctx context.Context, id string) (*learning.PreparedLearn, error) {
	var data sql.NullString
	err := r.db.QueryRowContext(ctx, `SELECT prepared FROM game_sessions WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get prepared %s: %w", id, err)
	}
	if !data.Valid {
		return nil, nil
	}
	var p learning.PreparedLearn
	if err := json.Unmarshal([]byte(data.String), &p); err != nil {
		return nil, fmt.Errorf("decode prepared %s: %w", id, err)
	}
	return &p, nil
}

// Delete removes the state for id. Deleting a missing session is not an error.
func (r *SessionRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM game_sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

// PruneOlderThan deletes sessions last saved before cutoff and returns how
// many were removed.
func (r *SessionRepo) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM game_sessions WHERE updated_at < ?`, cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	return res.RowsAffected()
}
