package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// EventKind names a learning event.
type EventKind string

const (
	EventSubjectLearned EventKind = "subject_learned"
	EventQuestionAdded  EventKind = "question_added"
	EventRetrain        EventKind = "retrain"
)

// LearningEvent records one change to the knowledge base or model.
type LearningEvent struct {
	Sequence     int64
	Kind         EventKind
	Subject      string
	AttributeID  string
	ModelVersion string
	Success      bool
	Detail       string
	CreatedAt    time.Time
}

// EventRepo is the append-only learning event log.
type EventRepo struct {
	db  *sql.DB
	seq *sequenceCounter
	now func() time.Time
}

// Append assigns the next global sequence number and a timestamp to ev and
// stores it.
func (r *EventRepo) Append(ctx context.Context, ev LearningEvent) (LearningEvent, error) {
	seq, err := r.seq.Next(ctx)
	if err != nil {
		return LearningEvent{}, err
	}
	ev.Sequence = seq
	ev.CreatedAt = r.now().UTC()

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO learning_events (sequence, kind, subject, attribute_id, model_version, success, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.Sequence, string(ev.Kind), ev.Subject, ev.AttributeID, ev.ModelVersion, ev.Success, ev.Detail,
		ev.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return LearningEvent{}, fmt.Errorf("append event: %w", err)
	}
	return ev, nil
}

// Recent returns up to limit events, newest first. limit <= 0 returns all.
func (r *EventRepo) Recent(ctx context.Context, limit int) ([]LearningEvent, error) {
	q := `SELECT sequence, kind, subject, attribute_id, model_version, success, detail, created_at
		FROM learning_events ORDER BY sequence DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []LearningEvent
	for rows.Next() {
		var (
			ev      LearningEvent
			kind    string
			created string
		)
		if err := rows.Scan(&ev.Sequence, &kind, &ev.Subject, &ev.AttributeID, &ev.ModelVersion, &ev.Success, &ev.Detail, &created); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Kind = EventKind(kind)
		ev.CreatedAt, err = time.Parse(timeLayout, created)
		if err != nil {
			return nil, fmt.Errorf("parse event time: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// sequenceCounter manages the global monotonic sequence number for events.
// A single increasing sequence gives a total order that survives restarts and
// never reuses numbers, even if rows are later pruned.
//
// The mutex serializes within the process; the RETURNING clause makes the
// increment atomic at the database level.
type sequenceCounter struct {
	mu sync.Mutex
	db *sql.DB
}

// newSequenceCounter creates a counter and ensures the tracking table exists.
func newSequenceCounter(db *sql.DB) (*sequenceCounter, error) {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS global_sequence (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		next_val INTEGER NOT NULL DEFAULT 1
	)`)
	if err != nil {
		return nil, fmt.Errorf("create sequence table: %w", err)
	}

	_, err = db.Exec(`INSERT OR IGNORE INTO global_sequence (id, next_val) VALUES (1, 1)`)
	if err != nil {
		return nil, fmt.Errorf("seed sequence: %w", err)
	}

	return &sequenceCounter{db: db}, nil
}

// Next atomically returns the next sequence number and increments the counter.
func (sc *sequenceCounter) Next(ctx context.Context) (int64, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	var seq int64
	err := sc.db.QueryRowContext(ctx,
		`UPDATE global_sequence SET next_val = next_val + 1 WHERE id = 1 RETURNING next_val - 1`,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	return seq, nil
}
