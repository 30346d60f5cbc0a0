package model

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/abhisek/predinator/internal/answer"
	"github.com/abhisek/predinator/internal/cart"
	"github.com/abhisek/predinator/internal/catalog"
	"github.com/abhisek/predinator/internal/matrix"
)

var (
	ErrModelUnavailable     = errors.New("model unavailable")
	ErrInsufficientFeatures = errors.New("no questions match matrix columns")
	ErrInsufficientClasses  = errors.New("need at least 2 distinct subjects")
	ErrCorruptTraversal     = errors.New("corrupt traversal")
	ErrNotALeaf             = errors.New("node is not a leaf")
	ErrDecodeError          = errors.New("cannot decode class")
	ErrInvalidArtifact      = errors.New("invalid model artifact")
)

// Artifacts persists and restores trained snapshots.
type Artifacts interface {
	Save(ctx context.Context, s *Snapshot) error
	Load(ctx context.Context) (*Snapshot, error)
}

// Options configures a Model.
type Options struct {
	Params    cart.Params
	Artifacts Artifacts
	Logger    zerolog.Logger
	Now       func() time.Time
}

// DefaultOptions returns default tree parameters with no persistence.
func DefaultOptions() Options {
	return Options{
		Params: cart.DefaultParams(),
		Logger: zerolog.Nop(),
		Now:    time.Now,
	}
}

// TrainStats describes a successful training run.
type TrainStats struct {
	Version  string
	Features int
	Samples  int
	Classes  int
	Nodes    int
	Depth    int
	Duration time.Duration
}

// Model owns the live snapshot. Reads are lock-free; Train and Load replace the
// snapshot with a single pointer swap and never touch it on failure.
type Model struct {
	opts    Options
	current atomic.Pointer[Snapshot]
	trainMu sync.Mutex
}

// New returns a model with no snapshot.
func New(opts Options) *Model {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Model{opts: opts}
}

// Current returns the live snapshot, or nil before the first train or load.
func (m *Model) Current() *Snapshot {
	return m.current.Load()
}

// Ready reports whether a snapshot is installed.
func (m *Model) Ready() bool {
	return m.current.Load() != nil
}

// Params returns the tree parameters used by Train.
func (m *Model) Params() cart.Params {
	return m.opts.Params
}

// FeatureColumns returns the attribute IDs that are both catalog questions
// and matrix columns, in catalog order.
func FeatureColumns(t *matrix.Table, questions []catalog.Question) []string {
	var cols []string
	seen := make(map[string]bool, len(questions))
	for _, q := range questions {
		if seen[q.AttributeID] || !t.HasColumn(q.AttributeID) {
			continue
		}
		seen[q.AttributeID] = true
		cols = append(cols, q.AttributeID)
	}
	return cols
}

// Train fits a new tree over table and questions. On success the new snapshot
// is installed and then persisted; a persist failure is logged and does not
// fail the train. On any error the live snapshot is left exactly as it was.
func (m *Model) Train(ctx context.Context, t *matrix.Table, questions []catalog.Question) (*Snapshot, TrainStats, error) {
	m.trainMu.Lock()
	defer m.trainMu.Unlock()

	log := m.opts.Logger
	snap, stats, err := m.build(t, questions)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		ev := log.Error().Err(err)
		if prev := m.current.Load(); prev != nil {
			ev = ev.Str("kept_version", prev.Version)
		}
		ev.Msg("training failed, previous model kept")
		return nil, TrainStats{}, err
	}

	m.current.Store(snap)
	log.Info().
		Str("version", stats.Version).
		Int("features", stats.Features).
		Int("samples", stats.Samples).
		Int("classes", stats.Classes).
		Int("nodes", stats.Nodes).
		Int("depth", stats.Depth).
		Dur("duration", stats.Duration).
		Msg("model trained")

	if m.opts.Artifacts != nil {
		if perr := m.opts.Artifacts.Save(ctx, snap); perr != nil {
			log.Warn().Err(perr).Str("version", snap.Version).Msg("persist model artifacts")
		}
	}
	return snap, stats, nil
}

// build assembles a complete candidate snapshot without touching shared state.
func (m *Model) build(t *matrix.Table, questions []catalog.Question) (*Snapshot, TrainStats, error) {
	if t == nil {
		return nil, TrainStats{}, fmt.Errorf("train: %w", matrix.ErrMatrixUnavailable)
	}
	start := m.opts.Now()

	features := FeatureColumns(t, questions)
	if len(features) == 0 {
		return nil, TrainStats{}, ErrInsufficientFeatures
	}
	if t.DistinctNames() < 2 {
		return nil, TrainStats{}, fmt.Errorf("%w: have %d", ErrInsufficientClasses, t.DistinctNames())
	}

	names := t.Names()
	enc := FitLabels(names)
	y := make([]int, len(names))
	for i, n := range names {
		y[i], _ = enc.Encode(n)
	}
	X := imputeUnknown(t.Features(features))

	tree, err := cart.Fit(X, y, enc.Len(), m.opts.Params)
	if err != nil {
		return nil, TrainStats{}, fmt.Errorf("fit tree: %w", err)
	}

	qs := make([]catalog.Question, len(questions))
	copy(qs, questions)
	now := m.opts.Now()
	snap := newSnapshot(uuid.NewString(), now.UTC(), tree, enc, features, qs)
	stats := TrainStats{
		Version:  snap.Version,
		Features: len(features),
		Samples:  len(names),
		Classes:  enc.Len(),
		Nodes:    len(tree.Nodes),
		Depth:    tree.Depth(),
		Duration: now.Sub(start),
	}
	return snap, stats, nil
}

// imputeUnknown trains unknown values as "no". Traversal still routes an
// unknown answer right; this only decides where unknown training rows land.
func imputeUnknown(X [][]float64) [][]float64 {
	fill := answer.No.Float()
	for _, row := range X {
		for j, v := range row {
			if math.IsNaN(v) {
				row[j] = fill
			}
		}
	}
	return X
}

// Load restores the persisted snapshot. On failure the live snapshot is left
// unchanged, including staying nil if nothing was ever loaded.
func (m *Model) Load(ctx context.Context) (*Snapshot, error) {
	if m.opts.Artifacts == nil {
		return nil, fmt.Errorf("load model: %w", ErrModelUnavailable)
	}
	m.trainMu.Lock()
	defer m.trainMu.Unlock()

	snap, err := m.opts.Artifacts.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	m.current.Store(snap)
	m.opts.Logger.Info().
		Str("version", snap.Version).
		Int("nodes", len(snap.Tree.Nodes)).
		Int("classes", snap.Encoder.Len()).
		Msg("model loaded")
	return snap, nil
}
