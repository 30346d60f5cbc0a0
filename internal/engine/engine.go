package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/abhisek/predinator/internal/answer"
	"github.com/abhisek/predinator/internal/catalog"
	"github.com/abhisek/predinator/internal/model"
)

var (
	// ErrNotActive is returned when an operation needs an active game.
	ErrNotActive = errors.New("game not active")

	// ErrAtLeaf is returned by ProcessAnswer when there is no question to answer.
	ErrAtLeaf = errors.New("no question at leaf, make a guess")

	// ErrCatalogDesync is returned when the tree asks about an attribute that
	// has no question.
	ErrCatalogDesync = errors.New("tree attribute has no question")

	// ErrStaleGame is returned when a restored game was played against a model
	// that has since been replaced.
	ErrStaleGame = errors.New("game started on a replaced model")
)

// Source supplies the live snapshot, making one ready if needed.
type Source interface {
	Snapshot(ctx context.Context) (*model.Snapshot, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (*model.Snapshot, error)

func (f SourceFunc) Snapshot(ctx context.Context) (*model.Snapshot, error) {
	return f(ctx)
}

// Static returns a Source that always yields snap.
func Static(snap *model.Snapshot) Source {
	return SourceFunc(func(context.Context) (*model.Snapshot, error) {
		if snap == nil {
			return nil, model.ErrModelUnavailable
		}
		return snap, nil
	})
}

// Engine walks one game through the tree. It pins the snapshot it started on;
// retrains elsewhere do not affect it. An Engine is not safe for concurrent use.
type Engine struct {
	src     Source
	log     zerolog.Logger
	snap    *model.Snapshot
	version string
	phase   Phase
	cursor  int
	path    []Step
}

// New returns an engine in PhaseNotStarted.
func New(src Source, log zerolog.Logger) *Engine {
	return &Engine{src: src, log: log}
}

// Start begins a new game at the root of the live snapshot. If no model can be
// made ready the error is returned; a game in progress is concluded, path
// intact, so it cannot be answered after a failed restart.
func (e *Engine) Start(ctx context.Context) error {
	snap, err := e.src.Snapshot(ctx)
	if err == nil && snap == nil {
		err = model.ErrModelUnavailable
	}
	if err != nil {
		err = fmt.Errorf("start game: %w", err)
		if e.phase == PhaseActive {
			e.end(err)
		}
		return err
	}
	e.snap = snap
	e.version = snap.Version
	e.phase = PhaseActive
	e.cursor = model.RootNode
	e.path = nil
	return nil
}

// Restore rebuilds an engine from a persisted state. An active game recorded
// against a different model version comes back concluded, path intact, with
// ErrStaleGame. An active game whose path does not replay to its cursor comes
// back concluded with ErrCorruptTraversal.
func Restore(ctx context.Context, src Source, st GameState, log zerolog.Logger) (*Engine, error) {
	e := &Engine{
		src:     src,
		log:     log,
		version: st.ModelVersion,
		phase:   st.Phase(),
		cursor:  st.Cursor,
		path:    append([]Step(nil), st.Path...),
	}
	if e.phase != PhaseActive {
		return e, nil
	}

	snap, err := src.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("restore game: %w", err)
	}
	if snap == nil {
		return nil, fmt.Errorf("restore game: %w", model.ErrModelUnavailable)
	}
	if snap.Version != st.ModelVersion {
		e.phase = PhaseConcluded
		log.Info().Str("game_version", st.ModelVersion).Str("live_version", snap.Version).Msg("stale game concluded")
		return e, fmt.Errorf("%w: started on %s, live is %s", ErrStaleGame, st.ModelVersion, snap.Version)
	}
	e.snap = snap
	if err := e.replay(); err != nil {
		e.end(err)
		return e, err
	}
	return e, nil
}

// replay checks that the path walks from the root to the cursor.
func (e *Engine) replay() error {
	node := model.RootNode
	for i, st := range e.path {
		d, err := e.snap.NextDecision(node)
		if err != nil {
			return err
		}
		if d.Leaf || d.AttributeID != st.AttributeID {
			return fmt.Errorf("%w: step %d asks %q, tree asks %q", model.ErrCorruptTraversal, i, st.AttributeID, d.AttributeID)
		}
		if node, err = e.snap.Route(node, st.Answer); err != nil {
			return err
		}
	}
	if node != e.cursor {
		return fmt.Errorf("%w: path ends at node %d, cursor is %d", model.ErrCorruptTraversal, node, e.cursor)
	}
	return nil
}

// State returns the persistable state.
func (e *Engine) State() GameState {
	return GameState{
		Cursor:       e.cursor,
		Path:         append([]Step(nil), e.path...),
		Active:       e.phase == PhaseActive,
		Concluded:    e.phase == PhaseConcluded,
		ModelVersion: e.version,
	}
}

func (e *Engine) Phase() Phase {
	return e.phase
}

func (e *Engine) Active() bool {
	return e.phase == PhaseActive
}

func (e *Engine) Cursor() int {
	return e.cursor
}

// Path returns a copy of the answered steps.
func (e *Engine) Path() []Step {
	return append([]Step(nil), e.path...)
}

// PathAnswers returns the path keyed by attribute ID.
func (e *Engine) PathAnswers() map[string]answer.Value {
	return e.State().PathAnswers()
}

// Snapshot returns the pinned snapshot, nil before Start or after a stale restore.
func (e *Engine) Snapshot() *model.Snapshot {
	return e.snap
}

// NextQuestion returns the question at the cursor. leaf is true when there is
// no question to ask: the cursor is at a leaf, the game is not active, or the
// game was just ended because the tree and catalog disagree (err says why).
// Without an intervening ProcessAnswer it returns the same question each time.
func (e *Engine) NextQuestion() (q catalog.Question, leaf bool, err error) {
	if e.phase != PhaseActive {
		return catalog.Question{}, true, nil
	}
	d, err := e.snap.NextDecision(e.cursor)
	if err != nil {
		e.end(err)
		return catalog.Question{}, true, err
	}
	if d.Leaf {
		return catalog.Question{}, true, nil
	}
	q, ok := e.snap.Question(d.AttributeID)
	if !ok {
		err := fmt.Errorf("%w: %s", ErrCatalogDesync, d.AttributeID)
		e.end(err)
		return catalog.Question{}, true, err
	}
	return q, false, nil
}

// ProcessAnswer records text as the answer to the current question and moves
// the cursor. An invalid answer returns an error wrapping
// answer.ErrInvalidAnswer and changes nothing.
func (e *Engine) ProcessAnswer(text string) error {
	if e.phase != PhaseActive {
		return ErrNotActive
	}
	d, err := e.snap.NextDecision(e.cursor)
	if err != nil {
		e.end(err)
		return err
	}
	if d.Leaf {
		return ErrAtLeaf
	}
	v, err := answer.ToNumeric(text)
	if err != nil {
		return err
	}
	next, err := e.snap.Route(e.cursor, v)
	if err != nil {
		e.end(err)
		return err
	}
	e.path = append(e.path, Step{AttributeID: d.AttributeID, Answer: v})
	e.cursor = next
	return nil
}

// MakeGuess predicts the subject at the cursor. The game is concluded whether
// or not the prediction succeeds.
func (e *Engine) MakeGuess() (model.Guess, error) {
	if e.phase != PhaseActive {
		return model.Guess{}, ErrNotActive
	}
	e.phase = PhaseConcluded
	g, err := e.snap.PredictLeaf(e.cursor)
	if err != nil {
		e.log.Warn().Err(err).Int("cursor", e.cursor).Msg("guess failed")
		return model.Guess{}, err
	}
	return g, nil
}

func (e *Engine) end(err error) {
	e.phase = PhaseConcluded
	e.log.Warn().Err(err).Int("cursor", e.cursor).Str("version", e.version).Msg("game ended")
}
