package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/abhisek/predinator/internal/answer"
	"github.com/abhisek/predinator/internal/catalog"
	"github.com/abhisek/predinator/internal/engine"
	"github.com/abhisek/predinator/internal/learning"
	"github.com/abhisek/predinator/internal/matrix"
	"github.com/abhisek/predinator/internal/metrics"
	"github.com/abhisek/predinator/internal/model"
	"github.com/abhisek/predinator/internal/store"
)

// ErrNoTrainingData means no model can be loaded or trained from the current
// data. Operators fix it by seeding or adding questions and subjects.
var ErrNoTrainingData = errors.New("no training data available")

// InitSource says where the model came from at startup.
type InitSource string

const (
	SourceLoaded  InitSource = "loaded"
	SourceTrained InitSource = "trained"
	SourceNone    InitSource = "none"
)

// InitResult reports the outcome of Init.
type InitResult struct {
	Source  InitSource
	Version string
	Err     error
}

// EventLog records learning events. *store.EventRepo implements it.
type EventLog interface {
	Append(ctx context.Context, ev store.LearningEvent) (store.LearningEvent, error)
}

// Deps are the collaborators of a Service. Events may be nil.
type Deps struct {
	Catalog catalog.Store
	Matrix  matrix.Store
	Model   *model.Model
	Events  EventLog
	Logger  zerolog.Logger
}

// Options configures a Service.
type Options struct {
	// ModelDir is the artifact directory watched by Watch.
	ModelDir string
	// WatchDebounce collapses bursts of artifact writes into one reload.
	WatchDebounce time.Duration
}

// DefaultOptions returns the default service options.
func DefaultOptions() Options {
	return Options{WatchDebounce: 200 * time.Millisecond}
}

// Service ties the model, the knowledge base and learning together. Learning
// operations and retrains are serialised by a single mutex; games read the
// model lock-free.
type Service struct {
	deps    Deps
	opts    Options
	log     zerolog.Logger
	learner *learning.Learner

	mu    sync.Mutex
	group singleflight.Group
}

var _ engine.Source = (*Service)(nil)

// New creates a Service. It does not touch the model; call Init or Ready.
func New(d Deps, opts Options) *Service {
	if opts.WatchDebounce <= 0 {
		opts.WatchDebounce = DefaultOptions().WatchDebounce
	}
	s := &Service{
		deps: d,
		opts: opts,
		log:  d.Logger,
	}
	s.learner = learning.New(learning.Deps{
		Catalog: d.Catalog,
		Matrix:  d.Matrix,
		Trainer: recordingTrainer{s},
		Logger:  d.Logger,
	})
	return s
}

// Init loads persisted artifacts, falling back to training from the current
// data. A failure leaves the service without a model; Ready retries later.
func (s *Service) Init(ctx context.Context) InitResult {
	snap, err := s.deps.Model.Load(ctx)
	if err == nil {
		s.log.Info().Str("version", snap.Version).Msg("model loaded")
		return InitResult{Source: SourceLoaded, Version: snap.Version}
	}
	s.log.Debug().Err(err).Msg("no usable artifacts, training")

	snap, _, err = s.Retrain(ctx)
	if err != nil {
		return InitResult{Source: SourceNone, Err: err}
	}
	return InitResult{Source: SourceTrained, Version: snap.Version}
}

// Ready returns the live snapshot, loading or training one first if needed.
// Concurrent callers share a single attempt.
func (s *Service) Ready(ctx context.Context) (*model.Snapshot, error) {
	if snap := s.deps.Model.Current(); snap != nil {
		return snap, nil
	}
	v, err, _ := s.group.Do("ready", func() (any, error) {
		if snap := s.deps.Model.Current(); snap != nil {
			return snap, nil
		}
		if snap, err := s.deps.Model.Load(ctx); err == nil {
			return snap, nil
		}
		snap, _, err := s.Retrain(ctx)
		return snap, err
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Snapshot), nil
}

// Snapshot implements engine.Source.
func (s *Service) Snapshot(ctx context.Context) (*model.Snapshot, error) {
	snap, err := s.Ready(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrModelUnavailable, err)
	}
	return snap, nil
}

// Current returns the live snapshot without loading, or nil.
func (s *Service) Current() *model.Snapshot {
	return s.deps.Model.Current()
}

// NewGame starts a game on the live snapshot.
func (s *Service) NewGame(ctx context.Context) (*engine.Engine, error) {
	e := engine.New(s, s.log)
	if err := e.Start(ctx); err != nil {
		return nil, err
	}
	metrics.GamesStarted.Inc()
	return e, nil
}

// ResumeGame restores a saved game. A stale game comes back concluded with
// its path, together with engine.ErrStaleGame.
func (s *Service) ResumeGame(ctx context.Context, st engine.GameState) (*engine.Engine, error) {
	e, err := engine.Restore(ctx, s, st, s.log)
	if errors.Is(err, engine.ErrStaleGame) {
		metrics.StaleGames.Inc()
	}
	return e, err
}

// Answer feeds text to e and counts accepted answers.
func (s *Service) Answer(e *engine.Engine, text string) error {
	if err := e.ProcessAnswer(text); err != nil {
		return err
	}
	path := e.Path()
	label := "dontknow"
	switch path[len(path)-1].Answer {
	case answer.Yes:
		label = "yes"
	case answer.No:
		label = "no"
	}
	metrics.Answers.WithLabelValues(label).Inc()
	return nil
}

// Guess asks e for its final guess.
func (s *Service) Guess(e *engine.Engine) (model.Guess, error) {
	g, err := e.MakeGuess()
	if err == nil {
		metrics.Guesses.WithLabelValues("made").Inc()
	}
	return g, err
}

// RecordOutcome counts whether the player confirmed a guess.
func (s *Service) RecordOutcome(correct bool) {
	if correct {
		metrics.Guesses.WithLabelValues("correct").Inc()
		return
	}
	metrics.Guesses.WithLabelValues("wrong").Inc()
}

// Questions returns the current catalog.
func (s *Service) Questions() ([]catalog.Question, error) {
	return s.deps.Catalog.Load()
}

// Subjects returns the known subject names in matrix order.
func (s *Service) Subjects(ctx context.Context) ([]string, error) {
	t, err := s.deps.Matrix.Load(ctx)
	if err != nil {
		return nil, err
	}
	return t.Names(), nil
}

// KnowsSubject reports whether name, trimmed, already has a matrix row.
func (s *Service) KnowsSubject(ctx context.Context, name string) (bool, error) {
	t, err := s.deps.Matrix.Load(ctx)
	if err != nil {
		return false, err
	}
	return t.HasSubject(strings.TrimSpace(name)), nil
}

// Retrain fits a new model from the stored catalog and matrix.
func (s *Service) Retrain(ctx context.Context) (*model.Snapshot, model.TrainStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	questions, err := s.deps.Catalog.Load()
	if err != nil {
		return nil, model.TrainStats{}, s.noData(err)
	}
	table, err := s.deps.Matrix.Load(ctx)
	if errors.Is(err, matrix.ErrMatrixUnavailable) {
		return nil, model.TrainStats{}, s.noData(err)
	}
	if err != nil {
		return nil, model.TrainStats{}, fmt.Errorf("load matrix: %w", err)
	}
	return s.train(ctx, table, questions)
}

// LearnNewSubject records a new subject and retrains. See
// learning.Learner.LearnNewSubject.
func (s *Service) LearnNewSubject(ctx context.Context, name string, pathAnswers map[string]answer.Value, full map[string]string) (learning.LearnResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.learner.LearnNewSubject(ctx, name, pathAnswers, full)
	if res.Saved {
		metrics.SubjectsLearned.Inc()
		ev := store.LearningEvent{Kind: store.EventSubjectLearned, Subject: name, Success: err == nil}
		if res.Snapshot != nil {
			ev.ModelVersion = res.Snapshot.Version
		}
		if err != nil {
			ev.Detail = err.Error()
		}
		s.record(ctx, ev)
	}
	return res, err
}

// AddQuestion adds a distinguishing question. See
// learning.Learner.AddQuestionThenPrepareLearn.
func (s *Service) AddQuestion(ctx context.Context, req learning.AddQuestionRequest) (*learning.PreparedLearn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prep, err := s.learner.AddQuestionThenPrepareLearn(ctx, req)
	if err != nil {
		return nil, err
	}
	metrics.QuestionsAdded.Inc()
	s.record(ctx, store.LearningEvent{
		Kind:        store.EventQuestionAdded,
		Subject:     prep.SubjectName,
		AttributeID: prep.NewQuestion.AttributeID,
		Success:     true,
		Detail:      "distinguishes from " + prep.GuessedName,
	})
	return prep, nil
}

// train runs one fit. Callers hold s.mu.
func (s *Service) train(ctx context.Context, t *matrix.Table, questions []catalog.Question) (*model.Snapshot, model.TrainStats, error) {
	snap, stats, err := s.deps.Model.Train(ctx, t, questions)
	metrics.ObserveTrain(stats.Duration, stats.Nodes, err)

	ev := store.LearningEvent{Kind: store.EventRetrain, Success: err == nil}
	if err != nil {
		ev.Detail = err.Error()
	} else {
		ev.ModelVersion = snap.Version
		ev.Detail = fmt.Sprintf("%d subjects, %d features, %d nodes", stats.Samples, stats.Features, stats.Nodes)
	}
	s.record(ctx, ev)

	if errors.Is(err, model.ErrInsufficientFeatures) || errors.Is(err, model.ErrInsufficientClasses) {
		return nil, stats, s.noData(err)
	}
	return snap, stats, err
}

func (s *Service) noData(err error) error {
	s.log.Error().Err(err).Msg("no training data, run `predinator seed` or teach it some subjects")
	return fmt.Errorf("%w: %w", ErrNoTrainingData, err)
}

func (s *Service) record(ctx context.Context, ev store.LearningEvent) {
	if s.deps.Events == nil {
		return
	}
	if _, err := s.deps.Events.Append(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("kind", string(ev.Kind)).Msg("record learning event")
	}
}

// recordingTrainer routes the learner's retrains through Service.train.
type recordingTrainer struct {
	s *Service
}

func (r recordingTrainer) Train(ctx context.Context, t *matrix.Table, questions []catalog.Question) (*model.Snapshot, model.TrainStats, error) {
	return r.s.train(ctx, t, questions)
}
