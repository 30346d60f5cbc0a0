package learning

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/abhisek/predinator/internal/answer"
	"github.com/abhisek/predinator/internal/catalog"
	"github.com/abhisek/predinator/internal/matrix"
	"github.com/abhisek/predinator/internal/model"
)

var (
	// ErrDuplicateSubject is returned when the subject already has a matrix row.
	ErrDuplicateSubject = errors.New("subject already known")

	// ErrEmptyName is returned for a blank subject name.
	ErrEmptyName = errors.New("subject name is empty")

	// ErrInvalidAttributeID is returned for attribute IDs the catalog file cannot hold.
	ErrInvalidAttributeID = errors.New("invalid attribute id")

	// ErrInvalidPrompt is returned for question text the catalog file cannot hold.
	ErrInvalidPrompt = errors.New("invalid question prompt")
)

// Trainer retrains the model. *model.Model implements it.
type Trainer interface {
	Train(ctx context.Context, t *matrix.Table, questions []catalog.Question) (*model.Snapshot, model.TrainStats, error)
}

// Deps are the collaborators of a Learner.
type Deps struct {
	Catalog catalog.Store
	Matrix  matrix.Store
	Trainer Trainer
	Logger  zerolog.Logger
}

// Learner adds subjects and questions. It does no locking of its own; callers
// serialise learning operations.
type Learner struct {
	catalog catalog.Store
	matrix  matrix.Store
	trainer Trainer
	log     zerolog.Logger
}

func New(d Deps) *Learner {
	return &Learner{
		catalog: d.Catalog,
		matrix:  d.Matrix,
		trainer: d.Trainer,
		log:     d.Logger,
	}
}

// LearnResult reports what LearnNewSubject did.
type LearnResult struct {
	// Saved is true once the new row has been persisted, even if training failed.
	Saved    bool
	Snapshot *model.Snapshot
	Stats    model.TrainStats
}

// LearnNewSubject adds a matrix row for name and retrains. full holds
// authoritative answer text per attribute and overrides pathAnswers; catalog
// attributes found in neither are unknown. Invalid answer text is rejected
// before anything is written. The matrix is saved before training, and the
// train error, if any, is returned as is.
func (l *Learner) LearnNewSubject(ctx context.Context, name string, pathAnswers map[string]answer.Value, full map[string]string) (LearnResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return LearnResult{}, ErrEmptyName
	}
	questions, err := l.catalog.Load()
	if err != nil {
		return LearnResult{}, fmt.Errorf("load catalog: %w", err)
	}
	table, err := l.loadMatrix(ctx)
	if err != nil {
		return LearnResult{}, err
	}
	if table.HasSubject(name) {
		return LearnResult{}, fmt.Errorf("%w: %s", ErrDuplicateSubject, name)
	}

	decoded := make(map[string]answer.Value, len(full))
	for id, text := range full {
		v, err := answer.ToNumeric(text)
		if err != nil {
			return LearnResult{}, fmt.Errorf("answer for %s: %w", id, err)
		}
		decoded[id] = v
	}

	attrs := make(map[string]answer.Value, len(questions))
	for _, q := range questions {
		attrs[q.AttributeID] = answer.Unknown
		table.AddColumn(q.AttributeID, answer.Unknown)
	}
	maps.Copy(attrs, pathAnswers)
	maps.Copy(attrs, decoded)

	if err := table.AddRow(name, attrs); err != nil {
		return LearnResult{}, err
	}
	if err := l.matrix.Save(ctx, table); err != nil {
		return LearnResult{}, fmt.Errorf("save matrix: %w", err)
	}
	l.log.Info().Str("subject", name).Int("subjects", table.Len()).Msg("subject added")

	snap, stats, err := l.trainer.Train(ctx, table, questions)
	if err != nil {
		return LearnResult{Saved: true}, err
	}
	return LearnResult{Saved: true, Snapshot: snap, Stats: stats}, nil
}

// AddQuestionRequest describes a new distinguishing question.
type AddQuestionRequest struct {
	GuessedName      string
	ActualName       string
	Path             map[string]answer.Value
	Prompt           string
	AttributeID      string
	AnswerForActual  string
	AnswerForGuessed string
}

// FormQuestion is one row of the follow-up attribute form.
type FormQuestion struct {
	AttributeID string       `json:"attribute_id"`
	Prompt      string       `json:"prompt"`
	Current     answer.Value `json:"current"`
}

// PreparedLearn is the context for the follow-up LearnNewSubject call.
type PreparedLearn struct {
	SubjectName string                  `json:"subject_name"`
	GuessedName string                  `json:"guessed_name"`
	PathAnswers map[string]answer.Value `json:"path_answers"`
	Questions   []FormQuestion          `json:"questions"`
	NewQuestion catalog.Question        `json:"new_question"`
}

// AddQuestionThenPrepareLearn appends a question to the catalog and a column to
// the matrix, records the guessed subject's answer to it, and returns the
// context for learning the actual subject. It does not train. A duplicate
// attribute ID, checked against a freshly loaded catalog and matrix, fails
// with catalog.ErrDuplicateAttribute before anything is written, and an actual
// subject already in the matrix fails with ErrDuplicateSubject.
func (l *Learner) AddQuestionThenPrepareLearn(ctx context.Context, req AddQuestionRequest) (*PreparedLearn, error) {
	id, err := ValidateAttributeID(req.AttributeID)
	if err != nil {
		return nil, err
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" || strings.Contains(prompt, catalog.Separator) || strings.ContainsAny(prompt, "\r\n") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPrompt, req.Prompt)
	}
	actual, err := answer.ToNumeric(req.AnswerForActual)
	if err != nil {
		return nil, fmt.Errorf("answer for %s: %w", req.ActualName, err)
	}
	guessed, err := answer.ToNumeric(req.AnswerForGuessed)
	if err != nil {
		return nil, fmt.Errorf("answer for %s: %w", req.GuessedName, err)
	}

	questions, err := l.catalog.Load()
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	cat := catalog.New(questions)
	table, err := l.loadMatrix(ctx)
	if err != nil {
		return nil, err
	}
	if name := strings.TrimSpace(req.ActualName); table.HasSubject(name) {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateSubject, name)
	}
	if cat.Has(id) || table.HasColumn(id) {
		return nil, fmt.Errorf("%w: %s", catalog.ErrDuplicateAttribute, id)
	}

	q := catalog.NewQuestion(id, prompt, answer.AllowedAnswers)
	if err := cat.Append(q); err != nil {
		return nil, err
	}
	if err := l.catalog.Save(cat.Questions()); err != nil {
		return nil, fmt.Errorf("save catalog: %w", err)
	}

	table.AddColumn(id, answer.Unknown)
	if table.HasSubject(req.GuessedName) {
		if err := table.Set(req.GuessedName, id, guessed); err != nil {
			return nil, err
		}
	}
	if err := l.matrix.Save(ctx, table); err != nil {
		return nil, fmt.Errorf("save matrix: %w", err)
	}
	l.log.Info().Str("attribute_id", id).Str("guessed", req.GuessedName).Msg("question added")

	merged := make(map[string]answer.Value, len(req.Path)+1)
	maps.Copy(merged, req.Path)
	merged[id] = actual

	form := make([]FormQuestion, 0, cat.Len())
	for _, cq := range cat.Questions() {
		cur, ok := merged[cq.AttributeID]
		if !ok {
			cur = answer.Unknown
		}
		form = append(form, FormQuestion{AttributeID: cq.AttributeID, Prompt: cq.Prompt, Current: cur})
	}
	return &PreparedLearn{
		SubjectName: strings.TrimSpace(req.ActualName),
		GuessedName: req.GuessedName,
		PathAnswers: merged,
		Questions:   form,
		NewQuestion: q,
	}, nil
}

// ValidateAttributeID trims id and checks the catalog file can store it.
func ValidateAttributeID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" || strings.Contains(id, catalog.Separator) || strings.ContainsAny(id, " \t\r\n,") {
		return "", fmt.Errorf("%w: %q", ErrInvalidAttributeID, id)
	}
	return id, nil
}

// SuggestAttributeID derives an attribute ID from a question prompt:
// "Is it a cat?" becomes "is_it_a_cat".
func SuggestAttributeID(prompt string) string {
	const maxLen = 48
	var b strings.Builder
	sep := false
	for _, r := range strings.ToLower(prompt) {
		if b.Len() >= maxLen {
			break
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if sep && b.Len() > 0 {
				b.WriteByte('_')
			}
			sep = false
			b.WriteRune(r)
			continue
		}
		if r != '\'' {
			sep = true
		}
	}
	return strings.TrimRight(b.String(), "_")
}

// loadMatrix loads the matrix, starting an empty one if none is stored yet.
func (l *Learner) loadMatrix(ctx context.Context) (*matrix.Table, error) {
	table, err := l.matrix.Load(ctx)
	if errors.Is(err, matrix.ErrMatrixUnavailable) {
		l.log.Info().Msg("no subject matrix stored, starting empty")
		return matrix.NewTable(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load matrix: %w", err)
	}
	return table, nil
}
