package learning

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/predinator/internal/answer"
	"github.com/abhisek/predinator/internal/catalog"
	"github.com/abhisek/predinator/internal/matrix"
	"github.com/abhisek/predinator/internal/model"
)

type fixture struct {
	catalog *catalog.MemoryStore
	matrix  *matrix.MemoryStore
	model   *model.Model
	learner *Learner
}

func newFixture(t *testing.T, subjects ...string) *fixture {
	t.Helper()
	tbl := matrix.NewTable("is_animal", "has_superpowers")
	for i, s := range subjects {
		v := answer.No
		if i%2 == 0 {
			v = answer.Yes
		}
		require.NoError(t, tbl.AddRow(s, map[string]answer.Value{"is_animal": v, "has_superpowers": answer.Yes}))
	}
	f := &fixture{
		catalog: catalog.NewMemoryStore(
			catalog.NewQuestion("is_animal", "Is it an animal?", answer.AllowedAnswers),
			catalog.NewQuestion("has_superpowers", "Does it have superpowers?", answer.AllowedAnswers),
		),
		matrix: matrix.NewMemoryStore(tbl),
		model:  model.New(model.DefaultOptions()),
	}
	f.learner = New(Deps{Catalog: f.catalog, Matrix: f.matrix, Trainer: f.model, Logger: zerolog.Nop()})
	return f
}

func (f *fixture) table(t *testing.T) *matrix.Table {
	t.Helper()
	tbl, err := f.matrix.Load(context.Background())
	require.NoError(t, err)
	return tbl
}

func TestLearnNewSubject(t *testing.T) {
	f := newFixture(t, "Pikachu")
	res, err := f.learner.LearnNewSubject(context.Background(), "Zorg", map[string]answer.Value{}, map[string]string{"is_animal": "no"})
	require.NoError(t, err)
	assert.True(t, res.Saved)
	require.NotNil(t, res.Snapshot)
	assert.Same(t, res.Snapshot, f.model.Current())
	assert.Equal(t, []string{"Pikachu", "Zorg"}, res.Snapshot.Encoder.Classes())

	tbl := f.table(t)
	assert.True(t, tbl.HasSubject("Zorg"))
	v, _ := tbl.Get("Zorg", "is_animal")
	assert.Equal(t, answer.No, v)
	v, _ = tbl.Get("Zorg", "has_superpowers")
	assert.True(t, v.IsUnknown())

	_, _, err = f.model.Train(context.Background(), tbl, []catalog.Question{
		catalog.NewQuestion("is_animal", "Is it an animal?", nil),
	})
	assert.NoError(t, err)
}

func TestLearnSameSubjectTwice(t *testing.T) {
	f := newFixture(t, "Pikachu")
	ctx := context.Background()
	_, err := f.learner.LearnNewSubject(ctx, "Zorg", nil, map[string]string{"is_animal": "no"})
	require.NoError(t, err)
	saves := f.matrix.Saves()
	before := f.table(t).Names()

	_, err = f.learner.LearnNewSubject(ctx, "Zorg", nil, map[string]string{"is_animal": "yes"})
	require.ErrorIs(t, err, ErrDuplicateSubject)
	assert.Equal(t, saves, f.matrix.Saves())
	assert.Equal(t, before, f.table(t).Names())
	v, _ := f.table(t).Get("Zorg", "is_animal")
	assert.Equal(t, answer.No, v)
}

func TestLearnFullAnswersOverridePath(t *testing.T) {
	f := newFixture(t, "Pikachu", "Tom Hanks")
	_, err := f.learner.LearnNewSubject(context.Background(), "Zorg",
		map[string]answer.Value{"is_animal": answer.Yes, "has_superpowers": answer.Yes},
		map[string]string{"is_animal": "n"})
	require.NoError(t, err)

	row, ok := f.table(t).Row("Zorg")
	require.True(t, ok)
	assert.Equal(t, answer.No, row["is_animal"])
	assert.Equal(t, answer.Yes, row["has_superpowers"])
}

func TestLearnRejectsBadInputWithoutWriting(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		full    map[string]string
		want    error
	}{
		{"empty name", "  ", nil, ErrEmptyName},
		{"invalid answer", "Zorg", map[string]string{"is_animal": "sometimes"}, answer.ErrInvalidAnswer},
		{"existing subject", "Pikachu", nil, ErrDuplicateSubject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "Pikachu")
			_, err := f.learner.LearnNewSubject(context.Background(), tt.subject, nil, tt.full)
			require.ErrorIs(t, err, tt.want)
			assert.Zero(t, f.matrix.Saves())
			assert.Nil(t, f.model.Current())
		})
	}
}

func TestLearnTrainFailureStillSaves(t *testing.T) {
	f := newFixture(t)
	res, err := f.learner.LearnNewSubject(context.Background(), "Zorg", nil, map[string]string{"is_animal": "no"})
	require.ErrorIs(t, err, model.ErrInsufficientClasses)
	assert.True(t, res.Saved)
	assert.Nil(t, res.Snapshot)
	assert.Equal(t, 1, f.matrix.Saves())
	assert.True(t, f.table(t).HasSubject("Zorg"))
	assert.Nil(t, f.model.Current())
}

func TestLearnIntoMissingMatrix(t *testing.T) {
	f := newFixture(t)
	f.matrix = matrix.NewMemoryStore(nil)
	f.learner = New(Deps{Catalog: f.catalog, Matrix: f.matrix, Trainer: f.model, Logger: zerolog.Nop()})

	_, err := f.learner.LearnNewSubject(context.Background(), "Zorg", nil, nil)
	require.ErrorIs(t, err, model.ErrInsufficientClasses)
	tbl := f.table(t)
	assert.Equal(t, []string{"is_animal", "has_superpowers"}, tbl.Columns())
}

func TestAddQuestionDuplicateAttribute(t *testing.T) {
	f := newFixture(t, "Pikachu", "Tom Hanks")
	_, err := f.learner.AddQuestionThenPrepareLearn(context.Background(), AddQuestionRequest{
		GuessedName:      "Pikachu",
		ActualName:       "Zorg",
		Prompt:           "Is it a mammal?",
		AttributeID:      "is_animal",
		AnswerForActual:  "yes",
		AnswerForGuessed: "no",
	})
	require.ErrorIs(t, err, catalog.ErrDuplicateAttribute)
	assert.Zero(t, f.catalog.Saves())
	assert.Zero(t, f.matrix.Saves())
}

func TestAddQuestionKnownSubject(t *testing.T) {
	f := newFixture(t, "Pikachu", "Tom Hanks")
	_, err := f.learner.AddQuestionThenPrepareLearn(context.Background(), AddQuestionRequest{
		GuessedName:      "Pikachu",
		ActualName:       " Tom Hanks ",
		Prompt:           "Is it an actor?",
		AttributeID:      "is_actor",
		AnswerForActual:  "yes",
		AnswerForGuessed: "no",
	})
	require.ErrorIs(t, err, ErrDuplicateSubject)
	assert.Zero(t, f.catalog.Saves())
	assert.Zero(t, f.matrix.Saves())
	assert.False(t, f.table(t).HasColumn("is_actor"))
}

func TestAddQuestionSeesConcurrentAddition(t *testing.T) {
	f := newFixture(t, "Pikachu")
	qs, err := f.catalog.Load()
	require.NoError(t, err)
	require.NoError(t, f.catalog.Save(append(qs, catalog.NewQuestion("is_yellow", "Is it yellow?", nil))))

	_, err = f.learner.AddQuestionThenPrepareLearn(context.Background(), AddQuestionRequest{
		GuessedName: "Pikachu", ActualName: "Zorg", Prompt: "Yellow?", AttributeID: "is_yellow",
		AnswerForActual: "no", AnswerForGuessed: "yes",
	})
	assert.ErrorIs(t, err, catalog.ErrDuplicateAttribute)
}

func TestAddQuestionThenLearn(t *testing.T) {
	f := newFixture(t, "Pikachu", "Tom Hanks")
	ctx := context.Background()
	prep, err := f.learner.AddQuestionThenPrepareLearn(ctx, AddQuestionRequest{
		GuessedName:      "Pikachu",
		ActualName:       "Zorg",
		Path:             map[string]answer.Value{"is_animal": answer.Yes},
		Prompt:           "Is it from outer space?",
		AttributeID:      " is_alien ",
		AnswerForActual:  "yes",
		AnswerForGuessed: "no",
	})
	require.NoError(t, err)
	assert.Equal(t, "is_alien", prep.NewQuestion.AttributeID)
	assert.Equal(t, answer.AllowedAnswers, prep.NewQuestion.AllowedAnswers)
	assert.Equal(t, "Zorg", prep.SubjectName)
	assert.Equal(t, map[string]answer.Value{"is_animal": answer.Yes, "is_alien": answer.Yes}, prep.PathAnswers)
	require.Len(t, prep.Questions, 3)
	assert.Equal(t, "is_alien", prep.Questions[2].AttributeID)
	assert.True(t, prep.Questions[1].Current.IsUnknown())

	qs, err := f.catalog.Load()
	require.NoError(t, err)
	assert.Len(t, qs, 3)

	tbl := f.table(t)
	v, _ := tbl.Get("Pikachu", "is_alien")
	assert.Equal(t, answer.No, v)
	v, _ = tbl.Get("Tom Hanks", "is_alien")
	assert.True(t, v.IsUnknown())
	assert.Nil(t, f.model.Current())

	res, err := f.learner.LearnNewSubject(ctx, prep.SubjectName, prep.PathAnswers, map[string]string{"has_superpowers": "yes"})
	require.NoError(t, err)
	assert.Contains(t, res.Snapshot.FeatureColumns, "is_alien")
	assert.Equal(t, 3, res.Stats.Classes)
}

func TestAddQuestionValidation(t *testing.T) {
	base := AddQuestionRequest{
		GuessedName: "Pikachu", ActualName: "Zorg", Prompt: "Is it green?", AttributeID: "is_green",
		AnswerForActual: "yes", AnswerForGuessed: "no",
	}
	tests := []struct {
		name   string
		mutate func(r *AddQuestionRequest)
		want   error
	}{
		{"empty id", func(r *AddQuestionRequest) { r.AttributeID = "  " }, ErrInvalidAttributeID},
		{"separator in id", func(r *AddQuestionRequest) { r.AttributeID = "is::green" }, ErrInvalidAttributeID},
		{"newline in id", func(r *AddQuestionRequest) { r.AttributeID = "is\ngreen" }, ErrInvalidAttributeID},
		{"empty prompt", func(r *AddQuestionRequest) { r.Prompt = "" }, ErrInvalidPrompt},
		{"separator in prompt", func(r *AddQuestionRequest) { r.Prompt = "a::b" }, ErrInvalidPrompt},
		{"bad actual answer", func(r *AddQuestionRequest) { r.AnswerForActual = "perhaps" }, answer.ErrInvalidAnswer},
		{"bad guessed answer", func(r *AddQuestionRequest) { r.AnswerForGuessed = "" }, answer.ErrInvalidAnswer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "Pikachu")
			req := base
			tt.mutate(&req)
			_, err := f.learner.AddQuestionThenPrepareLearn(context.Background(), req)
			require.ErrorIs(t, err, tt.want)
			assert.Zero(t, f.catalog.Saves())
			assert.Zero(t, f.matrix.Saves())
		})
	}
}

func TestSuggestAttributeID(t *testing.T) {
	tests := []struct {
		prompt string
		want   string
	}{
		{"Is it a cat?", "is_it_a_cat"},
		{"  Does it have   superpowers? ", "does_it_have_superpowers"},
		{"Is your character's hair blue?", "is_your_characters_hair_blue"},
		{"???", ""},
	}
	for _, tt := range tests {
		t.Run(tt.prompt, func(t *testing.T) {
			got := SuggestAttributeID(tt.prompt)
			assert.Equal(t, tt.want, got)
			if got != "" {
				_, err := ValidateAttributeID(got)
				assert.NoError(t, err)
			}
		})
	}
}
