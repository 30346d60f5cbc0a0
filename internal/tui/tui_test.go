package tui

import (
	"context"
	"strings"
	"testing"

	tea "charm.land/bubbletea/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/predinator/internal/answer"
	"github.com/abhisek/predinator/internal/catalog"
	"github.com/abhisek/predinator/internal/learning"
	"github.com/abhisek/predinator/internal/matrix"
	"github.com/abhisek/predinator/internal/model"
	"github.com/abhisek/predinator/internal/service"
)

var rows = map[string]map[string]answer.Value{
	"Pikachu":   {"is_animal": answer.Yes, "has_superpowers": answer.Yes},
	"Tom Hanks": {"is_animal": answer.No, "has_superpowers": answer.No},
	"Superman":  {"is_animal": answer.No, "has_superpowers": answer.Yes},
	"Garfield":  {"is_animal": answer.Yes, "has_superpowers": answer.No},
}

type fixture struct {
	svc     *service.Service
	catalog *catalog.MemoryStore
	matrix  *matrix.MemoryStore
}

func newFixture(t *testing.T, withData bool) *fixture {
	t.Helper()
	f := &fixture{catalog: catalog.NewMissingMemoryStore(), matrix: matrix.NewMemoryStore(nil)}
	if withData {
		f.catalog = catalog.NewMemoryStore(
			catalog.NewQuestion("is_animal", "Is it an animal?", answer.AllowedAnswers),
			catalog.NewQuestion("has_superpowers", "Does it have superpowers?", answer.AllowedAnswers),
		)
		tbl := matrix.NewTable("is_animal", "has_superpowers")
		for _, name := range []string{"Pikachu", "Tom Hanks", "Superman", "Garfield"} {
			require.NoError(t, tbl.AddRow(name, rows[name]))
		}
		f.matrix = matrix.NewMemoryStore(tbl)
	}
	f.svc = service.New(service.Deps{
		Catalog: f.catalog,
		Matrix:  f.matrix,
		Model:   model.New(model.DefaultOptions()),
		Logger:  zerolog.Nop(),
	}, service.DefaultOptions())
	return f
}

func keyPress(r rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: r, Text: string(r)}
}

func specialKey(code rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: code}
}

// step delivers msg and runs the model's own async commands to completion.
func step(m Model, msg tea.Msg) Model {
	next, cmd := m.Update(msg)
	m = next.(Model)
	for (m.stage == stageLoading || m.stage == stageLearning) && cmd != nil {
		next, cmd = m.Update(cmd())
		m = next.(Model)
	}
	return m
}

func start(t *testing.T, f *fixture) Model {
	t.Helper()
	m := New(context.Background(), f.svc, zerolog.Nop())
	return step(m, m.Init()())
}

func typeText(m Model, s string) Model {
	for _, r := range s {
		m = step(m, keyPress(r))
	}
	return step(m, specialKey(tea.KeyEnter))
}

// answerAs answers every question using subject's row.
func answerAs(t *testing.T, m Model, subject string) Model {
	t.Helper()
	for m.stage == stageAsking {
		k := 'n'
		if rows[subject][m.question.AttributeID] == answer.Yes {
			k = 'y'
		}
		m = step(m, keyPress(k))
	}
	return m
}

func TestGuessCorrectly(t *testing.T) {
	f := newFixture(t, true)
	m := start(t, f)
	require.Equal(t, stageAsking, m.stage)
	assert.Contains(t, m.body(), m.question.Prompt)

	m = answerAs(t, m, "Pikachu")
	require.Equal(t, stageConfirm, m.stage)
	assert.Equal(t, "Pikachu", m.guess.Subject)
	assert.Contains(t, m.body(), "Is it Pikachu?")

	m = step(m, keyPress('y'))
	assert.Equal(t, stageDone, m.stage)
	assert.Contains(t, m.notice, "Pikachu")

	m = step(m, keyPress('p'))
	assert.Equal(t, stageAsking, m.stage)
	assert.Empty(t, m.eng.Path())
}

func TestArrowNavigation(t *testing.T) {
	f := newFixture(t, true)
	m := start(t, f)
	m = step(m, specialKey(tea.KeyDown))
	m = step(m, specialKey(tea.KeyDown))
	m = step(m, specialKey(tea.KeyEnter))
	require.NotEmpty(t, m.eng.Path())
	assert.True(t, m.eng.Path()[0].Answer.IsUnknown())
}

func TestWrongGuessTeachesNewSubject(t *testing.T) {
	f := newFixture(t, true)
	m := start(t, f)
	m = answerAs(t, m, "Garfield")
	require.Equal(t, stageConfirm, m.stage)
	require.Equal(t, "Garfield", m.guess.Subject)

	m = step(m, keyPress('n'))
	require.Equal(t, stageName, m.stage)
	m = typeText(m, "Odie")
	require.Equal(t, stageOfferQuestion, m.stage)

	m = step(m, keyPress('y'))
	require.Equal(t, stagePrompt, m.stage)
	m = typeText(m, "Is it a cat?")
	require.Equal(t, stageAttributeID, m.stage)
	assert.Equal(t, "is_it_a_cat", m.input.Value())
	m = step(m, specialKey(tea.KeyEnter))
	require.Equal(t, stageAnswerActual, m.stage)

	m = step(m, keyPress('n'))
	require.Equal(t, stageAnswerGuessed, m.stage)
	m = step(m, keyPress('y'))
	require.Equal(t, stageDone, m.stage)
	require.NoError(t, m.err)
	assert.Contains(t, m.notice, "Odie")

	qs, err := f.catalog.Load()
	require.NoError(t, err)
	assert.True(t, catalog.New(qs).Has("is_it_a_cat"))

	tbl, err := f.matrix.Load(context.Background())
	require.NoError(t, err)
	v, ok := tbl.Get("Odie", "is_it_a_cat")
	require.True(t, ok)
	assert.Equal(t, answer.No, v)
	v, ok = tbl.Get("Garfield", "is_it_a_cat")
	require.True(t, ok)
	assert.Equal(t, answer.Yes, v)
}

func TestWrongGuessWithoutQuestion(t *testing.T) {
	f := newFixture(t, true)
	m := start(t, f)
	m = answerAs(t, m, "Superman")
	m = step(m, keyPress('n'))
	m = typeText(m, "Batman")
	m = step(m, keyPress('n'))
	require.Equal(t, stageDone, m.stage)
	assert.Contains(t, m.notice, "Batman")

	tbl, err := f.matrix.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, tbl.HasSubject("Batman"))
	assert.Zero(t, f.catalog.Saves())
}

func TestDuplicateSubject(t *testing.T) {
	f := newFixture(t, true)
	m := start(t, f)
	m = answerAs(t, m, "Superman")
	m = step(m, keyPress('n'))
	m = typeText(m, "Pikachu")
	require.Equal(t, stageDone, m.stage, "a known subject never reaches the add-question offer")
	assert.ErrorIs(t, m.err, learning.ErrDuplicateSubject)
	assert.Contains(t, m.notice, "I already know Pikachu")
	assert.Zero(t, f.catalog.Saves())
	assert.Zero(t, f.matrix.Saves())
}

func TestEmptyNameStays(t *testing.T) {
	f := newFixture(t, true)
	m := start(t, f)
	m = answerAs(t, m, "Superman")
	m = step(m, keyPress('n'))
	m = typeText(m, "   ")
	assert.Equal(t, stageName, m.stage)
	assert.ErrorIs(t, m.err, learning.ErrEmptyName)
}

func TestEscapeSkipsLearning(t *testing.T) {
	f := newFixture(t, true)
	m := start(t, f)
	m = answerAs(t, m, "Superman")
	m = step(m, keyPress('n'))
	m = step(m, specialKey(tea.KeyEscape))
	assert.Equal(t, stageDone, m.stage)
	assert.Zero(t, f.matrix.Saves())
}

func TestNoModel(t *testing.T) {
	f := newFixture(t, false)
	m := start(t, f)
	assert.Equal(t, stageDone, m.stage)
	assert.ErrorIs(t, m.err, model.ErrModelUnavailable)
	assert.True(t, strings.Contains(m.notice, "seed"))

	_, cmd := m.Update(keyPress('q'))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
