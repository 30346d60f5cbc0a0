package tui

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/predinator/internal/answer"
	"github.com/abhisek/predinator/internal/catalog"
)

func runPlain(t *testing.T, f *fixture, lines ...string) string {
	t.Helper()
	var out bytes.Buffer
	in := strings.NewReader(strings.Join(lines, "\n") + "\n")
	require.NoError(t, RunPlain(context.Background(), f.svc, in, &out))
	return out.String()
}

func TestPlainGuessCorrectly(t *testing.T) {
	f := newFixture(t, true)
	out := runPlain(t, f, "maybe", "yes", "y", "yes", "no")

	assert.Contains(t, out, "Please answer yes, no or don't know.")
	assert.Contains(t, out, "Is it Pikachu?")
	assert.Contains(t, out, "I win!")
	assert.Zero(t, f.matrix.Saves())
}

func TestPlainTeachesWithQuestion(t *testing.T) {
	f := newFixture(t, true)
	out := runPlain(t, f,
		"no", "no",
		"no",
		"Forrest Gump",
		"yes",
		"Is it fictional?",
		"",
		"yes",
		"no",
		"quit",
	)
	assert.Contains(t, out, "Is it Tom Hanks?")
	assert.Contains(t, out, "Attribute id [is_it_fictional]")
	assert.Contains(t, out, "Next time I'll know Forrest Gump")

	qs, err := f.catalog.Load()
	require.NoError(t, err)
	assert.True(t, catalog.New(qs).Has("is_it_fictional"))

	tbl, err := f.matrix.Load(context.Background())
	require.NoError(t, err)
	v, ok := tbl.Get("Forrest Gump", "is_it_fictional")
	require.True(t, ok)
	assert.Equal(t, answer.Yes, v)
	v, ok = tbl.Get("Tom Hanks", "is_it_fictional")
	require.True(t, ok)
	assert.Equal(t, answer.No, v)
}

func TestPlainTeachesWithoutQuestion(t *testing.T) {
	f := newFixture(t, true)
	out := runPlain(t, f, "yes", "yes", "no", "Mewtwo", "no", "no")
	assert.Contains(t, out, "Next time I'll know Mewtwo")

	tbl, err := f.matrix.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, tbl.HasSubject("Mewtwo"))
	assert.Zero(t, f.catalog.Saves())
}

func TestPlainDuplicateSubject(t *testing.T) {
	f := newFixture(t, true)
	out := runPlain(t, f, "yes", "yes", "no", "Superman", "no")
	assert.Contains(t, out, "I already know Superman.")
	assert.NotContains(t, out, "Add a question")
	assert.Zero(t, f.catalog.Saves())
	assert.Zero(t, f.matrix.Saves())
}

func TestPlainEndOfInput(t *testing.T) {
	f := newFixture(t, true)
	out := runPlain(t, f, "yes")
	assert.Contains(t, out, "Think of a character")
}

func TestPlainNoModel(t *testing.T) {
	f := newFixture(t, false)
	var out bytes.Buffer
	err := RunPlain(context.Background(), f.svc, strings.NewReader(""), &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start game")
}
