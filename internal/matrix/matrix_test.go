package matrix

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/predinator/internal/answer"
)

func TestTableAddRowAndColumn(t *testing.T) {
	tbl := NewTable("is_animal", "has_superpowers")
	require.NoError(t, tbl.AddRow("Pikachu", map[string]answer.Value{
		"is_animal":       answer.Yes,
		"has_superpowers": answer.Yes,
	}))
	require.NoError(t, tbl.AddRow("Tom Hanks", map[string]answer.Value{
		"is_animal": answer.No,
	}))

	v, ok := tbl.Get("Tom Hanks", "has_superpowers")
	require.True(t, ok)
	assert.True(t, v.IsUnknown())

	assert.True(t, tbl.AddColumn("is_real", answer.Unknown))
	assert.False(t, tbl.AddColumn("is_real", answer.No))
	v, _ = tbl.Get("Pikachu", "is_real")
	assert.True(t, v.IsUnknown())

	require.NoError(t, tbl.Set("Tom Hanks", "is_real", answer.Yes))
	v, _ = tbl.Get("Tom Hanks", "is_real")
	assert.Equal(t, answer.Yes, v)

	assert.Equal(t, []string{"is_animal", "has_superpowers", "is_real"}, tbl.Columns())
	assert.Equal(t, []string{"Pikachu", "Tom Hanks"}, tbl.Names())
}

func TestTableAddRowDuplicate(t *testing.T) {
	tbl := NewTable("a")
	require.NoError(t, tbl.AddRow("X", nil))
	err := tbl.AddRow("X", map[string]answer.Value{"a": answer.Yes})
	assert.ErrorIs(t, err, ErrDuplicateRow)
	assert.Equal(t, 1, tbl.Len())
}

func TestTableNamesAreCaseSensitive(t *testing.T) {
	tbl := NewTable("a")
	require.NoError(t, tbl.AddRow("zorg", nil))
	require.NoError(t, tbl.AddRow("Zorg", nil))
	assert.Equal(t, 2, tbl.DistinctNames())
}

func TestTableAddRowExtendsColumns(t *testing.T) {
	tbl := NewTable("a")
	require.NoError(t, tbl.AddRow("X", map[string]answer.Value{"a": answer.Yes}))
	require.NoError(t, tbl.AddRow("Y", map[string]answer.Value{"b": answer.No}))

	v, ok := tbl.Get("X", "b")
	require.True(t, ok)
	assert.True(t, v.IsUnknown())
}

func TestTableSetErrors(t *testing.T) {
	tbl := NewTable("a")
	assert.ErrorIs(t, tbl.Set("nobody", "a", answer.Yes), ErrUnknownSubject)
	require.NoError(t, tbl.AddRow("X", nil))
	assert.ErrorIs(t, tbl.Set("X", "zzz", answer.Yes), ErrUnknownColumn)
}

func TestTableFeatures(t *testing.T) {
	tbl := NewTable("a", "b")
	require.NoError(t, tbl.AddRow("X", map[string]answer.Value{"a": answer.Yes, "b": answer.No}))
	require.NoError(t, tbl.AddRow("Y", map[string]answer.Value{"a": answer.No}))

	X := tbl.Features([]string{"b", "a", "missing"})
	require.Len(t, X, 2)
	assert.Equal(t, 0.0, X[0][0])
	assert.Equal(t, 1.0, X[0][1])
	assert.True(t, math.IsNaN(X[0][2]))
	assert.True(t, math.IsNaN(X[1][0]))
}

func TestTableCloneIsDeep(t *testing.T) {
	tbl := NewTable("a")
	require.NoError(t, tbl.AddRow("X", map[string]answer.Value{"a": answer.Yes}))
	c := tbl.Clone()
	require.NoError(t, c.Set("X", "a", answer.No))
	c.AddColumn("b", answer.Unknown)

	v, _ := tbl.Get("X", "a")
	assert.Equal(t, answer.Yes, v)
	assert.False(t, tbl.HasColumn("b"))
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore(nil)
	_, err := m.Load(ctx)
	assert.ErrorIs(t, err, ErrMatrixUnavailable)

	tbl := NewTable("a")
	require.NoError(t, tbl.AddRow("X", nil))
	require.NoError(t, m.Save(ctx, tbl))

	got, err := m.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"X"}, got.Names())
	assert.Equal(t, 1, m.Saves())
}
