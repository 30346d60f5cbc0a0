package model

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/predinator/internal/answer"
	"github.com/abhisek/predinator/internal/cart"
	"github.com/abhisek/predinator/internal/catalog"
	"github.com/abhisek/predinator/internal/matrix"
)

func testQuestions() []catalog.Question {
	return []catalog.Question{
		catalog.NewQuestion("is_animal", "Is it an animal?", answer.AllowedAnswers),
		catalog.NewQuestion("has_superpowers", "Does it have superpowers?", answer.AllowedAnswers),
	}
}

func twoSubjects(t *testing.T) *matrix.Table {
	t.Helper()
	tbl := matrix.NewTable("is_animal", "has_superpowers")
	require.NoError(t, tbl.AddRow("Pikachu", map[string]answer.Value{"is_animal": answer.Yes, "has_superpowers": answer.Yes}))
	require.NoError(t, tbl.AddRow("Tom Hanks", map[string]answer.Value{"is_animal": answer.No, "has_superpowers": answer.Yes}))
	return tbl
}

func newTestModel(a Artifacts) *Model {
	opts := DefaultOptions()
	opts.Logger = zerolog.Nop()
	opts.Artifacts = a
	return New(opts)
}

var snapTime = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

var snapshotCmp = cmp.Options{
	cmpopts.IgnoreUnexported(Snapshot{}, LabelEncoder{}),
	cmpopts.EquateNaNs(),
}

func TestTrainAnswerYesReachesAnimal(t *testing.T) {
	m := newTestModel(nil)
	snap, stats, err := m.Train(context.Background(), twoSubjects(t), testQuestions())
	require.NoError(t, err)
	assert.Same(t, snap, m.Current())
	assert.Equal(t, 2, stats.Classes)
	assert.Equal(t, []string{"is_animal", "has_superpowers"}, snap.FeatureColumns)

	node := RootNode
	d, err := snap.NextDecision(node)
	require.NoError(t, err)
	require.False(t, d.Leaf)
	assert.Equal(t, "is_animal", d.AttributeID)

	node, err = snap.Route(node, answer.Yes)
	require.NoError(t, err)
	d, err = snap.NextDecision(node)
	require.NoError(t, err)
	require.True(t, d.Leaf)

	g, err := snap.PredictLeaf(node)
	require.NoError(t, err)
	assert.Equal(t, "Pikachu", g.Subject)
	assert.Equal(t, 1.0, g.Confidence)
}

func TestTrainFeatureColumnsFollowCatalogOrder(t *testing.T) {
	tbl := matrix.NewTable("has_superpowers", "is_animal", "not_asked")
	require.NoError(t, tbl.AddRow("A", nil))
	questions := append(testQuestions(), catalog.NewQuestion("no_column", "?", nil))

	assert.Equal(t, []string{"is_animal", "has_superpowers"}, FeatureColumns(tbl, questions))
}

func TestTrainFailureKeepsPreviousModel(t *testing.T) {
	m := newTestModel(nil)
	ctx := context.Background()
	prev, _, err := m.Train(ctx, twoSubjects(t), testQuestions())
	require.NoError(t, err)
	before := *prev

	oneSubject := matrix.NewTable("is_animal")
	require.NoError(t, oneSubject.AddRow("Pikachu", map[string]answer.Value{"is_animal": answer.Yes}))
	noColumns := matrix.NewTable("unrelated")
	require.NoError(t, noColumns.AddRow("A", nil))
	require.NoError(t, noColumns.AddRow("B", nil))

	tests := []struct {
		name  string
		table *matrix.Table
		want  error
	}{
		{"one subject", oneSubject, ErrInsufficientClasses},
		{"no shared columns", noColumns, ErrInsufficientFeatures},
		{"no table", nil, matrix.ErrMatrixUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := m.Train(ctx, tt.table, testQuestions())
			require.ErrorIs(t, err, tt.want)
			assert.Same(t, prev, m.Current())
			if diff := cmp.Diff(before, *m.Current(), snapshotCmp); diff != "" {
				t.Errorf("snapshot changed (-before +after):\n%s", diff)
			}
			assert.Equal(t, before.Encoder.Classes(), m.Current().Encoder.Classes())
		})
	}
}

func TestTrainFailureWithNoModelStaysNil(t *testing.T) {
	m := newTestModel(nil)
	_, _, err := m.Train(context.Background(), matrix.NewTable("is_animal"), testQuestions())
	require.ErrorIs(t, err, ErrInsufficientClasses)
	assert.Nil(t, m.Current())
	assert.False(t, m.Ready())
}

func TestTrainCancelledContext(t *testing.T) {
	m := newTestModel(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := m.Train(ctx, twoSubjects(t), testQuestions())
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, m.Current())
}

func TestTrainPersistFailureStillInstalls(t *testing.T) {
	arts := &MemoryArtifacts{SaveErr: errors.New("disk full")}
	m := newTestModel(arts)
	snap, _, err := m.Train(context.Background(), twoSubjects(t), testQuestions())
	require.NoError(t, err)
	assert.Same(t, snap, m.Current())
}

func TestTrainInvalidParams(t *testing.T) {
	opts := DefaultOptions()
	opts.Params.MinSamplesSplit = 1
	m := New(opts)
	_, _, err := m.Train(context.Background(), twoSubjects(t), testQuestions())
	require.ErrorIs(t, err, cart.ErrInvalidParams)
	assert.Nil(t, m.Current())
}

func TestFileArtifactsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	arts := NewFileArtifacts(dir)
	trained, _, err := newTestModel(arts).Train(context.Background(), twoSubjects(t), testQuestions())
	require.NoError(t, err)

	loader := newTestModel(arts)
	loaded, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Same(t, loaded, loader.Current())
	assert.Equal(t, trained.Version, loaded.Version)
	assert.True(t, trained.TrainedAt.Equal(loaded.TrainedAt))
	if diff := cmp.Diff(trained.Tree, loaded.Tree); diff != "" {
		t.Errorf("tree differs (-trained +loaded):\n%s", diff)
	}
	assert.Equal(t, trained.Encoder.Classes(), loaded.Encoder.Classes())
	assert.Equal(t, trained.FeatureColumns, loaded.FeatureColumns)
	q, ok := loaded.Question("is_animal")
	require.True(t, ok)
	assert.Equal(t, "Is it an animal?", q.Prompt)
}

func TestLoadFailureLeavesModelUnchanged(t *testing.T) {
	dir := t.TempDir()
	arts := NewFileArtifacts(dir)
	_, _, err := newTestModel(arts).Train(context.Background(), twoSubjects(t), testQuestions())
	require.NoError(t, err)
	good, err := os.ReadFile(filepath.Join(dir, TreeFile))
	require.NoError(t, err)
	goodMeta, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	require.NoError(t, err)
	var saved struct {
		Version string `json:"version"`
	}
	require.NoError(t, json.Unmarshal(goodMeta, &saved))
	ver := saved.Version

	tests := []struct {
		name string
		tree string
		meta string
		want error
	}{
		{"missing tree", "", string(goodMeta), ErrModelUnavailable},
		{"truncated tree", string(good[:len(good)/2]), string(goodMeta), ErrInvalidArtifact},
		{"empty nodes", `{"version":"` + ver + `","nodes":[],"n_features":2,"n_classes":2}`, string(goodMeta), ErrInvalidArtifact},
		{"dangling child", `{"version":"` + ver + `","nodes":[{"feature":0,"threshold":0.5,"left":1,"right":9,"value":[1,1],"impurity":0.5,"samples":2},
			{"feature":-2,"threshold":-2,"left":-1,"right":-1,"value":[1,0],"impurity":0,"samples":1}],"n_features":2,"n_classes":2}`,
			string(goodMeta), ErrInvalidArtifact},
		{"tree without version", strings.Replace(string(good), `"version": "`+ver+`",`, "", 1), string(goodMeta), ErrInvalidArtifact},
		{"future format", string(good), `{"format_version":"v2.0.0","version":"` + ver + `","trained_at":"2026-01-02T03:04:05Z",
			"classes":["A","B"],"feature_columns":["a","b"],"questions":[]}`, ErrInvalidArtifact},
		{"class count mismatch", string(good), `{"format_version":"v1.2.0","version":"` + ver + `","trained_at":"2026-01-02T03:04:05Z",
			"classes":["A"],"feature_columns":["a","b"],"questions":[]}`, ErrInvalidArtifact},
		{"metadata missing field", string(good), `{"format_version":"v1.0.0","classes":["A","B"]}`, ErrInvalidArtifact},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := t.TempDir()
			if tt.tree != "" {
				require.NoError(t, os.WriteFile(filepath.Join(d, TreeFile), []byte(tt.tree), 0o644))
			}
			require.NoError(t, os.WriteFile(filepath.Join(d, MetadataFile), []byte(tt.meta), 0o644))

			m := newTestModel(NewFileArtifacts(d))
			_, err := m.Load(context.Background())
			require.ErrorIs(t, err, tt.want)
			assert.Nil(t, m.Current())
		})
	}
}

func TestLoadRejectsTreeFromAnotherSave(t *testing.T) {
	ctx := context.Background()
	first, second := t.TempDir(), t.TempDir()
	_, _, err := newTestModel(NewFileArtifacts(first)).Train(ctx, twoSubjects(t), testQuestions())
	require.NoError(t, err)
	_, _, err = newTestModel(NewFileArtifacts(second)).Train(ctx, twoSubjects(t), testQuestions())
	require.NoError(t, err)

	staleTree, err := os.ReadFile(filepath.Join(first, TreeFile))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(second, TreeFile), staleTree, 0o644))

	m := newTestModel(NewFileArtifacts(second))
	_, err = m.Load(ctx)
	require.ErrorIs(t, err, ErrInvalidArtifact)
	assert.Contains(t, err.Error(), "does not match metadata version")
	assert.Nil(t, m.Current())
}

func TestLoadWithoutArtifacts(t *testing.T) {
	m := newTestModel(nil)
	_, err := m.Load(context.Background())
	assert.ErrorIs(t, err, ErrModelUnavailable)

	m = newTestModel(&MemoryArtifacts{})
	_, err = m.Load(context.Background())
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestSnapshotTraversalErrors(t *testing.T) {
	m := newTestModel(nil)
	snap, _, err := m.Train(context.Background(), twoSubjects(t), testQuestions())
	require.NoError(t, err)

	_, err = snap.NextDecision(99)
	assert.ErrorIs(t, err, ErrCorruptTraversal)
	_, err = snap.NextDecision(-1)
	assert.ErrorIs(t, err, ErrCorruptTraversal)
	_, err = snap.PredictLeaf(RootNode)
	assert.ErrorIs(t, err, ErrNotALeaf)

	leaf, err := snap.Route(RootNode, answer.No)
	require.NoError(t, err)
	_, err = snap.Route(leaf, answer.Yes)
	assert.ErrorIs(t, err, ErrCorruptTraversal)

	var none *Snapshot
	_, err = none.NextDecision(RootNode)
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestSnapshotFeatureOutOfRange(t *testing.T) {
	snap := newSnapshot("v", snapTime, &cart.Tree{
		NFeatures: 5,
		NClasses:  1,
		Nodes: []cart.Node{
			{Feature: 4, Threshold: 0.5, Left: 1, Right: 2, Value: []float64{2}},
			{Feature: cart.LeafSentinel, Left: cart.NoChild, Right: cart.NoChild, Value: []float64{1}},
			{Feature: cart.LeafSentinel, Left: cart.NoChild, Right: cart.NoChild, Value: []float64{1}},
		},
	}, FitLabels([]string{"A"}), []string{"a"}, nil)

	_, err := snap.NextDecision(RootNode)
	assert.ErrorIs(t, err, ErrCorruptTraversal)
}

func TestRouteUnknownGoesRight(t *testing.T) {
	m := newTestModel(nil)
	snap, _, err := m.Train(context.Background(), twoSubjects(t), testQuestions())
	require.NoError(t, err)

	root := snap.Tree.Nodes[RootNode]
	next, err := snap.Route(RootNode, answer.Unknown)
	require.NoError(t, err)
	assert.Equal(t, root.Right, next)

	next, err = snap.Route(RootNode, answer.FromFloat(root.Threshold))
	require.NoError(t, err)
	assert.Equal(t, root.Left, next)
}

func TestTrainUnknownValuesTrainAsNo(t *testing.T) {
	tbl := matrix.NewTable("is_animal")
	require.NoError(t, tbl.AddRow("Garfield", map[string]answer.Value{"is_animal": answer.Yes}))
	require.NoError(t, tbl.AddRow("Zorg", map[string]answer.Value{"is_animal": answer.Unknown}))

	m := newTestModel(nil)
	snap, _, err := m.Train(context.Background(), tbl, testQuestions())
	require.NoError(t, err)

	root := snap.Tree.Nodes[RootNode]
	require.False(t, root.IsLeaf())
	assert.Equal(t, 0.5, root.Threshold)

	tests := []struct {
		answer answer.Value
		want   string
	}{
		{answer.Yes, "Garfield"},
		{answer.No, "Zorg"},
		{answer.Unknown, "Garfield"},
	}
	for _, tt := range tests {
		node, err := snap.Route(RootNode, tt.answer)
		require.NoError(t, err)
		g, err := snap.PredictLeaf(node)
		require.NoError(t, err)
		assert.Equal(t, tt.want, g.Subject, "answer %s", tt.answer)
	}

	v, ok := tbl.Get("Zorg", "is_animal")
	require.True(t, ok)
	assert.True(t, v.IsUnknown(), "training must not rewrite the matrix")
}

func TestLabelEncoder(t *testing.T) {
	enc := FitLabels([]string{"b", "a", "b", "c"})
	assert.Equal(t, []string{"a", "b", "c"}, enc.Classes())
	i, ok := enc.Encode("c")
	require.True(t, ok)
	assert.Equal(t, 2, i)
	name, err := enc.Decode(1)
	require.NoError(t, err)
	assert.Equal(t, "b", name)

	_, err = enc.Decode(3)
	assert.ErrorIs(t, err, ErrDecodeError)
	_, err = FitLabels(nil).Decode(0)
	assert.ErrorIs(t, err, ErrDecodeError)

	_, err = NewLabelEncoder([]string{"b", "a"})
	assert.ErrorIs(t, err, ErrInvalidArtifact)
}
