package cart

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
)

var (
	// ErrInvalidParams is returned for out-of-range hyperparameters.
	ErrInvalidParams = errors.New("invalid tree parameters")

	// ErrInvalidInput is returned for empty or inconsistent training data.
	ErrInvalidInput = errors.New("invalid training input")
)

// minImprovement is the impurity decrease a split must exceed to be kept.
const minImprovement = 1e-12

// Params configures fitting.
type Params struct {
	// CCPAlpha is the cost-complexity pruning strength. 0 disables pruning.
	CCPAlpha float64

	// MaxDepth bounds the tree depth. 0 means unbounded.
	MaxDepth int

	// MinSamplesLeaf is the minimum number of samples on each side of a split.
	MinSamplesLeaf int

	// MinSamplesSplit is the minimum number of samples required to split a node.
	MinSamplesSplit int

	// Seed drives the per-node feature permutation that breaks ties
	// between equally good splits.
	Seed uint64
}

// DefaultParams returns unpruned, unbounded parameters with seed 42.
func DefaultParams() Params {
	return Params{
		CCPAlpha:        0,
		MaxDepth:        0,
		MinSamplesLeaf:  1,
		MinSamplesSplit: 2,
		Seed:            42,
	}
}

// Validate checks parameter ranges.
func (p Params) Validate() error {
	switch {
	case p.CCPAlpha < 0 || math.IsNaN(p.CCPAlpha):
		return fmt.Errorf("%w: ccp_alpha must be >= 0, got %v", ErrInvalidParams, p.CCPAlpha)
	case p.MaxDepth < 0:
		return fmt.Errorf("%w: max_depth must be >= 0, got %d", ErrInvalidParams, p.MaxDepth)
	case p.MinSamplesLeaf < 1:
		return fmt.Errorf("%w: min_samples_leaf must be >= 1, got %d", ErrInvalidParams, p.MinSamplesLeaf)
	case p.MinSamplesSplit < 2:
		return fmt.Errorf("%w: min_samples_split must be >= 2, got %d", ErrInvalidParams, p.MinSamplesSplit)
	}
	return nil
}

// Fit grows a Gini decision tree on X (row-major) and labels y in
// [0, nClasses). Thresholds are taken between known values only; a NaN sample
// follows GoesLeft like any traversal and so always lands right.
func Fit(X [][]float64, y []int, nClasses int, p Params) (*Tree, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if len(X) == 0 {
		return nil, fmt.Errorf("%w: no samples", ErrInvalidInput)
	}
	if len(X) != len(y) {
		return nil, fmt.Errorf("%w: %d samples but %d labels", ErrInvalidInput, len(X), len(y))
	}
	if nClasses < 1 {
		return nil, fmt.Errorf("%w: n_classes = %d", ErrInvalidInput, nClasses)
	}
	nFeatures := len(X[0])
	if nFeatures == 0 {
		return nil, fmt.Errorf("%w: no features", ErrInvalidInput)
	}
	for i, row := range X {
		if len(row) != nFeatures {
			return nil, fmt.Errorf("%w: row %d has %d features, want %d", ErrInvalidInput, i, len(row), nFeatures)
		}
		for j, v := range row {
			if math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: row %d feature %d is infinite", ErrInvalidInput, i, j)
			}
		}
		if y[i] < 0 || y[i] >= nClasses {
			return nil, fmt.Errorf("%w: label %d of row %d out of range", ErrInvalidInput, y[i], i)
		}
	}

	b := &builder{
		X:         X,
		y:         y,
		nClasses:  nClasses,
		nFeatures: nFeatures,
		p:         p,
		rng:       rand.New(rand.NewPCG(p.Seed, p.Seed^0x9e3779b97f4a7c15)),
	}
	samples := make([]int, len(X))
	for i := range samples {
		samples[i] = i
	}
	b.grow(samples, 0)

	t := &Tree{Nodes: b.nodes, NFeatures: nFeatures, NClasses: nClasses}
	if p.CCPAlpha > 0 {
		t = Prune(t, p.CCPAlpha)
	}
	return t, nil
}

type builder struct {
	X         [][]float64
	y         []int
	nClasses  int
	nFeatures int
	p         Params
	rng       *rand.Rand
	nodes     []Node
}

type split struct {
	feature     int
	threshold   float64
	improvement float64
}

// grow appends the subtree for samples in preorder and returns its root id.
func (b *builder) grow(samples []int, depth int) int {
	id := len(b.nodes)
	counts := b.counts(samples)
	impurity := gini(counts, len(samples))
	b.nodes = append(b.nodes, Node{
		Feature:   LeafSentinel,
		Threshold: LeafSentinel,
		Left:      NoChild,
		Right:     NoChild,
		Value:     counts,
		Impurity:  impurity,
		Samples:   len(samples),
	})

	if b.stop(len(samples), depth, impurity) {
		return id
	}
	s, ok := b.bestSplit(samples, counts, impurity)
	if !ok {
		return id
	}

	var left, right []int
	for _, i := range samples {
		if GoesLeft(b.X[i][s.feature], s.threshold) {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)

	n := &b.nodes[id]
	n.Feature = s.feature
	n.Threshold = s.threshold
	n.Left = l
	n.Right = r
	return id
}

func (b *builder) stop(n, depth int, impurity float64) bool {
	switch {
	case n < b.p.MinSamplesSplit:
		return true
	case n < 2*b.p.MinSamplesLeaf:
		return true
	case b.p.MaxDepth > 0 && depth >= b.p.MaxDepth:
		return true
	case impurity <= minImprovement:
		return true
	}
	return false
}

// bestSplit scans every feature in a seeded random order. Only a strictly
// better candidate replaces the current best, so among ties the first one
// visited wins and the result is reproducible for a given seed.
func (b *builder) bestSplit(samples []int, parent []float64, parentImpurity float64) (split, bool) {
	n := len(samples)
	minLeaf := b.p.MinSamplesLeaf
	best := split{improvement: minImprovement}
	found := false

	known := make([]int, 0, n)
	left := make([]float64, b.nClasses)
	right := make([]float64, b.nClasses)

	for _, f := range b.rng.Perm(b.nFeatures) {
		known = known[:0]
		for _, i := range samples {
			if !math.IsNaN(b.X[i][f]) {
				known = append(known, i)
			}
		}
		if len(known) == 0 {
			continue
		}
		sort.SliceStable(known, func(a, c int) bool {
			return b.X[known[a]][f] < b.X[known[c]][f]
		})

		clear(left)
		copy(right, parent)
		for k, i := range known {
			left[b.y[i]]++
			right[b.y[i]]--
			nl := k + 1
			nr := n - nl

			if k+1 == len(known) {
				break
			}
			v, next := b.X[i][f], b.X[known[k+1]][f]
			if next <= v {
				continue
			}
			threshold := v/2 + next/2
			if threshold >= next {
				threshold = v
			}
			if nl < minLeaf || nr < minLeaf {
				continue
			}

			fl, fr := float64(nl)/float64(n), float64(nr)/float64(n)
			improvement := parentImpurity - fl*gini(left, nl) - fr*gini(right, nr)
			if improvement > best.improvement {
				best = split{feature: f, threshold: threshold, improvement: improvement}
				found = true
			}
		}
	}
	return best, found
}

func (b *builder) counts(samples []int) []float64 {
	counts := make([]float64, b.nClasses)
	for _, i := range samples {
		counts[b.y[i]]++
	}
	return counts
}

func gini(counts []float64, n int) float64 {
	if n == 0 {
		return 0
	}
	total := float64(n)
	sum := 0.0
	for _, c := range counts {
		p := c / total
		sum += p * p
	}
	return 1 - sum
}
