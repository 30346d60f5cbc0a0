package cart

import (
	"errors"
	"fmt"
	"math"
)

const (
	// LeafSentinel is the Feature value of leaf nodes (and their Threshold).
	LeafSentinel = -2

	// NoChild is the child id stored on leaves.
	NoChild = -1
)

// ErrInvalidTree is returned by Validate for structurally inconsistent arenas.
var ErrInvalidTree = errors.New("invalid tree")

// Node is one entry in the tree arena. Children are addressed by index.
type Node struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Left      int       `json:"left"`
	Right     int       `json:"right"`
	Value     []float64 `json:"value"`
	Impurity  float64   `json:"impurity"`
	Samples   int       `json:"samples"`
}

// IsLeaf reports whether n carries the leaf sentinel.
func (n Node) IsLeaf() bool {
	return n.Feature == LeafSentinel
}

// Tree is a fitted binary decision tree stored as an arena of nodes in
// depth-first preorder. The root is node 0.
type Tree struct {
	Nodes     []Node `json:"nodes"`
	NFeatures int    `json:"n_features"`
	NClasses  int    `json:"n_classes"`
}

// GoesLeft is the routing rule shared by fitting and traversal: unknown (NaN)
// values always go right, known values go left iff v <= threshold.
func GoesLeft(v, threshold float64) bool {
	if math.IsNaN(v) {
		return false
	}
	return v <= threshold
}

// Apply returns the id of the leaf reached by sample x.
func (t *Tree) Apply(x []float64) int {
	id := 0
	for {
		n := t.Nodes[id]
		if n.IsLeaf() {
			return id
		}
		if GoesLeft(x[n.Feature], n.Threshold) {
			id = n.Left
		} else {
			id = n.Right
		}
	}
}

// Predict returns the majority class at the leaf reached by x.
func (t *Tree) Predict(x []float64) int {
	return Argmax(t.Nodes[t.Apply(x)].Value)
}

// Depth returns the length of the longest root-to-leaf path.
func (t *Tree) Depth() int {
	if len(t.Nodes) == 0 {
		return 0
	}
	var walk func(id int) int
	walk = func(id int) int {
		n := t.Nodes[id]
		if n.IsLeaf() {
			return 0
		}
		return 1 + max(walk(n.Left), walk(n.Right))
	}
	return walk(0)
}

// Leaves returns the number of leaf nodes.
func (t *Tree) Leaves() int {
	count := 0
	for _, n := range t.Nodes {
		if n.IsLeaf() {
			count++
		}
	}
	return count
}

// Validate checks arena consistency: every child id points forward inside the
// arena, leaves have no children, internal nodes reference a feature in range,
// and every node carries NClasses counts. Since node ids are preorder, forward
// child pointers also rule out cycles.
func (t *Tree) Validate() error {
	if t == nil || len(t.Nodes) == 0 {
		return fmt.Errorf("%w: no nodes", ErrInvalidTree)
	}
	if t.NClasses < 1 {
		return fmt.Errorf("%w: n_classes = %d", ErrInvalidTree, t.NClasses)
	}
	if t.NFeatures < 1 {
		return fmt.Errorf("%w: n_features = %d", ErrInvalidTree, t.NFeatures)
	}
	parents := make([]int, len(t.Nodes))
	for id, n := range t.Nodes {
		if len(n.Value) != t.NClasses {
			return fmt.Errorf("%w: node %d has %d class counts, want %d", ErrInvalidTree, id, len(n.Value), t.NClasses)
		}
		if n.IsLeaf() {
			if n.Left != NoChild || n.Right != NoChild {
				return fmt.Errorf("%w: leaf %d has children", ErrInvalidTree, id)
			}
			continue
		}
		if n.Feature < 0 || n.Feature >= t.NFeatures {
			return fmt.Errorf("%w: node %d feature %d out of range", ErrInvalidTree, id, n.Feature)
		}
		for _, c := range []int{n.Left, n.Right} {
			if c <= id || c >= len(t.Nodes) {
				return fmt.Errorf("%w: node %d child %d out of range", ErrInvalidTree, id, c)
			}
			parents[c]++
		}
	}
	for id := 1; id < len(parents); id++ {
		if parents[id] != 1 {
			return fmt.Errorf("%w: node %d has %d parents", ErrInvalidTree, id, parents[id])
		}
	}
	return nil
}

// Argmax returns the index of the largest count, the lowest index on ties.
func Argmax(counts []float64) int {
	best := 0
	for i := 1; i < len(counts); i++ {
		if counts[i] > counts[best] {
			best = i
		}
	}
	return best
}
