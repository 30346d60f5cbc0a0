package model

import (
	"fmt"
	"time"

	"github.com/abhisek/predinator/internal/answer"
	"github.com/abhisek/predinator/internal/cart"
	"github.com/abhisek/predinator/internal/catalog"
)

// RootNode is the id of the tree root.
const RootNode = 0

// Snapshot is one immutable trained model. Engines pin the snapshot they start
// on, so a retrain never reshapes the tree under an in-flight game.
type Snapshot struct {
	Version        string
	TrainedAt      time.Time
	Tree           *cart.Tree
	Encoder        *LabelEncoder
	FeatureColumns []string

	// Questions holds every catalog question known at train time, in catalog order.
	Questions []catalog.Question

	questionIndex map[string]int
}

// Decision is the result of looking up a node.
type Decision struct {
	Node        int
	Leaf        bool
	AttributeID string
}

// Guess is a prediction at a leaf.
type Guess struct {
	Subject    string  `json:"subject"`
	Confidence float64 `json:"confidence"`
	Node       int     `json:"node"`
}

func newSnapshot(version string, trainedAt time.Time, tree *cart.Tree, enc *LabelEncoder, features []string, questions []catalog.Question) *Snapshot {
	s := &Snapshot{
		Version:        version,
		TrainedAt:      trainedAt,
		Tree:           tree,
		Encoder:        enc,
		FeatureColumns: features,
		Questions:      questions,
		questionIndex:  make(map[string]int, len(questions)),
	}
	for i, q := range questions {
		s.questionIndex[q.AttributeID] = i
	}
	return s
}

// Question returns the question for attributeID from the train-time catalog.
func (s *Snapshot) Question(attributeID string) (catalog.Question, bool) {
	i, ok := s.questionIndex[attributeID]
	if !ok || i >= len(s.Questions) || s.Questions[i].AttributeID != attributeID {
		return catalog.Question{}, false
	}
	return s.Questions[i], true
}

func (s *Snapshot) node(id int) (cart.Node, error) {
	if s == nil || s.Tree == nil {
		return cart.Node{}, ErrModelUnavailable
	}
	if id < 0 || id >= len(s.Tree.Nodes) {
		return cart.Node{}, fmt.Errorf("%w: node %d not in [0,%d)", ErrCorruptTraversal, id, len(s.Tree.Nodes))
	}
	return s.Tree.Nodes[id], nil
}

// NextDecision reports whether node is a leaf, or which attribute it asks about.
func (s *Snapshot) NextDecision(node int) (Decision, error) {
	n, err := s.node(node)
	if err != nil {
		return Decision{}, err
	}
	if n.IsLeaf() {
		return Decision{Node: node, Leaf: true}, nil
	}
	if n.Feature < 0 || n.Feature >= len(s.FeatureColumns) {
		return Decision{}, fmt.Errorf("%w: node %d feature %d not in [0,%d)",
			ErrCorruptTraversal, node, n.Feature, len(s.FeatureColumns))
	}
	return Decision{Node: node, AttributeID: s.FeatureColumns[n.Feature]}, nil
}

// Route returns the child reached from node with answer v. Unknown goes right.
func (s *Snapshot) Route(node int, v answer.Value) (int, error) {
	n, err := s.node(node)
	if err != nil {
		return 0, err
	}
	if n.IsLeaf() {
		return 0, fmt.Errorf("%w: cannot route from leaf %d", ErrCorruptTraversal, node)
	}
	next := n.Right
	if cart.GoesLeft(v.Float(), n.Threshold) {
		next = n.Left
	}
	if next < 0 || next >= len(s.Tree.Nodes) {
		return 0, fmt.Errorf("%w: child %d of node %d out of range", ErrCorruptTraversal, next, node)
	}
	return next, nil
}

// PredictLeaf returns the majority subject at leaf node and its share of the
// leaf's samples.
func (s *Snapshot) PredictLeaf(node int) (Guess, error) {
	n, err := s.node(node)
	if err != nil {
		return Guess{}, err
	}
	if !n.IsLeaf() {
		return Guess{}, fmt.Errorf("%w: node %d", ErrNotALeaf, node)
	}
	best := cart.Argmax(n.Value)
	total := 0.0
	for _, c := range n.Value {
		total += c
	}
	name, err := s.Encoder.Decode(best)
	if err != nil {
		return Guess{}, err
	}
	conf := 0.0
	if total > 0 {
		conf = n.Value[best] / total
	}
	return Guess{Subject: name, Confidence: conf, Node: node}, nil
}
