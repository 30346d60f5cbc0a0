package model

import (
	"fmt"
	"slices"
)

// LabelEncoder maps subject names to class indices 0..K-1. Classes are the
// sorted unique names, so indices change whenever names are added.
type LabelEncoder struct {
	classes []string
	index   map[string]int
}

// FitLabels builds an encoder over the unique values of names.
func FitLabels(names []string) *LabelEncoder {
	classes := slices.Clone(names)
	slices.Sort(classes)
	classes = slices.Compact(classes)
	return newEncoder(classes)
}

// NewLabelEncoder restores an encoder from a persisted class list. The list
// must be sorted and free of duplicates.
func NewLabelEncoder(classes []string) (*LabelEncoder, error) {
	for i := 1; i < len(classes); i++ {
		if classes[i-1] >= classes[i] {
			return nil, fmt.Errorf("%w: classes not sorted and unique at %q", ErrInvalidArtifact, classes[i])
		}
	}
	return newEncoder(slices.Clone(classes)), nil
}

func newEncoder(classes []string) *LabelEncoder {
	idx := make(map[string]int, len(classes))
	for i, c := range classes {
		idx[c] = i
	}
	return &LabelEncoder{classes: classes, index: idx}
}

// Len returns the number of classes.
func (e *LabelEncoder) Len() int {
	if e == nil {
		return 0
	}
	return len(e.classes)
}

// Classes returns a copy of the class names in index order.
func (e *LabelEncoder) Classes() []string {
	if e == nil {
		return nil
	}
	return slices.Clone(e.classes)
}

// Encode returns the class index of name.
func (e *LabelEncoder) Encode(name string) (int, bool) {
	i, ok := e.index[name]
	return i, ok
}

// Decode returns the name of class i.
func (e *LabelEncoder) Decode(i int) (string, error) {
	if e.Len() == 0 {
		return "", fmt.Errorf("%w: encoder has no classes", ErrDecodeError)
	}
	if i < 0 || i >= len(e.classes) {
		return "", fmt.Errorf("%w: class %d out of range [0,%d)", ErrDecodeError, i, len(e.classes))
	}
	return e.classes[i], nil
}
