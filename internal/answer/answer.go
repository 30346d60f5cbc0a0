package answer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrInvalidAnswer is returned for input outside the yes/no/unknown synonym sets.
	ErrInvalidAnswer = errors.New("invalid answer")

	// ErrUnknownValueKind is returned by ToDisplay for values other than yes, no or unknown.
	ErrUnknownValueKind = errors.New("unknown value kind")
)

// Value is a three-valued attribute answer: Yes (1.0), No (0.0) or Unknown (NaN).
type Value float64

// Canonical values.
var (
	Yes     = Value(1.0)
	No      = Value(0.0)
	Unknown = Value(math.NaN())
)

// Canonical display labels.
const (
	LabelYes      = "Yes"
	LabelNo       = "No"
	LabelDontKnow = "Don't Know"
)

// AllowedAnswers is the allowed-answer set attached to every learned question.
var AllowedAnswers = []string{"yes", "no", "dontknow"}

var synonyms = map[string]Value{
	"yes":        Yes,
	"y":          Yes,
	"no":         No,
	"n":          No,
	"don't know": Unknown,
	"dont know":  Unknown,
	"dontknow":   Unknown,
	"d":          Unknown,
	"dk":         Unknown,
	"idk":        Unknown,
}

// ToNumeric decodes free-text input. Matching is case-insensitive and ignores
// surrounding whitespace.
func ToNumeric(text string) (Value, error) {
	key := strings.ToLower(strings.TrimSpace(text))
	if v, ok := synonyms[key]; ok {
		return v, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidAnswer, text)
}

// ToDisplay returns the canonical label for v.
func ToDisplay(v Value) (string, error) {
	switch {
	case v.IsUnknown():
		return LabelDontKnow, nil
	case v == Yes:
		return LabelYes, nil
	case v == No:
		return LabelNo, nil
	}
	return "", fmt.Errorf("%w: %v", ErrUnknownValueKind, float64(v))
}

// IsUnknown reports whether v is the unknown sentinel.
func (v Value) IsUnknown() bool {
	return math.IsNaN(float64(v))
}

// Float returns v as a float64, NaN for unknown.
func (v Value) Float() float64 {
	return float64(v)
}

// String implements fmt.Stringer.
func (v Value) String() string {
	s, err := ToDisplay(v)
	if err != nil {
		return fmt.Sprintf("Value(%g)", float64(v))
	}
	return s
}

// MarshalJSON encodes unknown as null so it survives text transports.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.IsUnknown() {
		return []byte("null"), nil
	}
	return json.Marshal(float64(v))
}

// UnmarshalJSON decodes null as unknown.
func (v *Value) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*v = Unknown
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("decode answer value: %w", err)
	}
	*v = Value(f)
	return nil
}

// FromFloat converts a stored float (NaN for unknown) into a Value.
func FromFloat(f float64) Value {
	return Value(f)
}
