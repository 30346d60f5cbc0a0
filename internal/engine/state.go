package engine

import (
	"encoding/json"
	"fmt"

	"github.com/abhisek/predinator/internal/answer"
)

// Phase is the lifecycle phase of one game.
type Phase int

const (
	PhaseNotStarted Phase = iota // No game yet
	PhaseActive                  // Asking questions
	PhaseConcluded               // Guess made or game ended; terminal
)

func (p Phase) String() string {
	switch p {
	case PhaseNotStarted:
		return "not_started"
	case PhaseActive:
		return "active"
	case PhaseConcluded:
		return "concluded"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Step is one answered question on the path from the root.
type Step struct {
	AttributeID string       `json:"attribute_id"`
	Answer      answer.Value `json:"answer"`
}

// GameState is the flat record an external session layer persists between
// requests. Unknown answers encode as JSON null.
type GameState struct {
	Cursor       int    `json:"cursor"`
	Path         []Step `json:"path"`
	Active       bool   `json:"active"`
	Concluded    bool   `json:"concluded"`
	ModelVersion string `json:"model_version"`
}

// Phase derives the phase recorded in s.
func (s GameState) Phase() Phase {
	switch {
	case s.Concluded:
		return PhaseConcluded
	case s.Active:
		return PhaseActive
	}
	return PhaseNotStarted
}

// PathAnswers returns the path as attribute ID → answer. Later steps win.
func (s GameState) PathAnswers() map[string]answer.Value {
	out := make(map[string]answer.Value, len(s.Path))
	for _, st := range s.Path {
		out[st.AttributeID] = st.Answer
	}
	return out
}

// Marshal encodes s as JSON.
func (s GameState) Marshal() ([]byte, error) {
	if s.Path == nil {
		s.Path = []Step{}
	}
	return json.Marshal(s)
}

// UnmarshalGameState decodes a state written by Marshal.
func UnmarshalGameState(data []byte) (GameState, error) {
	var s GameState
	if err := json.Unmarshal(data, &s); err != nil {
		return GameState{}, fmt.Errorf("decode game state: %w", err)
	}
	if s.Active && s.Concluded {
		return GameState{}, fmt.Errorf("decode game state: both active and concluded")
	}
	return s, nil
}
