package catalog

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCatalogUnavailable is returned when the backing store is missing or unreadable.
	ErrCatalogUnavailable = errors.New("question catalog unavailable")

	// ErrDuplicateAttribute is returned when an attribute ID is already in the catalog.
	ErrDuplicateAttribute = errors.New("duplicate attribute")
)

// Question is one yes/no distinguishing question. Questions are immutable once created.
type Question struct {
	AttributeID    string   `json:"attribute_id"`
	Prompt         string   `json:"prompt"`
	AllowedAnswers []string `json:"allowed_answers"`
}

// NewQuestion builds a Question, normalizing allowed answers to trimmed lower case.
func NewQuestion(attributeID, prompt string, allowed []string) Question {
	answers := make([]string, 0, len(allowed))
	for _, a := range allowed {
		a = strings.ToLower(strings.TrimSpace(a))
		if a != "" {
			answers = append(answers, a)
		}
	}
	return Question{
		AttributeID:    strings.TrimSpace(attributeID),
		Prompt:         strings.TrimSpace(prompt),
		AllowedAnswers: answers,
	}
}

// Store loads and persists the ordered question list.
type Store interface {
	Load() ([]Question, error)
	Save(questions []Question) error
}

// Catalog is an ordered question collection with lookup by attribute ID.
// Insertion order is preserved.
type Catalog struct {
	questions []Question
	index     map[string]int
}

// New builds a Catalog. Later duplicates of an attribute ID are dropped.
func New(questions []Question) *Catalog {
	c := &Catalog{index: make(map[string]int, len(questions))}
	for _, q := range questions {
		if _, dup := c.index[q.AttributeID]; dup {
			continue
		}
		c.index[q.AttributeID] = len(c.questions)
		c.questions = append(c.questions, q)
	}
	return c
}

// Len returns the number of questions.
func (c *Catalog) Len() int {
	return len(c.questions)
}

// Has reports whether attributeID is in the catalog.
func (c *Catalog) Has(attributeID string) bool {
	_, ok := c.index[attributeID]
	return ok
}

// Get returns the question for attributeID.
func (c *Catalog) Get(attributeID string) (Question, bool) {
	i, ok := c.index[attributeID]
	if !ok {
		return Question{}, false
	}
	return c.questions[i], true
}

// Append adds q at the end. The attribute ID must not already exist.
func (c *Catalog) Append(q Question) error {
	if c.Has(q.AttributeID) {
		return fmt.Errorf("%w: %s", ErrDuplicateAttribute, q.AttributeID)
	}
	c.index[q.AttributeID] = len(c.questions)
	c.questions = append(c.questions, q)
	return nil
}

// Questions returns a copy of the ordered question list.
func (c *Catalog) Questions() []Question {
	out := make([]Question, len(c.questions))
	copy(out, c.questions)
	return out
}

// AttributeIDs returns attribute IDs in catalog order.
func (c *Catalog) AttributeIDs() []string {
	ids := make([]string, len(c.questions))
	for i, q := range c.questions {
		ids[i] = q.AttributeID
	}
	return ids
}

// Map returns questions keyed by attribute ID.
func (c *Catalog) Map() map[string]Question {
	m := make(map[string]Question, len(c.questions))
	for _, q := range c.questions {
		m[q.AttributeID] = q
	}
	return m
}
