package seed

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/abhisek/predinator/internal/answer"
	"github.com/abhisek/predinator/internal/catalog"
	"github.com/abhisek/predinator/internal/matrix"
)

//go:embed sample.yaml
var sampleYAML []byte

// ErrAlreadySeeded is returned by Apply when data exists and force is off.
var ErrAlreadySeeded = errors.New("data already present")

// Dataset is a catalog plus subject rows in the seed file format.
type Dataset struct {
	Questions []QuestionDoc `yaml:"questions"`
	Subjects  []SubjectDoc  `yaml:"subjects"`
}

// QuestionDoc is one question entry.
type QuestionDoc struct {
	ID     string `yaml:"id"`
	Prompt string `yaml:"prompt"`
}

// SubjectDoc lists the attributes a subject answers "yes" to.
type SubjectDoc struct {
	Name   string   `yaml:"name"`
	Traits []string `yaml:"traits"`
}

// Sample returns the embedded sample dataset.
func Sample() (*Dataset, error) {
	return Parse(sampleYAML)
}

// Parse decodes and checks a dataset.
func Parse(data []byte) (*Dataset, error) {
	var d Dataset
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse seed data: %w", err)
	}
	if err := d.validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

func (d *Dataset) validate() error {
	if len(d.Questions) == 0 {
		return errors.New("seed data has no questions")
	}
	ids := make(map[string]bool, len(d.Questions))
	for i, q := range d.Questions {
		if q.ID == "" || q.Prompt == "" {
			return fmt.Errorf("seed question %d: id and prompt are required", i)
		}
		if ids[q.ID] {
			return fmt.Errorf("seed question %q: %w", q.ID, catalog.ErrDuplicateAttribute)
		}
		ids[q.ID] = true
	}
	for _, s := range d.Subjects {
		for _, id := range s.Traits {
			if !ids[id] {
				return fmt.Errorf("seed subject %q: unknown trait %q", s.Name, id)
			}
		}
	}
	return nil
}

// Catalog returns the questions in file order.
func (d *Dataset) Catalog() []catalog.Question {
	qs := make([]catalog.Question, len(d.Questions))
	for i, q := range d.Questions {
		qs[i] = catalog.NewQuestion(q.ID, q.Prompt, answer.AllowedAnswers)
	}
	return qs
}

// Table builds the subject matrix. Attributes missing from a subject's traits
// are "no".
func (d *Dataset) Table() (*matrix.Table, error) {
	cols := make([]string, len(d.Questions))
	for i, q := range d.Questions {
		cols[i] = q.ID
	}
	t := matrix.NewTable(cols...)
	for _, s := range d.Subjects {
		attrs := make(map[string]answer.Value, len(cols))
		for _, c := range cols {
			attrs[c] = answer.No
		}
		for _, id := range s.Traits {
			attrs[id] = answer.Yes
		}
		if err := t.AddRow(s.Name, attrs); err != nil {
			return nil, fmt.Errorf("seed subject %q: %w", s.Name, err)
		}
	}
	return t, nil
}

// Result reports what Apply wrote.
type Result struct {
	Questions int
	Subjects  int
}

// Apply writes the dataset to the catalog and matrix stores. Unless force is
// set it refuses to overwrite a readable catalog or a non-empty matrix.
func Apply(ctx context.Context, d *Dataset, cat catalog.Store, mx matrix.Store, force bool) (Result, error) {
	if !force {
		if qs, err := cat.Load(); err == nil && len(qs) > 0 {
			return Result{}, fmt.Errorf("%w: catalog has %d questions", ErrAlreadySeeded, len(qs))
		}
		if t, err := mx.Load(ctx); err == nil && t.Len() > 0 {
			return Result{}, fmt.Errorf("%w: matrix has %d subjects", ErrAlreadySeeded, t.Len())
		}
	}

	table, err := d.Table()
	if err != nil {
		return Result{}, err
	}
	qs := d.Catalog()
	if err := cat.Save(qs); err != nil {
		return Result{}, fmt.Errorf("write catalog: %w", err)
	}
	if err := mx.Save(ctx, table); err != nil {
		return Result{}, fmt.Errorf("write matrix: %w", err)
	}
	return Result{Questions: len(qs), Subjects: table.Len()}, nil
}
