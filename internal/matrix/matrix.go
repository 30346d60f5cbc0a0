package matrix

import (
	"context"
	"errors"
	"fmt"

	"github.com/abhisek/predinator/internal/answer"
)

// SubjectColumn is the name of the mandatory subject name column.
const SubjectColumn = "subject name"

var (
	// ErrMatrixUnavailable is returned when no subject matrix has been stored.
	ErrMatrixUnavailable = errors.New("subject matrix unavailable")

	// ErrDuplicateRow is returned by AddRow when the subject already has a row.
	ErrDuplicateRow = errors.New("subject already in matrix")

	// ErrUnknownSubject is returned when a subject has no row.
	ErrUnknownSubject = errors.New("unknown subject")

	// ErrUnknownColumn is returned when an attribute has no column.
	ErrUnknownColumn = errors.New("unknown attribute column")
)

// Store loads and persists the subject matrix.
type Store interface {
	Load(ctx context.Context) (*Table, error)
	Save(ctx context.Context, t *Table) error
}

// Table is the subject × attribute matrix. Rows are keyed by a case-sensitive
// subject name; columns by attribute ID. Row and column order are preserved.
type Table struct {
	columns  []string
	colIndex map[string]int
	names    []string
	rowIndex map[string]int
	values   [][]answer.Value
}

// NewTable creates an empty table with the given attribute columns.
func NewTable(columns ...string) *Table {
	t := &Table{
		colIndex: make(map[string]int),
		rowIndex: make(map[string]int),
	}
	for _, c := range columns {
		t.AddColumn(c, answer.Unknown)
	}
	return t
}

// Columns returns the attribute columns in order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

// Names returns subject names in row order.
func (t *Table) Names() []string {
	return append([]string(nil), t.names...)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.names)
}

// HasColumn reports whether attributeID is a column.
func (t *Table) HasColumn(attributeID string) bool {
	_, ok := t.colIndex[attributeID]
	return ok
}

// HasSubject reports whether name has a row.
func (t *Table) HasSubject(name string) bool {
	_, ok := t.rowIndex[name]
	return ok
}

// AddColumn appends a column filled with def. It reports false if the column exists.
func (t *Table) AddColumn(attributeID string, def answer.Value) bool {
	if t.HasColumn(attributeID) {
		return false
	}
	t.colIndex[attributeID] = len(t.columns)
	t.columns = append(t.columns, attributeID)
	for i := range t.values {
		t.values[i] = append(t.values[i], def)
	}
	return true
}

// AddRow appends a row for name. Attributes missing from attrs are unknown;
// attributes without a column get one, defaulting to unknown for existing rows.
// The table does not merge rows: an existing name is an error.
func (t *Table) AddRow(name string, attrs map[string]answer.Value) error {
	if t.HasSubject(name) {
		return fmt.Errorf("%w: %s", ErrDuplicateRow, name)
	}
	for id := range attrs {
		if !t.HasColumn(id) {
			t.AddColumn(id, answer.Unknown)
		}
	}
	row := make([]answer.Value, len(t.columns))
	for i, c := range t.columns {
		v, ok := attrs[c]
		if !ok {
			v = answer.Unknown
		}
		row[i] = v
	}
	t.rowIndex[name] = len(t.names)
	t.names = append(t.names, name)
	t.values = append(t.values, row)
	return nil
}

// Get returns the value for (name, attributeID).
func (t *Table) Get(name, attributeID string) (answer.Value, bool) {
	r, ok := t.rowIndex[name]
	if !ok {
		return answer.Unknown, false
	}
	c, ok := t.colIndex[attributeID]
	if !ok {
		return answer.Unknown, false
	}
	return t.values[r][c], true
}

// Set writes the value for (name, attributeID).
func (t *Table) Set(name, attributeID string, v answer.Value) error {
	r, ok := t.rowIndex[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSubject, name)
	}
	c, ok := t.colIndex[attributeID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownColumn, attributeID)
	}
	t.values[r][c] = v
	return nil
}

// Row returns a copy of the row for name keyed by attribute ID.
func (t *Table) Row(name string) (map[string]answer.Value, bool) {
	r, ok := t.rowIndex[name]
	if !ok {
		return nil, false
	}
	out := make(map[string]answer.Value, len(t.columns))
	for i, c := range t.columns {
		out[c] = t.values[r][i]
	}
	return out, true
}

// Features builds a row-major feature matrix over columns, in the given order,
// with unknowns as NaN. Columns absent from the table are all NaN.
func (t *Table) Features(columns []string) [][]float64 {
	idx := make([]int, len(columns))
	for j, c := range columns {
		i, ok := t.colIndex[c]
		if !ok {
			i = -1
		}
		idx[j] = i
	}
	X := make([][]float64, len(t.names))
	for r := range t.names {
		row := make([]float64, len(columns))
		for j, i := range idx {
			if i < 0 {
				row[j] = answer.Unknown.Float()
				continue
			}
			row[j] = t.values[r][i].Float()
		}
		X[r] = row
	}
	return X
}

// DistinctNames returns the number of distinct subject names.
func (t *Table) DistinctNames() int {
	return len(t.rowIndex)
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	c := NewTable(t.columns...)
	for r, name := range t.names {
		row := make([]answer.Value, len(t.columns))
		copy(row, t.values[r])
		c.rowIndex[name] = r
		c.names = append(c.names, name)
		c.values = append(c.values, row)
	}
	return c
}
