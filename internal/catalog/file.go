package catalog

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Separator delimits fields in the questions file.
const Separator = "::"

// Header is the first line of the questions file.
const Header = "attribute_id" + Separator + "question_text" + Separator + "possible_answers"

// FileStore persists the catalog as a delimited text file:
//
//	attribute_id::question_text::possible_answers
//	is_male::Is your character male?::Yes,No,DontKnow
type FileStore struct {
	path string
	log  zerolog.Logger
	mu   sync.Mutex
}

// NewFileStore creates a FileStore for path.
func NewFileStore(path string, log zerolog.Logger) *FileStore {
	return &FileStore{path: path, log: log}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads all questions. Malformed lines are skipped with a warning.
func (s *FileStore) Load() ([]Question, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s not found", ErrCatalogUnavailable, s.path)
		}
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("%w: read header: %v", ErrCatalogUnavailable, err)
		}
		return nil, fmt.Errorf("%w: %s is empty", ErrCatalogUnavailable, s.path)
	}
	if header := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff")); header != Header {
		s.log.Warn().Str("path", s.path).Str("header", header).Msg("questions file header mismatch")
	}

	var questions []Question
	seen := make(map[string]bool)
	lineNo := 1
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		q, err := parseLine(line)
		if err != nil {
			s.log.Warn().Int("line", lineNo).Err(err).Msg("skipping malformed question")
			continue
		}
		if seen[q.AttributeID] {
			s.log.Warn().Int("line", lineNo).Str("attribute_id", q.AttributeID).Msg("skipping duplicate question")
			continue
		}
		seen[q.AttributeID] = true
		questions = append(questions, q)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	return questions, nil
}

func parseLine(line string) (Question, error) {
	parts := strings.Split(line, Separator)
	if len(parts) != 3 {
		return Question{}, fmt.Errorf("expected 3 fields, got %d", len(parts))
	}
	id := strings.TrimSpace(parts[0])
	if id == "" {
		return Question{}, fmt.Errorf("empty attribute id")
	}
	return NewQuestion(id, parts[1], strings.Split(parts[2], ",")), nil
}

// Save overwrites the file with questions. The write goes to a temp file in the
// same directory which is then renamed over the target.
func (s *FileStore) Save(questions []Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	b.WriteString(Header)
	b.WriteByte('\n')
	for _, q := range questions {
		answers := make([]string, len(q.AllowedAnswers))
		for i, a := range q.AllowedAnswers {
			answers[i] = displayAnswer(a)
		}
		fmt.Fprintf(&b, "%s%s%s%s%s\n", q.AttributeID, Separator, q.Prompt, Separator, strings.Join(answers, ","))
	}

	if err := WriteFileAtomic(s.path, []byte(b.String())); err != nil {
		return fmt.Errorf("save questions: %w", err)
	}
	return nil
}

func displayAnswer(a string) string {
	switch a {
	case "dontknow", "don't know", "dont know":
		return "DontKnow"
	case "":
		return a
	}
	return strings.ToUpper(a[:1]) + a[1:]
}

// WriteFileAtomic writes data to a temp file next to path and renames it into place.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu        sync.Mutex
	questions []Question
	missing   bool
	saves     int
}

// NewMemoryStore returns a MemoryStore holding questions.
func NewMemoryStore(questions ...Question) *MemoryStore {
	return &MemoryStore{questions: cloneQuestions(questions)}
}

// NewMissingMemoryStore returns a MemoryStore whose Load fails until Save is called.
func NewMissingMemoryStore() *MemoryStore {
	return &MemoryStore{missing: true}
}

func (m *MemoryStore) Load() ([]Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.missing {
		return nil, fmt.Errorf("%w: memory store empty", ErrCatalogUnavailable)
	}
	return cloneQuestions(m.questions), nil
}

func (m *MemoryStore) Save(questions []Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.questions = cloneQuestions(questions)
	m.missing = false
	m.saves++
	return nil
}

// Saves returns how many times Save was called.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func cloneQuestions(in []Question) []Question {
	out := make([]Question, len(in))
	for i, q := range in {
		q.AllowedAnswers = append([]string(nil), q.AllowedAnswers...)
		out[i] = q
	}
	return out
}
