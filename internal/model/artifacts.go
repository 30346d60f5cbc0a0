package model

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/mod/semver"

	"github.com/abhisek/predinator/internal/cart"
	"github.com/abhisek/predinator/internal/catalog"
)

const (
	// TreeFile holds the fitted tree arena.
	TreeFile = "tree.json"

	// MetadataFile holds the encoder, feature columns and questions. It is
	// written last, so its appearance marks a complete artifact pair.
	MetadataFile = "metadata.json"

	// FormatVersion is the artifact format written by this build. Readers accept
	// any artifact with the same major version.
	FormatVersion = "v1.0.0"
)

//go:embed schema/*.json
var schemaFS embed.FS

var schemaCache sync.Map // map[string]*jsonschema.Schema

// treeDoc is tree.json: the arena tagged with the snapshot version so a tree
// and metadata file from different saves are never paired.
type treeDoc struct {
	Version string `json:"version"`
	*cart.Tree
}

type metadataDoc struct {
	FormatVersion  string             `json:"format_version"`
	Version        string             `json:"version"`
	TrainedAt      string             `json:"trained_at"`
	Classes        []string           `json:"classes"`
	FeatureColumns []string           `json:"feature_columns"`
	Questions      []catalog.Question `json:"questions"`
}

// FileArtifacts stores snapshots as tree.json + metadata.json in a directory.
type FileArtifacts struct {
	dir string
}

// NewFileArtifacts returns artifacts rooted at dir.
func NewFileArtifacts(dir string) *FileArtifacts {
	return &FileArtifacts{dir: dir}
}

// Dir returns the artifact directory.
func (a *FileArtifacts) Dir() string {
	return a.dir
}

func (a *FileArtifacts) Save(_ context.Context, s *Snapshot) error {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	treeData, err := EncodeTree(s)
	if err != nil {
		return err
	}
	meta := metadataDoc{
		FormatVersion:  FormatVersion,
		Version:        s.Version,
		TrainedAt:      s.TrainedAt.UTC().Format(time.RFC3339Nano),
		Classes:        s.Encoder.Classes(),
		FeatureColumns: s.FeatureColumns,
		Questions:      make([]catalog.Question, len(s.Questions)),
	}
	for i, q := range s.Questions {
		if q.AllowedAnswers == nil {
			q.AllowedAnswers = []string{}
		}
		meta.Questions[i] = q
	}
	metaData, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := catalog.WriteFileAtomic(filepath.Join(a.dir, TreeFile), treeData); err != nil {
		return fmt.Errorf("write tree: %w", err)
	}
	if err := catalog.WriteFileAtomic(filepath.Join(a.dir, MetadataFile), metaData); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

// EncodeTree renders the tree.json document for s.
func EncodeTree(s *Snapshot) ([]byte, error) {
	data, err := json.MarshalIndent(treeDoc{Version: s.Version, Tree: s.Tree}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal tree: %w", err)
	}
	return data, nil
}

func (a *FileArtifacts) Load(_ context.Context) (*Snapshot, error) {
	treeData, err := a.read(TreeFile)
	if err != nil {
		return nil, err
	}
	metaData, err := a.read(MetadataFile)
	if err != nil {
		return nil, err
	}
	return DecodeArtifacts(treeData, metaData)
}

func (a *FileArtifacts) read(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(a.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s not found", ErrModelUnavailable, name)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

// DecodeArtifacts parses and validates a tree and metadata pair.
func DecodeArtifacts(treeData, metaData []byte) (*Snapshot, error) {
	if err := validateDoc("tree", treeData); err != nil {
		return nil, err
	}
	if err := validateDoc("metadata", metaData); err != nil {
		return nil, err
	}

	var tree cart.Tree
	doc := treeDoc{Tree: &tree}
	if err := json.Unmarshal(treeData, &doc); err != nil {
		return nil, fmt.Errorf("%w: tree: %v", ErrInvalidArtifact, err)
	}
	var meta metadataDoc
	if err := json.Unmarshal(metaData, &meta); err != nil {
		return nil, fmt.Errorf("%w: metadata: %v", ErrInvalidArtifact, err)
	}

	if !semver.IsValid(meta.FormatVersion) || semver.Major(meta.FormatVersion) != semver.Major(FormatVersion) {
		return nil, fmt.Errorf("%w: format %s not readable by %s", ErrInvalidArtifact, meta.FormatVersion, FormatVersion)
	}
	if doc.Version != meta.Version {
		return nil, fmt.Errorf("%w: tree version %s does not match metadata version %s", ErrInvalidArtifact, doc.Version, meta.Version)
	}
	if err := tree.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}
	if len(meta.Classes) != tree.NClasses {
		return nil, fmt.Errorf("%w: %d classes but tree has %d", ErrInvalidArtifact, len(meta.Classes), tree.NClasses)
	}
	if len(meta.FeatureColumns) != tree.NFeatures {
		return nil, fmt.Errorf("%w: %d feature columns but tree has %d", ErrInvalidArtifact, len(meta.FeatureColumns), tree.NFeatures)
	}
	enc, err := NewLabelEncoder(meta.Classes)
	if err != nil {
		return nil, err
	}
	trainedAt, err := time.Parse(time.RFC3339Nano, meta.TrainedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: trained_at: %v", ErrInvalidArtifact, err)
	}
	return newSnapshot(meta.Version, trainedAt, &tree, enc, meta.FeatureColumns, meta.Questions), nil
}

func validateDoc(name string, data []byte) error {
	var parsed any
	if err := json.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("%w: %s: invalid JSON: %v", ErrInvalidArtifact, name, err)
	}
	compiled, err := compiledSchema(name)
	if err != nil {
		return err
	}
	if err := compiled.Validate(parsed); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidArtifact, name, err)
	}
	return nil
}

func compiledSchema(name string) (*jsonschema.Schema, error) {
	if cached, ok := schemaCache.Load(name); ok {
		return cached.(*jsonschema.Schema), nil
	}
	raw, err := schemaFS.ReadFile("schema/" + name + ".schema.json")
	if err != nil {
		return nil, fmt.Errorf("read %s schema: %w", name, err)
	}
	var def any
	if err := json.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("parse %s schema: %w", name, err)
	}
	c := jsonschema.NewCompiler()
	url := fmt.Sprintf("schema://%s.json", name)
	if err := c.AddResource(url, def); err != nil {
		return nil, fmt.Errorf("add resource: %w", err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile %s schema: %w", name, err)
	}
	schemaCache.Store(name, compiled)
	return compiled, nil
}

// MemoryArtifacts keeps the last saved snapshot in process.
type MemoryArtifacts struct {
	mu      sync.Mutex
	snap    *Snapshot
	SaveErr error
	LoadErr error
}

func (m *MemoryArtifacts) Save(_ context.Context, s *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.snap = s
	return nil
}

func (m *MemoryArtifacts) Load(_ context.Context) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	if m.snap == nil {
		return nil, ErrModelUnavailable
	}
	return m.snap, nil
}
