package modelstore

import (
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Yonsn76/cv-clasification-sub000/internal/ml"
)

var (
	// ErrNotFound is returned for an unknown package slug.
	ErrNotFound = errors.New("package not found")
	// ErrCorrupt is returned when a package misses a required artefact.
	ErrCorrupt = errors.New("package corrupt")
	// ErrConflict is returned when importing over an existing slug without
	// overwrite.
	ErrConflict = errors.New("package already exists")
	// ErrBadSlug is returned for slugs that would escape the store roots.
	ErrBadSlug = errors.New("invalid package slug")
)

const (
	metadataFile     = "metadata.json"
	modelFile        = "model.gob"
	vectorizerFile   = "vectorizer.gob"
	tokenizerFile    = "tokenizer.gob"
	encoderFile      = "encoder.gob"
	bertTokenizerDir = "bert_tokenizer"

	// FormatVersion is the on-disk package format revision.
	FormatVersion = "1.0"
)

// Metadata is the self-describing descriptor of a model package. It is the
// only file a catalogue reader parses, so it stays plain JSON.
type Metadata struct {
	Name             string         `json:"name"`
	DisplayName      string         `json:"display_name"`
	Family           string         `json:"family"` // classical | neural
	Variant          string         `json:"variant"`
	CreatedAt        time.Time      `json:"created_at"`
	Classes          []string       `json:"classes"`
	ClassCount       int            `json:"class_count"`
	FeatureCount     int            `json:"feature_count,omitempty"`
	MaxLength        int            `json:"max_length,omitempty"`
	Hyperparams      map[string]any `json:"hyperparameters,omitempty"`
	TrainSize        int            `json:"train_size"`
	Accuracy         float64        `json:"accuracy"`
	IsDeepLearning   bool           `json:"is_deep_learning"`
	NaiveBayesFlavor string         `json:"naive_bayes_flavor,omitempty"`
	FormatVersion    string         `json:"format_version"`
}

// Store is the filesystem catalogue of trained model packages. Identity is
// the directory name; metadata.json is written last and read first, which
// makes it the commit marker: a directory without it is not a package.
type Store struct {
	classicalRoot string
	neuralRoot    string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a store over the two family roots, creating them if needed.
func New(classicalRoot, neuralRoot string) (*Store, error) {
	for _, root := range []string{classicalRoot, neuralRoot} {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create model store root: %w", err)
		}
	}
	return &Store{
		classicalRoot: classicalRoot,
		neuralRoot:    neuralRoot,
		locks:         make(map[string]*sync.Mutex),
	}, nil
}

// slugLock serialises mutating operations on one slug.
func (s *Store) slugLock(slug string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[slug]
	if !ok {
		l = &sync.Mutex{}
		s.locks[slug] = l
	}
	return l
}

func validSlug(slug string) error {
	if slug == "" || slug != filepath.Base(slug) || strings.HasPrefix(slug, ".") {
		return fmt.Errorf("%w: %q", ErrBadSlug, slug)
	}
	return nil
}

func (s *Store) root(isDeep bool) string {
	if isDeep {
		return s.neuralRoot
	}
	return s.classicalRoot
}

// find locates an existing package directory by slug across both roots.
func (s *Store) find(slug string) (dir string, isDeep bool, err error) {
	if err := validSlug(slug); err != nil {
		return "", false, err
	}
	for _, deep := range []bool{false, true} {
		dir := filepath.Join(s.root(deep), slug)
		if _, statErr := os.Stat(filepath.Join(dir, metadataFile)); statErr == nil {
			return dir, deep, nil
		}
	}
	return "", false, fmt.Errorf("%w: %s", ErrNotFound, slug)
}

// SaveClassical persists a classical model package under slug, replacing any
// previous package with that slug.
func (s *Store) SaveClassical(slug string, model *ml.ClassicalModel, meta Metadata) error {
	return s.save(slug, false, meta, map[string]any{
		modelFile:      &model.Estimator,
		vectorizerFile: model.Vectorizer,
		encoderFile:    model.Encoder,
	}, nil)
}

// SaveNeural persists a neural model package under slug.
func (s *Store) SaveNeural(slug string, model *ml.NeuralModel, meta Metadata) error {
	artefacts := map[string]any{
		modelFile:   &model.Net,
		encoderFile: model.Encoder,
	}
	var subword *ml.WordPieceTokenizer
	if model.Subword != nil {
		subword = model.Subword
	} else {
		artefacts[tokenizerFile] = model.Tokenizer
	}
	return s.save(slug, true, meta, artefacts, subword)
}

func (s *Store) save(slug string, isDeep bool, meta Metadata, artefacts map[string]any, subword *ml.WordPieceTokenizer) error {
	if err := validSlug(slug); err != nil {
		return err
	}
	lock := s.slugLock(slug)
	lock.Lock()
	defer lock.Unlock()

	// Replace any previous package, including half-written leftovers and a
	// same-slug package in the other family root.
	if err := s.clear(slug); err != nil {
		return fmt.Errorf("failed to clear package directory: %w", err)
	}
	dir := filepath.Join(s.root(isDeep), slug)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create package directory: %w", err)
	}

	names := make([]string, 0, len(artefacts))
	for name := range artefacts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := writeGob(filepath.Join(dir, name), artefacts[name]); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
	if subword != nil {
		if err := subword.Save(filepath.Join(dir, bertTokenizerDir)); err != nil {
			return fmt.Errorf("failed to write tokenizer: %w", err)
		}
	}

	meta.Name = slug
	meta.FormatVersion = FormatVersion
	meta.IsDeepLearning = isDeep
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}
	// Metadata last: its presence commits the package.
	return writeJSON(filepath.Join(dir, metadataFile), &meta)
}

// clear removes the slug's directory from both family roots, keeping slugs
// unique across the store. Caller holds the slug lock.
func (s *Store) clear(slug string) error {
	for _, deep := range []bool{false, true} {
		if err := os.RemoveAll(filepath.Join(s.root(deep), slug)); err != nil {
			return err
		}
	}
	return nil
}

// Load reads a package and materialises its model. Family is decided by
// which root holds the slug.
func (s *Store) Load(slug string) (ml.Model, *Metadata, error) {
	dir, isDeep, err := s.find(slug)
	if err != nil {
		return nil, nil, err
	}
	meta := &Metadata{}
	if err := readJSON(filepath.Join(dir, metadataFile), meta); err != nil {
		return nil, nil, fmt.Errorf("%w: unreadable metadata: %v", ErrCorrupt, err)
	}

	if !isDeep {
		model := &ml.ClassicalModel{Variant: ml.Variant(meta.Variant)}
		if err := readGob(filepath.Join(dir, modelFile), &model.Estimator); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		model.Vectorizer = &ml.TFIDFVectorizer{}
		if err := readGob(filepath.Join(dir, vectorizerFile), model.Vectorizer); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		model.Encoder = &ml.LabelEncoder{}
		if err := readGob(filepath.Join(dir, encoderFile), model.Encoder); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		return model, meta, nil
	}

	model := &ml.NeuralModel{Variant: ml.Variant(meta.Variant)}
	if err := readGob(filepath.Join(dir, modelFile), &model.Net); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	model.Encoder = &ml.LabelEncoder{}
	if err := readGob(filepath.Join(dir, encoderFile), model.Encoder); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if model.Variant == ml.VariantBERT {
		subword, err := ml.LoadWordPieceTokenizer(filepath.Join(dir, bertTokenizerDir), meta.MaxLength)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		model.Subword = subword
	} else {
		model.Tokenizer = &ml.Tokenizer{}
		if err := readGob(filepath.Join(dir, tokenizerFile), model.Tokenizer); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
	}
	return model, meta, nil
}

// List returns the catalogue across both roots, newest first. Directories
// without metadata are half-written or foreign and are skipped with a
// warning.
func (s *Store) List() []Metadata {
	var out []Metadata
	for _, deep := range []bool{false, true} {
		root := s.root(deep)
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
				continue
			}
			meta := Metadata{}
			if err := readJSON(filepath.Join(root, e.Name(), metadataFile), &meta); err != nil {
				log.Printf("⚠️  Skipping model directory without metadata: %s", e.Name())
				continue
			}
			out = append(out, meta)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Exists reports whether a committed package with the slug is present.
func (s *Store) Exists(slug string) bool {
	_, _, err := s.find(slug)
	return err == nil
}

// Delete removes a package directory. It is idempotent: deleting an absent
// slug returns false.
func (s *Store) Delete(slug string) (bool, error) {
	if err := validSlug(slug); err != nil {
		return false, err
	}
	lock := s.slugLock(slug)
	lock.Lock()
	defer lock.Unlock()

	removed := false
	for _, deep := range []bool{false, true} {
		dir := filepath.Join(s.root(deep), slug)
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			return false, fmt.Errorf("failed to delete package: %w", err)
		}
		removed = true
	}
	return removed, nil
}

// GetMetadata reads a package descriptor without loading the model.
func (s *Store) GetMetadata(slug string) (*Metadata, error) {
	dir, _, err := s.find(slug)
	if err != nil {
		return nil, err
	}
	meta := &Metadata{}
	if err := readJSON(filepath.Join(dir, metadataFile), meta); err != nil {
		return nil, fmt.Errorf("%w: unreadable metadata: %v", ErrCorrupt, err)
	}
	return meta, nil
}

func writeGob(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewEncoder(f).Encode(v)
}

func readGob(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewDecoder(f).Decode(v)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
