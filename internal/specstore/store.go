// Package specstore owns the lifecycle of one specification document:
// creation and load, path normalization, change detection, merge, and
// persistence.
package specstore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/apitrail/apitrail/internal/builder"
	"github.com/apitrail/apitrail/internal/models"
	"github.com/apitrail/apitrail/internal/storage"
)

// Options configures a store instance
type Options struct {
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	Version         string          `json:"version"`
	Servers         []models.Server `json:"servers,omitempty"`
	OutputDir       string          `json:"outputDir"`
	SingleFile      bool            `json:"singleFile"`      // One active file named after the title
	AutoSave        bool            `json:"autoSave"`        // Persist after every accepted operation
	ChangeDetection bool            `json:"changeDetection"` // Skip re-merge of byte-identical traffic
	Builder         builder.Options `json:"builder"`
}

// DefaultOptions returns the options used when none are supplied
func DefaultOptions() Options {
	return Options{
		Title:           "API Documentation",
		Description:     "Automatically generated from captured traffic",
		Version:         "1.0.0",
		OutputDir:       "collections",
		SingleFile:      true,
		AutoSave:        true,
		ChangeDetection: true,
		Builder:         builder.DefaultOptions(),
	}
}

// Store owns one in-memory document and its change-detection table.
// All mutation goes through AddOperation.
type Store struct {
	mu      sync.RWMutex
	name    string
	doc     *models.SpecDocument
	hashes  map[string]string // endpoint key -> content hash
	opts    Options
	adapter storage.Adapter // optional, direct filesystem writes when nil
}

// New creates a store for the named collection. The document starts
// empty; call Load to merge any persisted state.
func New(name string, opts Options, adapter storage.Adapter) *Store {
	title := opts.Title
	if title == "" {
		title = name
	}
	if opts.Version == "" {
		opts.Version = "1.0.0"
	}

	doc := models.NewSpecDocument(title, opts.Description, opts.Version)
	if len(opts.Servers) > 0 {
		doc.Servers = append(doc.Servers, opts.Servers...)
	}

	return &Store{
		name:    name,
		doc:     doc,
		hashes:  make(map[string]string),
		opts:    opts,
		adapter: adapter,
	}
}

// Name returns the collection name
func (s *Store) Name() string {
	return s.name
}

// Options returns a copy of the store's options
func (s *Store) Options() Options {
	return s.opts
}

var numericSegment = regexp.MustCompile(`^[0-9]+$`)

// NormalizePath strips a single trailing slash and collapses purely
// numeric path segments into the {id} placeholder. The heuristic is
// syntactic: UUID and slug identifiers are not recognized.
func NormalizePath(path string) string {
	if path == "" {
		return path
	}
	if len(path) > 1 && strings.HasSuffix(path, "/") {
		path = path[:len(path)-1]
	}

	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if i == 0 {
			// First element is empty for rooted paths, never preceded
			// by a slash otherwise
			continue
		}
		if numericSegment.MatchString(seg) {
			segments[i] = "{id}"
		}
	}
	return strings.Join(segments, "/")
}

// EndpointKey builds the change-detection key for a method and
// normalized path.
func EndpointKey(method, normalizedPath string) string {
	return strings.ToUpper(method) + ":" + normalizedPath
}

// endpointHash digests the change-relevant parts of a capture. Timing
// and metadata are deliberately excluded so re-observing identical
// traffic hashes identically.
func endpointHash(rec *models.CaptureRecord, normalizedPath string) string {
	payload := map[string]interface{}{
		"method":  strings.ToUpper(rec.Request.Method),
		"path":    normalizedPath,
		"headers": rec.Request.Headers,
		"body":    rec.Request.Body,
		"response": map[string]interface{}{
			"statusCode": rec.Response.StatusCode,
			"headers":    rec.Response.Headers,
			"body":       rec.Response.Body,
		},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		// Marshal of plain maps cannot fail; fall through to a key
		// that always misses the table
		return fmt.Sprintf("unhashable-%d", time.Now().UnixNano())
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// AddOperation merges one capture into the document. Re-observing
// byte-identical traffic for an endpoint is a no-op: the stored
// operation is returned and nothing is re-merged or written.
func (s *Store) AddOperation(rec *models.CaptureRecord) (*models.Operation, error) {
	if rec == nil {
		return nil, fmt.Errorf("capture record is nil")
	}
	if rec.Request.Method == "" {
		return nil, fmt.Errorf("capture record missing request method")
	}
	if rec.Request.Path == "" {
		return nil, fmt.Errorf("capture record missing request path")
	}

	s.mu.Lock()

	normalizedPath := NormalizePath(rec.Request.Path)
	rec.Request.NormalizedPath = normalizedPath

	method := strings.ToLower(rec.Request.Method)
	key := EndpointKey(rec.Request.Method, normalizedPath)
	hash := endpointHash(rec, normalizedPath)

	if s.opts.ChangeDetection && s.hashes[key] == hash {
		if existing := s.doc.Paths[normalizedPath][method]; existing != nil {
			s.mu.Unlock()
			return existing, nil
		}
	}

	s.hashes[key] = hash

	op := builder.Build(rec, s.opts.Builder)

	if s.doc.Paths[normalizedPath] == nil {
		s.doc.Paths[normalizedPath] = make(models.PathItem)
	}
	s.doc.Paths[normalizedPath][method] = op

	if s.opts.Builder.GroupByPath {
		if seg := builder.FirstPathSegment(normalizedPath); seg != "" && !s.doc.HasTag(seg) {
			s.doc.Tags = append(s.doc.Tags, models.Tag{
				Name:        seg,
				Description: fmt.Sprintf("Operations for %s", seg),
			})
		}
	}

	s.mu.Unlock()

	if s.opts.AutoSave {
		if err := s.Save(); err != nil {
			// The in-memory mutation already happened; only the
			// persisted copy lags
			return op, err
		}
	}

	return op, nil
}

// Document returns the in-memory document. Callers must not mutate it.
func (s *Store) Document() *models.SpecDocument {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc
}

// Stats returns read-side aggregation over the document
func (s *Store) Stats() models.CollectionStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return models.CollectionStats{
		Name:       s.name,
		Title:      s.doc.Info.Title,
		Version:    s.doc.Info.Version,
		Paths:      len(s.doc.Paths),
		Operations: s.doc.OperationCount(),
		Tags:       len(s.doc.Tags),
		Schemas:    len(s.doc.Components.Schemas),
	}
}

// FilePath returns the persistence path for the current options
func (s *Store) FilePath() string {
	name := SanitizeTitle(s.doc.Info.Title)
	if s.opts.SingleFile {
		return filepath.ToSlash(filepath.Join(s.opts.OutputDir, name+".json"))
	}
	stamp := time.Now().UTC().Format("20060102T150405Z")
	return filepath.ToSlash(filepath.Join(s.opts.OutputDir, fmt.Sprintf("%s_%s.json", name, stamp)))
}

// loadPath is the location an existing document is read from. In
// single-file mode this is the title-derived name; in multi-file mode
// it is the newest timestamped snapshot, found by name: the stamps are
// fixed-width UTC, so lexicographic order is chronological order.
// Returns "" when no snapshot exists.
func (s *Store) loadPath() string {
	name := SanitizeTitle(s.doc.Info.Title)
	if s.opts.SingleFile {
		return filepath.ToSlash(filepath.Join(s.opts.OutputDir, name+".json"))
	}

	var candidates []string
	if s.adapter != nil {
		files, err := s.adapter.ListFiles(s.opts.OutputDir)
		if err != nil {
			return ""
		}
		candidates = files
	} else {
		entries, err := os.ReadDir(s.opts.OutputDir)
		if err != nil {
			return ""
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				candidates = append(candidates, entry.Name())
			}
		}
	}

	prefix := name + "_"
	var newest string
	for _, candidate := range candidates {
		base := filepath.Base(candidate)
		if strings.HasPrefix(base, prefix) && strings.HasSuffix(base, ".json") && base > newest {
			newest = base
		}
	}
	if newest == "" {
		return ""
	}
	return filepath.ToSlash(filepath.Join(s.opts.OutputDir, newest))
}

// Save serializes the document and writes it through the storage
// adapter, or directly to the filesystem when no adapter is configured.
// Write failures propagate; the in-memory document is not rolled back.
func (s *Store) Save() error {
	s.mu.RLock()
	data, err := json.MarshalIndent(s.doc, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to serialize document %s: %w", s.name, err)
	}

	path := s.FilePath()
	if s.adapter != nil {
		if err := s.adapter.WriteFile(path, data); err != nil {
			return fmt.Errorf("failed to persist document %s: %w", s.name, err)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory for %s: %w", s.name, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to persist document %s: %w", s.name, err)
	}
	return nil
}

// Load merges persisted state over the fresh document. Loading is
// best-effort: absent and unparseable files are logged and skipped.
func (s *Store) Load() {
	path := s.loadPath()
	if path == "" {
		return
	}

	var data []byte
	var err error
	if s.adapter != nil {
		data, err = s.adapter.ReadFile(path)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := json.Unmarshal(data, s.doc); err != nil {
		log.Printf("Ignoring malformed persisted document %s: %v", path, err)
	}
}

// ExportJSON serializes the document as indented JSON
func (s *Store) ExportJSON() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return json.MarshalIndent(s.doc, "", "  ")
}

// ExportYAML serializes the document as YAML
func (s *Store) ExportYAML() ([]byte, error) {
	s.mu.RLock()
	data, err := json.Marshal(s.doc)
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	// Round-trip through generic maps so YAML output carries plain
	// keys instead of struct field names
	var generic map[string]interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, err
	}
	return yaml.Marshal(generic)
}

// Absorb unions another document's paths, components, and tags into
// this store's document. On key collision, prefixOnCollision moves the
// incoming path under /<source-name> instead of silently overwriting.
func (s *Store) Absorb(src *models.SpecDocument, sourceName string, prefixOnCollision bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for path, item := range src.Paths {
		target := path
		if _, exists := s.doc.Paths[target]; exists && prefixOnCollision {
			target = "/" + SanitizeTitle(sourceName) + path
		}
		if s.doc.Paths[target] == nil {
			s.doc.Paths[target] = make(models.PathItem)
		}
		for method, op := range item {
			s.doc.Paths[target][method] = op
		}
	}

	absorbComponentMap(s.doc.Components.Schemas, src.Components.Schemas, sourceName, prefixOnCollision)
	absorbComponentMap(s.doc.Components.Responses, src.Components.Responses, sourceName, prefixOnCollision)
	absorbComponentMap(s.doc.Components.Parameters, src.Components.Parameters, sourceName, prefixOnCollision)
	absorbComponentMap(s.doc.Components.Examples, src.Components.Examples, sourceName, prefixOnCollision)
	absorbComponentMap(s.doc.Components.RequestBodies, src.Components.RequestBodies, sourceName, prefixOnCollision)
	absorbComponentMap(s.doc.Components.Headers, src.Components.Headers, sourceName, prefixOnCollision)
	absorbComponentMap(s.doc.Components.SecuritySchemes, src.Components.SecuritySchemes, sourceName, prefixOnCollision)

	for _, tag := range src.Tags {
		if !s.doc.HasTag(tag.Name) {
			s.doc.Tags = append(s.doc.Tags, tag)
		}
	}
}

func absorbComponentMap(dst, src map[string]interface{}, sourceName string, prefixOnCollision bool) {
	for key, value := range src {
		target := key
		if _, exists := dst[target]; exists && prefixOnCollision {
			target = SanitizeTitle(sourceName) + "_" + key
		}
		dst[target] = value
	}
}

var unsafeTitleChars = regexp.MustCompile(`[^a-zA-Z0-9\-_]`)

// SanitizeTitle converts a document title into a safe filename stem
func SanitizeTitle(title string) string {
	sanitized := unsafeTitleChars.ReplaceAllString(title, "_")
	if sanitized == "" {
		sanitized = "api"
	}
	return sanitized
}
