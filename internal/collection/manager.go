// Package collection routes capture records to one or more named
// specification documents and manages backups, version snapshots, and
// multi-document merges.
package collection

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/apitrail/apitrail/internal/metrics"
	"github.com/apitrail/apitrail/internal/models"
	"github.com/apitrail/apitrail/internal/specstore"
	"github.com/apitrail/apitrail/internal/storage"
)

// ManagerOptions configures a collection manager
type ManagerOptions struct {
	BaseDir       string            `json:"baseDir"`
	Defaults      specstore.Options `json:"defaults"`
	BackupOnWrite bool              `json:"backupOnWrite"` // Timestamped pre-mutation backups, skipped in single-file mode
}

// Manager owns a registry of named specification stores
type Manager struct {
	mu      sync.RWMutex
	stores  map[string]*specstore.Store
	adapter storage.Adapter
	opts    ManagerOptions
}

// MergeOptions configures a multi-document merge
type MergeOptions struct {
	PrefixWithCollectionName bool `json:"prefixWithCollectionName"`
}

// NewManager creates a manager persisting through the given adapter.
// A nil adapter makes stores fall back to direct filesystem writes.
func NewManager(adapter storage.Adapter, opts ManagerOptions) *Manager {
	if opts.BaseDir == "" {
		opts.BaseDir = "collections"
	}
	if opts.Defaults.Version == "" {
		opts.Defaults = specstore.DefaultOptions()
	}

	return &Manager{
		stores:  make(map[string]*specstore.Store),
		adapter: adapter,
		opts:    opts,
	}
}

// GetOrCreate returns the named store, creating and loading it on
// first reference. Creation is memoized by name.
func (m *Manager) GetOrCreate(name string) *specstore.Store {
	m.mu.RLock()
	store, ok := m.stores[name]
	m.mu.RUnlock()
	if ok {
		return store
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if store, ok = m.stores[name]; ok {
		return store
	}

	opts := m.opts.Defaults
	opts.Title = name
	if opts.SingleFile {
		// Single-file mode shares the base directory
		opts.OutputDir = m.opts.BaseDir
	} else {
		opts.OutputDir = filepath.ToSlash(filepath.Join(m.opts.BaseDir, specstore.SanitizeTitle(name)))
	}

	store = specstore.New(name, opts, m.adapter)
	store.Load()
	m.stores[name] = store
	return store
}

// DiscoverCollections scans the base directory for persisted documents
// and registers a store for each, returning the discovered names.
// Malformed files are skipped.
func (m *Manager) DiscoverCollections() ([]string, error) {
	files, err := m.listFiles(m.opts.BaseDir)
	if err != nil {
		return nil, err
	}

	discovered := make([]string, 0)
	for _, f := range files {
		if !strings.HasSuffix(f, ".json") {
			continue
		}

		path := filepath.ToSlash(filepath.Join(m.opts.BaseDir, f))
		data, err := m.readFile(path)
		if err != nil {
			continue
		}

		var doc struct {
			Info struct {
				Title string `json:"title"`
			} `json:"info"`
		}
		if err := json.Unmarshal(data, &doc); err != nil || doc.Info.Title == "" {
			continue
		}

		m.GetOrCreate(doc.Info.Title)
		discovered = append(discovered, doc.Info.Title)
	}
	sort.Strings(discovered)
	return discovered, nil
}

// Collections returns the registered collection names, sorted
func (m *Manager) Collections() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.stores))
	for name := range m.stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AddEndpoint merges one capture into the named collection, taking a
// pre-mutation backup first when backups are enabled.
func (m *Manager) AddEndpoint(name string, rec *models.CaptureRecord) (*models.Operation, error) {
	store := m.GetOrCreate(name)

	if m.opts.BackupOnWrite && !store.Options().SingleFile {
		if _, err := m.CreateBackup(name); err != nil {
			// Backup failure must not block the capture itself
			metrics.SaveFailures.Inc()
		}
	}

	op, err := store.AddOperation(rec)
	if err != nil {
		metrics.SaveFailures.Inc()
		return op, err
	}

	metrics.OperationsMerged.Inc()
	if store.Options().AutoSave {
		metrics.SavesTotal.Inc()
	}
	return op, nil
}

// AddEndpointWithRules evaluates every configured rule independently
// and routes the capture to each resulting target. One target's
// failure never aborts the others.
func (m *Manager) AddEndpointWithRules(rec *models.CaptureRecord, rules models.AssignmentRules) []models.AssignmentResult {
	targets := m.resolveTargets(rec, rules)

	results := make([]models.AssignmentResult, 0, len(targets))
	for _, name := range targets {
		result := models.AssignmentResult{Collection: name}
		if _, err := m.AddEndpoint(name, rec); err != nil {
			result.Error = err.Error()
		} else {
			result.Saved = true
		}
		results = append(results, result)
	}
	return results
}

func (m *Manager) resolveTargets(rec *models.CaptureRecord, rules models.AssignmentRules) []string {
	targets := make([]string, 0, 4)
	seen := make(map[string]bool)
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			targets = append(targets, name)
		}
	}

	add(rules.DefaultCollection)

	if rules.VersionBased && rec.Metadata.Version != "" {
		add(fmt.Sprintf("API %s", rec.Metadata.Version))
	}

	if rules.PathBased {
		if seg := firstSegment(rec.Request.Path); seg != "" {
			add(fmt.Sprintf("%s API", seg))
		}
	}

	if rules.StatusBased {
		add(fmt.Sprintf("%s Responses", StatusCategory(rec.Response.StatusCode)))
	}

	if rules.Environment != "" {
		add(fmt.Sprintf("%s Environment", rules.Environment))
	}

	if rules.Custom != nil {
		for _, name := range rules.Custom(rec) {
			add(name)
		}
	}

	return targets
}

// StatusCategory maps a status code to its class label
func StatusCategory(code int) string {
	switch {
	case code >= http.StatusOK && code < http.StatusMultipleChoices:
		return "Success"
	case code >= http.StatusMultipleChoices && code < http.StatusBadRequest:
		return "Redirect"
	case code >= http.StatusBadRequest && code < http.StatusInternalServerError:
		return "Client Error"
	case code >= http.StatusInternalServerError && code < 600:
		return "Server Error"
	default:
		return "Unknown"
	}
}

// CreateBackup snapshots the named document's current serialized form
// under a timestamped backup filename and returns the backup path.
func (m *Manager) CreateBackup(name string) (string, error) {
	store := m.GetOrCreate(name)

	data, err := store.ExportJSON()
	if err != nil {
		return "", fmt.Errorf("failed to serialize %s for backup: %w", name, err)
	}

	stamp := time.Now().UTC().Format("20060102T150405Z")
	short := strings.Split(uuid.New().String(), "-")[0]
	path := filepath.ToSlash(filepath.Join(m.opts.BaseDir, "backups",
		fmt.Sprintf("%s_%s_%s.json", specstore.SanitizeTitle(name), stamp, short)))

	if err := m.writeFile(path, data); err != nil {
		return "", fmt.Errorf("failed to write backup for %s: %w", name, err)
	}
	return path, nil
}

// ListBackups returns the backup filenames recorded for a collection
func (m *Manager) ListBackups(name string) ([]string, error) {
	dir := filepath.ToSlash(filepath.Join(m.opts.BaseDir, "backups"))
	files, err := m.listFiles(dir)
	if err != nil {
		return nil, err
	}

	prefix := specstore.SanitizeTitle(name) + "_"
	matches := make([]string, 0)
	for _, f := range files {
		if strings.HasPrefix(f, prefix) {
			matches = append(matches, f)
		}
	}
	return matches, nil
}

// PruneBackups deletes all but the newest keep backups of a collection
func (m *Manager) PruneBackups(name string, keep int) (int, error) {
	backups, err := m.ListBackups(name)
	if err != nil {
		return 0, err
	}
	if keep < 0 {
		keep = 0
	}
	if len(backups) <= keep {
		return 0, nil
	}

	// Timestamped names sort oldest first
	sort.Strings(backups)
	doomed := backups[:len(backups)-keep]
	removed := 0
	for _, f := range doomed {
		path := filepath.ToSlash(filepath.Join(m.opts.BaseDir, "backups", f))
		if err := m.deleteFile(path); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// CreateVersion snapshots the named document into a versioned file,
// stamping the snapshot's info block without mutating the live
// document. Returns the snapshot path.
func (m *Manager) CreateVersion(name, version string) (string, error) {
	if version == "" {
		return "", fmt.Errorf("version is required")
	}

	store := m.GetOrCreate(name)
	data, err := store.ExportJSON()
	if err != nil {
		return "", fmt.Errorf("failed to serialize %s: %w", name, err)
	}

	// Re-stamp a detached copy
	var snapshot map[string]interface{}
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return "", fmt.Errorf("failed to copy document %s: %w", name, err)
	}
	info, _ := snapshot["info"].(map[string]interface{})
	if info == nil {
		info = make(map[string]interface{})
	}
	info["version"] = version
	info["x-version-created-at"] = time.Now().UTC().Format(time.RFC3339)
	snapshot["info"] = info

	stamped, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to serialize version snapshot for %s: %w", name, err)
	}

	path := filepath.ToSlash(filepath.Join(m.opts.BaseDir, "versions",
		fmt.Sprintf("%s_%s.json", specstore.SanitizeTitle(name), specstore.SanitizeTitle(version))))
	if err := m.writeFile(path, stamped); err != nil {
		return "", fmt.Errorf("failed to write version snapshot for %s: %w", name, err)
	}
	return path, nil
}

// MergeCollections builds a new document whose paths, components, and
// tags are the union of the named sources, persists it, and registers
// it under targetName.
func (m *Manager) MergeCollections(names []string, targetName string, opts MergeOptions) (*specstore.Store, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("no source collections given")
	}
	if targetName == "" {
		return nil, fmt.Errorf("target collection name is required")
	}

	target := m.GetOrCreate(targetName)

	for _, name := range names {
		src := m.GetOrCreate(name)
		target.Absorb(src.Document(), name, opts.PrefixWithCollectionName)
	}

	if err := target.Save(); err != nil {
		metrics.SaveFailures.Inc()
		return target, fmt.Errorf("failed to persist merged collection %s: %w", targetName, err)
	}
	metrics.SavesTotal.Inc()
	return target, nil
}

// GetStats returns read-side aggregation for one collection
func (m *Manager) GetStats(name string) (models.CollectionStats, error) {
	m.mu.RLock()
	store, ok := m.stores[name]
	m.mu.RUnlock()
	if !ok {
		return models.CollectionStats{}, fmt.Errorf("unknown collection: %s", name)
	}
	return store.Stats(), nil
}

// GetAllStats returns aggregation for every registered collection
func (m *Manager) GetAllStats() []models.CollectionStats {
	m.mu.RLock()
	stores := make([]*specstore.Store, 0, len(m.stores))
	for _, s := range m.stores {
		stores = append(stores, s)
	}
	m.mu.RUnlock()

	stats := make([]models.CollectionStats, 0, len(stores))
	for _, s := range stores {
		stats = append(stats, s.Stats())
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats
}

func (m *Manager) writeFile(path string, data []byte) error {
	if m.adapter != nil {
		return m.adapter.WriteFile(path, data)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (m *Manager) listFiles(dir string) ([]string, error) {
	if m.adapter != nil {
		files, err := m.adapter.ListFiles(dir)
		if errors.Is(err, storage.ErrNotFound) {
			return []string{}, nil
		}
		return files, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			files = append(files, e.Name())
		}
	}
	return files, nil
}

func (m *Manager) readFile(path string) ([]byte, error) {
	if m.adapter != nil {
		return m.adapter.ReadFile(path)
	}
	return os.ReadFile(path)
}

func (m *Manager) deleteFile(path string) error {
	if m.adapter != nil {
		return m.adapter.DeleteFile(path)
	}
	return os.Remove(path)
}

func firstSegment(path string) string {
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			return seg
		}
	}
	return ""
}
