// Package storage keeps the history of recipe searches.
package storage

import (
	"bufio"
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

var (
	// ErrNoMatches is returned when no searches match the query.
	ErrNoMatches = errors.New("no searches found")
	// ErrManyMatches is returned when multiple searches match the query.
	ErrManyMatches = errors.New("multiple searches matched the input")
)

const (
	// ShortIDLen is the ID length shown in listings.
	ShortIDLen = 8
	// MinPrefixLen is the shortest ID prefix Find matches on.
	MinPrefixLen = 4

	indexFileName      = "index.jsonl"
	compactMinOps      = 256
	compactScaleFactor = 4
)

// NewID returns a new search ID.
func NewID() string {
	return uuid.NewString()
}

// Search is the metadata of one recipe search.
type Search struct {
	ID           string    `json:"id"`
	Prompt       string    `json:"prompt"`
	Model        string    `json:"model,omitempty"`
	Status       string    `json:"status,omitempty"`
	InputTokens  int64     `json:"input_tokens,omitempty"`
	OutputTokens int64     `json:"output_tokens,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ShortID returns the ID as shown in listings.
func (s Search) ShortID() string {
	if len(s.ID) > ShortIDLen {
		return s.ID[:ShortIDLen]
	}
	return s.ID
}

type indexEvent struct {
	Op     string  `json:"op"`
	ID     string  `json:"id,omitempty"`
	Search *Search `json:"search,omitempty"`
}

// DB is an append-only JSONL index of searches. Writers from concurrent
// processes are serialized with a file lock.
type DB struct {
	mu             sync.RWMutex
	indexPath      string
	lock           *flock.Flock
	searches       map[string]Search
	ops            int
	cleanupTempDir string
}

// Open loads the index stored in dir.
//
// The special value ":memory:" creates a temporary store (primarily used for
// tests).
func Open(dir string) (*DB, error) {
	dir, cleanupDir, err := resolveStoreDir(dir)
	if err != nil {
		return nil, fmt.Errorf("could not resolve store path: %w", err)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("could not create store directory: %w", err)
	}

	db := &DB{
		indexPath:      filepath.Join(dir, indexFileName),
		lock:           flock.New(filepath.Join(dir, "index.lock")),
		searches:       make(map[string]Search),
		cleanupTempDir: cleanupDir,
	}
	if err := db.load(); err != nil {
		return nil, err
	}
	return db, nil
}

// Close releases temporary resources (used for :memory: stores).
func (db *DB) Close() error {
	if db.cleanupTempDir == "" {
		return nil
	}
	if err := os.RemoveAll(db.cleanupTempDir); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}

// Save upserts a search. UpdatedAt is set to now.
func (db *DB) Save(s Search) error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("save: %w", errors.New("empty id"))
	}
	if strings.TrimSpace(s.Prompt) == "" {
		return fmt.Errorf("save: %w", errors.New("empty prompt"))
	}
	s.UpdatedAt = time.Now().UTC()

	db.mu.Lock()
	defer db.mu.Unlock()

	db.searches[s.ID] = s
	if err := db.appendEventLocked(indexEvent{Op: "upsert", Search: &s}); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	if err := db.compactIfNeededLocked(); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return nil
}

// Delete removes a search by ID. Unknown IDs are ignored.
func (db *DB) Delete(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("delete: %w", errors.New("empty id"))
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.searches[id]; !ok {
		return nil
	}
	delete(db.searches, id)

	if err := db.appendEventLocked(indexEvent{Op: "delete", ID: id}); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	if err := db.compactIfNeededLocked(); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

// List returns searches, most recent first.
func (db *DB) List() []Search {
	return db.filter(func(Search) bool { return true })
}

// ListOlderThan returns searches last updated more than d ago.
func (db *DB) ListOlderThan(d time.Duration) []Search {
	cutoff := time.Now().Add(-d)
	return db.filter(func(s Search) bool { return s.UpdatedAt.Before(cutoff) })
}

func (db *DB) filter(keep func(Search) bool) []Search {
	db.mu.RLock()
	list := make([]Search, 0, len(db.searches))
	for _, s := range db.searches {
		if keep(s) {
			list = append(list, s)
		}
	}
	db.mu.RUnlock()

	slices.SortFunc(list, newestFirst)
	return list
}

// FindHEAD returns the most recent search.
func (db *DB) FindHEAD() (*Search, error) {
	list := db.List()
	if len(list) == 0 {
		return nil, fmt.Errorf("find head: %w", ErrNoMatches)
	}
	return &list[0], nil
}

// Find resolves a search by ID prefix or exact prompt.
func (db *DB) Find(in string) (*Search, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var matches []Search
	for _, s := range db.searches {
		if s.Prompt == in || (len(in) >= MinPrefixLen && strings.HasPrefix(s.ID, in)) {
			matches = append(matches, s)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNoMatches, in)
	case 1:
		return &matches[0], nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrManyMatches, in)
	}
}

// Completions returns shell completion candidates for IDs and prompts.
func (db *DB) Completions(in string) []string {
	set := make(map[string]struct{})

	db.mu.RLock()
	for _, s := range db.searches {
		if strings.HasPrefix(s.ID, in) {
			id := s.ID
			if len(in) < ShortIDLen {
				id = s.ShortID()
			}
			set[id+"\t"+s.Prompt] = struct{}{}
		}
		if strings.HasPrefix(s.Prompt, in) {
			set[s.Prompt+"\t"+s.ShortID()] = struct{}{}
		}
	}
	db.mu.RUnlock()

	result := make([]string, 0, len(set))
	for v := range set {
		result = append(result, v)
	}
	slices.Sort(result)
	return result
}

func resolveStoreDir(ds string) (dir string, cleanupDir string, err error) {
	if ds == ":memory:" {
		tempDir, err := os.MkdirTemp("", "recipe-finder-history-*")
		if err != nil {
			return "", "", fmt.Errorf("could not create temp history directory: %w", err)
		}
		return tempDir, tempDir, nil
	}
	return ds, "", nil
}

func (db *DB) load() error {
	if err := db.lock.Lock(); err != nil {
		return fmt.Errorf("could not lock index file: %w", err)
	}
	defer func() { _ = db.lock.Unlock() }()

	file, err := os.Open(db.indexPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("could not open index file: %w", err)
	}
	defer file.Close() //nolint:errcheck

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var evt indexEvent
		if err := json.Unmarshal([]byte(line), &evt); err != nil {
			return fmt.Errorf("could not parse index event: %w", err)
		}
		if err := db.applyEvent(&evt); err != nil {
			return err
		}
		db.ops++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("could not scan index file: %w", err)
	}
	return nil
}

func (db *DB) applyEvent(evt *indexEvent) error {
	switch evt.Op {
	case "upsert":
		if evt.Search == nil || strings.TrimSpace(evt.Search.ID) == "" {
			return fmt.Errorf("invalid upsert event: missing search")
		}
		db.searches[evt.Search.ID] = *evt.Search
	case "delete":
		if strings.TrimSpace(evt.ID) == "" {
			return fmt.Errorf("invalid delete event: empty id")
		}
		delete(db.searches, evt.ID)
	default:
		return fmt.Errorf("invalid index event op: %q", evt.Op)
	}
	return nil
}

func (db *DB) appendEventLocked(evt indexEvent) error {
	if err := db.lock.Lock(); err != nil {
		return fmt.Errorf("lock index: %w", err)
	}
	defer func() { _ = db.lock.Unlock() }()

	file, err := os.OpenFile(db.indexPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	defer func() { _ = file.Close() }()

	bts, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal index event: %w", err)
	}
	if _, err := file.Write(append(bts, '\n')); err != nil {
		return fmt.Errorf("write index event: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("sync index: %w", err)
	}

	db.ops++
	return nil
}

func (db *DB) compactIfNeededLocked() error {
	if db.ops < compactMinOps {
		return nil
	}
	if len(db.searches) > 0 && db.ops < len(db.searches)*compactScaleFactor {
		return nil
	}
	return db.compactLocked()
}

// compactLocked rewrites the index with one upsert per live search.
func (db *DB) compactLocked() error {
	if err := db.lock.Lock(); err != nil {
		return fmt.Errorf("lock index: %w", err)
	}
	defer func() { _ = db.lock.Unlock() }()

	items := make([]Search, 0, len(db.searches))
	for _, s := range db.searches {
		items = append(items, s)
	}
	slices.SortFunc(items, func(a, b Search) int { return -newestFirst(a, b) })

	tmpPath := db.indexPath + ".tmp"
	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open compacted index: %w", err)
	}
	enc := json.NewEncoder(file)
	for _, s := range items {
		if err := enc.Encode(indexEvent{Op: "upsert", Search: &s}); err != nil {
			_ = file.Close()
			return fmt.Errorf("write compacted index: %w", err)
		}
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return fmt.Errorf("sync compacted index: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close compacted index: %w", err)
	}
	if err := os.Rename(tmpPath, db.indexPath); err != nil {
		return fmt.Errorf("replace index with compacted version: %w", err)
	}
	if d, err := os.Open(filepath.Dir(db.indexPath)); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}

	db.ops = len(db.searches)
	return nil
}

func newestFirst(a, b Search) int {
	if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}
