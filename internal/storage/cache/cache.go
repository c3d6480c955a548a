// Package cache stores JSON documents in files, one per ID.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Type names a cache directory.
type Type string

// TranscriptCache holds the event transcripts of past searches.
const TranscriptCache Type = "transcripts"

const (
	cacheExt       = ".json"
	shardPrefixLen = 2
)

var errInvalidID = errors.New("invalid id")

// Cache stores values of type T as JSON files, sharded by the first
// characters of their ID.
type Cache[T any] struct {
	baseDir string
	cType   Type
}

// New creates a cache of the given type under baseDir.
func New[T any](baseDir string, cacheType Type) (*Cache[T], error) {
	dir := filepath.Join(baseDir, string(cacheType))
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	return &Cache[T]{baseDir: baseDir, cType: cacheType}, nil
}

func (c *Cache[T]) dir() string {
	return filepath.Join(c.baseDir, string(c.cType))
}

func (c *Cache[T]) filePath(id string) string {
	if len(id) < shardPrefixLen {
		return filepath.Join(c.dir(), id+cacheExt)
	}
	return filepath.Join(c.dir(), id[:shardPrefixLen], id+cacheExt)
}

// Read decodes the value stored under id.
func (c *Cache[T]) Read(id string) (T, error) {
	var v T
	if err := validID(id); err != nil {
		return v, fmt.Errorf("read: %w", err)
	}
	bts, err := os.ReadFile(c.filePath(id))
	if err != nil {
		return v, fmt.Errorf("read: %w", err)
	}
	if err := json.Unmarshal(bts, &v); err != nil {
		return v, fmt.Errorf("read: %w", err)
	}
	return v, nil
}

// Write atomically stores v under id.
func (c *Cache[T]) Write(id string, v T) error {
	if err := validID(id); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	bts, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}

	path := c.filePath(id)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(bts); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// Delete removes the value stored under id.
func (c *Cache[T]) Delete(id string) error {
	if err := validID(id); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	if err := os.Remove(c.filePath(id)); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

func validID(id string) error {
	if id == "" || id != filepath.Base(id) || id == "." || id == ".." {
		return errInvalidID
	}
	return nil
}
