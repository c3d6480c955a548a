package cmd

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dotcommander/recipe-finder/internal/agent"
	"github.com/dotcommander/recipe-finder/internal/config"
	"github.com/dotcommander/recipe-finder/internal/storage"
)

// newTestSearchStore creates a searchStore backed by a temp directory.
func newTestSearchStore(t *testing.T) (*searchStore, string) {
	t.Helper()
	tmpDir := t.TempDir()
	store, err := openSearchStore(tmpDir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, tmpDir
}

func captureStdout(tb testing.TB, fn func()) string {
	tb.Helper()

	orig := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(tb, err)
	os.Stdout = w

	fn()

	require.NoError(tb, w.Close())
	os.Stdout = orig

	out, err := io.ReadAll(r)
	require.NoError(tb, err)
	require.NoError(tb, r.Close())
	return string(out)
}

func int64p(v int64) *int64 { return &v }

func sampleRecords() []agent.Record {
	return []agent.Record{
		{Type: agent.EventText, Text: "Searching AllRecipes."},
		{Type: agent.EventTool, Name: "mcp__chrome-devtools__navigate_page"},
		{Type: agent.EventUsage, Input: int64p(100), Output: int64p(20)},
		{Type: agent.EventText, Text: "## Vegan Lasagna\n\n4.7 stars"},
		{Type: agent.EventUsage, Input: int64p(50)},
		{Type: agent.EventResult, Text: "## Vegan Lasagna\n\n4.7 stars"},
		{Type: agent.EventDone},
	}
}

func quietConfig(cachePath string) *config.Config {
	cfg := config.Default()
	cfg.CachePath = cachePath
	cfg.Quiet = true
	return &cfg
}

func TestSaveSearch(t *testing.T) {
	store, tmpDir := newTestSearchStore(t)
	cfg := quietConfig(tmpDir)

	saved, err := saveSearch(cfg, store, searchRun{
		Prompt:  "vegan lasagna\nwith spinach",
		Records: sampleRecords(),
	})
	require.NoError(t, err)
	require.Equal(t, "vegan lasagna", saved.Prompt)
	require.Equal(t, "haiku", saved.Model)
	require.Equal(t, statusDone, saved.Status)
	require.Equal(t, int64(150), saved.InputTokens)
	require.Equal(t, int64(20), saved.OutputTokens)

	found, err := store.DB.Find(saved.ShortID())
	require.NoError(t, err)
	require.Equal(t, saved.ID, found.ID)

	records, err := store.Cache.Read(saved.ID)
	require.NoError(t, err)
	require.Equal(t, sampleRecords(), records)
}

func TestSearchRunStatus(t *testing.T) {
	require.Equal(t, statusDone, searchRun{}.status())
	require.Equal(t, statusFailed, searchRun{Err: errors.New("boom")}.status())
	require.Equal(t, statusCancelled, searchRun{Err: agent.DescribeError(context.Canceled, "haiku")}.status())
}

func TestListSearches(t *testing.T) {
	t.Run("no searches", func(t *testing.T) {
		_, tmpDir := newTestSearchStore(t)
		require.NoError(t, listSearches(quietConfig(tmpDir), true))
	})

	t.Run("lists saved searches", func(t *testing.T) {
		store, tmpDir := newTestSearchStore(t)
		cfg := quietConfig(tmpDir)
		saved, err := saveSearch(cfg, store, searchRun{Prompt: "pancakes", Records: sampleRecords()})
		require.NoError(t, err)

		out := captureStdout(t, func() {
			require.NoError(t, listSearches(cfg, true))
		})
		require.Contains(t, out, saved.ShortID())
		require.Contains(t, out, "pancakes")
	})
}

func TestShowSearch(t *testing.T) {
	store, tmpDir := newTestSearchStore(t)
	cfg := quietConfig(tmpDir)
	cfg.Raw = true

	first, err := saveSearch(cfg, store, searchRun{Prompt: "pancakes", Records: []agent.Record{
		{Type: agent.EventResult, Text: "Fluffy pancakes"},
		{Type: agent.EventDone},
	}})
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	_, err = saveSearch(cfg, store, searchRun{Prompt: "vegan lasagna", Records: sampleRecords()})
	require.NoError(t, err)

	t.Run("by id prefix", func(t *testing.T) {
		out := captureStdout(t, func() {
			require.NoError(t, showSearch(cfg, first.ShortID()))
		})
		require.Equal(t, "# pancakes\n\nFluffy pancakes\n\n", out)
	})

	t.Run("last", func(t *testing.T) {
		out := captureStdout(t, func() {
			require.NoError(t, showSearch(cfg, ""))
		})
		require.Contains(t, out, "# vegan lasagna")
		require.Contains(t, out, "- navigate page")
		require.Contains(t, out, "150 input tokens, 20 output tokens")
	})

	t.Run("json", func(t *testing.T) {
		c := *cfg
		c.JSON = true
		out := captureStdout(t, func() {
			require.NoError(t, showSearch(&c, first.ShortID()))
		})
		require.Equal(t, "{\"type\":\"result\",\"text\":\"Fluffy pancakes\"}\n{\"type\":\"done\"}\n", out)
	})

	t.Run("missing", func(t *testing.T) {
		require.Error(t, showSearch(cfg, "ffffffff"))
	})
}

func TestDeleteSearches(t *testing.T) {
	t.Run("deletes index entry and transcript", func(t *testing.T) {
		store, tmpDir := newTestSearchStore(t)
		cfg := quietConfig(tmpDir)
		a, err := saveSearch(cfg, store, searchRun{Prompt: "first", Records: sampleRecords()})
		require.NoError(t, err)
		b, err := saveSearch(cfg, store, searchRun{Prompt: "second", Records: sampleRecords()})
		require.NoError(t, err)

		require.NoError(t, deleteSearches(cfg, []string{a.ShortID(), "second"}))

		db, err := storage.Open(filepath.Join(tmpDir, searchesDir))
		require.NoError(t, err)
		defer db.Close() //nolint:errcheck
		require.Empty(t, db.List())

		_, err = store.Cache.Read(b.ID)
		require.Error(t, err)
	})

	t.Run("unknown target", func(t *testing.T) {
		_, tmpDir := newTestSearchStore(t)
		require.Error(t, deleteSearches(quietConfig(tmpDir), []string{"nothing-here"}))
	})
}

func TestDeleteSearchesOlderThan(t *testing.T) {
	store, tmpDir := newTestSearchStore(t)
	cfg := quietConfig(tmpDir)
	_, err := saveSearch(cfg, store, searchRun{Prompt: "fresh", Records: sampleRecords()})
	require.NoError(t, err)

	require.Error(t, deleteSearchesOlderThan(cfg, 0))

	require.NoError(t, deleteSearchesOlderThan(cfg, time.Hour))
	require.Len(t, store.DB.List(), 1)
}
