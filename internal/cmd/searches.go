package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dotcommander/recipe-finder/internal/agent"
	"github.com/dotcommander/recipe-finder/internal/config"
	"github.com/dotcommander/recipe-finder/internal/errs"
	"github.com/dotcommander/recipe-finder/internal/present"
	"github.com/dotcommander/recipe-finder/internal/storage"
	"github.com/dotcommander/recipe-finder/internal/storage/cache"
)

const searchesDir = "searches"

const (
	statusDone      = "done"
	statusFailed    = "failed"
	statusCancelled = "cancelled"
)

// searchStore bundles the history index and the transcript cache. Most
// commands need both.
type searchStore struct {
	DB    *storage.DB
	Cache *cache.Cache[[]agent.Record]
}

func openSearchStore(cachePath string) (*searchStore, error) {
	transcripts, err := cache.New[[]agent.Record](cachePath, cache.TranscriptCache)
	if err != nil {
		return nil, fmt.Errorf("open transcript cache: %w", err)
	}
	db, err := storage.Open(filepath.Join(cachePath, searchesDir))
	if err != nil {
		return nil, fmt.Errorf("open search index: %w", err)
	}
	return &searchStore{DB: db, Cache: transcripts}, nil
}

// Close releases the underlying DB resources.
func (s *searchStore) Close() error {
	return s.DB.Close()
}

// searchRun is the outcome of one search, as saved to history.
type searchRun struct {
	Prompt  string
	Records []agent.Record
	Err     error
}

func (r searchRun) status() string {
	switch {
	case r.Err == nil:
		return statusDone
	case errors.Is(r.Err, context.Canceled):
		return statusCancelled
	default:
		return statusFailed
	}
}

func (r searchRun) usage() (input, output int64) {
	for _, rec := range r.Records {
		if rec.Type != agent.EventUsage {
			continue
		}
		if rec.Input != nil {
			input += *rec.Input
		}
		if rec.Output != nil {
			output += *rec.Output
		}
	}
	return input, output
}

func saveSearch(cfg *config.Config, store *searchStore, run searchRun) (storage.Search, error) {
	s := storage.Search{
		ID:     storage.NewID(),
		Prompt: firstLine(strings.TrimSpace(run.Prompt)),
		Model:  cfg.Model,
		Status: run.status(),
	}
	s.InputTokens, s.OutputTokens = run.usage()

	errReason := fmt.Sprintf(
		"There was a problem saving the search. Use %s / %s to disable history.",
		present.StderrStyles().InlineCode.Render("--no-cache"),
		present.StderrStyles().InlineCode.Render("NO_CACHE"),
	)
	if err := store.Cache.Write(s.ID, run.Records); err != nil {
		return s, errs.Wrap(err, errReason)
	}
	if err := store.DB.Save(s); err != nil {
		_ = store.Cache.Delete(s.ID)
		return s, errs.Wrap(err, errReason)
	}

	if !cfg.Quiet {
		fmt.Fprintln(
			os.Stderr,
			"\nSearch saved:",
			present.StderrStyles().InlineCode.Render(s.ShortID()),
			present.StderrStyles().Comment.Render(s.Prompt),
		)
	}
	return s, nil
}

func firstLine(s string) string {
	first, _, _ := strings.Cut(s, "\n")
	return first
}
