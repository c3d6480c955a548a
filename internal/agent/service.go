package agent

import (
	"context"
	"iter"

	"github.com/dotcommander/recipe-finder/internal/config"
	"github.com/dotcommander/recipe-finder/internal/errs"
	"github.com/dotcommander/recipe-finder/internal/proto"
)

// Querier runs a prompt and reports the raw steps of the run.
type Querier interface {
	Query(ctx context.Context, prompt string, opts proto.Options) iter.Seq2[proto.Message, error]
}

// Service runs recipe searches.
//
// It is UI-agnostic: the TUI, the plain printer and the JSON printer all
// consume the same event stream.
type Service struct {
	cfg    *config.Config
	env    config.Env
	engine Querier
}

// New creates a search service. env is the environment snapshot the browser
// server is launched with.
func New(cfg *config.Config, env config.Env, engine Querier) *Service {
	return &Service{cfg: cfg, env: env, engine: engine}
}

// Options returns the invocation options for a search with the user's
// settings applied: model, turn budget and an optional system prompt
// override.
func (s *Service) Options(ctx context.Context, standalone bool) (proto.Options, error) {
	opts := Options(s.env, standalone)
	if s.cfg == nil {
		return opts, nil
	}
	if s.cfg.Model != "" {
		opts.Model = s.cfg.Model
	}
	if s.cfg.MaxTurns > 0 {
		opts.MaxTurns = s.cfg.MaxTurns
	}
	if s.cfg.System != "" {
		system, err := config.LoadPrompt(ctx, s.cfg.System)
		if err != nil {
			return proto.Options{}, errs.Wrap(err, "Could not load the system prompt.")
		}
		opts.SystemPrompt = system
	}
	return opts, nil
}

// Events searches for prompt and yields the normalized events of the run.
// The prompt is passed to the engine verbatim.
func (s *Service) Events(ctx context.Context, prompt string) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		opts, err := s.Options(ctx, true)
		if err != nil {
			yield(nil, err)
			return
		}
		for ev, err := range Events(s.engine.Query(ctx, prompt, opts)) {
			if !yield(ev, err) {
				return
			}
		}
	}
}

// Stream is Events as a pull stream. Callers must Close it.
func (s *Service) Stream(ctx context.Context, prompt string) *Stream {
	return NewStream(s.Events(ctx, prompt))
}
