// Package fantasybridge runs the agent's model turns on charm.land/fantasy
// providers and converts between fantasy types and agent messages.
package fantasybridge

import (
	"context"
	"fmt"
	"net/http"

	"charm.land/fantasy"
	fgoogle "charm.land/fantasy/providers/google"
)

// Config represents provider configuration used by the fantasy bridge.
type Config struct {
	API            string
	BaseURL        string
	APIKey         string
	HTTPClient     *http.Client
	ThinkingBudget int
}

// LanguageModel is a fantasy language model that applies per-provider call
// options from its Config.
type LanguageModel struct {
	fantasy.LanguageModel
	config Config
}

// New creates the provider for cfg and opens the named model on it.
func New(ctx context.Context, cfg Config, model string) (*LanguageModel, error) {
	provider, err := newProvider(cfg)
	if err != nil {
		return nil, err
	}
	lm, err := provider.LanguageModel(ctx, model)
	if err != nil {
		return nil, fmt.Errorf("fantasy language model: %w", err)
	}
	return &LanguageModel{LanguageModel: lm, config: cfg}, nil
}

// Stream starts streaming one model turn.
func (m *LanguageModel) Stream(ctx context.Context, call fantasy.Call) (fantasy.StreamResponse, error) {
	applyProviderOptions(&call, m.config)
	seq, err := m.LanguageModel.Stream(ctx, call)
	if err != nil {
		return nil, fmt.Errorf("fantasy stream: %w", err)
	}
	return seq, nil
}

func applyProviderOptions(call *fantasy.Call, cfg Config) {
	if cfg.API == apiGoogle && cfg.ThinkingBudget > 0 {
		if call.ProviderOptions == nil {
			call.ProviderOptions = fantasy.ProviderOptions{}
		}
		call.ProviderOptions[fgoogle.Name] = &fgoogle.ProviderOptions{
			ThinkingConfig: &fgoogle.ThinkingConfig{
				ThinkingBudget: fantasy.Opt(int64(cfg.ThinkingBudget)),
			},
		}
	}
}
