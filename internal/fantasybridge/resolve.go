package fantasybridge

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os/exec"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/go-shellwords"
	"github.com/charmbracelet/x/exp/ordered"

	"github.com/dotcommander/recipe-finder/internal/config"
	"github.com/dotcommander/recipe-finder/internal/errs"
)

// Resolver opens language models by name or alias from the configured APIs.
type Resolver struct {
	APIs      config.APIs
	API       string
	HTTPProxy string
	Env       config.Env
}

// NewResolver returns a resolver over the settings in cfg. API keys are read
// from env.
func NewResolver(cfg *config.Config, env config.Env) *Resolver {
	return &Resolver{APIs: cfg.APIs, API: cfg.API, HTTPProxy: cfg.HTTPProxy, Env: env}
}

// LanguageModel resolves name and opens the model on its provider.
func (r *Resolver) LanguageModel(ctx context.Context, name string) (*LanguageModel, error) {
	api, mod, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}
	providerCfg, err := r.providerConfig(ctx, mod, api)
	if err != nil {
		return nil, err
	}
	if err := ApplyProxyConfig(r.HTTPProxy, &providerCfg); err != nil {
		return nil, err
	}
	lm, err := New(ctx, providerCfg, mod.Name)
	if err != nil {
		return nil, errs.Wrap(err, fmt.Sprintf("Could not open model %s.", mod.Name))
	}
	return lm, nil
}

// Resolve finds the API and model for name, which may be a model name or an
// alias. When an API is set, only that API is considered.
func (r *Resolver) Resolve(name string) (config.API, config.Model, error) {
	for _, api := range r.APIs {
		if r.API != "" && api.Name != r.API {
			continue
		}
		resolved := name
		for mname, mod := range api.Models {
			if mname == name || slices.Contains(mod.Aliases, name) {
				resolved = mname
				break
			}
		}
		if mod, ok := api.Models[resolved]; ok {
			mod.Name = resolved
			mod.API = api.Name
			return api, mod, nil
		}
		if r.API != "" {
			available := make([]string, 0, len(api.Models))
			for mname := range api.Models {
				available = append(available, mname)
			}
			slices.Sort(available)
			return config.API{}, config.Model{}, errs.Error{
				Err:    errs.UserErrorf("Available models are: %s", strings.Join(available, ", ")),
				Reason: fmt.Sprintf("The API endpoint %s does not contain the model %s", r.API, name),
			}
		}
	}

	return config.API{}, config.Model{}, errs.Error{
		Reason: fmt.Sprintf("Model %s is not in the settings file.", name),
		Err:    errs.UserErrorf("Please specify an API endpoint with --api or configure the model in the settings: recipe-finder config edit"),
	}
}

func (r *Resolver) providerConfig(ctx context.Context, mod config.Model, api config.API) (Config, error) {
	switch mod.API {
	case apiOpenRouter:
		key, err := r.ensureKey(ctx, api, "OPENROUTER_API_KEY", "https://openrouter.ai/keys")
		if err != nil {
			return Config{}, errs.Error{Err: err, Reason: "OpenRouter authentication failed"}
		}
		return Config{API: mod.API, APIKey: key, BaseURL: api.BaseURL}, nil
	case apiVercel:
		key, err := r.ensureKey(ctx, api, "VERCEL_API_KEY", "https://vercel.com/dashboard/tokens")
		if err != nil {
			return Config{}, errs.Error{Err: err, Reason: "Vercel AI Gateway authentication failed"}
		}
		return Config{API: mod.API, APIKey: key, BaseURL: api.BaseURL}, nil
	case apiBedrock:
		key, err := r.optionalKey(ctx, api)
		if err != nil {
			return Config{}, errs.Error{Err: err, Reason: "Bedrock authentication failed"}
		}
		return Config{API: mod.API, APIKey: key, BaseURL: api.BaseURL}, nil
	case apiOllama:
		return Config{API: mod.API, BaseURL: ordered.First(api.BaseURL, "http://localhost:11434/v1")}, nil
	case apiAzure, apiAzureAD:
		key, err := r.ensureKey(ctx, api, "AZURE_OPENAI_KEY", "https://aka.ms/oai/access")
		if err != nil {
			return Config{}, errs.Error{Err: err, Reason: "Azure authentication failed"}
		}
		return Config{API: apiAzure, APIKey: key, BaseURL: api.BaseURL}, nil
	case apiAnthropic:
		key, err := r.ensureKey(ctx, api, "ANTHROPIC_API_KEY", "https://console.anthropic.com/settings/keys")
		if err != nil {
			return Config{}, errs.Error{Err: err, Reason: "Anthropic authentication failed"}
		}
		return Config{API: mod.API, APIKey: key, BaseURL: api.BaseURL}, nil
	case apiGoogle:
		key, err := r.ensureKey(ctx, api, "GOOGLE_API_KEY", "https://aistudio.google.com/app/apikey")
		if err != nil {
			return Config{}, errs.Error{Err: err, Reason: "Google authentication failed"}
		}
		return Config{API: mod.API, APIKey: key, BaseURL: api.BaseURL, ThinkingBudget: mod.ThinkingBudget}, nil
	default:
		key, err := r.ensureKey(ctx, api, "OPENAI_API_KEY", "https://platform.openai.com/account/api-keys")
		if err != nil {
			return Config{}, errs.Error{Err: err, Reason: "OpenAI authentication failed"}
		}
		return Config{API: mod.API, APIKey: key, BaseURL: api.BaseURL}, nil
	}
}

// ApplyProxyConfig configures the provider HTTP client to use an HTTP proxy.
func ApplyProxyConfig(httpProxy string, providerCfg *Config) error {
	if httpProxy == "" {
		return nil
	}
	proxyURL, err := url.Parse(httpProxy)
	if err != nil {
		return errs.Error{Err: err, Reason: "There was an error parsing your proxy URL."}
	}
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return errs.Error{Err: fmt.Errorf("default transport is not *http.Transport"), Reason: "Could not configure proxy."}
	}
	tr := base.Clone()
	tr.Proxy = http.ProxyURL(proxyURL)
	tr.DialContext = (&net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}).DialContext
	tr.TLSHandshakeTimeout = 10 * time.Second
	tr.ResponseHeaderTimeout = 30 * time.Second
	providerCfg.HTTPClient = &http.Client{Transport: tr}
	return nil
}

func (r *Resolver) ensureKey(ctx context.Context, api config.API, defaultEnv, docsURL string) (string, error) {
	key, err := r.optionalKey(ctx, api)
	if err != nil {
		return "", err
	}
	if key == "" {
		key = r.Env.Get(defaultEnv)
	}
	if key != "" {
		return key, nil
	}
	return "", errs.Error{
		Reason: fmt.Sprintf("%s required; set %s or add an api-key with recipe-finder config edit.", defaultEnv, defaultEnv),
		Err:    errs.UserErrorf("You can grab one at %s", docsURL),
	}
}

// optionalKey returns the key from the settings, the configured variable or
// the configured command, in that order.
func (r *Resolver) optionalKey(ctx context.Context, api config.API) (string, error) {
	key := api.APIKey
	if key == "" && api.APIKeyEnv != "" && api.APIKeyCmd == "" {
		key = r.Env.Get(api.APIKeyEnv)
	}
	if key == "" && api.APIKeyCmd != "" {
		args, err := shellwords.Parse(api.APIKeyCmd)
		if err != nil {
			return "", errs.Error{Err: err, Reason: "Failed to parse api-key-cmd"}
		}
		if len(args) == 0 {
			return "", errs.Error{Reason: "api-key-cmd is empty"}
		}
		// #nosec G204 -- api-key-cmd is explicitly configured by the local user.
		out, err := exec.CommandContext(ctx, args[0], args[1:]...).CombinedOutput()
		if err != nil {
			return "", errs.Error{Err: err, Reason: "Cannot exec api-key-cmd"}
		}
		key = strings.TrimSpace(string(out))
	}
	return key, nil
}
