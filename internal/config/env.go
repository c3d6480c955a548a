package config

import (
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/caarlos0/env/v9"
)

// ContainerChromePath is the chromium binary shipped in the container image.
// CHROME_PATH pointing at it is the signal for containerized execution.
const ContainerChromePath = "/usr/bin/chromium"

// Env is a snapshot of environment variables.
//
// Values are read once at the edge of the program and passed around
// explicitly; nothing below cmd reads the process environment.
type Env map[string]string

type envSignals struct {
	ChromePath string `env:"CHROME_PATH"`
}

// Snapshot copies the current process environment.
func Snapshot() Env {
	return EnvFrom(os.Environ())
}

// EnvFrom builds an Env from KEY=VALUE pairs. Later pairs win.
func EnvFrom(pairs []string) Env {
	e := make(Env, len(pairs))
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		e[k] = v
	}
	return e
}

// List returns the environment as sorted KEY=VALUE pairs in a new slice.
func (e Env) List() []string {
	keys := slices.Sorted(maps.Keys(e))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+e[k])
	}
	return out
}

// Get returns the value of key, or "" when unset.
func (e Env) Get(key string) string {
	return e[key]
}

// ChromePath returns the CHROME_PATH signal, if set.
func (e Env) ChromePath() string {
	var s envSignals
	if err := env.ParseWithOptions(&s, env.Options{Environment: e}); err != nil {
		return ""
	}
	return s.ChromePath
}

// Containerized reports whether the browser runs inside the container image.
func (e Env) Containerized() bool {
	return e.ChromePath() == ContainerChromePath
}
