package env

import (
	"os"
	"sort"
	"strings"
)

// Env composes child-process environments: OS base, then global overrides,
// then per-analysis variables. ${VAR} references are expanded once against
// the composed map.
type Env struct {
	global map[string]string
	base   map[string]string // cached OS environment
}

func New() *Env {
	return &Env{global: make(map[string]string)}
}

// FromOS caches the current process environment as the base.
func (e *Env) FromOS() {
	base := make(map[string]string)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i > 0 {
			base[kv[:i]] = kv[i+1:]
		}
	}
	e.base = base
}

// Set adds a global override.
func (e *Env) Set(k, v string) {
	if k == "" {
		return
	}
	e.global[k] = v
}

// SetPairs adds global overrides from "K=V" entries, ignoring malformed ones.
func (e *Env) SetPairs(pairs []string) {
	for _, kv := range pairs {
		if i := strings.IndexByte(kv, '='); i > 0 {
			e.global[kv[:i]] = kv[i+1:]
		}
	}
}

// Merge builds the final environment: base, then globals, then extra "K=V"
// pairs, highest precedence last. The result is sorted for determinism.
func (e *Env) Merge(extra []string) []string {
	if e.base == nil {
		e.FromOS()
	}
	m := make(map[string]string, len(e.base)+len(e.global)+len(extra))
	for k, v := range e.base {
		m[k] = v
	}
	for k, v := range e.global {
		m[k] = v
	}
	for _, kv := range extra {
		if i := strings.IndexByte(kv, '='); i > 0 {
			m[kv[:i]] = kv[i+1:]
		}
	}

	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+expand(v, m))
	}
	sort.Strings(out)
	return out
}

// expand replaces ${VAR} once, without recursion.
func expand(s string, m map[string]string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	res := s
	for k, v := range m {
		res = strings.ReplaceAll(res, "${"+k+"}", v)
	}
	return res
}
