package interceptor

import (
	"path"
	"strings"
	"sync"
)

// Validator inspects a JSON body and returns field -> message for every problem.
// An empty result means the body is acceptable.
type Validator func(body []byte) map[string]string

type entry struct {
	method  string
	pattern string
	fn      Validator
}

// Registry maps "METHOD pattern" to validators. Patterns use path.Match syntax;
// an empty method or "*" matches any method. The zero value is an empty registry.
type Registry struct {
	mu      sync.RWMutex
	entries []entry
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a validator. Earlier registrations win on overlap.
func (r *Registry) Register(method, pattern string, fn Validator) {
	if r == nil || fn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry{method: strings.ToUpper(method), pattern: pattern, fn: fn})
}

// Lookup returns the validator for method and urlPath, or nil.
func (r *Registry) Lookup(method, urlPath string) Validator {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	method = strings.ToUpper(method)
	for _, e := range r.entries {
		if e.method != "" && e.method != "*" && e.method != method {
			continue
		}
		if ok, err := path.Match(e.pattern, urlPath); err == nil && ok {
			return e.fn
		}
	}
	return nil
}

// Len returns the number of registered validators.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
