package llm

import "sync"

// IncompatibleRegistry records backend models whose providers rejected the
// cache-hinted request format. Once a model is marked, every later request
// for it uses the plain format directly instead of paying for a failed
// attempt first.
//
// The registry is injected into the client rather than held as package
// state, so independent sessions or tests can carry separate histories.
// It is safe for concurrent use.
type IncompatibleRegistry struct {
	mu     sync.RWMutex
	models map[string]struct{}
}

// NewIncompatibleRegistry returns an empty registry.
func NewIncompatibleRegistry() *IncompatibleRegistry {
	return &IncompatibleRegistry{models: make(map[string]struct{})}
}

// Mark records a model as cache-incompatible. Marking is idempotent; it
// returns true only on the first call for a given model.
func (r *IncompatibleRegistry) Mark(modelID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.models[modelID]; exists {
		return false
	}
	r.models[modelID] = struct{}{}
	return true
}

// IsIncompatible reports whether a model has been marked.
func (r *IncompatibleRegistry) IsIncompatible(modelID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.models[modelID]
	return exists
}

// Models returns the marked model IDs, in no particular order.
func (r *IncompatibleRegistry) Models() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.models))
	for id := range r.models {
		out = append(out, id)
	}
	return out
}
