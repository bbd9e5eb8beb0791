package suggest

import "sync"

// Handles maps option keys to opaque references owned by the menu renderer
// (widgets, DOM nodes, scroll anchors). The pipeline never reads them.
type Handles struct {
	mu   sync.RWMutex
	refs map[string]any
}

func NewHandles() *Handles {
	return &Handles{refs: make(map[string]any)}
}

// Register stores handle for key, replacing any previous one.
func (h *Handles) Register(key string, handle any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.refs[key] = handle
}

// Get returns the handle for key.
func (h *Handles) Get(key string) (any, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	handle, ok := h.refs[key]
	return handle, ok
}

// Release forgets the handle for key.
func (h *Handles) Release(key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.refs, key)
}

// Retain drops every handle whose key is not among options.
func (h *Handles) Retain(options []Option) {
	keep := make(map[string]bool, len(options))
	for _, opt := range options {
		keep[opt.Key] = true
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for key := range h.refs {
		if !keep[key] {
			delete(h.refs, key)
		}
	}
}

func (h *Handles) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.refs)
}
