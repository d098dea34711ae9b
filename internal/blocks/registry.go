package blocks

import "sync"

// Registry holds the extracted blocks of one assistant surface, keyed by
// id. Each registered block backs exactly one user-facing affordance. The
// registry is safe for use from the surface goroutine and the response
// workers.
type Registry struct {
	mu     sync.Mutex
	byID   map[string]Block
	sorted []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID: make(map[string]Block),
	}
}

// Register adds a block. Ids are unique for the registry lifetime, so a
// colliding id means the extractor generated a duplicate and the block is
// re-rolled by the caller; in practice UUIDs never collide.
func (r *Registry) Register(b Block) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[b.ID]; exists {
		return false
	}

	r.byID[b.ID] = b
	r.sorted = append(r.sorted, b.ID)
	return true
}

// Get looks a block up by id.
func (r *Registry) Get(id string) (Block, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.byID[id]
	return b, ok
}

// List returns all registered blocks in registration order.
func (r *Registry) List() []Block {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Block, 0, len(r.sorted))
	for _, id := range r.sorted {
		out = append(out, r.byID[id])
	}
	return out
}

// Remove drops a single block, used after its action has been consumed or
// declined forever. Declining a confirmation dialog does NOT remove the
// block; the affordance stays usable.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return
	}
	delete(r.byID, id)
	for i, existing := range r.sorted {
		if existing == id {
			r.sorted = append(r.sorted[:i], r.sorted[i+1:]...)
			break
		}
	}
}

// Clear drops every block. Used by the surface-level "clear conversation"
// action; the persisted conversation log is not touched.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byID = make(map[string]Block)
	r.sorted = nil
}

// Len returns the number of registered blocks.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}
