package board

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"kanban-sync/domain"
)

// ErrUnknownBoard is wrapped by Registry.Get for board ids it does not serve.
var ErrUnknownBoard = errors.New("unknown board")

// Registry creates one Store per board on first use. Every store shares the
// remote and the collaborators of cfg, so all boards read the same remote
// list: a board id only namespaces the cache key and the notifications.
type Registry struct {
	remote  Remote
	cfg     Config
	allowed map[string]bool

	mu     sync.Mutex
	stores map[string]*Store
}

// NewRegistry serves the given board ids. Without ids any board id is
// accepted and stores are never evicted, which only suits tests and local
// runs.
func NewRegistry(remote Remote, cfg Config, boards ...string) *Registry {
	if remote == nil {
		panic("board.NewRegistry: remote is nil")
	}
	r := &Registry{remote: remote, cfg: cfg, stores: make(map[string]*Store)}
	if len(boards) > 0 {
		r.allowed = make(map[string]bool, len(boards))
		for _, id := range boards {
			r.allowed[id] = true
		}
	}
	return r
}

// Get returns the store of boardID, creating it when needed. Board ids the
// registry does not serve fail with a NotFound error.
func (r *Registry) Get(boardID string) (*Store, error) {
	if r.allowed != nil && !r.allowed[boardID] {
		return nil, domain.Wrap(domain.KindNotFound, "board", "", fmt.Errorf("%w %q", ErrUnknownBoard, boardID))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stores[boardID]
	if !ok {
		s = New(boardID, r.remote, r.cfg)
		r.stores[boardID] = s
	}
	return s, nil
}

// Lookup returns the store of boardID if it was created before.
func (r *Registry) Lookup(boardID string) (*Store, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stores[boardID]
	return s, ok
}

// Boards lists the ids of the created stores.
func (r *Registry) Boards() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.stores))
	for id := range r.stores {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
