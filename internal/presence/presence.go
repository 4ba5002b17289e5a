package presence

import (
	"context"
	"sort"
	"sync"

	"github.com/npezzotti/staffchat/internal/types"
)

// Registry tracks which identities hold a live channel connection. There is
// at most one entry per user; registering again replaces the entry.
type Registry interface {
	Register(ctx context.Context, entry types.OnlineUser) error
	// Unregister removes the user's entry if it still belongs to connectionId.
	Unregister(ctx context.Context, userId, connectionId string) (bool, error)
	Snapshot(ctx context.Context) ([]types.OnlineUser, error)
}

type MemoryRegistry struct {
	mu      sync.RWMutex
	entries map[string]types.OnlineUser
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		entries: make(map[string]types.OnlineUser),
	}
}

func (r *MemoryRegistry) Register(_ context.Context, entry types.OnlineUser) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[entry.UserId] = entry
	return nil
}

func (r *MemoryRegistry) Unregister(_ context.Context, userId, connectionId string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[userId]
	if !ok || entry.ConnectionId != connectionId {
		return false, nil
	}

	delete(r.entries, userId)
	return true, nil
}

func (r *MemoryRegistry) Snapshot(_ context.Context) ([]types.OnlineUser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]types.OnlineUser, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	sortEntries(entries)

	return entries, nil
}

func sortEntries(entries []types.OnlineUser) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].UserId < entries[j].UserId
	})
}
