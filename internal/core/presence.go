package core

import (
	"slices"
	"sync"

	"github.com/samber/lo"
)

// Presence maps identities to their live clients.
// An identity is online while it owns at least one client.
type Presence struct {
	mu     sync.RWMutex
	byUser map[int64]map[string]*Client
}

// NewPresence creates an empty registry.
func NewPresence() *Presence {
	return &Presence{byUser: make(map[int64]map[string]*Client)}
}

// Register adds a client. It reports whether its identity just came online.
func (p *Presence) Register(c *Client) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	handles, ok := p.byUser[c.Identity.ID]
	if !ok {
		handles = make(map[string]*Client)
		p.byUser[c.Identity.ID] = handles
	}
	handles[c.ID] = c
	return !ok
}

// Unregister removes exactly this client. It reports whether its identity just
// went offline; removing an unknown client reports false.
func (p *Presence) Unregister(c *Client) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	handles, ok := p.byUser[c.Identity.ID]
	if !ok {
		return false
	}
	if _, ok := handles[c.ID]; !ok {
		return false
	}
	delete(handles, c.ID)
	if len(handles) > 0 {
		return false
	}
	delete(p.byUser, c.Identity.ID)
	return true
}

// IsOnline reports whether the identity has a live client.
func (p *Presence) IsOnline(userID int64) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.byUser[userID]
	return ok
}

// ListOnline returns the online identity IDs in ascending order.
func (p *Presence) ListOnline() []int64 {
	p.mu.RLock()
	ids := lo.Keys(p.byUser)
	p.mu.RUnlock()

	slices.Sort(ids)
	return ids
}

// Count returns the number of online identities.
func (p *Presence) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byUser)
}

// Clients returns a snapshot of the identity's live clients.
func (p *Presence) Clients(userID int64) []*Client {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return lo.Values(p.byUser[userID])
}

// All returns a snapshot of every live client.
func (p *Presence) All() []*Client {
	p.mu.RLock()
	defer p.mu.RUnlock()

	all := make([]*Client, 0, len(p.byUser))
	for _, handles := range p.byUser {
		all = append(all, lo.Values(handles)...)
	}
	return all
}
