package ws

import (
	"hash/fnv"
	"sync"
)

const registryShards = 32

type registryShard struct {
	mu   sync.RWMutex
	subs map[string]map[*Conn]struct{}
}

// Registry maps market ids to the connections subscribed to them. Entries
// are spread over independently locked shards so churn on one market never
// blocks the others. An entry exists only while it has subscribers.
type Registry struct {
	shards [registryShards]*registryShard
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i] = &registryShard{subs: make(map[string]map[*Conn]struct{})}
	}
	return r
}

func (r *Registry) shard(marketID string) *registryShard {
	h := fnv.New32a()
	h.Write([]byte(marketID))
	return r.shards[h.Sum32()%registryShards]
}

// Subscribe adds c to marketID's subscribers. Repeated calls are no-ops.
func (r *Registry) Subscribe(marketID string, c *Conn) {
	s := r.shard(marketID)
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.subs[marketID]
	if !ok {
		set = make(map[*Conn]struct{})
		s.subs[marketID] = set
	}
	set[c] = struct{}{}
}

// Unsubscribe removes c from marketID's subscribers and drops the entry once
// it is empty. Unknown pairs are ignored.
func (r *Registry) Unsubscribe(marketID string, c *Conn) {
	s := r.shard(marketID)
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.subs[marketID]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(s.subs, marketID)
	}
}

// UnsubscribeFromAll removes c from every entry, one shard at a time. It
// returns the number of entries c was removed from.
func (r *Registry) UnsubscribeFromAll(c *Conn) int {
	removed := 0
	for _, s := range r.shards {
		s.mu.Lock()
		for id, set := range s.subs {
			if _, ok := set[c]; !ok {
				continue
			}
			delete(set, c)
			removed++
			if len(set) == 0 {
				delete(s.subs, id)
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// SubscribersOf returns a snapshot of marketID's subscribers. The result is
// empty, never nil, for unknown ids.
func (r *Registry) SubscribersOf(marketID string) []*Conn {
	s := r.shard(marketID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := s.subs[marketID]
	out := make([]*Conn, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// MarketIDs returns every market id that currently has a subscriber.
func (r *Registry) MarketIDs() []string {
	var ids []string
	for _, s := range r.shards {
		s.mu.RLock()
		for id := range s.subs {
			ids = append(ids, id)
		}
		s.mu.RUnlock()
	}
	return ids
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	n := 0
	for _, s := range r.shards {
		s.mu.RLock()
		n += len(s.subs)
		s.mu.RUnlock()
	}
	return n
}
