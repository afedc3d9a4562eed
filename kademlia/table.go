package kademlia

import (
	"bytes"
	"sort"
	"sync"

	"dhtnode/contact"
	"dhtnode/identifier"
)

// RoutingTable is an ordered sequence of buckets whose ranges partition
// [identifier.Min, identifier.Max+1) contiguously. It owns a local
// identifier, self, chosen at construction.
//
// Generalized from the teacher's router.RouteTable/KademliaTable pair
// (router/routetable.go, router/Kademlia.go): the teacher kept a fixed
// [256]*bucket array reachable only by exact bit-index, plus a separate
// static dest->via map layered on top for its overlay-routing use case.
// This table drops the static-route layer (out of scope for a DHT core)
// and replaces the fixed array with a grow-by-splitting slice of buckets:
// any bucket that overflows K splits unconditionally, trading a larger
// table for a routing structure that never has to reason about which
// side of the split self_id falls on.
type RoutingTable struct {
	mu      sync.RWMutex
	self    identifier.ID
	buckets []*Bucket
}

// New creates a routing table centered on self, with a single bucket
// covering the whole identifier space.
func New(self identifier.ID) *RoutingTable {
	return &RoutingTable{
		self:    self,
		buckets: []*Bucket{newBucket(identifier.Min, nil)},
	}
}

// Self returns the table's local identifier.
func (t *RoutingTable) Self() identifier.ID {
	return t.self
}

// Insert locates the bucket whose range contains c.ID, inserts or refreshes
// c there, then, while the bucket holding the overflow has more than K
// contacts, splits it; every bucket holds at most K contacts afterwards.
// The identifier of the table itself is never inserted: the local node
// trivially knows about itself and does not need a routing entry for it.
func (t *RoutingTable) Insert(c contact.Contact) {
	if c.ID.Equal(t.self) {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	idx := t.findBucketIndex(c.ID)
	b := t.buckets[idx]
	b.Insert(c)

	for b.Size() > K {
		upper := b.split()
		t.buckets = append(t.buckets, nil)
		copy(t.buckets[idx+2:], t.buckets[idx+1:])
		t.buckets[idx+1] = upper
		if upper.Size() > K {
			idx, b = idx+1, upper
		}
	}
}

// findBucketIndex returns the index of the unique bucket containing id. The
// list is short (at most ~160 entries in practice, one per possible split
// depth) so a linear scan is acceptable; a binary search on From would only
// pay off at a bucket count this table never reaches.
func (t *RoutingTable) findBucketIndex(id identifier.ID) int {
	for i, b := range t.buckets {
		if b.Contains(id) {
			return i
		}
	}
	// Unreachable if the partition invariant holds: the last bucket is
	// always unbounded above and identifier.Min is always its first
	// bucket's lower bound, so every ID falls in some bucket.
	return len(t.buckets) - 1
}

// FindBucket returns the bucket whose range contains id.
func (t *RoutingTable) FindBucket(id identifier.ID) *Bucket {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.buckets[t.findBucketIndex(id)]
}

// FindContact returns the contact with the given ID, if known.
func (t *RoutingTable) FindContact(id identifier.ID) (contact.Contact, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	b := t.buckets[t.findBucketIndex(id)]
	return b.Get(id)
}

// Buckets returns a snapshot of the current bucket list, ordered by From
// ascending. Used by tests to assert the partition invariant and by
// diagnostics.
func (t *RoutingTable) Buckets() []*Bucket {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Bucket, len(t.buckets))
	copy(out, t.buckets)
	return out
}

type candidate struct {
	c    contact.Contact
	dist identifier.ID
}

// Closest returns up to count contacts, sorted ascending by XOR distance to
// target. Ties are broken by identifier order.
func (t *RoutingTable) Closest(target identifier.ID, count int) []contact.Contact {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var cands []candidate
	for _, b := range t.buckets {
		for _, c := range b.All() {
			cands = append(cands, candidate{c: c, dist: identifier.XOR(target, c.ID)})
		}
	}

	sort.Slice(cands, func(i, j int) bool {
		if d := bytes.Compare(cands[i].dist[:], cands[j].dist[:]); d != 0 {
			return d < 0
		}
		return cands[i].c.ID.Compare(cands[j].c.ID) == identifier.Less
	})

	if len(cands) > count {
		cands = cands[:count]
	}
	out := make([]contact.Contact, len(cands))
	for i, cd := range cands {
		out[i] = cd.c
	}
	return out
}
