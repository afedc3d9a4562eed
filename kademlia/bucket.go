// Package kademlia implements the routing table: a recursive partition of
// the 160-bit identifier space into range-indexed buckets, with a split
// policy and XOR-nearest-neighbor lookups.
//
// This is a generalization of the teacher's router/Kademlia.go, which kept
// a fixed [256]*bucket array indexed by first-differing-bit (a trie-style
// split). Bucket ranges here are computed with identifier.Mid instead, per
// spec: simpler to iterate linearly, same asymptotic behavior, and it
// avoids the teacher's 256-bit PeerID assumption (our identifiers are 160
// bits, matching BEP-5).
package kademlia

import (
	"math/big"

	"dhtnode/contact"
	"dhtnode/identifier"
)

// K is the maximum number of contacts a bucket holds before it splits.
const K = 8

// Bucket is a half-open identifier range [From, To) holding up to K
// contacts, keyed by identifier. A nil To represents the open upper bound
// MAX+1 (2^160), which does not fit in a 160-bit ID; only the table's last
// bucket ever has a nil To.
type Bucket struct {
	from, to *identifier.ID
	contacts map[identifier.ID]contact.Contact
}

// newBucket creates an empty bucket covering [from, to). to may be nil to
// mean "unbounded" (covers up through identifier.Max).
func newBucket(from identifier.ID, to *identifier.ID) *Bucket {
	return &Bucket{
		from:     &from,
		to:       to,
		contacts: make(map[identifier.ID]contact.Contact, K),
	}
}

// From returns the inclusive lower bound of the bucket's range.
func (b *Bucket) From() identifier.ID { return *b.from }

// To returns the exclusive upper bound and whether one exists (false means
// the bucket is unbounded above, i.e. it is the table's last bucket).
func (b *Bucket) To() (identifier.ID, bool) {
	if b.to == nil {
		return identifier.ID{}, false
	}
	return *b.to, true
}

// Contains reports whether id falls in [From, To).
func (b *Bucket) Contains(id identifier.ID) bool {
	if id.Compare(*b.from) == identifier.Less {
		return false
	}
	if b.to == nil {
		return true
	}
	return id.Compare(*b.to) == identifier.Less
}

// Size returns the number of contacts currently held.
func (b *Bucket) Size() int {
	return len(b.contacts)
}

// Insert adds or refreshes a contact by ID. It does not enforce the
// capacity limit; RoutingTable.Insert is responsible for splitting an
// overflowing bucket.
func (b *Bucket) Insert(c contact.Contact) {
	b.contacts[c.ID] = c
}

// Get returns the contact with the given ID, if present.
func (b *Bucket) Get(id identifier.ID) (contact.Contact, bool) {
	c, ok := b.contacts[id]
	return c, ok
}

// All returns every contact in the bucket, in no particular order. Callers
// that need ID or distance order sort the result themselves (RoutingTable
// does, for Closest).
func (b *Bucket) All() []contact.Contact {
	out := make([]contact.Contact, 0, len(b.contacts))
	for _, c := range b.contacts {
		out = append(out, c)
	}
	return out
}

// split divides the bucket at its midpoint, precondition Size() > K. The
// receiver's range shrinks to [from, mid); the returned bucket covers
// [mid, to). Every contact whose ID >= mid moves to the new bucket.
func (b *Bucket) split() *Bucket {
	mid := b.midpoint()
	upper := newBucket(mid, b.to)
	for id, c := range b.contacts {
		if id.Compare(mid) != identifier.Less {
			upper.contacts[id] = c
			delete(b.contacts, id)
		}
	}
	b.to = &mid
	return upper
}

// midpoint computes identifier.Mid(from, to), treating a nil To as the
// virtual value 2^160 (one past identifier.Max).
func (b *Bucket) midpoint() identifier.ID {
	if b.to != nil {
		return identifier.Mid(*b.from, *b.to)
	}
	return midUnbounded(*b.from)
}

// twoPow160 is the virtual upper bound (identifier.Max + 1) used when a
// bucket's To is nil.
var twoPow160 = new(big.Int).Lsh(big.NewInt(1), 8*identifier.Size)

// midUnbounded computes (from + 2^160) / 2 for the table's last bucket.
func midUnbounded(from identifier.ID) identifier.ID {
	sum := new(big.Int).Add(new(big.Int).SetBytes(from.Bytes()), twoPow160)
	sum.Rsh(sum, 1)
	var id identifier.ID
	b := sum.Bytes()
	copy(id[identifier.Size-len(b):], b)
	return id
}
