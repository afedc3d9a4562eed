// Package contact describes a remote DHT participant: its identifier, its
// IPv4 endpoint, and the bookkeeping needed to judge liveness.
package contact

import (
	"net"
	"time"

	"dhtnode/identifier"
)

// GoodWindow is how long after last_seen a contact is still considered
// live. Grounded on the pack's own DHT example
// (other_examples/042c423f_sjaensch-storrent__dht-dht.go.go), which checks
// cur.LastActive.Add(15*time.Minute).After(time.Now()) for the same
// 15-minute liveness window used here.
const GoodWindow = 15 * time.Minute

// Contact is a remote node observed on the wire.
type Contact struct {
	ID       identifier.ID
	Addr     *net.UDPAddr
	LastSeen time.Time
}

// New creates a contact observed right now.
func New(id identifier.ID, addr *net.UDPAddr) Contact {
	return Contact{ID: id, Addr: addr, LastSeen: time.Now()}
}

// Equal reports whether two contacts denote the same node, by identifier
// only — two contacts with the same ID are the same contact even if their
// endpoints differ (the newer observation should replace the older one).
func (c Contact) Equal(other Contact) bool {
	return c.ID.Equal(other.ID)
}

// Good reports whether c was seen recently enough to be considered live.
func (c Contact) Good(now time.Time) bool {
	return now.Sub(c.LastSeen) < GoodWindow
}

// Refresh returns a copy of c with LastSeen and Addr updated to a new
// observation. Contacts are never mutated in place once exposed outside a
// bucket; a refresh replaces the stored value wholesale.
func (c Contact) Refresh(addr *net.UDPAddr, now time.Time) Contact {
	c.Addr = addr
	c.LastSeen = now
	return c
}
