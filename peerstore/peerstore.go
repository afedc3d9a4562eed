// Package peerstore holds the (info_hash -> peer endpoints) mapping built
// from announce_peer requests and served back out in get_peers responses.
//
// Structure and the lock-then-sweep expiry pattern are grounded on
// opd-ai-toxcore's async.MessageStorage (async/storage.go): a mutex-guarded
// map plus a CleanupExpiredMessages-style sweep that drops entries older
// than a fixed retention window, invoked periodically rather than per
// insert.
package peerstore

import (
	"net"
	"strconv"
	"sync"
	"time"

	"dhtnode/identifier"
	"dhtnode/krpc"
)

// TTL is how long an announced peer endpoint is kept without being
// refreshed by another announce_peer.
const TTL = 30 * time.Minute

type entry struct {
	endpoint krpc.Endpoint
	seenAt   time.Time
}

// Store maps info-hashes to the set of peer endpoints announced for them.
type Store struct {
	mu   sync.RWMutex
	data map[identifier.ID]map[string]entry
}

// New creates an empty Store.
func New() *Store {
	return &Store{data: make(map[identifier.ID]map[string]entry)}
}

func endpointKey(e krpc.Endpoint) string {
	return net.JoinHostPort(e.IP.String(), strconv.Itoa(int(e.Port)))
}

// Announce records that a peer at endpoint is downloading infoHash, seen
// now. A repeated announce for the same endpoint refreshes its TTL.
func (s *Store) Announce(infoHash identifier.ID, endpoint krpc.Endpoint, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	peers, ok := s.data[infoHash]
	if !ok {
		peers = make(map[string]entry)
		s.data[infoHash] = peers
	}
	peers[endpointKey(endpoint)] = entry{endpoint: endpoint, seenAt: now}
}

// Get returns the live (unexpired) peer endpoints announced for infoHash.
func (s *Store) Get(infoHash identifier.ID, now time.Time) []krpc.Endpoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	peers, ok := s.data[infoHash]
	if !ok {
		return nil
	}
	out := make([]krpc.Endpoint, 0, len(peers))
	for _, e := range peers {
		if now.Sub(e.seenAt) < TTL {
			out = append(out, e.endpoint)
		}
	}
	return out
}

// Sweep removes every endpoint whose TTL has elapsed as of now, across all
// info-hashes, and drops any info-hash left with no endpoints. It returns
// the number of endpoints removed. Intended to run periodically, not per
// request.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for infoHash, peers := range s.data {
		for key, e := range peers {
			if now.Sub(e.seenAt) >= TTL {
				delete(peers, key)
				removed++
			}
		}
		if len(peers) == 0 {
			delete(s.data, infoHash)
		}
	}
	return removed
}
