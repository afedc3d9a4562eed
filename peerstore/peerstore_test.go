package peerstore

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dhtnode/identifier"
	"dhtnode/krpc"
)

func idOf(b byte) identifier.ID {
	var raw [identifier.Size]byte
	for i := range raw {
		raw[i] = b
	}
	return identifier.FromBytes(raw[:])
}

func TestAnnounceThenGet(t *testing.T) {
	s := New()
	infoHash := idOf(1)
	ep := krpc.Endpoint{IP: net.IPv4(1, 2, 3, 4), Port: 6881}
	now := time.Now()

	s.Announce(infoHash, ep, now)

	peers := s.Get(infoHash, now)
	require.Len(t, peers, 1)
	assert.True(t, peers[0].IP.Equal(ep.IP))
	assert.Equal(t, ep.Port, peers[0].Port)
}

func TestGetUnknownInfoHashIsEmpty(t *testing.T) {
	s := New()
	peers := s.Get(idOf(9), time.Now())
	assert.Empty(t, peers)
}

func TestGetExcludesExpiredEntries(t *testing.T) {
	s := New()
	infoHash := idOf(1)
	ep := krpc.Endpoint{IP: net.IPv4(1, 2, 3, 4), Port: 6881}
	now := time.Now()

	s.Announce(infoHash, ep, now)

	peers := s.Get(infoHash, now.Add(TTL+time.Second))
	assert.Empty(t, peers)
}

func TestAnnounceRefreshesTTL(t *testing.T) {
	s := New()
	infoHash := idOf(1)
	ep := krpc.Endpoint{IP: net.IPv4(1, 2, 3, 4), Port: 6881}
	now := time.Now()

	s.Announce(infoHash, ep, now)
	s.Announce(infoHash, ep, now.Add(TTL-time.Minute))

	peers := s.Get(infoHash, now.Add(TTL))
	assert.Len(t, peers, 1)
}

func TestSweepRemovesExpiredAndEmptiesInfoHash(t *testing.T) {
	s := New()
	infoHash := idOf(1)
	ep := krpc.Endpoint{IP: net.IPv4(1, 2, 3, 4), Port: 6881}
	now := time.Now()

	s.Announce(infoHash, ep, now)

	removed := s.Sweep(now.Add(TTL + time.Second))
	assert.Equal(t, 1, removed)
	assert.Empty(t, s.Get(infoHash, now.Add(TTL+time.Second)))
}

func TestMultiplePeersPerInfoHash(t *testing.T) {
	s := New()
	infoHash := idOf(1)
	now := time.Now()

	s.Announce(infoHash, krpc.Endpoint{IP: net.IPv4(1, 1, 1, 1), Port: 1}, now)
	s.Announce(infoHash, krpc.Endpoint{IP: net.IPv4(2, 2, 2, 2), Port: 2}, now)

	peers := s.Get(infoHash, now)
	assert.Len(t, peers, 2)
}
