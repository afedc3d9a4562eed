// Package token issues and validates the opaque announce tokens a node
// hands out in get_peers responses and later requires back in
// announce_peer requests (BEP-5 §"Tokens").
//
// The scheme is grounded on the epoch-rotation pattern in
// opd-ai-toxcore's async package (async/epoch.go, async/obfs.go): time is
// divided into fixed-width epochs, and a token is an HMAC over the
// requester's address keyed by a secret plus the epoch number. A node
// never stores issued tokens; it recomputes and compares instead. Tokens
// from the current or immediately preceding epoch are accepted, which
// bounds how long a token may be replayed without requiring any server
// side state.
package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"net"
	"time"
)

// Epoch is the rotation period. A token is valid for between Epoch and
// 2*Epoch, depending on when in the current epoch it was issued.
const Epoch = 5 * time.Minute

// Manager issues and validates tokens scoped to a single secret. Callers
// share one Manager per listening node.
type Manager struct {
	secret []byte
	now    func() time.Time
}

// NewManager creates a Manager with a fresh random secret.
func NewManager() (*Manager, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	return &Manager{secret: secret, now: time.Now}, nil
}

// Issue returns the token for addr valid in the current epoch.
func (m *Manager) Issue(addr *net.UDPAddr) []byte {
	return m.tokenForEpoch(addr, m.epochAt(m.now()))
}

// Valid reports whether token was issued for addr in the current epoch or
// the one immediately before it.
func (m *Manager) Valid(addr *net.UDPAddr, candidate []byte) bool {
	current := m.epochAt(m.now())
	epochs := []uint64{current}
	if current > 0 {
		epochs = append(epochs, current-1)
	}
	for _, e := range epochs {
		if hmac.Equal(m.tokenForEpoch(addr, e), candidate) {
			return true
		}
	}
	return false
}

func (m *Manager) epochAt(t time.Time) uint64 {
	if t.Unix() < 0 {
		return 0
	}
	return uint64(t.Unix()) / uint64(Epoch/time.Second)
}

func (m *Manager) tokenForEpoch(addr *net.UDPAddr, epoch uint64) []byte {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write(addr.IP.To4())

	var portBuf [2]byte
	binary.BigEndian.PutUint16(portBuf[:], uint16(addr.Port))
	mac.Write(portBuf[:])

	var epochBuf [8]byte
	binary.BigEndian.PutUint64(epochBuf[:], epoch)
	mac.Write(epochBuf[:])

	return mac.Sum(nil)
}
