// Package transport runs the UDP listen loop: one read loop, one goroutine
// per inbound datagram, bounded by a weighted semaphore so a burst of
// traffic cannot spawn unbounded goroutines.
//
// Directly generalized from the teacher's netquic.Node.ListenAndServe /
// handleConn (_examples/DarkMagier-envelop/netquic/node.go): that code
// accepted a QUIC connection and spawned "go n.handleConn(conn)" per
// connection, then "go n.handleStream(stream, conn)" per stream within it.
// A KRPC node has no connections or streams, only one UDP socket and a
// datagram per request, so the two-level goroutine-per-unit fans in to a
// single goroutine-per-datagram here — capped with
// golang.org/x/sync/semaphore.Weighted instead of left unbounded, since an
// unauthenticated UDP listener is directly exposed to flood traffic.
package transport

import (
	"context"
	"net"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// MaxConcurrentDatagrams bounds how many inbound datagrams are processed
// at once.
const MaxConcurrentDatagrams = 256

// datagramBufferSize is larger than any legal KRPC message; BEP-5 traffic
// is small bencoded dictionaries, well under the Ethernet-safe UDP
// payload size.
const datagramBufferSize = 8192

// Handler processes one inbound datagram and returns the bytes to send
// back, if any.
type Handler func(ctx context.Context, from *net.UDPAddr, raw []byte) ([]byte, error)

// Listener owns a UDP socket and dispatches inbound datagrams to a
// Handler.
type Listener struct {
	conn *net.UDPConn
	sem  *semaphore.Weighted
}

// Listen opens a UDP4 socket bound to addr.
func Listen(addr *net.UDPAddr) (*Listener, error) {
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return nil, err
	}
	return &Listener{
		conn: conn,
		sem:  semaphore.NewWeighted(MaxConcurrentDatagrams),
	}, nil
}

// LocalAddr returns the socket's bound local address.
func (l *Listener) LocalAddr() *net.UDPAddr {
	return l.conn.LocalAddr().(*net.UDPAddr)
}

// Close stops accepting datagrams.
func (l *Listener) Close() error {
	return l.conn.Close()
}

// Serve reads datagrams until ctx is cancelled or the socket is closed,
// handing each to handle on its own goroutine.
func (l *Listener) Serve(ctx context.Context, handle Handler) error {
	go func() {
		<-ctx.Done()
		l.conn.Close()
	}()

	buf := make([]byte, datagramBufferSize)
	for {
		n, from, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logrus.WithFields(logrus.Fields{
				"function": "Listener.Serve",
				"error":    err,
			}).Warn("UDP read error")
			return err
		}

		raw := make([]byte, n)
		copy(raw, buf[:n])

		if err := l.sem.Acquire(ctx, 1); err != nil {
			return nil
		}
		go l.handleDatagram(ctx, from, raw, handle)
	}
}

func (l *Listener) handleDatagram(ctx context.Context, from *net.UDPAddr, raw []byte, handle Handler) {
	defer l.sem.Release(1)

	reply, err := handle(ctx, from, raw)
	if err != nil {
		return
	}
	if reply == nil {
		return
	}

	if _, err := l.conn.WriteToUDP(reply, from); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Listener.handleDatagram",
			"to":       from.String(),
			"error":    err,
		}).Warn("UDP write error")
	}
}

// Send writes a datagram to to without waiting for a reply.
func (l *Listener) Send(raw []byte, to *net.UDPAddr) error {
	_, err := l.conn.WriteToUDP(raw, to)
	return err
}
