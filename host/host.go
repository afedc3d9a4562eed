// Package host is the facade that wires identifier, kademlia, krpc,
// dispatcher, peerstore, token, and transport into one runnable DHT node.
//
// Directly modeled on the teacher's host.Host/host.Builder
// (_examples/DarkMagier-envelop/host/host.go): that Builder strung
// together a RelayRegistry, PeerManager, Router, Node, Strategy, and
// Socket behind Name()/Listen()/Build(); Build() filled in any
// unspecified piece with a sensible default (a fresh KeyPair, a new
// RelayRegistry, SimpleStrategy) exactly the way Build() below fills in
// a random identifier and a fresh routing table when the caller doesn't
// supply one.
package host

import (
	"context"
	"encoding/hex"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"dhtnode/contact"
	"dhtnode/dispatcher"
	"dhtnode/identifier"
	"dhtnode/kademlia"
	"dhtnode/krpc"
	"dhtnode/peerstore"
	"dhtnode/token"
	"dhtnode/transport"
)

// QueryTimeout bounds how long Ping and FindNode wait for a response
// before giving up.
const QueryTimeout = 5 * time.Second

// Host is a running DHT node: an identifier, a routing table, and the
// UDP listener serving it.
type Host struct {
	self identifier.ID

	Table      *kademlia.RoutingTable
	Peers      *peerstore.Store
	Tokens     *token.Manager
	Dispatcher *dispatcher.Dispatcher
	Listener   *transport.Listener

	mu      sync.Mutex
	pending map[string]chan *krpc.Message
}

// ID returns the node's own identifier.
func (h *Host) ID() identifier.ID { return h.self }

// Addr returns the socket's bound local address.
func (h *Host) Addr() *net.UDPAddr { return h.Listener.LocalAddr() }

// Serve runs the UDP read loop until ctx is cancelled.
func (h *Host) Serve(ctx context.Context) error {
	return h.Listener.Serve(ctx, h.handleDatagram)
}

func (h *Host) handleDatagram(ctx context.Context, from *net.UDPAddr, raw []byte) ([]byte, error) {
	reply, err := h.Dispatcher.Handle(ctx, from, raw)
	if err != nil {
		return nil, err
	}
	if reply == nil {
		return nil, nil
	}
	return krpc.Encode(reply)
}

func (h *Host) onResponse(_ *net.UDPAddr, msg *krpc.Message) {
	h.mu.Lock()
	ch, ok := h.pending[string(msg.TransactionID)]
	if ok {
		delete(h.pending, string(msg.TransactionID))
	}
	h.mu.Unlock()

	if ok {
		ch <- msg
	}
}

// query sends q to addr and waits for the matching response or error, or
// until ctx is done.
func (h *Host) query(ctx context.Context, addr *net.UDPAddr, q *krpc.Query) (*krpc.Message, error) {
	txID := randomTransactionID()
	ch := make(chan *krpc.Message, 1)

	h.mu.Lock()
	h.pending[string(txID)] = ch
	h.mu.Unlock()

	raw, err := krpc.Encode(&krpc.Message{TransactionID: txID, Query: q})
	if err != nil {
		return nil, err
	}
	if err := h.Listener.Send(raw, addr); err != nil {
		return nil, err
	}

	select {
	case msg := <-ch:
		if msg.Error != nil {
			return nil, msg.Error
		}
		return msg, nil
	case <-ctx.Done():
		h.mu.Lock()
		delete(h.pending, string(txID))
		h.mu.Unlock()
		return nil, ctx.Err()
	}
}

// Ping sends a ping query to addr and, on success, records it as a known
// contact.
func (h *Host) Ping(ctx context.Context, addr *net.UDPAddr) (identifier.ID, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeout)
	defer cancel()

	msg, err := h.query(ctx, addr, &krpc.Query{Method: krpc.Ping, ID: h.self})
	if err != nil {
		return identifier.ID{}, err
	}
	h.Table.Insert(contact.New(msg.Response.ID, addr))
	return msg.Response.ID, nil
}

// FindNode asks addr for the nodes it knows closest to target.
func (h *Host) FindNode(ctx context.Context, addr *net.UDPAddr, target identifier.ID) ([]krpc.Node, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeout)
	defer cancel()

	msg, err := h.query(ctx, addr, &krpc.Query{Method: krpc.FindNode, ID: h.self, Target: target})
	if err != nil {
		return nil, err
	}
	h.Table.Insert(contact.New(msg.Response.ID, addr))
	return msg.Response.Remote.Nodes, nil
}

// Join bootstraps the routing table by pinging a known-good address and
// then asking it to find_node(self), seeding the table with whatever
// nodes it returns.
func (h *Host) Join(ctx context.Context, bootstrap *net.UDPAddr) error {
	if _, err := h.Ping(ctx, bootstrap); err != nil {
		return fmt.Errorf("host: bootstrap ping failed: %w", err)
	}

	nodes, err := h.FindNode(ctx, bootstrap, h.self)
	if err != nil {
		return fmt.Errorf("host: bootstrap find_node failed: %w", err)
	}
	for _, n := range nodes {
		h.Table.Insert(contact.New(n.ID, n.Addr.UDPAddr()))
	}

	logrus.WithFields(logrus.Fields{
		"function":  "Host.Join",
		"bootstrap": bootstrap.String(),
		"learned":   len(nodes),
	}).Info("joined network via bootstrap node")
	return nil
}

func randomTransactionID() []byte {
	id, err := identifier.Random()
	if err != nil {
		// crypto/rand failure is unrecoverable; the process cannot
		// safely continue issuing transaction ids.
		panic(err)
	}
	return []byte(hex.EncodeToString(id.Bytes()[:2]))
}

// Builder progressively configures a Host, so callers that don't need a
// fixed identifier or a pre-seeded routing table can build one with just
// a listen address.
type Builder struct {
	listenAddr *net.UDPAddr
	self       *identifier.ID
	table      *kademlia.RoutingTable
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Listen sets the UDP address to bind.
func (b *Builder) Listen(addr *net.UDPAddr) *Builder {
	b.listenAddr = addr
	return b
}

// Self pins the node's identifier. If unset, Build generates a random one.
func (b *Builder) Self(id identifier.ID) *Builder {
	b.self = &id
	return b
}

// RoutingTable supplies a pre-built routing table, e.g. one restored from
// a previous run. If unset, Build creates an empty one.
func (b *Builder) RoutingTable(rt *kademlia.RoutingTable) *Builder {
	b.table = rt
	return b
}

// Build assembles a Host from the current Builder configuration.
func (b *Builder) Build() (*Host, error) {
	if b.listenAddr == nil {
		return nil, fmt.Errorf("host: Listen address must be set (call Builder.Listen)")
	}

	self := b.self
	if self == nil {
		id, err := identifier.Random()
		if err != nil {
			return nil, fmt.Errorf("host: generating identifier: %w", err)
		}
		self = &id
	}

	table := b.table
	if table == nil {
		table = kademlia.New(*self)
	}

	tokens, err := token.NewManager()
	if err != nil {
		return nil, fmt.Errorf("host: creating token manager: %w", err)
	}

	listener, err := transport.Listen(b.listenAddr)
	if err != nil {
		return nil, fmt.Errorf("host: binding UDP socket: %w", err)
	}

	h := &Host{
		self:     *self,
		Table:    table,
		Peers:    peerstore.New(),
		Tokens:   tokens,
		Listener: listener,
		pending:  make(map[string]chan *krpc.Message),
	}
	h.Dispatcher = &dispatcher.Dispatcher{
		Self:       h.self,
		Table:      h.Table,
		Peers:      h.Peers,
		Tokens:     h.Tokens,
		OnResponse: h.onResponse,
	}

	return h, nil
}
