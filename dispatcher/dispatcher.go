// Package dispatcher turns a decoded KRPC message into routing-table
// updates and, for queries, an outgoing response. It is the piece that
// ties together krpc, kademlia, peerstore, and token.
//
// Generalized from the teacher's netquic.Node.handleStream
// (_examples/DarkMagier-envelop/netquic/node.go): that method decoded a
// frame, ran a couple of conditional side effects (REGISTER handling,
// route-table learning via OnEnvelope), then handed the payload to a
// Router. Handle below plays the same role for KRPC queries/responses,
// with the REGISTER-equivalent special case being "responses and queries
// both refresh the sender's routing table entry, but errors don't" (an
// error body carries no reliable sender identifier to learn from).
package dispatcher

import (
	"context"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"dhtnode/contact"
	"dhtnode/identifier"
	"dhtnode/kademlia"
	"dhtnode/krpc"
	"dhtnode/peerstore"
	"dhtnode/token"
)

// NodesWanted is how many contacts find_node/get_peers responses return.
const NodesWanted = 8

// Dispatcher answers incoming KRPC queries and learns about the network
// from every query and response it observes.
type Dispatcher struct {
	Self   identifier.ID
	Table  *kademlia.RoutingTable
	Peers  *peerstore.Store
	Tokens *token.Manager

	// OnResponse is invoked for decoded responses and errors, matching
	// them against transactions opened by an outbound query. Optional:
	// a server-only node may leave this nil.
	OnResponse func(from *net.UDPAddr, msg *krpc.Message)
}

// Handle decodes raw, updates local state, and returns the reply to send
// back (nil if none is warranted, e.g. for a response or error message).
// The caller is responsible for encoding the reply and writing it to the
// network.
func (d *Dispatcher) Handle(ctx context.Context, from *net.UDPAddr, raw []byte) (*krpc.Message, error) {
	msg, err := krpc.Decode(raw)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Dispatcher.Handle",
			"from":     from.String(),
			"error":    err,
		}).Warn("discarding malformed KRPC datagram")
		return nil, err
	}

	kind := "error"
	switch {
	case msg.Query != nil:
		kind = "query:" + string(msg.Query.Method)
	case msg.Response != nil:
		kind = "response"
	}
	logrus.WithFields(logrus.Fields{
		"direction":      "in",
		"kind":           kind,
		"origin":         from.String(),
		"transaction_id": string(msg.TransactionID),
	}).Debug("dispatching KRPC message")

	switch {
	case msg.Query != nil:
		d.learn(msg.Query.ID, from)
		return d.handleQuery(msg.TransactionID, from, msg.Query), nil
	case msg.Response != nil:
		d.learn(msg.Response.ID, from)
		if d.OnResponse != nil {
			d.OnResponse(from, msg)
		}
		return nil, nil
	case msg.Error != nil:
		if d.OnResponse != nil {
			d.OnResponse(from, msg)
		}
		return nil, nil
	default:
		return nil, nil
	}
}

func (d *Dispatcher) learn(id identifier.ID, from *net.UDPAddr) {
	if existing, ok := d.Table.FindContact(id); ok {
		d.Table.Insert(existing.Refresh(from, time.Now()))
		return
	}
	d.Table.Insert(contact.New(id, from))
}

func (d *Dispatcher) handleQuery(txID []byte, from *net.UDPAddr, q *krpc.Query) *krpc.Message {
	switch q.Method {
	case krpc.Ping:
		return d.reply(txID, &krpc.Response{ID: d.Self})
	case krpc.FindNode:
		return d.reply(txID, &krpc.Response{
			ID:     d.Self,
			Remote: krpc.Remote{Nodes: d.closestNodes(q.Target)},
		})
	case krpc.GetPeers:
		return d.handleGetPeers(txID, from, q)
	case krpc.AnnouncePeer:
		return d.handleAnnouncePeer(txID, from, q)
	default:
		// BEP-5 does not mandate a specific error for an unrecognized
		// method; silently drop rather than reply.
		return nil
	}
}

func (d *Dispatcher) handleGetPeers(txID []byte, from *net.UDPAddr, q *krpc.Query) *krpc.Message {
	resp := &krpc.Response{ID: d.Self, Token: d.Tokens.Issue(from)}
	if peers := d.Peers.Get(q.InfoHash, time.Now()); len(peers) > 0 {
		resp.Remote.Peers = peers
	} else {
		resp.Remote.Nodes = d.closestNodes(q.InfoHash)
	}
	return d.reply(txID, resp)
}

func (d *Dispatcher) handleAnnouncePeer(txID []byte, from *net.UDPAddr, q *krpc.Query) *krpc.Message {
	if !d.Tokens.Valid(from, q.Token) {
		return d.errorReply(txID, krpc.ErrProtocol, "bad token")
	}

	port := q.Port
	if q.ImpliedPort {
		port = uint16(from.Port)
	}
	endpoint := krpc.Endpoint{IP: from.IP.To4(), Port: port}
	d.Peers.Announce(q.InfoHash, endpoint, time.Now())

	return d.reply(txID, &krpc.Response{ID: d.Self})
}

func (d *Dispatcher) closestNodes(target identifier.ID) []krpc.Node {
	contacts := d.Table.Closest(target, NodesWanted)
	nodes := make([]krpc.Node, len(contacts))
	for i, c := range contacts {
		nodes[i] = krpc.Node{ID: c.ID, Addr: krpc.EndpointFromUDPAddr(c.Addr)}
	}
	return nodes
}

func (d *Dispatcher) reply(txID []byte, r *krpc.Response) *krpc.Message {
	return &krpc.Message{TransactionID: txID, Response: r}
}

func (d *Dispatcher) errorReply(txID []byte, code int, message string) *krpc.Message {
	return &krpc.Message{TransactionID: txID, Error: &krpc.ProtoError{Code: code, Message: message}}
}
