// Package krpc implements the Mainline DHT KRPC protocol (BEP-5): the
// bidirectional translation between UDP datagram payloads (a bencoded
// dictionary) and typed query/response/error messages, including the
// compact encoding of contact and peer records.
//
// The wire dictionary is decoded and encoded as plain
// map[string]interface{} via github.com/jackpal/bencode-go, consumed here
// as a generic structured-value collaborator rather than through struct-tag
// reflection. All BEP-5-specific validation — required keys, field widths,
// compact record lengths — happens in this package by hand instead, so
// that decode failures name the exact missing or malformed field.
package krpc

import (
	"strconv"

	"dhtnode/identifier"
)

// Method names the four Kademlia RPCs. Method values are exactly the
// bencode "q" field, so they double as method names on the wire.
type Method string

const (
	Ping         Method = "ping"
	FindNode     Method = "find_node"
	GetPeers     Method = "get_peers"
	AnnouncePeer Method = "announce_peer"
)

// Query is the body of a y=q message.
type Query struct {
	Method Method
	ID     identifier.ID

	Target      identifier.ID // find_node
	InfoHash    identifier.ID // get_peers, announce_peer
	Port        uint16        // announce_peer
	ImpliedPort bool          // announce_peer: use the UDP source port instead of Port
	Token       []byte        // announce_peer: echoed from a prior get_peers response
}

// Remote is the payload choice carried by a response: either a list of
// peers for the requested info-hash, or a list of nodes closer to the
// requested target. At most one of the two is populated.
type Remote struct {
	Peers []Endpoint
	Nodes []Node
}

// Response is the body of a y=r message.
type Response struct {
	ID     identifier.ID
	Token  []byte // optional: present on get_peers responses
	Remote Remote
}

// ProtoError is the body of a y=e message: a peer-reported protocol error.
// BEP-5 reserves 201 (generic), 202 (server error), 203 (protocol error),
// 204 (method unknown).
type ProtoError struct {
	Code    int
	Message string
}

func (e *ProtoError) Error() string {
	return "krpc: peer error " + strconv.Itoa(e.Code) + ": " + e.Message
}

// Standard BEP-5 error codes.
const (
	ErrGeneric   = 201
	ErrServer    = 202
	ErrProtocol  = 203
	ErrMethodUnk = 204
)

// Message is a decoded KRPC datagram: a transaction ID plus exactly one of
// Query, Response, or Error.
type Message struct {
	TransactionID []byte
	Query         *Query
	Response      *Response
	Error         *ProtoError
}
