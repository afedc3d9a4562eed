package krpc

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dhtnode/identifier"
)

func mustID(t *testing.T, b byte) identifier.ID {
	t.Helper()
	var raw [identifier.Size]byte
	for i := range raw {
		raw[i] = b
	}
	return identifier.FromBytes(raw[:])
}

func TestPingRoundTrip(t *testing.T) {
	self := mustID(t, 0x11)
	msg := &Message{
		TransactionID: []byte("aa"),
		Query:         &Query{Method: Ping, ID: self},
	}

	raw, err := Encode(msg)
	require.NoError(t, err)

	decoded, err := Decode(raw)
	require.NoError(t, err)
	require.NotNil(t, decoded.Query)
	assert.Equal(t, Ping, decoded.Query.Method)
	assert.Equal(t, self, decoded.Query.ID)
	assert.Equal(t, []byte("aa"), decoded.TransactionID)
}

func TestFindNodeRoundTrip(t *testing.T) {
	self := mustID(t, 0x22)
	target := mustID(t, 0x33)
	msg := &Message{
		TransactionID: []byte("bb"),
		Query:         &Query{Method: FindNode, ID: self, Target: target},
	}

	raw, err := Encode(msg)
	require.NoError(t, err)

	decoded, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, FindNode, decoded.Query.Method)
	assert.Equal(t, target, decoded.Query.Target)
}

func TestFindNodeResponseRoundTrip(t *testing.T) {
	self := mustID(t, 0x44)
	nodes := []Node{
		{ID: mustID(t, 0x01), Addr: Endpoint{IP: net.IPv4(1, 2, 3, 4), Port: 6881}},
		{ID: mustID(t, 0x02), Addr: Endpoint{IP: net.IPv4(5, 6, 7, 8), Port: 6882}},
	}
	msg := &Message{
		TransactionID: []byte("cc"),
		Response: &Response{
			ID:     self,
			Remote: Remote{Nodes: nodes},
		},
	}

	raw, err := Encode(msg)
	require.NoError(t, err)

	decoded, err := Decode(raw)
	require.NoError(t, err)
	require.NotNil(t, decoded.Response)
	assert.Equal(t, self, decoded.Response.ID)
	require.Len(t, decoded.Response.Remote.Nodes, 2)
	assert.Equal(t, nodes[0].ID, decoded.Response.Remote.Nodes[0].ID)
	assert.True(t, nodes[0].Addr.IP.Equal(decoded.Response.Remote.Nodes[0].Addr.IP))
	assert.Equal(t, nodes[0].Addr.Port, decoded.Response.Remote.Nodes[0].Addr.Port)
}

func TestGetPeersResponseRoundTrip(t *testing.T) {
	self := mustID(t, 0x55)
	peers := []Endpoint{
		{IP: net.IPv4(10, 0, 0, 1), Port: 51413},
	}
	msg := &Message{
		TransactionID: []byte("dd"),
		Response: &Response{
			ID:     self,
			Token:  []byte("tok"),
			Remote: Remote{Peers: peers},
		},
	}

	raw, err := Encode(msg)
	require.NoError(t, err)

	decoded, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, []byte("tok"), decoded.Response.Token)
	require.Len(t, decoded.Response.Remote.Peers, 1)
	assert.True(t, peers[0].IP.Equal(decoded.Response.Remote.Peers[0].IP))
}

func TestAnnouncePeerRoundTrip(t *testing.T) {
	self := mustID(t, 0x66)
	infoHash := mustID(t, 0x77)
	msg := &Message{
		TransactionID: []byte("ee"),
		Query: &Query{
			Method:   AnnouncePeer,
			ID:       self,
			InfoHash: infoHash,
			Port:     6881,
			Token:    []byte("abc"),
		},
	}

	raw, err := Encode(msg)
	require.NoError(t, err)

	decoded, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, infoHash, decoded.Query.InfoHash)
	assert.Equal(t, uint16(6881), decoded.Query.Port)
	assert.Equal(t, []byte("abc"), decoded.Query.Token)
	assert.False(t, decoded.Query.ImpliedPort)
}

func TestAnnouncePeerImpliedPort(t *testing.T) {
	self := mustID(t, 0x88)
	infoHash := mustID(t, 0x99)
	msg := &Message{
		TransactionID: []byte("ff"),
		Query: &Query{
			Method:      AnnouncePeer,
			ID:          self,
			InfoHash:    infoHash,
			ImpliedPort: true,
			Token:       []byte("xyz"),
		},
	}

	raw, err := Encode(msg)
	require.NoError(t, err)

	decoded, err := Decode(raw)
	require.NoError(t, err)
	assert.True(t, decoded.Query.ImpliedPort)
}

func TestErrorRoundTrip(t *testing.T) {
	msg := &Message{
		TransactionID: []byte("gg"),
		Error:         &ProtoError{Code: ErrMethodUnk, Message: "unknown method"},
	}

	raw, err := Encode(msg)
	require.NoError(t, err)

	decoded, err := Decode(raw)
	require.NoError(t, err)
	require.NotNil(t, decoded.Error)
	assert.Equal(t, ErrMethodUnk, decoded.Error.Code)
	assert.Equal(t, "unknown method", decoded.Error.Message)
}

func TestDecodeMissingTransactionID(t *testing.T) {
	_, err := Decode([]byte("d1:q4:ping1:y1:qe"))
	require.Error(t, err)
}

func TestDecodeMissingTransactionIDExact(t *testing.T) {
	_, err := Decode([]byte("d1:y1:qe"))
	require.Error(t, err)
	assert.Equal(t, "krpc: missing transaction id", err.Error())
}

func TestDecodeMissingMessageType(t *testing.T) {
	_, err := Decode([]byte("d1:t2:aae"))
	require.Error(t, err)
	assert.Equal(t, "krpc: missing message type", err.Error())
}

func TestDecodeBadMessageType(t *testing.T) {
	_, err := Decode([]byte("d1:t2:aa1:y1:ze"))
	require.Error(t, err)
	assert.Equal(t, "krpc: bad message type", err.Error())
}

func TestDecodeNotADictionary(t *testing.T) {
	_, err := Decode([]byte("i42e"))
	require.Error(t, err)
}

func TestDecodeCompactNodesThreeRecordsInOrder(t *testing.T) {
	nodes := []Node{
		{ID: mustID(t, 0x01), Addr: Endpoint{IP: net.IPv4(10, 0, 0, 1).To4(), Port: 1}},
		{ID: mustID(t, 0x02), Addr: Endpoint{IP: net.IPv4(10, 0, 0, 2).To4(), Port: 2}},
		{ID: mustID(t, 0x03), Addr: Endpoint{IP: net.IPv4(10, 0, 0, 3).To4(), Port: 3}},
	}
	raw := encodeCompactNodes(nodes)
	require.Len(t, raw, 3*compactNodeLen)

	decoded, err := decodeCompactNodes(raw)
	require.NoError(t, err)
	require.Len(t, decoded, 3)
	for i, n := range nodes {
		assert.Equal(t, n.ID, decoded[i].ID)
		assert.True(t, n.Addr.IP.Equal(decoded[i].Addr.IP))
		assert.Equal(t, n.Addr.Port, decoded[i].Addr.Port)
	}
}

func TestDecodeCompactNodesBadLength(t *testing.T) {
	_, err := decodeCompactNodes("short")
	require.Error(t, err)
	assert.Equal(t, "krpc: nodes field length is not a multiple of 26", err.Error())
}

// TestDecodeLiteralPingWireBytes decodes a hand-written bencode ping query
// instead of one round-tripped through Encode, so the wire format itself
// (not just our own encoder's idea of it) is under test.
func TestDecodeLiteralPingWireBytes(t *testing.T) {
	id := mustID(t, 0x42)
	raw := []byte("d1:ad2:id20:" + string(id.Bytes()) + "e1:q4:ping1:t2:aa1:y1:qe")

	decoded, err := Decode(raw)
	require.NoError(t, err)
	require.NotNil(t, decoded.Query)
	assert.Equal(t, Ping, decoded.Query.Method)
	assert.Equal(t, id, decoded.Query.ID)
	assert.Equal(t, []byte("aa"), decoded.TransactionID)

	reencoded, err := Encode(decoded)
	require.NoError(t, err)

	redecoded, err := Decode(reencoded)
	require.NoError(t, err)
	assert.Equal(t, decoded.Query, redecoded.Query)
	assert.Equal(t, decoded.TransactionID, redecoded.TransactionID)
}
