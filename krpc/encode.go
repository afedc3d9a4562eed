package krpc

import (
	"bytes"
	"fmt"

	"github.com/jackpal/bencode-go"
)

// Encode renders a Message as a bencoded KRPC datagram.
func Encode(m *Message) ([]byte, error) {
	dict := map[string]interface{}{
		"t": string(m.TransactionID),
	}

	switch {
	case m.Query != nil:
		dict["y"] = "q"
		dict["q"] = string(m.Query.Method)
		dict["a"] = encodeQueryArgs(m.Query)
	case m.Response != nil:
		dict["y"] = "r"
		dict["r"] = encodeResponseValues(m.Response)
	case m.Error != nil:
		dict["y"] = "e"
		dict["e"] = []interface{}{int64(m.Error.Code), m.Error.Message}
	default:
		return nil, fmt.Errorf("krpc: message has no query, response, or error body")
	}

	var buf bytes.Buffer
	if err := bencode.Marshal(&buf, dict); err != nil {
		return nil, fmt.Errorf("krpc: encode: %w", err)
	}
	return buf.Bytes(), nil
}

func encodeQueryArgs(q *Query) map[string]interface{} {
	args := map[string]interface{}{
		"id": string(q.ID.Bytes()),
	}
	switch q.Method {
	case FindNode:
		args["target"] = string(q.Target.Bytes())
	case GetPeers:
		args["info_hash"] = string(q.InfoHash.Bytes())
	case AnnouncePeer:
		args["info_hash"] = string(q.InfoHash.Bytes())
		args["port"] = int64(q.Port)
		if q.ImpliedPort {
			args["implied_port"] = int64(1)
		}
		args["token"] = string(q.Token)
	}
	return args
}

func encodeResponseValues(r *Response) map[string]interface{} {
	values := map[string]interface{}{
		"id": string(r.ID.Bytes()),
	}
	if len(r.Token) > 0 {
		values["token"] = string(r.Token)
	}
	if len(r.Remote.Peers) > 0 {
		values["values"] = encodeCompactPeers(r.Remote.Peers)
	}
	if len(r.Remote.Nodes) > 0 {
		values["nodes"] = encodeCompactNodes(r.Remote.Nodes)
	}
	return values
}
