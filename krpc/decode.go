package krpc

import (
	"bytes"
	"fmt"

	"github.com/jackpal/bencode-go"

	"dhtnode/identifier"
)

// Decode parses a raw KRPC datagram into a Message. The dictionary is
// decoded generically (map[string]interface{}) and then walked by hand, so
// every failure mode names the exact missing or malformed field rather than
// a generic unmarshal error.
func Decode(raw []byte) (*Message, error) {
	var v interface{}
	if err := bencode.Unmarshal(bytes.NewReader(raw), &v); err != nil {
		return nil, &DecodeError{Reason: fmt.Sprintf("not a valid bencoded dictionary: %v", err)}
	}
	dict, ok := v.(map[string]interface{})
	if !ok {
		return nil, &DecodeError{Reason: "top-level value is not a dictionary"}
	}

	tv, ok := dict["t"]
	if !ok {
		return nil, &DecodeError{Reason: "missing transaction id"}
	}
	t, ok := tv.(string)
	if !ok {
		return nil, &DecodeError{Reason: "transaction id is not a string"}
	}

	yv, ok := dict["y"]
	if !ok {
		return nil, &DecodeError{Reason: "missing message type"}
	}
	y, ok := yv.(string)
	if !ok {
		return nil, &DecodeError{Reason: "message type is not a string"}
	}

	msg := &Message{TransactionID: []byte(t)}

	switch y {
	case "q":
		q, err := decodeQuery(dict)
		if err != nil {
			return nil, err
		}
		msg.Query = q
	case "r":
		r, err := decodeResponse(dict)
		if err != nil {
			return nil, err
		}
		msg.Response = r
	case "e":
		e, err := decodeProtoError(dict)
		if err != nil {
			return nil, err
		}
		msg.Error = e
	default:
		return nil, &DecodeError{Reason: "bad message type"}
	}

	return msg, nil
}

func decodeQuery(dict map[string]interface{}) (*Query, error) {
	qv, ok := dict["q"]
	if !ok {
		return nil, &DecodeError{Reason: "missing query method"}
	}
	methodName, ok := qv.(string)
	if !ok {
		return nil, &DecodeError{Reason: "query method is not a string"}
	}
	method := Method(methodName)

	av, ok := dict["a"]
	if !ok {
		return nil, &DecodeError{Reason: "missing query arguments"}
	}
	args, ok := av.(map[string]interface{})
	if !ok {
		return nil, &DecodeError{Reason: "query arguments is not a dictionary"}
	}

	id, err := requireID(args, "id")
	if err != nil {
		return nil, err
	}
	q := &Query{Method: method, ID: id}

	switch method {
	case Ping:
		// id only.
	case FindNode:
		target, err := requireID(args, "target")
		if err != nil {
			return nil, err
		}
		q.Target = target
	case GetPeers:
		infoHash, err := requireID(args, "info_hash")
		if err != nil {
			return nil, err
		}
		q.InfoHash = infoHash
	case AnnouncePeer:
		infoHash, err := requireID(args, "info_hash")
		if err != nil {
			return nil, err
		}
		q.InfoHash = infoHash

		if v, ok := args["implied_port"]; ok {
			n, ok := v.(int64)
			if !ok {
				return nil, &DecodeError{Reason: "implied_port is not an integer"}
			}
			q.ImpliedPort = n != 0
		}

		portV, ok := args["port"]
		if !ok && !q.ImpliedPort {
			return nil, &DecodeError{Reason: "missing port"}
		}
		if ok {
			port, ok := portV.(int64)
			if !ok {
				return nil, &DecodeError{Reason: "port is not an integer"}
			}
			q.Port = uint16(port)
		}

		tokenV, ok := args["token"]
		if !ok {
			return nil, &DecodeError{Reason: "missing token"}
		}
		token, ok := tokenV.(string)
		if !ok {
			return nil, &DecodeError{Reason: "token is not a string"}
		}
		q.Token = []byte(token)
	default:
		// An unrecognized method is a well-formed KRPC query, not a
		// decode failure: BEP-5 does not mandate an error reply for
		// it, so it is left to the dispatcher to silently drop.
	}

	return q, nil
}

func decodeResponse(dict map[string]interface{}) (*Response, error) {
	rv, ok := dict["r"]
	if !ok {
		return nil, &DecodeError{Reason: "missing response values"}
	}
	values, ok := rv.(map[string]interface{})
	if !ok {
		return nil, &DecodeError{Reason: "response values is not a dictionary"}
	}

	id, err := requireID(values, "id")
	if err != nil {
		return nil, err
	}
	r := &Response{ID: id}

	if tokenV, ok := values["token"]; ok {
		token, ok := tokenV.(string)
		if !ok {
			return nil, &DecodeError{Reason: "token is not a string"}
		}
		r.Token = []byte(token)
	}

	if valuesV, ok := values["values"]; ok {
		list, ok := valuesV.([]interface{})
		if !ok {
			return nil, &DecodeError{Reason: "values is not a list"}
		}
		peers, err := decodeCompactPeers(list)
		if err != nil {
			return nil, err
		}
		r.Remote.Peers = peers
	} else if nodesV, ok := values["nodes"]; ok {
		raw, ok := nodesV.(string)
		if !ok {
			return nil, &DecodeError{Reason: "nodes is not a string"}
		}
		nodes, err := decodeCompactNodes(raw)
		if err != nil {
			return nil, err
		}
		r.Remote.Nodes = nodes
	}

	return r, nil
}

func decodeProtoError(dict map[string]interface{}) (*ProtoError, error) {
	ev, ok := dict["e"]
	if !ok {
		return nil, &DecodeError{Reason: "missing error body"}
	}
	list, ok := ev.([]interface{})
	if !ok || len(list) != 2 {
		return nil, &DecodeError{Reason: "error body is not a two-element list"}
	}
	code, ok := list[0].(int64)
	if !ok {
		return nil, &DecodeError{Reason: "error code is not an integer"}
	}
	message, ok := list[1].(string)
	if !ok {
		return nil, &DecodeError{Reason: "error message is not a string"}
	}
	return &ProtoError{Code: int(code), Message: message}, nil
}

func requireID(dict map[string]interface{}, key string) (identifier.ID, error) {
	v, ok := dict[key]
	if !ok {
		return identifier.ID{}, &DecodeError{Reason: "missing " + key}
	}
	s, ok := v.(string)
	if !ok || len(s) != identifier.Size {
		return identifier.ID{}, &DecodeError{Reason: "malformed " + key}
	}
	return identifier.FromBytes([]byte(s)), nil
}
