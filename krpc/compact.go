package krpc

import (
	"encoding/binary"
	"net"

	"dhtnode/identifier"
)

// compactPeerLen is the width of a compact IPv4 endpoint: 4 bytes of IP
// followed by a big-endian port.
const compactPeerLen = 6

// compactNodeLen is the width of a compact node record: a 20-byte
// identifier followed by a compact endpoint.
const compactNodeLen = identifier.Size + compactPeerLen

// Endpoint is an IPv4 address and UDP port, the unit BEP-5 calls a "peer".
type Endpoint struct {
	IP   net.IP
	Port uint16
}

// UDPAddr converts an Endpoint to the standard library's address type.
func (e Endpoint) UDPAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: e.IP, Port: int(e.Port)}
}

// EndpointFromUDPAddr builds an Endpoint from a *net.UDPAddr, forcing the IP
// to its 4-byte form, matching BEP-5's compact node/peer encoding (IPv4
// only, no provision for IPv6 addresses).
func EndpointFromUDPAddr(addr *net.UDPAddr) Endpoint {
	return Endpoint{IP: addr.IP.To4(), Port: uint16(addr.Port)}
}

// Node is a compact node record: an identifier plus its endpoint, as
// returned in find_node/get_peers responses.
type Node struct {
	ID   identifier.ID
	Addr Endpoint
}

func encodeEndpoint(e Endpoint) []byte {
	buf := make([]byte, compactPeerLen)
	ip4 := e.IP.To4()
	copy(buf[0:4], ip4)
	binary.BigEndian.PutUint16(buf[4:6], e.Port)
	return buf
}

func decodeEndpoint(raw []byte) Endpoint {
	ip := net.IPv4(raw[0], raw[1], raw[2], raw[3])
	return Endpoint{IP: ip, Port: binary.BigEndian.Uint16(raw[4:6])}
}

func encodeCompactPeers(peers []Endpoint) []interface{} {
	out := make([]interface{}, len(peers))
	for i, p := range peers {
		out[i] = string(encodeEndpoint(p))
	}
	return out
}

func decodeCompactPeers(values []interface{}) ([]Endpoint, error) {
	out := make([]Endpoint, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok || len(s) != compactPeerLen {
			return nil, &DecodeError{Reason: "malformed compact peer in values"}
		}
		out = append(out, decodeEndpoint([]byte(s)))
	}
	return out, nil
}

func encodeCompactNodes(nodes []Node) string {
	buf := make([]byte, 0, len(nodes)*compactNodeLen)
	for _, n := range nodes {
		buf = append(buf, n.ID.Bytes()...)
		buf = append(buf, encodeEndpoint(n.Addr)...)
	}
	return string(buf)
}

func decodeCompactNodes(raw string) ([]Node, error) {
	if len(raw)%compactNodeLen != 0 {
		return nil, &DecodeError{Reason: "nodes field length is not a multiple of 26"}
	}
	b := []byte(raw)
	out := make([]Node, 0, len(b)/compactNodeLen)
	for i := 0; i < len(b); i += compactNodeLen {
		id := identifier.FromBytes(b[i : i+identifier.Size])
		addr := decodeEndpoint(b[i+identifier.Size : i+compactNodeLen])
		out = append(out, Node{ID: id, Addr: addr})
	}
	return out, nil
}
