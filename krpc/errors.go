package krpc

// DecodeError reports a malformed KRPC datagram: a bencoded dictionary that
// failed protocol-level validation (missing or mistyped keys, bad compact
// record widths). It is distinct from ProtoError, which is a peer's own
// y=e report, not a local parse failure.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return "krpc: " + e.Reason
}
