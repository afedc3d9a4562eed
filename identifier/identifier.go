// Package identifier implements the 160-bit node/content identifiers used
// throughout the DHT: XOR distance, byte-lexicographic ordering, and the
// range midpoint used by bucket splitting.
package identifier

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"math/big"
)

// Size is the width of an identifier in bytes (160 bits).
const Size = 20

// ID is an immutable 160-bit big-endian identifier.
type ID [Size]byte

// Min is the all-zero identifier.
var Min = ID{}

// Max is the all-ones identifier.
var Max = func() ID {
	var id ID
	for i := range id {
		id[i] = 0xFF
	}
	return id
}()

// Ordering is the result of comparing two identifiers.
type Ordering int

const (
	Less Ordering = iota - 1
	Equal
	Greater
)

// Random returns a uniformly random identifier.
func Random() (ID, error) {
	var id ID
	if _, err := rand.Read(id[:]); err != nil {
		return ID{}, err
	}
	return id, nil
}

// Compare returns the byte-lexicographic order of id and other, treating
// bytes as unsigned (which []byte already is in Go).
func (id ID) Compare(other ID) Ordering {
	switch bytes.Compare(id[:], other[:]) {
	case -1:
		return Less
	case 1:
		return Greater
	default:
		return Equal
	}
}

// Equal reports whether id and other are the same identifier.
func (id ID) Equal(other ID) bool {
	return id == other
}

// String renders the identifier as lowercase hex.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// Bytes returns the raw 20-byte big-endian representation.
func (id ID) Bytes() []byte {
	return id[:]
}

// FromBytes copies exactly Size bytes into an ID. It panics if b is the
// wrong length; callers at system boundaries (the KRPC codec) must check
// len(b) == Size themselves and turn a mismatch into a decode error.
func FromBytes(b []byte) ID {
	if len(b) != Size {
		panic("identifier: FromBytes requires exactly 20 bytes")
	}
	var id ID
	copy(id[:], b)
	return id
}

// XOR returns the bitwise XOR of a and b, i.e. the Kademlia distance metric.
func XOR(a, b ID) ID {
	var out ID
	for i := range out {
		out[i] = a[i] ^ b[i]
	}
	return out
}

// Mid returns the arithmetic mean of a and b, computed as the 161-bit sum
// a+b right-shifted by one bit. Requires a <= b for the bucket-splitting
// invariant a <= mid(a,b) <= b to hold, but the arithmetic itself is
// well-defined for any a, b.
func Mid(a, b ID) ID {
	sum := new(big.Int).Add(new(big.Int).SetBytes(a[:]), new(big.Int).SetBytes(b[:]))
	sum.Rsh(sum, 1)
	return fromBig(sum)
}

// fromBig left-pads v's big-endian bytes to Size. v must fit in 160 bits.
func fromBig(v *big.Int) ID {
	var id ID
	b := v.Bytes()
	copy(id[Size-len(b):], b)
	return id
}

// HighestSetBit returns the index of the most significant set bit, 0 meaning
// the least significant bit of the last byte. It returns (0, false) for the
// zero identifier.
//
// The Rust implementation this is ported from (dht_rs) calls this function
// "lowest_bit" despite it returning the highest set bit index; the name is
// kept here only as a one-line historical note, not propagated to this
// (correctly named) implementation. It is not used by the range-based
// routing table: that table splits on arithmetic midpoints, not bit
// prefixes, so this is vestigial — retained because a previous trie-based
// design needed it and might again.
func (id ID) HighestSetBit() (int, bool) {
	for i := 0; i < Size; i++ {
		b := id[i]
		if b == 0 {
			continue
		}
		bit := 7
		for (b>>uint(bit))&1 == 0 {
			bit--
		}
		return (Size-1-i)*8 + bit, true
	}
	return 0, false
}
