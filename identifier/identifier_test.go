package identifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func idOf(b byte) ID {
	var raw [Size]byte
	for i := range raw {
		raw[i] = b
	}
	return FromBytes(raw[:])
}

func TestRandomDistinct(t *testing.T) {
	a, err := Random()
	require.NoError(t, err)
	b, err := Random()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestCompare(t *testing.T) {
	low := idOf(0x01)
	high := idOf(0x02)

	assert.Equal(t, Less, low.Compare(high))
	assert.Equal(t, Greater, high.Compare(low))
	assert.Equal(t, Equal, low.Compare(low))
}

func TestEqual(t *testing.T) {
	a := idOf(0x10)
	b := idOf(0x10)
	c := idOf(0x11)

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestXORSelfIsZero(t *testing.T) {
	a := idOf(0x42)
	assert.Equal(t, Min, XOR(a, a))
}

func TestXORSymmetric(t *testing.T) {
	a := idOf(0x0F)
	b := idOf(0xF0)
	assert.Equal(t, XOR(a, b), XOR(b, a))
}

func TestMidBetweenMinAndMax(t *testing.T) {
	mid := Mid(Min, Max)
	assert.Equal(t, Less, Min.Compare(mid))
	assert.Equal(t, Less, mid.Compare(Max))
}

func TestMidIsMidpoint(t *testing.T) {
	a := idOf(0x00)
	b := idOf(0x10)
	mid := Mid(a, b)
	assert.Equal(t, idOf(0x08), mid)
}

func TestFromBytesPanicsOnWrongLength(t *testing.T) {
	assert.Panics(t, func() {
		FromBytes([]byte{1, 2, 3})
	})
}

func TestStringIsHex(t *testing.T) {
	id := idOf(0xAB)
	s := id.String()
	assert.Len(t, s, Size*2)
}
