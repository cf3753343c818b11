package quicwire

//
// Variable-length integer codec
//
// References:
//
// - https://www.rfc-editor.org/rfc/rfc9000.html#name-variable-length-integer-enc
//

import (
	"github.com/quic-go/quic-go/quicvarint"
	"golang.org/x/crypto/cryptobyte"
)

// maxVarint is the largest value a QUIC varint can carry.
const maxVarint = (1 << 62) - 1

// parseVarint reads a QUIC variable-length integer off the cursor and
// stores it into value. The top two bits of the first byte select the
// 1, 2, 4, or 8 byte form; the remaining bits are the value in network
// byte order. Non-minimal encodings are accepted: the decoder returns
// the carried value regardless of the length class the sender chose.
//
// Returns false without reading past the end of the cursor when the
// encoding is truncated.
func parseVarint(cursor *cryptobyte.String, value *uint64) bool {
	var first uint8
	if !cursor.ReadUint8(&first) {
		return false
	}
	length := 1 << (first >> 6)
	v := uint64(first & 0x3f)
	var rest []byte
	if !cursor.ReadBytes(&rest, length-1) {
		return false
	}
	for _, octet := range rest {
		v = v<<8 | uint64(octet)
	}
	*value = v
	return true
}

// varintLen returns the number of bytes the minimal encoding of value
// occupies on the wire: the smallest L in {1, 2, 4, 8} such that value
// fits in 8L-2 bits.
func varintLen(value uint64) int {
	return int(quicvarint.Len(value))
}

// appendVarint appends the minimal encoding of value to b.
func appendVarint(b []byte, value uint64) []byte {
	return quicvarint.Append(b, value)
}

// appendPacketNumber appends the truncated packet number using numLen
// bytes in network byte order. numLen must be in 1..4; the packet
// number encoding is fixed-width, not a varint.
func appendPacketNumber(b []byte, truncPN uint32, numLen int) []byte {
	for i := numLen - 1; i >= 0; i-- {
		b = append(b, byte(truncPN>>(i*8)))
	}
	return b
}
