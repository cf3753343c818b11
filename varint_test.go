package quicwire

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/quic-go/quic-go/quicvarint"
	"golang.org/x/crypto/cryptobyte"
)

func TestParseVarint(t *testing.T) {

	// testcase describes a test case for [parseVarint]
	type testcase struct {
		// name is the name of this test case
		name string

		// input contains the bytes to decode
		input []byte

		// expectOK is the expected success flag
		expectOK bool

		// expectValue is the expected decoded value
		expectValue uint64

		// expectRest is the expected number of unread bytes
		expectRest int
	}

	var testcases = []testcase{{
		name:        "with the eight-byte example from RFC 9000 appendix A.1",
		input:       []byte{0xc2, 0x19, 0x7c, 0x5e, 0xff, 0x14, 0xe8, 0x8c},
		expectOK:    true,
		expectValue: 151288809941952652,
		expectRest:  0,
	}, {
		name:        "with the four-byte example from RFC 9000 appendix A.1",
		input:       []byte{0x9d, 0x7f, 0x3e, 0x7d},
		expectOK:    true,
		expectValue: 494878333,
		expectRest:  0,
	}, {
		name:        "with the two-byte example from RFC 9000 appendix A.1",
		input:       []byte{0x7b, 0xbd},
		expectOK:    true,
		expectValue: 15293,
		expectRest:  0,
	}, {
		name:        "with a single-byte value",
		input:       []byte{0x25},
		expectOK:    true,
		expectValue: 37,
		expectRest:  0,
	}, {
		name:        "with a non-minimal two-byte encoding",
		input:       []byte{0x40, 0x25},
		expectOK:    true,
		expectValue: 37,
		expectRest:  0,
	}, {
		name:        "with a non-minimal four-byte encoding",
		input:       []byte{0x80, 0x00, 0x00, 0x25},
		expectOK:    true,
		expectValue: 37,
		expectRest:  0,
	}, {
		name:        "with a non-minimal eight-byte encoding",
		input:       []byte{0xc0, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x25},
		expectOK:    true,
		expectValue: 37,
		expectRest:  0,
	}, {
		name:        "with trailing bytes left unread",
		input:       []byte{0x25, 0xaa, 0xbb},
		expectOK:    true,
		expectValue: 37,
		expectRest:  2,
	}, {
		name:     "with an empty input",
		input:    []byte{},
		expectOK: false,
	}, {
		name:     "with a truncated two-byte encoding",
		input:    []byte{0x7b},
		expectOK: false,
	}, {
		name:     "with a truncated four-byte encoding",
		input:    []byte{0x9d, 0x7f, 0x3e},
		expectOK: false,
	}, {
		name:     "with a truncated eight-byte encoding",
		input:    []byte{0xc2, 0x19, 0x7c, 0x5e, 0xff, 0x14, 0xe8},
		expectOK: false,
	}}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			cursor := cryptobyte.String(tc.input)
			var value uint64
			ok := parseVarint(&cursor, &value)
			if ok != tc.expectOK {
				t.Fatal("expected ok to be", tc.expectOK, "got", ok)
			}
			if !tc.expectOK {
				return
			}
			if value != tc.expectValue {
				t.Fatal("expected value", tc.expectValue, "got", value)
			}
			if len(cursor) != tc.expectRest {
				t.Fatal("expected", tc.expectRest, "unread bytes, got", len(cursor))
			}
		})
	}
}

func TestVarintRoundTrip(t *testing.T) {
	values := []uint64{
		0, 1, 37, 63,
		64, 15293, 16383,
		16384, 494878333, 1073741823,
		1073741824, 151288809941952652, maxVarint,
	}

	for _, value := range values {
		encoded := appendVarint(nil, value)

		if len(encoded) != varintLen(value) {
			t.Fatal("varintLen disagrees with appendVarint for", value)
		}

		cursor := cryptobyte.String(encoded)
		var decoded uint64
		if !parseVarint(&cursor, &decoded) {
			t.Fatal("cannot decode the encoding of", value)
		}
		if decoded != value {
			t.Fatal("expected", value, "got", decoded)
		}
		if len(cursor) != 0 {
			t.Fatal("expected the decoder to consume the whole encoding of", value)
		}
	}
}

// TestVarintAgainstQuicGo cross-checks the decoder against the
// quic-go implementation the rest of the ecosystem uses: both must
// agree on every encoding quicvarint produces.
func TestVarintAgainstQuicGo(t *testing.T) {
	values := []uint64{
		0, 1, 37, 63, 64, 16383, 16384,
		1073741823, 1073741824, maxVarint,
	}

	for _, value := range values {
		encoded := quicvarint.Append(nil, value)

		cursor := cryptobyte.String(encoded)
		var ours uint64
		if !parseVarint(&cursor, &ours) {
			t.Fatal("cannot decode the quicvarint encoding of", value)
		}
		if ours != value {
			t.Fatal("expected", value, "got", ours)
		}

		theirs, err := quicvarint.Read(bytes.NewReader(encoded))
		if err != nil {
			t.Fatal(err)
		}
		if ours != theirs {
			t.Fatal("decoder disagrees with quicvarint for", value)
		}
	}
}

func TestAppendPacketNumber(t *testing.T) {

	// testcase describes a test case for [appendPacketNumber]
	type testcase struct {
		// truncPN is the truncated packet number to write
		truncPN uint32

		// numLen is the number of bytes to use
		numLen int

		// expect contains the expected bytes
		expect []byte
	}

	var testcases = []testcase{{
		truncPN: 0x01,
		numLen:  1,
		expect:  []byte{0x01},
	}, {
		truncPN: 0x0102,
		numLen:  2,
		expect:  []byte{0x01, 0x02},
	}, {
		truncPN: 0x010203,
		numLen:  3,
		expect:  []byte{0x01, 0x02, 0x03},
	}, {
		truncPN: 0x01020304,
		numLen:  4,
		expect:  []byte{0x01, 0x02, 0x03, 0x04},
	}}

	for _, tc := range testcases {
		got := appendPacketNumber(nil, tc.truncPN, tc.numLen)
		if diff := cmp.Diff(tc.expect, got); diff != "" {
			t.Fatal(diff)
		}
	}
}
