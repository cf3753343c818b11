package quicwire

//
// Data model
//

// Logger is the diagnostic sink used by the codec. Parse failures and
// other anomalies are reported here; they never abort a call beyond
// the error return itself.
type Logger interface {
	// Debugf formats and emits a debug message.
	Debugf(format string, v ...any)

	// Debug emits a debug message.
	Debug(message string)

	// Infof formats and emits an informational message.
	Infof(format string, v ...any)

	// Info emits an informational message.
	Info(message string)

	// Warnf formats and emits a warning message.
	Warnf(format string, v ...any)

	// Warn emits a warning message.
	Warn(message string)
}

// NullLogger is a [Logger] that does not emit logs.
type NullLogger struct{}

// Debug implements Logger
func (nl *NullLogger) Debug(message string) {
	// nothing
}

// Debugf implements Logger
func (nl *NullLogger) Debugf(format string, v ...any) {
	// nothing
}

// Info implements Logger
func (nl *NullLogger) Info(message string) {
	// nothing
}

// Infof implements Logger
func (nl *NullLogger) Infof(format string, v ...any) {
	// nothing
}

// Warn implements Logger
func (nl *NullLogger) Warn(message string) {
	// nothing
}

// Warnf implements Logger
func (nl *NullLogger) Warnf(format string, v ...any) {
	// nothing
}

var _ Logger = &NullLogger{}

// EncryptionLevel identifies the packet-number space and the keys that
// protect a packet. 0-RTT shares the application packet-number space
// but uses its own keys, hence its own level.
type EncryptionLevel int

const (
	// LevelInitial is the Initial encryption level.
	LevelInitial = EncryptionLevel(iota)

	// LevelZeroRTT is the 0-RTT encryption level.
	LevelZeroRTT

	// LevelHandshake is the Handshake encryption level.
	LevelHandshake

	// LevelApplication is the 1-RTT encryption level.
	LevelApplication
)

// String implements fmt.Stringer.
func (lvl EncryptionLevel) String() string {
	switch lvl {
	case LevelInitial:
		return "initial"
	case LevelZeroRTT:
		return "early_data"
	case LevelHandshake:
		return "handshake"
	case LevelApplication:
		return "application"
	default:
		return "unknown"
	}
}

const (
	// MaxConnIDLen is the maximum length of a connection ID.
	MaxConnIDLen = 20

	// MinInitialDatagramSize is the minimum size of a UDP datagram
	// carrying an Initial packet.
	MinInitialDatagramSize = 1200

	// StatelessResetTokenLen is the length of a stateless reset token.
	StatelessResetTokenLen = 16

	// RetryIntegrityTagLen is the length of the Retry integrity tag.
	RetryIntegrityTagLen = 16
)

// First-byte flag bits shared by all QUIC packets.
const (
	// headerFormLong is set on long header packets.
	headerFormLong = 0x80

	// headerFixedBit must be set on every QUIC packet.
	headerFixedBit = 0x40

	// headerLongTypeMask selects the long packet type.
	headerLongTypeMask = 0x30

	// headerPNLenMask encodes the packet number length minus one.
	headerPNLenMask = 0x03
)

// Long packet types for QUIC v1 and the pre-v1 drafts.
const (
	packetTypeInitial   = 0x00
	packetTypeZeroRTT   = 0x01
	packetTypeHandshake = 0x02
	packetTypeRetry     = 0x03
)

// Header describes one QUIC packet. The parse side fills it up to the
// packet-number offset; the protection collaborator completes NumLen
// and PN after removing header protection. On the build side the
// caller populates the fields and uses [Header.AppendHeader].
//
// All byte-slice fields are borrowed: when produced by [ParsePacket]
// they reference the input datagram.
type Header struct {
	// Flags is the first byte of the packet.
	Flags byte

	// Level is the encryption level implied by the packet type.
	Level EncryptionLevel

	// Version is the QUIC version (long headers only).
	Version uint32

	// DCID is the destination connection ID.
	DCID []byte

	// SCID is the source connection ID (long headers only).
	SCID []byte

	// ODCID is the original destination connection ID. Only used
	// when laying out the Retry pseudo-packet.
	ODCID []byte

	// Token is the address validation token (Initial packets only).
	Token []byte

	// NumLen is the on-wire length of the packet number (1..4). The
	// parser cannot know it before header protection is removed; the
	// builder requires it to be set.
	NumLen int

	// TruncPN is the truncated packet number to write when building.
	TruncPN uint32

	// PN is the full packet number. Produced by the protection
	// collaborator after decoding, not by this codec.
	PN uint64

	// PNOffset is the offset of the packet-number region from the
	// start of the packet.
	PNOffset int

	// PacketEnd is the offset one past the last byte of this packet
	// within the datagram. For long headers it is bounded by the
	// Length field; for short headers it is the datagram end.
	PacketEnd int

	// Error is the transport error code recorded by the last failed
	// parse call, for the CONNECTION_CLOSE the connection layer is
	// expected to emit.
	Error TransportErrorCode

	// Log is the OPTIONAL diagnostic sink. A nil Log means quiet.
	Log Logger
}

// logger returns the configured [Logger] or a [NullLogger].
func (h *Header) logger() Logger {
	if h.Log != nil {
		return h.Log
	}
	return &NullLogger{}
}

// Payload is a sequence of byte slices treated as one contiguous
// payload. Builders of data-bearing frames accept a Payload so the
// caller can gather bytes from several buffers without copying them
// together first; the parse side always produces a single-slice
// Payload borrowing the input.
type Payload [][]byte

// Size returns the total number of payload bytes.
func (p Payload) Size() int {
	total := 0
	for _, chunk := range p {
		total += len(chunk)
	}
	return total
}

// appendTo appends all the chunks to b in order.
func (p Payload) appendTo(b []byte) []byte {
	for _, chunk := range p {
		b = append(b, chunk...)
	}
	return b
}
