package quicwire

//
// Frame codec: taxonomy and parser
//
// References:
//
// - https://www.rfc-editor.org/rfc/rfc9000.html#name-frame-types-and-formats
//
// - https://www.rfc-editor.org/rfc/rfc9000.html#name-frames-and-frame-types (Table 3)
//

import (
	"golang.org/x/crypto/cryptobyte"
)

// Frame type codes per RFC 9000 section 19. STREAM occupies the
// 0x08..0x0f range: the three low bits are the OFF, LEN, and FIN
// flags.
const (
	frameTypePadding            = 0x00
	frameTypePing               = 0x01
	frameTypeAck                = 0x02
	frameTypeAckECN             = 0x03
	frameTypeResetStream        = 0x04
	frameTypeStopSending        = 0x05
	frameTypeCrypto             = 0x06
	frameTypeNewToken           = 0x07
	frameTypeStreamBase         = 0x08
	frameTypeMaxData            = 0x10
	frameTypeMaxStreamData      = 0x11
	frameTypeMaxStreamsBidi     = 0x12
	frameTypeMaxStreamsUni      = 0x13
	frameTypeDataBlocked        = 0x14
	frameTypeStreamDataBlocked  = 0x15
	frameTypeStreamsBlockedBidi = 0x16
	frameTypeStreamsBlockedUni  = 0x17
	frameTypeNewConnectionID    = 0x18
	frameTypeRetireConnectionID = 0x19
	frameTypePathChallenge      = 0x1a
	frameTypePathResponse       = 0x1b
	frameTypeConnectionClose    = 0x1c
	frameTypeConnectionCloseApp = 0x1d
	frameTypeHandshakeDone      = 0x1e
)

// STREAM type flag bits.
const (
	streamBitOff = 0x04
	streamBitLen = 0x02
	streamBitFin = 0x01
)

// Frame is one QUIC frame: either the result of [ParseFrame] or a
// descriptor the caller fills to serialize. Byte-slice fields of
// parsed frames borrow from the parse buffer.
//
// Every frame provides the two-pass builder contract: [Frame.Len]
// returns exactly the number of bytes [Frame.Append] will write.
type Frame interface {
	// Len returns the exact serialized size of the frame.
	Len() int

	// Append appends the serialized frame to b.
	Append(b []byte) ([]byte, error)

	// wireType returns the frame type code this frame serializes
	// with, and seals the interface.
	wireType() uint64
}

// PaddingFrame is a run of PADDING frames. The parser consumes
// consecutive padding bytes greedily and reports them as one frame.
type PaddingFrame struct {
	// Count is the number of padding bytes.
	Count int
}

// PingFrame is a PING frame.
type PingFrame struct{}

// AckFrame is an ACK or ACK_ECN frame. The gap/range pairs are not
// decoded: Ranges borrows the encoded region, whose pairs the loss
// detection layer walks with [ParseAckRange].
type AckFrame struct {
	// Largest is the largest acknowledged packet number.
	Largest uint64

	// Delay is the encoded ACK delay.
	Delay uint64

	// RangeCount is the number of gap/range pairs in Ranges.
	RangeCount uint64

	// FirstRange is the extent of the range ending at Largest.
	FirstRange uint64

	// Ranges is the encoded gap/range pairs region.
	Ranges Payload

	// ECN says whether the ECN counts are present (ACK_ECN).
	ECN bool

	// ECT0, ECT1, and CE are the ECN counts.
	ECT0 uint64
	ECT1 uint64
	CE   uint64
}

// ResetStreamFrame is a RESET_STREAM frame.
type ResetStreamFrame struct {
	// StreamID is the stream being reset.
	StreamID uint64

	// ErrorCode is the application error code.
	ErrorCode uint64

	// FinalSize is the final size of the stream.
	FinalSize uint64
}

// StopSendingFrame is a STOP_SENDING frame.
type StopSendingFrame struct {
	// StreamID is the stream the peer should stop sending on.
	StreamID uint64

	// ErrorCode is the application error code.
	ErrorCode uint64
}

// CryptoFrame is a CRYPTO frame.
type CryptoFrame struct {
	// Offset is the byte offset in the handshake stream.
	Offset uint64

	// Data is the handshake data.
	Data Payload
}

// NewTokenFrame is a NEW_TOKEN frame.
type NewTokenFrame struct {
	// Token is the address validation token.
	Token Payload
}

// StreamFrame is a STREAM frame. A frame parsed without the LEN bit
// extends to the end of the packet payload; the builder always writes
// an explicit length, and writes the offset field iff Offset is
// non-zero.
type StreamFrame struct {
	// StreamID is the stream identifier.
	StreamID uint64

	// Offset is the byte offset in the stream.
	Offset uint64

	// Fin marks the final frame of the stream.
	Fin bool

	// Data is the stream data.
	Data Payload
}

// MaxDataFrame is a MAX_DATA frame.
type MaxDataFrame struct {
	// MaxData is the connection-level data limit.
	MaxData uint64
}

// MaxStreamDataFrame is a MAX_STREAM_DATA frame.
type MaxStreamDataFrame struct {
	// StreamID is the stream the limit applies to.
	StreamID uint64

	// Limit is the stream-level data limit.
	Limit uint64
}

// MaxStreamsFrame is a MAX_STREAMS frame of either directionality.
type MaxStreamsFrame struct {
	// Bidi selects the bidirectional variant.
	Bidi bool

	// Limit is the cumulative stream limit.
	Limit uint64
}

// DataBlockedFrame is a DATA_BLOCKED frame.
type DataBlockedFrame struct {
	// Limit is the connection-level limit we are blocked at.
	Limit uint64
}

// StreamDataBlockedFrame is a STREAM_DATA_BLOCKED frame.
type StreamDataBlockedFrame struct {
	// StreamID is the blocked stream.
	StreamID uint64

	// Limit is the stream-level limit we are blocked at.
	Limit uint64
}

// StreamsBlockedFrame is a STREAMS_BLOCKED frame of either
// directionality.
type StreamsBlockedFrame struct {
	// Bidi selects the bidirectional variant.
	Bidi bool

	// Limit is the stream limit we are blocked at.
	Limit uint64
}

// NewConnectionIDFrame is a NEW_CONNECTION_ID frame.
type NewConnectionIDFrame struct {
	// SequenceNumber is the sequence number of the connection ID.
	SequenceNumber uint64

	// RetirePriorTo asks the peer to retire all connection IDs with
	// a smaller sequence number. Never larger than SequenceNumber.
	RetirePriorTo uint64

	// ConnID is the new connection ID, 1 to 20 bytes.
	ConnID []byte

	// StatelessResetToken is the stateless reset token associated
	// with the connection ID.
	StatelessResetToken [StatelessResetTokenLen]byte
}

// RetireConnectionIDFrame is a RETIRE_CONNECTION_ID frame.
type RetireConnectionIDFrame struct {
	// SequenceNumber is the sequence number being retired.
	SequenceNumber uint64
}

// PathChallengeFrame is a PATH_CHALLENGE frame.
type PathChallengeFrame struct {
	// Data is the opaque challenge payload.
	Data [8]byte
}

// PathResponseFrame is a PATH_RESPONSE frame.
type PathResponseFrame struct {
	// Data echoes the challenge payload.
	Data [8]byte
}

// ConnectionCloseFrame is a CONNECTION_CLOSE frame, either the
// transport (0x1c) or the application (0x1d) variant.
type ConnectionCloseFrame struct {
	// App selects the application variant, which carries no
	// offending frame type.
	App bool

	// ErrorCode is the transport or application error code.
	ErrorCode uint64

	// FrameType is the type of the offending frame (transport
	// variant only).
	FrameType uint64

	// Reason is the human-readable reason phrase.
	Reason []byte
}

// HandshakeDoneFrame is a HANDSHAKE_DONE frame.
type HandshakeDoneFrame struct{}

// frameMasks maps each frame type code to the set of packet types the
// frame may appear in, as a 4-bit mask with bits Initial, Handshake,
// 0-RTT, 1-RTT (RFC 9000 section 12.4, Table 3). NEW_TOKEN and
// HANDSHAKE_DONE flow from server to client only, so a server's
// receive path never accepts them.
var frameMasks = []uint8{
	/* PADDING */               0xf,
	/* PING */                  0xf,
	/* ACK */                   0xd,
	/* ACK_ECN */               0xd,
	/* RESET_STREAM */          0x3,
	/* STOP_SENDING */          0x3,
	/* CRYPTO */                0xd,
	/* NEW_TOKEN */             0x0,
	/* STREAM0 */               0x3,
	/* STREAM1 */               0x3,
	/* STREAM2 */               0x3,
	/* STREAM3 */               0x3,
	/* STREAM4 */               0x3,
	/* STREAM5 */               0x3,
	/* STREAM6 */               0x3,
	/* STREAM7 */               0x3,
	/* MAX_DATA */              0x3,
	/* MAX_STREAM_DATA */       0x3,
	/* MAX_STREAMS_BIDI */      0x3,
	/* MAX_STREAMS_UNI */       0x3,
	/* DATA_BLOCKED */          0x3,
	/* STREAM_DATA_BLOCKED */   0x3,
	/* STREAMS_BLOCKED_BIDI */  0x3,
	/* STREAMS_BLOCKED_UNI */   0x3,
	/* NEW_CONNECTION_ID */     0x3,
	/* RETIRE_CONNECTION_ID */  0x3,
	/* PATH_CHALLENGE */        0x3,
	/* PATH_RESPONSE */         0x3,
	/* CONNECTION_CLOSE */      0xf,
	/* CONNECTION_CLOSE_APP */  0x3,
	/* HANDSHAKE_DONE */        0x0,
}

// levelBit returns the bit a packet of the given level selects in the
// frame permission masks.
func levelBit(lvl EncryptionLevel) uint8 {
	switch lvl {
	case LevelInitial:
		return 8
	case LevelHandshake:
		return 4
	case LevelZeroRTT:
		return 2
	default:
		return 1
	}
}

// frameAllowed says whether a frame of the given type may appear in a
// packet of the given level.
func frameAllowed(lvl EncryptionLevel, frameType uint64) bool {
	return levelBit(lvl)&frameMasks[frameType] != 0
}

// ParseFrame parses the frame at the beginning of data, which must be
// cleartext payload bytes of the packet described by pkt. It returns
// the parsed frame, the number of bytes it consumed, and an error.
//
// On failure pkt.Error records the transport error code to close the
// connection with: PROTOCOL_VIOLATION when the frame type is not
// allowed at the packet's encryption level, FRAME_ENCODING_ERROR for
// anything else.
func ParseFrame(pkt *Header, data []byte) (Frame, int, error) {
	logger := pkt.logger()
	cursor := cryptobyte.String(data)

	var frameType uint64
	if !parseVarint(&cursor, &frameType) {
		pkt.Error = FrameEncodingError
		logger.Info("quicwire: failed to obtain frame type")
		return nil, 0, newErrParse("frame: cannot read type")
	}

	if frameType >= uint64(len(frameMasks)) {
		pkt.Error = FrameEncodingError
		logger.Infof("quicwire: unknown frame type %#x", frameType)
		return nil, 0, newErrParse("frame: unknown type")
	}

	if !frameAllowed(pkt.Level, frameType) {
		pkt.Error = ProtocolViolation
		logger.Infof(
			"quicwire: frame type %#x is not allowed in packet with flags %#x",
			frameType, pkt.Flags,
		)
		return nil, 0, newErrParse("frame: not allowed in this packet type")
	}

	frame, ok := parseFrameBody(frameType, &cursor)
	if !ok {
		pkt.Error = FrameEncodingError
		logger.Infof("quicwire: failed to parse frame type:%#x", frameType)
		return nil, 0, newErrParse("frame: truncated or invalid body")
	}

	return frame, len(data) - len(cursor), nil
}

// parseFrameBody parses the type-specific fields following the frame
// type varint. Returns false when the body is truncated or violates a
// field constraint.
func parseFrameBody(frameType uint64, cursor *cryptobyte.String) (Frame, bool) {
	switch frameType {

	case frameTypePadding:
		count := 1
		for len(*cursor) > 0 && (*cursor)[0] == frameTypePadding {
			cursor.Skip(1)
			count++
		}
		return &PaddingFrame{Count: count}, true

	case frameTypePing:
		return &PingFrame{}, true

	case frameTypeAck, frameTypeAckECN:
		return parseAckBody(frameType, cursor)

	case frameTypeResetStream:
		f := &ResetStreamFrame{}
		ok := parseVarint(cursor, &f.StreamID) &&
			parseVarint(cursor, &f.ErrorCode) &&
			parseVarint(cursor, &f.FinalSize)
		return f, ok

	case frameTypeStopSending:
		f := &StopSendingFrame{}
		ok := parseVarint(cursor, &f.StreamID) &&
			parseVarint(cursor, &f.ErrorCode)
		return f, ok

	case frameTypeCrypto:
		f := &CryptoFrame{}
		var length uint64
		if !parseVarint(cursor, &f.Offset) || !parseVarint(cursor, &length) {
			return nil, false
		}
		if length > uint64(len(*cursor)) {
			return nil, false
		}
		var data []byte
		cursor.ReadBytes(&data, int(length))
		f.Data = Payload{data}
		return f, true

	case frameTypeMaxData:
		f := &MaxDataFrame{}
		return f, parseVarint(cursor, &f.MaxData)

	case frameTypeMaxStreamData:
		f := &MaxStreamDataFrame{}
		ok := parseVarint(cursor, &f.StreamID) &&
			parseVarint(cursor, &f.Limit)
		return f, ok

	case frameTypeMaxStreamsBidi, frameTypeMaxStreamsUni:
		f := &MaxStreamsFrame{Bidi: frameType == frameTypeMaxStreamsBidi}
		return f, parseVarint(cursor, &f.Limit)

	case frameTypeDataBlocked:
		f := &DataBlockedFrame{}
		return f, parseVarint(cursor, &f.Limit)

	case frameTypeStreamDataBlocked:
		f := &StreamDataBlockedFrame{}
		ok := parseVarint(cursor, &f.StreamID) &&
			parseVarint(cursor, &f.Limit)
		return f, ok

	case frameTypeStreamsBlockedBidi, frameTypeStreamsBlockedUni:
		f := &StreamsBlockedFrame{Bidi: frameType == frameTypeStreamsBlockedBidi}
		return f, parseVarint(cursor, &f.Limit)

	case frameTypeNewConnectionID:
		return parseNewConnectionIDBody(cursor)

	case frameTypeRetireConnectionID:
		f := &RetireConnectionIDFrame{}
		return f, parseVarint(cursor, &f.SequenceNumber)

	case frameTypePathChallenge:
		f := &PathChallengeFrame{}
		return f, cursor.CopyBytes(f.Data[:])

	case frameTypePathResponse:
		f := &PathResponseFrame{}
		return f, cursor.CopyBytes(f.Data[:])

	case frameTypeConnectionClose, frameTypeConnectionCloseApp:
		f := &ConnectionCloseFrame{App: frameType == frameTypeConnectionCloseApp}
		if !parseVarint(cursor, &f.ErrorCode) {
			return nil, false
		}
		if !f.App && !parseVarint(cursor, &f.FrameType) {
			return nil, false
		}
		var reasonLen uint64
		if !parseVarint(cursor, &reasonLen) {
			return nil, false
		}
		if reasonLen > uint64(len(*cursor)) {
			return nil, false
		}
		cursor.ReadBytes(&f.Reason, int(reasonLen))
		return f, true

	case frameTypeHandshakeDone:
		return &HandshakeDoneFrame{}, true

	default:
		// STREAM occupies 0x08..0x0f
		return parseStreamBody(frameType, cursor)
	}
}

// parseAckBody parses the fields of an ACK or ACK_ECN frame. The
// gap/range pairs are walked only to find their bounds; their values
// are kept encoded for [ParseAckRange].
func parseAckBody(frameType uint64, cursor *cryptobyte.String) (Frame, bool) {
	f := &AckFrame{ECN: frameType == frameTypeAckECN}

	ok := parseVarint(cursor, &f.Largest) &&
		parseVarint(cursor, &f.Delay) &&
		parseVarint(cursor, &f.RangeCount) &&
		parseVarint(cursor, &f.FirstRange)
	if !ok {
		return nil, false
	}

	rangesStart := *cursor
	var ignored uint64
	for i := uint64(0); i < f.RangeCount; i++ {
		if !parseVarint(cursor, &ignored) || !parseVarint(cursor, &ignored) {
			return nil, false
		}
	}
	f.Ranges = Payload{rangesStart[:len(rangesStart)-len(*cursor)]}

	if f.ECN {
		ok := parseVarint(cursor, &f.ECT0) &&
			parseVarint(cursor, &f.ECT1) &&
			parseVarint(cursor, &f.CE)
		if !ok {
			return nil, false
		}
	}

	return f, true
}

// parseNewConnectionIDBody parses the fields of a NEW_CONNECTION_ID
// frame, enforcing retire_prior_to <= sequence_number and the 1..20
// connection ID length bounds.
func parseNewConnectionIDBody(cursor *cryptobyte.String) (Frame, bool) {
	f := &NewConnectionIDFrame{}

	if !parseVarint(cursor, &f.SequenceNumber) {
		return nil, false
	}
	if !parseVarint(cursor, &f.RetirePriorTo) {
		return nil, false
	}
	if f.RetirePriorTo > f.SequenceNumber {
		return nil, false
	}

	var cidLen uint8
	if !cursor.ReadUint8(&cidLen) {
		return nil, false
	}
	if cidLen < 1 || cidLen > MaxConnIDLen {
		return nil, false
	}
	if !cursor.ReadBytes(&f.ConnID, int(cidLen)) {
		return nil, false
	}

	return f, cursor.CopyBytes(f.StatelessResetToken[:])
}

// parseStreamBody parses the fields of a STREAM frame. The three low
// bits of the type say whether the offset and length fields are
// present and whether the frame ends the stream; an absent length
// means the data extends to the end of the packet payload.
func parseStreamBody(frameType uint64, cursor *cryptobyte.String) (Frame, bool) {
	if frameType < frameTypeStreamBase || frameType > frameTypeStreamBase|0x07 {
		return nil, false
	}

	f := &StreamFrame{Fin: frameType&streamBitFin != 0}

	if !parseVarint(cursor, &f.StreamID) {
		return nil, false
	}

	if frameType&streamBitOff != 0 {
		if !parseVarint(cursor, &f.Offset) {
			return nil, false
		}
	}

	var length uint64
	if frameType&streamBitLen != 0 {
		if !parseVarint(cursor, &length) {
			return nil, false
		}
		if length > uint64(len(*cursor)) {
			return nil, false
		}
	} else {
		length = uint64(len(*cursor)) // up to packet end
	}

	var data []byte
	cursor.ReadBytes(&data, int(length))
	f.Data = Payload{data}
	return f, true
}

// EachFrame parses the cleartext packet payload as a sequence of
// frames, invoking fn for each one until the payload is exhausted, a
// frame fails to parse, or fn returns an error. Once a frame fails,
// the whole packet is condemned: there is no partial recovery.
func EachFrame(pkt *Header, payload []byte, fn func(Frame) error) error {
	for offset := 0; offset < len(payload); {
		frame, consumed, err := ParseFrame(pkt, payload[offset:])
		if err != nil {
			return err
		}
		offset += consumed
		if err := fn(frame); err != nil {
			return err
		}
	}
	return nil
}

// ParseAckRange parses one gap/range pair off the front of an ACK
// frame's Ranges region, returning the two values, the number of
// bytes consumed, and an error on truncation. The loss detection
// layer calls this repeatedly, RangeCount times.
func ParseAckRange(logger Logger, data []byte) (gap uint64, rnge uint64, consumed int, err error) {
	if logger == nil {
		logger = &NullLogger{}
	}
	cursor := cryptobyte.String(data)

	if !parseVarint(&cursor, &gap) {
		logger.Info("quicwire: failed to parse ack frame gap")
		return 0, 0, 0, newErrParse("ack range: cannot read gap")
	}
	if !parseVarint(&cursor, &rnge) {
		logger.Info("quicwire: failed to parse ack frame range")
		return 0, 0, 0, newErrParse("ack range: cannot read range")
	}

	return gap, rnge, len(data) - len(cursor), nil
}

// IsAckEliciting says whether a sent frame obligates the peer to
// acknowledge the containing packet. All frames other than ACK,
// PADDING, and CONNECTION_CLOSE are ack-eliciting.
func IsAckEliciting(frame Frame) bool {
	switch frame.(type) {
	case *AckFrame, *PaddingFrame, *ConnectionCloseFrame:
		return false
	default:
		return true
	}
}
