package quicwire

//
// Error model and transport error catalog
//

import (
	"errors"
	"fmt"
)

// ErrDeclined means the input is not this codec's to handle: the
// caller may drop the datagram silently or answer with a version
// negotiation packet, but there is nothing to close.
var ErrDeclined = errors.New("quicwire: packet declined")

// newErrDeclined returns a new [ErrDeclined].
func newErrDeclined(message string) error {
	return fmt.Errorf("%w: %s", ErrDeclined, message)
}

// ErrUnsupportedVersion means a long header carried a version we do
// not speak. The invariant header fields have been parsed, so the
// caller can still construct a version negotiation response.
var ErrUnsupportedVersion = errors.New("quicwire: unsupported version")

// ErrParse is the error returned when a frame, an ACK range, or a
// transport-parameter block failed validation. After a frame failure
// the packet descriptor's Error field carries the transport error code
// to close the connection with; [ParseTransportParameters] has no
// descriptor and records no code.
var ErrParse = errors.New("quicwire: parse error")

// newErrParse returns a new [ErrParse].
func newErrParse(message string) error {
	return fmt.Errorf("%w: %s", ErrParse, message)
}

// TransportErrorCode is a QUIC transport error code per RFC 9000
// section 20.1.
type TransportErrorCode uint64

const (
	// NoError signals graceful termination.
	NoError = TransportErrorCode(0x00)

	// InternalError means the endpoint encountered an internal error.
	InternalError = TransportErrorCode(0x01)

	// ConnectionRefused means the server refused the connection.
	ConnectionRefused = TransportErrorCode(0x02)

	// FlowControlError means flow control limits were exceeded.
	FlowControlError = TransportErrorCode(0x03)

	// StreamLimitError means a stream beyond the advertised limit was opened.
	StreamLimitError = TransportErrorCode(0x04)

	// StreamStateError means a frame arrived for a stream in the wrong state.
	StreamStateError = TransportErrorCode(0x05)

	// FinalSizeError means the final size of a stream changed.
	FinalSizeError = TransportErrorCode(0x06)

	// FrameEncodingError means a frame was malformed.
	FrameEncodingError = TransportErrorCode(0x07)

	// TransportParameterError means the transport parameters were invalid.
	TransportParameterError = TransportErrorCode(0x08)

	// ConnectionIDLimitError means too many connection IDs were issued.
	ConnectionIDLimitError = TransportErrorCode(0x09)

	// ProtocolViolation means the peer violated the protocol.
	ProtocolViolation = TransportErrorCode(0x0a)

	// InvalidToken means an Initial carried an invalid token.
	InvalidToken = TransportErrorCode(0x0b)

	// ApplicationError means the application abandoned the handshake.
	ApplicationError = TransportErrorCode(0x0c)

	// CryptoBufferExceeded means too much CRYPTO data was buffered.
	CryptoBufferExceeded = TransportErrorCode(0x0d)

	// KeyUpdateError means a key update could not be performed.
	KeyUpdateError = TransportErrorCode(0x0e)

	// CryptoErrorBase is the first of the 256 codes reserved for
	// carrying TLS alerts; the low byte is the alert code.
	CryptoErrorBase = TransportErrorCode(0x100)
)

// transportErrorNames maps each code below [KeyUpdateError]+1 to its
// registered name, indexed by the code itself.
var transportErrorNames = []string{
	"NO_ERROR",
	"INTERNAL_ERROR",
	"CONNECTION_REFUSED",
	"FLOW_CONTROL_ERROR",
	"STREAM_LIMIT_ERROR",
	"STREAM_STATE_ERROR",
	"FINAL_SIZE_ERROR",
	"FRAME_ENCODING_ERROR",
	"TRANSPORT_PARAMETER_ERROR",
	"CONNECTION_ID_LIMIT_ERROR",
	"PROTOCOL_VIOLATION",
	"INVALID_TOKEN",
	"APPLICATION_ERROR",
	"CRYPTO_BUFFER_EXCEEDED",
	"KEY_UPDATE_ERROR",
}

// String implements fmt.Stringer. Codes at or above
// [CryptoErrorBase] carry an opaque TLS alert and map to a single
// "handshake error" sentinel; unregistered codes below it map to
// "unknown error".
func (code TransportErrorCode) String() string {
	if code >= CryptoErrorBase {
		return "handshake error"
	}
	if code >= TransportErrorCode(len(transportErrorNames)) {
		return "unknown error"
	}
	return transportErrorNames[code]
}
