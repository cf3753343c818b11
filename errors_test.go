package quicwire

import (
	"errors"
	"testing"
)

func TestTransportErrorCodeString(t *testing.T) {

	// testcase describes a test case for [TransportErrorCode.String]
	type testcase struct {
		// code is the code to name
		code TransportErrorCode

		// expect is the expected name
		expect string
	}

	var testcases = []testcase{
		{NoError, "NO_ERROR"},
		{InternalError, "INTERNAL_ERROR"},
		{ConnectionRefused, "CONNECTION_REFUSED"},
		{FlowControlError, "FLOW_CONTROL_ERROR"},
		{StreamLimitError, "STREAM_LIMIT_ERROR"},
		{StreamStateError, "STREAM_STATE_ERROR"},
		{FinalSizeError, "FINAL_SIZE_ERROR"},
		{FrameEncodingError, "FRAME_ENCODING_ERROR"},
		{TransportParameterError, "TRANSPORT_PARAMETER_ERROR"},
		{ConnectionIDLimitError, "CONNECTION_ID_LIMIT_ERROR"},
		{ProtocolViolation, "PROTOCOL_VIOLATION"},
		{InvalidToken, "INVALID_TOKEN"},
		{ApplicationError, "APPLICATION_ERROR"},
		{CryptoBufferExceeded, "CRYPTO_BUFFER_EXCEEDED"},
		{KeyUpdateError, "KEY_UPDATE_ERROR"},

		// codes between the last registered transport error and
		// the crypto error range have no name
		{TransportErrorCode(0x0f), "unknown error"},
		{TransportErrorCode(0xff), "unknown error"},

		// the crypto error range carries an opaque TLS alert
		{CryptoErrorBase, "handshake error"},
		{CryptoErrorBase + 0x28, "handshake error"},
		{TransportErrorCode(0x1ff), "handshake error"},
	}

	for _, tc := range testcases {
		if got := tc.code.String(); got != tc.expect {
			t.Fatalf("expected %q for code %#x, got %q", tc.expect, uint64(tc.code), got)
		}
	}
}

func TestSentinelErrorsAreDistinct(t *testing.T) {
	if errors.Is(newErrDeclined("x"), ErrParse) {
		t.Fatal("declined errors must not match ErrParse")
	}
	if errors.Is(newErrParse("x"), ErrDeclined) {
		t.Fatal("parse errors must not match ErrDeclined")
	}
	if errors.Is(newErrParse("x"), ErrUnsupportedVersion) {
		t.Fatal("parse errors must not match ErrUnsupportedVersion")
	}
}
