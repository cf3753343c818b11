package quicwire

//
// Transport parameters codec
//
// References:
//
// - https://www.rfc-editor.org/rfc/rfc9000.html#name-transport-parameter-encodin
//
// - https://www.iana.org/assignments/quic/quic.xhtml
//

import (
	"golang.org/x/crypto/cryptobyte"
)

// Transport parameter IDs from the IANA registry.
const (
	tpOriginalDCID                   = 0x00
	tpMaxIdleTimeout                 = 0x01
	tpStatelessResetToken            = 0x02
	tpMaxUDPPayloadSize              = 0x03
	tpInitialMaxData                 = 0x04
	tpInitialMaxStreamDataBidiLocal  = 0x05
	tpInitialMaxStreamDataBidiRemote = 0x06
	tpInitialMaxStreamDataUni        = 0x07
	tpInitialMaxStreamsBidi          = 0x08
	tpInitialMaxStreamsUni           = 0x09
	tpAckDelayExponent               = 0x0a
	tpMaxAckDelay                    = 0x0b
	tpDisableActiveMigration         = 0x0c
	tpPreferredAddress               = 0x0d
	tpActiveConnectionIDLimit        = 0x0e
	tpInitialSCID                    = 0x0f
	tpRetrySCID                      = 0x10
)

// TransportParameters is the decoded (or to-be-encoded) content of
// the quic_transport_parameters TLS extension. The zero value is a
// valid, empty parameter set.
//
// The connection-ID-shaped fields are opaque byte strings; when
// produced by [ParseTransportParameters] they borrow from the input.
type TransportParameters struct {
	// OriginalDCID is the original destination connection ID
	// (server-to-client only).
	OriginalDCID []byte

	// MaxIdleTimeout is the idle timeout in milliseconds.
	MaxIdleTimeout uint64

	// StatelessResetToken is the stateless reset token
	// (server-to-client only).
	StatelessResetToken [StatelessResetTokenLen]byte

	// MaxUDPPayloadSize is the largest UDP payload the endpoint
	// is willing to receive.
	MaxUDPPayloadSize uint64

	// InitialMaxData is the initial connection-level flow
	// control limit.
	InitialMaxData uint64

	// InitialMaxStreamDataBidiLocal is the initial flow control
	// limit for locally-initiated bidirectional streams.
	InitialMaxStreamDataBidiLocal uint64

	// InitialMaxStreamDataBidiRemote is the initial flow control
	// limit for peer-initiated bidirectional streams.
	InitialMaxStreamDataBidiRemote uint64

	// InitialMaxStreamDataUni is the initial flow control limit
	// for unidirectional streams.
	InitialMaxStreamDataUni uint64

	// InitialMaxStreamsBidi is the initial bidirectional stream limit.
	InitialMaxStreamsBidi uint64

	// InitialMaxStreamsUni is the initial unidirectional stream limit.
	InitialMaxStreamsUni uint64

	// AckDelayExponent is the exponent used to encode ACK delays.
	AckDelayExponent uint64

	// MaxAckDelay is the maximum ACK delay in milliseconds.
	MaxAckDelay uint64

	// DisableActiveMigration is encoded as a zero-length parameter
	// present iff true.
	DisableActiveMigration bool

	// ActiveConnectionIDLimit is the number of connection IDs the
	// endpoint is willing to store.
	ActiveConnectionIDLimit uint64

	// InitialSCID is the source connection ID of the first Initial.
	InitialSCID []byte

	// RetrySCID is the source connection ID of the Retry packet
	// (server-to-client only, emitted iff non-empty).
	RetrySCID []byte
}

// ParseTransportParameters parses the server-side receive direction
// of the transport parameters extension into tp. Parameters the
// protocol reserves for the server to send — original_dcid,
// preferred_address, retry_scid, stateless_reset_token — are rejected
// outright; unknown IDs are skipped and logged. Any failure here
// warrants closing the connection with TRANSPORT_PARAMETER_ERROR.
func ParseTransportParameters(data []byte, tp *TransportParameters, logger Logger) error {
	if logger == nil {
		logger = &NullLogger{}
	}
	cursor := cryptobyte.String(data)

	for len(cursor) > 0 {
		var id uint64
		if !parseVarint(&cursor, &id) {
			logger.Info("quicwire: failed to parse transport param id")
			return newErrParse("transport params: cannot read id")
		}

		switch id {
		case tpOriginalDCID, tpPreferredAddress, tpRetrySCID, tpStatelessResetToken:
			logger.Infof("quicwire: client sent forbidden transport param id:%#x", id)
			return newErrParse("transport params: peer-forbidden id")
		}

		var length uint64
		if !parseVarint(&cursor, &length) {
			logger.Infof("quicwire: failed to parse transport param id:%#x length", id)
			return newErrParse("transport params: cannot read length")
		}
		if length > uint64(len(cursor)) {
			logger.Infof("quicwire: failed to parse transport param id:%#x data", id)
			return newErrParse("transport params: value exceeds buffer")
		}
		var value []byte
		cursor.ReadBytes(&value, int(length))

		if !tp.setParam(id, value, logger) {
			logger.Infof("quicwire: failed to parse transport param id:%#x data", id)
			return newErrParse("transport params: invalid value")
		}
	}

	logger.Debug("quicwire: transport parameters parsed ok")
	return nil
}

// setParam assigns one decoded parameter value. Unknown IDs are
// logged and skipped so that future extensions keep interoperating.
func (tp *TransportParameters) setParam(id uint64, value []byte, logger Logger) bool {
	switch id {
	case tpDisableActiveMigration:
		// zero-length parameter
		if len(value) != 0 {
			return false
		}
		tp.DisableActiveMigration = true
		return true

	case tpInitialSCID:
		tp.InitialSCID = value
		return true

	case tpMaxIdleTimeout,
		tpMaxUDPPayloadSize,
		tpInitialMaxData,
		tpInitialMaxStreamDataBidiLocal,
		tpInitialMaxStreamDataBidiRemote,
		tpInitialMaxStreamDataUni,
		tpInitialMaxStreamsBidi,
		tpInitialMaxStreamsUni,
		tpAckDelayExponent,
		tpMaxAckDelay,
		tpActiveConnectionIDLimit:
		cursor := cryptobyte.String(value)
		var varint uint64
		if !parseVarint(&cursor, &varint) {
			return false
		}
		tp.assignVarint(id, varint)
		return true

	default:
		logger.Infof("quicwire: unknown transport param id:%#x, skipped", id)
		return true
	}
}

// assignVarint stores a decoded scalar parameter into its field.
func (tp *TransportParameters) assignVarint(id uint64, varint uint64) {
	switch id {
	case tpMaxIdleTimeout:
		tp.MaxIdleTimeout = varint
	case tpMaxUDPPayloadSize:
		tp.MaxUDPPayloadSize = varint
	case tpInitialMaxData:
		tp.InitialMaxData = varint
	case tpInitialMaxStreamDataBidiLocal:
		tp.InitialMaxStreamDataBidiLocal = varint
	case tpInitialMaxStreamDataBidiRemote:
		tp.InitialMaxStreamDataBidiRemote = varint
	case tpInitialMaxStreamDataUni:
		tp.InitialMaxStreamDataUni = varint
	case tpInitialMaxStreamsBidi:
		tp.InitialMaxStreamsBidi = varint
	case tpInitialMaxStreamsUni:
		tp.InitialMaxStreamsUni = varint
	case tpAckDelayExponent:
		tp.AckDelayExponent = varint
	case tpMaxAckDelay:
		tp.MaxAckDelay = varint
	case tpActiveConnectionIDLimit:
		tp.ActiveConnectionIDLimit = varint
	}
}

// varintParamLen returns the encoded size of a scalar parameter.
func varintParamLen(id uint64, value uint64) int {
	return varintLen(id) + varintLen(uint64(varintLen(value))) + varintLen(value)
}

// appendVarintParam appends one scalar parameter.
func appendVarintParam(b []byte, id uint64, value uint64) []byte {
	b = appendVarint(b, id)
	b = appendVarint(b, uint64(varintLen(value)))
	b = appendVarint(b, value)
	return b
}

// opaqueParamLen returns the encoded size of an opaque parameter.
func opaqueParamLen(id uint64, value []byte) int {
	return varintLen(id) + varintLen(uint64(len(value))) + len(value)
}

// appendOpaqueParam appends one opaque parameter.
func appendOpaqueParam(b []byte, id uint64, value []byte) []byte {
	b = appendVarint(b, id)
	b = appendVarint(b, uint64(len(value)))
	b = append(b, value...)
	return b
}

// PrefixLen returns the encoded size of the always-emitted prefix:
// the initial flow control limits and the idle timeout. Before
// negotiation completes a server can size buffers for these alone,
// as the remaining parameters depend on handshake outcomes.
func (tp *TransportParameters) PrefixLen() int {
	return varintParamLen(tpInitialMaxData, tp.InitialMaxData) +
		varintParamLen(tpInitialMaxStreamsUni, tp.InitialMaxStreamsUni) +
		varintParamLen(tpInitialMaxStreamsBidi, tp.InitialMaxStreamsBidi) +
		varintParamLen(tpInitialMaxStreamDataBidiLocal, tp.InitialMaxStreamDataBidiLocal) +
		varintParamLen(tpInitialMaxStreamDataBidiRemote, tp.InitialMaxStreamDataBidiRemote) +
		varintParamLen(tpInitialMaxStreamDataUni, tp.InitialMaxStreamDataUni) +
		varintParamLen(tpMaxIdleTimeout, tp.MaxIdleTimeout)
}

// Len returns the exact number of bytes [TransportParameters.Append]
// writes.
func (tp *TransportParameters) Len() int {
	size := tp.PrefixLen()
	if tp.DisableActiveMigration {
		size += varintLen(tpDisableActiveMigration) + varintLen(0)
	}
	size += varintParamLen(tpActiveConnectionIDLimit, tp.ActiveConnectionIDLimit)
	size += opaqueParamLen(tpOriginalDCID, tp.OriginalDCID)
	size += opaqueParamLen(tpInitialSCID, tp.InitialSCID)
	if len(tp.RetrySCID) > 0 {
		size += opaqueParamLen(tpRetrySCID, tp.RetrySCID)
	}
	size += varintLen(tpStatelessResetToken) +
		varintLen(StatelessResetTokenLen) + StatelessResetTokenLen
	return size
}

// Append appends the server-side encoding of the parameter set to b:
// the seven always-emitted limits, disable_active_migration iff set,
// the active connection ID limit, the original and initial connection
// IDs, the retry connection ID iff a Retry was sent, and the
// stateless reset token.
func (tp *TransportParameters) Append(b []byte) []byte {
	b = appendVarintParam(b, tpInitialMaxData, tp.InitialMaxData)
	b = appendVarintParam(b, tpInitialMaxStreamsUni, tp.InitialMaxStreamsUni)
	b = appendVarintParam(b, tpInitialMaxStreamsBidi, tp.InitialMaxStreamsBidi)
	b = appendVarintParam(b, tpInitialMaxStreamDataBidiLocal, tp.InitialMaxStreamDataBidiLocal)
	b = appendVarintParam(b, tpInitialMaxStreamDataBidiRemote, tp.InitialMaxStreamDataBidiRemote)
	b = appendVarintParam(b, tpInitialMaxStreamDataUni, tp.InitialMaxStreamDataUni)
	b = appendVarintParam(b, tpMaxIdleTimeout, tp.MaxIdleTimeout)

	if tp.DisableActiveMigration {
		b = appendVarint(b, tpDisableActiveMigration)
		b = appendVarint(b, 0)
	}

	b = appendVarintParam(b, tpActiveConnectionIDLimit, tp.ActiveConnectionIDLimit)

	b = appendOpaqueParam(b, tpOriginalDCID, tp.OriginalDCID)
	b = appendOpaqueParam(b, tpInitialSCID, tp.InitialSCID)
	if len(tp.RetrySCID) > 0 {
		b = appendOpaqueParam(b, tpRetrySCID, tp.RetrySCID)
	}

	b = appendOpaqueParam(b, tpStatelessResetToken, tp.StatelessResetToken[:])
	return b
}
