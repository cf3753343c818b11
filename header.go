package quicwire

//
// Packet header codec
//
// References:
//
// - https://www.rfc-editor.org/rfc/rfc9000.html#name-packet-formats
//
// - https://www.rfc-editor.org/rfc/rfc8999.html (version-independent forms)
//

import (
	"fmt"

	"golang.org/x/crypto/cryptobyte"
)

// Version1 is QUIC version 1.
const Version1 = uint32(0x00000001)

// draftVersion returns the version number of draft-nn.
func draftVersion(nn uint32) uint32 {
	return 0xff000000 | nn
}

// SupportedVersions lists the versions this codec accepts, most
// preferred last. The table is the single source of truth: parsing
// consults it and [Header.AppendVersionNegotiation] advertises it.
var SupportedVersions = []uint32{
	draftVersion(29),
	draftVersion(30),
	draftVersion(31),
	draftVersion(32),
	Version1,
}

// isSupportedVersion returns whether version is in [SupportedVersions].
func isSupportedVersion(version uint32) bool {
	for _, v := range SupportedVersions {
		if v == version {
			return true
		}
	}
	return false
}

// ParsePacket parses the header of the QUIC packet at the beginning
// of data, which is typically a whole UDP datagram. Short headers
// carry no DCID length on the wire, so the caller supplies the
// length it assigns to its own connection IDs as shortDCIDLen.
//
// Parsing stops at the packet-number region: the returned [Header]
// reports PNOffset and PacketEnd and the caller's protection layer is
// responsible for unmasking the packet number and decrypting
// [PNOffset+NumLen, PacketEnd) in place.
//
// Return values:
//
// 1. the packet descriptor, which borrows from data (non-nil also
// alongside [ErrUnsupportedVersion], so the caller can answer with a
// version negotiation packet built from the parsed connection IDs);
//
// 2. an error: nil on success, [ErrDeclined] when the input is not a
// packet we should process, [ErrUnsupportedVersion] when only the
// version is the problem.
func ParsePacket(data []byte, shortDCIDLen int, logger Logger) (*Header, error) {
	if logger == nil {
		logger = &NullLogger{}
	}
	if len(data) < 1 {
		return nil, newErrDeclined("empty datagram")
	}
	h := &Header{
		Flags:     data[0],
		PacketEnd: len(data),
		Log:       logger,
	}
	if h.Flags&headerFormLong == 0 {
		h.Level = LevelApplication
		if err := h.parseShortHeader(data, shortDCIDLen); err != nil {
			return nil, err
		}
		return h, nil
	}
	if err := h.parseLongHeader(data); err != nil {
		return nil, err
	}
	if !isSupportedVersion(h.Version) {
		logger.Infof("quicwire: unsupported version 0x%08x", h.Version)
		return h, fmt.Errorf("%w: 0x%08x", ErrUnsupportedVersion, h.Version)
	}
	if err := h.parseLongHeaderV1(data); err != nil {
		return nil, err
	}
	return h, nil
}

// parseShortHeader parses the 1-RTT header form: flags, a DCID of the
// configured fixed length, then the protected packet number.
func (h *Header) parseShortHeader(data []byte, dcidLen int) error {
	logger := h.logger()

	logger.Debugf("quicwire: packet rx short flags:%#x", h.Flags)

	if h.Flags&headerFixedBit == 0 {
		logger.Info("quicwire: fixed bit is not set")
		return newErrDeclined("short header: fixed bit is not set")
	}

	cursor := cryptobyte.String(data[1:])
	if !cursor.ReadBytes(&h.DCID, dcidLen) {
		logger.Info("quicwire: packet is too small to read dcid")
		return newErrDeclined("short header: cannot read dcid")
	}

	h.PNOffset = 1 + dcidLen
	return nil
}

// parseLongHeader parses the version-independent part of a long
// header: version and the two length-prefixed connection IDs.
func (h *Header) parseLongHeader(data []byte) error {
	logger := h.logger()
	cursor := cryptobyte.String(data[1:])

	if !cursor.ReadUint32(&h.Version) {
		logger.Info("quicwire: packet is too small to read version")
		return newErrDeclined("long header: cannot read version")
	}

	logger.Debugf("quicwire: packet rx long flags:%#x version:%#x", h.Flags, h.Version)

	if h.Version == 0 {
		// a version negotiation packet: the router layer deals
		// with those, not this parser
		return newErrDeclined("long header: version negotiation packet")
	}

	if h.Flags&headerFixedBit == 0 {
		logger.Info("quicwire: fixed bit is not set")
		return newErrDeclined("long header: fixed bit is not set")
	}

	var idlen uint8
	if !cursor.ReadUint8(&idlen) {
		logger.Info("quicwire: packet is too small to read dcid len")
		return newErrDeclined("long header: cannot read dcid length")
	}
	if idlen > MaxConnIDLen {
		logger.Info("quicwire: packet dcid is too long")
		return newErrDeclined("long header: dcid is too long")
	}
	if !cursor.ReadBytes(&h.DCID, int(idlen)) {
		logger.Info("quicwire: packet is too small to read dcid")
		return newErrDeclined("long header: cannot read dcid")
	}

	if !cursor.ReadUint8(&idlen) {
		logger.Info("quicwire: packet is too small to read scid len")
		return newErrDeclined("long header: cannot read scid length")
	}
	if idlen > MaxConnIDLen {
		logger.Info("quicwire: packet scid is too long")
		return newErrDeclined("long header: scid is too long")
	}
	if !cursor.ReadBytes(&h.SCID, int(idlen)) {
		logger.Info("quicwire: packet is too small to read scid")
		return newErrDeclined("long header: cannot read scid")
	}

	h.PNOffset = len(data) - len(cursor)
	return nil
}

// parseLongHeaderV1 parses the version-specific tail of a long
// header: the packet type, the Initial token, and the length field
// bounding the packet number and payload.
func (h *Header) parseLongHeaderV1(data []byte) error {
	logger := h.logger()
	cursor := cryptobyte.String(data[h.PNOffset:])

	switch (h.Flags & headerLongTypeMask) >> 4 {
	case packetTypeInitial:
		// an Initial must ride in a datagram large enough to
		// defeat amplification attacks
		if len(data) < MinInitialDatagramSize {
			logger.Info("quicwire: UDP datagram is too small for initial packet")
			return newErrDeclined("long header: datagram too small for initial packet")
		}

		var tokenLen uint64
		if !parseVarint(&cursor, &tokenLen) {
			logger.Info("quicwire: failed to parse token length")
			return newErrDeclined("long header: cannot read token length")
		}
		if tokenLen > uint64(len(cursor)) {
			logger.Info("quicwire: packet too small to read token data")
			return newErrDeclined("long header: cannot read token")
		}
		cursor.ReadBytes(&h.Token, int(tokenLen))

		h.Level = LevelInitial

	case packetTypeZeroRTT:
		h.Level = LevelZeroRTT

	case packetTypeHandshake:
		h.Level = LevelHandshake

	default:
		logger.Info("quicwire: bad packet type")
		return newErrDeclined("long header: bad packet type")
	}

	var length uint64
	if !parseVarint(&cursor, &length) {
		logger.Info("quicwire: bad packet length")
		return newErrDeclined("long header: cannot read length")
	}

	logger.Debugf("quicwire: packet rx %s len:%d", h.Level, length)

	if length > uint64(len(cursor)) {
		logger.Infof("quicwire: truncated %s packet", h.Level)
		return newErrDeclined("long header: length exceeds datagram")
	}

	h.PNOffset = len(data) - len(cursor)
	h.PacketEnd = h.PNOffset + int(length)
	return nil
}

// Offsets of the DCID within the two header forms, used by the
// routing fast path.
const (
	longDCIDLenOffset = 5
	longDCIDOffset    = 6
	shortDCIDOffset   = 1
)

// ExtractDestConnID reads the destination connection ID out of an
// arbitrary datagram without parsing the rest of the header, so a
// dispatcher can route the datagram to the owning connection before
// any crypto runs. shortDCIDLen plays the same role as in
// [ParsePacket]. The returned slice borrows from data.
func ExtractDestConnID(data []byte, shortDCIDLen int) ([]byte, error) {
	if len(data) < 1 {
		return nil, newErrDeclined("empty datagram")
	}

	var length, offset int
	if data[0]&headerFormLong != 0 {
		if len(data) < longDCIDLenOffset+1 {
			return nil, newErrDeclined("malformed packet")
		}
		length = int(data[longDCIDLenOffset])
		offset = longDCIDOffset
	} else {
		length = shortDCIDLen
		offset = shortDCIDOffset
	}

	if length > MaxConnIDLen {
		return nil, newErrDeclined("dcid is too long")
	}
	if len(data) < offset+length {
		return nil, newErrDeclined("malformed packet")
	}
	return data[offset : offset+length], nil
}

// HeaderLen returns the exact number of bytes [Header.AppendHeader]
// would write for a payload of payloadLen bytes (excluding the packet
// number, whose width is h.NumLen). This is the sizing half of the
// two-pass contract: compute the header size, add the payload size,
// allocate, then write.
func (h *Header) HeaderLen(payloadLen int) int {
	if h.Flags&headerFormLong == 0 {
		return 1 + len(h.DCID) + h.NumLen
	}
	size := 5 + 2 + len(h.DCID) + len(h.SCID) +
		varintLen(uint64(payloadLen+h.NumLen)) + h.NumLen
	if h.Level == LevelInitial {
		size += varintLen(uint64(len(h.Token))) + len(h.Token)
	}
	return size
}

// AppendHeader appends the packet header to b and returns the
// extended slice together with the offset, within the returned slice,
// of the first packet-number byte. The truncated packet number
// (h.TruncPN, h.NumLen bytes) is written in clear; the protection
// layer uses the returned offset to apply header protection once the
// payload has been encrypted.
//
// The length field of long headers covers payloadLen plus the packet
// number, so payloadLen must match what the caller will actually
// append after the header.
func (h *Header) AppendHeader(b []byte, payloadLen int) ([]byte, int) {
	if h.Flags&headerFormLong == 0 {
		return h.appendShortHeader(b)
	}
	return h.appendLongHeader(b, payloadLen)
}

// appendShortHeader writes flags, the DCID, and the packet number.
func (h *Header) appendShortHeader(b []byte) ([]byte, int) {
	b = append(b, h.Flags)
	b = append(b, h.DCID...)
	pnOffset := len(b)
	b = appendPacketNumber(b, h.TruncPN, h.NumLen)
	return b, pnOffset
}

// appendLongHeader writes the long header form. The Initial token is
// written when the level is Initial; a zero-length token yields the
// single zero byte the wire format requires.
func (h *Header) appendLongHeader(b []byte, payloadLen int) ([]byte, int) {
	b = append(b, h.Flags)
	b = append(b, byte(h.Version>>24), byte(h.Version>>16), byte(h.Version>>8), byte(h.Version))
	b = append(b, byte(len(h.DCID)))
	b = append(b, h.DCID...)
	b = append(b, byte(len(h.SCID)))
	b = append(b, h.SCID...)
	if h.Level == LevelInitial {
		b = appendVarint(b, uint64(len(h.Token)))
		b = append(b, h.Token...)
	}
	b = appendVarint(b, uint64(payloadLen+h.NumLen))
	pnOffset := len(b)
	b = appendPacketNumber(b, h.TruncPN, h.NumLen)
	return b, pnOffset
}

// VersionNegotiationLen returns the size of the packet that
// [Header.AppendVersionNegotiation] would write.
func (h *Header) VersionNegotiationLen() int {
	return 7 + len(h.DCID) + len(h.SCID) + 4*len(SupportedVersions)
}

// AppendVersionNegotiation appends a version negotiation packet
// echoing the header's connection IDs and advertising every entry of
// [SupportedVersions]. The version field itself is zero, as required.
// The caller prepares h.Flags (long form bit plus unpredictable
// low bits) and swaps DCID and SCID from the offending packet.
func (h *Header) AppendVersionNegotiation(b []byte) []byte {
	b = append(b, h.Flags)
	b = append(b, 0, 0, 0, 0)
	b = append(b, byte(len(h.DCID)))
	b = append(b, h.DCID...)
	b = append(b, byte(len(h.SCID)))
	b = append(b, h.SCID...)
	for _, version := range SupportedVersions {
		b = append(b, byte(version>>24), byte(version>>16), byte(version>>8), byte(version))
	}
	return b
}

// RetryPseudoPacketLen returns the size of the layout produced by
// [Header.AppendRetryPseudoPacket].
func (h *Header) RetryPseudoPacketLen() int {
	return 1 + len(h.ODCID) + 1 + 4 + 1 + len(h.DCID) + 1 + len(h.SCID) + len(h.Token)
}

// AppendRetryPseudoPacket appends the pseudo-packet over which the
// Retry integrity tag is computed: the length-prefixed original DCID
// followed by the image of the Retry packet itself (flags, version,
// connection IDs, and the retry token, which has no length prefix).
// It returns the extended slice and the offset, within it, where the
// Retry packet image begins: after sealing, the caller copies
// [offset:] plus the 16-byte tag onto the wire.
func (h *Header) AppendRetryPseudoPacket(b []byte) ([]byte, int) {
	b = append(b, byte(len(h.ODCID)))
	b = append(b, h.ODCID...)

	packetOffset := len(b)

	b = append(b, 0xff)
	b = append(b, byte(h.Version>>24), byte(h.Version>>16), byte(h.Version>>8), byte(h.Version))
	b = append(b, byte(len(h.DCID)))
	b = append(b, h.DCID...)
	b = append(b, byte(len(h.SCID)))
	b = append(b, h.SCID...)
	b = append(b, h.Token...)

	return b, packetOffset
}
