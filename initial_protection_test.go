package quicwire

//
// Initial packet protection for the end-to-end test below. The codec
// itself stops at the packet-number offset; this file implements the
// collaborator's side of the contract — deriving Initial secrets,
// applying and removing header protection, sealing and opening the
// payload — so we can exercise the full receive path over a packet we
// protected ourselves.
//

import (
	"bytes"
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/crypto/hkdf"
)

// https://www.rfc-editor.org/rfc/rfc9001.html#protection-keys
//
// computeHP derives the header protection key from the initial secret.
func computeHP(secret []byte) (hp []byte) {
	hp = hkdfExpandLabel(crypto.SHA256, secret, []byte{}, "quic hp", 16)
	return
}

// SPDX-License-Identifier: MIT
// This code is borrowed from https://github.com/lucas-clemente/quic-go/
// https://www.rfc-editor.org/rfc/rfc9001.html#protection-keys
//
// computeInitialKeyAndIV derives the packet protection key and Initialization Vector (IV) from the initial secret.
func computeInitialKeyAndIV(secret []byte) (key, iv []byte) {
	key = hkdfExpandLabel(crypto.SHA256, secret, []byte{}, "quic key", 16)
	iv = hkdfExpandLabel(crypto.SHA256, secret, []byte{}, "quic iv", 12)
	return
}

// SPDX-License-Identifier: MIT
// This code is borrowed from https://github.com/lucas-clemente/quic-go/
// https://www.rfc-editor.org/rfc/rfc9001.html#name-initial-secrets
//
// computeSecrets computes the initial secrets based on the destination connection ID.
func computeSecrets(destConnID []byte) (clientSecret, serverSecret []byte) {
	initialSalt := []byte{
		0x38, 0x76, 0x2c, 0xf7, 0xf5, 0x59, 0x34, 0xb3, 0x4d, 0x17,
		0x9a, 0xe6, 0xa4, 0xc8, 0x0c, 0xad, 0xcc, 0xbb, 0x7f, 0x0a,
	}
	initialSecret := hkdf.Extract(crypto.SHA256.New, destConnID, initialSalt)
	clientSecret = hkdfExpandLabel(crypto.SHA256, initialSecret, []byte{}, "client in", crypto.SHA256.Size())
	serverSecret = hkdfExpandLabel(crypto.SHA256, initialSecret, []byte{}, "server in", crypto.SHA256.Size())
	return
}

// SPDX-License-Identifier: MIT
// This code is borrowed from https://github.com/lucas-clemente/quic-go/
//
// hkdfExpandLabel HKDF expands a label.
func hkdfExpandLabel(hash crypto.Hash, secret, context []byte, label string, length int) []byte {
	b := make([]byte, 3, 3+6+len(label)+1+len(context))
	binary.BigEndian.PutUint16(b, uint16(length))
	b[2] = uint8(6 + len(label))
	b = append(b, []byte("tls13 ")...)
	b = append(b, []byte(label)...)
	b = b[:3+6+len(label)+1]
	b[3+6+len(label)] = uint8(len(context))
	b = append(b, context...)

	out := make([]byte, length)
	n, err := hkdf.Expand(hash.New, secret, b).Read(out)
	if err != nil || n != length {
		panic("quicwire: HKDF-Expand-Label invocation failed unexpectedly")
	}
	return out
}

const aeadNonceLength = 12

// SPDX-License-Identifier: BSD-3-Clause
// This code is borrowed from https://github.com/marten-seemann/qtls-go1-15
//
// aeadAESGCMTLS13 wraps AES-GCM the way TLS 1.3 and QUIC use it.
func aeadAESGCMTLS13(key, nonceMask []byte) cipher.AEAD {
	if len(nonceMask) != aeadNonceLength {
		panic("quicwire: internal error: wrong nonce length")
	}
	aes, err := aes.NewCipher(key)
	if err != nil {
		panic(err)
	}
	aead, err := cipher.NewGCM(aes)
	if err != nil {
		panic(err)
	}
	ret := &xorNonceAEAD{aead: aead}
	copy(ret.nonceMask[:], nonceMask)
	return ret
}

// SPDX-License-Identifier: BSD-3-Clause
// This code is borrowed from https://github.com/marten-seemann/qtls-go1-15
//
// xorNonceAEAD wraps an AEAD by XORing in a fixed pattern to the nonce before each call.
type xorNonceAEAD struct {
	nonceMask [aeadNonceLength]byte
	aead      cipher.AEAD
}

func (f *xorNonceAEAD) NonceSize() int { return 8 } // 64-bit sequence number
func (f *xorNonceAEAD) Overhead() int  { return f.aead.Overhead() }

func (f *xorNonceAEAD) Seal(out, nonce, plaintext, additionalData []byte) []byte {
	for i, b := range nonce {
		f.nonceMask[4+i] ^= b
	}
	result := f.aead.Seal(out, f.nonceMask[:], plaintext, additionalData)
	for i, b := range nonce {
		f.nonceMask[4+i] ^= b
	}
	return result
}

func (f *xorNonceAEAD) Open(out, nonce, ciphertext, additionalData []byte) ([]byte, error) {
	for i, b := range nonce {
		f.nonceMask[4+i] ^= b
	}
	result, err := f.aead.Open(out, f.nonceMask[:], ciphertext, additionalData)
	for i, b := range nonce {
		f.nonceMask[4+i] ^= b
	}
	return result, err
}

// headerProtectionMask encrypts the 16-byte ciphertext sample following
// the assumed four-byte packet number and returns the whole 16-byte
// block; callers use its first five bytes as the header protection mask.
func headerProtectionMask(hpKey, sample []byte) []byte {
	block, err := aes.NewCipher(hpKey)
	if err != nil {
		panic(err)
	}
	mask := make([]byte, block.BlockSize())
	if len(sample) != len(mask) {
		panic("quicwire: invalid sample size")
	}
	block.Encrypt(mask, sample)
	return mask
}

// TestInitialPacketEndToEnd exercises the full receive contract: we
// build a client Initial with the codec, protect it the way RFC 9001
// prescribes, and then route, parse, unprotect, decrypt, and walk its
// frames from the raw datagram alone.
func TestInitialPacketEndToEnd(t *testing.T) {
	dcid := []byte{0x83, 0x94, 0xc8, 0xf0, 0x3e, 0x51, 0x57, 0x08}
	scid := []byte{0x01, 0x02, 0x03, 0x04}

	cryptoData := bytes.Repeat([]byte{0x16, 0x03, 0x01, 0x42}, 128)
	cryptoFrame := &CryptoFrame{Offset: 0, Data: Payload{cryptoData}}
	padding := &PaddingFrame{Count: 700}

	// assemble the cleartext payload
	var plain []byte
	plain, err := cryptoFrame.Append(plain)
	if err != nil {
		t.Fatal(err)
	}
	plain, err = padding.Append(plain)
	if err != nil {
		t.Fatal(err)
	}

	// derive the client keys from the destination connection ID
	clientSecret, _ := computeSecrets(dcid)
	key, iv := computeInitialKeyAndIV(clientSecret)
	sealer := aeadAESGCMTLS13(key, iv)
	hpKey := computeHP(clientSecret)

	// write the header, accounting for the AEAD overhead
	const numLen = 4
	hdr := &Header{
		Flags:   0xc0 | (numLen - 1), // initial, four-byte packet number
		Level:   LevelInitial,
		Version: Version1,
		DCID:    dcid,
		SCID:    scid,
		NumLen:  numLen,
		TruncPN: 0,
	}
	payloadLen := len(plain) + sealer.Overhead()
	packet, pnOffset := hdr.AppendHeader(nil, payloadLen)

	// seal the payload; the associated data is the cleartext header
	nonce := make([]byte, sealer.NonceSize())
	binary.BigEndian.PutUint64(nonce, 0) // packet number zero
	packet = sealer.Seal(packet, nonce, plain, packet)

	if len(packet) < MinInitialDatagramSize {
		t.Fatal("test bug: datagram smaller than the initial minimum", len(packet))
	}

	// apply header protection
	sample := packet[pnOffset+numLen : pnOffset+numLen+16]
	mask := headerProtectionMask(hpKey, sample)
	packet[0] ^= mask[0] & 0x0f
	for i := 0; i < numLen; i++ {
		packet[pnOffset+i] ^= mask[1+i]
	}

	// the routing fast path sees the correct connection ID
	routed, err := ExtractDestConnID(packet, 8)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(dcid, routed); diff != "" {
		t.Fatal(diff)
	}

	// parse the protected packet
	h, err := ParsePacket(packet, 8, &NullLogger{})
	if err != nil {
		t.Fatal(err)
	}
	if h.Level != LevelInitial {
		t.Fatal("unexpected level", h.Level)
	}
	if h.PNOffset != pnOffset {
		t.Fatal("expected pn offset", pnOffset, "got", h.PNOffset)
	}
	if h.PacketEnd != len(packet) {
		t.Fatal("unexpected packet end", h.PacketEnd)
	}

	// remove header protection
	sample = packet[h.PNOffset+4 : h.PNOffset+4+16]
	mask = headerProtectionMask(hpKey, sample)
	firstByte := packet[0] ^ (mask[0] & 0x0f)
	h.NumLen = int(firstByte&headerPNLenMask) + 1
	if h.NumLen != numLen {
		t.Fatal("unexpected packet number length", h.NumLen)
	}
	pn := make([]byte, h.NumLen)
	for i := 0; i < h.NumLen; i++ {
		pn[i] = packet[h.PNOffset+i] ^ mask[1+i]
	}
	h.PN = uint64(binary.BigEndian.Uint32(pn))
	if h.PN != 0 {
		t.Fatal("unexpected packet number", h.PN)
	}

	// reassemble the cleartext header for use as associated data
	ad := []byte{firstByte}
	ad = append(ad, packet[1:h.PNOffset]...)
	ad = append(ad, pn...)

	// decrypt the payload
	ciphertext := packet[h.PNOffset+h.NumLen : h.PacketEnd]
	opener := aeadAESGCMTLS13(key, iv)
	decrypted, err := opener.Open(nil, nonce, ciphertext, ad)
	if err != nil {
		t.Fatal(err)
	}

	// walk the frames in the cleartext payload
	var frames []Frame
	if err := EachFrame(h, decrypted, func(f Frame) error {
		frames = append(frames, f)
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	expect := []Frame{
		&CryptoFrame{Offset: 0, Data: Payload{cryptoData}},
		&PaddingFrame{Count: 700},
	}
	if diff := cmp.Diff(expect, frames); diff != "" {
		t.Fatal(diff)
	}
}
