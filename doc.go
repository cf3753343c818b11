// Package quicwire parses and serializes the on-wire forms defined by
// the QUIC transport protocol ([RFC 9000]): packet headers, frames,
// transport parameters, and the variable-length integer encoding
// underlying them all.
//
// The package is a pure codec. It performs no I/O, keeps no state
// across calls, and never copies payload bytes: parsed descriptors
// borrow slices of the input buffer, which the caller must keep alive
// until the descriptors have been consumed.
//
// Cryptography is a collaborator, not a component. [ParsePacket]
// stops at the packet-number offset and reports where the protected
// region begins; removing header protection and AEAD-decrypting the
// payload is up to the caller, which then feeds the cleartext to
// [EachFrame]. Likewise [Header.AppendHeader] leaves the packet-number
// bytes in place for the protection layer to mask, and
// [Header.AppendRetryPseudoPacket] only lays out the bytes over which an
// external cipher computes the Retry integrity tag.
//
// Serialization follows a two-pass contract: every builder has a
// sizing counterpart ([Header.HeaderLen], [Frame.Len],
// [TransportParameters.Len]) that returns exactly the number of bytes
// the corresponding append will write, so callers can allocate once.
//
// [RFC 9000]: https://www.rfc-editor.org/rfc/rfc9000.html
package quicwire
