// Package protocol implements framing for the Motorola SB9600 control bus and
// the SBEP extended sub-protocol carried on the same serial link.
//
// The package is pure: it builds and parses frames and computes checksums, and
// never touches a port. Bus arbitration and I/O live in package bus.
//
// # SB9600
//
// An SB9600 frame is always five bytes:
//
//	[ADDRESS][SUBADDRESS][VALUE][OPERATION][CRC]
//
// The CRC is an 8-bit table-driven CRC seeded with zero:
//
//	frame := protocol.BuildSB9600Frame(0x05, 0x60, 0x01, 0x57)
//	// frame == []byte{0x05, 0x60, 0x01, 0x57, 0x41}
//
// The lookup table was recovered from sniffed traffic and is not taken from a
// Motorola document.
//
// # SBEP
//
// SBEP frames have a one to three byte header, a payload and a trailing
// checksum:
//
//	[HEADER][EXT_OPCODE?][EXT_LENGTH?][DATA...][CHECKSUM]
//
// HEADER holds the opcode in its high nibble and the data length (payload plus
// checksum) in its low nibble. Either nibble set to 0x0F moves its field into an
// extended byte. The checksum is the inverted low byte of the sum of all
// preceding bytes, so a valid frame satisfies:
//
//	protocol.SBEPChecksum(frame) == 0
//
// # Acknowledgement
//
// The byte Ack (0x50) acknowledges both SBEP mode entry and accepted SBEP
// messages.
//
// # Error Handling
//
// Frame validation failures are reported with typed errors:
//   - ChecksumError: CRC or checksum mismatch on a received frame
//   - TransmitMismatchError: the wire echo differs from what was written
//   - NotAcknowledgedError: the Ack byte was absent or wrong
package protocol
