package protocol

// Ack is the single byte a radio returns to accept SBEP mode entry or an SBEP message.
const Ack = 0x50

// SB9600 frame layout.
const (
	// SB9600HeaderSize is the number of header bytes before the CRC:
	// ADDRESS(1) + SUBADDRESS(1) + VALUE(1) + OPERATION(1)
	SB9600HeaderSize = 4

	// SB9600FrameSize is the fixed size of an SB9600 frame on the wire
	SB9600FrameSize = SB9600HeaderSize + 1
)

// SBEP header layout.
//
// The first byte carries the opcode in its high nibble and the data length
// (payload plus checksum) in its low nibble. A nibble value of SBEPExtended
// moves the corresponding field into a following byte.
const (
	// SBEPExtended marks a header nibble whose value lives in an extended byte
	SBEPExtended = 0x0F

	// SBEPOpcodeShift is the bit position of the opcode nibble
	SBEPOpcodeShift = 4

	// SBEPNibbleMask isolates one header nibble
	SBEPNibbleMask = 0x0F

	// SBEPMaxHeaderSize is HEADER(1) + EXT_OPCODE(1) + EXT_LENGTH(1)
	SBEPMaxHeaderSize = 3

	// SBEPChecksumSize is the size of the trailing checksum byte
	SBEPChecksumSize = 1

	// SBEPMaxDataLen is the largest data length (payload + checksum) that fits
	// the one-byte extended length field
	SBEPMaxDataLen = 0xFF

	// SBEPMaxPayload is the largest payload an SBEP frame can carry
	SBEPMaxPayload = SBEPMaxDataLen - SBEPChecksumSize
)
