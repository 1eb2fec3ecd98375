package protocol

import "fmt"

// BuildSB9600Frame constructs an SB9600 frame.
//
// Frame structure:
//
//	[ADDRESS][SUBADDRESS][VALUE][OPERATION][CRC]
func BuildSB9600Frame(address, subaddress, value, operation byte) []byte {
	return SB9600Frame{
		Address:    address,
		Subaddress: subaddress,
		Value:      value,
		Operation:  operation,
	}.Bytes()
}

// BuildSBEPFrame constructs an SBEP frame for opcode and payload.
//
// Frame structure:
//
//	[HEADER][EXT_OPCODE?][EXT_LENGTH?][DATA...][CHECKSUM]
//
// The header high nibble holds opcodes below 0x0F; larger opcodes set the
// nibble to 0x0F and follow in EXT_OPCODE. The low nibble holds the data
// length (payload plus checksum) when below 0x0F; larger lengths set the nibble
// to 0x0F and follow in EXT_LENGTH, preceded by a zero EXT_OPCODE placeholder
// when the opcode itself is not extended.
func BuildSBEPFrame(opcode byte, data []byte) ([]byte, error) {
	if len(data) > SBEPMaxPayload {
		return nil, fmt.Errorf("sbep payload too long: got %d bytes, maximum is %d", len(data), SBEPMaxPayload)
	}

	dataLen := len(data) + SBEPChecksumSize
	hdr := NewSBEPHeader(opcode, dataLen)

	frame := make([]byte, 0, SBEPMaxHeaderSize+dataLen)
	frame = append(frame, byte(hdr))

	if hdr.ExtendedOpcode() {
		frame = append(frame, opcode)
	} else if hdr.ExtendedLength() {
		frame = append(frame, 0x00)
	}
	if hdr.ExtendedLength() {
		frame = append(frame, byte(dataLen))
	}

	frame = append(frame, data...)
	frame = append(frame, SBEPChecksum(frame))

	return frame, nil
}
