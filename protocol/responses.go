package protocol

import "fmt"

// ParseSB9600Frame decodes a 5-byte SB9600 frame and validates its CRC.
func ParseSB9600Frame(frame []byte) (SB9600Frame, error) {
	if len(frame) != SB9600FrameSize {
		return SB9600Frame{}, fmt.Errorf("invalid sb9600 frame length: got %d bytes, expected %d", len(frame), SB9600FrameSize)
	}

	f := SB9600Frame{
		Address:    frame[0],
		Subaddress: frame[1],
		Value:      frame[2],
		Operation:  frame[3],
	}
	if crc := f.CRC(); crc != frame[4] {
		return SB9600Frame{}, &ChecksumError{
			Protocol: "sb9600",
			Frame:    frame,
			Expected: crc,
			Actual:   frame[4],
		}
	}
	return f, nil
}

// DecodeSBEPFrame decodes a complete SBEP frame, header through checksum.
// It applies the same header rules a streaming receiver uses and rejects
// frames whose checksum does not sum to zero.
func DecodeSBEPFrame(frame []byte) (*SBEPFrame, error) {
	if len(frame) == 0 {
		return nil, fmt.Errorf("empty sbep frame")
	}

	hdr := SBEPHeader(frame[0])
	if len(frame) < hdr.Size() {
		return nil, fmt.Errorf("sbep header truncated: got %d bytes, header needs %d", len(frame), hdr.Size())
	}

	opcode, dataLen := ResolveSBEPHeader(hdr, frame[1:hdr.Size()])
	if dataLen < SBEPChecksumSize {
		return nil, fmt.Errorf("invalid sbep data length %d", dataLen)
	}
	if want := hdr.Size() + dataLen; len(frame) != want {
		return nil, fmt.Errorf("sbep frame length mismatch: got %d bytes, expected %d", len(frame), want)
	}

	if !ValidSBEPChecksum(frame) {
		return nil, &ChecksumError{
			Protocol: "sbep",
			Frame:    frame,
			Expected: SBEPChecksum(frame[:len(frame)-1]),
			Actual:   frame[len(frame)-1],
		}
	}

	data := frame[hdr.Size() : len(frame)-SBEPChecksumSize]
	return &SBEPFrame{Opcode: opcode, Data: append([]byte(nil), data...)}, nil
}

// ResolveSBEPHeader returns the opcode and data length (payload plus
// checksum) described by hdr and the extended header bytes that follow it.
// ext must hold exactly hdr.Size()-1 bytes.
func ResolveSBEPHeader(hdr SBEPHeader, ext []byte) (opcode byte, dataLen int) {
	opcode = hdr.OpcodeNibble()
	dataLen = int(hdr.LengthNibble())

	i := 0
	if hdr.OpcodeSlot() {
		if hdr.ExtendedOpcode() {
			opcode = ext[i]
		}
		i++
	}
	if hdr.ExtendedLength() {
		dataLen = int(ext[i])
	}
	return opcode, dataLen
}
