package protocol

// SB9600Frame is a fixed-length SB9600 control-bus message.
// The CRC is not stored; it is computed from the four header fields when the
// frame is serialized.
type SB9600Frame struct {
	// Address is the bus address of the target module
	Address byte

	// Subaddress selects a function within the module
	Subaddress byte

	// Value is the operand for the operation
	Value byte

	// Operation is the opcode
	Operation byte
}

// Header returns the four header bytes covered by the CRC.
func (f SB9600Frame) Header() []byte {
	return []byte{f.Address, f.Subaddress, f.Value, f.Operation}
}

// CRC returns the SB9600 CRC of the frame header.
func (f SB9600Frame) CRC() byte {
	return SB9600CRC(f.Header())
}

// Bytes returns the frame as it appears on the wire:
//
//	[ADDRESS][SUBADDRESS][VALUE][OPERATION][CRC]
func (f SB9600Frame) Bytes() []byte {
	b := f.Header()
	return append(b, SB9600CRC(b))
}

// SBEPFrame is a decoded SBEP message.
type SBEPFrame struct {
	// Opcode is the full opcode, whether it was carried in the header nibble
	// or in the extended opcode byte
	Opcode byte

	// Data is the payload without the trailing checksum byte
	Data []byte
}

// SBEPHeader is the first byte of an SBEP frame.
type SBEPHeader byte

// NewSBEPHeader builds the first header byte for an opcode and data length
// (payload plus checksum).
func NewSBEPHeader(opcode byte, dataLen int) SBEPHeader {
	var h byte
	if opcode >= SBEPExtended {
		h |= SBEPExtended << SBEPOpcodeShift
	} else {
		h |= opcode << SBEPOpcodeShift
	}
	if dataLen >= SBEPExtended {
		h |= SBEPExtended
	} else {
		h |= byte(dataLen) & SBEPNibbleMask
	}
	return SBEPHeader(h)
}

// OpcodeNibble returns the high nibble.
func (h SBEPHeader) OpcodeNibble() byte {
	return byte(h) >> SBEPOpcodeShift & SBEPNibbleMask
}

// LengthNibble returns the low nibble.
func (h SBEPHeader) LengthNibble() byte {
	return byte(h) & SBEPNibbleMask
}

// ExtendedOpcode reports whether the opcode is carried in the following byte.
func (h SBEPHeader) ExtendedOpcode() bool {
	return h.OpcodeNibble() == SBEPExtended
}

// ExtendedLength reports whether the data length is carried in an extended byte.
//
// When the opcode is not extended, an extended length is still preceded by a
// placeholder opcode byte (zero on encode, ignored on decode).
func (h SBEPHeader) ExtendedLength() bool {
	return h.LengthNibble() == SBEPExtended
}

// OpcodeSlot reports whether a byte follows the header in the opcode position,
// either the real extended opcode or the placeholder.
func (h SBEPHeader) OpcodeSlot() bool {
	return h.ExtendedOpcode() || h.ExtendedLength()
}

// Size returns the number of header bytes implied by h.
func (h SBEPHeader) Size() int {
	n := 1
	if h.OpcodeSlot() {
		n++
	}
	if h.ExtendedLength() {
		n++
	}
	return n
}
