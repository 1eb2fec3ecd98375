package protocol

import (
	"errors"
	"fmt"
)

// ChecksumError indicates a received frame failed its CRC or checksum check.
type ChecksumError struct {
	// Protocol is "sb9600" or "sbep"
	Protocol string

	// Frame is the received frame
	Frame []byte

	// Expected is the checksum computed over the frame
	Expected byte

	// Actual is the checksum byte carried by the frame
	Actual byte
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("%s checksum failed: expected 0x%02X, got 0x%02X (frame % X)",
		e.Protocol, e.Expected, e.Actual, e.Frame)
}

// TransmitMismatchError indicates the bytes read back after a write differ from
// the bytes sent. On a shared bus this means a collision, a line fault, or the
// wrong device on the port.
type TransmitMismatchError struct {
	Sent   []byte
	Echoed []byte
}

func (e *TransmitMismatchError) Error() string {
	return fmt.Sprintf("message was not sent properly: sent % X, read back % X", e.Sent, e.Echoed)
}

// NotAcknowledgedError indicates the expected Ack byte was absent or different.
type NotAcknowledgedError struct {
	// Operation is the step that expected the Ack
	Operation string

	// Got is what was read in place of the Ack (empty on timeout)
	Got []byte
}

func (e *NotAcknowledgedError) Error() string {
	if len(e.Got) == 0 {
		return fmt.Sprintf("%s not acknowledged: no response", e.Operation)
	}
	return fmt.Sprintf("%s not acknowledged: got % X, expected %02X", e.Operation, e.Got, Ack)
}

// IsChecksumError returns true if err is or wraps a ChecksumError.
func IsChecksumError(err error) bool {
	var target *ChecksumError
	return errors.As(err, &target)
}

// IsTransmitMismatch returns true if err is or wraps a TransmitMismatchError.
func IsTransmitMismatch(err error) bool {
	var target *TransmitMismatchError
	return errors.As(err, &target)
}

// IsNotAcknowledged returns true if err is or wraps a NotAcknowledgedError.
func IsNotAcknowledged(err error) bool {
	var target *NotAcknowledgedError
	return errors.As(err, &target)
}
