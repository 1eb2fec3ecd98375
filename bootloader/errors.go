package bootloader

import (
	"errors"
	"fmt"
)

// EchoMismatchError indicates that the 16 bytes read back after a block were
// not the block twice (line loopback followed by the MCU's echo).
type EchoMismatchError struct {
	Block  int
	Offset int
	Sent   []byte
	Got    []byte
}

func (e *EchoMismatchError) Error() string {
	return fmt.Sprintf("echo mismatch for block %d at offset 0x%04X: sent % X, got % X",
		e.Block, e.Offset, e.Sent, e.Got)
}

// BootstrapError indicates that the MCU did not acknowledge the transferred
// code after the switch to the final baud rate.
type BootstrapError struct {
	Response []byte
}

func (e *BootstrapError) Error() string {
	if len(e.Response) == 0 {
		return "bootstrap failed: no response at final baud"
	}
	return fmt.Sprintf("bootstrap failed: expected % X, got % X", []byte{FinalAck}, e.Response)
}

// PhaseError wraps a failure with the phase it happened in.
type PhaseError struct {
	Phase string
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}

// IsEchoMismatch reports whether err is or wraps an EchoMismatchError.
func IsEchoMismatch(err error) bool {
	var e *EchoMismatchError
	return errors.As(err, &e)
}

// IsBootstrapError reports whether err is or wraps a BootstrapError.
func IsBootstrapError(err error) bool {
	var e *BootstrapError
	return errors.As(err, &e)
}

// FailedPhase returns the phase err occurred in, or "" if err did not come
// from Program.
func FailedPhase(err error) string {
	var e *PhaseError
	if errors.As(err, &e) {
		return e.Phase
	}
	return ""
}
