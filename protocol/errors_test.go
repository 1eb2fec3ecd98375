package protocol

import (
	"fmt"
	"strings"
	"testing"
)

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want []string
	}{
		{
			name: "checksum",
			err:  &ChecksumError{Protocol: "sbep", Frame: []byte{0x13, 0x02}, Expected: 0xE7, Actual: 0xE8},
			want: []string{"sbep checksum failed", "0xE7", "0xE8", "13 02"},
		},
		{
			name: "transmit mismatch",
			err:  &TransmitMismatchError{Sent: []byte{0x05, 0x60}, Echoed: []byte{0x05, 0x61}},
			want: []string{"not sent properly", "05 60", "05 61"},
		},
		{
			name: "not acknowledged",
			err:  &NotAcknowledgedError{Operation: "sbep enter", Got: []byte{0x51}},
			want: []string{"sbep enter not acknowledged", "51"},
		},
		{
			name: "not acknowledged timeout",
			err:  &NotAcknowledgedError{Operation: "sbep send"},
			want: []string{"no response"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, w := range tt.want {
				if !strings.Contains(msg, w) {
					t.Errorf("error message %q should contain %q", msg, w)
				}
			}
		})
	}
}

func TestErrorPredicates(t *testing.T) {
	wrapped := fmt.Errorf("sbep send: %w", &TransmitMismatchError{})
	if !IsTransmitMismatch(wrapped) {
		t.Error("IsTransmitMismatch should see through wrapping")
	}
	if IsNotAcknowledged(wrapped) || IsChecksumError(wrapped) {
		t.Error("predicates should not match other error types")
	}
	if !IsNotAcknowledged(fmt.Errorf("x: %w", &NotAcknowledgedError{})) {
		t.Error("IsNotAcknowledged should see through wrapping")
	}
}
