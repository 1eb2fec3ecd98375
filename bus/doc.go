// Package bus sends and receives SB9600 and SBEP frames over a link,
// arbitrating the shared bus with the BUSY line.
//
// # SB9600
//
// SendSB9600 waits for the radio to release BUSY, asserts BUSY, writes the
// five-byte frame and reads it back off the wire. The read-back must match
// byte for byte; SB9600 has no other acknowledgement. BUSY is then released
// and the call waits until the radio has released it as well.
//
//	b := bus.New(l)
//	err := b.SendSB9600(ctx, 0x05, 0x60, 0x01, 0x57)
//
// # SBEP
//
// SBEP sessions are entered after an SB9600 command that switches the radio
// into SBEP mode:
//
//	if err := b.EnterSBEP(ctx); err != nil {
//	    return err
//	}
//	defer b.LeaveSBEP(ctx)
//
//	if err := b.SendSBEP(ctx, 0x11, payload); err != nil {
//	    return err
//	}
//	reply, err := b.ReceiveSBEP(ctx)
//
// # Error Handling
//
// Every operation fails fast with the protocol package's typed errors:
// TransmitMismatchError when the echo differs, NotAcknowledgedError when the
// 0x50 Ack is missing and ChecksumError for a corrupt received frame. Nothing is
// retried internally.
package bus
