// Package link is the transport under the SB9600, SBEP and bootstrap
// protocols: a serial port plus the software-driven BUSY line.
//
// # Port
//
// Link talks to anything satisfying Port, a subset of go.bug.st/serial.Port.
// Open wraps serial.Open; tests use linktest.Port.
//
//	l, err := link.Open("/dev/ttyUSB0", link.WithBusyLine(link.BusyRTS))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Close()
//
// # BUSY Line
//
// The host drives BUSY on DTR (default) or RTS and samples the radio's BUSY on
// CTS. Hardware RTS/CTS flow control is never enabled. BUSY is de-asserted when
// a Link is created.
//
// # Reads
//
// Read(n) returns fewer than n bytes when the read timeout expires, and callers
// must check the length. ReadFull and ReadAvailable poll until enough bytes
// arrive, bounded by a poll.Poller.
//
// A Link is not safe for concurrent use; one call chain owns a physical link.
package link
