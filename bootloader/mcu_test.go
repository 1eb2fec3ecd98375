package bootloader

// fakeMCU simulates the radio's microcontroller sitting in its bootstrap
// loop. It implements linktest.Device; the port's own Echo supplies the line
// loopback, so the MCU only adds its half of each reply.
type fakeMCU struct {
	// bootBaud is the only rate the MCU listens at after signalling ready
	bootBaud int

	// readyScript is emitted at ReadyBaud one entry per idle read; a nil
	// entry is a silent read. Once exhausted, ready is repeated.
	readyScript [][]byte
	ready       Pattern

	// triggerReply is sent after the 0xFD trigger. Default 0xFF.
	triggerReply []byte

	// corruptBlock flips the MCU's echo of that block (-1 for none)
	corruptBlock int

	// silentBlock drops the MCU's echo of that block (-1 for none)
	silentBlock int

	// final is emitted once at FinalBaud
	final []byte

	triggered bool
	finalSent bool
	blocks    [][]byte
}

func newFakeMCU() *fakeMCU {
	return &fakeMCU{
		bootBaud:     WarisBootBaud,
		ready:        Pattern{},
		corruptBlock: -1,
		silentBlock:  -1,
		final:        []byte{FinalAck},
	}
}

func (m *fakeMCU) Idle(baud int) []byte {
	switch baud {
	case ReadyBaud:
		if len(m.readyScript) > 0 {
			next := m.readyScript[0]
			m.readyScript = m.readyScript[1:]
			return next
		}
		return append([]byte(nil), m.ready[:]...)
	case FinalBaud:
		if m.finalSent || !m.triggered {
			return nil
		}
		m.finalSent = true
		return m.final
	}
	return nil
}

func (m *fakeMCU) Receive(baud int, p []byte) []byte {
	if baud != m.bootBaud {
		return nil
	}
	if !m.triggered {
		if len(p) == 1 && p[0] == TriggerByte {
			m.triggered = true
			if m.triggerReply != nil {
				return m.triggerReply
			}
			return []byte{TriggerAck}
		}
		return nil
	}

	index := len(m.blocks)
	m.blocks = append(m.blocks, append([]byte(nil), p...))
	switch index {
	case m.silentBlock:
		return nil
	case m.corruptBlock:
		echo := append([]byte(nil), p...)
		echo[0] ^= 0xFF
		return echo
	}
	return append([]byte(nil), p...)
}
