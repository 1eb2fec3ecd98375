// Package bootloader loads a bootstrap image into a radio's microcontroller
// over the Waris bootstrap handshake.
//
// # Overview
//
// The MCU announces that it sits in its bootstrap loop by emitting a repeating
// bit pattern which, read at 460 baud, shows up as one of a small set of
// 8-byte samples. The host then:
//   - switches to the boot baud (2212 on Waris hardware, 2400 on official)
//     and sends 0xFD, expecting the loopback 0xFD followed by the MCU's 0xFF
//   - sends the image from offset 0x80 in 8-byte blocks, zero-padding the last
//     one, and checks that each block comes back twice
//   - switches to 115200 baud and expects exactly 0x50
//
// Every baud switch discards whatever was buffered at the previous rate.
//
// # Basic Usage
//
//	l, err := link.Open("/dev/ttyUSB0")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Close()
//
//	prog := bootloader.New(l)
//	if err := prog.ProgramFile(ctx, "waris.bin"); err != nil {
//	    log.Fatal(err)
//	}
//
// # Profiles
//
// The ready samples are heuristic and differ between hardware revisions. A
// Profile bundles the boot baud with the accepted samples; WarisProfile and
// OfficialProfile are built in and LoadProfiles adds more from YAML:
//
//	profiles, err := bootloader.LoadProfilesFile("profiles.yaml")
//	p, err := profiles.Lookup("waris-rev3")
//	prog := bootloader.New(l, bootloader.WithProfile(p))
//
// # Progress Tracking
//
//	prog := bootloader.New(l,
//	    bootloader.WithProgressCallback(func(p bootloader.Progress) {
//	        fmt.Printf("[%s] %.1f%%\n", p.Phase, p.Percentage)
//	    }),
//	)
//
// # Timeouts
//
// Ready detection waits forever by default, as the MCU may be powered up at
// any time after the tool starts. Use WithReadyTimeout or a context deadline
// to bound it. WithResponseTimeout bounds every later wait.
//
// # Error Handling
//
// Errors returned by Program are *PhaseError values naming the failed phase.
// The cause can be inspected with errors.As:
//
//	var em *bootloader.EchoMismatchError
//	if errors.As(err, &em) {
//	    fmt.Printf("block %d at 0x%04X came back as % X\n", em.Block, em.Offset, em.Got)
//	}
//
// Other causes are *firmware.FileError, *BootstrapError and poll.ErrTimeout.
package bootloader
