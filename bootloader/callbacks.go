package bootloader

import "time"

// Bootstrap phases reported through Progress.Phase.
const (
	PhasePreflight   = "preflight"
	PhaseReady       = "ready"
	PhaseNegotiating = "negotiating"
	PhaseTransfer    = "transferring"
	PhaseFinalizing  = "finalizing"
	PhaseComplete    = "complete"
)

// Progress contains information about the bootstrap progress.
// Passed to ProgressCallback during Program.
type Progress struct {
	// Phase is one of the Phase* constants
	Phase string

	// Session identifies the bootstrap run
	Session string

	// Baud is the line rate of the current phase
	Baud int

	// CurrentBlock is the index of the last block echoed back (0-based)
	CurrentBlock int

	// TotalBlocks is the number of 8-byte blocks in the payload
	TotalBlocks int

	// Percentage is the completion percentage (0.0 to 100.0)
	Percentage float64

	// BytesWritten is the number of payload bytes confirmed so far, not
	// counting the padding of the last block
	BytesWritten int

	// ElapsedTime is the time elapsed since Program started
	ElapsedTime time.Duration
}

// ProgressCallback is called at every phase change and after each block.
// Implementations should return quickly; the MCU is waiting on the line.
//
// Example:
//
//	prog := bootloader.New(l,
//	    bootloader.WithProgressCallback(func(p bootloader.Progress) {
//	        fmt.Printf("[%s] %.1f%% - block %d/%d\n",
//	            p.Phase, p.Percentage, p.CurrentBlock+1, p.TotalBlocks)
//	    }),
//	)
type ProgressCallback func(Progress)
