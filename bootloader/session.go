package bootloader

import (
	"time"

	"github.com/google/uuid"

	"github.com/moffa90/go-sb9600/firmware"
)

// Session is the state of one bootstrap run. Cursor only moves forward in
// whole blocks, so after the last block it includes the zero padding.
type Session struct {
	ID      uuid.UUID
	Baud    int
	Image   *firmware.Image
	Cursor  int
	Started time.Time
}

func newSession(img *firmware.Image, now time.Time) *Session {
	return &Session{
		ID:      uuid.New(),
		Image:   img,
		Started: now,
	}
}

// Offset is the image offset of the next block to send.
func (s *Session) Offset() int {
	return firmware.PayloadOffset + s.Cursor
}

// Done reports whether every block has been confirmed.
func (s *Session) Done() bool {
	return s.Cursor >= s.Image.BlockCount()*firmware.BlockSize
}

// Confirmed is the number of image payload bytes the MCU has echoed back.
// Padding sent to fill the last block is not counted.
func (s *Session) Confirmed() int {
	return min(s.Cursor, len(s.Image.Payload()))
}
