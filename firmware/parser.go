package firmware

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// Load reads an image from path.
//
// Example:
//
//	img, err := firmware.Load("boot.bin")
//	if err != nil {
//	    log.Fatal(err)
//	}
func Load(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &FileError{Path: path, Reason: "cannot open image", Err: err}
	}
	defer func() { _ = f.Close() }()

	img, err := Parse(f)
	if err != nil {
		var fe *FileError
		if errors.As(err, &fe) {
			fe.Path = path
			if fi, serr := f.Stat(); serr == nil && fe.Size > 0 {
				fe.Size = int(fi.Size())
			}
		}
		return nil, err
	}
	img.Path = path
	return img, nil
}

// Parse reads an image from r. At most MaxImageSize+1 bytes are consumed.
func Parse(r io.Reader) (*Image, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageSize+1))
	if err != nil {
		return nil, &FileError{Reason: "cannot read image", Err: err}
	}
	if err := validate("", data); err != nil {
		return nil, err
	}
	return &Image{Data: data}, nil
}

// FileError indicates a bootloader image is missing, unreadable or malformed.
type FileError struct {
	Path   string
	Size   int
	Reason string
	Err    error
}

func (e *FileError) Error() string {
	name := e.Path
	if name == "" {
		name = "<reader>"
	}
	msg := fmt.Sprintf("bootloader file %s: %s", name, e.Reason)
	if e.Size > 0 {
		msg += fmt.Sprintf(" (size %d)", e.Size)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FileError) Unwrap() error {
	return e.Err
}
