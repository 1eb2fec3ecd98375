package firmware

import "fmt"

// Image layout constants.
const (
	// MaxImageSize is the largest image the bootloader accepts
	MaxImageSize = 4096

	// PayloadOffset is where transmitted data starts; earlier bytes are a header
	PayloadOffset = 0x80

	// BlockSize is the size of every block sent to the MCU
	BlockSize = 8
)

// Image is a bootloader image.
type Image struct {
	// Path is the file the image was loaded from, if any
	Path string

	// Data is the complete image including the header region
	Data []byte
}

// New validates data and wraps it in an Image.
func New(data []byte) (*Image, error) {
	if err := validate("", data); err != nil {
		return nil, err
	}
	return &Image{Data: data}, nil
}

// Validate checks the image size limits.
func (img *Image) Validate() error {
	return validate(img.Path, img.Data)
}

func validate(path string, data []byte) error {
	if len(data) > MaxImageSize {
		return &FileError{
			Path:   path,
			Size:   len(data),
			Reason: fmt.Sprintf("image exceeds %d bytes", MaxImageSize),
		}
	}
	if len(data) <= PayloadOffset {
		return &FileError{
			Path:   path,
			Size:   len(data),
			Reason: fmt.Sprintf("image has no data past the 0x%02X-byte header", PayloadOffset),
		}
	}
	return nil
}

// Payload returns the bytes after the header region.
func (img *Image) Payload() []byte {
	if len(img.Data) <= PayloadOffset {
		return nil
	}
	return img.Data[PayloadOffset:]
}

// BlockCount returns the number of blocks the payload occupies.
func (img *Image) BlockCount() int {
	return (len(img.Payload()) + BlockSize - 1) / BlockSize
}

// Block returns block i, zero-padded to BlockSize.
func (img *Image) Block(i int) []byte {
	payload := img.Payload()
	block := make([]byte, BlockSize)
	start := i * BlockSize
	if start < len(payload) {
		copy(block, payload[start:])
	}
	return block
}

// Blocks returns every block of the payload in transmission order.
func (img *Image) Blocks() [][]byte {
	blocks := make([][]byte, img.BlockCount())
	for i := range blocks {
		blocks[i] = img.Block(i)
	}
	return blocks
}

// Padding returns the number of zero bytes appended to the final block.
func (img *Image) Padding() int {
	rem := len(img.Payload()) % BlockSize
	if rem == 0 {
		return 0
	}
	return BlockSize - rem
}
