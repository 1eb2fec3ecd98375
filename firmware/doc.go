// Package firmware loads bootloader images for the Waris bootstrap.
//
// # Image Format
//
// An image is a raw binary of at most MaxImageSize (4096) bytes. The first
// PayloadOffset (0x80) bytes are a header region that is never transmitted; the
// rest is sent to the MCU in BlockSize (8) byte blocks, the last one padded
// with zeros:
//
//	offset 0x00        0x80                                   len
//	       [ header   ][ block 0 ][ block 1 ] ... [ block N + 0x00 pad ]
//
// # Usage
//
// Load an image from disk:
//
//	img, err := firmware.Load("boot.bin")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("%d bytes, %d blocks\n", len(img.Data), img.BlockCount())
//
// Load from an io.Reader:
//
//	img, err := firmware.Parse(bytes.NewReader(raw))
//
// # Error Handling
//
// Missing, oversized and payload-less images are reported as *FileError.
package firmware
