package compositor

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"io"
	"time"
)

var errMalformedFrame = errors.New("malformed gif frame")

// gifWriter streams an animated GIF: the header and loop extension are written
// on the first frame, each frame is appended as it arrives and the trailer is
// written on Close.
type gifWriter struct {
	w        io.Writer
	width    int
	height   int
	global   []byte
	sizeBits byte
	started  bool
	closed   bool
	frames   int
}

func newGIFWriter(w io.Writer, width, height int, pal color.Palette) *gifWriter {
	table, bits := encodeColorTable(pal)
	return &gifWriter{
		w:        w,
		width:    width,
		height:   height,
		global:   table,
		sizeBits: bits,
	}
}

func (g *gifWriter) writeHeader() error {
	var hdr bytes.Buffer
	hdr.WriteString("GIF89a")
	writeLE16(&hdr, g.width)
	writeLE16(&hdr, g.height)
	hdr.WriteByte(0x80 | 0x70 | g.sizeBits)
	hdr.WriteByte(0x00) // background index
	hdr.WriteByte(0x00) // aspect ratio
	hdr.Write(g.global)

	// NETSCAPE2.0 application extension, loop count 0 = forever
	hdr.Write([]byte{0x21, 0xFF, 0x0B})
	hdr.WriteString("NETSCAPE2.0")
	hdr.Write([]byte{0x03, 0x01, 0x00, 0x00, 0x00})

	if _, err := g.w.Write(hdr.Bytes()); err != nil {
		return fmt.Errorf("failed to write gif header: %w", err)
	}
	g.started = true
	return nil
}

// WriteFrame appends one palettised frame with the given display delay
func (g *gifWriter) WriteFrame(pm *image.Paletted, delay time.Duration) error {
	if g.closed {
		return errors.New("gif writer is closed")
	}
	if !g.started {
		if err := g.writeHeader(); err != nil {
			return err
		}
	}

	var single bytes.Buffer
	if err := gif.Encode(&single, pm, nil); err != nil {
		return fmt.Errorf("failed to encode frame %d: %w", g.frames, err)
	}
	desc, table, data, err := extractImageBlock(single.Bytes())
	if err != nil {
		return fmt.Errorf("frame %d: %w", g.frames, err)
	}

	var out bytes.Buffer
	cs := int(delay / (10 * time.Millisecond))
	// graphic control extension: disposal "do not dispose", no transparency
	out.Write([]byte{0x21, 0xF9, 0x04, 0x04, byte(cs), byte(cs >> 8), 0x00, 0x00})

	if bytes.Equal(table, g.global) {
		desc[9] &^= 0x87
		out.Write(desc[:])
	} else {
		bits, err := colorTableBits(table)
		if err != nil {
			return fmt.Errorf("frame %d: %w", g.frames, err)
		}
		desc[9] = (desc[9] &^ 0x07) | 0x80 | bits
		out.Write(desc[:])
		out.Write(table)
	}
	out.Write(data)

	if _, err := g.w.Write(out.Bytes()); err != nil {
		return fmt.Errorf("failed to write frame %d: %w", g.frames, err)
	}
	g.frames++
	return nil
}

// Close writes the trailer. At least one frame must have been written.
func (g *gifWriter) Close() error {
	if g.closed {
		return nil
	}
	if !g.started {
		return fmt.Errorf("%w: no frames written", ErrInvalidInput)
	}
	g.closed = true
	if _, err := g.w.Write([]byte{0x3B}); err != nil {
		return fmt.Errorf("failed to write gif trailer: %w", err)
	}
	return nil
}

// extractImageBlock pulls the first image descriptor, its effective color
// table and the LZW data (min code size plus sub-blocks) out of a
// single-image GIF.
func extractImageBlock(b []byte) (desc [10]byte, table, data []byte, err error) {
	if len(b) < 13 || !bytes.HasPrefix(b, []byte("GIF8")) {
		return desc, nil, nil, errMalformedFrame
	}

	pos := 13
	if packed := b[10]; packed&0x80 != 0 {
		n := 3 << ((packed & 0x07) + 1)
		if pos+n > len(b) {
			return desc, nil, nil, errMalformedFrame
		}
		table = b[pos : pos+n]
		pos += n
	}

	skipSubBlocks := func() error {
		for {
			if pos >= len(b) {
				return errMalformedFrame
			}
			size := int(b[pos])
			pos++
			if size == 0 {
				return nil
			}
			pos += size
		}
	}

	for pos < len(b) {
		switch b[pos] {
		case 0x21:
			pos += 2
			if err := skipSubBlocks(); err != nil {
				return desc, nil, nil, err
			}
		case 0x2C:
			if pos+10 > len(b) {
				return desc, nil, nil, errMalformedFrame
			}
			copy(desc[:], b[pos:pos+10])
			pos += 10
			if packed := desc[9]; packed&0x80 != 0 {
				n := 3 << ((packed & 0x07) + 1)
				if pos+n > len(b) {
					return desc, nil, nil, errMalformedFrame
				}
				table = b[pos : pos+n]
				pos += n
			}
			start := pos
			pos++ // LZW minimum code size
			if err := skipSubBlocks(); err != nil {
				return desc, nil, nil, err
			}
			if table == nil {
				return desc, nil, nil, errMalformedFrame
			}
			return desc, table, b[start:pos], nil
		default:
			return desc, nil, nil, errMalformedFrame
		}
	}
	return desc, nil, nil, errMalformedFrame
}

func encodeColorTable(pal color.Palette) ([]byte, byte) {
	var bits byte
	for (2 << bits) < len(pal) && bits < 7 {
		bits++
	}
	table := make([]byte, 3*(2<<bits))
	for i, c := range pal {
		if i >= 256 {
			break
		}
		r, g, b, _ := c.RGBA()
		table[3*i] = byte(r >> 8)
		table[3*i+1] = byte(g >> 8)
		table[3*i+2] = byte(b >> 8)
	}
	return table, bits
}

func colorTableBits(table []byte) (byte, error) {
	for bits := byte(0); bits < 8; bits++ {
		if len(table) == 3*(2<<bits) {
			return bits, nil
		}
	}
	return 0, errMalformedFrame
}

func writeLE16(buf *bytes.Buffer, v int) {
	buf.WriteByte(byte(v))
	buf.WriteByte(byte(v >> 8))
}
