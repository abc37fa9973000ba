package transport

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// headerSize is the width of the big-endian uint32 length prefix.
	headerSize = 4

	// DefaultMaxMessageSize bounds a single payload (16MB safety).
	DefaultMaxMessageSize = 16 << 20
)

// writeFrame writes a length-prefixed payload to w as one buffer.
func writeFrame(w io.Writer, p []byte) error {
	buf := make([]byte, headerSize+len(p))
	binary.BigEndian.PutUint32(buf, uint32(len(p)))
	copy(buf[headerSize:], p)
	return writeFull(w, buf)
}

// writeFull loops until b is written; local pipes may accept short writes.
func writeFull(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		b = b[n:]
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
	}
	return nil
}

// readFrame reads a single length-prefixed payload. It returns io.EOF only
// when the stream ended cleanly before the first header byte.
func readFrame(r io.Reader, max int) ([]byte, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if uint64(n) > uint64(max) {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrMessageTooLarge, n, max)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return buf, nil
}
