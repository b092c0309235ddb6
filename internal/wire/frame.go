package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxFrameSize is the largest payload a single DM or blob-control frame may
// carry.
const MaxFrameSize = 1 << 20 // 1 MiB

var (
	// ErrFrameTooLarge is returned by WriteFrame/ReadFrame when a payload
	// exceeds MaxFrameSize.
	ErrFrameTooLarge = errors.New("wire: frame too large")
	// ErrTruncated is returned when a stream closes mid-frame.
	ErrTruncated = errors.New("wire: truncated frame")
)

// WriteFrame writes a single self-delimited frame: a 4-byte big-endian
// length prefix followed by payload. The length and payload are written in
// one Write call so a concurrent writer on the same stream can't interleave
// a partial frame.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return ErrFrameTooLarge
	}
	buf := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(buf[:4], uint32(len(payload)))
	copy(buf[4:], payload)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("wire: write frame: %w", err)
	}
	return nil
}

// ReadFrame reads one frame: four length bytes, then exactly that many
// payload bytes. A short read anywhere in the frame is reported as
// ErrTruncated; a length exceeding MaxFrameSize is ErrFrameTooLarge before
// any payload bytes are read.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, ErrTruncated
	}

	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, ErrTruncated
	}
	return payload, nil
}
