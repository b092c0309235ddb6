package wire

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("hello nexu")
	if err := WriteFrame(&buf, payload); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("got %q, want %q", got, payload)
	}
}

func TestFrameTooLarge(t *testing.T) {
	var buf bytes.Buffer
	payload := make([]byte, MaxFrameSize+1)
	if err := WriteFrame(&buf, payload); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("WriteFrame: got %v, want ErrFrameTooLarge", err)
	}
}

func TestReadFrameTruncated(t *testing.T) {
	buf := bytes.NewReader([]byte{0, 0, 0, 10, 'a', 'b'})
	if _, err := ReadFrame(buf); !errors.Is(err, ErrTruncated) {
		t.Fatalf("ReadFrame: got %v, want ErrTruncated", err)
	}
}

func TestReadFrameCleanEOF(t *testing.T) {
	buf := bytes.NewReader(nil)
	if _, err := ReadFrame(buf); !errors.Is(err, io.EOF) {
		t.Fatalf("ReadFrame: got %v, want io.EOF", err)
	}
}

func TestReadFrameOversizeLength(t *testing.T) {
	var lenBuf [4]byte
	lenBuf[0] = 0xFF
	buf := bytes.NewReader(lenBuf[:])
	if _, err := ReadFrame(buf); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("ReadFrame: got %v, want ErrFrameTooLarge", err)
	}
}
