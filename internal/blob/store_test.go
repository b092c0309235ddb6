package blob

import (
	"bytes"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"
)

func drain(t *testing.T, ch <-chan Progress) Hash {
	t.Helper()
	var h Hash
	for p := range ch {
		switch p.Kind {
		case ProgressDone:
			h = p.Hash
		case ProgressError:
			t.Fatalf("progress error: %v", p.Err)
		}
	}
	return h
}

func TestAddBytesRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	data := make([]byte, 64*1024)
	if _, err := rand.Read(data); err != nil {
		t.Fatalf("rand: %v", err)
	}

	h := drain(t, s.AddBytes(data))
	if h != HashBytes(data) {
		t.Fatalf("hash mismatch: got %s, want %s", h, HashBytes(data))
	}
	if s.Status(h) != StatusComplete {
		t.Fatalf("status = %v, want complete", s.Status(h))
	}

	got, err := s.GetBytes(h)
	if err != nil {
		t.Fatalf("GetBytes: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("round-tripped bytes differ")
	}
}

func TestAddPathRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	src := filepath.Join(dir, "source.bin")
	data := []byte("hello from disk")
	if err := os.WriteFile(src, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	h := drain(t, s.AddPath(src))

	exportPath := filepath.Join(dir, "exported.bin")
	if err := s.Export(h, exportPath); err != nil {
		t.Fatalf("Export: %v", err)
	}
	got, err := os.ReadFile(exportPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("exported bytes differ from source")
	}
}

func TestStatusMissing(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	var h Hash
	h[0] = 0xAB
	if s.Status(h) != StatusMissing {
		t.Fatalf("status = %v, want missing", s.Status(h))
	}
	if _, err := s.GetBytes(h); err != ErrNotFound {
		t.Fatalf("GetBytes err = %v, want ErrNotFound", err)
	}
}

func TestHashStringRoundTrip(t *testing.T) {
	h := HashBytes([]byte("nexu"))
	s := h.String()
	parsed, err := ParseHash(s)
	if err != nil {
		t.Fatalf("ParseHash: %v", err)
	}
	if parsed != h {
		t.Fatalf("parsed hash %s != original %s", parsed, h)
	}
}
