package blob

import (
	"context"
	"testing"

	"github.com/nexu-chat/nexu/internal/identity"
)

func TestDownloadAlreadyComplete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	data := []byte("already have this")
	h := drain(t, store.AddBytes(data))

	d := NewDownloader(nil, store)
	ch := d.Download(context.Background(), h, identity.Addr{})

	var gotDone bool
	for p := range ch {
		if p.Kind == ProgressError {
			t.Fatalf("unexpected error: %v", p.Err)
		}
		if p.Kind == ProgressDone {
			gotDone = true
			if p.Hash != h {
				t.Fatalf("hash mismatch")
			}
		}
	}
	if !gotDone {
		t.Fatal("expected a ProgressDone event")
	}
}
