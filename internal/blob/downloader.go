package blob

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/libp2p/go-libp2p/core/network"

	"github.com/nexu-chat/nexu/internal/identity"
	"github.com/nexu-chat/nexu/internal/wire"
)

// request/response control bytes for the blob transfer protocol. The
// protocol is a single request/response exchange per stream: the
// requester sends the wanted hash as one frame, the provider answers with
// one frame holding a status byte — followed, only on statusFound, by the
// 8-byte big-endian size — and then the raw content written directly to
// the stream (no further framing; the declared size already delimits it).
const (
	statusNotFound byte = 0
	statusFound    byte = 1
)

// ServeRequests registers ep's blob-protocol accept handler, answering
// every request out of store. One request is served per stream; the
// stream is closed after the response completes or fails.
func ServeRequests(ep *identity.Endpoint, store *Store) {
	ep.Accept(identity.BlobProtocol, func(s network.Stream) {
		defer s.Close()
		if err := serveOne(s, store); err != nil {
			log.Debugf("blob serve: %v", err)
		}
	})
}

func serveOne(s network.Stream, store *Store) error {
	frame, err := wire.ReadFrame(s)
	if err != nil {
		return fmt.Errorf("read request: %w", err)
	}
	if len(frame) != 32 {
		return fmt.Errorf("malformed request: %d bytes", len(frame))
	}
	var h Hash
	copy(h[:], frame)

	if store.Status(h) != StatusComplete {
		return wire.WriteFrame(s, []byte{statusNotFound})
	}

	data, err := store.GetBytes(h)
	if err != nil {
		return wire.WriteFrame(s, []byte{statusNotFound})
	}

	header := make([]byte, 1+8)
	header[0] = statusFound
	binary.BigEndian.PutUint64(header[1:], uint64(len(data)))
	if err := wire.WriteFrame(s, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := s.Write(data); err != nil {
		return fmt.Errorf("write content: %w", err)
	}
	return nil
}

// Downloader pulls blobs from a named provider over the blob protocol.
type Downloader struct {
	ep    *identity.Endpoint
	store *Store
}

// NewDownloader returns a Downloader that verifies into store.
func NewDownloader(ep *identity.Endpoint, store *Store) *Downloader {
	return &Downloader{ep: ep, store: store}
}

// Download fetches hash from provider, verifying the digest while
// streaming. Progress events mirror AddBytes/AddPath: ProgressSize once
// the remote-declared size is known, ProgressCopy as bytes arrive,
// ProgressDone on success (digest matched) and ProgressError otherwise —
// including ErrVerification if the streamed bytes don't hash to h.
func (d *Downloader) Download(ctx context.Context, h Hash, provider identity.Addr) <-chan Progress {
	out := make(chan Progress, 4)
	go func() {
		defer close(out)
		if err := d.download(ctx, h, provider, out); err != nil {
			out <- Progress{Kind: ProgressError, Err: err}
		}
	}()
	return out
}

func (d *Downloader) download(ctx context.Context, h Hash, provider identity.Addr, out chan<- Progress) error {
	if d.store.Status(h) == StatusComplete {
		out <- Progress{Kind: ProgressDone, Hash: h}
		return nil
	}

	s, err := d.ep.Connect(ctx, provider, identity.BlobProtocol)
	if err != nil {
		return fmt.Errorf("blob: connect provider: %w", err)
	}
	defer s.Close()

	if err := wire.WriteFrame(s, h[:]); err != nil {
		return fmt.Errorf("blob: send request: %w", err)
	}

	header, err := wire.ReadFrame(s)
	if err != nil {
		return fmt.Errorf("blob: read header: %w", err)
	}
	if len(header) == 0 || header[0] == statusNotFound {
		return ErrNotFound
	}
	if len(header) != 1+8 {
		return fmt.Errorf("blob: malformed header")
	}
	size := binary.BigEndian.Uint64(header[1:])
	out <- Progress{Kind: ProgressSize, Bytes: size}

	hasher := NewHasher()
	buf := make([]byte, 256*1024)
	data := make([]byte, 0, size)
	var copied uint64
	for copied < size {
		n, err := s.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			hasher.Write(chunk)
			data = append(data, chunk...)
			copied += uint64(n)
			out <- Progress{Kind: ProgressCopy, Bytes: copied}
		}
		if err != nil {
			if err == io.EOF && copied == size {
				break
			}
			return fmt.Errorf("blob: read content: %w", err)
		}
	}

	if hasher.Sum() != h {
		return ErrVerification
	}
	if err := d.store.Put(h, data); err != nil {
		return err
	}
	out <- Progress{Kind: ProgressDone, Hash: h}
	return nil
}
