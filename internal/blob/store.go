package blob

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("nexu/blob")

// ProgressKind tags a Progress event's meaning, mirroring the add/export
// progress stream shape.
type ProgressKind int

const (
	ProgressSize ProgressKind = iota
	ProgressCopy
	ProgressDone
	ProgressError
)

// Progress is one event on an add or download progress stream.
type Progress struct {
	Kind  ProgressKind
	Bytes uint64 // total size for ProgressSize; cumulative bytes copied for ProgressCopy
	Hash  Hash   // valid once Kind == ProgressDone
	Err   error  // valid once Kind == ProgressError
}

// Store is a local content-addressed blob store rooted at a base
// directory. Entries are named by their hash so adding the same bytes
// twice is a no-op after the first write.
type Store struct {
	root string
}

// NewStore opens (creating if necessary) a content-addressed store rooted
// at dir.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("blob: create store dir: %w", err)
	}
	return &Store{root: dir}, nil
}

func (s *Store) pathFor(h Hash) string {
	return filepath.Join(s.root, h.String())
}

// AddBytes stores data under its BLAKE3 hash, streaming progress events on
// the returned channel. The channel is closed after the terminal event
// (ProgressDone or ProgressError).
func (s *Store) AddBytes(data []byte) <-chan Progress {
	out := make(chan Progress, 4)
	go func() {
		defer close(out)
		out <- Progress{Kind: ProgressSize, Bytes: uint64(len(data))}

		h, err := s.writeTemp(func(w io.Writer) (Hash, error) {
			hasher := NewHasher()
			mw := io.MultiWriter(w, hasher)
			if _, err := mw.Write(data); err != nil {
				return Hash{}, err
			}
			return hasher.Sum(), nil
		})
		if err != nil {
			out <- Progress{Kind: ProgressError, Err: err}
			return
		}
		out <- Progress{Kind: ProgressCopy, Bytes: uint64(len(data))}
		out <- Progress{Kind: ProgressDone, Hash: h}
	}()
	return out
}

// AddPath streams the file at path into the store, hashing as it copies so
// no second pass over the file is needed.
func (s *Store) AddPath(path string) <-chan Progress {
	out := make(chan Progress, 4)
	go func() {
		defer close(out)

		f, err := os.Open(path)
		if err != nil {
			out <- Progress{Kind: ProgressError, Err: fmt.Errorf("blob: open source: %w", err)}
			return
		}
		defer f.Close()

		if info, err := f.Stat(); err == nil {
			out <- Progress{Kind: ProgressSize, Bytes: uint64(info.Size())}
		}

		var copied uint64
		h, err := s.writeTemp(func(w io.Writer) (Hash, error) {
			hasher := NewHasher()
			mw := io.MultiWriter(w, hasher)
			buf := make([]byte, 256*1024)
			for {
				n, rerr := f.Read(buf)
				if n > 0 {
					if _, werr := mw.Write(buf[:n]); werr != nil {
						return Hash{}, werr
					}
					copied += uint64(n)
					out <- Progress{Kind: ProgressCopy, Bytes: copied}
				}
				if rerr == io.EOF {
					break
				}
				if rerr != nil {
					return Hash{}, rerr
				}
			}
			return hasher.Sum(), nil
		})
		if err != nil {
			out <- Progress{Kind: ProgressError, Err: err}
			return
		}
		out <- Progress{Kind: ProgressDone, Hash: h}
	}()
	return out
}

// writeTemp writes through fill into a temp file in the store root, then
// atomically renames it to its content-addressed final name. If the final
// name already exists, the temp file is discarded instead of overwritten —
// the existing bytes already satisfy the same hash.
func (s *Store) writeTemp(fill func(w io.Writer) (Hash, error)) (Hash, error) {
	tmp, err := os.CreateTemp(s.root, ".blob-write-*")
	if err != nil {
		return Hash{}, fmt.Errorf("blob: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	h, fillErr := fill(tmp)
	closeErr := tmp.Close()
	if fillErr != nil {
		os.Remove(tmpPath)
		return Hash{}, fmt.Errorf("blob: write: %w", fillErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return Hash{}, fmt.Errorf("blob: close temp file: %w", closeErr)
	}

	final := s.pathFor(h)
	if _, err := os.Stat(final); err == nil {
		os.Remove(tmpPath)
		return h, nil
	}
	if err := os.Rename(tmpPath, final); err != nil {
		os.Remove(tmpPath)
		return Hash{}, fmt.Errorf("blob: move into place: %w", err)
	}
	log.Debugw("blob stored", "hash", h.String())
	return h, nil
}

// Status reports how much of h's content the store holds. The store never
// keeps partial entries around between process restarts, so any entry not
// present as a whole file is Missing.
func (s *Store) Status(h Hash) Status {
	if _, err := os.Stat(s.pathFor(h)); err != nil {
		return StatusMissing
	}
	return StatusComplete
}

// GetBytes reads a complete blob's content into memory.
func (s *Store) GetBytes(h Hash) ([]byte, error) {
	b, err := os.ReadFile(s.pathFor(h))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("blob: read: %w", err)
	}
	return b, nil
}

// Export materializes h's content at dstPath.
func (s *Store) Export(h Hash, dstPath string) error {
	src, err := os.Open(s.pathFor(h))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("blob: open source: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return fmt.Errorf("blob: create export dir: %w", err)
	}
	dst, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("blob: create export file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("blob: copy export: %w", err)
	}
	return nil
}

// Put stores a completed, already-verified blob directly — used by the
// downloader once digest verification has passed so the store doesn't
// re-hash bytes it just streamed and checked.
func (s *Store) Put(h Hash, data []byte) error {
	final := s.pathFor(h)
	if _, err := os.Stat(final); err == nil {
		return nil
	}
	_, err := s.writeTemp(func(w io.Writer) (Hash, error) {
		_, err := w.Write(data)
		return h, err
	})
	return err
}
