// Package persist provides the filesystem adapter that saves and restores
// everything AppState holds between runs: topics (with their chat
// history), contacts and the local profile.
package persist

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/pkg/errors"

	"github.com/nexu-chat/nexu/internal/appstate"
)

var log = logging.Logger("nexu/persist")

const (
	topicsFile   = "topics_data.bin"
	contactsFile = "contacts.bin"
	profileFile  = "profile.bin"
)

// Persister is the storage contract the bridge drives: save on mutation,
// load once at startup.
type Persister interface {
	SaveTopics(topics []*appstate.Topic) error
	SaveContacts(contacts []appstate.Profile) error
	SaveProfile(p appstate.Profile) error

	LoadTopics() ([]*appstate.Topic, error)
	LoadContacts() ([]appstate.Profile, error)
	LoadProfile() (appstate.Profile, error)
}

// FileStore is the default Persister: three binary files under a data
// directory, written via temp-file-then-rename, with writes batched onto a
// flush ticker so a burst of Save calls costs one rename, not N.
type FileStore struct {
	dir string

	mu      sync.Mutex
	pending struct {
		topics        []*appstate.Topic
		topicsDirty   bool
		contacts      []appstate.Profile
		contactsDirty bool
		profile       appstate.Profile
		profileDirty  bool
	}

	flushTicker *time.Ticker
	closeOnce   sync.Once
	closed      chan struct{}
}

// NewFileStore opens (creating if necessary) a FileStore rooted at dir and
// starts its background flush loop, flushing dirty records at most once
// per flushInterval.
func NewFileStore(dir string, flushInterval time.Duration) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "persist: create data dir")
	}
	fs := &FileStore{
		dir:         dir,
		flushTicker: time.NewTicker(flushInterval),
		closed:      make(chan struct{}),
	}
	go fs.flushLoop()
	return fs, nil
}

func (fs *FileStore) flushLoop() {
	for {
		select {
		case <-fs.flushTicker.C:
			if err := fs.Flush(); err != nil {
				log.Errorf("persist: periodic flush: %v", err)
			}
		case <-fs.closed:
			return
		}
	}
}

// SaveTopics buffers topics for the next flush.
func (fs *FileStore) SaveTopics(topics []*appstate.Topic) error {
	fs.mu.Lock()
	fs.pending.topics = topics
	fs.pending.topicsDirty = true
	fs.mu.Unlock()
	return nil
}

// SaveContacts buffers contacts for the next flush.
func (fs *FileStore) SaveContacts(contacts []appstate.Profile) error {
	fs.mu.Lock()
	fs.pending.contacts = contacts
	fs.pending.contactsDirty = true
	fs.mu.Unlock()
	return nil
}

// SaveProfile buffers the profile for the next flush.
func (fs *FileStore) SaveProfile(p appstate.Profile) error {
	fs.mu.Lock()
	fs.pending.profile = p
	fs.pending.profileDirty = true
	fs.mu.Unlock()
	return nil
}

// Flush writes every dirty buffered record to disk immediately. Callers
// that need a guaranteed-on-disk write right after a Save (tests, or a
// clean shutdown) should call this rather than wait for the ticker.
func (fs *FileStore) Flush() error {
	fs.mu.Lock()
	topics, topicsDirty := fs.pending.topics, fs.pending.topicsDirty
	contacts, contactsDirty := fs.pending.contacts, fs.pending.contactsDirty
	profile, profileDirty := fs.pending.profile, fs.pending.profileDirty
	fs.pending.topicsDirty = false
	fs.pending.contactsDirty = false
	fs.pending.profileDirty = false
	fs.mu.Unlock()

	if topicsDirty {
		if err := fs.writeFile(topicsFile, encodeTopics(topics)); err != nil {
			return errors.Wrap(err, "persist: flush topics")
		}
	}
	if contactsDirty {
		if err := fs.writeFile(contactsFile, encodeContacts(contacts)); err != nil {
			return errors.Wrap(err, "persist: flush contacts")
		}
	}
	if profileDirty {
		if err := fs.writeFile(profileFile, encodeProfileFile(profile)); err != nil {
			return errors.Wrap(err, "persist: flush profile")
		}
	}
	return nil
}

// writeFile writes data through a temp file in dir then renames it into
// place, the same durability discipline the blob store uses.
func (fs *FileStore) writeFile(name string, data []byte) error {
	tmp, err := os.CreateTemp(fs.dir, "."+name+"-*")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return errors.Wrap(writeErr, "write temp file")
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return errors.Wrap(closeErr, "close temp file")
	}
	if err := os.Rename(tmpPath, filepath.Join(fs.dir, name)); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, "move into place")
	}
	return nil
}

// LoadTopics reads topics_data.bin. A missing file is not an error: it
// means this is a fresh data directory.
func (fs *FileStore) LoadTopics() ([]*appstate.Topic, error) {
	data, err := os.ReadFile(filepath.Join(fs.dir, topicsFile))
	if err != nil {
		if os.IsNotExist(err) {
			log.Infof("persist: no existing topics file, starting fresh")
			return nil, nil
		}
		return nil, errors.Wrap(err, "persist: read topics")
	}
	topics, err := decodeTopics(data)
	if err != nil {
		return nil, errors.Wrap(err, "persist: decode topics")
	}
	return topics, nil
}

// LoadContacts reads contacts.bin, tolerating a missing file.
func (fs *FileStore) LoadContacts() ([]appstate.Profile, error) {
	data, err := os.ReadFile(filepath.Join(fs.dir, contactsFile))
	if err != nil {
		if os.IsNotExist(err) {
			log.Infof("persist: no existing contacts file, starting fresh")
			return nil, nil
		}
		return nil, errors.Wrap(err, "persist: read contacts")
	}
	contacts, err := decodeContacts(data)
	if err != nil {
		return nil, errors.Wrap(err, "persist: decode contacts")
	}
	return contacts, nil
}

// LoadProfile reads profile.bin, tolerating a missing file by returning
// the zero Profile — the caller fills in a fresh one keyed by the local id.
func (fs *FileStore) LoadProfile() (appstate.Profile, error) {
	data, err := os.ReadFile(filepath.Join(fs.dir, profileFile))
	if err != nil {
		if os.IsNotExist(err) {
			log.Infof("persist: no existing profile file, starting fresh")
			return appstate.Profile{}, nil
		}
		return appstate.Profile{}, errors.Wrap(err, "persist: read profile")
	}
	p, err := decodeProfileFile(data)
	if err != nil {
		return appstate.Profile{}, errors.Wrap(err, "persist: decode profile")
	}
	return p, nil
}

// Close stops the flush loop after a final flush.
func (fs *FileStore) Close() error {
	var err error
	fs.closeOnce.Do(func() {
		fs.flushTicker.Stop()
		close(fs.closed)
		err = fs.Flush()
	})
	return err
}
