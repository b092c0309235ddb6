package bridge

import (
	"context"
	"testing"

	"github.com/nexu-chat/nexu/internal/appstate"
	"github.com/nexu-chat/nexu/internal/identity"
)

// fakePersister is an in-memory Persister stand-in so bridge logic can be
// exercised without touching the filesystem.
type fakePersister struct {
	topics   []*appstate.Topic
	contacts []appstate.Profile
	profile  appstate.Profile

	savedContacts [][]appstate.Profile
	savedProfiles []appstate.Profile
}

func (f *fakePersister) SaveTopics(topics []*appstate.Topic) error { f.topics = topics; return nil }
func (f *fakePersister) SaveContacts(contacts []appstate.Profile) error {
	f.savedContacts = append(f.savedContacts, contacts)
	return nil
}
func (f *fakePersister) SaveProfile(p appstate.Profile) error {
	f.savedProfiles = append(f.savedProfiles, p)
	return nil
}
func (f *fakePersister) LoadTopics() ([]*appstate.Topic, error)    { return f.topics, nil }
func (f *fakePersister) LoadContacts() ([]appstate.Profile, error) { return f.contacts, nil }
func (f *fakePersister) LoadProfile() (appstate.Profile, error)    { return f.profile, nil }

func newTestBridge(self identity.ID, persister *fakePersister) *Bridge {
	state := appstate.New(self)
	return New(self, state, nil, nil, nil, nil, nil, persister)
}

func TestBootstrapWithEmptyPersistence(t *testing.T) {
	var self identity.ID
	self[0] = 1
	b := newTestBridge(self, &fakePersister{})

	if err := b.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	got := b.state.Profile()
	if got.ID != self || got.Name != self.String() {
		t.Fatalf("expected the default fresh profile to survive a no-op bootstrap, got %+v", got)
	}
}

func TestRemoveContactPersists(t *testing.T) {
	var self, contactID identity.ID
	self[0], contactID[0] = 1, 2
	persister := &fakePersister{}
	b := newTestBridge(self, persister)

	b.state.UpsertContact(appstate.Profile{ID: contactID, Name: "friend"})
	b.doRemoveContact(RemoveContact{Peer: contactID})

	if _, ok := b.state.Contact(contactID); ok {
		t.Fatal("contact should have been removed from state")
	}
	if len(persister.savedContacts) == 0 {
		t.Fatal("expected RemoveContact to persist the updated contact list")
	}
	if len(persister.savedContacts[len(persister.savedContacts)-1]) != 0 {
		t.Fatal("persisted contact list should be empty after removal")
	}
}

func TestModifyProfileWithNoContactsSkipsDmFanout(t *testing.T) {
	var self identity.ID
	self[0] = 1
	persister := &fakePersister{}
	b := newTestBridge(self, persister)

	// b.dmT is nil — if doModifyProfile tried to DM any contact it would
	// panic on the nil transport. With zero contacts it must not.
	b.doModifyProfile(ModifyProfile{Name: "renamed"})

	got := b.state.Profile()
	if got.Name != "renamed" {
		t.Fatalf("Profile().Name = %q, want %q", got.Name, "renamed")
	}
	if len(persister.savedProfiles) != 1 || persister.savedProfiles[0].Name != "renamed" {
		t.Fatalf("expected profile to be persisted once, got %+v", persister.savedProfiles)
	}
}
