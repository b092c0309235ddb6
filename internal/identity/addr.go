package identity

import (
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
)

// Addr is the transport hint a ticket or a DM carries for one endpoint:
// its id, an optional relay url, and a set of direct socket addresses.
// Values are hints only — discovery may substitute fresher ones.
type Addr struct {
	ID     ID
	Relay  string
	Direct []ma.Multiaddr
}

// PeerID derives the libp2p peer id that corresponds to this endpoint's
// Ed25519 public key, for use with the underlying host.
func (a Addr) PeerID() (peer.ID, error) {
	return peerIDFromEd25519(a.ID)
}

// AddrInfo converts to the libp2p peer.AddrInfo the host's Connect/NewStream
// calls expect.
func (a Addr) AddrInfo() (peer.AddrInfo, error) {
	pid, err := a.PeerID()
	if err != nil {
		return peer.AddrInfo{}, err
	}
	return peer.AddrInfo{ID: pid, Addrs: a.Direct}, nil
}

// Equal reports whether two addresses name the same endpoint (address
// hints are not part of identity).
func (a Addr) Equal(other Addr) bool {
	return a.ID == other.ID
}

// IDFromPeerID recovers the application-level ID from a libp2p peer id.
// It only works for peers whose peer.ID was derived the way Bind derives
// its own (an "identity" multihash of a raw Ed25519 public key), which
// holds for every nexu endpoint since they all go through Bind.
func IDFromPeerID(pid peer.ID) (ID, error) {
	pub, err := pid.ExtractPublicKey()
	if err != nil {
		return ID{}, err
	}
	raw, err := pub.Raw()
	if err != nil {
		return ID{}, err
	}
	if len(raw) != 32 {
		return ID{}, errInvalidID
	}
	var id ID
	copy(id[:], raw)
	return id, nil
}
