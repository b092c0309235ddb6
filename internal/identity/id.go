// Package identity owns the long-lived endpoint key, the address type peers
// advertise, and the libp2p host every other component dials through.
package identity

import (
	"strings"

	"github.com/multiformats/go-base32"
)

// textEncoding is the no-pad RFC4648 base32 alphabet used for every
// printable id, ticket and hash in the protocol.
var textEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// ID is an endpoint's long-lived public key: 32 raw Ed25519 bytes.
type ID [32]byte

// String renders the id as lowercase, no-pad base32 — the printable form
// used everywhere a human or a ticket needs to name an endpoint.
func (id ID) String() string {
	return strings.ToLower(textEncoding.EncodeToString(id[:]))
}

// ParseID decodes the printable form produced by String.
func ParseID(s string) (ID, error) {
	raw, err := textEncoding.DecodeString(strings.ToUpper(s))
	if err != nil {
		return ID{}, errInvalidID
	}
	if len(raw) != 32 {
		return ID{}, errInvalidID
	}
	var id ID
	copy(id[:], raw)
	return id, nil
}

// IsZero reports whether id is the zero value (never a valid generated key,
// but useful as a sentinel for "unknown sender").
func (id ID) IsZero() bool {
	return id == ID{}
}
