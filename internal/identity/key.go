package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
)

// keyFileName is the name of the secret key file under the data directory.
const keyFileName = "key"

// LoadOrCreateKey loads the 32-byte Ed25519 seed at <dataDir>/key, or
// generates and durably persists a fresh one if the file does not exist.
func LoadOrCreateKey(dataDir string) (ed25519.PrivateKey, error) {
	path := filepath.Join(dataDir, keyFileName)

	seed, err := os.ReadFile(path)
	if err == nil {
		if len(seed) != ed25519.SeedSize {
			return nil, fmt.Errorf("identity: key file %s has wrong length %d", path, len(seed))
		}
		return ed25519.NewKeyFromSeed(seed), nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("identity: read key file: %w", err)
	}

	seed = make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("identity: generate key: %w", err)
	}

	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("identity: create data dir: %w", err)
	}
	if err := os.WriteFile(path, seed, 0o600); err != nil {
		return nil, fmt.Errorf("identity: persist key: %w", err)
	}

	return ed25519.NewKeyFromSeed(seed), nil
}

// PublicID extracts the endpoint ID from a secret key.
func PublicID(priv ed25519.PrivateKey) ID {
	var id ID
	copy(id[:], priv.Public().(ed25519.PublicKey))
	return id
}
