// Package auth verifies scanner API keys. User accounts and sessions live
// in the surrounding admin system; this service only needs to know which
// counter is talking to it for audit attribution.
package auth

import "golang.org/x/crypto/bcrypt"

// APIKey is one configured key: the actor name recorded in history notes
// and the bcrypt hash of the secret.
type APIKey struct {
	Name string `yaml:"name"`
	Hash string `yaml:"hash"`
}

// Keyring verifies bearer tokens against the configured keys.
type Keyring struct {
	keys []APIKey
}

// NewKeyring builds a keyring. An empty key list disables auth (single
// counter setups run on a trusted LAN).
func NewKeyring(keys []APIKey) *Keyring {
	return &Keyring{keys: keys}
}

// Open reports whether the keyring accepts unauthenticated requests.
func (k *Keyring) Open() bool {
	return len(k.keys) == 0
}

// Verify checks token against every configured key and returns the
// matching actor name.
func (k *Keyring) Verify(token string) (actor string, ok bool) {
	if token == "" {
		return "", false
	}
	for _, key := range k.keys {
		if bcrypt.CompareHashAndPassword([]byte(key.Hash), []byte(token)) == nil {
			return key.Name, true
		}
	}
	return "", false
}

// HashKey produces a bcrypt hash for a new key secret; used by the
// -hash-key flag when provisioning a counter.
func HashKey(secret string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
