package homeassistant

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// keyScheme is the leading segment of every issued API key.
const keyScheme = "nn"

// prefixLen is the length of the public lookup segment of a key.
const prefixLen = 8

// ErrInvalidKey is returned when an API key is malformed, unknown, disabled,
// or does not match its stored hash.
var ErrInvalidKey = errors.New("invalid api key")

// IssuedKey is a freshly generated API key. Plain is shown to the user once
// and never stored.
type IssuedKey struct {
	Plain  string
	Prefix string
	Hash   string
}

// GenerateKey creates a key of the form nn_<prefix>_<secret>. Only the
// prefix and a bcrypt hash of the whole key are kept.
func GenerateKey(cost int) (IssuedKey, error) {
	prefix := strings.ReplaceAll(uuid.NewString(), "-", "")[:prefixLen]
	secret := strings.ReplaceAll(uuid.NewString(), "-", "")
	plain := keyScheme + "_" + prefix + "_" + secret

	hash, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return IssuedKey{}, err
	}
	return IssuedKey{Plain: plain, Prefix: prefix, Hash: string(hash)}, nil
}

// ParseKeyPrefix returns the lookup prefix of key.
func ParseKeyPrefix(key string) (string, error) {
	parts := strings.Split(strings.TrimSpace(key), "_")
	if len(parts) != 3 || parts[0] != keyScheme || len(parts[1]) != prefixLen || parts[2] == "" {
		return "", ErrInvalidKey
	}
	return parts[1], nil
}

// VerifyKey reports whether key matches hash.
func VerifyKey(hash, key string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(strings.TrimSpace(key))) == nil
}
