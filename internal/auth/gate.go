package auth

import (
	"crypto/subtle"

	"github.com/cyberxapi/gdrive-storage-api/internal/apperr"
)

// InvalidKeyMessage is the only message an access failure ever carries
const InvalidKeyMessage = "Invalid API Key"

// Gate checks a caller supplied key against the single configured secret
type Gate struct {
	key []byte
}

// NewGate creates a new access gate
func NewGate(key string) *Gate {
	return &Gate{key: []byte(key)}
}

// Check fails with an Unauthorized error unless supplied equals the configured key.
// An empty configured key rejects every caller.
func (g *Gate) Check(supplied string) error {
	if len(g.key) == 0 {
		return apperr.Unauthorized(InvalidKeyMessage)
	}
	if subtle.ConstantTimeCompare(g.key, []byte(supplied)) != 1 {
		return apperr.Unauthorized(InvalidKeyMessage)
	}
	return nil
}

// Enabled reports whether a key is configured
func (g *Gate) Enabled() bool {
	return len(g.key) > 0
}
