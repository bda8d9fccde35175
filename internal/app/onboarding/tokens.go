package onboarding

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"

	"github.com/plancompass/onboarding/internal/domain"
)

// Session and instance ids are UUIDv7 so they sort by creation time in the
// stores. Nonces are not ids: they must be unguessable, so they come from
// the crypto source instead.

func newSessionID() domain.SessionID {
	return domain.SessionID(uuid.Must(uuid.NewV7()).String())
}

func newInstanceID() string {
	return uuid.Must(uuid.NewV7()).String()
}

func newNonce() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing means the host is broken; nothing to recover.
		panic(err)
	}
	return hex.EncodeToString(b)
}
