package ids

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

func New() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}

// NewSession returns a session id. Sessions use UUIDs because the id is
// embedded in the public websocket URL handed back to clients.
func NewSession() string {
	return uuid.NewString()
}

func NewBlueprint() string {
	return "bp_" + New()
}
