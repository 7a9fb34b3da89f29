package adkclient

import (
	"fmt"

	"github.com/google/uuid"
)

// Session identifies one isolated conversation on the agent server. Sessions
// are never shared between scenarios; each scenario creates its own.
type Session struct {
	AppName   string
	UserID    string
	SessionID string
}

// NewSession returns a session for the given app and user with a fresh
// unique identifier.
func NewSession(appName, userID string) Session {
	return Session{
		AppName:   appName,
		UserID:    userID,
		SessionID: NewSessionID(),
	}
}

// NewSessionID generates a short unique session identifier.
func NewSessionID() string {
	id := uuid.New()
	return fmt.Sprintf("s_%x", id[:4])
}
