package session

import (
	"time"

	"github.com/and161185/petflix/internal/model"
)

// State is the lifecycle position of the session.
type State int

const (
	// StateUnknown is the initial state before the first check.
	StateUnknown State = iota
	// StateChecking means a revalidation is in flight.
	StateChecking
	// StateAuthenticated means the backend confirmed the token.
	StateAuthenticated
	// StateAnonymous means there is no token or the backend rejected it.
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateChecking:
		return "checking"
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	}
	return "invalid"
}

// Snapshot is an immutable view of the session. Profile is set when
// Authenticated and may carry the last known profile while Checking.
type Snapshot struct {
	State     State
	Profile   *model.Profile
	CheckedAt time.Time
}

// Authenticated reports whether the snapshot holds a confirmed identity.
func (s Snapshot) Authenticated() bool {
	return s.State == StateAuthenticated && s.Profile != nil
}

func sameProfile(a, b *model.Profile) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
