package agent

import "github.com/google/uuid"

// newRunID generates an identifier for a sub-agent run's dedicated
// session key.
func newRunID() string {
	return uuid.NewString()
}
