package broker

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Connection is an entity's authorized link to one external service
type Connection struct {
	ID       string `json:"id"`
	AppName  string `json:"appName"`
	EntityID string `json:"entityId"`
	Status   string `json:"status"` // ACTIVE, INITIATED, EXPIRED
}

// Active reports whether the connection is usable for action execution
func (c *Connection) Active() bool {
	return c != nil && c.Status == "ACTIVE"
}

// ActionDefinition describes one invocable broker action and its input schema
type ActionDefinition struct {
	Name        string          `json:"name"`
	AppName     string          `json:"appName"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"parameters"`
}

// InvocationResult is the opaque outcome of one executed action
type InvocationResult struct {
	Action   string          `json:"action"`
	Response json.RawMessage `json:"response"`
}

// AuthRequiredError signals that the entity has no active connection for a
// service and must complete an interactive authorization round-trip first.
type AuthRequiredError struct {
	App         string
	RedirectURL string
}

func (e *AuthRequiredError) Error() string {
	return fmt.Sprintf("authorization required for %s", e.App)
}

// AsAuthRequired unwraps err into an AuthRequiredError if it is one
func AsAuthRequired(err error) (*AuthRequiredError, bool) {
	var authErr *AuthRequiredError
	if errors.As(err, &authErr) {
		return authErr, true
	}
	return nil, false
}

// ErrNotConnected is returned by connection lookups when no connection
// exists for the entity/service pair.
var ErrNotConnected = errors.New("no active connection for entity")
