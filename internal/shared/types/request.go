package types

// GenerateRequest is the inbound body for POST /api/generate
type GenerateRequest struct {
	Prompt string `json:"prompt" binding:"required"`
}

// Bridge message types exchanged between the sandboxed rendering context and
// the host shell. These are the only two inbound variants.
const (
	MessageStateUpdate = "STATE_UPDATE"
	MessageCommand     = "COMMAND"
)

// BridgeMessage is one message on the sandbox-to-host mailbox
type BridgeMessage struct {
	Type    string         `json:"type"`
	State   ComponentState `json:"state,omitempty"`
	Command string         `json:"command,omitempty"`
}

// OAuthResponse is the authorization-pending payload returned with HTTP 401
type OAuthResponse struct {
	Type        string `json:"type"` // always "OAUTH_REQUIRED"
	RedirectURL string `json:"redirectUrl"`
}

// OAuthRequired is the discriminator value for OAuthResponse.Type
const OAuthRequired = "OAUTH_REQUIRED"

// ConnectionsResponse is the body for GET /api/connections
type ConnectionsResponse struct {
	Connections []ToolConnection `json:"connections"`
}
