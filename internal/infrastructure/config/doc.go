// Package config loads service configuration from environment variables.
//
// Recognized variables cover the HTTP server (PORT, HOST), the model
// provider (OPENAI_API_KEY, OPENAI_MODEL, OPENAI_MINI_MODEL,
// OPENAI_BASE_URL), the tool broker (COMPOSIO_API_KEY, COMPOSIO_BASE_URL,
// COMPOSIO_ENTITY_ID, TOOL_CATALOG), caller identity (AUTH_ENABLED,
// AUTH_AUDIENCE, AUTH_ISSUER), logging (LOG_LEVEL, LOG_DEV), and rate
// limiting (RATE_LIMIT_*).
//
// No on-disk state: all configuration is resolved once at boot.
package config
