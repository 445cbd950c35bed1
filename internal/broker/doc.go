// Package broker integrates the external tool platform.
//
// The platform is treated as a black box keyed by entity id: the broker
// manages per-entity connections to external services, resolves action names
// to schemas suitable for model function calling, and executes actions with
// model-produced arguments.
//
// Organization:
//   - types: connections, action definitions, invocation results, auth errors
//   - catalog: the fixed category-to-actions tool catalog (YAML overridable)
//   - client: the REST implementation over go-resty with circuit breaking
//
// Requests are never retried. A transport or platform failure surfaces to the
// caller immediately, and a missing connection surfaces as AuthRequiredError
// carrying the authorization redirect URL.
package broker
