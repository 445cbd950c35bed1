// Package middleware provides the HTTP middleware stack: CORS, per-IP rate
// limiting, and caller-identity resolution. Identity maps each request to
// the entity id that scopes tool-broker connections; with auth disabled all
// callers share the configured fallback entity.
package middleware
