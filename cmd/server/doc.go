// Package main is the entry point for the Casper generation service.
//
// The service turns natural-language prompts into self-contained interactive
// HTML/JS components. One generation cycle classifies the prompt, plans the
// layout and fetches third-party tool data in parallel, then generates the
// component envelope. Generated components run server-side in an isolated
// JavaScript context and talk to their session over a message bridge.
//
// The server provides:
//   - REST API for generation, preview, and tool connections
//   - WebSocket bridge channel for live component state and commands
//   - OAuth round-trip handling for external tool authorization
//   - Rate limiting, caller identity, and Prometheus metrics
//
// Configuration comes from environment variables (12-factor); see
// internal/infrastructure/config for the full set.
//
// Signals:
//   - SIGINT, SIGTERM: graceful shutdown
package main
