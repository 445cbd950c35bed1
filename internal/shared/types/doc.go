// Package types defines the shared data model for the generation pipeline
// and the render bridge.
//
// Core Types:
//   - Intent: GEN | UPDATE | COMMAND | PROMPT request categories
//   - Classification: classifier output with tool/layout strategy hints
//   - GeneratedContent: the validated envelope one generation cycle produces
//   - ComponentState: host-mirrored state of the generated component
//   - BridgeMessage: STATE_UPDATE / COMMAND messages from sandbox to host
//
// Types here carry no behavior beyond convenience methods; all lifecycle
// rules (reset-on-GEN, preserve-on-UPDATE) live in the shell package.
package types
