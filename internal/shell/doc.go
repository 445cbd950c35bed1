// Package shell holds per-session chat state between the HTTP surface and
// the generation pipeline.
//
// A session owns the append-only transcript, the current generated content,
// and the host's canonical component state. State policy: GEN resets the
// state to the new envelope's initial state, UPDATE and COMMAND preserve it,
// STATE_UPDATE messages apply last-write-wins. When generation fails because
// authorization is required, the prompt is stored on the session and replayed
// once the OAuth round-trip completes.
package shell
