// Package ws serves the live bridge channel between a mounted component
// and its host session.
//
// Each connection is keyed by session and carries two inbound message
// types: STATE_UPDATE mirrors component state into the session, and
// COMMAND runs one pipeline cycle whose envelope is pushed back down the
// same socket. The hub also delivers out-of-cycle envelopes, such as a
// pending prompt replayed after OAuth authorization completes.
package ws
