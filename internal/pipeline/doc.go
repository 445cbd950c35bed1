// Package pipeline chains the model calls that turn a chat prompt into a
// generated component envelope.
//
// Stages:
//   - Classifier: one call resolving the prompt to GEN, UPDATE, COMMAND, or
//     PROMPT plus tool and layout strategy hints. Never fails.
//   - Planner: best-effort free-text layout plan, defaulting on any error.
//   - Fetcher: two-phase tool-data retrieval through the broker; empty
//     category selection short-circuits to nil with zero broker calls.
//   - Generator: one call producing the JSON envelope, cleaned and
//     validated before use.
//
// The orchestrator runs Classifier first, then Planner and Fetcher
// concurrently, then Generator. PROMPT classifications exit early with a
// conversational reply. Nothing in the pipeline retries: every external
// failure surfaces once and requires a fresh user action.
package pipeline
