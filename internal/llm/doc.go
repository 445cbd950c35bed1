// Package llm wraps the model-provider chat-completions API.
//
// The Client interface is the single seam the pipeline uses to talk to the
// model, which keeps the pipeline testable with a fake. The OpenAI
// implementation goes through a circuit breaker so a failing provider trips
// fast; it never retries.
package llm
