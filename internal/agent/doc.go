// Package agent contains the recipe finder's core (non-UI) logic.
//
// It builds the invocation options for the browser agent (tool allowlist,
// system prompt, model and the chrome-devtools tool server), hands a prompt to
// the query engine, and normalizes the engine's raw messages into a small
// closed set of events for terminals and logs.
package agent
