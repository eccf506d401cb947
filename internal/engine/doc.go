// Package engine runs the turn-resolution loop for a single query:
// alternate Anthropic Messages API calls with tool-server dispatches until
// the model answers without requesting a tool, or the round cap is hit.
//
// Invariants:
//   - History is append-only and strictly ordered; blocks are never
//     reordered or dropped.
//   - Every tool_use block is dispatched exactly once, in emission order,
//     and its tool_result is appended to history before the next model call.
//
// Flow:
//
//	user(text) -> assistant(tool_use) -> user(tool_result) -> assistant(text)
package engine
