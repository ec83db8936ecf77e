// Package engine implements the turn orchestrator: a finite state machine that
// drives one user input through model calls and tool calls to a final answer,
// and persists the result as the thread's new checkpoint.
//
// # States
//
//	START -> AGENT -> (END | TOOLS)
//	TOOLS -> POST_TOOL -> (END | ROLLBACK)      strict policy
//	TOOLS -> AGENT                              loose policy
//	ROLLBACK -> (terminal | AGENT)              rollback policy end | retry
//
// START loads the committed history and appends the user message. AGENT asks
// the model for the next message and switches on the response tag. TOOLS runs
// every requested tool through the tool.Invoker; tool failures become
// error-flagged messages and never abort the turn. POST_TOOL turns the latest
// tool outcome into the visible answer and routes on its error flag. END
// stores the working set as a new checkpoint. ROLLBACK discards the attempt.
//
// # Guarantees
//
//   - Nothing is persisted before END, so cancelled, failed and rolled back
//     turns leave the previous checkpoint intact
//   - Every turn is bounded by a model-call budget (default 7); exhausting it
//     returns core.ErrStepLimitExceeded
//   - At most one turn per thread runs at a time (AdmissionWait queues,
//     AdmissionReject fails with core.ErrTurnInFlight)
//   - Each node execution gets a task id; its writes (messages, artifact,
//     route) are appended to the store's audit log when the turn ends
//
// # Observability
//
// Every turn opens an "engine.turn" span with one child span per state and
// per tool call. Structured logs are emitted through logging.Logger, with
// thread and turn ids attached when a *logging.TurnLogger is configured.
// Callbacks hook into model calls, tool calls, transitions, rollbacks,
// commits and failures.
package engine
