// Package core provides the foundational domain types and interfaces shared by
// the turn orchestrator, the checkpoint stores and the tool adapter:
//
//   - Messages (immutable, append-only conversation units)
//   - Checkpoints (latest snapshot of a thread's history plus artifact)
//   - Write records (append-only audit log per thread)
//   - CheckpointStore / WriteLog (pluggable persistence contracts)
//   - The error taxonomy used across the module
//
// Implementation concerns (persistence media, orchestration, providers) live in
// sibling packages; core only exposes small interfaces so backends can be
// swapped without touching the orchestrator.
package core
