// Package checkpoint provides implementations of core.CheckpointStore.
//
// InMemoryStore is the process-local base store: it cannot fail and clones
// every checkpoint on the way in and out. SQLStore persists the same contract
// in SQLite with gzip-compressed JSON state and goose-managed migrations, and
// reports medium failures as *core.StoreError.
package checkpoint
