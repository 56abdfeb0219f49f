// ./internal/state/journal.go
package state

import (
	"github.com/yearn/pancake-v4-yv3-yield-hook/internal/types"
)

// DBJournal persists committed controller state and events to Postgres.
// It satisfies the controller's Journal interface.
type DBJournal struct{}

func (DBJournal) SaveState(st types.PoolYieldState) error {
	return SavePoolYieldState(st)
}

func (DBJournal) RecordEvent(ev YieldEvent) error {
	return RecordYieldEvent(ev)
}
