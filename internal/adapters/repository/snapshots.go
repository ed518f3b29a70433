package repository

import (
	"cmp"
	"maps"
	"slices"

	"github.com/okian/pulse/internal/domain/types"
)

// ClearSnapshots drops every materialized leaderboard.
func (tx *Tx) ClearSnapshots() {
	clear(tx.snapshots)
}

// PutSnapshot stores lb under its identity, replacing any previous one.
func (tx *Tx) PutSnapshot(lb types.Leaderboard) {
	tx.snapshots[lb.Identity.Key()] = lb
}

// Snapshot returns the materialized leaderboard for id.
func (tx *Tx) Snapshot(id types.Identity) (types.Leaderboard, bool) {
	lb, ok := tx.snapshots[id.Key()]
	return lb, ok
}

// Snapshots returns all materialized leaderboards ordered by identity key.
func (tx *Tx) Snapshots() []types.Leaderboard {
	out := slices.Collect(maps.Values(tx.snapshots))
	slices.SortFunc(out, func(a, b types.Leaderboard) int {
		return cmp.Compare(a.Identity.Key(), b.Identity.Key())
	})
	return out
}
