// Package state provides the undo journal that makes a settlement atomic:
// every mutation made while a fill is in flight appends its inverse, and a
// failed fill reverts to the snapshot taken when it started.
package state

import "fmt"

// Journal records undo closures. It is not safe for concurrent use.
type Journal struct {
	entries   []func()
	snapshots []int
}

func NewJournal() *Journal {
	return &Journal{}
}

// Append records the inverse of a mutation that has just been applied.
func (j *Journal) Append(undo func()) {
	j.entries = append(j.entries, undo)
}

// Snapshot returns an id that can later be passed to RevertToSnapshot.
func (j *Journal) Snapshot() int {
	id := len(j.snapshots)
	j.snapshots = append(j.snapshots, len(j.entries))
	return id
}

// RevertToSnapshot undoes, newest first, every mutation recorded since
// the snapshot was taken. Snapshots taken after id are invalidated.
func (j *Journal) RevertToSnapshot(id int) {
	if id < 0 || id >= len(j.snapshots) {
		panic(fmt.Errorf("revision id %v cannot be reverted", id))
	}
	idx := j.snapshots[id]
	for i := len(j.entries) - 1; i >= idx; i-- {
		j.entries[i]()
	}
	j.entries = j.entries[:idx]
	j.snapshots = j.snapshots[:id]
}

// Length is the number of undo entries currently held.
func (j *Journal) Length() int {
	return len(j.entries)
}

// Reset drops all entries and snapshots, making the current state final.
func (j *Journal) Reset() {
	j.entries = j.entries[:0]
	j.snapshots = j.snapshots[:0]
}
