package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJournalRevert(t *testing.T) {
	j := NewJournal()
	balance := 10

	set := func(v int) {
		prev := balance
		balance = v
		j.Append(func() { balance = prev })
	}

	set(20)
	outer := j.Snapshot()
	set(30)
	inner := j.Snapshot()
	set(40)

	j.RevertToSnapshot(inner)
	assert.Equal(t, 30, balance)
	assert.Equal(t, 2, j.Length())

	j.RevertToSnapshot(outer)
	assert.Equal(t, 20, balance)
	assert.Equal(t, 1, j.Length())
}

func TestJournalRevertInvalidatesLaterSnapshots(t *testing.T) {
	j := NewJournal()
	first := j.Snapshot()
	second := j.Snapshot()
	j.RevertToSnapshot(first)

	assert.Panics(t, func() { j.RevertToSnapshot(second) })
}

func TestJournalReset(t *testing.T) {
	j := NewJournal()
	n := 0
	j.Append(func() { n++ })
	j.Snapshot()
	j.Reset()

	assert.Equal(t, 0, j.Length())
	assert.Panics(t, func() { j.RevertToSnapshot(0) })
	assert.Equal(t, 0, n)
}
