// Package nodetable accumulates paginated NODE_TABLE responses into a
// complete NodeID -> LongAddress table.
package nodetable

import "github.com/tigotap/tigotap/frame"

// Entry is one (NodeAddress, LongAddress) pair carried by a NODE_TABLE
// response page.
type Entry struct {
	Node frame.NodeAddress
	Long frame.LongAddress
}

// Builder accumulates entries across successive request/response pairs
// for a single gateway until an empty (count=0) page finalizes it.
type Builder struct {
	table map[frame.NodeID]frame.LongAddress
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{table: make(map[frame.NodeID]frame.LongAddress)}
}

// Push feeds one response page's entries into the accumulator. An empty
// page (len(entries) == 0) finalizes the accumulation: if at least one
// entry was accumulated across the transfer, it returns the complete
// table and true, and the Builder resets to empty for reuse. An empty
// page terminating an empty accumulation returns (nil, false) instead
// of a finalized empty table — a transfer that produced nothing isn't
// a node table worth reporting. A non-empty page is merged in and Push
// returns (nil, false).
func (b *Builder) Push(entries []Entry) (map[frame.NodeID]frame.LongAddress, bool) {
	if len(entries) == 0 {
		if len(b.table) == 0 {
			return nil, false
		}
		table := b.table
		b.table = make(map[frame.NodeID]frame.LongAddress)
		return table, true
	}
	for _, e := range entries {
		b.table[e.Node] = e.Long
	}
	return nil, false
}
