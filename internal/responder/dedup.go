package responder

import "sync"

// dedupSet remembers recently processed message IDs so a redelivered
// message-created event cannot compose a second reply. Capacity-bounded
// with FIFO eviction; per-process only, which matches the at-most-once
// requirement's scope (the store fires once per new message under normal
// operation, redelivery happens on reconnect replays within a process).
type dedupSet struct {
	mu       sync.Mutex
	capacity int
	ids      map[string]struct{}
	order    []string
	head     int
}

func newDedupSet(capacity int) *dedupSet {
	if capacity <= 0 {
		capacity = 4096
	}
	return &dedupSet{
		capacity: capacity,
		ids:      make(map[string]struct{}, capacity),
		order:    make([]string, 0, capacity),
	}
}

// Add records the ID and reports whether it was new. Returns false for an
// ID that was already present.
func (d *dedupSet) Add(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, seen := d.ids[id]; seen {
		return false
	}

	if len(d.order) < d.capacity {
		d.order = append(d.order, id)
	} else {
		// Ring is full: evict the oldest entry.
		delete(d.ids, d.order[d.head])
		d.order[d.head] = id
		d.head = (d.head + 1) % d.capacity
	}
	d.ids[id] = struct{}{}
	return true
}

// Len returns the number of remembered IDs.
func (d *dedupSet) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.ids)
}
