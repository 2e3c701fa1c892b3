package event

import "sync"

// Entry is a journaled record with its global sequence number. Sequence
// numbers start at 1 and follow the total order imposed on exchange calls.
type Entry struct {
	Seq    uint64 `json:"seq"`
	Record Record `json:"record"`
}

// Journal is the ordered, append-only log of emitted records. Subscribers
// get a buffered fan-out feed; a slow subscriber drops entries rather than
// blocking settlement.
type Journal struct {
	mu      sync.RWMutex
	entries []Entry
	subs    []chan Entry
}

func NewJournal() *Journal {
	return &Journal{entries: make([]Entry, 0, 1024)}
}

// Append records r and returns its journal entry.
func (j *Journal) Append(r Record) Entry {
	j.mu.Lock()
	e := Entry{Seq: uint64(len(j.entries)) + 1, Record: r}
	j.entries = append(j.entries, e)
	subs := j.subs
	j.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- e:
		default: // subscriber too slow, drop
		}
	}
	return e
}

// All returns a snapshot copy of every entry in order.
func (j *Journal) All() []Entry {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]Entry, len(j.entries))
	copy(out, j.entries)
	return out
}

// Len returns the number of journaled entries.
func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.entries)
}

// Subscribe returns a feed of future entries.
func (j *Journal) Subscribe() <-chan Entry {
	ch := make(chan Entry, 256)
	j.mu.Lock()
	j.subs = append(j.subs, ch)
	j.mu.Unlock()
	return ch
}
