package substrate

import (
	"slices"
	"sync"
)

// Doc is one replica of a replicated document: the set of every op it knows
// and the state obtained by replaying them.
//
// A Doc is single-writer: Update transactions are serialized by a mutex and
// never nest. View may run concurrently with other views.
type Doc struct {
	mu      sync.RWMutex
	replica string
	clock   *Clock
	log     map[OpID]Op
	last    OpID
	st      *state
}

// NewDoc creates an empty replica. The replica id must be unique among
// every replica that will ever exchange updates with this one.
func NewDoc(replica string) *Doc {
	return &Doc{
		replica: replica,
		clock:   NewClock(),
		log:     make(map[OpID]Op),
		st:      newState(),
	}
}

// Replica returns the replica id.
func (d *Doc) Replica() string {
	return d.replica
}

// Update runs fn in a write transaction. When fn returns an error every op
// the transaction produced is discarded and the error is returned unchanged.
// On success the transaction's ops are committed and returned as an update.
func (d *Doc) Update(fn func(tx *Txn) error) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	saved := d.clock.Current()
	tx := &Txn{reader: reader{st: d.st}, doc: d}
	if err := fn(tx); err != nil {
		d.clock.Reset(saved)
		if len(tx.ops) > 0 {
			d.st = rebuild(d.ops())
		}
		return nil, err
	}

	for _, op := range tx.ops {
		d.log[op.ID] = op
	}
	if n := len(tx.ops); n > 0 {
		d.last = tx.ops[n-1].ID
	}
	return EncodeUpdate(tx.ops)
}

// View runs fn with read access to committed state.
func (d *Doc) View(fn func(r Reader) error) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return fn(reader{st: d.st})
}

// Apply integrates a remote update. Ops already known are ignored, so
// applying the same update twice is a no-op. A malformed update leaves the
// replica untouched.
func (d *Doc) Apply(update []byte) error {
	ops, err := DecodeUpdate(update)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	var fresh []Op
	for _, op := range ops {
		if _, ok := d.log[op.ID]; !ok {
			fresh = append(fresh, op)
		}
	}
	if len(fresh) == 0 {
		return nil
	}
	slices.SortFunc(fresh, compareOps)

	for _, op := range fresh {
		d.log[op.ID] = op
		d.clock.Observe(op.lastClock())
	}

	if fresh[0].ID.Compare(d.last) > 0 {
		for _, op := range fresh {
			_ = d.st.apply(op)
		}
	} else {
		d.st = rebuild(d.ops())
	}
	if last := fresh[len(fresh)-1].ID; last.Compare(d.last) > 0 {
		d.last = last
	}
	return nil
}

// EncodeState returns every op this replica knows as one update.
func (d *Doc) EncodeState() ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return EncodeUpdate(d.ops())
}

// OpCount returns the number of ops this replica knows.
func (d *Doc) OpCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.log)
}

func (d *Doc) ops() []Op {
	out := make([]Op, 0, len(d.log))
	for _, op := range d.log {
		out = append(out, op)
	}
	slices.SortFunc(out, compareOps)
	return out
}
