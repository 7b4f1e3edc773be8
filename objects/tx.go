package objects

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/creachadair/mds/mapset"
	"go.uber.org/zap"

	"github.com/danderson/rom"
)

// ErrTxDone is returned by operations on a transaction that has
// already been committed or rolled back.
var ErrTxDone = errors.New("transaction already finished")

// A Tx is a client transaction. Objects created in a transaction have
// provisional references, and can only be flattened through the
// transaction until it commits.
//
// A Tx is safe for concurrent use.
type Tx struct {
	c *Client

	mu      sync.Mutex
	pending mapset.Set[*rom.Handle]
	done    bool
}

// Create returns a new uncommitted object of the given remote class,
// with a provisional reference.
func (tx *Tx) Create(class *rom.Descriptor) (any, error) {
	if cat, err := rom.Classify(class); err != nil || cat != rom.CategoryRemoteClass {
		return nil, fmt.Errorf("cannot create object of non-remote type %s", class)
	}

	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.done {
		return nil, ErrTxDone
	}
	h := rom.NewHandle(tx.c.newRef(), class, false)
	tx.pending.Add(h)
	tx.c.log.Debug("created uncommitted object", zap.Stringer("object", h))
	return objectOf(h), nil
}

// Flatten flattens v with e, allowing references to the
// transaction's own uncommitted objects. Uncommitted objects of other
// transactions are rejected.
func (tx *Tx) Flatten(e *rom.Engine, v any) (any, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.done {
		return nil, ErrTxDone
	}
	return e.FlattenPending(v, tx.pending.Has)
}

// FlattenParams flattens p with e, allowing references to the
// transaction's own uncommitted objects.
func (tx *Tx) FlattenParams(e *rom.Engine, p *rom.Props) (*rom.Props, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.done {
		return nil, ErrTxDone
	}
	return e.FlattenParamsPending(p, tx.pending.Has)
}

// Pending returns the provisional references of the transaction's
// uncommitted objects, in sorted order.
func (tx *Tx) Pending() []string {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	ret := make([]string, 0, tx.pending.Len())
	for h := range tx.pending {
		ret = append(ret, h.ObjectRef())
	}
	slices.Sort(ret)
	return ret
}

// Commit marks the transaction's objects committed, under the
// server-assigned references in refs, keyed by provisional reference.
// Committed objects are tracked by the client.
//
// refs must assign a reference to every pending object. If it does
// not, no object is committed and the transaction remains open.
func (tx *Tx) Commit(refs map[string]string) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.done {
		return ErrTxDone
	}

	var missing []string
	for h := range tx.pending {
		if _, ok := refs[h.ObjectRef()]; !ok {
			missing = append(missing, h.ObjectRef())
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("no committed reference for %q", missing)
	}

	var errs []error
	for h := range tx.pending {
		h.Commit(refs[h.ObjectRef()])
		if err := tx.c.Track(h); err != nil {
			errs = append(errs, err)
		}
	}
	tx.pending = nil
	tx.done = true
	return errors.Join(errs...)
}

// Rollback abandons the transaction. Its objects remain uncommitted
// forever.
func (tx *Tx) Rollback() {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.done {
		return
	}
	tx.c.log.Debug("rolled back transaction", zap.Int("objects", tx.pending.Len()))
	tx.pending = nil
	tx.done = true
}
