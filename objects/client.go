// Package objects provides the object tables that map object
// references to the local representation of remote objects, on each
// side of a connection.
//
// A [Client] tracks the remote objects a client knows about, and
// implements [rom.Materializer] so that references received from the
// server resolve to a single local wrapper per object. Objects created
// inside a [Tx] are uncommitted until the transaction commits.
//
// A [Server] tracks the objects a server exposes, and implements
// [rom.RefMinter] so that objects returned to clients are assigned
// stable references.
package objects

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/danderson/rom"
)

// A Client is the client-side table of remote objects. It is safe for
// concurrent use.
type Client struct {
	log *zap.Logger

	mu      sync.Mutex
	handles map[string]*rom.Handle

	newRefs atomic.Uint64
}

// NewClient returns an empty client object table. log may be nil.
func NewClient(log *zap.Logger) *Client {
	if log == nil {
		log = rom.Logger()
	}
	return &Client{
		log:     log,
		handles: map[string]*rom.Handle{},
	}
}

// Lookup returns the object known by ref: its wrapper if its class
// has one, or its handle.
func (c *Client) Lookup(ref string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.handles[ref]
	if !ok {
		return nil, false
	}
	return objectOf(h), true
}

// Handle returns the handle of the object known by ref, or nil.
func (c *Client) Handle(ref string) *rom.Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handles[ref]
}

// GetOrCreate returns the object known by ref: its wrapper if it has
// one, or its handle. If ref is unknown, a committed handle of the
// given remote class is created and wrapped. Provisional references
// of uncommitted objects are never materialized.
//
// Concurrent calls for the same ref return the same object.
func (c *Client) GetOrCreate(ref string, class *rom.Descriptor) (any, error) {
	if cat, err := rom.Classify(class); err != nil || cat != rom.CategoryRemoteClass {
		return nil, fmt.Errorf("cannot create object %q of non-remote type %s", ref, class)
	}

	if strings.HasPrefix(ref, provisionalPrefix) {
		return nil, fmt.Errorf("cannot materialize uncommitted object %q", ref)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.handles[ref]
	if !ok {
		h = rom.NewHandle(ref, class, true)
		c.handles[ref] = h
		c.log.Debug("materialized remote object",
			zap.String("ref", ref),
			zap.String("class", class.String()))
	}
	return objectOf(h), nil
}

// Track adds the committed object h to the table. Tracking the same
// handle again is a no-op; tracking a different handle under a known
// reference is an error.
func (c *Client) Track(h *rom.Handle) error {
	if !h.Committed() {
		return fmt.Errorf("cannot track uncommitted object %s", h)
	}
	ref := h.ObjectRef()

	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.handles[ref]; ok {
		if prev == h {
			return nil
		}
		return fmt.Errorf("object reference %q already tracked as %s", ref, prev)
	}
	c.handles[ref] = h
	c.log.Debug("tracking remote object", zap.Stringer("object", h))
	return nil
}

// Release removes the object known by ref from the table, and reports
// whether it was present.
func (c *Client) Release(ref string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.handles[ref]; !ok {
		return false
	}
	delete(c.handles, ref)
	c.log.Debug("released remote object", zap.String("ref", ref))
	return true
}

// Len returns the number of objects in the table.
func (c *Client) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handles)
}

// Begin starts a transaction, in which new objects can be created and
// referred to before the server has committed them.
func (c *Client) Begin() *Tx {
	return &Tx{c: c}
}

// newRef returns a fresh provisional reference.
// provisionalPrefix starts the references of objects created in a
// transaction and not yet committed.
const provisionalPrefix = "newref:"

func (c *Client) newRef() string {
	return fmt.Sprintf("%s%d", provisionalPrefix, c.newRefs.Add(1))
}

// objectOf returns the wrapper of h, creating it if h's class has a
// wrapper factory, or h itself.
func objectOf(h *rom.Handle) any {
	if w := h.Wrapper(); w != nil {
		return w
	}
	if w := h.Class().Wrap(h); w != nil {
		return h.SetWrapper(w)
	}
	return h
}
