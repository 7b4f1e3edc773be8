package rom

import (
	"fmt"
	"sync"
)

// A Handle is the local representation of a server-owned remote
// object: an opaque object reference, the object's remote class, and
// whether the object has been committed on the server.
//
// A Handle's reference and commit state are changed only by the
// resolver that owns it, through [Handle.Commit]. The flattening and
// unflattening engines only read them.
type Handle struct {
	class *Descriptor

	mu        sync.RWMutex
	ref       string
	committed bool
	wrapper   any
}

// NewHandle returns a handle for the remote object ref of the given
// remote class.
func NewHandle(ref string, class *Descriptor, committed bool) *Handle {
	return &Handle{
		class:     class,
		ref:       ref,
		committed: committed,
	}
}

// Class returns the remote class of the object, or nil if unknown.
func (h *Handle) Class() *Descriptor { return h.class }

// TypeName returns the simple name of the object's remote class.
func (h *Handle) TypeName() string {
	if h.class == nil {
		return "<unknown>"
	}
	return h.class.Name()
}

// ObjectRef returns the object's reference. For an uncommitted
// object, the reference is provisional.
func (h *Handle) ObjectRef() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ref
}

// Committed reports whether the object has been committed.
func (h *Handle) Committed() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.committed
}

// Commit marks the object committed under the server-assigned
// reference ref.
func (h *Handle) Commit(ref string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ref = ref
	h.committed = true
}

// Wrapper returns the typed local wrapper of the object, or nil.
func (h *Handle) Wrapper() any {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.wrapper
}

// SetWrapper records w as the typed local wrapper of the object. The
// first wrapper set wins, and SetWrapper returns the wrapper in
// effect.
func (h *Handle) SetWrapper(w any) any {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.wrapper == nil {
		h.wrapper = w
	}
	return h.wrapper
}

// state returns the reference and commit state of the object,
// atomically.
func (h *Handle) state() (ref string, committed bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ref, h.committed
}

func (h *Handle) String() string {
	ref, committed := h.state()
	if !committed {
		return fmt.Sprintf("%s(%s, uncommitted)", h.TypeName(), ref)
	}
	return fmt.Sprintf("%s(%s)", h.TypeName(), ref)
}

// Wrapper is implemented by typed local wrappers of remote objects.
type Wrapper interface {
	RemoteHandle() *Handle
}

// remoteHandle returns the handle of v, if v is a remote object.
func remoteHandle(v any) (*Handle, bool) {
	switch x := v.(type) {
	case *Handle:
		return x, x != nil
	case Wrapper:
		if isNil(x) {
			return nil, false
		}
		h := x.RemoteHandle()
		return h, h != nil
	}
	return nil, false
}

// A Resolver maps object references to the local representation of
// remote objects.
type Resolver interface {
	// Lookup returns the object known by ref: its wrapper if it has
	// one, otherwise its *Handle on the client side or the object
	// itself on the server side.
	Lookup(ref string) (any, bool)
}

// A Materializer is a Resolver that can create local representations
// for references it has not seen before.
type Materializer interface {
	Resolver
	// GetOrCreate returns the object known by ref, creating a local
	// representation of the given remote class if needed. Concurrent
	// calls for the same ref return the same object.
	GetOrCreate(ref string, class *Descriptor) (any, error)
}

// A RefMinter maps server-side objects to their object references,
// minting new references as needed.
type RefMinter interface {
	ObjectRef(obj any) (string, error)
}
