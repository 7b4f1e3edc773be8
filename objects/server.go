package objects

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danderson/rom"
)

// A Server is the server-side table of exposed objects. It is safe
// for concurrent use.
type Server struct {
	reg *rom.Registry
	log *zap.Logger

	mu   sync.Mutex
	refs map[any]string
	objs map[string]any
}

// NewServer returns an empty server object table, which names objects
// after their remote class in reg. log may be nil.
func NewServer(reg *rom.Registry, log *zap.Logger) *Server {
	if log == nil {
		log = rom.Logger()
	}
	return &Server{
		reg:  reg,
		log:  log,
		refs: map[any]string{},
		objs: map[string]any{},
	}
}

// ObjectRef returns the reference of obj, minting one if obj is not
// yet in the table. Minted references have the form
// "<uuid>_<module>.<class>".
//
// obj must be a value of a registered remote class, a [rom.Wrapper],
// or a *[rom.Handle], and must be comparable.
func (s *Server) ObjectRef(obj any) (string, error) {
	switch x := obj.(type) {
	case *rom.Handle:
		return x.ObjectRef(), nil
	case rom.Wrapper:
		if h := x.RemoteHandle(); h != nil {
			return h.ObjectRef(), nil
		}
	}

	t := reflect.TypeOf(obj)
	if t == nil || !t.Comparable() {
		return "", fmt.Errorf("cannot refer to object of type %v", t)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ref, ok := s.refs[obj]; ok {
		return ref, nil
	}
	d, err := s.reg.DescriptorFor(t)
	if err != nil {
		return "", err
	}
	if c, _ := rom.Classify(d); c != rom.CategoryRemoteClass {
		return "", fmt.Errorf("cannot refer to %s value: not a remote class", d)
	}
	ref := fmt.Sprintf("%s_%s.%s", uuid.NewString(), d.Module(), d.Name())
	s.refs[obj] = ref
	s.objs[ref] = obj
	s.log.Debug("exposed object", zap.String("ref", ref), zap.Stringer("class", d))
	return ref, nil
}

// Put adds obj to the table under ref.
func (s *Server) Put(ref string, obj any) error {
	if t := reflect.TypeOf(obj); t == nil || !t.Comparable() {
		return fmt.Errorf("cannot expose object of type %v", t)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.objs[ref]; ok && prev != obj {
		return fmt.Errorf("object reference %q already in use", ref)
	}
	if prev, ok := s.refs[obj]; ok && prev != ref {
		return fmt.Errorf("object already exposed as %q", prev)
	}
	s.refs[obj] = ref
	s.objs[ref] = obj
	return nil
}

// Lookup returns the object known by ref.
func (s *Server) Lookup(ref string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objs[ref]
	return obj, ok
}

// Release removes the object known by ref from the table, and
// reports whether it was present.
func (s *Server) Release(ref string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objs[ref]
	if !ok {
		return false
	}
	delete(s.objs, ref)
	delete(s.refs, obj)
	s.log.Debug("released object", zap.String("ref", ref))
	return true
}

// Len returns the number of objects in the table.
func (s *Server) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objs)
}
