package rom

import (
	"fmt"

	"go.uber.org/zap"
)

// DefaultMaxDepth is the nesting limit of engines constructed with a
// zero [Options.MaxDepth].
const DefaultMaxDepth = 64

// Options configures an [Engine].
type Options struct {
	// Logger receives warnings about register properties that could
	// not be read during flattening. If nil, the package's [Logger]
	// is used.
	Logger *zap.Logger
	// MaxDepth is the maximum nesting depth of values and wire data.
	// If zero, DefaultMaxDepth is used.
	MaxDepth int
}

// An Engine converts between in-memory values and wire values, using
// the types of a [Registry].
//
// An Engine holds no mutable state, and is safe for concurrent use
// if its registry and the resolvers passed to it are.
type Engine struct {
	reg      *Registry
	log      *zap.Logger
	maxDepth int
}

// New returns an engine that uses the types in reg.
func New(reg *Registry, opts Options) *Engine {
	ret := &Engine{
		reg:      reg,
		log:      opts.Logger,
		maxDepth: opts.MaxDepth,
	}
	if ret.log == nil {
		ret.log = Logger()
	}
	if ret.maxDepth <= 0 {
		ret.maxDepth = DefaultMaxDepth
	}
	return ret
}

// Registry returns the engine's type registry.
func (e *Engine) Registry() *Registry { return e.reg }

func (e *Engine) checkDepth(path string, depth int) error {
	if depth > e.maxDepth {
		if path == "" {
			return fmt.Errorf("nesting deeper than %d: %w", e.maxDepth, ErrMaxDepth)
		}
		return fmt.Errorf("%s: nesting deeper than %d: %w", path, e.maxDepth, ErrMaxDepth)
	}
	return nil
}

// Child path construction, used in error diagnostics.

func fieldPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}

func indexPath(parent string, i int) string {
	return fmt.Sprintf("%s[%d]", parent, i)
}

func keyPath(parent, key string) string {
	return fmt.Sprintf("%s.get('%s')", parent, key)
}
