package rom

import (
	"errors"
	"fmt"
	"math"
	"testing"
)

// MediaType is a string enum.
type MediaType string

const (
	Audio MediaType = "AUDIO"
	Video MediaType = "VIDEO"
	Data  MediaType = "DATA"
)

// State is an integer enum with a String method.
type State int32

const (
	Idle State = iota
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Running:
		return "RUNNING"
	case Stopped:
		return "STOPPED"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Gain is a simple register.
type Gain struct {
	ID     string
	Volume float64
}

// Shape is an abstract register, implemented by Circle, Square and
// *Triangle.
type Shape interface {
	Area() float64
}

type Circle struct {
	Radius float64
}

func (c Circle) Area() float64 { return math.Pi * c.Radius * c.Radius }

type Square struct {
	Side float64
}

func (s Square) Area() float64 { return s.Side * s.Side }

type Triangle struct {
	Base   float64
	Height float64
}

func (t *Triangle) Area() float64 { return t.Base * t.Height / 2 }

// Mix is a register with every kind of field.
type Mix struct {
	Name    string
	Gains   []Gain
	Levels  map[string]int32
	Kind    MediaType
	State   State
	Primary *Gain `rom:",optional"`
	Shape   Shape `rom:"shape,optional"`
	Count   int64
	Ratio   float32
	Enabled bool
	Scratch string `rom:"-"`
}

// Node is a self-referential register.
type Node struct {
	Name string
	Next *Node `rom:",optional"`
}

// Flaky is a register with a property that always fails to read.
type Flaky struct {
	Name string
}

// Renamed is a register with explicitly named properties.
type Renamed struct {
	URLPath  string    `rom:"uri"`
	MaxDepth int32     `rom:",optional"`
	Media    MediaType `rom:"media,optional"`
}

// Endpoint is the wrapper of a remote class.
type Endpoint struct {
	h *Handle
}

func (e *Endpoint) RemoteHandle() *Handle { return e.h }

// Wired is a register that refers to remote objects.
type Wired struct {
	Sink  *Endpoint
	Peers []*Endpoint `rom:",optional"`
}

var errBroken = errors.New("broken property")

var (
	mediaTypeDesc = NewEnum("test", "MediaType", Audio, Video, Data)
	stateDesc     = NewEnum("test", "State", Idle, Running, Stopped)
	gainDesc      = Must(NewRegister[Gain]("test", "Gain"))
	shapeDesc     = NewAbstract[Shape]("test", "Shape")
	circleDesc    = Must(NewRegister[Circle]("test", "Circle"))
	squareDesc    = Must(NewRegister[Square]("test", "Square"))
	triangleDesc  = Must(NewRegister[Triangle]("test", "Triangle"))
	mixDesc       = Must(NewRegister[Mix]("test", "Mix"))
	nodeDesc      = Must(NewRegister[Node]("test", "Node"))
	flakyDesc     = Must(NewRegister[Flaky]("test", "Flaky",
			WithProperty("broken", String, func(Flaky) (any, error) { return nil, errBroken }),
			WithProperty("loud", String, func(f Flaky) (any, error) { return f.Name + "!", nil })))
	renamedDesc  = Must(NewRegister[Renamed]("test", "Renamed"))
	endpointDesc = NewRemoteClass("test", "Endpoint", func(h *Handle) *Endpoint { return &Endpoint{h} })
	wiredDesc    = Must(NewRegister[Wired]("test", "Wired"))
)

func testRegistry(t testing.TB) *Registry {
	t.Helper()
	reg := NewRegistry()
	for _, d := range []*Descriptor{
		mediaTypeDesc,
		stateDesc,
		gainDesc,
		shapeDesc,
		circleDesc,
		squareDesc,
		triangleDesc,
		mixDesc,
		nodeDesc,
		flakyDesc,
		renamedDesc,
		endpointDesc,
		wiredDesc,
	} {
		if _, err := reg.Register(d); err != nil {
			t.Fatalf("registering %s: %v", d, err)
		}
	}
	return reg
}

func testEngine(t testing.TB) *Engine {
	t.Helper()
	return New(testRegistry(t), Options{})
}

// mapResolver is a Resolver backed by a map.
type mapResolver map[string]any

func (m mapResolver) Lookup(ref string) (any, bool) {
	v, ok := m[ref]
	return v, ok
}

// materializer is a Materializer that creates handles on demand.
type materializer struct {
	mapResolver
	created int
}

func (m *materializer) GetOrCreate(ref string, class *Descriptor) (any, error) {
	if v, ok := m.mapResolver[ref]; ok {
		return v, nil
	}
	m.created++
	h := NewHandle(ref, class, true)
	var ret any = h
	if w := class.Wrap(h); w != nil {
		ret = h.SetWrapper(w)
	}
	m.mapResolver[ref] = h
	return ret, nil
}

// refMinter is a RefMinter that names objects by their type and a
// counter.
type refMinter struct {
	refs map[any]string
}

func (m *refMinter) ObjectRef(obj any) (string, error) {
	if m.refs == nil {
		m.refs = map[any]string{}
	}
	if r, ok := m.refs[obj]; ok {
		return r, nil
	}
	r := fmt.Sprintf("obj%d", len(m.refs)+1)
	m.refs[obj] = r
	return r, nil
}

// endpoint returns a committed endpoint wrapper for ref.
func endpoint(ref string, committed bool) *Endpoint {
	h := NewHandle(ref, endpointDesc, committed)
	ret := &Endpoint{h}
	h.SetWrapper(ret)
	return ret
}

func props(kvs ...any) *Props {
	if len(kvs)%2 != 0 {
		panic("odd number of props arguments")
	}
	ret := &Props{}
	for i := 0; i < len(kvs); i += 2 {
		ret.Set(kvs[i].(string), kvs[i+1])
	}
	return ret
}

func ptr[T any](v T) *T {
	return &v
}
