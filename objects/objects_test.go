package objects_test

import (
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/danderson/rom"
	"github.com/danderson/rom/objects"
	"github.com/danderson/rom/romtest"
)

func TestClientGetOrCreate(t *testing.T) {
	c := objects.NewClient(nil)

	obj, err := c.GetOrCreate("obj-1", romtest.WebRtcEndpointDesc)
	require.NoError(t, err)
	ep, ok := obj.(*romtest.WebRtcEndpoint)
	require.True(t, ok, "GetOrCreate returned %T, want *WebRtcEndpoint", obj)
	assert.Equal(t, "obj-1", ep.RemoteHandle().ObjectRef())
	assert.True(t, ep.RemoteHandle().Committed())

	again, err := c.GetOrCreate("obj-1", romtest.WebRtcEndpointDesc)
	require.NoError(t, err)
	assert.Same(t, ep, again)

	found, ok := c.Lookup("obj-1")
	require.True(t, ok)
	assert.Same(t, ep, found)
	assert.Same(t, ep.RemoteHandle(), c.Handle("obj-1"))

	// Classes without a Go wrapper are represented by their handle.
	obj, err = c.GetOrCreate("obj-2", romtest.MediaElementDesc)
	require.NoError(t, err)
	assert.IsType(t, &rom.Handle{}, obj)
	assert.Equal(t, 2, c.Len())

	_, err = c.GetOrCreate("obj-3", romtest.GainDesc)
	assert.Error(t, err)
	assert.Equal(t, 2, c.Len())

	_, err = c.GetOrCreate("newref:1", romtest.WebRtcEndpointDesc)
	assert.ErrorContains(t, err, "uncommitted")
	assert.Nil(t, c.Handle("newref:1"))
	assert.Equal(t, 2, c.Len())
}

func TestClientGetOrCreateRace(t *testing.T) {
	c := objects.NewClient(nil)

	const n = 32
	got := make([]any, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			obj, err := c.GetOrCreate("obj-1", romtest.RecorderEndpointDesc)
			if err != nil {
				t.Error(err)
				return
			}
			got[i] = obj
		}()
	}
	wg.Wait()

	for i := range got {
		assert.Same(t, got[0], got[i], "goroutine %d got a different object", i)
	}
	assert.Equal(t, 1, c.Len())
}

func TestClientTrackRelease(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	c := objects.NewClient(zap.New(core))

	h := rom.NewHandle("obj-1", romtest.MediaPipelineDesc, true)
	require.NoError(t, c.Track(h))
	require.NoError(t, c.Track(h), "tracking the same handle twice")
	assert.Error(t, c.Track(rom.NewHandle("obj-1", romtest.MediaPipelineDesc, true)))
	assert.Error(t, c.Track(rom.NewHandle("newref:9", romtest.MediaPipelineDesc, false)))
	assert.Same(t, h, c.Handle("obj-1"))

	assert.True(t, c.Release("obj-1"))
	assert.False(t, c.Release("obj-1"))
	assert.Zero(t, c.Len())
	assert.Nil(t, c.Handle("obj-1"))

	assert.Equal(t, 1, logs.FilterMessage("tracking remote object").Len())
	assert.Equal(t, 1, logs.FilterMessage("released remote object").Len())
}

func TestClientResolve(t *testing.T) {
	e := romtest.NewEngine(t)
	c := objects.NewClient(nil)

	wire := rom.NewProps(
		rom.Prop{Name: "source", Value: "obj-1"},
		rom.Prop{Name: "sink", Value: "obj-2"},
	)
	got, err := e.Unflatten("conn", wire, romtest.ConnectionDesc, c)
	require.NoError(t, err)
	conn := got.(romtest.Connection)

	again, err := e.Unflatten("conn", wire, romtest.ConnectionDesc, c)
	require.NoError(t, err)
	assert.Same(t, conn.Source, again.(romtest.Connection).Source)
	assert.Same(t, conn.Sink, again.(romtest.Connection).Sink)
	assert.Equal(t, 2, c.Len())

	back, err := e.Flatten(conn, false)
	require.NoError(t, err)
	assert.Equal(t, "obj-1", back.(*rom.Props).Get("source"))
}

func TestTx(t *testing.T) {
	e := romtest.NewEngine(t)
	c := objects.NewClient(nil)
	tx := c.Begin()

	obj, err := tx.Create(romtest.WebRtcEndpointDesc)
	require.NoError(t, err)
	ep := obj.(*romtest.WebRtcEndpoint)
	provisional := ep.RemoteHandle().ObjectRef()
	assert.True(t, strings.HasPrefix(provisional, "newref:"), "provisional ref %q", provisional)
	assert.False(t, ep.RemoteHandle().Committed())

	_, err = e.Flatten(ep, false)
	var ue rom.UncommittedReferenceError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "WebRtcEndpoint", ue.TypeName)

	wire, err := tx.Flatten(e, ep)
	require.NoError(t, err)
	assert.Equal(t, provisional, wire)

	params, err := tx.FlattenParams(e, rom.NewProps(rom.Prop{Name: "endpoint", Value: ep}))
	require.NoError(t, err)
	assert.Equal(t, provisional, params.Get("endpoint"))

	rec, err := tx.Create(romtest.RecorderEndpointDesc)
	require.NoError(t, err)
	assert.Len(t, tx.Pending(), 2)

	_, err = tx.Create(romtest.GainDesc)
	assert.Error(t, err)

	// Commit fails atomically if a reference is missing.
	require.Error(t, tx.Commit(map[string]string{provisional: "obj-1"}))
	assert.False(t, ep.RemoteHandle().Committed())

	recRef := rec.(rom.Wrapper).RemoteHandle().ObjectRef()
	require.NoError(t, tx.Commit(map[string]string{
		provisional: "obj-1",
		recRef:      "obj-2",
	}))
	assert.True(t, ep.RemoteHandle().Committed())
	assert.Equal(t, "obj-1", ep.RemoteHandle().ObjectRef())
	assert.Equal(t, 2, c.Len())

	wire, err = e.Flatten(ep, false)
	require.NoError(t, err)
	assert.Equal(t, "obj-1", wire)

	got, err := e.Unflatten("ep", "obj-1", romtest.WebRtcEndpointDesc, c)
	require.NoError(t, err)
	assert.Same(t, ep, got)

	assert.ErrorIs(t, tx.Commit(nil), objects.ErrTxDone)
	_, err = tx.Create(romtest.WebRtcEndpointDesc)
	assert.ErrorIs(t, err, objects.ErrTxDone)
}

func TestTxRollback(t *testing.T) {
	e := romtest.NewEngine(t)
	c := objects.NewClient(nil)
	tx := c.Begin()

	obj, err := tx.Create(romtest.MediaPipelineDesc)
	require.NoError(t, err)
	tx.Rollback()
	tx.Rollback()

	assert.Empty(t, tx.Pending())
	assert.ErrorIs(t, tx.Commit(nil), objects.ErrTxDone)
	assert.Zero(t, c.Len())

	_, err = e.Flatten(obj, false)
	assert.ErrorAs(t, err, new(rom.UncommittedReferenceError))
	_, err = tx.Flatten(e, obj)
	assert.ErrorIs(t, err, objects.ErrTxDone)
	_, err = tx.FlattenParams(e, rom.NewProps(rom.Prop{Name: "pipeline", Value: obj}))
	assert.ErrorIs(t, err, objects.ErrTxDone)
}

func TestTxForeignObject(t *testing.T) {
	e := romtest.NewEngine(t)
	c := objects.NewClient(nil)
	tx1, tx2 := c.Begin(), c.Begin()

	obj1, err := tx1.Create(romtest.WebRtcEndpointDesc)
	require.NoError(t, err)
	obj2, err := tx2.Create(romtest.WebRtcEndpointDesc)
	require.NoError(t, err)

	wire, err := tx1.Flatten(e, obj1)
	require.NoError(t, err)
	assert.Equal(t, obj1.(rom.Wrapper).RemoteHandle().ObjectRef(), wire)

	var ue rom.UncommittedReferenceError
	_, err = tx1.Flatten(e, obj2)
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, obj2.(rom.Wrapper).RemoteHandle().ObjectRef(), ue.Ref)

	_, err = tx2.FlattenParams(e, rom.NewProps(
		rom.Prop{Name: "source", Value: obj2},
		rom.Prop{Name: "sink", Value: obj1},
	))
	assert.ErrorAs(t, err, &ue)
}

// player is the server-side implementation of a remote class.
type player struct {
	uri string
}

var playerDesc = rom.NewRemoteClass[player]("media", "Player", nil)

// playlist is a register returned by server methods.
type playlist struct {
	Name    string
	Current *player
	Players []*player
}

var playlistDesc = rom.Must(rom.NewRegister[playlist]("media", "Playlist"))

func serverRegistry(t *testing.T) *rom.Registry {
	reg := rom.NewRegistry()
	for _, d := range []*rom.Descriptor{playerDesc, playlistDesc} {
		_, err := reg.Register(d)
		require.NoError(t, err)
	}
	return reg
}

func TestServerObjectRef(t *testing.T) {
	s := objects.NewServer(serverRegistry(t), nil)

	p := &player{"a.webm"}
	ref, err := s.ObjectRef(p)
	require.NoError(t, err)
	id, class, ok := strings.Cut(ref, "_")
	require.True(t, ok, "ref %q has no class suffix", ref)
	_, err = uuid.Parse(id)
	assert.NoError(t, err)
	assert.Equal(t, "media.Player", class)

	again, err := s.ObjectRef(p)
	require.NoError(t, err)
	assert.Equal(t, ref, again)

	other, err := s.ObjectRef(&player{"a.webm"})
	require.NoError(t, err)
	assert.NotEqual(t, ref, other)

	got, ok := s.Lookup(ref)
	require.True(t, ok)
	assert.Same(t, p, got)
	assert.Equal(t, 2, s.Len())

	_, err = s.ObjectRef(playlist{})
	assert.Error(t, err, "non-comparable value")
	_, err = s.ObjectRef(&playlist{})
	assert.Error(t, err, "register value")

	h := rom.NewHandle("obj-9", playerDesc, true)
	ref, err = s.ObjectRef(h)
	require.NoError(t, err)
	assert.Equal(t, "obj-9", ref)

	assert.True(t, s.Release(other))
	assert.False(t, s.Release(other))
	assert.Equal(t, 1, s.Len())
}

func TestServerFlattenResult(t *testing.T) {
	reg := serverRegistry(t)
	e := rom.New(reg, rom.Options{})
	s := objects.NewServer(reg, nil)

	a, b := &player{"a"}, &player{"b"}
	pl := playlist{Name: "mix", Current: a, Players: []*player{a, b}}
	wire, err := e.FlattenResult(pl, s)
	require.NoError(t, err)

	p := wire.(*rom.Props)
	cur := p.Get("current").(string)
	players := p.Get("players").([]any)
	require.Len(t, players, 2)
	assert.Equal(t, cur, players[0])
	assert.NotEqual(t, cur, players[1])

	// The server resolves its own references back to the objects.
	got, err := e.Unflatten("playlist", wire, playlistDesc, s)
	require.NoError(t, err)
	assert.Equal(t, pl, got)

	// Plain flattening has no way to name server objects.
	_, err = e.Flatten(pl, false)
	assert.ErrorAs(t, err, new(rom.UnsupportedTypeError))
}

func TestServerPut(t *testing.T) {
	s := objects.NewServer(serverRegistry(t), nil)
	p := &player{"a"}

	require.NoError(t, s.Put("p1", p))
	require.NoError(t, s.Put("p1", p))
	assert.Error(t, s.Put("p1", &player{"b"}))
	assert.Error(t, s.Put("p2", p))
	assert.Error(t, s.Put("p3", []int{1}))

	ref, err := s.ObjectRef(p)
	require.NoError(t, err)
	assert.Equal(t, "p1", ref)
}
