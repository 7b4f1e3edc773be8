// Package romtest provides the types of a small media server module,
// "core", for use in tests.
package romtest

import (
	_ "embed"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/danderson/rom"
)

// Module is the name of the test module.
const Module = "core"

// CoreKMD is the module descriptor of the core module, in YAML.
//
//go:embed core.kmd.yaml
var CoreKMD []byte

// MediaType is the kind of media carried by a connection.
type MediaType string

const (
	Audio MediaType = "AUDIO"
	Video MediaType = "VIDEO"
	Data  MediaType = "DATA"
)

// MediaState is the connectivity state of an element.
type MediaState string

const (
	Disconnected MediaState = "DISCONNECTED"
	Connected    MediaState = "CONNECTED"
)

// Gain is a volume setting.
type Gain struct {
	ID     string
	Volume float64
}

// Tag is a key/value annotation.
type Tag struct {
	Key   string
	Value string
}

// Fraction is a rational number.
type Fraction struct {
	Numerator   int32
	Denominator int32
}

// Stats is implemented by all statistics reports.
type Stats interface {
	StatsID() string
}

// StatsBase holds the properties common to all statistics reports.
type StatsBase struct {
	ID        string
	Timestamp float64
}

func (s StatsBase) StatsID() string { return s.ID }

type ElementStats struct {
	StatsBase
	InputAudioLatency float64
}

type EndpointStats struct {
	ElementStats
	AudioE2ELatency float64
	MediaTypes      []MediaType `rom:",optional"`
}

// Connection describes a media flow between two endpoints.
type Connection struct {
	Source *WebRtcEndpoint
	Sink   *RecorderEndpoint
	Type   MediaType         `rom:",optional"`
	Tags   map[string]string `rom:",optional"`
}

// MediaPipeline is the wrapper of a remote media pipeline.
type MediaPipeline struct{ h *rom.Handle }

func (p *MediaPipeline) RemoteHandle() *rom.Handle { return p.h }

// WebRtcEndpoint is the wrapper of a remote WebRTC endpoint.
type WebRtcEndpoint struct{ h *rom.Handle }

func (e *WebRtcEndpoint) RemoteHandle() *rom.Handle { return e.h }

// RecorderEndpoint is the wrapper of a remote recorder.
type RecorderEndpoint struct{ h *rom.Handle }

func (e *RecorderEndpoint) RemoteHandle() *rom.Handle { return e.h }

// Descriptors of the core module.
var (
	MediaTypeDesc  = rom.NewEnum(Module, "MediaType", Audio, Video, Data)
	MediaStateDesc = rom.NewEnum(Module, "MediaState", Disconnected, Connected)

	GainDesc          = rom.Must(rom.NewRegister[Gain](Module, "Gain"))
	TagDesc           = rom.Must(rom.NewRegister[Tag](Module, "Tag"))
	FractionDesc      = rom.Must(rom.NewRegister[Fraction](Module, "Fraction"))
	StatsDesc         = rom.NewAbstract[Stats](Module, "Stats")
	ElementStatsDesc  = rom.Must(rom.NewRegister[ElementStats](Module, "ElementStats"))
	EndpointStatsDesc = rom.Must(rom.NewRegister[EndpointStats](Module, "EndpointStats"))
	ConnectionDesc    = rom.Must(rom.NewRegister[Connection](Module, "Connection"))

	MediaObjectDesc   = rom.RemoteClass(Module, "MediaObject")
	MediaElementDesc  = rom.RemoteClass(Module, "MediaElement")
	MediaPipelineDesc = rom.NewRemoteClass(Module, "MediaPipeline", func(h *rom.Handle) *MediaPipeline {
		return &MediaPipeline{h}
	})
	WebRtcEndpointDesc = rom.NewRemoteClass(Module, "WebRtcEndpoint", func(h *rom.Handle) *WebRtcEndpoint {
		return &WebRtcEndpoint{h}
	})
	RecorderEndpointDesc = rom.NewRemoteClass(Module, "RecorderEndpoint", func(h *rom.Handle) *RecorderEndpoint {
		return &RecorderEndpoint{h}
	})
)

// Descriptors returns all descriptors of the core module.
func Descriptors() []*rom.Descriptor {
	return []*rom.Descriptor{
		MediaTypeDesc,
		MediaStateDesc,
		GainDesc,
		TagDesc,
		FractionDesc,
		StatsDesc,
		ElementStatsDesc,
		EndpointStatsDesc,
		ConnectionDesc,
		MediaObjectDesc,
		MediaElementDesc,
		MediaPipelineDesc,
		WebRtcEndpointDesc,
		RecorderEndpointDesc,
	}
}

// NewRegistry returns a registry containing the core module.
func NewRegistry() *rom.Registry {
	reg := rom.NewRegistry()
	for _, d := range Descriptors() {
		reg.MustRegister(d)
	}
	return reg
}

// NewEngine returns an engine for the core module that logs to t.
func NewEngine(t testing.TB) *rom.Engine {
	return rom.New(NewRegistry(), rom.Options{
		Logger: zaptest.NewLogger(t),
	})
}

// NewWebRtcEndpoint returns a wrapped WebRtcEndpoint handle.
func NewWebRtcEndpoint(ref string, committed bool) *WebRtcEndpoint {
	return wrap(rom.NewHandle(ref, WebRtcEndpointDesc, committed)).(*WebRtcEndpoint)
}

// NewRecorderEndpoint returns a wrapped RecorderEndpoint handle.
func NewRecorderEndpoint(ref string, committed bool) *RecorderEndpoint {
	return wrap(rom.NewHandle(ref, RecorderEndpointDesc, committed)).(*RecorderEndpoint)
}

func wrap(h *rom.Handle) any {
	return h.SetWrapper(h.Class().Wrap(h))
}
