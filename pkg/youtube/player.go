// Package youtube describes the surface of the embedded YouTube IFrame player
// that the tracker consumes: its state queries, its callback registration and
// the host page environment that creates players.
package youtube

// Callback is the name of a native player callback.
type Callback string

// Native player callbacks.
const (
	OnReady                 Callback = "onReady"
	OnStateChange           Callback = "onStateChange"
	OnPlaybackQualityChange Callback = "onPlaybackQualityChange"
	OnPlaybackRateChange    Callback = "onPlaybackRateChange"
	OnError                 Callback = "onError"
	OnAPIChange             Callback = "onApiChange"
)

// Callbacks lists every native callback in registration order.
var Callbacks = []Callback{
	OnReady,
	OnStateChange,
	OnPlaybackQualityChange,
	OnPlaybackRateChange,
	OnError,
	OnAPIChange,
}

// Event is the payload a native callback delivers. Data carries a State for
// OnStateChange, an ErrorCode for OnError, a quality string for
// OnPlaybackQualityChange, a rate for OnPlaybackRateChange and nil otherwise.
type Event struct {
	Data any
}

// Listener receives native callback payloads.
type Listener func(Event)

// SphericalProperties are the viewing angles of a 360° video.
type SphericalProperties struct {
	Yaw   float64
	Pitch float64
	Roll  float64
	FOV   float64
}

// Player is the synchronous query surface of a live player plus its
// callback registration.
type Player interface {
	AddEventListener(cb Callback, fn Listener)

	CurrentTime() float64
	Duration() float64
	Volume() int
	IsMuted() bool
	PlaybackRate() float64
	AvailablePlaybackRates() []float64
	Playlist() []string
	PlaylistIndex() int
	VideoURL() string
	VideoLoadedFraction() float64
	PlayerState() State
	// SphericalProperties returns nil for non-spherical videos.
	SphericalProperties() *SphericalProperties
	IFrameID() string
}

// Environment is the host page around the players.
type Environment interface {
	// IFrameSrc returns the src attribute of the iframe with the given id.
	IFrameSrc(id string) (string, bool)
	SetIFrameSrc(id, src string)
	// LoadIframeAPI requests the player bootstrap script and arranges for
	// ready to be called once the API is available.
	LoadIframeAPI(ready func())
	// NewPlayer wraps the iframe with the given id in a live player.
	NewPlayer(id string) (Player, error)
}
