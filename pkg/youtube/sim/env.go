package sim

import (
	"errors"
	"fmt"
	"time"

	"github.com/OCAP2/mediatrack/internal/scheduler"
	"github.com/OCAP2/mediatrack/pkg/youtube"
)

// ErrNoIFrame is returned by NewPlayer for unknown iframe ids.
var ErrNoIFrame = errors.New("no iframe with that id")

// DefaultAPILatency is the delay between requesting the bootstrap script and
// the API ready callback.
const DefaultAPILatency = 50 * time.Millisecond

type iframe struct {
	src   string
	video Video
}

// Environment is a simulated host page. All methods must be called on the
// scheduler thread.
type Environment struct {
	sched      scheduler.Scheduler
	apiLatency time.Duration

	iframes  map[string]*iframe
	players  map[string]*Player
	apiLoads int
	apiReady bool
	onReady  []func()
}

var _ youtube.Environment = (*Environment)(nil)

// NewEnvironment creates an empty page.
func NewEnvironment(sched scheduler.Scheduler) *Environment {
	return &Environment{
		sched:      sched,
		apiLatency: DefaultAPILatency,
		iframes:    make(map[string]*iframe),
		players:    make(map[string]*Player),
	}
}

// SetAPILatency changes the delay before the API becomes ready.
func (e *Environment) SetAPILatency(d time.Duration) {
	e.apiLatency = d
}

// AddIFrame places an embed iframe on the page.
func (e *Environment) AddIFrame(id, src string, video Video) {
	e.iframes[id] = &iframe{src: src, video: video}
}

// IFrameSrc implements youtube.Environment.
func (e *Environment) IFrameSrc(id string) (string, bool) {
	f, ok := e.iframes[id]
	if !ok {
		return "", false
	}
	return f.src, true
}

// SetIFrameSrc implements youtube.Environment.
func (e *Environment) SetIFrameSrc(id, src string) {
	if f, ok := e.iframes[id]; ok {
		f.src = src
	}
}

// LoadIframeAPI implements youtube.Environment.
func (e *Environment) LoadIframeAPI(ready func()) {
	e.apiLoads++
	e.sched.AfterFunc(e.apiLatency, func() {
		ready()
		e.apiReady = true
		hooks := e.onReady
		e.onReady = nil
		for _, fn := range hooks {
			fn()
		}
	})
}

// AfterReady runs fn once the page's ready callback has returned, or on the
// next scheduler turn when the API is already ready.
func (e *Environment) AfterReady(fn func()) {
	if e.apiReady {
		e.sched.Post(fn)
		return
	}
	e.onReady = append(e.onReady, fn)
}

// APILoads returns how many times the bootstrap script was requested.
func (e *Environment) APILoads() int {
	return e.apiLoads
}

// NewPlayer implements youtube.Environment.
func (e *Environment) NewPlayer(id string) (youtube.Player, error) {
	f, ok := e.iframes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoIFrame, id)
	}
	p := NewPlayer(id, f.video, e.sched)
	e.players[id] = p
	return p, nil
}

// Player returns the player created for the iframe id.
func (e *Environment) Player(id string) (*Player, bool) {
	p, ok := e.players[id]
	return p, ok
}
