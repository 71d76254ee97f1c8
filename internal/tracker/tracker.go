// Package tracker binds tracking sessions to embedded players and turns
// their callbacks and polled state into analytics events.
//
// A Tracker and its sessions are not safe for concurrent use. Every method,
// and every player callback, must run on the tracker's Scheduler.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/OCAP2/mediatrack/internal/capture"
	"github.com/OCAP2/mediatrack/internal/params"
	"github.com/OCAP2/mediatrack/internal/scheduler"
	"github.com/OCAP2/mediatrack/pkg/core"
	"github.com/OCAP2/mediatrack/pkg/youtube"
)

// ErrElementNotFound is returned by Enable when the page has no iframe with
// the requested id.
var ErrElementNotFound = errors.New("media element not found")

// Dispatcher delivers built events to analytics sinks.
type Dispatcher interface {
	Dispatch(ctx context.Context, e *core.Event, names ...string) error
}

// Dependencies holds all dependencies for a Tracker.
type Dependencies struct {
	Env        youtube.Environment
	Scheduler  scheduler.Scheduler
	Dispatcher Dispatcher
	Logger     *slog.Logger
	// Sinks restricts delivery to the named sinks. Empty means every
	// registered sink.
	Sinks []string
}

type apiState int

const (
	apiIdle apiState = iota
	apiLoading
	apiReady
)

// Tracker enables tracking for players on one page.
type Tracker struct {
	deps    Dependencies
	logger  *slog.Logger
	metrics *metrics

	api      apiState
	pending  []*Session
	sessions map[string]*Session
}

// New creates a Tracker.
func New(deps Dependencies) (*Tracker, error) {
	if deps.Env == nil || deps.Scheduler == nil || deps.Dispatcher == nil {
		return nil, errors.New("tracker: incomplete dependencies")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	m, err := newMetrics()
	if err != nil {
		return nil, err
	}

	return &Tracker{
		deps:     deps,
		logger:   logger,
		metrics:  m,
		sessions: make(map[string]*Session),
	}, nil
}

// Enable starts tracking the iframe with id mediaID. Unknown capture events
// in opts are logged and dropped. A missing iframe is logged and reported as
// ErrElementNotFound; nothing is tracked for it.
//
// The player API bootstrap is requested on the first call. Sessions enabled
// before the API is ready are bound when it becomes ready.
func (t *Tracker) Enable(mediaID string, opts *capture.Options) (*Session, error) {
	cfg, err := capture.Resolve(mediaID, opts)
	if err != nil {
		t.logger.Warn("dropping capture events", "mediaId", mediaID, "error", err)
	}

	src, ok := t.deps.Env.IFrameSrc(mediaID)
	if !ok {
		err := fmt.Errorf("%w: %s", ErrElementNotFound, mediaID)
		t.logger.Error("cannot enable tracking", "mediaId", mediaID, "error", err)
		return nil, err
	}

	q, err := params.Parse(src)
	if err != nil {
		t.logger.Warn("dropping source parameters", "mediaId", mediaID, "error", err)
	}
	if !q.Has(youtube.ParamEnableJSAPI) {
		q[youtube.ParamEnableJSAPI] = params.Param{Value: params.Value{Str: "1"}}
		base, _, _ := strings.Cut(src, "?")
		t.deps.Env.SetIFrameSrc(mediaID, base+"?"+q.Encode())
	}

	if old, ok := t.sessions[mediaID]; ok {
		t.logger.Info("replacing tracking session", "mediaId", mediaID)
		old.Close()
	}

	s := newSession(t, cfg, q)
	t.sessions[mediaID] = s
	t.metrics.active.Add(context.Background(), 1)
	t.logger.Info("tracking enabled",
		"mediaId", mediaID,
		"events", len(cfg.CaptureEvents()),
		"boundaries", cfg.PercentBoundaries(),
	)

	switch t.api {
	case apiIdle:
		t.api = apiLoading
		t.pending = append(t.pending, s)
		t.deps.Env.LoadIframeAPI(t.apiReady)
	case apiLoading:
		t.pending = append(t.pending, s)
	case apiReady:
		s.bind()
	}

	return s, nil
}

func (t *Tracker) apiReady() {
	t.api = apiReady
	pending := t.pending
	t.pending = nil
	t.logger.Debug("player API ready", "pending", len(pending))
	for _, s := range pending {
		if !s.closed {
			s.bind()
		}
	}
}

// Session returns the active session for mediaID.
func (t *Tracker) Session(mediaID string) (*Session, bool) {
	s, ok := t.sessions[mediaID]
	return s, ok
}

// Sessions returns the active sessions ordered by media id.
func (t *Tracker) Sessions() []*Session {
	out := make([]*Session, 0, len(t.sessions))
	for _, s := range t.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MediaID() < out[j].MediaID() })
	return out
}

// Active returns the number of active sessions.
func (t *Tracker) Active() int {
	return len(t.sessions)
}

// Close ends every session.
func (t *Tracker) Close() {
	for _, s := range t.Sessions() {
		s.Close()
	}
}

func (t *Tracker) release(s *Session) {
	if cur, ok := t.sessions[s.MediaID()]; ok && cur == s {
		delete(t.sessions, s.MediaID())
		t.metrics.active.Add(context.Background(), -1)
	}
}
