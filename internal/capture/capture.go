// Package capture resolves user tracking options into the immutable
// configuration of one tracked player.
package capture

import (
	"errors"
	"fmt"
	"slices"

	"github.com/OCAP2/mediatrack/internal/vocab"
)

// ErrUnknownEvent is wrapped by every capture entry that names neither an
// event nor a group.
var ErrUnknownEvent = errors.New("unknown capture event")

// DefaultPercentBoundaries are used when no boundaries are supplied.
var DefaultPercentBoundaries = []float64{10, 25, 50, 75}

// Options are the raw tracking options supplied by the user. Nil fields fall
// back to defaults.
type Options struct {
	CaptureEvents     []string  `json:"captureEvents,omitempty" mapstructure:"captureEvents"`
	PercentBoundaries []float64 `json:"percentBoundaries,omitempty" mapstructure:"percentBoundaries"`
	MediaLabel        string    `json:"mediaLabel,omitempty" mapstructure:"mediaLabel"`
}

// Config is the resolved configuration of one tracked player.
type Config struct {
	mediaID           string
	captureEvents     []vocab.EventName
	percentBoundaries []float64
	mediaLabel        string
}

// Resolve applies opts to the defaults for mediaID. Unknown capture entries
// are dropped and reported in the returned error, which joins one
// ErrUnknownEvent per entry; the returned Config is always usable.
func Resolve(mediaID string, opts *Options) (Config, error) {
	cfg := Config{
		mediaID:           mediaID,
		captureEvents:     slices.Clone(vocab.DefaultEvents),
		percentBoundaries: slices.Clone(DefaultPercentBoundaries),
	}
	if opts == nil {
		return cfg, nil
	}

	var errs []error
	if opts.CaptureEvents != nil {
		cfg.captureEvents, errs = resolveEvents(opts.CaptureEvents)
	}
	if opts.PercentBoundaries != nil {
		cfg.percentBoundaries = slices.Clone(opts.PercentBoundaries)
	}
	cfg.mediaLabel = opts.MediaLabel

	return cfg, errors.Join(errs...)
}

func resolveEvents(entries []string) ([]vocab.EventName, []error) {
	out := make([]vocab.EventName, 0, len(entries))
	var errs []error

	for _, entry := range entries {
		if group, ok := vocab.LookupGroup(entry); ok {
			for _, e := range group {
				if !slices.Contains(out, e) {
					out = append(out, e)
				}
			}
			continue
		}
		if e, ok := vocab.Lookup(entry); ok {
			if !slices.Contains(out, e) {
				out = append(out, e)
			}
			continue
		}
		errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownEvent, entry))
	}
	return out, errs
}

// MediaID is the id of the tracked iframe.
func (c Config) MediaID() string {
	return c.mediaID
}

// CaptureEvents returns the resolved events in order.
func (c Config) CaptureEvents() []vocab.EventName {
	return slices.Clone(c.captureEvents)
}

// PercentBoundaries returns the progress boundaries in order.
func (c Config) PercentBoundaries() []float64 {
	return slices.Clone(c.percentBoundaries)
}

// MediaLabel is the user-supplied media label, possibly empty.
func (c Config) MediaLabel() string {
	return c.mediaLabel
}

// Captures reports whether e is in the capture set.
func (c Config) Captures(e vocab.EventName) bool {
	return slices.Contains(c.captureEvents, e)
}

// CapturesAny reports whether any of events is in the capture set.
func (c Config) CapturesAny(events ...vocab.EventName) bool {
	for _, e := range events {
		if c.Captures(e) {
			return true
		}
	}
	return false
}

// TracksProgress reports whether percent-progress events have boundaries to
// fire at.
func (c Config) TracksProgress() bool {
	return c.Captures(vocab.PercentProgress) && len(c.percentBoundaries) > 0
}
