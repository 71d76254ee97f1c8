package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/OCAP2/mediatrack/internal/config"
	"github.com/OCAP2/mediatrack/internal/dispatcher"
	"github.com/OCAP2/mediatrack/internal/sink"
)

const healthcheckTimeout = 5 * time.Second

type namedSink struct {
	name string
	sink sink.Sink
}

type healthchecker interface {
	Healthcheck(ctx context.Context) error
}

type exporter interface {
	LastExportPath() string
}

// dispatchOptions returns the registration options of the named sink.
// Every sink but the in-process memory collector is fed through a queue so
// that slow I/O never holds up the tracking loop.
func dispatchOptions(name string, dc config.DispatchConfig, logged bool) []dispatcher.Option {
	var opts []dispatcher.Option
	if logged {
		opts = append(opts, dispatcher.Logged())
	}
	if name == sink.Memory || dc.BufferSize <= 0 {
		return opts
	}
	opts = append(opts, dispatcher.Buffered(dc.BufferSize))
	if dc.Blocking {
		opts = append(opts, dispatcher.Blocking())
	}
	return opts
}

// startSinks creates, initializes and registers the named sinks. A sink
// that cannot be created or initialized is logged and skipped.
func startSinks(d *dispatcher.Dispatcher, names []string, deps sink.Dependencies, dc config.DispatchConfig, logger *slog.Logger, logged bool) []namedSink {

	started := make([]namedSink, 0, len(names))
	for _, name := range names {
		s, err := sink.New(name, deps)
		if err != nil {
			logger.Error("Failed to create sink", "sink", name, "error", err)
			continue
		}
		if err := s.Init(); err != nil {
			logger.Error("Failed to initialize sink", "sink", name, "error", err)
			continue
		}
		if hc, ok := s.(healthchecker); ok {
			ctx, cancel := context.WithTimeout(context.Background(), healthcheckTimeout)
			if err := hc.Healthcheck(ctx); err != nil {
				logger.Warn("Sink healthcheck failed", "sink", name, "error", err)
			}
			cancel()
		}
		d.Register(name, s, dispatchOptions(name, dc, logged)...)
		started = append(started, namedSink{name: name, sink: s})
		logger.Info("Sink initialized", "sink", name)
	}
	return started
}

func closeSinks(sinks []namedSink, logger *slog.Logger) {
	for _, s := range sinks {
		if err := s.sink.Close(); err != nil {
			logger.Error("Failed to close sink", "sink", s.name, "error", err)
			continue
		}
		if ex, ok := s.sink.(exporter); ok && ex.LastExportPath() != "" {
			logger.Info("Events exported", "sink", s.name, "path", ex.LastExportPath())
		}
	}
}
