package tracker

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/OCAP2/mediatrack/internal/tracker"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

type metrics struct {
	emitted metric.Int64Counter
	active  metric.Int64UpDownCounter
}

func newMetrics() (*metrics, error) {
	m := meter()

	emitted, err := m.Int64Counter(
		"tracker.events.emitted",
		metric.WithDescription("Total events built and handed to the dispatcher"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating emitted counter: %w", err)
	}

	active, err := m.Int64UpDownCounter(
		"tracker.sessions.active",
		metric.WithDescription("Number of tracked players"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating sessions counter: %w", err)
	}

	return &metrics{emitted: emitted, active: active}, nil
}
