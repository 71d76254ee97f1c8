// Package monitor periodically reports tracking and delivery status.
package monitor

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/OCAP2/mediatrack/internal/dispatcher"
)

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Logger *slog.Logger
	// Sessions returns the number of active tracking sessions. It is called
	// from the monitor goroutine.
	Sessions func() int
	// Stats returns per-sink delivery counts.
	Stats      func() map[string]dispatcher.Stats
	StatusFile string
	Interval   time.Duration
}

// Status is one report.
type Status struct {
	Time     time.Time                   `json:"time"`
	Sessions int                         `json:"sessions"`
	Sinks    map[string]dispatcher.Stats `json:"sinks"`
}

// Service manages status monitoring
type Service struct {
	deps Dependencies

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	stopped  chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// GetStatus collects the current status.
func (s *Service) GetStatus() Status {
	st := Status{Time: time.Now().UTC(), Sinks: map[string]dispatcher.Stats{}}
	if s.deps.Sessions != nil {
		st.Sessions = s.deps.Sessions()
	}
	if s.deps.Stats != nil {
		st.Sinks = s.deps.Stats()
	}
	return st
}

// WriteStatus replaces the status file with the current status.
func (s *Service) WriteStatus() (Status, error) {
	st := s.GetStatus()
	if s.deps.StatusFile == "" {
		return st, nil
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return st, fmt.Errorf("marshal status: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.deps.StatusFile), 0755); err != nil {
		return st, fmt.Errorf("creating status directory: %w", err)
	}
	if err := os.WriteFile(s.deps.StatusFile, append(data, '\n'), 0644); err != nil {
		return st, fmt.Errorf("writing status file: %w", err)
	}
	return st, nil
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("monitor already running")
	}
	s.running = true
	s.stopChan = make(chan struct{})
	s.stopped = make(chan struct{})
	go s.run(s.stopChan, s.stopped)
	return nil
}

func (s *Service) run(stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)
	logger := s.deps.Logger
	logger.Debug("Starting status monitor", "interval", s.deps.Interval, "file", s.deps.StatusFile)

	ticker := time.NewTicker(s.deps.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			st, err := s.WriteStatus()
			if err != nil {
				logger.Error("Error writing status file", "error", err)
			}
			logger.Debug("status", "sessions", st.Sessions, "sinks", st.Sinks)
		}
	}
}

// Stop stops the status monitor and waits for a final report to be
// written.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopChan)
	stopped := s.stopped
	s.mu.Unlock()

	<-stopped
	if _, err := s.WriteStatus(); err != nil {
		s.deps.Logger.Error("Error writing status file", "error", err)
	}
}
