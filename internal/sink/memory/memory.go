// Package memory keeps tracked events in process and exports them as JSON
// when closed.
package memory

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/OCAP2/mediatrack/internal/config"
	"github.com/OCAP2/mediatrack/pkg/core"
)

// Export is the root JSON structure written on Close.
type Export struct {
	ExportedAt time.Time     `json:"exportedAt"`
	Count      int           `json:"count"`
	Events     []core.Record `json:"events"`
}

// Sink collects events in memory.
type Sink struct {
	cfg    config.MemoryConfig
	events []core.Record
	now    func() time.Time

	lastExportPath string
	mu             sync.RWMutex
}

// New creates a memory sink. An empty OutputDir disables the export.
func New(cfg config.MemoryConfig) *Sink {
	return &Sink{cfg: cfg, now: time.Now}
}

func (s *Sink) Init() error {
	return nil
}

// Track appends e.
func (s *Sink) Track(_ context.Context, e *core.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e.Record())
	return nil
}

// Events returns a snapshot of the tracked events in arrival order.
func (s *Sink) Events() []*core.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*core.Event, len(s.events))
	for i, r := range s.events {
		out[i] = r.Event
	}
	return out
}

// Reset drops all tracked events.
func (s *Sink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

// Close exports the tracked events.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.OutputDir == "" {
		return nil
	}
	return s.exportJSON()
}

// LastExportPath returns the file written by the last Close.
func (s *Sink) LastExportPath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastExportPath
}

func (s *Sink) exportJSON() error {
	now := s.now().UTC()
	filename := fmt.Sprintf("events_%s.json", now.Format("20060102_150405"))
	if s.cfg.CompressOutput {
		filename += ".gz"
	}
	outputPath := filepath.Join(s.cfg.OutputDir, filename)

	if err := os.MkdirAll(s.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	events := s.events
	if events == nil {
		events = []core.Record{}
	}
	export := Export{ExportedAt: now, Count: len(events), Events: events}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if err := writeExport(f, export, s.cfg.CompressOutput); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	s.lastExportPath = outputPath
	return nil
}

func writeExport(w io.Writer, export Export, compress bool) error {
	if !compress {
		return json.NewEncoder(w).Encode(export)
	}
	gz := gzip.NewWriter(w)
	if err := json.NewEncoder(gz).Encode(export); err != nil {
		_ = gz.Close()
		return err
	}
	return gz.Close()
}
