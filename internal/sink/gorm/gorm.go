// Package gorm persists tracked events as rows through gorm.
package gorm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/OCAP2/mediatrack/internal/config"
	"github.com/OCAP2/mediatrack/internal/database"
	"github.com/OCAP2/mediatrack/pkg/core"
)

// MediaEvent is one tracked event row.
type MediaEvent struct {
	ID          string    `gorm:"primaryKey;size:36"`
	Timestamp   time.Time `gorm:"index"`
	Schema      string
	Type        string `gorm:"index;size:32"`
	PlayerID    string `gorm:"index;size:128"`
	MediaLabel  string
	CurrentTime float64
	Duration    float64
	Percent     *float64
	Context     datatypes.JSON
}

func (MediaEvent) TableName() string {
	return "media_events"
}

// NewMediaEvent flattens e into a row. The full context is kept as JSON.
func NewMediaEvent(e *core.Event) (*MediaEvent, error) {
	ctxJSON, err := json.Marshal(e.Context)
	if err != nil {
		return nil, fmt.Errorf("marshal context: %w", err)
	}
	row := &MediaEvent{
		ID:         e.ID.String(),
		Timestamp:  e.Timestamp.UTC(),
		Schema:     e.Schema,
		Type:       e.Data.Type,
		PlayerID:   e.Data.PlayerID,
		MediaLabel: e.Data.MediaLabel,
		Context:    datatypes.JSON(ctxJSON),
	}
	if s, ok := e.Snapshot(); ok {
		row.CurrentTime = s.CurrentTime
		row.Duration = s.Duration
	}
	if p, ok := e.Progress(); ok {
		percent := p.Percent
		row.Percent = &percent
	}
	return row, nil
}

// Sink writes one MediaEvent per tracked event.
type Sink struct {
	cfg      config.GormConfig
	mgr      *database.Manager
	savePath string
}

// New creates a database sink. The connection is opened by Init.
func New(cfg config.GormConfig, log zerolog.Logger) *Sink {
	return &Sink{cfg: cfg, mgr: database.NewManager(log)}
}

// Init connects and migrates the media_events table.
func (s *Sink) Init() error {
	if err := s.mgr.Connect(s.cfg); err != nil {
		return fmt.Errorf("gorm sink: %w", err)
	}
	return s.mgr.Setup(&MediaEvent{})
}

// DB returns the underlying connection, nil before Init.
func (s *Sink) DB() *gorm.DB {
	return s.mgr.DB
}

func (s *Sink) Track(ctx context.Context, e *core.Event) error {
	if s.mgr.DB == nil {
		return errors.New("gorm sink: not initialized")
	}
	row, err := NewMediaEvent(e)
	if err != nil {
		return err
	}
	if err := s.mgr.DB.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("insert media event: %w", err)
	}
	return nil
}

// Close releases the connection. When Postgres was unreachable the
// in-memory fallback is first saved to the configured fallback file.
func (s *Sink) Close() error {
	var dumpErr error
	if s.mgr.ShouldSaveLocal && s.mgr.DB != nil {
		if dumpErr = s.mgr.DumpMemoryToDisk(); dumpErr == nil {
			s.savePath = s.mgr.SqliteFilePath
			s.mgr.Logger.Info().Str("path", s.savePath).Msg("Saved fallback database")
		} else {
			dumpErr = fmt.Errorf("gorm sink: %w", dumpErr)
		}
	}
	return errors.Join(dumpErr, s.mgr.Close())
}

// LastExportPath returns the file the fallback database was saved to, or
// "" when nothing was saved.
func (s *Sink) LastExportPath() string {
	return s.savePath
}
