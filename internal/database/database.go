// Package database opens the gorm connection used by the database sink.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/OCAP2/mediatrack/internal/config"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// MemoryDSN is the shared in-memory SQLite database used when no file is
// configured or Postgres is unreachable.
const MemoryDSN = "file::memory:?cache=shared"

var sqlitePragmas = []string{
	"PRAGMA user_version = 1;",
	"PRAGMA journal_mode = MEMORY;",
	"PRAGMA synchronous = OFF;",
	"PRAGMA cache_size = -32000;",
	"PRAGMA temp_store = MEMORY;",
}

// Manager handles database connections and operations.
type Manager struct {
	DB    *gorm.DB
	SqlDB *sql.DB
	// ShouldSaveLocal is set when the connection fell back to SQLite.
	ShouldSaveLocal bool
	// SqliteFilePath receives the in-memory database on DumpMemoryToDisk.
	SqliteFilePath string
	Logger         zerolog.Logger
}

// NewManager creates a new database manager.
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{Logger: log}
}

// Connect opens cfg.Driver. A Postgres connection that cannot be opened or
// pinged falls back to an in-memory SQLite database, to be saved to
// cfg.FallbackFile with DumpMemoryToDisk.
func (m *Manager) Connect(cfg config.GormConfig) error {
	var err error
	switch cfg.Driver {
	case DriverPostgres:
		m.DB, err = m.GetPostgresDB(cfg.DSN)
		if err == nil {
			err = m.ping()
		}
		if err != nil {
			m.Logger.Error().Err(err).Msg("Failed to connect to Postgres DB, trying SQLite")
			m.ShouldSaveLocal = true
			m.SqliteFilePath = cfg.FallbackFile
			if m.DB, err = m.GetSqliteDB(""); err != nil {
				return fmt.Errorf("failed to get local SQLite DB: %w", err)
			}
			err = m.ping()
		}
	case DriverSQLite, "":
		if m.DB, err = m.GetSqliteDB(cfg.DSN); err == nil {
			err = m.ping()
		}
	default:
		return fmt.Errorf("unknown database driver: %s", cfg.Driver)
	}
	if err != nil {
		return err
	}

	m.Logger.Info().Str("driver", m.DB.Dialector.Name()).Msg("Connected to database")
	if m.DB.Dialector.Name() == DriverPostgres {
		m.SqlDB.SetMaxOpenConns(10)
	}
	return nil
}

func (m *Manager) ping() error {
	sqlDB, err := m.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to validate connection: %w", err)
	}
	m.SqlDB = sqlDB
	return nil
}

// GetPostgresDB returns a connection to the Postgres database at dsn.
func (m *Manager) GetPostgresDB(dsn string) (*gorm.DB, error) {
	m.Logger.Debug().Msg("Connecting to Postgres DB")
	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        1000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
}

// GetSqliteDB returns a connection to a SQLite database.
// If path is empty, uses an in-memory database.
func (m *Manager) GetSqliteDB(path string) (*gorm.DB, error) {
	dsn := path
	if dsn == "" {
		dsn = MemoryDSN
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		CreateBatchSize:        500,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if path == "" {
		m.Logger.Info().Msg("Using local SQLite DB in memory")
	} else {
		m.Logger.Info().Str("path", path).Msg("Using local SQLite DB")
	}

	for _, pragma := range sqlitePragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("error setting PRAGMA: %w", err)
		}
	}
	return db, nil
}

// Setup migrates the given models.
func (m *Manager) Setup(models ...any) error {
	if m.DB == nil {
		return errors.New("database not connected")
	}
	m.Logger.Info().Msg("Migrating schema")
	if err := m.DB.AutoMigrate(models...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	m.Logger.Info().Msg("Database setup complete")
	return nil
}

// DumpMemoryToDisk vacuums the database into SqliteFilePath, replacing any
// previous dump.
func (m *Manager) DumpMemoryToDisk() error {
	if m.SqliteFilePath == "" {
		return errors.New("sqlite file path not set")
	}
	if err := os.MkdirAll(filepath.Dir(m.SqliteFilePath), 0755); err != nil {
		return fmt.Errorf("error creating DB directory: %w", err)
	}
	if _, err := os.Stat(m.SqliteFilePath); err == nil {
		if err := os.Remove(m.SqliteFilePath); err != nil {
			return fmt.Errorf("error removing existing DB file: %w", err)
		}
	}

	start := time.Now()
	if err := m.DB.Exec("VACUUM INTO ?", m.SqliteFilePath).Error; err != nil {
		return fmt.Errorf("error dumping memory DB to disk: %w", err)
	}
	m.Logger.Debug().Dur("duration", time.Since(start)).Msg("Dumped memory DB to disk")
	return nil
}

// Close releases the connection pool.
func (m *Manager) Close() error {
	if m.SqlDB == nil {
		return nil
	}
	return m.SqlDB.Close()
}
