// Package gormdb provides a gorm-backed implementation of the storage.Store
// interface. It runs against PostgreSQL in production and against an embedded
// SQLite database for local use and tests.
package gormdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/mmynk/tontine/internal/storage"
)

// Ensure Store implements storage.Store
var _ storage.Store = (*Store)(nil)

// PostgresConfig holds the connection settings for PostgreSQL.
type PostgresConfig struct {
	Host     string
	Port     uint
	User     string
	Password string
	Database string
	SSLMode  string
}

// DSN builds the postgres data source name.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Store implements storage.Store using gorm.
type Store struct {
	*queries
	db     *gorm.DB
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	tracing bool
}

// WithLogger sets the logger used for migration messages.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithTracing enables OpenTelemetry spans for every query.
func WithTracing(enabled bool) Option {
	return func(o *options) { o.tracing = enabled }
}

// OpenPostgres connects to PostgreSQL and migrates the schema.
func OpenPostgres(cfg PostgresConfig, opts ...Option) (*Store, error) {
	return New(postgres.Open(cfg.DSN()), opts...)
}

// OpenSQLite opens an embedded SQLite database. Uses an in-memory database if path is empty.
func OpenSQLite(path string, opts ...Option) (*Store, error) {
	dsn := "file::memory:?cache=shared"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	}
	return New(sqlite.Open(dsn), opts...)
}

// New opens a gorm store on the given dialector and migrates the schema.
func New(dialector gorm.Dialector, opts ...Option) (*Store, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		// Create logger to throw away logs
		o.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Discard,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if db.Dialector.Name() == "sqlite" {
		// SQLite allows a single writer; one connection serializes transactions
		// and keeps a shared in-memory database alive.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get database handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if o.tracing {
		if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			return nil, fmt.Errorf("failed to enable tracing: %w", err)
		}
	}

	for _, model := range MigrateModels {
		o.logger.Debug(fmt.Sprintf("creating table: %T", model))
		if err := db.AutoMigrate(model); err != nil {
			return nil, fmt.Errorf("failed to migrate %T: %w", model, err)
		}
	}

	return &Store{queries: &queries{db: db}, db: db, logger: o.logger}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// InTx runs fn in a gorm transaction, committing only if fn succeeds.
func (s *Store) InTx(ctx context.Context, fn func(q storage.Queries) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&queries{db: tx})
	})
}

// isUniqueViolation reports whether err is a duplicate key error.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

// notFound maps gorm.ErrRecordNotFound to storage.ErrNotFound.
func notFound(err error, what, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %s: %w", what, id, storage.ErrNotFound)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}
