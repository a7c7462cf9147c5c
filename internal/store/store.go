package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/ecowatch/internal/species"
)

// driverName is sqlite3 with a fold(text) function registered on every
// connection, used for case-insensitive name matching and ordering.
const driverName = "sqlite3_ecowatch"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("fold", species.Fold, true)
		},
	})
}

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - species table without CHECK constraints (never shipped by this store)
// 2 - CHECK constraints on name, population and humidity bounds
//
// Any other non-zero version is incompatible and the table is recreated.
const currentSchemaVersion = 2

// Clock supplies creation timestamps in epoch milliseconds.
type Clock interface {
	NowMillis() int64
}

type systemClock struct{}

func (systemClock) NowMillis() int64 { return time.Now().UnixMilli() }

// Recorder receives mutation counts. Implemented by metrics.Metrics.
type Recorder interface {
	StoreMutation(op string, err error)
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used to stamp created_at.
func WithClock(c Clock) Option {
	return func(s *Store) {
		s.clock = c
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Store) {
		s.recorder = r
	}
}

// Store provides durable storage for species entries.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db       *sql.DB
	clock    Clock
	logger   *slog.Logger
	recorder Recorder

	mu       sync.Mutex
	watchers map[*watcher]struct{}
	closed   bool
	done     chan struct{}
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and the schema automatically.
//
// This function is idempotent - safe to call multiple times.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	s := &Store{
		db:       db,
		clock:    systemClock{},
		logger:   slog.Default(),
		watchers: make(map[*watcher]struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.applySchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return s, nil
}

// Close stops every live observation and closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()

	return s.db.Close()
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates the species table, replacing it first when the file
// was written by an incompatible schema version.
func (s *Store) applySchema() error {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version != 0 && version != currentSchemaVersion {
		s.logger.Warn("incompatible schema version, recreating species table",
			"found", version, "want", currentSchemaVersion)
		if _, err := s.db.Exec("DROP TABLE IF EXISTS species"); err != nil {
			return fmt.Errorf("drop species: %w", err)
		}
	}

	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

func (s *Store) record(op string, err error) {
	if s.recorder != nil {
		s.recorder.StoreMutation(op, err)
	}
}
