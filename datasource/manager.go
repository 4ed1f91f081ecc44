// Package datasource manages named connection pools. Each declared model is
// bound to a datasource name; the well-known default name is used unless the
// model overrides it.
package datasource

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/talangzhe005/objsql/schema"
)

// Default is the well-known datasource name
const Default = schema.DefaultDataSource

// Dialect names used for placeholder rewriting and identifier quoting
const (
	Postgres = "postgres"
	SQLite   = "sqlite3"
	MySQL    = "mysql"
)

// ErrUnknownDataSource is returned when no pool is registered under a name
var ErrUnknownDataSource = errors.New("unknown datasource")

// Config describes one pool definition
type Config struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type pool struct {
	db      *sql.DB
	dialect string
}

// Manager holds named connection pools and hands them to the execution
// engine by datasource name
type Manager struct {
	mu     sync.RWMutex
	pools  map[string]*pool
	logger *zap.Logger
}

// Option configures a Manager
type Option func(*Manager)

// WithLogger sets the logger used for pool lifecycle events
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager creates an empty pool manager
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		pools:  make(map[string]*pool),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open opens a pool under the given name
func (m *Manager) Open(name string, cfg Config) error {
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return fmt.Errorf("open datasource %s: %w", name, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	m.Register(name, cfg.Driver, db)
	return nil
}

// Register installs an already-opened *sql.DB under the given name. An
// existing pool under the same name is replaced (and left to its owner to
// close); tests use this to install mock connections.
func (m *Manager) Register(name, driver string, db *sql.DB) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pools[name] = &pool{db: db, dialect: DialectFor(driver)}
	m.logger.Debug("datasource registered",
		zap.String("name", name),
		zap.String("driver", driver))
}

// Get returns the pool and dialect registered under a name. Acquiring an
// individual connection (and blocking when the pool is exhausted) is the
// pool's own concern.
func (m *Manager) Get(name string) (*sql.DB, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pools[name]
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrUnknownDataSource, name)
	}
	return p.db, p.dialect, nil
}

// CloseAll closes every registered pool
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	for name, p := range m.pools {
		if err := p.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close datasource %s: %w", name, err))
		}
		m.logger.Debug("datasource closed", zap.String("name", name))
		delete(m.pools, name)
	}
	return errors.Join(errs...)
}

// DialectFor maps a driver name to its dialect
func DialectFor(driver string) string {
	switch {
	case strings.HasPrefix(driver, "postgres"), strings.HasPrefix(driver, "pgx"):
		return Postgres
	case strings.HasPrefix(driver, "sqlite"):
		return SQLite
	case strings.HasPrefix(driver, "mysql"):
		return MySQL
	default:
		return driver
	}
}

// FromConfig builds a manager from viper configuration of the form:
//
//	datasources:
//	  default:
//	    driver: postgres
//	    dsn: postgres://localhost/app
//	    max_open_conns: 10
//	    max_idle_conns: 5
//	    conn_max_lifetime: 30m
func FromConfig(v *viper.Viper, opts ...Option) (*Manager, error) {
	m := NewManager(opts...)
	names := v.GetStringMap("datasources")
	if len(names) == 0 {
		return nil, errors.New("no datasources configured")
	}
	for name := range names {
		key := "datasources." + name
		cfg := Config{
			Driver:          v.GetString(key + ".driver"),
			DSN:             v.GetString(key + ".dsn"),
			MaxOpenConns:    v.GetInt(key + ".max_open_conns"),
			MaxIdleConns:    v.GetInt(key + ".max_idle_conns"),
			ConnMaxLifetime: v.GetDuration(key + ".conn_max_lifetime"),
		}
		if cfg.Driver == "" || cfg.DSN == "" {
			return nil, fmt.Errorf("datasource %s: driver and dsn are required", name)
		}
		if err := m.Open(name, cfg); err != nil {
			return nil, err
		}
	}
	return m, nil
}
