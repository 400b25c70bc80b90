package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/noah-isme/crowdwatch-api/pkg/config"
)

// ErrClosed is returned once Close has been called on a Handle.
var ErrClosed = errors.New("database handle closed")

// NewPostgres returns a configured PostgreSQL client.
func NewPostgres(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Handle is an explicitly constructed, lazily connected database reference.
// The first caller opens the pool; later callers reuse it. A failed open is
// retried on the next call.
type Handle struct {
	mu     sync.Mutex
	open   func(context.Context) (*sqlx.DB, error)
	db     *sqlx.DB
	closed bool
}

// NewHandle defers connecting until the first DB call.
func NewHandle(cfg config.DatabaseConfig) *Handle {
	return &Handle{open: func(ctx context.Context) (*sqlx.DB, error) {
		return NewPostgres(ctx, cfg)
	}}
}

// FromDB wraps an already open pool, mainly for tests.
func FromDB(db *sqlx.DB) *Handle {
	return &Handle{db: db}
}

// DB returns the shared pool, connecting on first use.
func (h *Handle) DB(ctx context.Context) (*sqlx.DB, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrClosed
	}
	if h.db != nil {
		return h.db, nil
	}
	if h.open == nil {
		return nil, errors.New("database handle has no connector")
	}

	db, err := h.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	h.db = db
	return db, nil
}

// Ping verifies connectivity, connecting if needed.
func (h *Handle) Ping(ctx context.Context) error {
	db, err := h.DB(ctx)
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

// Close releases the pool if one was opened.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	if h.db == nil {
		return nil
	}
	err := h.db.Close()
	h.db = nil
	return err
}
