// Package database is the relational database subsystem. It speaks MySQL,
// PostgreSQL or SQLite through gorm.
package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kart-io/logger"
	"gorm.io/gorm"

	"github.com/kart-io/legalstudy/internal/bootstrap"
	"github.com/kart-io/legalstudy/internal/subsystem/client"
)

// Kind is the configuration kind handled by this package.
const Kind = "database"

// Marker is written once per successful initialization when migrations are
// enabled.
type Marker struct {
	ID            uint      `gorm:"primaryKey"`
	Subsystem     string    `gorm:"size:128;index"`
	Driver        string    `gorm:"size:32"`
	InitializedAt time.Time `gorm:"not null"`
}

// TableName pins the marker table name.
func (Marker) TableName() string { return "bootstrap_markers" }

// Hooks connects, verifies and provisions one database.
type Hooks struct {
	name string
	open func(gorm.Dialector, ...gorm.Option) (*gorm.DB, error)

	mu   sync.RWMutex
	db   *gorm.DB
	opts *Options
}

// NewHooks returns database hooks for the subsystem name.
func NewHooks(name string) *Hooks {
	return &Hooks{name: name, open: gorm.Open}
}

func (h *Hooks) ValidateConfig(cfg bootstrap.Config) error {
	opts, err := Load(cfg)
	if err != nil {
		return err
	}
	_, err = BuildDSN(opts)
	return err
}

// TestConnection opens a short-lived connection and pings it.
func (h *Hooks) TestConnection(ctx context.Context, cfg bootstrap.Config) error {
	opts, err := Load(cfg)
	if err != nil {
		return err
	}
	db, err := h.connect(ctx, opts)
	if err != nil {
		return err
	}
	return closeDB(db)
}

// Initialize opens the pool, pings it and provisions the marker table.
func (h *Hooks) Initialize(ctx context.Context, cfg bootstrap.Config) error {
	opts, err := Load(cfg)
	if err != nil {
		return err
	}
	db, err := h.connect(ctx, opts)
	if err != nil {
		return err
	}

	if opts.Migrate {
		if err := db.WithContext(ctx).AutoMigrate(&Marker{}); err != nil {
			_ = closeDB(db)
			return fmt.Errorf("migrate %s: %w", Marker{}.TableName(), err)
		}
		marker := Marker{Subsystem: h.name, Driver: opts.Driver, InitializedAt: time.Now().UTC()}
		if err := db.WithContext(ctx).Create(&marker).Error; err != nil {
			_ = closeDB(db)
			return fmt.Errorf("write bootstrap marker: %w", err)
		}
	}

	h.mu.Lock()
	old := h.db
	h.db, h.opts = db, opts
	h.mu.Unlock()
	if old != nil {
		_ = closeDB(old)
	}

	logger.Infow("Database connected", "subsystem", h.name, "target", opts.String())
	return nil
}

// Shutdown closes the pool.
func (h *Hooks) Shutdown(context.Context) error {
	h.mu.Lock()
	db := h.db
	h.db = nil
	h.mu.Unlock()
	if db == nil {
		return nil
	}
	return closeDB(db)
}

// Report exposes pool statistics.
func (h *Hooks) Report() map[string]any {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.db == nil {
		return nil
	}
	out := map[string]any{"database.driver": h.opts.Driver}
	if sqlDB, err := h.db.DB(); err == nil {
		stats := sqlDB.Stats()
		out["database.open_connections"] = stats.OpenConnections
		out["database.max_open_connections"] = stats.MaxOpenConnections
	}
	return out
}

// DB returns the pool opened by Initialize.
func (h *Hooks) DB() (*gorm.DB, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.db == nil {
		return nil, client.ErrNotConnected.WithMessagef("%s: database not initialized", h.name)
	}
	return h.db, nil
}

func (h *Hooks) connect(ctx context.Context, opts *Options) (*gorm.DB, error) {
	dialector, err := Dialector(opts)
	if err != nil {
		return nil, err
	}
	db, err := h.open(dialector, &gorm.Config{
		Logger: newGormLogger(h.name, opts.LogLevel, opts.SlowThreshold),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", opts.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get underlying sql.DB: %w", err)
	}
	if opts.MaxIdleConnections > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConnections)
	}
	if opts.MaxOpenConnections > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConnections)
	}
	if opts.MaxConnectionLifeTime > 0 {
		sqlDB.SetConnMaxLifetime(opts.MaxConnectionLifeTime)
	}
	if opts.MaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(opts.MaxIdleTime)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping %s: %w", opts.Driver, err)
	}
	return db, nil
}

func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// New returns the database lifecycle.
func New(name string, cfg bootstrap.Config, opts ...bootstrap.Option) *bootstrap.Lifecycle {
	return bootstrap.New(name, NewHooks(name), append([]bootstrap.Option{bootstrap.WithConfig(cfg)}, opts...)...)
}
