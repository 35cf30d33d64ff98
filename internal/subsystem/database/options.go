package database

import (
	"fmt"
	"os"
	"time"

	"github.com/kart-io/legalstudy/internal/bootstrap"
	"github.com/kart-io/legalstudy/pkg/component"
)

// Supported drivers.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const redactedPassword = "[REDACTED]"

// Options defines configuration options for the database subsystem.
type Options struct {
	Driver                string        `json:"driver" mapstructure:"driver" validate:"oneof=mysql postgres sqlite"`
	Host                  string        `json:"host" mapstructure:"host"`
	Port                  int           `json:"port" mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	Username              string        `json:"username" mapstructure:"username"`
	Password              string        `json:"-" mapstructure:"password"`
	Database              string        `json:"database" mapstructure:"database"`
	SSLMode               string        `json:"ssl-mode" mapstructure:"ssl-mode" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`
	Path                  string        `json:"path" mapstructure:"path"`
	MaxIdleConnections    int           `json:"max-idle-connections" mapstructure:"max-idle-connections" validate:"min=0"`
	MaxOpenConnections    int           `json:"max-open-connections" mapstructure:"max-open-connections" validate:"min=0"`
	MaxConnectionLifeTime time.Duration `json:"max-connection-life-time" mapstructure:"max-connection-life-time"`
	MaxIdleTime           time.Duration `json:"max-idle-time" mapstructure:"max-idle-time"`
	SlowThreshold         time.Duration `json:"slow-threshold" mapstructure:"slow-threshold"`
	LogLevel              int           `json:"log-level" mapstructure:"log-level" validate:"min=0,max=4"`
	// Migrate provisions the bootstrap marker table during initialization.
	Migrate bool `json:"migrate" mapstructure:"migrate"`
}

var _ component.ConfigOptions = (*Options)(nil)

// NewOptions creates a new Options object with default values.
func NewOptions() *Options {
	return &Options{
		Driver:                DriverMySQL,
		Host:                  "127.0.0.1",
		Username:              "root",
		SSLMode:               "disable",
		MaxIdleConnections:    20,
		MaxOpenConnections:    200,
		MaxConnectionLifeTime: 3600 * time.Second,
		MaxIdleTime:           600 * time.Second,
		SlowThreshold:         200 * time.Millisecond,
		LogLevel:              1, // Silent
		Migrate:               true,
	}
}

// Load decodes cfg over the defaults and validates the result.
func Load(cfg bootstrap.Config) (*Options, error) {
	opts := NewOptions()
	if err := component.Load(cfg, opts); err != nil {
		return nil, err
	}
	return opts, nil
}

// Complete fills the driver's default port and reads the password from the
// driver's environment variable when none is configured.
func (o *Options) Complete() error {
	switch o.Driver {
	case DriverMySQL:
		if o.Port == 0 {
			o.Port = 3306
		}
		if o.Password == "" {
			o.Password = os.Getenv("MYSQL_PASSWORD")
		}
	case DriverPostgres:
		if o.Port == 0 {
			o.Port = 5432
		}
		if o.Password == "" {
			o.Password = os.Getenv("POSTGRES_PASSWORD")
		}
	case DriverSQLite:
		if o.Path == "" {
			o.Path = ":memory:"
		}
		// 内存数据库每个连接都是独立的库
		if o.Path == ":memory:" {
			o.MaxOpenConnections = 1
			o.MaxIdleConnections = 1
		}
	}
	return nil
}

// Validate checks the fields each driver needs.
func (o *Options) Validate() error {
	if o.Driver == DriverSQLite {
		return nil
	}
	if o.Host == "" {
		return fmt.Errorf("host is required")
	}
	if o.Database == "" {
		return fmt.Errorf("database is required")
	}
	if o.Username == "" {
		return fmt.Errorf("username is required")
	}
	return nil
}

// String returns a string representation with password redacted.
func (o *Options) String() string {
	password := redactedPassword
	if o.Password == "" {
		password = ""
	}
	if o.Driver == DriverSQLite {
		return fmt.Sprintf("Database{driver=sqlite, path=%s}", o.Path)
	}
	return fmt.Sprintf("Database{driver=%s, host=%s, port=%d, user=%s, password=%s, database=%s}",
		o.Driver, o.Host, o.Port, o.Username, password, o.Database)
}
