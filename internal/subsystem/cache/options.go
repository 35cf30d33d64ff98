package cache

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/kart-io/legalstudy/internal/bootstrap"
	"github.com/kart-io/legalstudy/pkg/component"
)

const redactedPassword = "[REDACTED]"

// Options defines configuration options for Redis.
type Options struct {
	Host         string        `json:"host" mapstructure:"host" validate:"required,host"`
	Port         int           `json:"port" mapstructure:"port" validate:"min=1,max=65535"`
	Password     string        `json:"-" mapstructure:"password"`
	Database     int           `json:"database" mapstructure:"database" validate:"min=0,max=15"`
	MaxRetries   int           `json:"max-retries" mapstructure:"max-retries"`
	PoolSize     int           `json:"pool-size" mapstructure:"pool-size" validate:"min=0"`
	MinIdleConns int           `json:"min-idle-conns" mapstructure:"min-idle-conns" validate:"min=0"`
	DialTimeout  time.Duration `json:"dial-timeout" mapstructure:"dial-timeout"`
	ReadTimeout  time.Duration `json:"read-timeout" mapstructure:"read-timeout"`
	WriteTimeout time.Duration `json:"write-timeout" mapstructure:"write-timeout"`
	PoolTimeout  time.Duration `json:"pool-timeout" mapstructure:"pool-timeout"`
	// MarkerTTL is how long the readiness marker written by Initialize
	// lives. Zero skips the marker.
	MarkerTTL time.Duration `json:"marker-ttl" mapstructure:"marker-ttl"`
}

var _ component.ConfigOptions = (*Options)(nil)

// NewOptions creates a new Options object with default values.
func NewOptions() *Options {
	return &Options{
		Host:         "127.0.0.1",
		Port:         6379,
		MaxRetries:   3,
		PoolSize:     10,
		MinIdleConns: 5,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
		MarkerTTL:    time.Minute,
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

func (o *Options) Complete() error {
	if o.Password == "" {
		o.Password = os.Getenv("REDIS_PASSWORD")
	}
	return nil
}

func (o *Options) Validate() error {
	if o.MinIdleConns > o.PoolSize && o.PoolSize > 0 {
		return fmt.Errorf("min-idle-conns (%d) exceeds pool-size (%d)", o.MinIdleConns, o.PoolSize)
	}
	return nil
}

// Addr returns host:port.
func (o *Options) Addr() string {
	return net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

// String returns a string representation with password redacted.
func (o *Options) String() string {
	password := redactedPassword
	if o.Password == "" {
		password = ""
	}
	return fmt.Sprintf("Redis{addr=%s, password=%s, database=%d}", o.Addr(), password, o.Database)
}
