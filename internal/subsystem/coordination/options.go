package coordination

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/kart-io/legalstudy/internal/bootstrap"
	"github.com/kart-io/legalstudy/pkg/component"
)

const redactedPassword = "[REDACTED]"

// Options defines configuration options for etcd.
type Options struct {
	Endpoints      []string      `json:"endpoints" mapstructure:"endpoints" validate:"min=1,dive,required"`
	Username       string        `json:"username" mapstructure:"username"`
	Password       string        `json:"-" mapstructure:"password"`
	DialTimeout    time.Duration `json:"dial-timeout" mapstructure:"dial-timeout"`
	RequestTimeout time.Duration `json:"request-timeout" mapstructure:"request-timeout"`
	LeaseTTL       int64         `json:"lease-ttl" mapstructure:"lease-ttl" validate:"min=5"`
	// Prefix is the key prefix under which the instance registers itself.
	Prefix string `json:"prefix" mapstructure:"prefix" validate:"required,startswith=/"`
	// Instance identifies this process. Empty means the host name.
	Instance string `json:"instance" mapstructure:"instance"`
}

var _ component.ConfigOptions = (*Options)(nil)

// NewOptions creates a new Options object with default values.
func NewOptions() *Options {
	return &Options{
		Endpoints:      []string{"127.0.0.1:2379"},
		DialTimeout:    5 * time.Second,
		RequestTimeout: 2 * time.Second,
		LeaseTTL:       60,
		Prefix:         "/legalstudy/bootstrap",
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
		o.Password = os.Getenv("ETCD_PASSWORD")
	}
	if o.Instance == "" {
		host, err := os.Hostname()
		if err != nil {
			return fmt.Errorf("resolve instance name: %w", err)
		}
		o.Instance = host
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 2 * time.Second
	}
	o.Prefix = strings.TrimRight(o.Prefix, "/")
	if o.Prefix == "" {
		o.Prefix = "/"
	}
	return nil
}

// Validate accepts endpoints as host:port or scheme://host:port.
func (o *Options) Validate() error {
	for _, ep := range o.Endpoints {
		hostport := ep
		if u, err := url.Parse(ep); err == nil && u.Host != "" {
			hostport = u.Host
		}
		if _, _, err := net.SplitHostPort(hostport); err != nil {
			return fmt.Errorf("endpoint %q: %w", ep, err)
		}
	}
	if o.Username == "" && o.Password != "" {
		return fmt.Errorf("password set without username")
	}
	if strings.Contains(o.Instance, "/") {
		return fmt.Errorf("instance %q must not contain '/'", o.Instance)
	}
	return nil
}

// Key returns the registration key of the instance.
func (o *Options) Key(subsystem string) string {
	return strings.TrimRight(o.Prefix, "/") + "/" + subsystem + "/" + o.Instance
}

// String returns a string representation with password redacted.
func (o *Options) String() string {
	password := redactedPassword
	if o.Password == "" {
		password = ""
	}
	return fmt.Sprintf("Etcd{endpoints=%v, user=%s, password=%s}", o.Endpoints, o.Username, password)
}
