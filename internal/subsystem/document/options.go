package document

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/kart-io/legalstudy/internal/bootstrap"
	"github.com/kart-io/legalstudy/pkg/component"
)

const redactedPassword = "[REDACTED]"

// IndexOptions declares an index provisioned during initialization. A key
// prefixed with "-" is descending.
type IndexOptions struct {
	Collection string   `json:"collection" mapstructure:"collection" validate:"required"`
	Keys       []string `json:"keys" mapstructure:"keys" validate:"min=1,dive,required"`
	Unique     bool     `json:"unique" mapstructure:"unique"`
}

// Options defines configuration options for MongoDB.
type Options struct {
	// URI wins over the individual connection fields when set.
	URI      string `json:"uri" mapstructure:"uri" validate:"omitempty,startswith=mongodb"`
	Host     string `json:"host" mapstructure:"host"`
	Port     int    `json:"port" mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"-" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database" validate:"required"`

	MaxPoolSize     uint64        `json:"max-pool-size" mapstructure:"max-pool-size"`
	MinPoolSize     uint64        `json:"min-pool-size" mapstructure:"min-pool-size"`
	MaxConnIdleTime time.Duration `json:"max-conn-idle-time" mapstructure:"max-conn-idle-time"`

	ConnectTimeout         time.Duration `json:"connect-timeout" mapstructure:"connect-timeout"`
	ServerSelectionTimeout time.Duration `json:"server-selection-timeout" mapstructure:"server-selection-timeout"`

	ReplicaSet string `json:"replica-set" mapstructure:"replica-set"`
	AuthSource string `json:"auth-source" mapstructure:"auth-source"`
	Direct     bool   `json:"direct" mapstructure:"direct"`

	Indexes []IndexOptions `json:"indexes" mapstructure:"indexes" validate:"dive"`
}

var _ component.ConfigOptions = (*Options)(nil)

// NewOptions creates a new Options object with default values.
func NewOptions() *Options {
	return &Options{
		Host:                   "127.0.0.1",
		Port:                   27017,
		MaxPoolSize:            100,
		MinPoolSize:            10,
		MaxConnIdleTime:        10 * time.Minute,
		ConnectTimeout:         10 * time.Second,
		ServerSelectionTimeout: 5 * time.Second,
		AuthSource:             "admin",
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
		o.Password = os.Getenv("MONGODB_PASSWORD")
	}
	return nil
}

func (o *Options) Validate() error {
	if o.URI == "" && o.Host == "" {
		return fmt.Errorf("either uri or host is required")
	}
	if o.MinPoolSize > o.MaxPoolSize && o.MaxPoolSize > 0 {
		return fmt.Errorf("min-pool-size (%d) exceeds max-pool-size (%d)", o.MinPoolSize, o.MaxPoolSize)
	}
	return nil
}

// String returns a string representation with password redacted.
func (o *Options) String() string {
	if o.URI != "" {
		return fmt.Sprintf("MongoDB{uri=%s, database=%s}", redactURI(o.URI), o.Database)
	}
	password := redactedPassword
	if o.Password == "" {
		password = ""
	}
	return fmt.Sprintf("MongoDB{host=%s, port=%d, user=%s, password=%s, database=%s}",
		o.Host, o.Port, o.Username, password, o.Database)
}

// BuildURI returns URI when set, otherwise a mongodb:// URI assembled from
// the connection fields.
func BuildURI(opts *Options) string {
	if opts.URI != "" {
		return opts.URI
	}

	var uri strings.Builder
	uri.WriteString("mongodb://")
	if opts.Username != "" {
		uri.WriteString(url.QueryEscape(opts.Username))
		if opts.Password != "" {
			uri.WriteString(":")
			uri.WriteString(url.QueryEscape(opts.Password))
		}
		uri.WriteString("@")
	}
	uri.WriteString(opts.Host)
	if opts.Port != 0 {
		fmt.Fprintf(&uri, ":%d", opts.Port)
	}
	uri.WriteString("/")
	uri.WriteString(opts.Database)

	params := url.Values{}
	if opts.AuthSource != "" && opts.AuthSource != "admin" {
		params.Add("authSource", opts.AuthSource)
	}
	if opts.ReplicaSet != "" {
		params.Add("replicaSet", opts.ReplicaSet)
	}
	if opts.Direct {
		params.Add("directConnection", "true")
	}
	if len(params) > 0 {
		uri.WriteString("?")
		uri.WriteString(params.Encode())
	}
	return uri.String()
}

func redactURI(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), redactedPassword)
	}
	return u.String()
}
