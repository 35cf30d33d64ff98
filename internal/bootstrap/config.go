package bootstrap

import (
	"maps"
	"time"

	"github.com/spf13/cast"

	"github.com/kart-io/legalstudy/pkg/component"
)

// Config is the already-parsed configuration of one subsystem.
type Config map[string]any

// Clone returns a shallow copy.
func (c Config) Clone() Config {
	if c == nil {
		return Config{}
	}
	return maps.Clone(c)
}

// Has reports whether key is present with a non-nil value.
func (c Config) Has(key string) bool {
	v, ok := c[key]
	return ok && v != nil
}

// String returns key as a string, or "" when absent.
func (c Config) String(key string) string {
	return cast.ToString(c[key])
}

// Int returns key as an int. The second result is false when the key is
// absent or not numeric.
func (c Config) Int(key string) (int, bool) {
	v, ok := c[key]
	if !ok || v == nil {
		return 0, false
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Bool returns key as a bool, false when absent.
func (c Config) Bool(key string) bool {
	return cast.ToBool(c[key])
}

// Duration returns key as a duration. Plain numbers are read as seconds.
func (c Config) Duration(key string, def time.Duration) time.Duration {
	v, ok := c[key]
	if !ok || v == nil {
		return def
	}
	switch t := v.(type) {
	case int, int32, int64, float64, float32:
		return time.Duration(cast.ToFloat64(t) * float64(time.Second))
	}
	d, err := cast.ToDurationE(v)
	if err != nil {
		return def
	}
	return d
}

// Decode maps the configuration onto out, which must be a pointer to a
// struct with mapstructure tags. Input is weakly typed so values coming from
// flags, env vars or YAML decode the same way.
func (c Config) Decode(out any) error {
	return component.Decode(c, out)
}

// Redacted returns a copy with secret-looking keys masked, suitable for logs
// and reports.
func (c Config) Redacted() Config {
	out := c.Clone()
	for k := range out {
		switch k {
		case "password", "secret", "token", "api_key", "api-key":
			if out.String(k) != "" {
				out[k] = "******"
			}
		}
	}
	return out
}
