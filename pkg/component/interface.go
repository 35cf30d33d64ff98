// Package component defines the contract shared by typed subsystem options
// and the helper that loads them from an already-parsed configuration map.
package component

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"github.com/kart-io/legalstudy/pkg/validator"
)

// ConfigOptions defines the standard interface for all component options.
// Every subsystem's typed configuration (database, cache, queue, etc.)
// implements it so defaults and validation behave the same way. Subsystem
// options come from the config file only; they have no flags.
//
// Example implementation:
//
//	type Options struct {
//	    Host string `mapstructure:"host" validate:"required,host"`
//	    Port int    `mapstructure:"port" validate:"min=1,max=65535"`
//	}
//
//	func (o *Options) Complete() error {
//	    if o.Port == 0 {
//	        o.Port = 6379
//	    }
//	    return nil
//	}
type ConfigOptions interface {
	// Complete fills in any fields not set that are required to have valid data.
	Complete() error

	// Validate checks cross-field rules that struct tags cannot express.
	// It runs after Complete and after tag validation.
	Validate() error
}

// Decode maps raw onto out, which must be a pointer to a struct with
// mapstructure tags. Input is weakly typed so values coming from flags, env
// vars or YAML decode the same way; durations may be strings like "5s" and
// string lists may be comma separated.
func Decode(raw map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("build config decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// Load decodes raw over the defaults already in opts, then completes and
// validates them: struct tags first, then opts.Validate.
func Load(raw map[string]any, opts ConfigOptions) error {
	if err := Decode(raw, opts); err != nil {
		return err
	}
	if err := opts.Complete(); err != nil {
		return fmt.Errorf("complete options: %w", err)
	}
	if err := validator.Struct(opts); err != nil {
		return err
	}
	return opts.Validate()
}
