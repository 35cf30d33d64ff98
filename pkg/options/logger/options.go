// Package logger carries the log.* options of the bootstrap command and
// installs the global kart-io logger from them.
package logger

import (
	"fmt"
	"slices"
	"strings"

	"github.com/kart-io/logger"
	"github.com/kart-io/logger/core"
	"github.com/kart-io/logger/option"
	"github.com/spf13/pflag"
)

var (
	engines = []string{"zap", "slog"}
	formats = []string{"json", "console", "text"}
)

// Options wraps option.LogOption. The embedded option is squashed so a
// log: section decodes straight into it.
type Options struct {
	*option.LogOption `json:",inline" mapstructure:",squash"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		LogOption: option.DefaultLogOption(),
	}
}

// AddFlags adds flags for logger options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, namePrefix string) {
	fs.StringVar(&o.Engine, namePrefix+"engine", o.Engine, "Logging engine (zap|slog)")
	fs.StringVar(&o.Level, namePrefix+"level", o.Level, "Log level (DEBUG|INFO|WARN|ERROR|FATAL)")
	fs.StringVar(&o.Format, namePrefix+"format", o.Format, "Log format (json|console)")
	fs.StringSliceVar(&o.OutputPaths, namePrefix+"output-paths", o.OutputPaths, "Output paths for logs")
	fs.BoolVar(&o.Development, namePrefix+"development", o.Development, "Enable development mode")
	fs.BoolVar(&o.DisableCaller, namePrefix+"disable-caller", o.DisableCaller, "Disable caller detection")
	fs.BoolVar(&o.DisableStacktrace, namePrefix+"disable-stacktrace", o.DisableStacktrace, "Disable stacktrace capture")

	if o.Rotation == nil {
		o.Rotation = &option.RotationOption{}
	}
	fs.IntVar(&o.Rotation.MaxSize, namePrefix+"rotation.max-size", 100, "Maximum size in MB of the log file before rotation")
	fs.IntVar(&o.Rotation.MaxBackups, namePrefix+"rotation.max-backups", 10, "Maximum number of old log files to retain")
}

// Complete normalizes case so configuration files may use either.
func (o *Options) Complete() error {
	o.Engine = strings.ToLower(o.Engine)
	o.Format = strings.ToLower(o.Format)
	o.Level = strings.ToUpper(o.Level)
	return nil
}

// Validate validates the logger options.
func (o *Options) Validate() error {
	if o.Engine != "" && !slices.Contains(engines, o.Engine) {
		return fmt.Errorf("unsupported log engine %q, want one of %v", o.Engine, engines)
	}
	if o.Format != "" && !slices.Contains(formats, o.Format) {
		return fmt.Errorf("unsupported log format %q, want one of %v", o.Format, formats)
	}
	if _, err := core.ParseLevel(o.Level); err != nil {
		return fmt.Errorf("invalid log level %q: %w", o.Level, err)
	}
	return o.LogOption.Validate()
}

// CreateLogger creates a new logger instance based on the options.
func (o *Options) CreateLogger() (core.Logger, error) {
	return logger.New(o.LogOption)
}

// Init installs a logger built from the options as the global logger.
func (o *Options) Init() error {
	log, err := o.CreateLogger()
	if err != nil {
		return err
	}
	logger.SetGlobal(log)
	return nil
}
