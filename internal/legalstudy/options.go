package app

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/legalstudy/internal/bootstrap"
	"github.com/kart-io/legalstudy/internal/readiness"
	"github.com/kart-io/legalstudy/pkg/infra/tracing"
	logopts "github.com/kart-io/legalstudy/pkg/options/logger"
	"github.com/kart-io/legalstudy/pkg/utils/json"
)

// Options contains all options of the bootstrap command.
type Options struct {
	// Log configures the process logger before any subsystem runs.
	Log *logopts.Options `json:"log" mapstructure:"log"`

	// Bootstrap controls how the manager runs the subsystems.
	Bootstrap *BootstrapOptions `json:"bootstrap" mapstructure:"bootstrap"`

	// Serve configures the readiness HTTP server.
	Serve *readiness.Options `json:"serve" mapstructure:"serve"`

	// Tracing configures OpenTelemetry spans around lifecycle phases.
	Tracing *tracing.Options `json:"tracing" mapstructure:"tracing"`

	// Subsystems holds one raw section per subsystem, keyed by name.
	Subsystems map[string]map[string]any `json:"subsystems" mapstructure:"subsystems"`

	// Watch re-runs the bootstrap after the config file changes.
	Watch bool `json:"watch" mapstructure:"watch"`

	// Once exits after the first run instead of serving readiness.
	Once bool `json:"once" mapstructure:"once"`
}

// BootstrapOptions mirrors the manager and lifecycle options.
type BootstrapOptions struct {
	Parallel           int           `json:"parallel" mapstructure:"parallel"`
	DependencyOrder    bool          `json:"dependency-order" mapstructure:"dependency-order"`
	OptionalConnection bool          `json:"optional-connection" mapstructure:"optional-connection"`
	ConnectTimeout     time.Duration `json:"connect-timeout" mapstructure:"connect-timeout"`
	InitTimeout        time.Duration `json:"init-timeout" mapstructure:"init-timeout"`
	ShutdownTimeout    time.Duration `json:"shutdown-timeout" mapstructure:"shutdown-timeout"`
	// Order lists subsystem names to register first, in this order. The
	// remaining subsystems follow sorted by name.
	Order []string `json:"order" mapstructure:"order"`
}

// NewBootstrapOptions returns sequential defaults.
func NewBootstrapOptions() *BootstrapOptions {
	return &BootstrapOptions{
		Parallel:        1,
		ConnectTimeout:  bootstrap.DefaultConnectTimeout,
		InitTimeout:     bootstrap.DefaultInitTimeout,
		ShutdownTimeout: 15 * time.Second,
	}
}

// AddFlags adds the bootstrap.* flags.
func (o *BootstrapOptions) AddFlags(fs *pflag.FlagSet) {
	fs.IntVar(&o.Parallel, "bootstrap.parallel", o.Parallel, "Run up to N subsystems concurrently; 1 is sequential")
	fs.BoolVar(&o.DependencyOrder, "bootstrap.dependency-order", o.DependencyOrder, "Run subsystems in dependency order")
	fs.BoolVar(&o.OptionalConnection, "bootstrap.optional-connection", o.OptionalConnection, "Initialize subsystems even when their connection test fails")
	fs.DurationVar(&o.ConnectTimeout, "bootstrap.connect-timeout", o.ConnectTimeout, "Timeout for each connection test")
	fs.DurationVar(&o.InitTimeout, "bootstrap.init-timeout", o.InitTimeout, "Timeout for each initialization")
	fs.DurationVar(&o.ShutdownTimeout, "bootstrap.shutdown-timeout", o.ShutdownTimeout, "Timeout for releasing all subsystems on exit")
	fs.StringSliceVar(&o.Order, "bootstrap.order", o.Order, "Subsystem names to register first, in order")
}

// Complete fills zero values with defaults.
func (o *BootstrapOptions) Complete() error {
	def := NewBootstrapOptions()
	if o.Parallel <= 0 {
		o.Parallel = def.Parallel
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = def.ConnectTimeout
	}
	if o.InitTimeout <= 0 {
		o.InitTimeout = def.InitTimeout
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = def.ShutdownTimeout
	}
	return nil
}

// Validate checks the bootstrap options.
func (o *BootstrapOptions) Validate() error {
	if o.Parallel > 64 {
		return fmt.Errorf("bootstrap.parallel must be at most 64, got %d", o.Parallel)
	}
	if o.DependencyOrder && o.Parallel > 1 {
		return fmt.Errorf("bootstrap.dependency-order and bootstrap.parallel > 1 are mutually exclusive")
	}
	return nil
}

// managerOptions translates the options into manager options.
func (o *BootstrapOptions) managerOptions(mt *bootstrap.Metrics) []bootstrap.ManagerOption {
	opts := []bootstrap.ManagerOption{bootstrap.WithReportMetrics(mt)}
	if o.Parallel > 1 {
		opts = append(opts, bootstrap.WithParallel(o.Parallel))
	}
	if o.DependencyOrder {
		opts = append(opts, bootstrap.WithDependencyOrder())
	}
	if o.OptionalConnection {
		opts = append(opts, bootstrap.WithOptionalConnection())
	}
	return opts
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		Log:        logopts.NewOptions(),
		Bootstrap:  NewBootstrapOptions(),
		Serve:      readiness.NewOptions(),
		Tracing:    tracing.NewOptions(),
		Subsystems: map[string]map[string]any{},
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	o.Log.AddFlags(fs, "log.")
	o.Bootstrap.AddFlags(fs)
	o.Serve.AddFlags(fs)
	o.Tracing.AddFlags(fs)
	fs.BoolVar(&o.Watch, "watch", o.Watch, "Re-run the bootstrap when the config file changes")
	fs.BoolVar(&o.Once, "once", o.Once, "Exit after the first bootstrap run; non-zero when not ready")
}

// Complete completes the options.
func (o *Options) Complete() error {
	if err := o.Log.Complete(); err != nil {
		return err
	}
	if err := o.Bootstrap.Complete(); err != nil {
		return err
	}
	if err := o.Serve.Complete(); err != nil {
		return err
	}
	return o.Tracing.Complete()
}

// Validate validates the options, including every subsystem section's
// kind and dependency declarations. Kind-specific keys are validated by
// each subsystem in its configuration phase.
func (o *Options) Validate() error {
	if err := o.Log.Validate(); err != nil {
		return err
	}
	if err := o.Bootstrap.Validate(); err != nil {
		return err
	}
	if err := o.Serve.Validate(); err != nil {
		return err
	}
	if err := o.Tracing.Validate(); err != nil {
		return err
	}
	if o.Watch && o.Once {
		return fmt.Errorf("--watch and --once are mutually exclusive")
	}
	_, err := ParseSections(o.Subsystems, o.Bootstrap.Order)
	return err
}

// String renders the options with subsystem secrets redacted.
func (o *Options) String() string {
	out := struct {
		Bootstrap  *BootstrapOptions           `json:"bootstrap"`
		Serve      *readiness.Options          `json:"serve"`
		Subsystems map[string]bootstrap.Config `json:"subsystems"`
		Watch      bool                        `json:"watch"`
	}{
		Bootstrap:  o.Bootstrap,
		Serve:      o.Serve,
		Subsystems: make(map[string]bootstrap.Config, len(o.Subsystems)),
		Watch:      o.Watch,
	}
	for name, sec := range o.Subsystems {
		out.Subsystems[name] = bootstrap.Config(sec).Redacted()
	}
	b, err := json.Marshal(out)
	if err != nil {
		return fmt.Sprintf("<unprintable options: %v>", err)
	}
	return string(b)
}
