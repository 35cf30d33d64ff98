// Package app is the legalstudy-bootstrap command: it builds the configured
// subsystems, runs their initialization lifecycle and reports readiness.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/kart-io/logger"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/kart-io/legalstudy/internal/bootstrap"
	"github.com/kart-io/legalstudy/internal/readiness"
	"github.com/kart-io/legalstudy/pkg/app"
	"github.com/kart-io/legalstudy/pkg/infra/config"
	"github.com/kart-io/legalstudy/pkg/infra/tracing"
	"github.com/kart-io/legalstudy/pkg/observability/metrics"
	"github.com/kart-io/legalstudy/pkg/utils/json"
)

const (
	appName        = "legalstudy-bootstrap"
	appDescription = `Legal Study System bootstrap

Validates, connects and initializes every configured subsystem of the
Legal Study System (logging, database, cache, queue, coordination, document
store, upstream APIs) and reports whether the system is ready.

Examples:
  # Run once and print the report; exit code 1 when not ready
  legalstudy-bootstrap -c configs/legalstudy-bootstrap.yaml --once

  # Serve /readyz and re-run after every config change
  legalstudy-bootstrap -c configs/legalstudy-bootstrap.yaml --watch

  # Initialize independent subsystems concurrently
  legalstudy-bootstrap --bootstrap.parallel=4

Configuration:
  Command-line flags win over environment variables (prefix:
  LEGALSTUDY_BOOTSTRAP_), which win over the config file and defaults.
  Each entry under subsystems: needs a kind; enabled and dependencies are
  optional, every other key is passed to the subsystem.`
)

// NewApp creates the command.
func NewApp() *app.App {
	opts := NewOptions()
	var a *app.App
	a = app.NewApp(
		app.WithName(appName),
		app.WithDescription(appDescription),
		app.WithOptions(opts),
		app.WithRunFunc(func() error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return NewService(opts, a.Viper(), os.Stdout).Run(ctx)
		}),
	)
	return a
}

// Service is one execution of the command.
type Service struct {
	opts     *Options
	viper    *viper.Viper
	out      io.Writer
	registry *metrics.Registry
	runner   atomic.Pointer[Runner]
	watcher  *config.Watcher
}

// NewService wires a service. v is the instance the configuration was read
// into and is only needed for --watch; out receives the --once report.
func NewService(opts *Options, v *viper.Viper, out io.Writer) *Service {
	if out == nil {
		out = io.Discard
	}
	return &Service{
		opts:     opts,
		viper:    v,
		out:      out,
		registry: metrics.NewRegistry(),
	}
}

// Runner returns the runner once Run has created it.
func (s *Service) Runner() *Runner {
	return s.runner.Load()
}

// Run bootstraps the subsystems and, unless --once, serves readiness until
// ctx is cancelled. Subsystems are released before it returns.
func (s *Service) Run(ctx context.Context) error {
	opts := s.opts
	if err := opts.Log.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Flush() }()

	logger.Infow("Starting legalstudy bootstrap",
		"app", appName,
		"version", app.GetVersion(),
		"subsystems", len(opts.Subsystems),
	)
	logger.Debugw("Effective configuration", "options", opts.String())

	tp, err := tracing.NewProvider(ctx, opts.Tracing)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	runner := NewRunner(opts.Bootstrap, bootstrap.NewMetrics(s.registry), tp.Tracer("legalstudy/bootstrap"))
	s.runner.Store(runner)
	defer s.release(runner)

	report, err := runner.Apply(ctx, opts.Subsystems)
	if err != nil {
		return err
	}

	if opts.Once {
		return s.printReport(report)
	}

	if opts.Watch {
		s.watch(runner)
		defer s.watcher.Stop()
	}

	g, gctx := errgroup.WithContext(ctx)
	if opts.Serve.Enabled() {
		srv := readiness.NewServer(runner, s.registry, opts.Serve, app.GetVersion())
		g.Go(func() error { return srv.Run(gctx, nil) })
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	return g.Wait()
}

func (s *Service) watch(runner *Runner) {
	s.watcher = config.NewWatcher(s.viper)
	if s.viper == nil || s.viper.ConfigFileUsed() == "" {
		logger.Warn("--watch given but no config file was loaded, nothing to watch")
		return
	}
	var sections map[string]map[string]any
	sub := config.NewReloadableSubscriber(runner, "subsystems", &sections, app.DecodeHook())
	s.watcher.Subscribe("subsystems", sub.Handler())
	s.watcher.Start()
}

func (s *Service) printReport(report *bootstrap.Report) error {
	b, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(s.out, string(b)); err != nil {
		return err
	}
	if !report.Ready {
		return fmt.Errorf("bootstrap incomplete, failed subsystems: %v", report.Failed())
	}
	return nil
}

func (s *Service) release(runner *Runner) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.Bootstrap.ShutdownTimeout)
	defer cancel()
	if err := runner.Shutdown(ctx); err != nil {
		logger.Errorw("Releasing subsystems failed", "error", err)
	}
}
