package bootstrap

import (
	"google.golang.org/grpc/codes"

	"github.com/kart-io/legalstudy/pkg/errors"
)

func init() {
	errors.RegisterService(errors.ServiceBootstrap, "bootstrap")
}

var (
	// ErrInvalidRegistration is returned for an empty name or nil initializer.
	ErrInvalidRegistration = errors.NewRequestError(errors.ServiceBootstrap, 1).
				Message("Invalid subsystem registration", "子系统注册无效").
				MustBuild()

	// ErrNotFound is returned when a subsystem name is not registered.
	ErrNotFound = errors.NewNotFoundError(errors.ServiceBootstrap, 1).
			Message("Subsystem not registered", "子系统未注册").
			MustBuild()

	// ErrDuplicateRegistration is returned when a name is registered twice.
	ErrDuplicateRegistration = errors.NewConflictError(errors.ServiceBootstrap, 1).
					Message("Subsystem already registered", "子系统已注册").
					MustBuild()

	// ErrBootstrapInProgress is returned when the registry is touched during a run.
	ErrBootstrapInProgress = errors.NewConflictError(errors.ServiceBootstrap, 2).
				Message("Bootstrap run in progress", "初始化正在进行").
				MustBuild()

	// ErrInitialization wraps a failure of the initialize phase.
	ErrInitialization = errors.NewInternalError(errors.ServiceBootstrap, 1).
				Message("Subsystem initialization failed", "子系统初始化失败").
				MustBuild()

	// ErrConnection wraps a failed connection test.
	ErrConnection = errors.NewNetworkError(errors.ServiceBootstrap, 1).
			Message("Subsystem connection test failed", "子系统连接测试失败").
			MustBuild()

	// ErrPhaseTimeout is returned when a phase exceeds its deadline.
	ErrPhaseTimeout = errors.NewTimeoutError(errors.ServiceBootstrap, 1).
			Message("Lifecycle phase timed out", "生命周期阶段超时").
			MustBuild()

	// ErrConfiguration wraps a failure of the validate phase.
	ErrConfiguration = errors.NewConfigError(errors.ServiceBootstrap, 1).
				Message("Invalid subsystem configuration", "子系统配置无效").
				MustBuild()

	// ErrDependency is returned for unknown or cyclic subsystem dependencies,
	// and for subsystems skipped because a dependency did not initialize.
	ErrDependency = errors.NewConfigError(errors.ServiceBootstrap, 2).
			GRPC(codes.FailedPrecondition).
			Message("Subsystem dependency unsatisfied", "子系统依赖不满足").
			MustBuild()
)
