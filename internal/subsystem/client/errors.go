// Package client holds plumbing shared by the real subsystem drivers: their
// error codes and the circuit breaker that wraps every remote call.
package client

import "github.com/kart-io/legalstudy/pkg/errors"

func init() {
	errors.RegisterService(errors.ServiceSubsystem, "subsystem")
}

var (
	// ErrUnsupportedDriver is returned for an unknown driver or kind name.
	ErrUnsupportedDriver = errors.NewConfigError(errors.ServiceSubsystem, 1).
				Message("Unsupported driver", "不支持的驱动").
				MustBuild()

	// ErrNotConnected is returned when a subsystem is used before Initialize.
	ErrNotConnected = errors.NewNetworkError(errors.ServiceSubsystem, 1).
			Message("Subsystem not connected", "子系统未连接").
			MustBuild()

	// ErrCircuitOpen is returned while a breaker rejects calls.
	ErrCircuitOpen = errors.NewNetworkError(errors.ServiceSubsystem, 2).
			Message("Circuit open", "熔断器已打开").
			MustBuild()

	// ErrUnexpectedResponse is returned when a remote answers with something
	// other than the expected reply.
	ErrUnexpectedResponse = errors.NewNetworkError(errors.ServiceSubsystem, 3).
				Message("Unexpected response", "非预期的响应").
				MustBuild()
)
