package mock

import "github.com/kart-io/legalstudy/pkg/errors"

func init() {
	errors.RegisterService(errors.ServiceMock, "mock")
}

var (
	// ErrServiceUnavailable is returned by every operation of a disabled
	// service.
	ErrServiceUnavailable = errors.NewNetworkError(errors.ServiceMock, 1).
				Message("Mock service unavailable", "模拟服务不可用").
				MustBuild()

	// ErrInjectedFailure is returned by every operation while fault
	// injection is on.
	ErrInjectedFailure = errors.NewInternalError(errors.ServiceMock, 1).
				Message("Injected failure", "注入的故障").
				MustBuild()

	ErrTableExists = errors.NewConflictError(errors.ServiceMock, 1).
			Message("Table already exists", "表已存在").
			MustBuild()

	ErrTableNotFound = errors.NewNotFoundError(errors.ServiceMock, 1).
				Message("Table not found", "表不存在").
				MustBuild()

	ErrUnknownColumn = errors.NewRequestError(errors.ServiceMock, 1).
				Message("Unknown column", "未知的列").
				MustBuild()

	ErrQueueEmpty = errors.NewNotFoundError(errors.ServiceMock, 2).
			Message("Queue is empty", "队列为空").
			MustBuild()
)
