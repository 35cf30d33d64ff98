package errors

import (
	"context"
	stderrors "errors"
)

func init() {
	RegisterService(ServiceCommon, "common")
}

// Common codes shared by every module. Module specific codes live next to
// the module (see internal/bootstrap/errors.go).
var (
	ErrInvalidParam = NewRequestError(ServiceCommon, 1).
			Message("Invalid parameter", "参数无效").MustBuild()

	ErrNotFound = NewNotFoundError(ServiceCommon, 0).
			Message("Resource not found", "资源不存在").MustBuild()

	// ErrInternal is what FromError falls back to for foreign errors.
	ErrInternal = NewInternalError(ServiceCommon, 0).
			Message("Internal error", "内部错误").MustBuild()

	// ErrPanic wraps a value recovered from a hook or a worker.
	ErrPanic = NewInternalError(ServiceCommon, 2).
			Message("Internal panic", "内部异常").MustBuild()

	ErrServiceUnavailable = NewNetworkError(ServiceCommon, 1).
				Message("Service unavailable", "服务不可用").MustBuild()

	ErrTimeout = NewTimeoutError(ServiceCommon, 0).
			Message("Operation timeout", "操作超时").MustBuild()

	// ErrCanceled is the caller giving up, not the operation failing.
	ErrCanceled = NewTimeoutError(ServiceCommon, 1).
			Message("Operation canceled", "操作已取消").MustBuild()

	ErrConfigInvalid = NewConfigError(ServiceCommon, 2).
				Message("Invalid configuration", "配置无效").MustBuild()
)

// fromContext maps the two context sentinels onto their codes.
func fromContext(err error) (*Errno, bool) {
	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		return ErrTimeout.WithCause(err), true
	case stderrors.Is(err, context.Canceled):
		return ErrCanceled.WithCause(err), true
	}
	return nil, false
}
