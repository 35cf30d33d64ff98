package errors

import (
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
)

type statusPair struct {
	http int
	grpc codes.Code
}

// 分类对应的默认状态码，未列出的分类按 500 / Internal 处理
var categoryStatus = map[int]statusPair{
	CategoryRequest:    {http.StatusBadRequest, codes.InvalidArgument},
	CategoryAuth:       {http.StatusUnauthorized, codes.Unauthenticated},
	CategoryPermission: {http.StatusForbidden, codes.PermissionDenied},
	CategoryResource:   {http.StatusNotFound, codes.NotFound},
	CategoryConflict:   {http.StatusConflict, codes.AlreadyExists},
	CategoryRateLimit:  {http.StatusTooManyRequests, codes.ResourceExhausted},
	CategoryNetwork:    {http.StatusServiceUnavailable, codes.Unavailable},
	CategoryTimeout:    {http.StatusGatewayTimeout, codes.DeadlineExceeded},
}

// ErrnoBuilder declares an Errno. The HTTP and gRPC statuses default to the
// ones of the category and can be overridden.
//
//	var ErrLeaseLost = errors.NewBuilder(errors.ServiceSubsystem, errors.CategoryConflict, 3).
//	    GRPC(codes.Aborted).
//	    Message("Coordination lease lost", "协调租约丢失").
//	    MustBuild()
type ErrnoBuilder struct {
	service, category, sequence int
	status                      statusPair
	en, zh                      string
}

// NewBuilder starts an Errno in the given service and category.
func NewBuilder(service, category, sequence int) *ErrnoBuilder {
	st, ok := categoryStatus[category]
	if !ok {
		st = statusPair{http.StatusInternalServerError, codes.Internal}
	}
	return &ErrnoBuilder{service: service, category: category, sequence: sequence, status: st}
}

// HTTP overrides the HTTP status.
func (b *ErrnoBuilder) HTTP(status int) *ErrnoBuilder {
	b.status.http = status
	return b
}

// GRPC overrides the gRPC code.
func (b *ErrnoBuilder) GRPC(code codes.Code) *ErrnoBuilder {
	b.status.grpc = code
	return b
}

// Message sets the English and Chinese texts. zh may be empty.
func (b *ErrnoBuilder) Message(en, zh string) *ErrnoBuilder {
	b.en, b.zh = en, zh
	return b
}

func (b *ErrnoBuilder) check() error {
	switch {
	case b.en == "":
		return fmt.Errorf("errno %02d%02d%03d: English message is required", b.service, b.category, b.sequence)
	case b.service < 0 || b.service > 99:
		return fmt.Errorf("service %d out of range [0, 99]", b.service)
	case b.category < 0 || b.category > 99:
		return fmt.Errorf("category %d out of range [0, 99]", b.category)
	case b.sequence < 0 || b.sequence > 999:
		return fmt.Errorf("sequence %d out of range [0, 999]", b.sequence)
	}
	return nil
}

// Build registers the Errno. A code can be built once.
func (b *ErrnoBuilder) Build() (*Errno, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	e := &Errno{
		Code:      MakeCode(b.service, b.category, b.sequence),
		HTTP:      b.status.http,
		GRPCCode:  b.status.grpc,
		MessageEN: b.en,
		MessageZH: b.zh,
	}
	if err := register(e); err != nil {
		return nil, err
	}
	return e, nil
}

// MustBuild is Build for package level declarations.
func (b *ErrnoBuilder) MustBuild() *Errno {
	e, err := b.Build()
	if err != nil {
		panic(err)
	}
	return e
}

// Shorthands for the categories the bootstrap declares codes in.

func NewRequestError(service, sequence int) *ErrnoBuilder {
	return NewBuilder(service, CategoryRequest, sequence)
}

func NewNotFoundError(service, sequence int) *ErrnoBuilder {
	return NewBuilder(service, CategoryResource, sequence)
}

func NewConflictError(service, sequence int) *ErrnoBuilder {
	return NewBuilder(service, CategoryConflict, sequence)
}

func NewInternalError(service, sequence int) *ErrnoBuilder {
	return NewBuilder(service, CategoryInternal, sequence)
}

func NewNetworkError(service, sequence int) *ErrnoBuilder {
	return NewBuilder(service, CategoryNetwork, sequence)
}

func NewTimeoutError(service, sequence int) *ErrnoBuilder {
	return NewBuilder(service, CategoryTimeout, sequence)
}

func NewConfigError(service, sequence int) *ErrnoBuilder {
	return NewBuilder(service, CategoryConfig, sequence)
}
