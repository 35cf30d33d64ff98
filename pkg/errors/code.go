// Package errors provides the structured error codes used across the
// Legal Study bootstrap.
//
// Error Code Format: AABBCCC (7 digits)
//
//   - AA:  Service/Module code (00-99)
//   - BB:  Category code (00-99)
//   - CCC: Sequence number (000-999)
//
// Service Codes (AA):
//
//   - 00: Common errors shared by every module
//   - 10: Bootstrap lifecycle and state manager
//   - 11: Mock service harness
//   - 12: Subsystem drivers (database, cache, queue, coordination, document, api)
//
// Category Codes (BB):
//
//   - 01: Request/Validation errors (400)
//   - 04: Resource errors (404)
//   - 05: Conflict errors (409)
//   - 07: Internal errors (500)
//   - 08: Database errors (500)
//   - 09: Cache errors (500)
//   - 10: Network errors (503)
//   - 11: Timeout errors (504)
//   - 12: Configuration errors (500)
package errors

// Service codes (AA)
const (
	// ServiceCommon is for errors shared by all modules.
	ServiceCommon = 0

	// ServiceBootstrap is for the lifecycle driver and state manager.
	ServiceBootstrap = 10

	// ServiceMock is for the in-memory mock services.
	ServiceMock = 11

	// ServiceSubsystem is for the real subsystem drivers.
	ServiceSubsystem = 12
)

// Category codes (BB)
const (
	CategorySuccess    = 0
	CategoryRequest    = 1
	CategoryAuth       = 2
	CategoryPermission = 3
	CategoryResource   = 4
	CategoryConflict   = 5
	CategoryRateLimit  = 6
	CategoryInternal   = 7
	CategoryDatabase   = 8
	CategoryCache      = 9
	CategoryNetwork    = 10
	CategoryTimeout    = 11
	CategoryConfig     = 12
)

const (
	serviceUnit  = 100000
	categoryUnit = 1000
)

// MakeCode packs service, category and sequence into AABBCCC.
func MakeCode(service, category, sequence int) int {
	return service*serviceUnit + category*categoryUnit + sequence
}

// ParseCode is the inverse of MakeCode.
func ParseCode(code int) (service, category, sequence int) {
	return code / serviceUnit, code % serviceUnit / categoryUnit, code % categoryUnit
}
