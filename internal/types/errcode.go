// Package types defines the shared domain model for OpenMatch: money,
// identifiers, orders, reservations, trades, and the closed enums that
// drive the epoch pipeline. Every other internal package builds on these
// types instead of inventing its own.
package types

// ErrCode is a machine-readable error code in the OM_ERR_ namespace.
// Ranges: 1xx Orders, 2xx Balances, 3xx Reservations, 4xx Epoch,
// 5xx Matching, 6xx Settlement, 8xx Security, 9xx Internal.
type ErrCode string

const (
	ErrCodeInvalidOrder      ErrCode = "OM_ERR_101"
	ErrCodeRateLimited       ErrCode = "OM_ERR_102"
	ErrCodeMissingPriceBound ErrCode = "OM_ERR_103"
	ErrCodeOrderNotCancelable ErrCode = "OM_ERR_104"

	ErrCodeInsufficientBalance ErrCode = "OM_ERR_201"
	ErrCodeInsufficientFrozen  ErrCode = "OM_ERR_202"
	ErrCodeLedgerUnderflow     ErrCode = "OM_ERR_203"

	ErrCodeInvalidReservation ErrCode = "OM_ERR_301"
	ErrCodeReservationExpired ErrCode = "OM_ERR_302"
	ErrCodeNonceReused        ErrCode = "OM_ERR_303"

	ErrCodeWrongEpochPhase ErrCode = "OM_ERR_401"
	ErrCodeBufferSealed    ErrCode = "OM_ERR_402"
	ErrCodeBufferFull      ErrCode = "OM_ERR_403"

	ErrCodeDeterminismViolation ErrCode = "OM_ERR_501"

	ErrCodeTradeAlreadySettled ErrCode = "OM_ERR_601"

	ErrCodeUnknownIssuer    ErrCode = "OM_ERR_801"
	ErrCodeInvalidSignature ErrCode = "OM_ERR_802"

	ErrCodeSupplyInvariantViolation ErrCode = "OM_ERR_901"
)

// CodedError pairs a sentinel error with its machine-readable code so
// callers across a network boundary can discriminate without string
// matching on Error().
type CodedError struct {
	Code ErrCode
	Err  error
}

func (c *CodedError) Error() string { return string(c.Code) + ": " + c.Err.Error() }

func (c *CodedError) Unwrap() error { return c.Err }

// Coded wraps err with code, ready for fmt.Errorf("%w", ...) chains.
func Coded(code ErrCode, err error) *CodedError {
	return &CodedError{Code: code, Err: err}
}
