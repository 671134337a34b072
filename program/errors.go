package program

import (
	"errors"

	"github.com/holpsBot/proof-of-wake/ledger"
)

var (
	ErrInvalidTimeValue       = &ledger.CustomError{Code: 6000, Name: "InvalidTimeValue", Msg: "alarm time or timezone offset out of range"}
	ErrInvalidStake           = &ledger.CustomError{Code: 6001, Name: "InvalidStake", Msg: "stake amount must be positive"}
	ErrInvalidAmount          = &ledger.CustomError{Code: 6002, Name: "InvalidAmount", Msg: "amount must be positive"}
	ErrAlreadyActive          = &ledger.CustomError{Code: 6003, Name: "AlreadyActive", Msg: "challenge is already active"}
	ErrNotActive              = &ledger.CustomError{Code: 6004, Name: "NotActive", Msg: "challenge is not active"}
	ErrAlreadyInitialized     = &ledger.CustomError{Code: 6005, Name: "AlreadyInitialized", Msg: "treasury is already initialized"}
	ErrTreasuryNotInitialized = &ledger.CustomError{Code: 6006, Name: "TreasuryNotInitialized", Msg: "treasury is not initialized"}
	ErrOutsideAlarmWindow     = &ledger.CustomError{Code: 6007, Name: "OutsideAlarmWindow", Msg: "not within the alarm window"}
	ErrAlreadyCompletedToday  = &ledger.CustomError{Code: 6008, Name: "AlreadyCompletedToday", Msg: "already completed for this alarm"}
	ErrNotSlashableYet        = &ledger.CustomError{Code: 6009, Name: "NotSlashableYet", Msg: "grace period has not elapsed"}
	ErrInsufficientPool       = &ledger.CustomError{Code: 6010, Name: "InsufficientPool", Msg: "treasury balance cannot cover the disbursement"}
	ErrPoolDepleted           = &ledger.CustomError{Code: 6011, Name: "PoolDepleted", Msg: "maturity bonus cannot be paid"}
	ErrUnauthorized           = &ledger.CustomError{Code: 6012, Name: "Unauthorized", Msg: "caller is not allowed to perform this action"}
	ErrInvalidAccountAddress  = &ledger.CustomError{Code: 6013, Name: "InvalidAccountAddress", Msg: "account address does not match its derivation"}
	ErrInvalidAccountOwner    = &ledger.CustomError{Code: 6014, Name: "InvalidAccountOwner", Msg: "account is not owned by the program"}
	ErrInvalidAccountData     = &ledger.CustomError{Code: 6015, Name: "InvalidAccountData", Msg: "account data could not be decoded"}
	ErrInvalidInstruction     = &ledger.CustomError{Code: 6016, Name: "InvalidInstruction", Msg: "instruction could not be decoded"}
	ErrMathOverflow           = &ledger.CustomError{Code: 6017, Name: "MathOverflow", Msg: "arithmetic overflow"}
)

// Errors lists every program error in code order.
var Errors = []*ledger.CustomError{
	ErrInvalidTimeValue,
	ErrInvalidStake,
	ErrInvalidAmount,
	ErrAlreadyActive,
	ErrNotActive,
	ErrAlreadyInitialized,
	ErrTreasuryNotInitialized,
	ErrOutsideAlarmWindow,
	ErrAlreadyCompletedToday,
	ErrNotSlashableYet,
	ErrInsufficientPool,
	ErrPoolDepleted,
	ErrUnauthorized,
	ErrInvalidAccountAddress,
	ErrInvalidAccountOwner,
	ErrInvalidAccountData,
	ErrInvalidInstruction,
	ErrMathOverflow,
}

// ErrorKind groups errors by how a caller recovers from them.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindState      ErrorKind = "state"
	KindTemporal   ErrorKind = "temporal"
	KindResource   ErrorKind = "resource"
	KindAuthority  ErrorKind = "authority"
	KindInternal   ErrorKind = "internal"
)

// KindOf classifies err. Anything that is not a program error is internal.
func KindOf(err error) ErrorKind {
	var custom *ledger.CustomError
	if !errors.As(err, &custom) {
		return KindInternal
	}
	switch custom.Code {
	case ErrInvalidTimeValue.Code, ErrInvalidStake.Code, ErrInvalidAmount.Code:
		return KindValidation
	case ErrAlreadyActive.Code, ErrNotActive.Code, ErrAlreadyInitialized.Code, ErrTreasuryNotInitialized.Code:
		return KindState
	case ErrOutsideAlarmWindow.Code, ErrAlreadyCompletedToday.Code, ErrNotSlashableYet.Code:
		return KindTemporal
	case ErrInsufficientPool.Code, ErrPoolDepleted.Code:
		return KindResource
	case ErrUnauthorized.Code, ErrInvalidAccountAddress.Code, ErrInvalidAccountOwner.Code:
		return KindAuthority
	default:
		return KindInternal
	}
}
