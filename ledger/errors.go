package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrAccountNotFound          = errors.New("account not found")
	ErrTransactionNotFound      = errors.New("transaction not found")
	ErrBlockhashNotFound        = errors.New("blockhash not found")
	ErrSignatureVerification    = errors.New("transaction signature verification failure")
	ErrAlreadyProcessed         = errors.New("transaction has already been processed")
	ErrMissingRequiredSignature = errors.New("missing required signature for instruction")
	ErrNotEnoughAccountKeys     = errors.New("insufficient account keys for instruction")
	ErrInsufficientFunds        = errors.New("insufficient funds for instruction")
	ErrReadonlyLamportChange    = errors.New("instruction changed the balance of a read-only account")
	ErrReadonlyDataModified     = errors.New("instruction modified data of a read-only account")
	ErrExternalAccountLamports  = errors.New("instruction spent from the balance of an account it does not own")
	ErrExternalAccountData      = errors.New("instruction modified data of an account it does not own")
	ErrUnbalancedInstruction    = errors.New("sum of account balances before and after instruction do not match")
	ErrArithmeticOverflow       = errors.New("arithmetic overflow")
	ErrUnsupportedProgram       = errors.New("unsupported program id")
	ErrInvalidInstructionData   = errors.New("invalid instruction data")
	ErrFaucetDisabled           = errors.New("airdrop faucet is disabled")
	ErrEmptyTransaction         = errors.New("transaction has no instructions")
)

// ledgerErrors maps the stable wire names of the sentinels above.
var ledgerErrors = map[string]error{
	"AccountNotFound":          ErrAccountNotFound,
	"TransactionNotFound":      ErrTransactionNotFound,
	"BlockhashNotFound":        ErrBlockhashNotFound,
	"SignatureFailure":         ErrSignatureVerification,
	"AlreadyProcessed":         ErrAlreadyProcessed,
	"MissingRequiredSignature": ErrMissingRequiredSignature,
	"NotEnoughAccountKeys":     ErrNotEnoughAccountKeys,
	"InsufficientFunds":        ErrInsufficientFunds,
	"ReadonlyLamportChange":    ErrReadonlyLamportChange,
	"ReadonlyDataModified":     ErrReadonlyDataModified,
	"ExternalAccountLamports":  ErrExternalAccountLamports,
	"ExternalAccountData":      ErrExternalAccountData,
	"UnbalancedInstruction":    ErrUnbalancedInstruction,
	"ArithmeticOverflow":       ErrArithmeticOverflow,
	"UnsupportedProgramId":     ErrUnsupportedProgram,
	"InvalidInstructionData":   ErrInvalidInstructionData,
	"FaucetDisabled":           ErrFaucetDisabled,
	"EmptyTransaction":         ErrEmptyTransaction,
}

// CustomError is an error raised by a program. Two custom errors are the same
// error when their codes match, so errors rebuilt from the wire still satisfy
// errors.Is against the program's sentinels.
type CustomError struct {
	Code  uint32
	Name  string
	Msg   string
	Cause *CustomError
}

func (e *CustomError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("custom program error: %#x (%s): %s: %s", e.Code, e.Name, e.Msg, e.Cause.Msg)
	}
	return fmt.Sprintf("custom program error: %#x (%s): %s", e.Code, e.Name, e.Msg)
}

// WithCause returns a copy of e that wraps cause.
func (e *CustomError) WithCause(cause *CustomError) *CustomError {
	ret := *e
	ret.Cause = cause
	return &ret
}

func (e *CustomError) Unwrap() error {
	if e.Cause == nil {
		return nil
	}
	return e.Cause
}

func (e *CustomError) Is(target error) bool {
	t, ok := target.(*CustomError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// TransactionError reports which instruction of a transaction failed.
type TransactionError struct {
	InstructionIndex int
	Err              error
}

func (e *TransactionError) Error() string {
	if e.InstructionIndex < 0 {
		return fmt.Sprintf("transaction failed: %s", e.Err)
	}
	return fmt.Sprintf("transaction failed: instruction %d: %s", e.InstructionIndex, e.Err)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}

// ErrorInfo is the serializable form of a ledger or program error.
type ErrorInfo struct {
	InstructionIndex int32  `json:"instructionIndex"`
	Name             string `json:"name"`
	Code             uint32 `json:"code,omitempty"`
	Message          string `json:"message"`
	CauseCode        uint32 `json:"causeCode,omitempty"`
	CauseName        string `json:"causeName,omitempty"`
	CauseMessage     string `json:"causeMessage,omitempty"`
}

// EncodeError converts err into its wire form. It returns nil for a nil error.
func EncodeError(err error) *ErrorInfo {
	if err == nil {
		return nil
	}
	info := &ErrorInfo{InstructionIndex: -1, Message: err.Error()}
	var txErr *TransactionError
	if errors.As(err, &txErr) {
		info.InstructionIndex = int32(txErr.InstructionIndex) //nolint:gosec
	}
	var custom *CustomError
	if errors.As(err, &custom) {
		info.Name = custom.Name
		info.Code = custom.Code
		info.Message = custom.Msg
		if custom.Cause != nil {
			info.CauseCode = custom.Cause.Code
			info.CauseName = custom.Cause.Name
			info.CauseMessage = custom.Cause.Msg
		}
		return info
	}
	for name, sentinel := range ledgerErrors {
		if errors.Is(err, sentinel) {
			info.Name = name
			break
		}
	}
	return info
}

// DecodeError rebuilds an error from its wire form, restoring the identities
// EncodeError recognized.
func DecodeError(info *ErrorInfo) error {
	if info == nil {
		return nil
	}
	var err error
	switch {
	case info.Code != 0:
		custom := &CustomError{Code: info.Code, Name: info.Name, Msg: info.Message}
		if info.CauseCode != 0 {
			custom.Cause = &CustomError{Code: info.CauseCode, Name: info.CauseName, Msg: info.CauseMessage}
		}
		err = custom
	case ledgerErrors[info.Name] != nil:
		err = ledgerErrors[info.Name]
	default:
		err = errors.New(info.Message)
	}
	if info.InstructionIndex >= 0 || info.Code != 0 {
		return &TransactionError{InstructionIndex: int(info.InstructionIndex), Err: err}
	}
	return err
}
