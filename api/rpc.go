package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/holpsBot/proof-of-wake/ledger"
)

const jsonRPCVersion = "2.0"

// MaxRequestSize caps one JSON-RPC request on any transport.
const MaxRequestSize = 1 << 20

const (
	MethodGetLatestBlockhash      = "getLatestBlockhash"
	MethodSendTransaction         = "sendTransaction"
	MethodGetAccountInfo          = "getAccountInfo"
	MethodGetBalance              = "getBalance"
	MethodGetProgramAccounts      = "getProgramAccounts"
	MethodGetSignaturesForAddress = "getSignaturesForAddress"
	MethodGetTransaction          = "getTransaction"
	MethodRequestAirdrop          = "requestAirdrop"
)

// JSON-RPC 2.0 error codes
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	// CodeLedgerError marks errors raised by the ledger or a program. The
	// error data carries the details.
	CodeLedgerError = -32002
)

// Request is a JSON-RPC 2.0 request. Params are positional.
type Request struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      uint64            `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params,omitempty"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is the error member of a response.
type RPCError struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Data    *ErrorData `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// ErrorData describes a ledger failure. Signature is set when a transaction
// was executed and failed, so the failure can be looked up later.
type ErrorData struct {
	Signature *solana.Signature `json:"signature,omitempty"`
	Err       *ledger.ErrorInfo `json:"err,omitempty"`
}

// Dispatcher serves JSON-RPC requests from a ledger service. The HTTP server
// and the libp2p node share it.
type Dispatcher struct {
	svc    ledger.Service
	logger *slog.Logger
}

func NewDispatcher(svc ledger.Service, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Dispatcher{svc: svc, logger: logger}
}

type paramError struct {
	msg string
}

func (e *paramError) Error() string {
	return e.msg
}

func invalidParams(format string, args ...any) error {
	return &paramError{msg: fmt.Sprintf(format, args...)}
}

// Dispatch runs one request. It always returns a response.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) *Response {
	resp := &Response{JSONRPC: jsonRPCVersion, ID: req.ID}
	if req.JSONRPC != jsonRPCVersion {
		resp.Error = &RPCError{Code: CodeInvalidRequest, Message: "unsupported jsonrpc version"}
		return resp
	}
	var (
		result any
		sig    *solana.Signature
		err    error
	)
	switch req.Method {
	case MethodGetLatestBlockhash:
		result, err = d.getLatestBlockhash(ctx)
	case MethodSendTransaction:
		var s solana.Signature
		s, err = d.sendTransaction(ctx, req.Params)
		result = s
		if err != nil && !s.IsZero() {
			sig = &s
		}
	case MethodGetAccountInfo:
		result, err = d.getAccountInfo(ctx, req.Params)
	case MethodGetBalance:
		result, err = d.getBalance(ctx, req.Params)
	case MethodGetProgramAccounts:
		result, err = d.getProgramAccounts(ctx, req.Params)
	case MethodGetSignaturesForAddress:
		result, err = d.getSignaturesForAddress(ctx, req.Params)
	case MethodGetTransaction:
		result, err = d.getTransaction(ctx, req.Params)
	case MethodRequestAirdrop:
		result, err = d.requestAirdrop(ctx, req.Params)
	default:
		resp.Error = &RPCError{Code: CodeMethodNotFound, Message: fmt.Sprintf("method not found: %s", req.Method)}
		return resp
	}
	if err != nil {
		var pe *paramError
		if errors.As(err, &pe) {
			resp.Error = &RPCError{Code: CodeInvalidParams, Message: pe.msg}
			return resp
		}
		d.logger.Debug(
			fmt.Sprintf("rpc %s failed: %s", req.Method, err),
			"component", "api",
		)
		resp.Error = &RPCError{
			Code:    CodeLedgerError,
			Message: err.Error(),
			Data: &ErrorData{
				Signature: sig,
				Err:       ledger.EncodeError(err),
			},
		}
		return resp
	}
	data, err := json.Marshal(result)
	if err != nil {
		resp.Error = &RPCError{Code: CodeInternalError, Message: err.Error()}
		return resp
	}
	resp.Result = data
	return resp
}

func param[T any](params []json.RawMessage, idx int, name string) (T, error) {
	var v T
	if idx >= len(params) {
		return v, invalidParams("missing parameter %q", name)
	}
	if err := json.Unmarshal(params[idx], &v); err != nil {
		return v, invalidParams("invalid parameter %q: %s", name, err)
	}
	return v, nil
}

func optionalParam[T any](params []json.RawMessage, idx int, name string, def T) (T, error) {
	if idx >= len(params) {
		return def, nil
	}
	return param[T](params, idx, name)
}

func (d *Dispatcher) getLatestBlockhash(ctx context.Context) (any, error) {
	hash, err := d.svc.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, err
	}
	return BlockhashResult{Blockhash: hash}, nil
}

func (d *Dispatcher) sendTransaction(ctx context.Context, params []json.RawMessage) (solana.Signature, error) {
	encoded, err := param[string](params, 0, "transaction")
	if err != nil {
		return solana.Signature{}, err
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return solana.Signature{}, invalidParams("transaction is not base64: %s", err)
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return solana.Signature{}, invalidParams("failed to decode transaction: %s", err)
	}
	return d.svc.SendTransaction(ctx, tx)
}

func (d *Dispatcher) getAccountInfo(ctx context.Context, params []json.RawMessage) (any, error) {
	addr, err := param[solana.PublicKey](params, 0, "address")
	if err != nil {
		return nil, err
	}
	return d.svc.GetAccountInfo(ctx, addr)
}

func (d *Dispatcher) getBalance(ctx context.Context, params []json.RawMessage) (any, error) {
	addr, err := param[solana.PublicKey](params, 0, "address")
	if err != nil {
		return nil, err
	}
	return d.svc.GetBalance(ctx, addr)
}

func (d *Dispatcher) getProgramAccounts(ctx context.Context, params []json.RawMessage) (any, error) {
	owner, err := param[solana.PublicKey](params, 0, "owner")
	if err != nil {
		return nil, err
	}
	prefix, err := optionalParam[[]byte](params, 1, "dataPrefix", nil)
	if err != nil {
		return nil, err
	}
	accounts, err := d.svc.GetProgramAccounts(ctx, owner, prefix)
	if err != nil {
		return nil, err
	}
	if accounts == nil {
		accounts = []ledger.KeyedAccount{}
	}
	return accounts, nil
}

func (d *Dispatcher) getSignaturesForAddress(ctx context.Context, params []json.RawMessage) (any, error) {
	addr, err := param[solana.PublicKey](params, 0, "address")
	if err != nil {
		return nil, err
	}
	limit, err := optionalParam[int](params, 1, "limit", 0)
	if err != nil {
		return nil, err
	}
	sigs, err := d.svc.GetSignaturesForAddress(ctx, addr, limit)
	if err != nil {
		return nil, err
	}
	if sigs == nil {
		sigs = []ledger.SignatureInfo{}
	}
	return sigs, nil
}

func (d *Dispatcher) getTransaction(ctx context.Context, params []json.RawMessage) (any, error) {
	sig, err := param[solana.Signature](params, 0, "signature")
	if err != nil {
		return nil, err
	}
	return d.svc.GetTransaction(ctx, sig)
}

func (d *Dispatcher) requestAirdrop(ctx context.Context, params []json.RawMessage) (any, error) {
	addr, err := param[solana.PublicKey](params, 0, "address")
	if err != nil {
		return nil, err
	}
	lamports, err := param[uint64](params, 1, "lamports")
	if err != nil {
		return nil, err
	}
	return d.svc.RequestAirdrop(ctx, addr, lamports)
}

// BlockhashResult is the result of getLatestBlockhash.
type BlockhashResult struct {
	Blockhash solana.Hash `json:"blockhash"`
}
