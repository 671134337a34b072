package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/holpsBot/proof-of-wake/ledger"
)

// Caller carries one JSON-RPC exchange.
type Caller interface {
	Call(ctx context.Context, req *Request) (*Response, error)
}

// Client is a ledger.Service backed by a remote node.
type Client struct {
	caller Caller
	nextID atomic.Uint64
}

var _ ledger.Service = (*Client)(nil)

func NewClient(caller Caller) *Client {
	return &Client{caller: caller}
}

// NewHTTPClient returns a client for the node serving JSON-RPC at endpoint,
// e.g. http://localhost:8899/rpc.
func NewHTTPClient(endpoint string) *Client {
	return NewClient(&HTTPCaller{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: 30 * time.Second},
	})
}

// HTTPCaller posts requests to a JSON-RPC endpoint.
type HTTPCaller struct {
	Endpoint string
	Client   *http.Client
}

func (h *HTTPCaller) Call(ctx context.Context, req *Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpClient := h.Client
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	httpResp, err := httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(httpResp.Body, 1024))
		return nil, fmt.Errorf("unexpected HTTP status %d: %s", httpResp.StatusCode, strings.TrimSpace(string(msg)))
	}
	var resp Response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &resp, nil
}

// call runs method and unmarshals its result into out. Ledger failures come
// back as the errors the node raised, together with the error data.
func (c *Client) call(ctx context.Context, method string, out any, params ...any) (*ErrorData, error) {
	req := &Request{
		JSONRPC: jsonRPCVersion,
		ID:      c.nextID.Add(1),
		Method:  method,
	}
	for _, p := range params {
		raw, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s params: %w", method, err)
		}
		req.Params = append(req.Params, raw)
	}
	resp, err := c.caller.Call(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.ID != req.ID {
		return nil, fmt.Errorf("response id %d does not match request id %d", resp.ID, req.ID)
	}
	if resp.Error != nil {
		if resp.Error.Data != nil && resp.Error.Data.Err != nil {
			return resp.Error.Data, ledger.DecodeError(resp.Error.Data.Err)
		}
		return resp.Error.Data, resp.Error
	}
	if out == nil {
		return nil, nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return nil, fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return nil, nil
}

func (c *Client) GetLatestBlockhash(ctx context.Context) (solana.Hash, error) {
	var ret BlockhashResult
	if _, err := c.call(ctx, MethodGetLatestBlockhash, &ret); err != nil {
		return solana.Hash{}, err
	}
	return ret.Blockhash, nil
}

func (c *Client) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to encode transaction: %w", err)
	}
	var sig solana.Signature
	data, err := c.call(ctx, MethodSendTransaction, &sig, base64.StdEncoding.EncodeToString(raw))
	if err != nil {
		if data != nil && data.Signature != nil {
			return *data.Signature, err
		}
		if len(tx.Signatures) > 0 {
			return tx.Signatures[0], err
		}
		return solana.Signature{}, err
	}
	return sig, nil
}

func (c *Client) GetAccountInfo(ctx context.Context, addr solana.PublicKey) (*ledger.Account, error) {
	var ret ledger.Account
	if _, err := c.call(ctx, MethodGetAccountInfo, &ret, addr); err != nil {
		return nil, err
	}
	return &ret, nil
}

func (c *Client) GetBalance(ctx context.Context, addr solana.PublicKey) (uint64, error) {
	var ret uint64
	if _, err := c.call(ctx, MethodGetBalance, &ret, addr); err != nil {
		return 0, err
	}
	return ret, nil
}

func (c *Client) GetProgramAccounts(
	ctx context.Context,
	owner solana.PublicKey,
	dataPrefix []byte,
) ([]ledger.KeyedAccount, error) {
	var ret []ledger.KeyedAccount
	if _, err := c.call(ctx, MethodGetProgramAccounts, &ret, owner, dataPrefix); err != nil {
		return nil, err
	}
	return ret, nil
}

func (c *Client) GetSignaturesForAddress(
	ctx context.Context,
	addr solana.PublicKey,
	limit int,
) ([]ledger.SignatureInfo, error) {
	var ret []ledger.SignatureInfo
	if _, err := c.call(ctx, MethodGetSignaturesForAddress, &ret, addr, limit); err != nil {
		return nil, err
	}
	return ret, nil
}

func (c *Client) GetTransaction(ctx context.Context, sig solana.Signature) (*ledger.TransactionRecord, error) {
	var ret ledger.TransactionRecord
	if _, err := c.call(ctx, MethodGetTransaction, &ret, sig); err != nil {
		return nil, err
	}
	return &ret, nil
}

func (c *Client) RequestAirdrop(ctx context.Context, to solana.PublicKey, lamports uint64) (solana.Signature, error) {
	var sig solana.Signature
	if _, err := c.call(ctx, MethodRequestAirdrop, &sig, to, lamports); err != nil {
		return solana.Signature{}, err
	}
	return sig, nil
}

// IsRPCError reports whether err is a protocol-level JSON-RPC error rather
// than a ledger failure.
func IsRPCError(err error) bool {
	var rpcErr *RPCError
	return errors.As(err, &rpcErr)
}
