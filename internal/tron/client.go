package tron

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/JGooseK41/NFTServiceApp-sub013/internal/obs"
)

var (
	// ErrUnavailable marks a call that kept failing after all retries.
	// Callers degrade to "flagged for manual review" rather than blocking.
	ErrUnavailable = errors.New("tron: node unavailable")

	ErrCallFailed = errors.New("tron: contract call failed")
)

const (
	defaultTimeout  = 10 * time.Second
	defaultAttempts = 4
	defaultBackoff  = 500 * time.Millisecond
)

// Client talks to a TRON full node HTTP API (TronGrid-compatible).
type Client struct {
	baseURL  string
	contract string
	owner    string
	apiKey   string
	httpc    *http.Client
	timeout  time.Duration
	attempts uint64
}

// Option configures Client.
type Option func(*Client)

// WithAPIKey sets the TronGrid API key header.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = strings.TrimSpace(key) }
}

// WithTimeout bounds each RPC attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithAttempts bounds the number of attempts per call.
func WithAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.attempts = uint64(n)
		}
	}
}

// WithHTTPClient overrides the underlying HTTP client (used in tests).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpc = h
		}
	}
}

// NewClient creates a client bound to one deployed notice contract.
// ownerAddress is the caller identity required by constant calls.
func NewClient(baseURL, contractAddress, ownerAddress string, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		contract: contractAddress,
		owner:    ownerAddress,
		httpc:    &http.Client{},
		timeout:  defaultTimeout,
		attempts: defaultAttempts,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type triggerRequest struct {
	OwnerAddress     string `json:"owner_address"`
	ContractAddress  string `json:"contract_address"`
	FunctionSelector string `json:"function_selector"`
	Parameter        string `json:"parameter"`
	Visible          bool   `json:"visible"`
}

type triggerResponse struct {
	ConstantResult []string `json:"constant_result"`
	Result         struct {
		Result  bool   `json:"result"`
		Message string `json:"message"`
	} `json:"result"`
	Transaction struct {
		TxID string `json:"txID"`
	} `json:"transaction"`
}

// CallContract performs a constant (read-only) contract call and returns the
// raw hex-encoded result word(s).
func (c *Client) CallContract(ctx context.Context, method string, args ...string) (string, error) {
	resp, err := c.trigger(ctx, "/wallet/triggerconstantcontract", method, args)
	if err != nil {
		obs.ObserveChainCall(method, "error")
		return "", err
	}
	if !resp.Result.Result || len(resp.ConstantResult) == 0 {
		obs.ObserveChainCall(method, "failed")
		return "", fmt.Errorf("%w: %s", ErrCallFailed, decodeNodeMessage(resp.Result.Message))
	}
	obs.ObserveChainCall(method, "ok")
	return resp.ConstantResult[0], nil
}

// SendTransaction builds a state-changing contract transaction and returns
// its transaction id. Signing and broadcast are handled by the operator's
// external wallet; the reconciliation layer itself only ever reads.
func (c *Client) SendTransaction(ctx context.Context, method string, args ...string) (string, error) {
	resp, err := c.trigger(ctx, "/wallet/triggersmartcontract", method, args)
	if err != nil {
		obs.ObserveChainCall(method, "error")
		return "", err
	}
	if !resp.Result.Result || resp.Transaction.TxID == "" {
		obs.ObserveChainCall(method, "failed")
		return "", fmt.Errorf("%w: %s", ErrCallFailed, decodeNodeMessage(resp.Result.Message))
	}
	obs.ObserveChainCall(method, "ok")
	return resp.Transaction.TxID, nil
}

func (c *Client) trigger(ctx context.Context, path, method string, args []string) (*triggerResponse, error) {
	payload, err := json.Marshal(triggerRequest{
		OwnerAddress:     c.owner,
		ContractAddress:  c.contract,
		FunctionSelector: method,
		Parameter:        strings.Join(args, ""),
		Visible:          true,
	})
	if err != nil {
		return nil, err
	}

	var out triggerResponse
	backoff := retry.WithMaxRetries(c.attempts-1, retry.NewExponential(defaultBackoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("TRON-PRO-API-KEY", c.apiKey)
		}

		resp, err := c.httpc.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return retry.RetryableError(fmt.Errorf("rate limited (429)"))
		case resp.StatusCode >= 500:
			return retry.RetryableError(fmt.Errorf("node error: %d", resp.StatusCode))
		case resp.StatusCode != http.StatusOK:
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return retry.RetryableError(err)
		}
		return json.Unmarshal(body, &out)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &out, nil
}

// decodeNodeMessage turns the node's hex-encoded revert message into text.
func decodeNodeMessage(msg string) string {
	if msg == "" {
		return "no result"
	}
	if decoded, err := hex.DecodeString(msg); err == nil {
		return string(decoded)
	}
	return msg
}

// EncodeUint encodes a decimal token id as one 32-byte ABI word.
func EncodeUint(tokenID string) (string, error) {
	n, ok := new(big.Int).SetString(strings.TrimSpace(tokenID), 10)
	if !ok || n.Sign() < 0 {
		return "", fmt.Errorf("tron: token id %q is not a non-negative integer", tokenID)
	}
	return fmt.Sprintf("%064x", n), nil
}

// EncodeAddressParam encodes a base58check address as one 32-byte ABI word.
func EncodeAddressParam(addr string) (string, error) {
	hexAddr, err := HexAddress(addr)
	if err != nil {
		return "", err
	}
	// Drop the 0x41 prefix byte; ABI words carry the bare 20-byte address.
	return strings.Repeat("0", 24) + hexAddr[2:], nil
}

// DecodeAddressWord converts a 32-byte ABI result word into base58check form.
func DecodeAddressWord(word string) (string, error) {
	word = strings.TrimPrefix(strings.TrimSpace(word), "0x")
	if len(word) < 40 {
		return "", ErrInvalidAddress
	}
	raw, err := hex.DecodeString(word[len(word)-40:])
	if err != nil {
		return "", ErrInvalidAddress
	}
	payload := append([]byte{addressPrefix}, raw...)
	return EncodeAddress(payload)
}
