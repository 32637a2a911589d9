package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// HTTPClient implements Client against a Stacks extended API node.
type HTTPClient struct {
	baseURL     string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.maxDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a client for the given API base URL, e.g.
// https://api.testnet.hiro.so.
func NewHTTPClient(baseURL string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		baseURL:     baseURL,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// get performs a GET with retries and exponential backoff, decoding the
// body into result. 4xx responses other than 429 are not retried.
func (c *HTTPClient) get(ctx context.Context, path string, result interface{}) error {
	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return fmt.Errorf("api error %d: %s", resp.StatusCode, string(body))
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
			continue
		}

		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// GetContractTransactions retrieves recent transactions addressed to the
// contract principal from /extended/v1/address/{principal}/transactions.
// Print events with reprs the tuple parser cannot handle are skipped,
// not fatal, so one exotic event cannot wedge the whole page.
func (c *HTTPClient) GetContractTransactions(ctx context.Context, contractID string, limit int) ([]Transaction, error) {
	path := fmt.Sprintf("/extended/v1/address/%s/transactions?limit=%d",
		url.PathEscape(contractID), limit)

	var result txListResult
	if err := c.get(ctx, path, &result); err != nil {
		return nil, fmt.Errorf("get contract transactions: %w", err)
	}

	txs := make([]Transaction, 0, len(result.Results))
	for _, raw := range result.Results {
		txs = append(txs, raw.normalize())
	}
	return txs, nil
}

// txListResult is the raw extended-API transaction list response.
type txListResult struct {
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
	Total   int     `json:"total"`
	Results []rawTx `json:"results"`
}

type rawTx struct {
	TxID          string   `json:"tx_id"`
	TxStatus      string   `json:"tx_status"`
	TxType        string   `json:"tx_type"`
	SenderAddress string   `json:"sender_address"`
	BlockHeight   int64    `json:"block_height"`
	BurnBlockTime int64    `json:"burn_block_time"`
	ContractCall  *rawCall `json:"contract_call"`
	Events        []rawEvt `json:"events"`
}

type rawCall struct {
	ContractID   string   `json:"contract_id"`
	FunctionName string   `json:"function_name"`
	FunctionArgs []rawArg `json:"function_args"`
}

type rawArg struct {
	Name string `json:"name"`
	Repr string `json:"repr"`
}

type rawEvt struct {
	EventType   string `json:"event_type"`
	ContractLog *struct {
		ContractID string `json:"contract_id"`
		Topic      string `json:"topic"`
		Value      struct {
			Repr string `json:"repr"`
		} `json:"value"`
	} `json:"contract_log"`
}

func (r *rawTx) normalize() Transaction {
	tx := Transaction{
		TxID:        r.TxID,
		Status:      r.TxStatus,
		Sender:      r.SenderAddress,
		BlockHeight: r.BlockHeight,
		BlockTime:   r.BurnBlockTime,
	}
	if r.TxType == "contract_call" && r.ContractCall != nil {
		call := &ContractCall{
			ContractID:   r.ContractCall.ContractID,
			FunctionName: r.ContractCall.FunctionName,
		}
		for _, a := range r.ContractCall.FunctionArgs {
			call.Args = append(call.Args, FunctionArg{Name: a.Name, Repr: a.Repr})
		}
		tx.Call = call
	}
	for _, e := range r.Events {
		if e.EventType != "smart_contract_log" || e.ContractLog == nil {
			continue
		}
		payload, err := ParseClarityTuple(e.ContractLog.Value.Repr)
		if err != nil {
			continue
		}
		tx.Prints = append(tx.Prints, PrintEvent{
			Contract: e.ContractLog.ContractID,
			Payload:  payload,
		})
	}
	return tx
}
