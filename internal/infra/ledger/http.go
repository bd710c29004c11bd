package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vietddude/ticketdash/internal/core/domain"
	"github.com/vietddude/ticketdash/internal/metrics"
)

// HTTPClient implements Client over JSON-RPC 2.0 HTTP.
type HTTPClient struct {
	endpoint   string
	httpClient *http.Client
	retry      RetryConfig
}

// NewHTTPClient creates a JSON-RPC ledger client.
func NewHTTPClient(endpoint string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retry: DefaultRetryConfig,
	}
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// call makes a JSON-RPC call with retry and unmarshals the result into out.
func (c *HTTPClient) call(ctx context.Context, method string, params []any, out any) error {
	metrics.LedgerCallsTotal.WithLabelValues(method).Inc()
	start := time.Now()

	err := callWithRetry(ctx, c.retry, func() error {
		return c.callOnce(ctx, method, params, out)
	})

	metrics.LedgerLatency.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LedgerErrorsTotal.WithLabelValues(method).Inc()
	}
	return err
}

func (c *HTTPClient) callOnce(ctx context.Context, method string, params []any, out any) error {
	reqBody := map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
		"id":      1,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http status %d: %s", resp.StatusCode, string(body))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}

	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("unmarshal result: %w", err)
		}
	}
	return nil
}

// AccountBalances returns the current token balances of account.
func (c *HTTPClient) AccountBalances(ctx context.Context, account string) (domain.Balances, error) {
	var b domain.Balances
	if err := c.call(ctx, "dash_getBalances", []any{account}, &b); err != nil {
		return domain.Balances{}, fmt.Errorf("get balances: %w", err)
	}
	return b, nil
}

// PoolReserves returns the current swap pool state.
func (c *HTTPClient) PoolReserves(ctx context.Context) (domain.PoolReserves, error) {
	var r domain.PoolReserves
	if err := c.call(ctx, "dash_getPoolReserves", nil, &r); err != nil {
		return domain.PoolReserves{}, fmt.Errorf("get pool reserves: %w", err)
	}
	return r, nil
}

// RoleFlags returns ownership/permission bits for account.
func (c *HTTPClient) RoleFlags(ctx context.Context, account string) (domain.RoleFlags, error) {
	var f domain.RoleFlags
	if err := c.call(ctx, "dash_getRoleFlags", []any{account}, &f); err != nil {
		return domain.RoleFlags{}, fmt.Errorf("get role flags: %w", err)
	}
	return f, nil
}

// CycleUnitSeconds resolves the protocol's staking cycle unit.
func (c *HTTPClient) CycleUnitSeconds(ctx context.Context) (uint64, error) {
	var unit uint64
	if err := c.call(ctx, "dash_getCycleUnit", nil, &unit); err != nil {
		return 0, fmt.Errorf("get cycle unit: %w", err)
	}
	return unit, nil
}

// LatestBlock returns the current chain head number.
func (c *HTTPClient) LatestBlock(ctx context.Context) (uint64, error) {
	var head uint64
	if err := c.call(ctx, "dash_latestBlock", nil, &head); err != nil {
		return 0, fmt.Errorf("get latest block: %w", err)
	}
	return head, nil
}

// wireEvent is the node's event encoding.
type wireEvent struct {
	Kind        string  `json:"kind"`
	Account     string  `json:"account"`
	BlockNumber uint64  `json:"block_number"`
	LogIndex    *int64  `json:"log_index"` // null when the node omits it
	Timestamp   uint64  `json:"timestamp"`
	Amount      float64 `json:"amount"`
	CycleLength uint64  `json:"cycle_length"`
	AmountIn    float64 `json:"amount_in"`
	AmountOut   float64 `json:"amount_out"`
}

// QueryEvents returns events matching filter in [fromBlock, toBlock].
func (c *HTTPClient) QueryEvents(
	ctx context.Context,
	filter EventFilter,
	fromBlock, toBlock uint64,
) ([]domain.LedgerEvent, error) {
	kinds := make([]string, 0, len(filter.Kinds))
	for _, k := range filter.Kinds {
		kinds = append(kinds, string(k))
	}

	var wire []wireEvent
	params := []any{map[string]any{
		"kinds":      kinds,
		"account":    filter.Account,
		"from_block": fromBlock,
		"to_block":   toBlock,
	}}
	if err := c.call(ctx, "dash_queryEvents", params, &wire); err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}

	events := make([]domain.LedgerEvent, 0, len(wire))
	for _, w := range wire {
		logIndex := int64(-1)
		if w.LogIndex != nil {
			logIndex = *w.LogIndex
		}
		events = append(events, domain.LedgerEvent{
			Kind:        domain.EventKind(w.Kind),
			Account:     w.Account,
			BlockNumber: w.BlockNumber,
			LogIndex:    logIndex,
			Timestamp:   w.Timestamp,
			Amount:      w.Amount,
			CycleLength: w.CycleLength,
			AmountIn:    w.AmountIn,
			AmountOut:   w.AmountOut,
		})
	}
	return events, nil
}

// Close releases idle connections.
func (c *HTTPClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
