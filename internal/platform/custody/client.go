// Package custody is the HTTP client for the external custody service that
// actually holds the committed assets. Transfers between an owner wallet,
// the ledger's custody account, and the yield pools all go through it.
package custody

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ReinaMaze/Commitlabs-Contracts/internal/crypto"
	"github.com/ReinaMaze/Commitlabs-Contracts/internal/domain"
)

// Client implements domain.AssetTransfer against the custody REST API.
// Requests are authenticated with HMAC headers.
type Client struct {
	baseURL    string
	auth       *crypto.HMACAuth
	httpClient *http.Client
}

// NewClient creates a custody client. baseURL is the API root, e.g.
// "https://custody.internal:8443".
func NewClient(baseURL string, auth *crypto.HMACAuth) *Client {
	return &Client{
		baseURL: baseURL,
		auth:    auth,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// transferRequest is the wire form of a transfer instruction.
type transferRequest struct {
	Asset  string `json:"asset"`
	From   string `json:"from"`
	To     string `json:"to"`
	Amount int64  `json:"amount"`
}

// transferResponse is the custody API's answer to a transfer.
type transferResponse struct {
	TransferID string `json:"transfer_id"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
}

// Transfer moves amount units of asset from one custody address to another.
// The custody service applies the transfer atomically; a non-completed
// status means no balances moved.
func (c *Client) Transfer(ctx context.Context, asset, from, to string, amount int64) error {
	reqBody := transferRequest{
		Asset:  asset,
		From:   from,
		To:     to,
		Amount: amount,
	}

	var resp transferResponse
	if err := c.doPost(ctx, "/v1/transfers", reqBody, &resp); err != nil {
		return fmt.Errorf("custody: transfer: %w", err)
	}

	if resp.Status != "completed" {
		if resp.Error != "" {
			return fmt.Errorf("custody: transfer %s: %s", resp.Status, resp.Error)
		}
		return fmt.Errorf("custody: transfer not completed: status %q", resp.Status)
	}
	return nil
}

// Balance returns the custody balance of an address for the given asset.
func (c *Client) Balance(ctx context.Context, asset, address string) (int64, error) {
	path := fmt.Sprintf("/v1/balances/%s/%s", asset, address)

	var resp struct {
		Balance int64 `json:"balance"`
	}
	if err := c.doGet(ctx, path, &resp); err != nil {
		return 0, fmt.Errorf("custody: balance: %w", err)
	}
	return resp.Balance, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

func (c *Client) doPost(ctx context.Context, path string, reqBody, out any) error {
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range c.auth.Headers(http.MethodPost, path, string(jsonBody)) {
		req.Header.Set(k, v)
	}

	return c.do(req, out)
}

func (c *Client) doGet(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.auth.Headers(http.MethodGet, path, "") {
		req.Header.Set(k, v)
	}

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

var _ domain.AssetTransfer = (*Client)(nil)
