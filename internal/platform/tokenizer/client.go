// Package tokenizer is the HTTP client for the ownership-token service. Each
// commitment gets a token minted to its owner; the token ID is stored on the
// commitment record.
package tokenizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ReinaMaze/Commitlabs-Contracts/internal/domain"
)

// Client implements domain.TokenMinter against the tokenizer REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a tokenizer client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Mint mints an ownership token to the given owner address and returns the
// new token ID.
func (c *Client) Mint(ctx context.Context, owner string) (uint64, error) {
	reqBody := struct {
		Owner string `json:"owner"`
	}{Owner: owner}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return 0, fmt.Errorf("tokenizer: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/tokens", bytes.NewReader(jsonBody))
	if err != nil {
		return 0, fmt.Errorf("tokenizer: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("tokenizer: mint: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("tokenizer: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return 0, fmt.Errorf("tokenizer: HTTP %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		TokenID uint64 `json:"token_id"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, fmt.Errorf("tokenizer: decode response: %w", err)
	}

	return result.TokenID, nil
}

var _ domain.TokenMinter = (*Client)(nil)
