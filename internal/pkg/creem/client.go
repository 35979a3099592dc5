package creem

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Config holds Creem API configuration
type Config struct {
	APIKey      string
	Environment string // "sandbox" or "production"
	Timeout     time.Duration
}

// Client calls the Creem payments API
type Client struct {
	httpClient *http.Client
	config     Config
}

// CheckoutRequest creates a hosted checkout session
type CheckoutRequest struct {
	ProductID     string            `json:"product_id"`
	RequestID     string            `json:"request_id,omitempty"`
	SuccessURL    string            `json:"success_url,omitempty"`
	CustomerEmail string            `json:"-"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// CheckoutResponse is the created checkout session
type CheckoutResponse struct {
	ID          string `json:"id"`
	CheckoutURL string `json:"checkout_url"`
	Status      string `json:"status"`
}

// NewClient creates a Creem API client
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		config:     cfg,
	}
}

func (c *Client) baseURL() string {
	if c.config.Environment == "production" {
		return "https://api.creem.io"
	}
	return "https://test-api.creem.io"
}

// CreateCheckout creates a hosted checkout session and returns its URL
func (c *Client) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResponse, error) {
	if strings.TrimSpace(c.config.APIKey) == "" {
		return nil, fmt.Errorf("creem config error: api key is empty")
	}
	if strings.TrimSpace(req.ProductID) == "" {
		return nil, fmt.Errorf("validation error: product_id must be non-empty")
	}

	payload := map[string]interface{}{
		"product_id": req.ProductID,
	}
	if req.RequestID != "" {
		payload["request_id"] = req.RequestID
	}
	if req.SuccessURL != "" {
		payload["success_url"] = req.SuccessURL
	}
	if req.CustomerEmail != "" {
		payload["customer"] = map[string]string{"email": req.CustomerEmail}
	}
	if len(req.Metadata) > 0 {
		payload["metadata"] = req.Metadata
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode creem request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL()+"/v1/checkouts", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create creem request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.config.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("creem request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read creem response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("creem checkout failed: status %d: %s", resp.StatusCode, string(respBody))
	}

	var checkout CheckoutResponse
	if err := json.Unmarshal(respBody, &checkout); err != nil {
		return nil, fmt.Errorf("failed to decode creem response: %w", err)
	}
	return &checkout, nil
}
