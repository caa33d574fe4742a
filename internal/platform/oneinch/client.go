// Package oneinch is a thin REST client for the 1inch swap aggregator quote
// API.
package oneinch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alanyoungcy/swapwatch/internal/domain"
)

// DefaultBaseURL is the public quote API root.
const DefaultBaseURL = "https://api.1inch.io/v4.0"

// Client queries swap quotes per network.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a quote client. apiKey is optional and sent as a bearer
// token when set.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Quote asks for the output of swapping amount base units of from into to on
// the given network. Errors wrap domain.ErrConnectivity, domain.ErrResponse or
// domain.ErrDecode.
func (c *Client) Quote(ctx context.Context, networkID, from, to string, amount *big.Int) (QuoteResponse, error) {
	params := url.Values{}
	params.Set("fromTokenAddress", from)
	params.Set("toTokenAddress", to)
	params.Set("amount", amount.String())

	endpoint := fmt.Sprintf("%s/%s/quote?%s", c.baseURL, url.PathEscape(networkID), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return QuoteResponse{}, fmt.Errorf("oneinch: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return QuoteResponse{}, fmt.Errorf("oneinch: %w: %w", domain.ErrConnectivity, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return QuoteResponse{}, fmt.Errorf("oneinch: %w: read body: %w", domain.ErrConnectivity, err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr APIError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Description != "" {
			return QuoteResponse{}, fmt.Errorf("oneinch: %w: HTTP %d: %s: %s", domain.ErrResponse, resp.StatusCode, apiErr.Error, apiErr.Description)
		}
		return QuoteResponse{}, fmt.Errorf("oneinch: %w: HTTP %d", domain.ErrResponse, resp.StatusCode)
	}

	var out QuoteResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return QuoteResponse{}, fmt.Errorf("oneinch: %w: %v", domain.ErrDecode, err)
	}
	if _, ok := out.ToAmount(); !ok {
		return QuoteResponse{}, fmt.Errorf("oneinch: %w: toTokenAmount %q is not a non-negative integer", domain.ErrDecode, out.ToTokenAmount)
	}
	return out, nil
}

// IsTimeout reports whether err came from a request deadline.
func IsTimeout(err error) bool {
	var ne interface{ Timeout() bool }
	return errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout())
}
