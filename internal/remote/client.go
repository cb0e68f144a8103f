package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ikkim/udonggeum-cartsync/internal/cart"
	"github.com/ikkim/udonggeum-cartsync/pkg/logger"
	"golang.org/x/time/rate"
)

const cartPath = "/api/v1/cart"

// TokenSource supplies the bearer token for each request. An empty token
// sends the request without an Authorization header.
type TokenSource interface {
	Token() string
}

// Config holds client settings
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 disables limiting
	Burst     int
}

// Client talks to the storefront backend that owns the authoritative cart.
// It implements cart.Remote.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	limiter    *rate.Limiter
	log        *logger.Logger
}

var _ cart.Remote = (*Client)(nil)

// NewClient creates a new remote cart client
func NewClient(cfg Config, tokens TokenSource) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("invalid config: base url is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		tokens:     tokens,
		log:        logger.WithContext(logger.Fields{"component": "remote_cart"}),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return c, nil
}

type addLineRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// FetchCart returns the authoritative cart lines
func (c *Client) FetchCart(ctx context.Context) ([]cart.RemoteLine, error) {
	body, err := c.doRequest(ctx, http.MethodGet, cartPath, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch cart: %w", err)
	}

	lines, err := decodeCart(body)
	if err != nil {
		return nil, fmt.Errorf("fetch cart: %w", err)
	}
	return lines, nil
}

// AddLine increments the item's quantity on the server, creating the line if needed
func (c *Client) AddLine(ctx context.Context, itemID string, quantity int) error {
	_, err := c.doRequest(ctx, http.MethodPost, cartPath, addLineRequest{
		ProductID: itemID,
		Quantity:  quantity,
	})
	if err != nil {
		return fmt.Errorf("add line %s: %w", itemID, err)
	}
	return nil
}

// RemoveLine deletes the item's line on the server
func (c *Client) RemoveLine(ctx context.Context, itemID string) error {
	_, err := c.doRequest(ctx, http.MethodDelete, cartPath+"/"+url.PathEscape(itemID), nil)
	if err != nil {
		return fmt.Errorf("remove line %s: %w", itemID, err)
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
		}
	}

	var reader io.Reader
	if payload != nil {
		reqBody, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(reqBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrNetworkError, err)
	}

	c.log.Debug("Remote cart request completed", logger.Fields{
		"request_id":  requestID,
		"method":      method,
		"path":        path,
		"status_code": resp.StatusCode,
		"latency_ms":  time.Since(start).Milliseconds(),
	})

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := errorMessage(body)
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return nil, fmt.Errorf("%w: %s", ErrUnauthorized, msg)
		default:
			return nil, fmt.Errorf("%w: %d %s", ErrRemoteStatus, resp.StatusCode, msg)
		}
	}

	return body, nil
}

// errorMessage pulls the backend's {"error": ...} message out of an error body.
func errorMessage(body []byte) string {
	var errResp struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &errResp); err != nil {
		return strings.TrimSpace(string(body))
	}
	if errResp.Message != "" {
		return errResp.Message
	}
	return errResp.Error
}
