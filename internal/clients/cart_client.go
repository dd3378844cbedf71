package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/stallwise/stallwise-orders-service/internal/config"
	"github.com/stallwise/stallwise-orders-service/internal/logging"
)

// CartLine is one line of a user's cart as reported by the cart service.
type CartLine struct {
	SKUID    int64 `json:"sku_id"`
	Quantity int   `json:"quantity"`
}

// CartClient reads and clears a user's cart. The cart service owns the
// cart; this service only consumes it at checkout.
type CartClient interface {
	GetCart(ctx context.Context, userID string) ([]CartLine, error)
	ClearCart(ctx context.Context, userID string) error
}

// HTTPCartClient implements CartClient over the cart service's REST API.
type HTTPCartClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

func NewHTTPCartClient(cfg config.ServiceConfig) *HTTPCartClient {
	return &HTTPCartClient{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logging.New("cart-client"),
	}
}

func (c *HTTPCartClient) GetCart(ctx context.Context, userID string) ([]CartLine, error) {
	url := fmt.Sprintf("%s/api/v1/carts/%s", c.baseURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Cart fetch failed", logging.Fields{
			"user_id": userID,
			"error":   err.Error(),
		})
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cart service returned status %d", resp.StatusCode)
	}

	var lines []CartLine
	if err := json.NewDecoder(resp.Body).Decode(&lines); err != nil {
		return nil, err
	}
	return lines, nil
}

func (c *HTTPCartClient) ClearCart(ctx context.Context, userID string) error {
	url := fmt.Sprintf("%s/api/v1/carts/%s", c.baseURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("cart service returned status %d", resp.StatusCode)
	}
	return nil
}

// MockCartClient is an in-memory CartClient for tests.
type MockCartClient struct {
	Carts   map[string][]CartLine
	Cleared []string
}

func NewMockCartClient() *MockCartClient {
	return &MockCartClient{Carts: make(map[string][]CartLine)}
}

func (m *MockCartClient) GetCart(ctx context.Context, userID string) ([]CartLine, error) {
	return m.Carts[userID], nil
}

func (m *MockCartClient) ClearCart(ctx context.Context, userID string) error {
	delete(m.Carts, userID)
	m.Cleared = append(m.Cleared, userID)
	return nil
}
