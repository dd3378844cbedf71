package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/stallwise/stallwise-orders-service/internal/config"
	"github.com/stallwise/stallwise-orders-service/internal/logging"
)

// NotificationType identifies the template a message uses.
type NotificationType string

const (
	NotificationOrderShipped   NotificationType = "order.shipped"
	NotificationPaymentOutcome NotificationType = "order.payment_outcome"
)

// SendNotificationRequest is the payload accepted by the notification
// service.
type SendNotificationRequest struct {
	Type      NotificationType  `json:"type"`
	Recipient string            `json:"recipient"`
	Subject   string            `json:"subject"`
	Body      string            `json:"body"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// NotificationSender dispatches buyer-facing messages. Delivery is best
// effort; order processing never blocks on it.
type NotificationSender interface {
	Send(ctx context.Context, req *SendNotificationRequest) error
}

// HTTPNotificationClient implements NotificationSender over HTTP.
type HTTPNotificationClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

func NewHTTPNotificationClient(cfg config.ServiceConfig) *HTTPNotificationClient {
	return &HTTPNotificationClient{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logging.New("notification-client"),
	}
}

func (c *HTTPNotificationClient) Send(ctx context.Context, req *SendNotificationRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/api/v1/notifications", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("Notification dispatch failed", logging.Fields{
			"recipient": req.Recipient,
			"type":      req.Type,
			"error":     err.Error(),
		})
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("notification service returned status %d", resp.StatusCode)
	}
	return nil
}

// MockNotificationSender records notifications for tests.
type MockNotificationSender struct {
	Sent []*SendNotificationRequest
}

func NewMockNotificationSender() *MockNotificationSender {
	return &MockNotificationSender{}
}

func (m *MockNotificationSender) Send(ctx context.Context, req *SendNotificationRequest) error {
	m.Sent = append(m.Sent, req)
	return nil
}
