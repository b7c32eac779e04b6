package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/streampainel/campaign-backend/internal/config"
	"github.com/streampainel/campaign-backend/internal/models"
)

// Client is the surface the campaign processor needs from the WhatsApp
// gateway. Phone numbers are digits-only E.164, already normalized.
type Client interface {
	SendText(ctx context.Context, instance, number, text string) (string, error)
	SendImage(ctx context.Context, instance, number, imageURL, caption string) (string, error)
	// InstanceStatus reports the instance's connection state. Anything it
	// cannot determine reads as disconnected, so campaigns pause rather than
	// over-send.
	InstanceStatus(ctx context.Context, instance string) string
	ConnectInstance(ctx context.Context, instance string) error
	DisconnectInstance(ctx context.Context, instance string) error
	RestartInstance(ctx context.Context, instance string) error
}

// HTTPClient abstracts the http.Client Do method for easier testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// EvolutionOption customises the Evolution API client.
type EvolutionOption func(*EvolutionClient)

// WithHTTPClient overrides the HTTP client used to talk to the gateway.
func WithHTTPClient(client HTTPClient) EvolutionOption {
	return func(c *EvolutionClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithSendLimiter overrides the gateway-wide send limiter.
func WithSendLimiter(limiter *rate.Limiter) EvolutionOption {
	return func(c *EvolutionClient) {
		if limiter != nil {
			c.limiter = limiter
		}
	}
}

// WithBodyLimit adjusts how many bytes of an error response body are kept.
func WithBodyLimit(limit int64) EvolutionOption {
	return func(c *EvolutionClient) {
		if limit > 0 {
			c.maxBodyBytes = limit
		}
	}
}

// EvolutionClient talks to an Evolution API deployment over HTTP.
type EvolutionClient struct {
	baseURL      string
	apiKey       string
	httpClient   HTTPClient
	limiter      *rate.Limiter
	maxBodyBytes int64
	logger       *slog.Logger
}

// NewEvolutionClient constructs a gateway client from configuration.
func NewEvolutionClient(cfg config.GatewayConfig, logger *slog.Logger, opts ...EvolutionOption) *EvolutionClient {
	sendsPerSecond := cfg.SendsPerSecond
	if sendsPerSecond <= 0 {
		sendsPerSecond = 1
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := &EvolutionClient{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		httpClient:   &http.Client{Timeout: timeout},
		limiter:      rate.NewLimiter(rate.Limit(sendsPerSecond), 1),
		maxBodyBytes: 16 * 1024,
		logger:       logger,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	return client
}

type sendTextRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

type sendMediaRequest struct {
	Number    string `json:"number"`
	MediaType string `json:"mediatype"`
	Media     string `json:"media"`
	Caption   string `json:"caption,omitempty"`
}

type sendResponse struct {
	Key struct {
		ID string `json:"id"`
	} `json:"key"`
}

type connectionStateResponse struct {
	Instance struct {
		InstanceName string `json:"instanceName"`
		State        string `json:"state"`
	} `json:"instance"`
}

// SendText dispatches a plain text message through the instance
func (c *EvolutionClient) SendText(ctx context.Context, instance, number, text string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	payload := sendTextRequest{Number: number, Text: text}
	return c.send(ctx, "/message/sendText/"+instance, payload)
}

// SendImage dispatches an image message with a caption through the instance
func (c *EvolutionClient) SendImage(ctx context.Context, instance, number, imageURL, caption string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	payload := sendMediaRequest{
		Number:    number,
		MediaType: "image",
		Media:     imageURL,
		Caption:   caption,
	}
	return c.send(ctx, "/message/sendMedia/"+instance, payload)
}

func (c *EvolutionClient) send(ctx context.Context, path string, payload interface{}) (string, error) {
	body, status, err := c.do(ctx, http.MethodPost, path, payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrDispatchFailed, err)
	}
	if status < 200 || status >= 300 {
		return "", fmt.Errorf("%w: gateway returned %d: %s", models.ErrDispatchFailed, status, strings.TrimSpace(string(body)))
	}

	var resp sendResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: malformed gateway response: %v", models.ErrDispatchFailed, err)
	}
	if resp.Key.ID == "" {
		return "", fmt.Errorf("%w: gateway response missing message id", models.ErrDispatchFailed)
	}

	return resp.Key.ID, nil
}

// InstanceStatus maps the gateway's connection state onto our constants
func (c *EvolutionClient) InstanceStatus(ctx context.Context, instance string) string {
	body, status, err := c.do(ctx, http.MethodGet, "/instance/connectionState/"+instance, nil)
	if err != nil || status < 200 || status >= 300 {
		c.logger.Warn("instance status check failed, treating as disconnected",
			slog.String("instance", instance),
			slog.Int("status", status),
		)
		return models.InstanceDisconnected
	}

	var resp connectionStateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.InstanceDisconnected
	}

	switch resp.Instance.State {
	case "open":
		return models.InstanceConnected
	case "connecting":
		return models.InstanceConnecting
	case "close":
		return models.InstanceDisconnected
	default:
		return models.InstanceError
	}
}

// ConnectInstance asks the gateway to bring the instance online
func (c *EvolutionClient) ConnectInstance(ctx context.Context, instance string) error {
	return c.exec(ctx, http.MethodGet, "/instance/connect/"+instance)
}

// DisconnectInstance logs the instance out
func (c *EvolutionClient) DisconnectInstance(ctx context.Context, instance string) error {
	return c.exec(ctx, http.MethodDelete, "/instance/logout/"+instance)
}

// RestartInstance restarts the instance session
func (c *EvolutionClient) RestartInstance(ctx context.Context, instance string) error {
	return c.exec(ctx, http.MethodPut, "/instance/restart/"+instance)
}

func (c *EvolutionClient) exec(ctx context.Context, method, path string) error {
	body, status, err := c.do(ctx, method, path, nil)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("gateway returned %d: %s", status, strings.TrimSpace(string(body)))
	}
	return nil
}

func (c *EvolutionClient) do(ctx context.Context, method, path string, payload interface{}) ([]byte, int, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("apikey", c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}

	return body, resp.StatusCode, nil
}
