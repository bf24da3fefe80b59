package carrier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	BaseURL        string
	Email          string
	Password       string
	PickupLocation string
	Timeout        time.Duration
}

// Client is a thin authenticated HTTP client for the shipment provider API.
// It caches the bearer token across calls and re-authenticates once when the
// provider rejects it; it never retries failed requests beyond that.
type Client struct {
	cfg        Config
	httpClient *http.Client
	session    *session
}

type Option func(*Client)

// WithClock overrides the session clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.session = newSession(now)
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func New(cfg Config, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		session:    newSession(nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PickupLocation exposes the configured warehouse name so callers can build
// shipment order payloads without reaching into the config.
func (c *Client) PickupLocation() string {
	return c.cfg.PickupLocation
}

// Authenticate exchanges the configured credentials for a bearer token and
// caches it. Called lazily by every operation; exported so startup code can
// verify credentials eagerly.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	if c.cfg.Email == "" || c.cfg.Password == "" {
		return "", ErrMissingCredentials
	}

	body, err := json.Marshal(authRequest{Email: c.cfg.Email, Password: c.cfg.Password})
	if err != nil {
		return "", fmt.Errorf("carrier: failed to marshal auth request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("carrier: failed to build auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("carrier: auth request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("carrier: failed to read auth response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &AuthError{StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
	}

	var auth authResponse
	if err := json.Unmarshal(respBody, &auth); err != nil {
		return "", fmt.Errorf("carrier: failed to decode auth response: %w", err)
	}
	if auth.Token == "" {
		return "", &AuthError{StatusCode: resp.StatusCode, Message: "empty token in auth response"}
	}

	c.session.set(auth.Token)
	log.Debug().Msg("carrier: session token refreshed")
	return auth.Token, nil
}

func (c *Client) token(ctx context.Context) (string, error) {
	if tok := c.session.get(); tok != "" {
		return tok, nil
	}
	return c.Authenticate(ctx)
}

// do performs one authenticated JSON call. A 401 clears the cached session
// and retries exactly once with a fresh token.
func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	retried := false
	for {
		token, err := c.token(ctx)
		if err != nil {
			return err
		}

		var bodyReader io.Reader
		if payload != nil {
			body, err := json.Marshal(payload)
			if err != nil {
				return fmt.Errorf("carrier: failed to marshal request: %w", err)
			}
			bodyReader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, bodyReader)
		if err != nil {
			return fmt.Errorf("carrier: failed to build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("carrier: request failed: %w", err)
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("carrier: failed to read response: %w", err)
		}

		if resp.StatusCode == http.StatusUnauthorized && !retried {
			retried = true
			c.session.clear()
			log.Warn().Str("path", path).Msg("carrier: token rejected, re-authenticating")
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
		}

		if out != nil {
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("carrier: failed to decode response: %w", err)
			}
		}
		return nil
	}
}

// CreateOrder registers a new adhoc shipment order with the carrier.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResponse, error) {
	var resp CreateOrderResponse
	if err := c.do(ctx, http.MethodPost, "/orders/create/adhoc", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AssignAWB asks the carrier to assign a courier and waybill to an existing
// shipment. A 2xx response without a waybill means no courier was
// serviceable; that is reported as *AWBError.
func (c *Client) AssignAWB(ctx context.Context, shipmentID int64) (*AssignAWB, error) {
	var envelope assignAWBEnvelope
	if err := c.do(ctx, http.MethodPost, "/courier/assign/awb", AssignAWBRequest{ShipmentID: shipmentID}, &envelope); err != nil {
		return nil, err
	}

	awb := envelope.normalize()
	if awb.AWBCode == "" {
		return nil, &AWBError{Message: fmt.Sprintf("no courier assigned for shipment %d", shipmentID)}
	}
	return &awb, nil
}

// GeneratePickup schedules physical pickup for the given shipments.
func (c *Client) GeneratePickup(ctx context.Context, shipmentIDs []int64) (*PickupResponse, error) {
	var resp PickupResponse
	if err := c.do(ctx, http.MethodPost, "/courier/generate/pickup", GeneratePickupRequest{ShipmentIDs: shipmentIDs}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Track fetches the tracking status for a waybill.
func (c *Client) Track(ctx context.Context, awbCode string) (*TrackingStatus, error) {
	var resp TrackingStatus
	if err := c.do(ctx, http.MethodGet, "/courier/track/awb/"+awbCode, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CancelOrders cancels the given carrier order ids.
func (c *Client) CancelOrders(ctx context.Context, orderIDs []int64) (*CancelResponse, error) {
	var resp CancelResponse
	if err := c.do(ctx, http.MethodPost, "/orders/cancel", CancelOrdersRequest{IDs: orderIDs}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func errorMessage(body []byte) string {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Message != "" {
		return er.Message
	}
	if len(body) > 0 {
		return string(body)
	}
	return "unknown carrier error"
}
