package license

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/sellcomet/eddlicense/internal/cmn/logger"
	"github.com/sellcomet/eddlicense/internal/cmn/logger/tag"
)

// DefaultTimeout caps every call to the licensing server.
const DefaultTimeout = 15 * time.Second

// Action is a licensing server operation.
type Action string

const (
	ActionActivate   Action = "activate_license"
	ActionDeactivate Action = "deactivate_license"
	ActionCheck      Action = "check_license"
)

// RemoteRequest is the form posted to the licensing server.
type RemoteRequest struct {
	Action   Action
	License  string
	ItemName string
	URL      string
}

// Remote talks to the licensing server. An error means the server could not
// be reached; the caller leaves its state untouched. Any answer it did give,
// whatever the HTTP status, comes back as Details.
type Remote interface {
	Call(ctx context.Context, req RemoteRequest) (Details, error)
}

// RemoteError describes a non-2xx answer. It is logged and counted; the body
// is still decoded and returned to the caller.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("licensing server error (status %d): %s", e.StatusCode, e.Message)
}

// RemoteClient is the HTTP implementation of Remote.
type RemoteClient struct {
	apiURL  string
	client  *resty.Client
	metrics *Metrics
}

var _ Remote = (*RemoteClient)(nil)

// RemoteOption configures a RemoteClient.
type RemoteOption func(*RemoteClient)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) RemoteOption {
	return func(c *RemoteClient) {
		if d > 0 {
			c.client.SetTimeout(d)
		}
	}
}

// WithInsecureSkipVerify turns off TLS certificate verification. The
// licensing endpoint is verified unless this is set.
func WithInsecureSkipVerify(skip bool) RemoteOption {
	return func(c *RemoteClient) {
		if skip {
			c.client.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true}) //nolint:gosec // explicit opt-in
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) RemoteOption {
	return func(c *RemoteClient) {
		c.client.SetHeader("User-Agent", ua)
	}
}

// WithMetrics records request counts and durations.
func WithMetrics(m *Metrics) RemoteOption {
	return func(c *RemoteClient) {
		c.metrics = m
	}
}

// NewRemoteClient returns a client posting to apiURL.
func NewRemoteClient(apiURL string, opts ...RemoteOption) *RemoteClient {
	c := &RemoteClient{
		apiURL: apiURL,
		client: resty.New().
			SetTimeout(DefaultTimeout).
			SetHeader("Accept", "application/json"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call posts req as a form and decodes the answer.
func (c *RemoteClient) Call(ctx context.Context, req RemoteRequest) (Details, error) {
	start := time.Now()
	resp, err := c.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"edd_action": string(req.Action),
			"license":    req.License,
			"item_name":  req.ItemName,
			"url":        req.URL,
		}).
		Post(c.apiURL)
	if err != nil {
		c.metrics.RequestDone(req.Action, resultFailure, time.Since(start))
		return nil, fmt.Errorf("request failed: %w", err)
	}

	result := resultSuccess
	if !resp.IsSuccess() {
		result = resultHTTPError
		logger.Warn(ctx, "Licensing server answered with an error status",
			tag.Action(string(req.Action)),
			tag.StatusCode(resp.StatusCode()),
			tag.Error(&RemoteError{StatusCode: resp.StatusCode(), Message: errorMessage(resp.Body())}),
		)
	}
	c.metrics.RequestDone(req.Action, result, time.Since(start))

	return DecodeDetails(resp.Body()), nil
}

// errorMessage extracts a message field from a JSON error body, or returns
// the trimmed body.
func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}

// RemoteFunc adapts a function to Remote.
type RemoteFunc func(ctx context.Context, req RemoteRequest) (Details, error)

// Call implements Remote.
func (f RemoteFunc) Call(ctx context.Context, req RemoteRequest) (Details, error) {
	return f(ctx, req)
}
