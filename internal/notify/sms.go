package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/eventpass/api/internal/platform/jobs"
)

const (
	defaultSMSTimeout    = 10 * time.Second
	defaultSMSMaxElapsed = 30 * time.Second
	maxSMSLength         = 640
)

// SMSConfig configures the HTTP SMS gateway.
type SMSConfig struct {
	URL        string
	APIKey     string
	Sender     string
	Timeout    time.Duration
	MaxElapsed time.Duration
}

// SMSClient posts messages to a JSON SMS gateway.
type SMSClient struct {
	url        string
	apiKey     string
	sender     string
	httpClient *http.Client
	maxElapsed time.Duration
}

type smsRequest struct {
	From string `json:"from,omitempty"`
	To   string `json:"to"`
	Text string `json:"text"`
}

// NewSMSClient validates the gateway configuration.
func NewSMSClient(cfg SMSConfig, httpClient *http.Client) (*SMSClient, error) {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return nil, errors.New("sms: gateway url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultSMSTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	maxElapsed := cfg.MaxElapsed
	if maxElapsed <= 0 {
		maxElapsed = defaultSMSMaxElapsed
	}
	return &SMSClient{
		url:        url,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		sender:     strings.TrimSpace(cfg.Sender),
		httpClient: httpClient,
		maxElapsed: maxElapsed,
	}, nil
}

// Send posts one message, retrying network errors and 5xx/429 responses with exponential backoff.
// Other 4xx responses are permanent.
func (c *SMSClient) Send(ctx context.Context, to, text string) error {
	to = strings.TrimSpace(to)
	if to == "" {
		return fmt.Errorf("%w: sms recipient is empty", jobs.ErrPermanent)
	}
	if len(text) > maxSMSLength {
		text = text[:maxSMSLength]
	}
	body, err := json.Marshal(smsRequest{From: c.sender, To: to, Text: text})
	if err != nil {
		return fmt.Errorf("%w: encode sms: %v", jobs.ErrPermanent, err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = c.maxElapsed
	return backoff.Retry(func() error {
		return c.post(ctx, body)
	}, backoff.WithContext(policy, ctx))
}

func (c *SMSClient) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("%w: build sms request: %v", jobs.ErrPermanent, err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sms: send: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("sms: gateway returned %d", resp.StatusCode)
	default:
		return backoff.Permanent(fmt.Errorf("%w: sms gateway returned %d", jobs.ErrPermanent, resp.StatusCode))
	}
}
