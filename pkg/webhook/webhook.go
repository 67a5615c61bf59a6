package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const userAgent = "reviewkit-webhook/1.0"

// Sender posts JSON payloads with retries and optional HMAC signing.
// Use NewSender to create instances.
type Sender struct {
	client *http.Client
}

// NewSender returns a Sender with a pooled HTTP client.
func NewSender() *Sender {
	return &Sender{
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// NewSenderWithClient uses client for every request. A nil client gives NewSender.
func NewSenderWithClient(client *http.Client) *Sender {
	if client == nil {
		return NewSender()
	}
	return &Sender{client: client}
}

// Send marshals data to JSON and POSTs it to target. Each retry is re-signed.
// 4xx responses other than 408, 425 and 429 stop retrying and return
// ErrPermanentFailure.
func (s *Sender) Send(ctx context.Context, target string, data any, opts ...SendOption) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if err := validate(target, payload); err != nil {
		return err
	}

	o := defaultSendOptions()
	for _, opt := range opts {
		opt(o)
	}
	client := s.client
	if o.httpClient != nil {
		client = o.httpClient
	}

	var lastErr error
	for attempt := 0; attempt <= o.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return errors.Join(lastErr, ctx.Err())
			case <-time.After(o.backoff.NextInterval(attempt)):
			}
		}

		result := s.deliver(ctx, client, target, payload, o)
		result.Attempt = attempt + 1
		if o.onDelivery != nil {
			o.onDelivery(result)
		}
		if result.Error == nil {
			return nil
		}

		lastErr = result.Error
		if permanent(result.StatusCode) {
			return fmt.Errorf("%w: %w", ErrPermanentFailure, lastErr)
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrDeliveryFailed, o.maxRetries+1, lastErr)
}

func validate(target string, payload []byte) error {
	if target == "" {
		return fmt.Errorf("%w: URL is required", ErrInvalidURL)
	}
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: only http and https schemes are supported", ErrInvalidURL)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidURL)
	}
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		return fmt.Errorf("%w: payload cannot be empty", ErrInvalidPayload)
	}
	return nil
}

func (s *Sender) deliver(ctx context.Context, client *http.Client, target string, payload []byte, o *sendOptions) DeliveryResult {
	start := time.Now()
	var result DeliveryResult
	fail := func(err error) DeliveryResult {
		result.Duration = time.Since(start)
		result.Error = err
		return result
	}

	reqCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return fail(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	for k, v := range o.headers {
		req.Header[k] = v
	}

	if o.secret != "" {
		sig, err := Sign(o.secret, payload, o.now())
		if err != nil {
			return fail(err)
		}
		sig.Apply(req.Header)
	}

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return fail(fmt.Errorf("%w: %w", ErrTimeout, err))
		}
		return fail(fmt.Errorf("%w: %w", ErrTemporaryFailure, err))
	}
	defer func() { _ = resp.Body.Close() }()

	result.StatusCode = resp.StatusCode
	result.Success = resp.StatusCode >= 200 && resp.StatusCode < 300
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if result.Success {
		result.Duration = time.Since(start)
		return result
	}

	msg := fmt.Sprintf("endpoint returned status %d", resp.StatusCode)
	if len(body) > 0 {
		text := strings.ReplaceAll(string(body), "\n", " ")
		if len(text) > 200 {
			text = text[:200] + "..."
		}
		msg += ": " + text
	}
	return fail(errors.New(msg))
}

// permanent reports whether the status will not change on retry.
func permanent(status int) bool {
	if status < 400 || status >= 500 {
		return false
	}
	switch status {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return false
	}
	return true
}
