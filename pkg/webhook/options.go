package webhook

import (
	"net/http"
	"time"
)

// DeliveryResult describes one delivery attempt.
type DeliveryResult struct {
	Success    bool
	StatusCode int
	Attempt    int
	Duration   time.Duration
	Error      error
}

// DeliveryHook is called after each delivery attempt.
type DeliveryHook func(result DeliveryResult)

type sendOptions struct {
	timeout    time.Duration
	headers    http.Header
	httpClient *http.Client

	maxRetries int
	backoff    BackoffStrategy

	secret string
	now    func() time.Time

	onDelivery DeliveryHook
}

func defaultSendOptions() *sendOptions {
	return &sendOptions{
		timeout:    10 * time.Second,
		headers:    make(http.Header),
		maxRetries: 3,
		backoff:    DefaultBackoffStrategy(),
		now:        time.Now,
	}
}

// SendOption configures a single Send call.
type SendOption func(*sendOptions)

// WithTimeout bounds each attempt. Default 10s.
func WithTimeout(timeout time.Duration) SendOption {
	return func(o *sendOptions) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// WithHeader adds a header to every attempt.
func WithHeader(key, value string) SendOption {
	return func(o *sendOptions) {
		o.headers.Set(key, value)
	}
}

// WithMaxRetries sets the number of retries after the first attempt. Default 3.
func WithMaxRetries(n int) SendOption {
	return func(o *sendOptions) {
		o.maxRetries = max(n, 0)
	}
}

// WithBackoff sets the delay strategy between retries. A nil strategy is ignored.
func WithBackoff(strategy BackoffStrategy) SendOption {
	return func(o *sendOptions) {
		if strategy != nil {
			o.backoff = strategy
		}
	}
}

// WithSignature signs every attempt with secret.
func WithSignature(secret string) SendOption {
	return func(o *sendOptions) {
		o.secret = secret
	}
}

// WithHTTPClient overrides the sender's client for this call only.
func WithHTTPClient(client *http.Client) SendOption {
	return func(o *sendOptions) {
		o.httpClient = client
	}
}

// WithOnDelivery registers a hook called after each attempt.
func WithOnDelivery(hook DeliveryHook) SendOption {
	return func(o *sendOptions) {
		o.onDelivery = hook
	}
}

// WithFixedRetry retries attempts times with a constant interval.
func WithFixedRetry(attempts int, interval time.Duration) SendOption {
	return func(o *sendOptions) {
		o.maxRetries = max(attempts, 0)
		o.backoff = FixedBackoff{Interval: interval}
	}
}

// WithNoRetry makes a single attempt.
func WithNoRetry() SendOption {
	return func(o *sendOptions) {
		o.maxRetries = 0
	}
}
