package opensearch

import "errors"

var (
	// ErrConnectionFailed is returned by Connect when the client cannot be
	// built or the cluster never became ready.
	ErrConnectionFailed = errors.New("opensearch connection failed")

	ErrHealthcheckFailed = errors.New("opensearch healthcheck failed")

	// ErrRequestFailed wraps any non-2xx response from the cluster.
	ErrRequestFailed = errors.New("opensearch request failed")
)
