package opensearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

// Connect builds a client and waits until the cluster reports a usable health
// status, retrying ReadyAttempts times.
func Connect(ctx context.Context, cfg Config) (*opensearch.Client, error) {
	client, err := opensearch.NewClient(opensearch.Config{
		Addresses:    cfg.Addresses,
		Username:     cfg.Username,
		Password:     cfg.Password,
		MaxRetries:   cfg.MaxRetries,
		DisableRetry: cfg.DisableRetry,
	})
	if err != nil {
		return nil, errors.Join(ErrConnectionFailed, err)
	}

	probe := Healthcheck(client)
	attempts := max(cfg.ReadyAttempts, 1)
	for attempt := range attempts {
		if err = probe(ctx); err == nil {
			return client, nil
		}
		if attempt == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrConnectionFailed, ctx.Err())
		case <-time.After(cfg.ReadyInterval):
		}
	}
	return nil, errors.Join(ErrConnectionFailed, err)
}

// Healthcheck returns a readiness probe over the cluster health API. A red
// cluster cannot take writes for every shard and is reported unhealthy.
func Healthcheck(transport opensearchapi.Transport) func(context.Context) error {
	return func(ctx context.Context) error {
		res, err := opensearchapi.ClusterHealthRequest{}.Do(ctx, transport)
		if err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		defer res.Body.Close()
		if err := checkResponse("cluster health", res); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}

		var health struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(res.Body).Decode(&health); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		if health.Status == "red" || health.Status == "" {
			return errors.Join(ErrHealthcheckFailed, fmt.Errorf("cluster status %q", health.Status))
		}
		return nil
	}
}
