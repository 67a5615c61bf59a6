// Package opensearch wraps the official OpenSearch Go client with
// environment-driven configuration, a startup health check, and an Indexer
// that keeps the public search index in step with moderation.
//
// The package builds on github.com/opensearch-project/opensearch-go/v2:
//
//   - Config holds connection settings populated from environment variables
//     via github.com/dmitrymomot/reviewkit/pkg/config.
//
//   - Connect constructs a *opensearch.Client and waits for the cluster
//     health to leave red, retrying OPENSEARCH_READY_ATTEMPTS times.
//
//   - Healthcheck returns the same cluster health probe for /healthz.
//
//   - Indexer implements moderation.SearchIndexer. Published items are written
//     as documents keyed by reviewable id; unpublished items are deleted.
//
// # Usage
//
//	client, err := opensearch.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	ix := opensearch.NewIndexer(client, indexCfg)
//	if err := ix.EnsureIndex(ctx); err != nil {
//	    return err
//	}
//	worker.RegisterHandler(moderation.NewPublishedHandler(store, ids, ix))
//
// # Environment Variables
//
//	OPENSEARCH_ADDRESSES      Comma-separated node URLs (required)
//	OPENSEARCH_USERNAME       Basic auth user
//	OPENSEARCH_PASSWORD       Basic auth password
//	OPENSEARCH_MAX_RETRIES    Client retries (default 3)
//	OPENSEARCH_DISABLE_RETRY  Disable client retries (default false)
//	OPENSEARCH_READY_ATTEMPTS Startup health attempts (default 3)
//	OPENSEARCH_READY_INTERVAL Pause between them (default 2s)
//	OPENSEARCH_INDEX          Index name (default "reviewables")
//	OPENSEARCH_REFRESH        Refresh after each write (default false)
//
// Errors are exposed as ErrConnectionFailed, ErrHealthcheckFailed and
// ErrRequestFailed for use with errors.Is.
package opensearch
