package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/dmitrymomot/reviewkit/pkg/moderation"
)

const indexMapping = `{
  "mappings": {
    "properties": {
      "id":           {"type": "keyword"},
      "provider_id":  {"type": "keyword"},
      "container_id": {"type": "keyword"},
      "state":        {"type": "keyword"},
      "subjects":     {"type": "keyword"},
      "published_at": {"type": "date"},
      "created_at":   {"type": "date"}
    }
  }
}`

// document is the indexed projection of a published reviewable.
type document struct {
	ID          string     `json:"id"`
	ProviderID  string     `json:"provider_id,omitempty"`
	ContainerID string     `json:"container_id"`
	State       string     `json:"state"`
	Subjects    []string   `json:"subjects"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Indexer implements moderation.SearchIndexer on an OpenSearch index.
type Indexer struct {
	transport opensearchapi.Transport
	index     string
	refresh   string
}

// NewIndexer creates an Indexer. transport is usually an *opensearch.Client.
func NewIndexer(transport opensearchapi.Transport, cfg IndexConfig) *Indexer {
	ix := &Indexer{transport: transport, index: cfg.Index}
	if ix.index == "" {
		ix.index = "reviewables"
	}
	if cfg.Refresh {
		ix.refresh = "true"
	}
	return ix
}

// EnsureIndex creates the index with its mapping unless it already exists.
func (ix *Indexer) EnsureIndex(ctx context.Context) error {
	res, err := opensearchapi.IndicesCreateRequest{
		Index: ix.index,
		Body:  strings.NewReader(indexMapping),
	}.Do(ctx, ix.transport)
	if err != nil {
		return fmt.Errorf("%w: create index: %w", ErrRequestFailed, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusBadRequest {
		body, _ := io.ReadAll(res.Body)
		if bytes.Contains(body, []byte("resource_already_exists_exception")) {
			return nil
		}
		return fmt.Errorf("%w: create index: %s", ErrRequestFailed, body)
	}
	return checkResponse("create index", res)
}

// IndexReviewable upserts the item's document under its id.
func (ix *Indexer) IndexReviewable(ctx context.Context, item *moderation.Reviewable) error {
	doc := document{
		ID:          item.ID.String(),
		ContainerID: item.ContainerID.String(),
		State:       string(item.State),
		Subjects:    item.Subjects,
		PublishedAt: item.PublishedAt,
		CreatedAt:   item.CreatedAt,
	}
	if item.ProviderID != uuid.Nil {
		doc.ProviderID = item.ProviderID.String()
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	res, err := opensearchapi.IndexRequest{
		Index:      ix.index,
		DocumentID: doc.ID,
		Body:       bytes.NewReader(body),
		Refresh:    ix.refresh,
	}.Do(ctx, ix.transport)
	if err != nil {
		return fmt.Errorf("%w: index %s: %w", ErrRequestFailed, doc.ID, err)
	}
	defer res.Body.Close()
	return checkResponse("index "+doc.ID, res)
}

// RemoveReviewable deletes the document. Missing documents are not an error.
func (ix *Indexer) RemoveReviewable(ctx context.Context, id uuid.UUID) error {
	res, err := opensearchapi.DeleteRequest{
		Index:      ix.index,
		DocumentID: id.String(),
		Refresh:    ix.refresh,
	}.Do(ctx, ix.transport)
	if err != nil {
		return fmt.Errorf("%w: delete %s: %w", ErrRequestFailed, id, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil
	}
	return checkResponse("delete "+id.String(), res)
}

func checkResponse(op string, res *opensearchapi.Response) error {
	if !res.IsError() {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
	return fmt.Errorf("%w: %s: status %d: %s", ErrRequestFailed, op, res.StatusCode, bytes.TrimSpace(body))
}
