package webhook

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/reviewkit/pkg/moderation"
)

// IdentifierRequest is the body sent to the identifier registry.
type IdentifierRequest struct {
	ReviewableID string    `json:"reviewable_id"`
	ProviderID   string    `json:"provider_id,omitempty"`
	ContainerID  string    `json:"container_id"`
	ActorID      string    `json:"actor_id"`
	Subjects     []string  `json:"subjects,omitempty"`
	PublishedAt  time.Time `json:"published_at"`
}

// IdentifierClient implements moderation.IdentifierRequester by posting a
// signed IdentifierRequest to the registry endpoint.
type IdentifierClient struct {
	sender *Sender
	url    string
	opts   []SendOption
}

// NewIdentifierClient creates a client for url. A non-empty secret signs
// every request.
func NewIdentifierClient(sender *Sender, url, secret string, opts ...SendOption) *IdentifierClient {
	if sender == nil {
		sender = NewSender()
	}
	if secret != "" {
		opts = append([]SendOption{WithSignature(secret)}, opts...)
	}
	return &IdentifierClient{sender: sender, url: url, opts: opts}
}

// RequestIdentifier posts the item to the registry. The item's own PublishedAt
// wins over the task's.
func (c *IdentifierClient) RequestIdentifier(ctx context.Context, item *moderation.Reviewable, task moderation.PublishedTask) error {
	req := IdentifierRequest{
		ReviewableID: item.ID.String(),
		ContainerID:  item.ContainerID.String(),
		ActorID:      task.ActorID.String(),
		Subjects:     item.Subjects,
		PublishedAt:  task.PublishedAt,
	}
	if item.PublishedAt != nil {
		req.PublishedAt = *item.PublishedAt
	}
	if item.ProviderID != uuid.Nil {
		req.ProviderID = item.ProviderID.String()
	}
	return c.sender.Send(ctx, c.url, req, c.opts...)
}
