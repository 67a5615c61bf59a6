package moderation_test

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/dmitrymomot/reviewkit/pkg/moderation"
)

type MockIdentifierRequester struct {
	mock.Mock
}

func (m *MockIdentifierRequester) RequestIdentifier(ctx context.Context, item *moderation.Reviewable, task moderation.PublishedTask) error {
	args := m.Called(ctx, item, task)
	return args.Error(0)
}

type MockSearchIndexer struct {
	mock.Mock
}

func (m *MockSearchIndexer) IndexReviewable(ctx context.Context, item *moderation.Reviewable) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *MockSearchIndexer) RemoveReviewable(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
