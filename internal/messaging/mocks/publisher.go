package mocks

import (
	"context"

	"narrative-server/internal/messaging"
	"narrative-server/internal/models"

	"github.com/stretchr/testify/mock"
)

var _ messaging.StoryUpdatePublisher = (*StoryUpdatePublisher)(nil)

// Mock StoryUpdatePublisher
type StoryUpdatePublisher struct {
	mock.Mock
}

func (m *StoryUpdatePublisher) PublishStoryUpdate(ctx context.Context, update models.StoryUpdate) error {
	args := m.Called(ctx, update)
	return args.Error(0)
}
