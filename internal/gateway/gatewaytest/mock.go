// Package gatewaytest содержит мок gateway.API для тестов.
package gatewaytest

import (
	"context"

	"github.com/ButyrinIA/forum/internal/gateway"
	"github.com/ButyrinIA/forum/internal/models"
	"github.com/stretchr/testify/mock"
)

type MockAPI struct {
	mock.Mock
}

var _ gateway.API = (*MockAPI)(nil)

func (m *MockAPI) ListPosts(ctx context.Context) ([]models.Post, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Post), args.Error(1)
}

func (m *MockAPI) GetPost(ctx context.Context, id models.ID) (*models.Post, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(*models.Post), args.Error(1)
}

func (m *MockAPI) CreatePost(ctx context.Context, draft models.PostDraft) (*models.Post, error) {
	args := m.Called(ctx, draft)
	return args.Get(0).(*models.Post), args.Error(1)
}

func (m *MockAPI) UpdatePost(ctx context.Context, id models.ID, patch models.Patch) (*models.Post, error) {
	args := m.Called(ctx, id, patch)
	return args.Get(0).(*models.Post), args.Error(1)
}

func (m *MockAPI) DeletePost(ctx context.Context, id models.ID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockAPI) ListComments(ctx context.Context, postID models.ID) ([]models.Comment, error) {
	args := m.Called(ctx, postID)
	return args.Get(0).([]models.Comment), args.Error(1)
}

func (m *MockAPI) CreateComment(ctx context.Context, draft models.CommentDraft) (*models.Comment, error) {
	args := m.Called(ctx, draft)
	return args.Get(0).(*models.Comment), args.Error(1)
}

func (m *MockAPI) UpdateComment(ctx context.Context, id models.ID, patch models.Patch) (*models.Comment, error) {
	args := m.Called(ctx, id, patch)
	return args.Get(0).(*models.Comment), args.Error(1)
}

func (m *MockAPI) ListUsers(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockAPI) CreateUser(ctx context.Context, draft models.UserDraft) (*models.User, error) {
	args := m.Called(ctx, draft)
	return args.Get(0).(*models.User), args.Error(1)
}
