package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/gatekeeper-bot/gatekeeper/internal/domain/group"
)

// MockRegistry is a mock implementation of group.Registry
type MockRegistry struct {
	mock.Mock
}

func (m *MockRegistry) Get(ctx context.Context, chatID int64) (*group.Config, error) {
	args := m.Called(ctx, chatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*group.Config), args.Error(1)
}

func (m *MockRegistry) List(ctx context.Context) ([]*group.Config, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*group.Config), args.Error(1)
}

func (m *MockRegistry) Upsert(ctx context.Context, cfg *group.Config) error {
	args := m.Called(ctx, cfg)
	return args.Error(0)
}

func (m *MockRegistry) UpdateTitle(ctx context.Context, chatID int64, title string) error {
	args := m.Called(ctx, chatID, title)
	return args.Error(0)
}

func (m *MockRegistry) Delete(ctx context.Context, chatID int64) error {
	args := m.Called(ctx, chatID)
	return args.Error(0)
}
