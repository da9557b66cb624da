package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/bai-labs/figmaproxy/models"
)

type MockCache struct {
	mock.Mock
}

func (m *MockCache) GetFile(ctx context.Context, fileKey string) (models.Document, error) {
	args := m.Called(ctx, fileKey)
	return args.Get(0).(models.Document), args.Error(1)
}

func (m *MockCache) PutFile(ctx context.Context, doc models.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockCache) GetNode(ctx context.Context, fileKey string, nodeId string) (models.Document, error) {
	args := m.Called(ctx, fileKey, nodeId)
	return args.Get(0).(models.Document), args.Error(1)
}

func (m *MockCache) PutNode(ctx context.Context, doc models.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockCache) InvalidateFile(ctx context.Context, fileKey string) error {
	args := m.Called(ctx, fileKey)
	return args.Error(0)
}

func (m *MockCache) InvalidateNode(ctx context.Context, fileKey string, nodeId string) error {
	args := m.Called(ctx, fileKey, nodeId)
	return args.Error(0)
}

func (m *MockCache) InvalidateAll(ctx context.Context) (int64, int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Get(1).(int64), args.Error(2)
}

func (m *MockCache) Stats(ctx context.Context) (models.CacheStats, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.CacheStats), args.Error(1)
}
