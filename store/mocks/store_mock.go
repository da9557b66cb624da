package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/bai-labs/figmaproxy/models"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) UpsertUser(ctx context.Context, user models.User) (models.User, error) {
	args := m.Called(ctx, user)
	return args.Get(0).(models.User), args.Error(1)
}

func (m *MockStore) GetUser(ctx context.Context, figmaId string) (models.User, error) {
	args := m.Called(ctx, figmaId)
	return args.Get(0).(models.User), args.Error(1)
}
