package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/bai-labs/figmaproxy/figma"
)

type MockClient struct {
	mock.Mock
}

func (m *MockClient) Me(ctx context.Context, accessToken string) (figma.Me, error) {
	args := m.Called(ctx, accessToken)
	return args.Get(0).(figma.Me), args.Error(1)
}

func (m *MockClient) File(ctx context.Context, accessToken string, fileKey string) (figma.File, error) {
	args := m.Called(ctx, accessToken, fileKey)
	return args.Get(0).(figma.File), args.Error(1)
}

func (m *MockClient) Nodes(ctx context.Context, accessToken string, fileKey string, nodeId string) (figma.FileNodes, error) {
	args := m.Called(ctx, accessToken, fileKey, nodeId)
	return args.Get(0).(figma.FileNodes), args.Error(1)
}
