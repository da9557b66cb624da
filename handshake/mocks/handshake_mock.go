package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/bai-labs/figmaproxy/handshake"
)

type MockRepo struct {
	mock.Mock
}

func (m *MockRepo) Insert(ctx context.Context, session handshake.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockRepo) Consume(ctx context.Context, state string) (handshake.Session, error) {
	args := m.Called(ctx, state)
	return args.Get(0).(handshake.Session), args.Error(1)
}

func (m *MockRepo) Sweep(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}
