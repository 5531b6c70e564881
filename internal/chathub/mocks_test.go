package chathub_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"omechat/backend/internal/models"
)

// MockRecorder is a testify mock of chathub.Recorder. Calls are also pushed
// onto calls so tests can wait for the asynchronous pool.
type MockRecorder struct {
	mock.Mock
	calls chan string
}

func newMockRecorder() *MockRecorder {
	return &MockRecorder{calls: make(chan string, 16)}
}

func (m *MockRecorder) RecordMatchStart(conn *models.Connection) error {
	args := m.Called(conn)
	m.calls <- "start"
	return args.Error(0)
}

func (m *MockRecorder) RecordMatchEnd(conn *models.Connection) error {
	args := m.Called(conn)
	m.calls <- "end"
	return args.Error(0)
}

// MockStatsSink is a testify mock of chathub.StatsSink.
type MockStatsSink struct {
	mock.Mock
}

func (m *MockStatsSink) PublishStats(ctx context.Context, stats models.OnlineStats) error {
	args := m.Called(ctx, stats)
	return args.Error(0)
}
