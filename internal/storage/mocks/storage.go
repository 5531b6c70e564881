// Package mocks holds testify doubles for the storage layer.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"omechat/backend/internal/models"
	"omechat/backend/internal/storage"
)

var _ storage.Storage = (*Storage)(nil)

// Storage is a mock implementation of storage.Storage.
type Storage struct {
	mock.Mock
}

func (m *Storage) CreateSession(session *models.UserSession) error {
	args := m.Called(session)
	return args.Error(0)
}

func (m *Storage) GetSession(id string) (*models.UserSession, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserSession), args.Error(1)
}

func (m *Storage) TouchSession(id string) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *Storage) RecordMatchStart(conn *models.Connection) error {
	args := m.Called(conn)
	return args.Error(0)
}

func (m *Storage) RecordMatchEnd(conn *models.Connection) error {
	args := m.Called(conn)
	return args.Error(0)
}

func (m *Storage) GetConnectionByID(id string) (*models.Connection, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Connection), args.Error(1)
}

func (m *Storage) MarkConnectionReported(id string) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *Storage) SaveReport(report *models.Report) error {
	args := m.Called(report)
	return args.Error(0)
}

func (m *Storage) ListReportsAgainst(sessionID string, since time.Time) ([]models.Report, error) {
	args := m.Called(sessionID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Report), args.Error(1)
}

func (m *Storage) ListReports(status models.ReportStatus, limit int) ([]models.Report, error) {
	args := m.Called(status, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Report), args.Error(1)
}

func (m *Storage) UpdateReportStatus(id string, status models.ReportStatus) error {
	args := m.Called(id, status)
	return args.Error(0)
}

func (m *Storage) CreateBan(ban *models.Ban) error {
	args := m.Called(ban)
	return args.Error(0)
}

func (m *Storage) DeactivateBan(id string) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *Storage) CountBansSince(sessionID string, since time.Time) (int64, error) {
	args := m.Called(sessionID, since)
	return args.Get(0).(int64), args.Error(1)
}

func (m *Storage) FindActiveBan(sessionID, ipAddress, fingerprint string) (*models.Ban, error) {
	args := m.Called(sessionID, ipAddress, fingerprint)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Ban), args.Error(1)
}

func (m *Storage) IsSessionBanned(sessionID string) (bool, error) {
	args := m.Called(sessionID)
	return args.Bool(0), args.Error(1)
}

func (m *Storage) PublishStats(ctx context.Context, stats models.OnlineStats) error {
	args := m.Called(ctx, stats)
	return args.Error(0)
}
