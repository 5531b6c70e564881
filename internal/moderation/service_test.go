package moderation_test

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"omechat/backend/internal/config"
	"omechat/backend/internal/models"
	"omechat/backend/internal/moderation"
	"omechat/backend/internal/storage"
	"omechat/backend/internal/storage/mocks"
)

type mockKicker struct{ mock.Mock }

func (m *mockKicker) Kick(sessionID, reason string) bool {
	return m.Called(sessionID, reason).Bool(0)
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) NotifyBan(ban *models.Ban, score int) error {
	return m.Called(ban, score).Error(0)
}

var fixedNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func newService(st *mocks.Storage, k *mockKicker, n *mockNotifier) *moderation.Service {
	return moderation.NewService(st,
		moderation.WithKicker(k),
		moderation.WithNotifier(n),
		moderation.WithClock(func() time.Time { return fixedNow }))
}

func TestHandleReport_BelowThreshold(t *testing.T) {
	st := new(mocks.Storage)
	st.On("GetConnectionByID", "conn-1").Return(&models.Connection{ID: "conn-1", SessionAID: "alice", SessionBID: "bob"}, nil)
	st.On("SaveReport", mock.MatchedBy(func(r *models.Report) bool {
		return *r.ReportedSessionID == "bob" && *r.ConnectionID == "conn-1" && r.Reason == models.ReasonSpam
	})).Return(nil)
	st.On("MarkConnectionReported", "conn-1").Return(nil)
	st.On("ListReportsAgainst", "bob", fixedNow.Add(-config.ReportWindow)).Return([]models.Report{
		{Reason: models.ReasonSpam, Status: models.ReportNew, CreatedAt: fixedNow},
	}, nil)

	svc := newService(st, new(mockKicker), new(mockNotifier))
	out, err := svc.HandleReport(moderation.ReportInput{
		ReporterSessionID: "alice",
		ConnectionID:      "conn-1",
		Reason:            models.ReasonSpam,
	})

	require.NoError(t, err)
	assert.Equal(t, 25, out.Score)
	assert.Nil(t, out.Ban)
	st.AssertExpectations(t)
}

func TestHandleReport_AutoBanEscalatesAndKicks(t *testing.T) {
	st := new(mocks.Storage)
	st.On("SaveReport", mock.Anything).Return(nil)
	st.On("ListReportsAgainst", "bob", mock.Anything).Return([]models.Report{
		{Reason: models.ReasonHarassment, Status: models.ReportNew, CreatedAt: fixedNow.Add(-time.Hour)},
		{Reason: models.ReasonBot, Status: models.ReportNew, CreatedAt: fixedNow},
	}, nil)
	st.On("FindActiveBan", "bob", "", "").Return(nil, nil)
	st.On("CountBansSince", "bob", fixedNow.Add(-config.BanEscalationWindow)).Return(int64(1), nil)
	st.On("GetSession", "bob").Return(&models.UserSession{ID: "bob", IPAddress: "10.0.0.7", DeviceFingerprint: "fp-bob"}, nil)
	st.On("CreateBan", mock.MatchedBy(func(b *models.Ban) bool {
		return *b.SessionID == "bob" &&
			b.IPAddress == "10.0.0.7" &&
			b.DeviceFingerprint == "fp-bob" &&
			b.ExpiresAt.Equal(fixedNow.Add(config.BanLevel2Duration))
	})).Return(nil)

	kicker := new(mockKicker)
	kicker.On("Kick", "bob", mock.AnythingOfType("string")).Return(true).Once()
	notifier := new(mockNotifier)
	notifier.On("NotifyBan", mock.AnythingOfType("*models.Ban"), 100).Return(errors.New("telegram down"))

	svc := newService(st, kicker, notifier)
	out, err := svc.HandleReport(moderation.ReportInput{
		ReporterSessionID: "alice",
		ReportedSessionID: "bob",
		Reason:            models.ReasonBot,
	})

	require.NoError(t, err, "notifier failures are logged, not returned")
	require.NotNil(t, out.Ban)
	assert.Equal(t, 100, out.Score)
	st.AssertExpectations(t)
	kicker.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestHandleReport_ExistingBanIsReused(t *testing.T) {
	existing := &models.Ban{ID: "ban-1", IsActive: true}
	st := new(mocks.Storage)
	st.On("SaveReport", mock.Anything).Return(nil)
	st.On("ListReportsAgainst", "bob", mock.Anything).Return([]models.Report{
		{Reason: models.ReasonNudity, Status: models.ReportNew, CreatedAt: fixedNow},
	}, nil)
	st.On("FindActiveBan", "bob", "", "").Return(existing, nil)

	svc := newService(st, new(mockKicker), new(mockNotifier))
	out, err := svc.HandleReport(moderation.ReportInput{ReporterSessionID: "alice", ReportedSessionID: "bob", Reason: models.ReasonNudity})

	require.NoError(t, err)
	assert.Same(t, existing, out.Ban)
	st.AssertNotCalled(t, "CreateBan", mock.Anything)
}

func TestHandleReport_Rejections(t *testing.T) {
	st := new(mocks.Storage)
	st.On("GetConnectionByID", "gone").Return(nil, errors.Wrap(storage.ErrNotFound, "connection gone"))
	st.On("GetConnectionByID", "other").Return(&models.Connection{ID: "other", SessionAID: "x", SessionBID: "y"}, nil)
	st.On("GetConnectionByID", "conn-1").Return(&models.Connection{ID: "conn-1", SessionAID: "alice", SessionBID: "bob"}, nil)
	svc := newService(st, new(mockKicker), new(mockNotifier))

	tests := []struct {
		name string
		in   moderation.ReportInput
		want error
	}{
		{"unknown reason", moderation.ReportInput{ReporterSessionID: "alice", ReportedSessionID: "bob", Reason: "RUDE"}, moderation.ErrInvalidReason},
		{"no target", moderation.ReportInput{ReporterSessionID: "alice", Reason: models.ReasonSpam}, moderation.ErrNoReportTarget},
		{"self", moderation.ReportInput{ReporterSessionID: "alice", ReportedSessionID: "alice", Reason: models.ReasonSpam}, moderation.ErrSelfReport},
		{"unknown connection", moderation.ReportInput{ReporterSessionID: "alice", ConnectionID: "gone", Reason: models.ReasonSpam}, moderation.ErrNoReportTarget},
		{"foreign connection", moderation.ReportInput{ReporterSessionID: "alice", ConnectionID: "other", Reason: models.ReasonSpam}, moderation.ErrNoReportTarget},
		{"target is not the partner", moderation.ReportInput{ReporterSessionID: "alice", ConnectionID: "conn-1", ReportedSessionID: "mallory", Reason: models.ReasonSpam}, moderation.ErrTargetMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.HandleReport(tt.in)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
	st.AssertNotCalled(t, "SaveReport", mock.Anything)
}

func TestBan_ManualWithoutSession(t *testing.T) {
	st := new(mocks.Storage)
	st.On("CreateBan", mock.MatchedBy(func(b *models.Ban) bool {
		return b.SessionID == nil && b.IPAddress == "1.2.3.4" && b.ExpiresAt == nil
	})).Return(nil)
	kicker := new(mockKicker)

	svc := newService(st, kicker, nil)
	ban, err := svc.Ban(moderation.BanRequest{IPAddress: "1.2.3.4", Reason: "abuse"})
	require.NoError(t, err)
	assert.True(t, ban.IsActive)
	kicker.AssertNotCalled(t, "Kick", mock.Anything, mock.Anything)

	_, err = svc.Ban(moderation.BanRequest{Reason: "nobody"})
	assert.True(t, errors.Is(err, moderation.ErrEmptyBan))
}

func TestResolveReport(t *testing.T) {
	st := new(mocks.Storage)
	st.On("UpdateReportStatus", "r1", models.ReportResolved).Return(nil).Once()
	st.On("UpdateReportStatus", "r2", models.ReportRejected).Return(nil).Once()

	svc := moderation.NewService(st)
	require.NoError(t, svc.ResolveReport("r1", false))
	require.NoError(t, svc.ResolveReport("r2", true))
	st.AssertExpectations(t)
}
