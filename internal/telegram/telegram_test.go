package telegram

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"omechat/backend/internal/models"
)

// MockSender records outgoing messages.
type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return tgbotapi.Message{}, args.Error(0)
}

func (m *MockSender) texts() []string {
	var out []string
	for _, call := range m.Calls {
		if msg, ok := call.Arguments.Get(0).(tgbotapi.MessageConfig); ok {
			out = append(out, msg.Text)
		}
	}
	return out
}

type MockModerator struct {
	mock.Mock
}

func (m *MockModerator) ListReports(status models.ReportStatus, limit int) ([]models.Report, error) {
	args := m.Called(status, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Report), args.Error(1)
}

func (m *MockModerator) ResolveReport(reportID string, reject bool) error {
	return m.Called(reportID, reject).Error(0)
}

func (m *MockModerator) Unban(banID string) error {
	return m.Called(banID).Error(0)
}

type staticStats models.OnlineStats

func (s staticStats) Stats() models.OnlineStats { return models.OnlineStats(s) }

const adminChat int64 = -100500

func command(chatID int64, text string) *tgbotapi.Message {
	end := len(text)
	for i, r := range text {
		if r == ' ' {
			end = i
			break
		}
	}
	return &tgbotapi.Message{
		Text:     text,
		Chat:     tgbotapi.Chat{ID: chatID},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: end}},
	}
}

func TestNotifyBan(t *testing.T) {
	sender := new(MockSender)
	sender.On("Send", mock.AnythingOfType("tgbotapi.MessageConfig")).Return(nil).Once()

	sid := "sess-1"
	until := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	n := NewModerationNotifier(sender, adminChat)
	require.NoError(t, n.NotifyBan(&models.Ban{ID: "ban-9", SessionID: &sid, Reason: "automatic", ExpiresAt: &until}, 120))

	texts := sender.texts()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "session: sess-1")
	assert.Contains(t, texts[0], "score: 120")
	assert.Contains(t, texts[0], "until: 2026-01-02T03:04:05Z")
	assert.Contains(t, texts[0], "/unban ban-9")
}

func TestNotifyBan_SendError(t *testing.T) {
	sender := new(MockSender)
	sender.On("Send", mock.Anything).Return(errors.New("forbidden"))

	err := NewModerationNotifier(sender, adminChat).NotifyBan(&models.Ban{ID: "b"}, 100)
	assert.ErrorContains(t, err, "forbidden")
}

func TestCommandHandler(t *testing.T) {
	reported := "bad-actor"
	mod := new(MockModerator)
	mod.On("ListReports", models.ReportNew, reportListLimit).Return([]models.Report{
		{ID: "r1", Reason: models.ReasonSpam, ReportedSessionID: &reported},
	}, nil)
	mod.On("ResolveReport", "r1", true).Return(nil)
	mod.On("Unban", "ban-9").Return(nil)

	sender := new(MockSender)
	sender.On("Send", mock.Anything).Return(nil)

	h := NewCommandHandler(sender, adminChat, mod, staticStats{OnlineCount: 4, QueueSize: 2, ActiveConnections: 1, Registered: 5})
	h.Handle(command(adminChat, "/stats"))
	h.Handle(command(adminChat, "/reports"))
	h.Handle(command(adminChat, "/reject r1"))
	h.Handle(command(adminChat, "/unban ban-9"))
	h.Handle(command(adminChat, "/unban"))
	h.Handle(command(adminChat, "/help"))
	h.Handle(command(12345, "/unban ban-9"))

	assert.Equal(t, []string{
		"online: 4\nin queue: 2\nconnections: 1\nchannels: 5",
		"r1 SPAM -> bad-actor",
		"Report r1 rejected.",
		"Ban ban-9 lifted.",
		"Usage: /unban <ban_id>",
	}, sender.texts())
	mod.AssertNumberOfCalls(t, "Unban", 1)
}
