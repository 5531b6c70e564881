package telegram

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"omechat/backend/internal/logging"
	"omechat/backend/internal/models"
)

const reportListLimit = 10

// Moderator is the moderation surface exposed to the admin chat.
type Moderator interface {
	ListReports(status models.ReportStatus, limit int) ([]models.Report, error)
	ResolveReport(reportID string, reject bool) error
	Unban(banID string) error
}

// StatsSource reports the live engine counters.
type StatsSource interface {
	Stats() models.OnlineStats
}

// CommandHandler answers moderator commands. Messages from any chat other
// than the admin chat are ignored.
type CommandHandler struct {
	Sender      Sender
	AdminChatID int64
	Moderator   Moderator
	Stats       StatsSource
}

func NewCommandHandler(s Sender, adminChatID int64, mod Moderator, stats StatsSource) *CommandHandler {
	return &CommandHandler{Sender: s, AdminChatID: adminChatID, Moderator: mod, Stats: stats}
}

// Handle processes /stats, /reports, /resolve, /reject and /unban.
func (h *CommandHandler) Handle(msg *tgbotapi.Message) {
	if msg == nil || msg.Chat.ID != h.AdminChatID {
		return
	}

	reply := h.reply(msg.Command(), strings.TrimSpace(msg.CommandArguments()))
	if reply == "" {
		return
	}
	if _, err := h.Sender.Send(tgbotapi.NewMessage(msg.Chat.ID, reply)); err != nil {
		logging.L().Warn("send command reply", zap.String("command", msg.Command()), zap.Error(err))
	}
}

func (h *CommandHandler) reply(command, arg string) string {
	switch command {
	case "stats":
		s := h.Stats.Stats()
		return fmt.Sprintf("online: %d\nin queue: %d\nconnections: %d\nchannels: %d",
			s.OnlineCount, s.QueueSize, s.ActiveConnections, s.Registered)

	case "reports":
		reports, err := h.Moderator.ListReports(models.ReportNew, reportListLimit)
		if err != nil {
			return "Failed to load reports: " + err.Error()
		}
		if len(reports) == 0 {
			return "No new reports."
		}
		lines := make([]string, 0, len(reports))
		for _, r := range reports {
			target := "?"
			if r.ReportedSessionID != nil {
				target = *r.ReportedSessionID
			}
			lines = append(lines, fmt.Sprintf("%s %s -> %s", r.ID, r.Reason, target))
		}
		return strings.Join(lines, "\n")

	case "resolve", "reject":
		if arg == "" {
			return fmt.Sprintf("Usage: /%s <report_id>", command)
		}
		if err := h.Moderator.ResolveReport(arg, command == "reject"); err != nil {
			return "Failed: " + err.Error()
		}
		if command == "reject" {
			return fmt.Sprintf("Report %s rejected.", arg)
		}
		return fmt.Sprintf("Report %s resolved.", arg)

	case "unban":
		if arg == "" {
			return "Usage: /unban <ban_id>"
		}
		if err := h.Moderator.Unban(arg); err != nil {
			return "Failed: " + err.Error()
		}
		return fmt.Sprintf("Ban %s lifted.", arg)
	}
	return ""
}
