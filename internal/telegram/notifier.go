package telegram

import (
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"omechat/backend/internal/models"
)

// Sender is the part of *tgbotapi.BotAPI the package needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// ModerationNotifier posts automatic ban alerts to the moderators' chat.
type ModerationNotifier struct {
	Sender Sender
	ChatID int64
}

func NewModerationNotifier(s Sender, chatID int64) *ModerationNotifier {
	return &ModerationNotifier{Sender: s, ChatID: chatID}
}

func (n *ModerationNotifier) NotifyBan(ban *models.Ban, score int) error {
	msg := tgbotapi.NewMessage(n.ChatID, formatBan(ban, score))
	if _, err := n.Sender.Send(msg); err != nil {
		return errors.Wrapf(err, "send ban alert for %s", ban.ID)
	}
	return nil
}

func formatBan(ban *models.Ban, score int) string {
	var b strings.Builder
	b.WriteString("🚫 Auto-ban\n")
	fmt.Fprintf(&b, "ban: %s\n", ban.ID)
	if ban.SessionID != nil {
		fmt.Fprintf(&b, "session: %s\n", *ban.SessionID)
	}
	if ban.IPAddress != "" {
		fmt.Fprintf(&b, "ip: %s\n", ban.IPAddress)
	}
	fmt.Fprintf(&b, "score: %d\n", score)
	if ban.ExpiresAt != nil {
		fmt.Fprintf(&b, "until: %s\n", ban.ExpiresAt.UTC().Format(time.RFC3339))
	} else {
		b.WriteString("until: permanent\n")
	}
	fmt.Fprintf(&b, "reason: %s\n/unban %s", ban.Reason, ban.ID)
	return b.String()
}
