// Package telegram connects the moderators' Telegram chat to the backend.
// Automatic bans are posted there, and moderators answer with commands
// that list reports, resolve them and lift bans.
package telegram

import (
	"context"

	"github.com/cockroachdb/errors"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"omechat/backend/internal/logging"
)

// BotService is responsible for receiving Telegram updates from the admin chat.
type BotService struct {
	BotAPI   *tgbotapi.BotAPI
	Commands *CommandHandler
	Notifier *ModerationNotifier
}

// NewBotService authorizes the bot and wires the command handler.
func NewBotService(token string, adminChatID int64, mod Moderator, stats StatsSource) (*BotService, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, errors.Wrap(err, "authorize telegram bot")
	}
	bot.Debug = false
	logging.L().Info("telegram bot authorized", zap.String("account", bot.Self.UserName))

	return &BotService{
		BotAPI:   bot,
		Commands: NewCommandHandler(bot, adminChatID, mod, stats),
		Notifier: NewModerationNotifier(bot, adminChatID),
	}, nil
}

// Run is the main loop for receiving Telegram updates. It returns when ctx
// is done.
func (s *BotService) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := s.BotAPI.GetUpdatesChan(u)
	defer s.BotAPI.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message != nil && update.Message.IsCommand() {
				s.Commands.Handle(update.Message)
			}
		}
	}
}
