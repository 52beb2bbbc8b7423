package control

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/pasiyamd/forexbot/internal/observ"
)

// Listener pumps Telegram updates into the control surface. It runs on
// its own goroutine so the session loop never waits on the operator
// channel.
type Listener struct {
	bot     *tgbotapi.BotAPI
	surface *Surface
}

func NewListener(bot *tgbotapi.BotAPI, surface *Surface) *Listener {
	return &Listener{bot: bot, surface: surface}
}

// RegisterCommands publishes the command menu to Telegram's UI.
func RegisterCommands(bot *tgbotapi.BotAPI) error {
	_, err := bot.Request(tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: "menu", Description: "Show menu"},
		tgbotapi.BotCommand{Command: "alive", Description: "Bot alive check"},
		tgbotapi.BotCommand{Command: "safe", Description: "Start trading in safe mode"},
		tgbotapi.BotCommand{Command: "unlimited", Description: "Start trading in unlimited mode"},
		tgbotapi.BotCommand{Command: "stop", Description: "Stop trading"},
		tgbotapi.BotCommand{Command: "status", Description: "Wallet & daily profit"},
	))
	return err
}

// Run blocks until ctx is canceled, dispatching each command update.
func (l *Listener) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := l.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			l.bot.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || !update.Message.IsCommand() || update.Message.From == nil {
				continue
			}
			reply, respond := l.surface.Handle(ctx, update.Message.From.ID, update.Message.Command(), update.Message.CommandArguments())
			if !respond || reply == "" {
				continue
			}
			if _, err := l.bot.Send(tgbotapi.NewMessage(update.Message.Chat.ID, reply)); err != nil {
				observ.Error("control_reply_failed", err, map[string]any{"chat": update.Message.Chat.ID})
			}
		}
	}
}
