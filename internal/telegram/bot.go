// Package telegram connects the persona to a single Telegram group chat.
package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Channel posts into one chat and reports how many members it has.
type Channel struct {
	api    botAPI
	chatID int64
}

func NewChannel(api *tgbotapi.BotAPI, chatID int64) *Channel {
	return &Channel{api: api, chatID: chatID}
}

func (c *Channel) Send(_ context.Context, text string) error {
	if _, err := c.api.Send(tgbotapi.NewMessage(c.chatID, text)); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// Occupancy returns the member count of the chat. The bot is one of them.
func (c *Channel) Occupancy(_ context.Context) (int, error) {
	n, err := c.api.GetChatMembersCount(tgbotapi.ChatMemberCountConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: c.chatID},
	})
	if err != nil {
		return 0, fmt.Errorf("telegram member count: %w", err)
	}
	return n, nil
}

// Handler receives chat events in arrival order.
type Handler interface {
	HandleMessage(ctx context.Context, participant, text string) error
	HandleJoin(ctx context.Context, participant string) error
}

// Listener long-polls Telegram and dispatches updates from the configured
// chat to a Handler.
type Listener struct {
	src     updateSource
	chatID  int64
	self    int64
	handler Handler
	log     zerolog.Logger
}

func NewListener(api *tgbotapi.BotAPI, chatID int64, h Handler, log zerolog.Logger) *Listener {
	return &Listener{src: api, chatID: chatID, self: api.Self.ID, handler: h, log: log}
}

// Run blocks until ctx is cancelled or the update channel closes.
func (l *Listener) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := l.src.GetUpdatesChan(u)
	defer l.src.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			l.dispatch(ctx, update)
		}
	}
}

func (l *Listener) dispatch(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil || msg.Chat.ID != l.chatID {
		return
	}

	for i := range msg.NewChatMembers {
		m := &msg.NewChatMembers[i]
		if m.ID == l.self {
			continue
		}
		if err := l.handler.HandleJoin(ctx, displayName(m)); err != nil {
			l.log.Error().Err(err).Int64("user_id", m.ID).Msg("failed to handle join")
		}
	}

	if msg.From == nil || msg.From.ID == l.self || msg.Text == "" {
		return
	}
	if err := l.handler.HandleMessage(ctx, displayName(msg.From), msg.Text); err != nil {
		l.log.Error().Err(err).Int64("user_id", msg.From.ID).Msg("failed to handle message")
	}
}

func displayName(u *tgbotapi.User) string {
	if u.UserName != "" {
		return u.UserName
	}
	return u.FirstName
}
