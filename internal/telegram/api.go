package telegram

import tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

// botAPI is the slice of *tgbotapi.BotAPI the adapter uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetChatMembersCount(config tgbotapi.ChatMemberCountConfig) (int, error)
}

type updateSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}
