package telegram

import (
	"gopkg.in/telebot.v3"
)

// Messenger sends plain chat messages to an operator.
type Messenger interface {
	SendMessage(chatID int64, text string, options *telebot.SendOptions) error
}

// botSender is the subset of *telebot.Bot used by TelebotAdapter.
type botSender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// TelebotAdapter implements Messenger on top of a telebot bot.
type TelebotAdapter struct {
	bot botSender
}

var _ Messenger = (*TelebotAdapter)(nil)

func NewTelebotAdapter(b *telebot.Bot) *TelebotAdapter {
	return &TelebotAdapter{bot: b}
}

// SendMessage sends text to a private chat with the given user.
func (a *TelebotAdapter) SendMessage(chatID int64, text string, options *telebot.SendOptions) error {
	if options == nil {
		options = &telebot.SendOptions{}
	}
	_, err := a.bot.Send(&telebot.User{ID: chatID}, text, options)
	return err
}
