package telegram

import "gopkg.in/telebot.v3"

// Client is the part of the bot library used for outgoing messages.
// *telebot.Bot satisfies it.
type Client interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}
