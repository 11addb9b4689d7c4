package sender

import tele "gopkg.in/telebot.v4"

// Messenger is the subset of *tele.Bot used to deliver outbound content.
type Messenger interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

var _ Messenger = (*tele.Bot)(nil)
