package tgbot

import (
	tele "gopkg.in/telebot.v4"

	"github.com/ashbolt/coursebot/core/telegram/callbacks"
	"github.com/ashbolt/coursebot/internal/course"
)

// ClassifyCallback maps an inline button press to an event.
func ClassifyCallback(cb *tele.Callback) course.Event {
	if cb == nil {
		return course.Unrecognized()
	}
	return course.EventFromCallback(callbacks.ParseCallbackData(cb))
}

// ClassifyMessage maps a non-command message to an event. A contact card is
// accepted only when it carries the sender's own number.
func ClassifyMessage(msg *tele.Message) course.Event {
	if msg == nil {
		return course.Unrecognized()
	}
	switch {
	case msg.Photo != nil:
		return course.PhotoReceived(msg.Photo.FileID)
	case msg.Contact != nil:
		if msg.Sender == nil || msg.Contact.UserID != msg.Sender.ID || msg.Contact.PhoneNumber == "" {
			return course.Unrecognized()
		}
		return course.ContactShared(msg.Contact.PhoneNumber)
	}
	return course.Unrecognized()
}

// ParticipantOf extracts the participant identity from a telebot user.
func ParticipantOf(u *tele.User) course.Participant {
	if u == nil {
		return course.Participant{}
	}
	return course.Participant{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Username:  u.Username,
	}
}
