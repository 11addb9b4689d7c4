package tgbot

import (
	"strings"

	"github.com/samber/lo"
	tele "gopkg.in/telebot.v4"

	"github.com/ashbolt/coursebot/core/telegram/keyboard"
	"github.com/ashbolt/coursebot/internal/course"
)

// Render converts a participant action into the arguments of tele.Bot.Send.
// A photo without a configured image degrades to its caption.
func Render(a course.Action) (what interface{}, opts []interface{}) {
	if a.Markdown {
		opts = append(opts, tele.ModeMarkdown)
	}
	switch a.Kind {
	case course.ActionPhoto:
		if a.Photo == "" {
			return a.Text, opts
		}
		return &tele.Photo{File: photoFile(a.Photo), Caption: a.Text}, opts
	case course.ActionChoices:
		btns := lo.Map(a.Choices, func(c course.Choice, _ int) keyboard.InlineBtn {
			return keyboard.InlineBtn{Text: c.Label, Unique: c.Unique, Data: c.Data}
		})
		return a.Text, append(opts, keyboard.InlineButtons(btns))
	case course.ActionContactRequest:
		return a.Text, append(opts, keyboard.ContactRequest(a.ContactLabel))
	}
	if a.RemoveKeyboard {
		opts = append(opts, keyboard.RemoveKeyboard())
	}
	return a.Text, opts
}

// photoFile treats http(s) references as URLs and everything else as a Telegram file id.
func photoFile(ref string) tele.File {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return tele.FromURL(ref)
	}
	return tele.File{FileID: ref}
}

func endpointOf(a course.Action) string {
	if a.Kind == course.ActionPhoto && a.Photo != "" {
		return "sendPhoto"
	}
	return "sendMessage"
}

func hasKeyboard(a course.Action) bool {
	return a.Kind == course.ActionChoices || a.Kind == course.ActionContactRequest || a.RemoveKeyboard
}
