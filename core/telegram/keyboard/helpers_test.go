package keyboard

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInlineButtons_OnePerRow(t *testing.T) {
	m := InlineButtons([]InlineBtn{
		{Text: "📤 Submit Screenshots", Unique: "share_submit"},
		{Text: "🙅‍♂️ Don't Want to Share", Unique: "share_decline"},
	})
	require.Len(t, m.InlineKeyboard, 2)
	require.Len(t, m.InlineKeyboard[0], 1)
	require.Equal(t, "share_submit", m.InlineKeyboard[0][0].Unique)
	require.Equal(t, "📤 Submit Screenshots", m.InlineKeyboard[0][0].Text)
}

func TestInlineButtons_CarriesPayload(t *testing.T) {
	m := InlineButtons([]InlineBtn{{Text: "4. All three bundle ₹69", Unique: "buy", Data: "bundle"}})
	btn := m.InlineKeyboard[0][0]
	require.Equal(t, "buy", btn.Unique)
	require.Equal(t, "bundle", btn.Data)
}

func TestContactRequest(t *testing.T) {
	m := ContactRequest("Share My Phone Number")
	require.True(t, m.OneTimeKeyboard)
	require.True(t, m.ResizeKeyboard)
	require.Len(t, m.ReplyKeyboard, 1)
	require.True(t, m.ReplyKeyboard[0][0].Contact)
	require.Equal(t, "Share My Phone Number", m.ReplyKeyboard[0][0].Text)
}

func TestRemoveKeyboard(t *testing.T) {
	require.True(t, RemoveKeyboard().RemoveKeyboard)
}
