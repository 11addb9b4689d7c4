package router

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	tg "github.com/ashbolt/coursebot/core/telegram"
)

func TestResolveCallback(t *testing.T) {
	reg := tg.NewRegistry()
	hit := 0
	require.NoError(t, reg.RegisterCallback("buy", func(tele.Context) error { hit++; return nil }))

	h, extras := resolveCallback(reg, "buy", nil)
	require.NotNil(t, h)
	require.Empty(t, extras)
	require.NoError(t, h(nil))
	require.Equal(t, 1, hit)

	// registry fallback wins over the route option
	fb := 0
	reg.SetCallbackNotFound(func(tele.Context) error { fb++; return nil })
	h, extras = resolveCallback(reg, "stale", func(tele.Context) error { return errors.New("unused") })
	require.NoError(t, h(nil))
	require.Equal(t, 1, fb)
	require.Len(t, extras, 1)
	require.Equal(t, "not_found", extras[0].Value.String())
}

func TestDeriveErrorCode(t *testing.T) {
	require.Empty(t, deriveErrorCode(nil))
	require.Equal(t, "TG_403", deriveErrorCode(&tele.Error{Code: 403, Description: "Forbidden"}))
	require.Equal(t, "TG_400", deriveErrorCode(fmt.Errorf("send: %w", &tele.Error{Code: 400})))
	require.Equal(t, "TIMEOUT", deriveErrorCode(fmt.Errorf("wrap: %w", context.DeadlineExceeded)))
	require.Equal(t, "ERRORSTRING", deriveErrorCode(errors.New("boom")))
}

func TestNormalizeHandlerName(t *testing.T) {
	require.Equal(t, "unknown", normalizeHandlerName("  "))
	require.Equal(t, "send_link", normalizeHandlerName("/Send_Link"))
	require.Equal(t, "consent_phone", normalizeHandlerName("consent phone"))
}

func TestMessageRoutes_TextNamingPublicCommand(t *testing.T) {
	b, err := tele.NewBot(tele.Settings{Offline: true})
	require.NoError(t, err)

	reg := tg.NewRegistry()
	var started, admin, unknown int
	require.NoError(t, reg.RegisterCommand("/start", tg.Command{
		Handler:     func(tele.Context) error { started++; return nil },
		Description: "Browse courses",
	}))
	require.NoError(t, reg.RegisterCommand("/send_link", tg.Command{
		Handler:     func(tele.Context) error { admin++; return nil },
		Description: "Send a link",
		AdminOnly:   true,
	}))

	routes := MessageRoutes(reg, MessageOptions{
		Text: func(tele.Context) error { unknown++; return nil },
	})
	require.Len(t, routes, 4)
	text := routes[3]
	require.Equal(t, tele.OnText, text.Endpoint)

	send := func(body string) {
		c := b.NewContext(tele.Update{ID: 1, Message: &tele.Message{
			Sender: &tele.User{ID: 5},
			Chat:   &tele.Chat{ID: 5, Type: tele.ChatPrivate},
			Text:   body,
		}})
		require.NoError(t, text.Handler(c))
	}
	send("start")
	send("send_link 5 https://example.com")
	send("hello there")

	require.Equal(t, 1, started)
	require.Zero(t, admin)
	require.Equal(t, 2, unknown)
}

func TestCommandRoutes_AliasesGetEndpoints(t *testing.T) {
	reg := tg.NewRegistry()
	require.NoError(t, reg.RegisterCommand("/start", tg.Command{
		Handler:     func(tele.Context) error { return nil },
		Description: "Browse courses",
		Aliases:     []string{"menu", "/courses"},
	}))

	routes := CommandRoutes(reg, CommandRouteOptions{})
	endpoints := make([]any, 0, len(routes))
	for _, r := range routes {
		endpoints = append(endpoints, r.Endpoint)
	}
	require.Equal(t, []any{"/start", "/menu", "/courses"}, endpoints)
}
