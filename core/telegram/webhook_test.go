package telegram

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

func TestSecretGuard(t *testing.T) {
	var hits int
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	})
	guard := SecretGuard("s3cret", next)

	cases := []struct {
		name   string
		method string
		secret string
		want   int
	}{
		{"matching secret", http.MethodPost, "s3cret", http.StatusOK},
		{"missing secret", http.MethodPost, "", http.StatusForbidden},
		{"wrong secret", http.MethodPost, "guess", http.StatusForbidden},
		{"wrong method", http.MethodGet, "s3cret", http.StatusMethodNotAllowed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/s3cret", strings.NewReader(`{"update_id":1}`))
			if tc.secret != "" {
				req.Header.Set(SecretTokenHeader, tc.secret)
			}
			rec := httptest.NewRecorder()
			guard.ServeHTTP(rec, req)
			require.Equal(t, tc.want, rec.Code)
		})
	}
	require.Equal(t, 1, hits)
}

func TestSecretGuard_EmptySecretRejectsEverything(t *testing.T) {
	guard := SecretGuard("", http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("next must not run")
	}))
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	guard.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWebhookServer_Routes(t *testing.T) {
	var got string
	updates := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Path
	})
	srv := WebhookServer(WebhookServerOptions{Listen: "127.0.0.1", Port: 8443, Path: "/hook", SecretToken: "x"}, updates)
	require.Equal(t, "127.0.0.1:8443", srv.Addr)

	req := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(`{"update_id":1}`))
	req.Header.Set(SecretTokenHeader, "x")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "/hook", got)

	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookServer_DeliversBeforeBotStarts(t *testing.T) {
	bot, err := tele.NewBot(tele.Settings{Offline: true, Synchronous: true})
	require.NoError(t, err)
	var texts []string
	bot.Handle(tele.OnText, func(c tele.Context) error {
		texts = append(texts, c.Text())
		return nil
	})

	// bot.Start is never called: updates must not depend on the poll loop.
	srv := WebhookServer(WebhookServerOptions{Path: "/hook", SecretToken: "x"}, UpdateHandler(bot))
	post := func(body string) int {
		req := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(body))
		req.Header.Set(SecretTokenHeader, "x")
		rec := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rec, req)
		return rec.Code
	}

	update := `{"update_id":7,"message":{"message_id":1,"text":"hello","from":{"id":5},"chat":{"id":5,"type":"private"}}}`
	require.Equal(t, http.StatusOK, post(update))
	require.Equal(t, []string{"hello"}, texts)

	require.NotPanics(t, func() {
		require.Equal(t, http.StatusOK, post("not json"))
	})
	require.Equal(t, http.StatusOK, post(`{"update_id":`+strings.Repeat("9", maxUpdateBytes)+`}`))
	require.Len(t, texts, 1)
}

func TestBuildPoller(t *testing.T) {
	_, ok := BuildPoller(PollerOptions{RunMode: "webhook"}).(pushPoller)
	require.True(t, ok)

	lp, ok := BuildPoller(PollerOptions{RunMode: "longpoll"}).(*tele.LongPoller)
	require.True(t, ok)
	require.Equal(t, 10*time.Second, lp.Timeout)

	hook := BuildWebhook(WebhookOptions{URL: "https://bot.example/", Path: "/s3cret", SecretToken: "s3cret"})
	require.True(t, hook.IgnoreSetWebhook)
	require.Empty(t, hook.Listen)
	require.Equal(t, "s3cret", hook.SecretToken)
	require.Equal(t, "https://bot.example/s3cret", hook.Endpoint.PublicURL)

	require.Equal(t, "https://bot.example/s3cret", PublicWebhookURL("https://bot.example/", "s3cret"))
	require.Equal(t, "https://bot.example", PublicWebhookURL("https://bot.example/", ""))
}

func TestPushPoller_ReturnsOnStop(t *testing.T) {
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		pushPoller{}.Poll(nil, nil, stop)
		close(done)
	}()
	close(stop)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}

func TestBuildHTTPClient_OutlastsLongPoll(t *testing.T) {
	c := BuildHTTPClient(50 * time.Second)
	require.Greater(t, c.Timeout, 50*time.Second)

	c = BuildHTTPClient(10 * time.Second)
	require.Equal(t, defaultClientTimeout, c.Timeout)
}
