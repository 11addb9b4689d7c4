package telegram

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/ashbolt/coursebot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// SecretTokenHeader carries the webhook secret on every update Telegram posts.
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// SecretGuard rejects requests whose secret header does not match secret with
// 403 and passes the rest to next. Payload parsing is left to next.
func SecretGuard(secret string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		got := r.Header.Get(SecretTokenHeader)
		if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			logger.Warn(r.Context(), "tg", "webhook.reject",
				slog.String("status", "fail"),
				slog.String("path", r.URL.Path),
				slog.String("reason", "secret_mismatch"),
			)
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// maxUpdateBytes bounds a single webhook payload.
const maxUpdateBytes = 1 << 20

// UpdateProcessor is satisfied by *tele.Bot.
type UpdateProcessor interface {
	ProcessUpdate(u tele.Update)
}

// UpdateHandler decodes a posted update and hands it to bot. It always
// answers 200 so Telegram does not redeliver a payload that will never parse.
func UpdateHandler(bot UpdateProcessor) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var u tele.Update
		body := http.MaxBytesReader(w, r.Body, maxUpdateBytes)
		if err := json.NewDecoder(body).Decode(&u); err != nil {
			logger.Warn(r.Context(), "tg", "webhook.decode",
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)
			w.WriteHeader(http.StatusOK)
			return
		}
		bot.ProcessUpdate(u)
		w.WriteHeader(http.StatusOK)
	})
}

// WebhookServerOptions configures WebhookServer.
type WebhookServerOptions struct {
	Listen      string
	Port        int
	Path        string
	SecretToken string
}

// WebhookServer mounts updates (usually UpdateHandler) behind SecretGuard at
// opts.Path and adds /healthz.
func WebhookServer(opts WebhookServerOptions, updates http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(opts.Path, SecretGuard(opts.SecretToken, updates))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &http.Server{
		Addr:              net.JoinHostPort(opts.Listen, strconv.Itoa(opts.Port)),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
	}
}

// serveWebhook runs srv until ctx is done and then shuts it down gracefully.
func serveWebhook(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logger.TG.Info("webhook listening",
		slog.String("event", "webhook.listen"),
		slog.String("addr", srv.Addr),
	)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("telegram: webhook server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("telegram: webhook shutdown: %w", err)
	}
	return nil
}
