package telegram

import (
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"
)

const (
	RunModeWebhook  = "webhook"
	RunModeLongpoll = "longpoll"
)

// WebhookOptions declares webhook settings.
type WebhookOptions struct {
	// URL is the public base URL Telegram posts to; Path is appended to it.
	URL         string
	Path        string
	SecretToken string
}

// PollerOptions configures BuildPoller.
type PollerOptions struct {
	RunMode                string
	LongPollTimeoutSeconds int
}

// BuildPoller returns a Telebot poller based on provided options.
// In webhook mode updates are pushed through UpdateHandler, so the poller
// only idles until the bot stops.
func BuildPoller(opts PollerOptions) tele.Poller {
	runMode := strings.ToLower(strings.TrimSpace(opts.RunMode))
	if runMode == RunModeWebhook {
		return pushPoller{}
	}

	timeoutSec := opts.LongPollTimeoutSeconds
	if timeoutSec <= 0 {
		timeoutSec = 10
	}
	return &tele.LongPoller{Timeout: time.Duration(timeoutSec) * time.Second}
}

// pushPoller feeds nothing; webhook updates reach the bot via ProcessUpdate.
type pushPoller struct{}

func (pushPoller) Poll(_ *tele.Bot, _ chan tele.Update, stop chan struct{}) {
	<-stop
}

// BuildWebhook describes the webhook registered with Telegram before the
// HTTP server starts accepting updates.
func BuildWebhook(opts WebhookOptions) *tele.Webhook {
	return &tele.Webhook{
		SecretToken:      opts.SecretToken,
		IgnoreSetWebhook: true,
		Endpoint:         &tele.WebhookEndpoint{PublicURL: PublicWebhookURL(opts.URL, opts.Path)},
	}
}

// PublicWebhookURL joins the public base URL and the endpoint path.
func PublicWebhookURL(base, path string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if path == "" {
		return base
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}
