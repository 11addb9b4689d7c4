package course

import (
	"fmt"
	"strings"

	"github.com/ashbolt/coursebot/core/telegram/format"
	"github.com/ashbolt/coursebot/core/telegram/state"
)

// Settings carries the externally configured, opaque values the flow renders.
type Settings struct {
	BotTitle       string
	BotUsername    string
	PaymentID      string
	QRImageURL     string
	PromoImageURL  string
	SupportContact string
}

const (
	textUnrecognized   = "❌ Unknown action. Use /start to restart."
	textReceiptPrompt  = "📥 Please send your payment screenshot now."
	textSkipPrompt     = "📥 Please send your ₹50 skip payment screenshot now."
	textUploadPrompt   = "📤 Upload your 3 sharing screenshots now."
	textPaymentOK      = "✅ Payment received. Please follow the steps below to unlock the course. This is the last part of the course purchase. You can skip the sharing requirement by paying extra; there is an option for this below. After that, you need to share your contact details to receive course access."
	textShareHowTo     = "🎉 To unlock the course, share the promo in 3 Telegram groups and send screenshots.\n⚠️ Don't share in personal/unrelated groups."
	textChooseOne      = "Choose one:"
	textContactPrompt  = "Please press the button below to share your phone number with us:"
	textContactButton  = "Share My Phone Number"
	textContactThanks  = "✅ Thank you! Your phone number is received. Course access will be granted shortly."
	textAfterSkipPay   = "After payment, click below and send the screenshot."
	textReceiptButton  = "📥 Send Payment Receipt"
	textSubmitButton   = "📤 Submit Screenshots"
	textDeclineButton  = "🙅‍♂️ Don't Want to Share"
	textConsentButton  = "✅ Yes, Share My Phone Number"
	textWelcomeDefault = "AshBolt Bot"
	textSkipPaidLead   = "✅ Payment received! To finalize your course access, please share your phone number."
	textSharedLead     = "✅ All 3 screenshots received! Please share your phone number to finalize course access."

	opConsented   = "User consented to share phone number"
	opSharedPhone = "User shared phone number"
	opSkipReceipt = "🧾 Skip-sharing payment ₹50 screenshot"
)

func (s Settings) paymentText(o Offer) string {
	return fmt.Sprintf("🔥 You selected: %s (%s)\n\n💸 Pay %s to:\n\n💰 *%s*",
		format.MD(o.Label), Rupees(o.Price), Rupees(o.Price), format.MD(s.PaymentID))
}

func (s Settings) skipPaymentText() string {
	return fmt.Sprintf("💡 Don’t want to share? Pay %s extra to skip sharing and proceed.\n💸 Pay to: *%s*",
		Rupees(SkipFee), format.MD(s.PaymentID))
}

func (s Settings) promoCaption() string {
	var b strings.Builder
	b.WriteString("🚀 Akshay Saini's Dev Courses for just ₹29\n\n")
	b.WriteString("📚 Includes:\n   - React\n   - Frontend System Design\n   - Node.js\n\n")
	b.WriteString("⚡ Access once, learn forever (with real projects)")
	if s.BotUsername != "" {
		b.WriteString("\n\n👉 To get it: Search ")
		b.WriteString(strings.TrimPrefix(s.BotUsername, "@"))
		b.WriteString(" on Telegram")
	}
	return b.String()
}

func (s Settings) consentText(lead string) string {
	if s.SupportContact == "" {
		return lead
	}
	return fmt.Sprintf("%s\nPayment done but no access? Ping %s. Support in 24h.", lead, s.SupportContact)
}

func (s Settings) welcomeText(firstName string) string {
	title := s.BotTitle
	if title == "" {
		title = textWelcomeDefault
	}
	return fmt.Sprintf("👋 Welcome to %s, %s!\n\nPlease choose a course option:", title, firstName)
}

func offerChosenNote(o Offer) string {
	return fmt.Sprintf("User chose '%s' (%s)", o.Label, Rupees(o.Price))
}

func menuLabel(i int, o Offer) string {
	return fmt.Sprintf("%d. %s %s", i+1, o.Label, Rupees(o.Price))
}

func (f Flow) paymentReceipt(sel *state.Selection) string {
	if sel == nil {
		return "🧾 Payment screenshot"
	}
	label := sel.OfferID
	if o, ok := f.Catalog.Lookup(sel.OfferID); ok {
		label = o.Label
	}
	return fmt.Sprintf("🧾 Payment screenshot for '%s' (%s)", label, Rupees(sel.Price))
}

func sharingReceipt(n int) string {
	return fmt.Sprintf("📸 Sharing screenshot %d/%d", n, RequiredScreenshots)
}

func screenshotAck(n int) string {
	return fmt.Sprintf("✅ Screenshot %d received!", n)
}
