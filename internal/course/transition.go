package course

import (
	"fmt"

	"github.com/ashbolt/coursebot/core/telegram/state"
)

// Outcome is the result of applying one event to a participant record.
type Outcome struct {
	Next    state.Record
	Actions []Action
	// Accepted is false when the event is not valid for the current stage.
	Accepted bool
}

// Dirty reports whether Next differs from prev and has to be persisted.
func (o Outcome) Dirty(prev state.Record) bool {
	if !o.Accepted {
		return false
	}
	return !sameRecord(prev, o.Next)
}

func sameRecord(a, b state.Record) bool {
	if a.Stage != b.Stage || a.ScreenshotCount != b.ScreenshotCount {
		return false
	}
	switch {
	case a.Selection == nil && b.Selection == nil:
		return true
	case a.Selection == nil || b.Selection == nil:
		return false
	}
	return *a.Selection == *b.Selection
}

// Flow is the conversation state machine. Transition is pure: it never
// touches storage or the network.
type Flow struct {
	Settings Settings
	Catalog  Catalog
}

// NewFlow builds a flow over catalog; an empty catalog falls back to DefaultCatalog.
func NewFlow(settings Settings, catalog Catalog) Flow {
	if len(catalog) == 0 {
		catalog = DefaultCatalog()
	}
	return Flow{Settings: settings, Catalog: catalog}
}

// Transition computes the next record and the actions to deliver.
func (f Flow) Transition(rec state.Record, ev Event) Outcome {
	if ev.Kind == EventOfferChosen {
		return f.chooseOffer(rec, ev.OfferID)
	}

	switch rec.Stage {
	case StageAwaitingPayment:
		switch {
		case ev.Kind == EventReceiptRequested && ev.Variant == VariantNormal:
			return accept(rec, message(textReceiptPrompt))
		case ev.Kind == EventPhotoReceived:
			return f.paymentReceived(rec, ev.PhotoID)
		}
	case StageAwaitingSkipPayment:
		switch {
		case ev.Kind == EventReceiptRequested && ev.Variant == VariantSkip:
			return accept(rec, message(textSkipPrompt))
		case ev.Kind == EventPhotoReceived:
			return f.skipPaymentReceived(rec, ev.PhotoID)
		}
	case StageAwaitingSharingChoice:
		switch ev.Kind {
		case EventScreenshotsSubmissionStarted:
			next := rec
			next.Stage = StageCollectingScreenshots
			next.ScreenshotCount = 0
			return accept(next, message(textUploadPrompt))
		case EventPhoneConsentDeclined:
			return f.offerSkip(rec)
		}
	case StageCollectingScreenshots:
		if ev.Kind == EventPhotoReceived {
			return f.screenshotReceived(rec, ev.PhotoID)
		}
	case StageAwaitingPhoneConsent:
		if ev.Kind == EventPhoneConsentGiven {
			next := rec
			next.Stage = StageAwaitingPhoneNumber
			return accept(next,
				notifyOperator(opConsented),
				Action{Kind: ActionContactRequest, Text: textContactPrompt, ContactLabel: textContactButton},
			)
		}
	case StageAwaitingPhoneNumber:
		if ev.Kind == EventContactShared && ev.Phone != "" {
			next := rec
			next.Stage = StageAwaitingFulfillment
			next.Selection = nil
			return accept(next,
				Action{Kind: ActionOperatorMessage, Text: opSharedPhone, Phone: ev.Phone},
				Action{Kind: ActionMessage, Text: textContactThanks, RemoveKeyboard: true},
			)
		}
	}
	return reject(rec)
}

// Welcome renders the offer menu shown on /start. It does not change state.
func (f Flow) Welcome(firstName string) Action {
	opts := make([]Choice, 0, len(f.Catalog))
	for i, o := range f.Catalog {
		opts = append(opts, Choice{Label: menuLabel(i, o), Unique: CallbackBuy, Data: o.ID})
	}
	return choices(f.Settings.welcomeText(firstName), false, opts...)
}

func (f Flow) chooseOffer(rec state.Record, offerID string) Outcome {
	o, ok := f.Catalog.Lookup(offerID)
	if !ok {
		return reject(rec)
	}
	next := rec
	next.Stage = StageAwaitingPayment
	next.Selection = &state.Selection{OfferID: o.ID, Price: o.Price}
	return accept(next,
		notifyOperator(offerChosenNote(o)),
		markdown(f.Settings.paymentText(o)),
		photo(f.Settings.QRImageURL, fmt.Sprintf("📷 Scan this QR to pay %s", Rupees(o.Price))),
		choices("⬇️ Click below *after* payment, or send the screenshot now.", true,
			Choice{Label: textReceiptButton, Unique: CallbackReceipt, Data: string(VariantNormal)}),
	)
}

func (f Flow) paymentReceived(rec state.Record, photoID string) Outcome {
	next := rec
	next.Stage = StageAwaitingSharingChoice
	return accept(next,
		forwardPhoto(photoID, f.paymentReceipt(rec.Selection)),
		message(textPaymentOK),
		message(textShareHowTo),
		photo(f.Settings.PromoImageURL, f.Settings.promoCaption()),
		choices(textChooseOne, false,
			Choice{Label: textSubmitButton, Unique: CallbackShareSubmit},
			Choice{Label: textDeclineButton, Unique: CallbackShareDecline},
		),
	)
}

func (f Flow) offerSkip(rec state.Record) Outcome {
	next := rec
	next.Stage = StageAwaitingSkipPayment
	return accept(next,
		markdown(f.Settings.skipPaymentText()),
		photo(f.Settings.QRImageURL, fmt.Sprintf("📷 Scan to pay %s (skip sharing)", Rupees(SkipFee))),
		choices(textAfterSkipPay, false,
			Choice{Label: textReceiptButton, Unique: CallbackReceipt, Data: string(VariantSkip)}),
	)
}

func (f Flow) skipPaymentReceived(rec state.Record, photoID string) Outcome {
	next := rec
	next.Stage = StageAwaitingPhoneConsent
	next.Selection = nil
	next.ScreenshotCount = 0
	return accept(next,
		forwardPhoto(photoID, opSkipReceipt),
		f.consentPrompt(textSkipPaidLead),
	)
}

func (f Flow) screenshotReceived(rec state.Record, photoID string) Outcome {
	next := rec
	next.ScreenshotCount++
	n := next.ScreenshotCount
	actions := []Action{
		forwardPhoto(photoID, sharingReceipt(n)),
		message(screenshotAck(n)),
	}
	if n >= RequiredScreenshots {
		next.Stage = StageAwaitingPhoneConsent
		actions = append(actions, f.consentPrompt(textSharedLead))
	}
	return accept(next, actions...)
}

func (f Flow) consentPrompt(lead string) Action {
	return choices(f.Settings.consentText(lead), false,
		Choice{Label: textConsentButton, Unique: CallbackConsentPhone})
}

func accept(next state.Record, actions ...Action) Outcome {
	return Outcome{Next: next, Actions: actions, Accepted: true}
}

func reject(rec state.Record) Outcome {
	return Outcome{Next: rec, Actions: []Action{message(textUnrecognized)}}
}
