package course

// EventKind tags an inbound participant action.
type EventKind int

const (
	EventUnrecognized EventKind = iota
	EventOfferChosen
	EventReceiptRequested
	EventScreenshotsSubmissionStarted
	EventPhoneConsentGiven
	EventPhoneConsentDeclined
	EventContactShared
	EventPhotoReceived
)

var eventNames = map[EventKind]string{
	EventUnrecognized:                 "unrecognized",
	EventOfferChosen:                  "offer_chosen",
	EventReceiptRequested:             "receipt_requested",
	EventScreenshotsSubmissionStarted: "screenshots_submission_started",
	EventPhoneConsentGiven:            "phone_consent_given",
	EventPhoneConsentDeclined:         "phone_consent_declined",
	EventContactShared:                "contact_shared",
	EventPhotoReceived:                "photo_received",
}

func (k EventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return "unknown"
}

// PaymentVariant distinguishes the regular payment from the skip-sharing fee.
type PaymentVariant string

const (
	VariantNormal PaymentVariant = "normal"
	VariantSkip   PaymentVariant = "skip"
)

// Event is a classified inbound action. Only the fields relevant to Kind are set.
type Event struct {
	Kind    EventKind
	OfferID string
	Variant PaymentVariant
	Phone   string
	// PhotoID is the channel's reference to the received photo.
	PhotoID string
}

func OfferChosen(offerID string) Event { return Event{Kind: EventOfferChosen, OfferID: offerID} }

func ReceiptRequested(v PaymentVariant) Event {
	return Event{Kind: EventReceiptRequested, Variant: v}
}

func ScreenshotsSubmissionStarted() Event { return Event{Kind: EventScreenshotsSubmissionStarted} }

func PhoneConsentGiven() Event { return Event{Kind: EventPhoneConsentGiven} }

func PhoneConsentDeclined() Event { return Event{Kind: EventPhoneConsentDeclined} }

func ContactShared(phone string) Event { return Event{Kind: EventContactShared, Phone: phone} }

func PhotoReceived(photoID string) Event { return Event{Kind: EventPhotoReceived, PhotoID: photoID} }

func Unrecognized() Event { return Event{Kind: EventUnrecognized} }

// Callback keys carried by inline buttons.
const (
	CallbackBuy          = "buy"
	CallbackReceipt      = "receipt"
	CallbackShareSubmit  = "share_submit"
	CallbackShareDecline = "share_decline"
	CallbackConsentPhone = "consent_phone"
)

// EventFromCallback maps an inline button key and payload to an event.
func EventFromCallback(key, payload string) Event {
	switch key {
	case CallbackBuy:
		if payload == "" {
			return Unrecognized()
		}
		return OfferChosen(payload)
	case CallbackReceipt:
		switch PaymentVariant(payload) {
		case VariantNormal, "":
			return ReceiptRequested(VariantNormal)
		case VariantSkip:
			return ReceiptRequested(VariantSkip)
		}
	case CallbackShareSubmit:
		return ScreenshotsSubmissionStarted()
	case CallbackShareDecline:
		return PhoneConsentDeclined()
	case CallbackConsentPhone:
		return PhoneConsentGiven()
	}
	return Unrecognized()
}
