package course

import "github.com/ashbolt/coursebot/core/telegram/state"

// Conversation stages. StateIdle from the state package is the initial stage.
const (
	StageIdle                  state.State = state.StateIdle
	StageAwaitingPayment       state.State = "awaiting_payment"
	StageAwaitingSkipPayment   state.State = "awaiting_skip_payment"
	StageAwaitingSharingChoice state.State = "awaiting_sharing_choice"
	StageCollectingScreenshots state.State = "collecting_screenshots"
	StageAwaitingPhoneConsent  state.State = "awaiting_phone_consent"
	StageAwaitingPhoneNumber   state.State = "awaiting_phone_number"
	StageAwaitingFulfillment   state.State = "awaiting_fulfillment"
)

// Stages lists every stage in flow order.
func Stages() []state.State {
	return []state.State{
		StageIdle,
		StageAwaitingPayment,
		StageAwaitingSkipPayment,
		StageAwaitingSharingChoice,
		StageCollectingScreenshots,
		StageAwaitingPhoneConsent,
		StageAwaitingPhoneNumber,
		StageAwaitingFulfillment,
	}
}
