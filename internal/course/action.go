package course

// ActionKind describes what must be delivered and to whom.
type ActionKind int

const (
	ActionMessage ActionKind = iota
	ActionChoices
	ActionPhoto
	// ActionContactRequest asks the participant to share their phone number via a dedicated button.
	ActionContactRequest
	ActionOperatorMessage
	ActionOperatorPhoto
)

// Choice is a single inline button.
type Choice struct {
	Label  string
	Unique string
	Data   string
}

// Action is one outbound delivery produced by a transition.
type Action struct {
	Kind ActionKind
	// Text is the message body, the photo caption or, for operator actions, the
	// description of what the participant did.
	Text string
	// Photo is a URL or channel file reference.
	Photo          string
	Choices        []Choice
	Markdown       bool
	RemoveKeyboard bool
	// ContactLabel is the button label of a contact request.
	ContactLabel string
	Phone        string
}

// ForOperator reports whether the action targets the operator.
func (a Action) ForOperator() bool {
	return a.Kind == ActionOperatorMessage || a.Kind == ActionOperatorPhoto
}

func message(text string) Action { return Action{Kind: ActionMessage, Text: text} }

func markdown(text string) Action { return Action{Kind: ActionMessage, Text: text, Markdown: true} }

func photo(ref, caption string) Action { return Action{Kind: ActionPhoto, Photo: ref, Text: caption} }

func choices(text string, md bool, opts ...Choice) Action {
	return Action{Kind: ActionChoices, Text: text, Markdown: md, Choices: opts}
}

func notifyOperator(what string) Action { return Action{Kind: ActionOperatorMessage, Text: what} }

func forwardPhoto(ref, what string) Action {
	return Action{Kind: ActionOperatorPhoto, Photo: ref, Text: what}
}
