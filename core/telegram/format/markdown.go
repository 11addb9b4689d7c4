package format

import "regexp"

var mdRe = regexp.MustCompile("([_*`\\[])")

// EscapeMarkdown escapes characters that carry meaning in Telegram's legacy
// Markdown, the parse mode every course message is sent with.
func EscapeMarkdown(text string) string {
	return mdRe.ReplaceAllString(text, `\${1}`)
}

// MD is shorthand for EscapeMarkdown inside message templates.
func MD(text string) string {
	return EscapeMarkdown(text)
}
