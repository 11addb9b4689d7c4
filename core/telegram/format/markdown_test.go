package format

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEscapeMarkdown(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "upi id", in: "course_shop@upi", want: `course\_shop@upi`},
		{name: "emphasis and code", in: "*a* `b` [c]", want: "\\*a\\* \\`b\\` \\[c]"},
		{name: "plain", in: "pay@bank", want: "pay@bank"},
		{name: "v2-only specials untouched", in: "a.b-c!", want: "a.b-c!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, EscapeMarkdown(tt.in))
		})
	}
	require.Equal(t, `a\_b`, MD("a_b"))
}
