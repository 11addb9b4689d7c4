package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUpdateMetaRoundTrip(t *testing.T) {
	ctx := WithUpdateMeta(context.Background(), 12, 34, 56)
	ctx = WithRID(ctx, BuildRID(12, 56, 34))
	ctx = WithHandler(ctx, "callback.buy")

	require.Equal(t, 12, UpdateIDFrom(ctx))
	require.Equal(t, int64(34), UserIDFrom(ctx))
	require.Equal(t, int64(56), ChatIDFrom(ctx))
	require.Equal(t, "12:56:34", RIDFrom(ctx))
	require.Equal(t, "callback.buy", HandlerFrom(ctx))
	require.Same(t, L, FromContext(ctx))

	//nolint:staticcheck // nil context is tolerated
	require.Zero(t, UserIDFrom(nil))
}

func TestSanitizeLimit(t *testing.T) {
	require.Equal(t, "ab\tc\n", Sanitize("a\x00b\tc\u200b\n\x7f"))
	require.Equal(t, "héll", SanitizeLimit("héllo", 4))
	require.Empty(t, SanitizeLimit("x", 0))
	require.Equal(t, "c.y.a", CompactRID("12:34:10"))
	require.Equal(t, "not-a-rid", CompactRID("not-a-rid"))
}
