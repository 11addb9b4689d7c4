package netutil

import (
	"context"
	"errors"
	"net"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeTimeout struct{}

func (fakeTimeout) Error() string   { return "timeout" }
func (fakeTimeout) Timeout() bool   { return true }
func (fakeTimeout) Temporary() bool { return false }

func TestShouldRetry(t *testing.T) {
	dial := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	require.True(t, ShouldRetry(dial))
	require.True(t, ShouldRetry(&url.Error{Op: "Post", URL: "https://api.telegram.org", Err: fakeTimeout{}}))
	require.False(t, ShouldRetry(errors.New("bad request")))
	require.False(t, ShouldRetry(nil))
	require.False(t, ShouldRetry(context.Canceled))
}

func TestNotSent(t *testing.T) {
	dial := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	require.True(t, NotSent(&url.Error{Op: "Post", URL: "https://api.telegram.org", Err: dial}))
	require.True(t, NotSent(&net.DNSError{Err: "no such host", Name: "api.telegram.org"}))
	require.False(t, NotSent(&net.OpError{Op: "read", Net: "tcp", Err: fakeTimeout{}}))
	require.False(t, NotSent(fakeTimeout{}))
}
