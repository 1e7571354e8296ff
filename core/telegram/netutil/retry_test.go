package netutil

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

// wrapped hides the inner error text; a zero FloodError cannot format itself.
type wrapped struct{ inner error }

func (w wrapped) Error() string { return "send failed" }
func (w wrapped) Unwrap() error { return w.inner }

func TestShouldRetry(t *testing.T) {
	dial := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("bad request"), false},
		{"dial", dial, true},
		{"wrapped dial", fmt.Errorf("send: %w", dial), true},
		{"url dial", &url.Error{Op: "Post", URL: "https://api.telegram.org", Err: dial}, true},
		{"flood", wrapped{tele.FloodError{RetryAfter: 3}}, true},
		{"blocked", tele.ErrBlockedByUser, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ShouldRetry(tc.err); got != tc.want {
				t.Fatalf("ShouldRetry = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRetryAfter(t *testing.T) {
	if d, ok := RetryAfter(wrapped{tele.FloodError{RetryAfter: 3}}); !ok || d != 3*time.Second {
		t.Fatalf("RetryAfter = %v %v", d, ok)
	}
	if _, ok := RetryAfter(errors.New("other")); ok {
		t.Fatal("plain error reported as flood")
	}
}
