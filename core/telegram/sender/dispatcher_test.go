package sender

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestDeliverIsolatesFailures(t *testing.T) {
	d := NewDispatcher(Options{Workers: 2, RetryBackoff: time.Millisecond})
	var calls atomic.Int64
	jobs := []Job{
		{Recipient: 1, Run: func(context.Context) error { calls.Add(1); return nil }},
		{Recipient: 2, Run: func(context.Context) error { calls.Add(1); return tele.ErrBlockedByUser }},
		{Recipient: 3, Run: func(context.Context) error { calls.Add(1); return nil }},
	}
	sum := d.Deliver(context.Background(), "reminder", jobs)
	if sum.Sent != 2 || sum.Failed != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3 (non-retryable errors are not retried)", calls.Load())
	}
}

func TestDeliverRetriesTransientErrors(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond})
	var attempts atomic.Int64
	job := Job{Recipient: 7, Run: func(context.Context) error {
		if attempts.Add(1) < 3 {
			return timeoutErr{}
		}
		return nil
	}}
	sum := d.Deliver(context.Background(), "reminder", []Job{job})
	if sum.Sent != 1 || sum.Failed != 0 {
		t.Fatalf("summary = %+v", sum)
	}
	if attempts.Load() != 3 {
		t.Fatalf("attempts = %d", attempts.Load())
	}
}

func TestDeliverCancelledCountsRemaining(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	jobs := []Job{
		{Recipient: 1, Run: func(context.Context) error { return nil }},
		{Recipient: 2, Run: func(context.Context) error { return nil }},
	}
	sum := d.Deliver(ctx, "reminder", jobs)
	if sum.Sent+sum.Failed != 2 {
		t.Fatalf("summary = %+v", sum)
	}
}

func TestClassifyError(t *testing.T) {
	if got := classifyError(context.DeadlineExceeded); got != "timeout" {
		t.Fatalf("deadline = %s", got)
	}
	if got := classifyError(tele.ErrBlockedByUser); got != "unreachable" {
		t.Fatalf("blocked = %s", got)
	}
	if got := classifyError(tele.ErrChatNotFound); got != "unreachable" {
		t.Fatalf("chat not found = %s", got)
	}
	if got := classifyError(timeoutErr{}); got != "timeout" {
		t.Fatalf("net timeout = %s", got)
	}
	if got := classifyError(&net.DNSError{Err: "no such host", Name: "api.telegram.org"}); got != "dns" {
		t.Fatalf("dns = %s", got)
	}
	if got := classifyError(tele.NewError(502, "Bad Gateway")); got != "http_5xx" {
		t.Fatalf("502 = %s", got)
	}
	if got := classifyError(tele.NewError(403, "Forbidden: bot was kicked")); got != "http_4xx" {
		t.Fatalf("403 = %s", got)
	}
	if got := classifyError(nil); got != "" {
		t.Fatalf("nil = %q", got)
	}
	if got := classifyError(errors.New("boom")); got != "unknown" {
		t.Fatalf("plain = %s", got)
	}
	if got := sanitizeErrorMessage(errors.New("post https://api.telegram.org/bot123:AbC_d/sendMessage")); got != "post https://api.telegram.org/bot<redacted>/sendMessage" {
		t.Fatalf("sanitize = %s", got)
	}
}
