package logger

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestAsyncWriterFansOut(t *testing.T) {
	var a, b bytes.Buffer
	w := newAsyncWriter([]io.Writer{&a, &b}, 2)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = w.Write([]byte("line\n"))
		}()
	}
	wg.Wait()
	if err := w.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if n := strings.Count(a.String(), "line\n"); n != 20 {
		t.Fatalf("first sink got %d lines", n)
	}
	if a.String() != b.String() {
		t.Fatal("sinks diverged")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := w.Write([]byte("late\n")); err == nil {
		t.Fatal("write after close succeeded")
	}
}

func TestAsyncWriterCopiesInput(t *testing.T) {
	var out bytes.Buffer
	w := newAsyncWriter([]io.Writer{&out}, 4)
	p := []byte("first\n")
	_ = w.Write(p)
	copy(p, "XXXXX\n")
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if out.String() != "first\n" {
		t.Fatalf("out = %q", out.String())
	}
}

func TestAsyncWriterReportsSinkError(t *testing.T) {
	var out bytes.Buffer
	w := newAsyncWriter([]io.Writer{failingWriter{}, &out}, 4)
	_ = w.Write([]byte("x\n"))
	if err := w.Flush(); err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("flush err = %v", err)
	}
	if out.String() != "x\n" {
		t.Fatalf("healthy sink missed the line: %q", out.String())
	}
	if err := w.Close(); err == nil {
		t.Fatal("close should report the sink error")
	}
}

func TestRatioSampler(t *testing.T) {
	s := newRatioSampler(1, 4)
	allowed := 0
	for i := 0; i < 12; i++ {
		if s.Allow() {
			allowed++
		}
	}
	if allowed != 3 {
		t.Fatalf("allowed %d of 12, want 3", allowed)
	}

	s.Set(0, 0)
	for i := 0; i < 5; i++ {
		if !s.Allow() {
			t.Fatal("zero ratio must allow everything")
		}
	}
}

func TestParseRatio(t *testing.T) {
	cases := []struct {
		in       string
		num, den int
	}{
		{"1/10", 1, 10},
		{" 2 / 5 ", 2, 5},
		{"20", 1, 20},
		{"", 0, 0},
		{"x/2", 0, 0},
		{"-3", 0, 0},
	}
	for _, tc := range cases {
		num, den := parseRatio(tc.in)
		if num != tc.num || den != tc.den {
			t.Errorf("parseRatio(%q) = %d/%d, want %d/%d", tc.in, num, den, tc.num, tc.den)
		}
	}
}

func TestRedactError(t *testing.T) {
	if RedactError(nil) != nil {
		t.Fatal("nil error changed")
	}
	plain := errors.New("connection refused")
	if RedactError(plain) != plain {
		t.Fatal("error without token must be returned as is")
	}
	got := RedactError(errors.New("Post https://api.telegram.org/bot42:secret-token/getMe: EOF"))
	if got.Error() != "Post https://api.telegram.org/bot<redacted>/getMe: EOF" {
		t.Fatalf("redacted = %q", got)
	}
}
