package middleware

import (
	"errors"
	"testing"

	tele "gopkg.in/telebot.v4"
)

// fakeContext records sends; every other tele.Context method panics if used.
type fakeContext struct {
	tele.Context
	update tele.Update
	store  map[string]interface{}
	sent   []interface{}
}

func newFakeContext(chatType tele.ChatType, userID int64) *fakeContext {
	msg := &tele.Message{
		Sender: &tele.User{ID: userID},
		Chat:   &tele.Chat{ID: userID, Type: chatType},
		Text:   "hi",
	}
	return &fakeContext{
		update: tele.Update{ID: 1, Message: msg},
		store:  make(map[string]interface{}),
	}
}

func (f *fakeContext) Update() tele.Update           { return f.update }
func (f *fakeContext) Message() *tele.Message        { return f.update.Message }
func (f *fakeContext) Callback() *tele.Callback      { return f.update.Callback }
func (f *fakeContext) Sender() *tele.User            { return f.update.Message.Sender }
func (f *fakeContext) Chat() *tele.Chat              { return f.update.Message.Chat }
func (f *fakeContext) Text() string                  { return f.update.Message.Text }
func (f *fakeContext) Get(key string) interface{}    { return f.store[key] }
func (f *fakeContext) Set(key string, v interface{}) { f.store[key] = v }
func (f *fakeContext) Send(what interface{}, _ ...interface{}) error {
	f.sent = append(f.sent, what)
	return nil
}

func TestErrorBoundaryRepliesAndReturnsError(t *testing.T) {
	c := newFakeContext(tele.ChatPrivate, 5)
	boom := errors.New("boom")
	h := ErrorBoundary(BoundaryOptions{})(func(tele.Context) error { return boom })

	if err := h(c); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if len(c.sent) != 1 || c.sent[0] != DefaultFailureText {
		t.Fatalf("unexpected replies %v", c.sent)
	}
}

func TestErrorBoundaryConvertsPanics(t *testing.T) {
	c := newFakeContext(tele.ChatPrivate, 5)
	h := ErrorBoundary(BoundaryOptions{FailureText: "oops"})(func(tele.Context) error { panic("kaboom") })

	err := h(c)
	var pe *PanicError
	if !errors.As(err, &pe) || pe.Value != "kaboom" || len(pe.Stack) == 0 {
		t.Fatalf("expected PanicError, got %v", err)
	}
	if len(c.sent) != 1 || c.sent[0] != "oops" {
		t.Fatalf("unexpected replies %v", c.sent)
	}
}

func TestAdminGate(t *testing.T) {
	opts := AdminOptions{
		IsAdmin:     func(id int64) bool { return id == 42 },
		PrivateOnly: true,
	}
	cases := []struct {
		name string
		c    *fakeContext
		want bool
	}{
		{"admin private", newFakeContext(tele.ChatPrivate, 42), true},
		{"admin group", newFakeContext(tele.ChatGroup, 42), false},
		{"stranger", newFakeContext(tele.ChatPrivate, 7), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			called := false
			h := AdminOnlyMiddleware(opts)(func(tele.Context) error { called = true; return nil })
			if err := h(tc.c); err != nil {
				t.Fatalf("handler: %v", err)
			}
			if called != tc.want {
				t.Fatalf("called = %v, want %v", called, tc.want)
			}
		})
	}
}

func TestMessageCounters(t *testing.T) {
	c := newFakeContext(tele.ChatPrivate, 1)
	h := MessageMetricsMiddleware(func(c tele.Context) error {
		_ = c.Send("one")
		_ = c.Send("two", &tele.ReplyMarkup{})
		return c.Send(&tele.Document{FileName: "x.xlsx"})
	})
	if err := h(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	got := GetCounters(c)
	if got.Messages != 2 || got.Documents != 1 || !got.Keyboard {
		t.Fatalf("counters = %+v", got)
	}
}

func TestPrivateOnly(t *testing.T) {
	rejected := 0
	h := PrivateOnly(func(tele.Context) error { rejected++; return nil })(func(c tele.Context) error {
		return c.Send("ok")
	})

	c := newFakeContext(tele.ChatPrivate, 5)
	if err := h(c); err != nil || len(c.sent) != 1 {
		t.Fatalf("private: err=%v sent=%v", err, c.sent)
	}
	c = newFakeContext(tele.ChatSuperGroup, 5)
	if err := h(c); err != nil || len(c.sent) != 0 || rejected != 1 {
		t.Fatalf("group: err=%v sent=%v rejected=%d", err, c.sent, rejected)
	}
}
