package bot

import (
	"context"
	"strings"
	"testing"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/meterbot/core/config"
	"github.com/m3rciful/meterbot/core/database"
	"github.com/m3rciful/meterbot/core/telegram/state"
	"github.com/m3rciful/meterbot/internal/admin"
	"github.com/m3rciful/meterbot/internal/config"
	"github.com/m3rciful/meterbot/internal/flow"
	"github.com/m3rciful/meterbot/internal/registration"
	"github.com/m3rciful/meterbot/internal/repository"
	"github.com/m3rciful/meterbot/internal/submission"
)

type fakeContext struct {
	tele.Context
	update  tele.Update
	store   map[string]interface{}
	sent    []interface{}
	markups []*tele.ReplyMarkup
}

func newFakeContext(userID int64, text string) *fakeContext {
	msg := &tele.Message{
		Sender: &tele.User{ID: userID, FirstName: "Anna", LastName: "Petrova"},
		Chat:   &tele.Chat{ID: userID, Type: tele.ChatPrivate},
		Text:   text,
	}
	return &fakeContext{update: tele.Update{ID: 1, Message: msg}, store: map[string]interface{}{}}
}

func (f *fakeContext) Update() tele.Update           { return f.update }
func (f *fakeContext) Message() *tele.Message        { return f.update.Message }
func (f *fakeContext) Callback() *tele.Callback      { return f.update.Callback }
func (f *fakeContext) Sender() *tele.User            { return f.update.Message.Sender }
func (f *fakeContext) Chat() *tele.Chat              { return f.update.Message.Chat }
func (f *fakeContext) Text() string                  { return f.update.Message.Text }
func (f *fakeContext) Get(key string) interface{}    { return f.store[key] }
func (f *fakeContext) Set(key string, v interface{}) { f.store[key] = v }
func (f *fakeContext) Send(what interface{}, opts ...interface{}) error {
	f.sent = append(f.sent, what)
	var m *tele.ReplyMarkup
	for _, o := range opts {
		if rm, ok := o.(*tele.ReplyMarkup); ok {
			m = rm
		}
	}
	f.markups = append(f.markups, m)
	return nil
}

func (f *fakeContext) lastText(t *testing.T) string {
	t.Helper()
	if len(f.sent) == 0 {
		t.Fatal("nothing sent")
	}
	s, ok := f.sent[len(f.sent)-1].(string)
	if !ok {
		t.Fatalf("last send is %T, want text", f.sent[len(f.sent)-1])
	}
	return s
}

const adminID = 900

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg := &config.Config{
		Config: coreconfig.Config{
			Telegram: coreconfig.TelegramConfig{Token: "test", AdminIDs: []int64{adminID}},
		},
		Database: database.Config{Driver: database.DriverSQLite, Path: ":memory:"},
	}
	if err := config.Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	db, err := database.Connect(cfg.Database)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := database.RunMigrations(cfg.Database, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	repo := repository.New(db)
	if err := repo.EnsureMeterTypes(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return New(cfg, repo)
}

func TestRegistryWiring(t *testing.T) {
	a := newTestApp(t)
	for _, name := range []string{"/start", "/submit", "/edit_serials", "/cancel", "/admin"} {
		if _, ok := a.registry.Commands()[name]; !ok {
			t.Errorf("command %s not registered", name)
		}
	}
	if !a.registry.Commands()["/admin"].AdminOnly {
		t.Error("/admin must be admin only")
	}
	if got := len(a.registry.ListCallbacks()); got != 6 {
		t.Errorf("callbacks = %d, want 6", got)
	}
	for _, c := range a.registry.ListCommands(true) {
		if c.Text == "/admin" {
			t.Error("/admin must be hidden from the menu")
		}
	}
}

func TestStartThenApartment(t *testing.T) {
	a := newTestApp(t)
	c := newFakeContext(1001, "/start")
	if err := a.registry.Commands()["/start"].Handler(c); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, ok := a.current(c).(registration.AwaitApartment); !ok {
		t.Fatalf("state = %#v", a.current(c))
	}

	c = newFakeContext(1001, "42")
	if !a.states.InProgress(c) {
		t.Fatal("conversation not in progress")
	}
	if err := a.states.ManagerHandler(c); err != nil {
		t.Fatalf("apartment: %v", err)
	}
	if !strings.Contains(c.lastText(t), "hot water") {
		t.Fatalf("reply = %q", c.lastText(t))
	}

	c = newFakeContext(1001, "/cancel")
	if err := a.registry.Commands()["/cancel"].Handler(c); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if a.states.InProgress(c) {
		t.Fatal("conversation survived /cancel")
	}
	if c.lastText(t) != "Cancelled." || c.markups[0] == nil || !c.markups[0].RemoveKeyboard {
		t.Fatalf("cancel reply = %q %+v", c.lastText(t), c.markups[0])
	}
}

func TestMenuTextIsGated(t *testing.T) {
	a := newTestApp(t)

	c := newFakeContext(1001, admin.ButtonMissing)
	if err := a.onMenuText(c); err != nil {
		t.Fatalf("menu text: %v", err)
	}
	if !strings.Contains(c.lastText(t), "administrators only") {
		t.Fatalf("reply = %q", c.lastText(t))
	}

	c = newFakeContext(adminID, admin.ButtonMissing)
	if err := a.onMenuText(c); err != nil {
		t.Fatalf("menu text: %v", err)
	}
	if !strings.Contains(c.lastText(t), "All apartments submitted") {
		t.Fatalf("reply = %q", c.lastText(t))
	}

	c = newFakeContext(1001, "hello")
	if err := a.onMenuText(c); err != nil {
		t.Fatalf("unknown text: %v", err)
	}
	if !strings.Contains(c.lastText(t), "I don't understand") {
		t.Fatalf("reply = %q", c.lastText(t))
	}
}

func TestResidentCommandsArePrivate(t *testing.T) {
	a := newTestApp(t)
	for _, name := range []string{"/start", "/submit", "/edit_serials"} {
		c := newFakeContext(1001, name)
		c.update.Message.Chat = &tele.Chat{ID: -100500, Type: tele.ChatGroup}
		if err := a.registry.Commands()[name].Handler(c); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if !strings.Contains(c.lastText(t), "private chat") {
			t.Fatalf("%s reply = %q", name, c.lastText(t))
		}
		if a.states.InProgress(c) {
			t.Fatalf("%s started a conversation in a group", name)
		}
	}
}

func textRoute(t *testing.T, a *App) tele.HandlerFunc {
	t.Helper()
	opts, err := a.TelegramRunOptions()
	if err != nil {
		t.Fatalf("run options: %v", err)
	}
	for _, r := range opts.Routes {
		if r.Endpoint == tele.OnText {
			return r.Handler
		}
	}
	t.Fatal("no text route")
	return nil
}

func TestAdminButtonOverridesLingeringConversation(t *testing.T) {
	a := newTestApp(t)
	onText := textRoute(t, a)

	c := newFakeContext(adminID, admin.ButtonMissing)
	a.states.Store().Set(state.KeyOf(c), submission.Checklist{Apartment: 42})
	if err := onText(c); err != nil {
		t.Fatalf("menu text: %v", err)
	}
	if !strings.Contains(c.lastText(t), "All apartments submitted") {
		t.Fatalf("reply = %q", c.lastText(t))
	}
	if a.states.InProgress(c) {
		t.Fatalf("lingering state kept: %#v", a.current(c))
	}

	// Residents typing a menu label still talk to their conversation.
	c = newFakeContext(1001, admin.ButtonMissing)
	a.states.Store().Set(state.KeyOf(c), submission.Checklist{Apartment: 42})
	if err := onText(c); err != nil {
		t.Fatalf("resident text: %v", err)
	}
	if strings.Contains(c.lastText(t), "All apartments submitted") {
		t.Fatalf("resident reached the admin menu: %q", c.lastText(t))
	}
}

func TestMarkupSelection(t *testing.T) {
	if m := markup(flow.Say("plain")); m != nil {
		t.Fatalf("plain markup = %+v", m)
	}
	m := markup(flow.Reply{Keyboard: [][]string{{"a", "b"}}})
	if m == nil || len(m.ReplyKeyboard) != 1 || len(m.ReplyKeyboard[0]) != 2 {
		t.Fatalf("reply keyboard = %+v", m)
	}
	if m := markup(flow.Reply{RemoveKeyboard: true}); m == nil || !m.RemoveKeyboard {
		t.Fatalf("remove markup = %+v", m)
	}
}

func TestUserOf(t *testing.T) {
	u := userOf(newFakeContext(7, ""))
	if u.ID != 7 || u.FirstName != "Anna" || u.LastName == nil || *u.LastName != "Petrova" {
		t.Fatalf("user = %+v", u)
	}
}
