package registration

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/m3rciful/meterbot/core/telegram/state"
	"github.com/m3rciful/meterbot/internal/flow"
	"github.com/m3rciful/meterbot/internal/meter"
	"github.com/m3rciful/meterbot/internal/repository"
)

type fakeStore struct {
	profiles   map[int64]meter.Profile
	apartments map[int]bool
	registered []meter.Registration
	commitErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{profiles: map[int64]meter.Profile{}, apartments: map[int]bool{}}
}

func (f *fakeStore) UserInfo(_ context.Context, userID int64) (meter.Profile, error) {
	p, ok := f.profiles[userID]
	if !ok {
		return meter.Profile{}, repository.ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) ApartmentHasMeters(_ context.Context, apartment int) (bool, error) {
	return f.apartments[apartment], nil
}

func (f *fakeStore) RegisterApartment(_ context.Context, reg meter.Registration) error {
	if f.commitErr != nil {
		return f.commitErr
	}
	f.registered = append(f.registered, reg)
	f.profiles[reg.UserID] = meter.Profile{UserID: reg.UserID, Apartment: reg.Apartment, FirstName: reg.FirstName}
	return nil
}

var anna = flow.User{ID: 1001, FirstName: "Anna"}

func newMachine(store Store) *Machine {
	return New(store, Settings{ApartmentMin: 1, ApartmentMax: 100})
}

// feed sends inputs in order starting from st and returns the last result.
func feed(t *testing.T, m *Machine, st state.State, inputs ...string) flow.Result {
	t.Helper()
	var res flow.Result
	for _, in := range inputs {
		if st == nil {
			t.Fatalf("conversation ended before input %q", in)
		}
		res = m.Handle(context.Background(), anna, st, in)
		st = res.Next
	}
	return res
}

func lastText(res flow.Result) string {
	texts := res.Texts()
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

func TestStartAsksForApartment(t *testing.T) {
	m := newMachine(newFakeStore())
	res := m.Start(context.Background(), anna)
	if _, ok := res.Next.(AwaitApartment); !ok {
		t.Fatalf("next = %#v, want AwaitApartment", res.Next)
	}
	if !strings.Contains(lastText(res), "1-100") {
		t.Fatalf("prompt = %q", lastText(res))
	}
}

func TestStartShowsProfileWhenRegistered(t *testing.T) {
	store := newFakeStore()
	last := "Petrova"
	store.profiles[anna.ID] = meter.Profile{UserID: anna.ID, Apartment: 42, FirstName: "Anna", LastName: &last}
	res := newMachine(store).Start(context.Background(), anna)
	if res.Next != nil {
		t.Fatalf("expected conversation to end, got %#v", res.Next)
	}
	text := lastText(res)
	if !strings.Contains(text, "Anna Petrova") || !strings.Contains(text, "Apartment: 42") {
		t.Fatalf("profile = %q", text)
	}
}

func TestFullRegistration(t *testing.T) {
	store := newFakeStore()
	m := newMachine(store)
	res := feed(t, m, AwaitApartment{},
		"42",
		"2", "HW1 HW2", "kitchen", "bath",
		"1", "CW1", "kitchen",
		"1", "E1", "hall",
		"0",
	)
	if res.Next != nil {
		t.Fatalf("expected end, got %#v", res.Next)
	}
	if !strings.Contains(lastText(res), "Registration complete") {
		t.Fatalf("final reply = %q", lastText(res))
	}
	if len(store.registered) != 1 {
		t.Fatalf("registered %d times", len(store.registered))
	}
	reg := store.registered[0]
	if reg.Apartment != 42 || reg.UserID != anna.ID {
		t.Fatalf("registration = %+v", reg)
	}
	if len(reg.Sections) != 4 {
		t.Fatalf("sections = %d, want 4", len(reg.Sections))
	}
	hot := reg.Sections[0]
	if hot.Type != meter.HotWater || len(hot.Serials) != 2 || hot.Descriptions[1] != "bath" {
		t.Fatalf("hot water section = %+v", hot)
	}
	if heat := reg.Sections[3]; heat.Type != meter.Heat || len(heat.Serials) != 0 {
		t.Fatalf("heat section = %+v", heat)
	}
}

func TestExistingApartmentAddsResidentOnly(t *testing.T) {
	store := newFakeStore()
	store.apartments[42] = true
	res := feed(t, newMachine(store), AwaitApartment{}, "42")
	if res.Next != nil {
		t.Fatalf("expected end, got %#v", res.Next)
	}
	if len(store.registered) != 1 || len(store.registered[0].Sections) != 0 {
		t.Fatalf("registered = %+v", store.registered)
	}
	if !strings.Contains(lastText(res), "added as a resident") {
		t.Fatalf("reply = %q", lastText(res))
	}
}

func TestInvalidInputKeepsStep(t *testing.T) {
	m := newMachine(newFakeStore())
	cases := []struct {
		name  string
		st    state.State
		input string
		want  string
	}{
		{"apartment not number", AwaitApartment{}, "abc", "Please enter a number"},
		{"apartment out of range", AwaitApartment{}, "101", "between 1 and 100"},
		{"count out of range", AwaitCount{Type: meter.HotWater}, "4", "from 1 to 3"},
		{"water count zero", AwaitCount{Type: meter.ColdWater}, "0", "from 1 to 3"},
		{"serial count", AwaitSerials{Type: meter.HotWater, Count: 2}, "A1", "exactly 2"},
		{"duplicate serial", AwaitSerials{Type: meter.HotWater, Count: 2}, "A1 A1", "must not repeat"},
		{"long serial", AwaitSerials{Type: meter.HotWater, Count: 1}, strings.Repeat("9", 21), "at most 20"},
		{"empty description", AwaitDescriptions{Type: meter.HotWater, Serials: []string{"A1"}}, "  ", "must not be empty"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := m.Handle(context.Background(), anna, tc.st, tc.input)
			if res.Next == nil || res.Next.Step() != tc.st.Step() {
				t.Fatalf("next = %#v, want step %q", res.Next, tc.st.Step())
			}
			if !strings.Contains(lastText(res), tc.want) {
				t.Fatalf("reply = %q, want %q", lastText(res), tc.want)
			}
		})
	}
}

func TestDescriptionsDoNotAliasPreviousState(t *testing.T) {
	m := newMachine(newFakeStore())
	st := AwaitDescriptions{
		Type:         meter.HotWater,
		Serials:      []string{"A1", "A2", "A3"},
		Descriptions: make([]string, 0, 3),
	}
	first := m.Handle(context.Background(), anna, st, "kitchen").Next.(AwaitDescriptions)
	second := m.Handle(context.Background(), anna, st, "bath").Next.(AwaitDescriptions)
	if first.Descriptions[0] != "kitchen" || second.Descriptions[0] != "bath" {
		t.Fatalf("descriptions aliased: %v %v", first.Descriptions, second.Descriptions)
	}
	if first.Index != 1 {
		t.Fatalf("index = %d, want 1", first.Index)
	}
}

func TestCommitFailures(t *testing.T) {
	store := newFakeStore()
	store.apartments[42] = true

	store.commitErr = repository.ErrAlreadyRegistered
	res := feed(t, newMachine(store), AwaitApartment{}, "42")
	if !strings.Contains(lastText(res), "already registered") {
		t.Fatalf("reply = %q", lastText(res))
	}

	store.commitErr = errors.New("disk full")
	res = feed(t, newMachine(store), AwaitApartment{}, "42")
	if res.Next != nil || !strings.Contains(lastText(res), "Failed to save") {
		t.Fatalf("result = %#v", res)
	}
}
