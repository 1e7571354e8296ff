package submission

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/m3rciful/meterbot/internal/flow"
	"github.com/m3rciful/meterbot/internal/meter"
	"github.com/m3rciful/meterbot/internal/repository"
)

type recorded struct {
	sub    meter.Submission
	period meter.Period
	date   time.Time
}

type fakeStore struct {
	profile  *meter.Profile
	meters   map[meter.Type][]meter.Info
	previous map[string]meter.Reading
	done     map[meter.Type]bool
	saved    []recorded
	saveErr  error
}

func (f *fakeStore) UserInfo(_ context.Context, _ int64) (meter.Profile, error) {
	if f.profile == nil {
		return meter.Profile{}, repository.ErrNotFound
	}
	return *f.profile, nil
}

func (f *fakeStore) MetersForApartment(_ context.Context, _ int, t *meter.Type) ([]meter.Info, error) {
	return f.meters[*t], nil
}

func (f *fakeStore) ReadingTypesForPeriod(_ context.Context, _ int, _ meter.Period) (map[meter.Type]bool, error) {
	return f.done, nil
}

func (f *fakeStore) PreviousReading(_ context.Context, _ int, _ meter.Type, serial string, _ meter.Period) (meter.Reading, error) {
	rd, ok := f.previous[serial]
	if !ok {
		return meter.Reading{}, repository.ErrNotFound
	}
	return rd, nil
}

func (f *fakeStore) RecordReading(_ context.Context, sub meter.Submission, period meter.Period, date time.Time) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, recorded{sub: sub, period: period, date: date})
	if f.done == nil {
		f.done = map[meter.Type]bool{}
	}
	f.done[sub.Type] = true
	return nil
}

var anna = flow.User{ID: 1001, FirstName: "Anna"}

// 15 June 2025 with the default one month offset reports May 2025.
func fixedNow() time.Time { return time.Date(2025, time.June, 15, 10, 0, 0, 0, time.UTC) }

func newFixture() (*fakeStore, *Machine) {
	store := &fakeStore{
		profile: &meter.Profile{UserID: anna.ID, Apartment: 42, FirstName: "Anna"},
		meters: map[meter.Type][]meter.Info{
			meter.ColdWater: {
				{Type: meter.ColdWater, SerialNumber: "CW1", Description: "kitchen"},
				{Type: meter.ColdWater, SerialNumber: "CW2", Description: "bath"},
			},
		},
		previous: map[string]meter.Reading{
			"CW1": {Value: 100, Period: "2025-04"},
		},
	}
	return store, New(store, Settings{OffsetMonths: 1, Now: fixedNow})
}

func lastText(res flow.Result) string {
	texts := res.Texts()
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

func TestStartRequiresProfile(t *testing.T) {
	store, m := newFixture()
	store.profile = nil
	res := m.Start(context.Background(), anna)
	if res.Next != nil || !strings.Contains(lastText(res), "/start") {
		t.Fatalf("result = %#v", res)
	}
}

func TestChecklistMarksSubmittedTypes(t *testing.T) {
	store, m := newFixture()
	store.done = map[meter.Type]bool{meter.HotWater: true}
	res := m.Start(context.Background(), anna)
	cl, ok := res.Next.(Checklist)
	if !ok {
		t.Fatalf("next = %#v", res.Next)
	}
	if cl.Period.String() != "2025-05" {
		t.Fatalf("period = %s, want 2025-05", cl.Period)
	}
	rows := res.Replies[0].Inline
	if len(rows) != 5 {
		t.Fatalf("rows = %d, want 5", len(rows))
	}
	if !strings.HasPrefix(rows[0][0].Text, "✅") || !strings.HasPrefix(rows[1][0].Text, "❌") {
		t.Fatalf("marks = %q %q", rows[0][0].Text, rows[1][0].Text)
	}
	if rows[0][0].Unique != CallbackType || rows[0][0].Data != string(meter.HotWater) {
		t.Fatalf("button = %+v", rows[0][0])
	}
	if rows[4][0].Unique != CallbackFinish {
		t.Fatalf("finish button = %+v", rows[4][0])
	}
}

func TestSelectTypeWithoutMetersKeepsChecklist(t *testing.T) {
	_, m := newFixture()
	cl := Checklist{Apartment: 42, Period: meter.Period{Year: 2025, Month: time.May}}
	res := m.SelectType(context.Background(), anna, cl, meter.Heat)
	if res.Next != cl {
		t.Fatalf("next = %#v, want checklist", res.Next)
	}
	if !strings.Contains(lastText(res), "No heat meters") {
		t.Fatalf("reply = %q", lastText(res))
	}
}

func TestValueBelowPreviousIsRejected(t *testing.T) {
	store, m := newFixture()
	ctx := context.Background()
	cl := Checklist{Apartment: 42, Period: meter.Period{Year: 2025, Month: time.May}}

	res := m.SelectType(ctx, anna, cl, meter.ColdWater)
	st, ok := res.Next.(AwaitValue)
	if !ok || st.Previous == nil || st.Previous.Value != 100 {
		t.Fatalf("next = %#v", res.Next)
	}
	if !strings.Contains(lastText(res), "Previous reading: 100") {
		t.Fatalf("prompt = %q", lastText(res))
	}

	res = m.Handle(ctx, anna, st, "95")
	if !strings.Contains(lastText(res), "cannot be less than previous") {
		t.Fatalf("reply = %q", lastText(res))
	}
	if again, ok := res.Next.(AwaitValue); !ok || again.Index != 0 {
		t.Fatalf("next = %#v, want same meter", res.Next)
	}
	if len(store.saved) != 0 {
		t.Fatalf("saved = %+v", store.saved)
	}

	res = m.Handle(ctx, anna, st, "120")
	next, ok := res.Next.(AwaitValue)
	if !ok || next.Index != 1 || next.Previous != nil {
		t.Fatalf("next = %#v, want second meter without previous", res.Next)
	}
	if len(store.saved) != 1 {
		t.Fatalf("saved = %d", len(store.saved))
	}
	got := store.saved[0]
	if got.sub.Value != 120 || got.sub.SerialNumber != "CW1" || got.period.String() != "2025-05" {
		t.Fatalf("saved = %+v", got)
	}
	if want := time.Date(2025, time.May, 15, 0, 0, 0, 0, time.UTC); !got.date.Equal(want) {
		t.Fatalf("reading date = %s, want %s", got.date, want)
	}

	res = m.Handle(ctx, anna, next, "7,5")
	if _, ok := res.Next.(Checklist); !ok {
		t.Fatalf("next = %#v, want checklist after last meter", res.Next)
	}
	if store.saved[1].sub.Value != 7.5 {
		t.Fatalf("comma value = %v", store.saved[1].sub.Value)
	}
}

func TestInvalidValues(t *testing.T) {
	_, m := newFixture()
	st := AwaitValue{
		Apartment: 42,
		Period:    meter.Period{Year: 2025, Month: time.May},
		Type:      meter.ColdWater,
		Meters:    []meter.Info{{SerialNumber: "CW2"}},
	}
	for input, want := range map[string]string{
		"abc": "Please enter a number",
		"-1":  "cannot be negative",
		"NaN": "Please enter a number",
	} {
		res := m.Handle(context.Background(), anna, st, input)
		if !strings.Contains(lastText(res), want) {
			t.Errorf("%q: reply = %q, want %q", input, lastText(res), want)
		}
		if res.Next == nil || res.Next.Step() != st.Step() {
			t.Errorf("%q: next = %#v", input, res.Next)
		}
	}
}

func TestDuplicateReadingAdvances(t *testing.T) {
	store, m := newFixture()
	store.saveErr = repository.ErrDuplicateReading
	st := AwaitValue{
		Apartment: 42,
		Period:    meter.Period{Year: 2025, Month: time.May},
		Type:      meter.ColdWater,
		Meters:    store.meters[meter.ColdWater],
	}
	res := m.Handle(context.Background(), anna, st, "130")
	if !strings.Contains(res.Texts()[0], "already submitted") {
		t.Fatalf("replies = %v", res.Texts())
	}
	if next, ok := res.Next.(AwaitValue); !ok || next.Index != 1 {
		t.Fatalf("next = %#v", res.Next)
	}
}

func TestSaveFailureStaysOnMeter(t *testing.T) {
	store, m := newFixture()
	store.saveErr = errors.New("connection reset")
	st := AwaitValue{
		Apartment: 42,
		Period:    meter.Period{Year: 2025, Month: time.May},
		Type:      meter.ColdWater,
		Meters:    store.meters[meter.ColdWater],
	}
	res := m.Handle(context.Background(), anna, st, "130")
	if next, ok := res.Next.(AwaitValue); !ok || next.Index != 0 {
		t.Fatalf("next = %#v", res.Next)
	}
	if !strings.Contains(lastText(res), "Failed to save") {
		t.Fatalf("reply = %q", lastText(res))
	}
}

func TestFinishEndsConversation(t *testing.T) {
	_, m := newFixture()
	res := m.Finish(context.Background(), anna, Checklist{Apartment: 42, Period: meter.Period{Year: 2025, Month: time.May}})
	if res.Next != nil || !strings.Contains(lastText(res), "May 2025") {
		t.Fatalf("result = %#v", res)
	}
}
