// Package submission collects the monthly readings of a registered apartment.
package submission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/meterbot/core/logger"
	"github.com/m3rciful/meterbot/core/telegram/keyboard"
	"github.com/m3rciful/meterbot/core/telegram/state"
	"github.com/m3rciful/meterbot/internal/flow"
	"github.com/m3rciful/meterbot/internal/meter"
	"github.com/m3rciful/meterbot/internal/repository"
)

const component = "service.submission"

const (
	msgNotRegistered = "You are not registered yet. Please register with /start first."
	msgLoadFailed    = "Could not load your meters. Please try again later."
	msgSaveFailed    = "Failed to save the reading. Please try again."
	msgNoSession     = "This list is outdated. Use /submit to start again."
)

// Store is the persistence the submission flow needs.
type Store interface {
	UserInfo(ctx context.Context, userID int64) (meter.Profile, error)
	MetersForApartment(ctx context.Context, apartment int, t *meter.Type) ([]meter.Info, error)
	ReadingTypesForPeriod(ctx context.Context, apartment int, period meter.Period) (map[meter.Type]bool, error)
	PreviousReading(ctx context.Context, apartment int, t meter.Type, serial string, before meter.Period) (meter.Reading, error)
	RecordReading(ctx context.Context, sub meter.Submission, period meter.Period, readingDate time.Time) error
}

// Settings controls period selection. Now defaults to time.Now.
type Settings struct {
	OffsetMonths int
	Now          func() time.Time
}

// Machine is the submission state machine.
type Machine struct {
	store    Store
	settings Settings
}

// New constructs a Machine.
func New(store Store, settings Settings) *Machine {
	if settings.Now == nil {
		settings.Now = time.Now
	}
	return &Machine{store: store, settings: settings}
}

// Start opens the checklist for the current reporting period.
func (m *Machine) Start(ctx context.Context, user flow.User) flow.Result {
	p, err := m.store.UserInfo(ctx, user.ID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return flow.End(flow.Say(msgNotRegistered))
	case err != nil:
		logger.Error(ctx, component, "profile.lookup",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return flow.End(flow.Say(msgLoadFailed))
	}
	period := meter.CurrentPeriod(m.settings.Now(), m.settings.OffsetMonths)
	return m.checklist(ctx, Checklist{Apartment: p.Apartment, Period: period})
}

// SelectType starts value entry for every meter of t.
func (m *Machine) SelectType(ctx context.Context, user flow.User, st state.State, t meter.Type) flow.Result {
	var cl Checklist
	switch s := st.(type) {
	case Checklist:
		cl = s
	case AwaitValue:
		cl = Checklist{Apartment: s.Apartment, Period: s.Period}
	default:
		return flow.End(flow.Say(msgNoSession))
	}
	if !t.Valid() {
		return flow.To(cl, flow.Say("Unknown meter type."))
	}

	meters, err := m.store.MetersForApartment(ctx, cl.Apartment, &t)
	if err != nil {
		logger.Error(ctx, component, "meters.lookup",
			slog.String("status", "fail"),
			slog.Int("apartment", cl.Apartment),
			slog.String("meter_type", string(t)),
			slog.String("err", err.Error()),
		)
		return flow.To(cl, flow.Say(msgLoadFailed))
	}
	if len(meters) == 0 {
		return flow.To(cl, flow.Say(fmt.Sprintf("No %s meters are registered for your apartment.", typeName(t))))
	}
	return m.promptValue(ctx, AwaitValue{
		Apartment: cl.Apartment,
		Period:    cl.Period,
		Type:      t,
		Meters:    meters,
	})
}

// Handle consumes a typed reading.
func (m *Machine) Handle(ctx context.Context, user flow.User, st state.State, text string) flow.Result {
	switch s := st.(type) {
	case AwaitValue:
		return m.onValue(ctx, user, s, text)
	case Checklist:
		return flow.To(s, flow.Say("Please choose a meter type from the list above."))
	}
	return flow.End()
}

// Finish closes the checklist.
func (m *Machine) Finish(_ context.Context, _ flow.User, st state.State) flow.Result {
	switch s := st.(type) {
	case Checklist:
		return flow.End(flow.Say(fmt.Sprintf("Thank you! Readings for %s are saved.", s.Period.Label())))
	case AwaitValue:
		return flow.End(flow.Say(fmt.Sprintf("Thank you! Readings for %s are saved.", s.Period.Label())))
	}
	return flow.End(flow.Say("Thank you!"))
}

func (m *Machine) onValue(ctx context.Context, user flow.User, s AwaitValue, text string) flow.Result {
	value, err := meter.ParseValue(text)
	switch {
	case errors.Is(err, meter.ErrNegative):
		return flow.To(s, flow.Say("The value cannot be negative."))
	case err != nil:
		return flow.To(s, flow.Say("Please enter a number, e.g. 123.45"))
	}
	if err := meter.CheckMonotonic(value, s.Previous); err != nil {
		return flow.To(s, flow.Say(fmt.Sprintf(
			"The value cannot be less than previous (%s). Please enter it again.", formatValue(s.Previous.Value))))
	}

	cur := s.current()
	sub := meter.Submission{
		UserID:       user.ID,
		Apartment:    s.Apartment,
		Type:         s.Type,
		SerialNumber: cur.SerialNumber,
		Value:        value,
	}
	now := m.settings.Now()
	err = m.store.RecordReading(ctx, sub, s.Period, meter.ReadingDate(now, m.settings.OffsetMonths))

	var ack flow.Reply
	switch {
	case errors.Is(err, repository.ErrDuplicateReading):
		ack = flow.Say(fmt.Sprintf("A reading for meter %s was already submitted for %s.", cur.SerialNumber, s.Period.Label()))
	case err != nil:
		logger.Error(ctx, component, "reading.save",
			slog.String("status", "fail"),
			slog.Int("apartment", s.Apartment),
			slog.String("serial", cur.SerialNumber),
			slog.String("err", err.Error()),
		)
		return flow.To(s, flow.Say(msgSaveFailed))
	default:
		logger.Info(ctx, component, "reading.save",
			slog.String("status", "ok"),
			slog.Int("apartment", s.Apartment),
			slog.String("meter_type", string(s.Type)),
			slog.String("serial", cur.SerialNumber),
			slog.String("period", s.Period.String()),
		)
		ack = flow.Say(fmt.Sprintf("Saved %s for meter %s.", formatValue(value), cur.SerialNumber))
	}

	var res flow.Result
	if s.Index+1 < len(s.Meters) {
		next := s
		next.Index++
		next.Previous = nil
		res = m.promptValue(ctx, next)
	} else {
		res = m.checklist(ctx, Checklist{Apartment: s.Apartment, Period: s.Period})
	}
	res.Replies = append([]flow.Reply{ack}, res.Replies...)
	return res
}

func (m *Machine) promptValue(ctx context.Context, s AwaitValue) flow.Result {
	cur := s.current()
	prev, err := m.store.PreviousReading(ctx, s.Apartment, s.Type, cur.SerialNumber, s.Period)
	switch {
	case err == nil:
		s.Previous = &prev
	case errors.Is(err, repository.ErrNotFound):
		s.Previous = nil
	default:
		logger.Error(ctx, component, "previous.lookup",
			slog.String("status", "fail"),
			slog.String("serial", cur.SerialNumber),
			slog.String("err", err.Error()),
		)
		return flow.To(Checklist{Apartment: s.Apartment, Period: s.Period}, flow.Say(msgLoadFailed))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s meter %s", s.Type.Title(), cur.SerialNumber)
	if cur.Description != "" {
		fmt.Fprintf(&b, " (%s)", cur.Description)
	}
	if s.Previous != nil {
		fmt.Fprintf(&b, "\nPrevious reading: %s %s (%s)", formatValue(s.Previous.Value), s.Type.Unit(), s.Previous.Period)
	}
	fmt.Fprintf(&b, "\nEnter the current value for %s:", s.Period.Label())
	return flow.To(s, flow.Say(b.String()))
}

func (m *Machine) checklist(ctx context.Context, cl Checklist) flow.Result {
	done, err := m.store.ReadingTypesForPeriod(ctx, cl.Apartment, cl.Period)
	if err != nil {
		logger.Error(ctx, component, "checklist.lookup",
			slog.String("status", "fail"),
			slog.Int("apartment", cl.Apartment),
			slog.String("err", err.Error()),
		)
		return flow.End(flow.Say(msgLoadFailed))
	}

	rows := make([][]keyboard.InlineBtn, 0, len(meter.Types())+1)
	for _, t := range meter.Types() {
		mark := "❌"
		if done[t] {
			mark = "✅"
		}
		rows = append(rows, []keyboard.InlineBtn{{
			Text:   mark + " " + t.Title(),
			Unique: CallbackType,
			Data:   string(t),
		}})
	}
	rows = append(rows, []keyboard.InlineBtn{{Text: "Finish", Unique: CallbackFinish}})

	return flow.To(cl, flow.Reply{
		Text:   fmt.Sprintf("Readings for %s. Choose a meter type:", cl.Period.Label()),
		Inline: rows,
	})
}

func typeName(t meter.Type) string {
	return strings.ToLower(t.Title())
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
