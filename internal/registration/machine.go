// Package registration walks a new resident through apartment and meter
// registration and commits the result in one transaction.
package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/m3rciful/meterbot/core/logger"
	"github.com/m3rciful/meterbot/core/telegram/format"
	"github.com/m3rciful/meterbot/core/telegram/state"
	"github.com/m3rciful/meterbot/internal/flow"
	"github.com/m3rciful/meterbot/internal/meter"
	"github.com/m3rciful/meterbot/internal/repository"
)

const component = "service.registration"

const (
	msgNotNumber    = "Please enter a number."
	msgSaveFailed   = "Failed to save your data. Please try again later with /start."
	msgLookupFailed = "Could not load your profile. Please try again later."
	msgRegistered   = "You are already registered. Use /start to see your profile."
)

// Store is the persistence the registration flow needs.
type Store interface {
	UserInfo(ctx context.Context, userID int64) (meter.Profile, error)
	ApartmentHasMeters(ctx context.Context, apartment int) (bool, error)
	RegisterApartment(ctx context.Context, reg meter.Registration) error
}

// Settings bounds the accepted apartment numbers.
type Settings struct {
	ApartmentMin int
	ApartmentMax int
}

// Machine is the registration state machine.
type Machine struct {
	store    Store
	settings Settings
}

// New constructs a Machine.
func New(store Store, settings Settings) *Machine {
	return &Machine{store: store, settings: settings}
}

// Start echoes the stored profile of a registered user or asks for the apartment.
func (m *Machine) Start(ctx context.Context, user flow.User) flow.Result {
	p, err := m.store.UserInfo(ctx, user.ID)
	switch {
	case err == nil:
		return flow.End(flow.Say(ProfileText(p)))
	case errors.Is(err, repository.ErrNotFound):
		return flow.To(AwaitApartment{}, flow.Say(fmt.Sprintf(
			"Enter your apartment number (%d-%d):", m.settings.ApartmentMin, m.settings.ApartmentMax)))
	default:
		logger.Error(ctx, component, "profile.lookup",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return flow.End(flow.Say(msgLookupFailed))
	}
}

// Handle consumes text input for the current registration step.
func (m *Machine) Handle(ctx context.Context, user flow.User, st state.State, text string) flow.Result {
	switch s := st.(type) {
	case AwaitApartment:
		return m.onApartment(ctx, user, s, text)
	case AwaitCount:
		return m.onCount(ctx, user, s, text)
	case AwaitSerials:
		return m.onSerials(s, text)
	case AwaitDescriptions:
		return m.onDescription(ctx, user, s, text)
	}
	return flow.End()
}

func (m *Machine) onApartment(ctx context.Context, user flow.User, s AwaitApartment, text string) flow.Result {
	apartment, err := meter.ParseApartment(text, m.settings.ApartmentMin, m.settings.ApartmentMax)
	switch {
	case errors.Is(err, meter.ErrNotNumber):
		return flow.To(s, flow.Say(msgNotNumber))
	case err != nil:
		return flow.To(s, flow.Say(fmt.Sprintf(
			"Apartment number must be between %d and %d.", m.settings.ApartmentMin, m.settings.ApartmentMax)))
	}

	has, err := m.store.ApartmentHasMeters(ctx, apartment)
	if err != nil {
		logger.Error(ctx, component, "apartment.lookup",
			slog.String("status", "fail"),
			slog.Int("apartment", apartment),
			slog.String("err", err.Error()),
		)
		return flow.End(flow.Say(msgSaveFailed))
	}
	if has {
		return m.commit(ctx, user, Draft{Apartment: apartment}, true)
	}
	return askCount(Draft{Apartment: apartment}, meter.Types()[0])
}

func (m *Machine) onCount(ctx context.Context, user flow.User, s AwaitCount, text string) flow.Result {
	count, err := meter.ParseCount(s.Type, text)
	if err != nil {
		lo, hi := s.Type.CountRange()
		return flow.To(s, flow.Say(fmt.Sprintf("Please enter a number from %d to %d.", lo, hi)))
	}
	if count == 0 {
		return m.advance(ctx, user, s.Draft.with(meter.Section{Type: s.Type}), s.Type)
	}
	return flow.To(AwaitSerials{Draft: s.Draft, Type: s.Type, Count: count}, flow.Say(fmt.Sprintf(
		"Enter %d serial number(s) of the %s meters separated by spaces:", count, typeName(s.Type))))
}

func (m *Machine) onSerials(s AwaitSerials, text string) flow.Result {
	serials, err := meter.ParseSerials(text, s.Count)
	if err != nil {
		var countErr *meter.SerialCountError
		switch {
		case errors.As(err, &countErr):
			return flow.To(s, flow.Say(fmt.Sprintf(
				"Please enter exactly %d serial number(s) separated by spaces.", s.Count)))
		case errors.Is(err, meter.ErrTooLong):
			return flow.To(s, flow.Say(fmt.Sprintf(
				"Each serial number must be at most %d characters.", meter.MaxSerialLen)))
		case errors.Is(err, meter.ErrDuplicateSerial):
			return flow.To(s, flow.Say("Serial numbers must not repeat."))
		}
		return flow.To(s, flow.Say("Please enter the serial numbers separated by spaces."))
	}
	next := AwaitDescriptions{Draft: s.Draft, Type: s.Type, Serials: serials}
	return flow.To(next, describePrompt(serials[0]))
}

func (m *Machine) onDescription(ctx context.Context, user flow.User, s AwaitDescriptions, text string) flow.Result {
	desc, err := meter.ParseDescription(text)
	switch {
	case errors.Is(err, meter.ErrTooLong):
		return flow.To(s, flow.Say(fmt.Sprintf(
			"The description must be at most %d characters.", meter.MaxDescriptionLen)))
	case err != nil:
		return flow.To(s, flow.Say("The description must not be empty."))
	}

	descs := make([]string, 0, len(s.Descriptions)+1)
	descs = append(descs, s.Descriptions...)
	descs = append(descs, desc)

	if len(descs) < len(s.Serials) {
		next := AwaitDescriptions{
			Draft:        s.Draft,
			Type:         s.Type,
			Serials:      s.Serials,
			Descriptions: descs,
			Index:        len(descs),
		}
		return flow.To(next, describePrompt(s.Serials[len(descs)]))
	}
	sec := meter.Section{Type: s.Type, Serials: s.Serials, Descriptions: descs}
	return m.advance(ctx, user, s.Draft.with(sec), s.Type)
}

// advance moves to the count prompt of the type after done, or commits after the last type.
func (m *Machine) advance(ctx context.Context, user flow.User, d Draft, done meter.Type) flow.Result {
	if next, ok := done.Next(); ok {
		return askCount(d, next)
	}
	return m.commit(ctx, user, d, false)
}

func (m *Machine) commit(ctx context.Context, user flow.User, d Draft, joined bool) flow.Result {
	reg := meter.Registration{
		UserID:    user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Apartment: d.Apartment,
		Sections:  d.Sections,
	}
	err := m.store.RegisterApartment(ctx, reg)
	switch {
	case errors.Is(err, repository.ErrAlreadyRegistered):
		return flow.End(flow.Say(msgRegistered))
	case err != nil:
		logger.Error(ctx, component, "registration.commit",
			slog.String("status", "fail"),
			slog.Int("apartment", d.Apartment),
			slog.String("err", err.Error()),
		)
		return flow.End(flow.Say(msgSaveFailed))
	}

	logger.Info(ctx, component, "registration.commit",
		slog.String("status", "ok"),
		slog.Int("apartment", d.Apartment),
		slog.Bool("joined", joined),
		slog.Int("count", len(d.Sections)),
	)
	header := "Registration complete!"
	if joined {
		header = fmt.Sprintf("Meters of apartment %d are already registered; you were added as a resident.", d.Apartment)
	}
	profile := meter.Profile{UserID: user.ID, Apartment: d.Apartment, FirstName: user.FirstName, LastName: user.LastName}
	return flow.End(flow.Say(header + "\n\n" + ProfileText(profile)))
}

func askCount(d Draft, t meter.Type) flow.Result {
	lo, hi := t.CountRange()
	return flow.To(AwaitCount{Draft: d, Type: t}, flow.Say(fmt.Sprintf(
		"How many %s meters are installed? (%d-%d)", typeName(t), lo, hi)))
}

func describePrompt(serial string) flow.Reply {
	return flow.Say(fmt.Sprintf("Enter a description for meter %s (e.g. kitchen):", serial))
}

func typeName(t meter.Type) string {
	return strings.ToLower(t.Title())
}

// ProfileText renders the stored profile shown by /start.
func ProfileText(p meter.Profile) string {
	name := format.FullName(p.FirstName, p.LastName, "-")
	return fmt.Sprintf("Your profile:\nName: %s\nApartment: %d\nUse /submit to send meter readings.", name, p.Apartment)
}
