// Package serialedit lets a resident correct a serial number of their apartment.
package serialedit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/m3rciful/meterbot/core/logger"
	"github.com/m3rciful/meterbot/core/telegram/keyboard"
	"github.com/m3rciful/meterbot/core/telegram/state"
	"github.com/m3rciful/meterbot/internal/flow"
	"github.com/m3rciful/meterbot/internal/meter"
	"github.com/m3rciful/meterbot/internal/repository"
)

// Flow is the conversation name serial edit states report.
const Flow = "serialedit"

// CallbackPick is the key of the serial selection buttons.
const CallbackPick = "edit_serial"

const component = "service.serialedit"

// Choosing waits for a serial to be picked from the list. Serials maps the
// offered serial ids to their current numbers.
type Choosing struct {
	Serials map[int64]string
}

// AwaitNewSerial waits for the replacement of serial SerialID, currently Old.
type AwaitNewSerial struct {
	SerialID int64
	Old      string
}

func (Choosing) Flow() string       { return Flow }
func (AwaitNewSerial) Flow() string { return Flow }
func (Choosing) Step() string       { return "choose" }
func (AwaitNewSerial) Step() string { return "new_serial" }

// Store is the persistence serial editing needs.
type Store interface {
	UserInfo(ctx context.Context, userID int64) (meter.Profile, error)
	MetersForApartment(ctx context.Context, apartment int, t *meter.Type) ([]meter.Info, error)
	UpdateSerialNumber(ctx context.Context, serialID int64, newSerial string, ownerUserID int64) (int64, error)
}

// Machine drives the serial edit conversation.
type Machine struct {
	store Store
}

// New constructs a Machine.
func New(store Store) *Machine {
	return &Machine{store: store}
}

// Start lists the apartment's serials as buttons.
func (m *Machine) Start(ctx context.Context, user flow.User) flow.Result {
	p, err := m.store.UserInfo(ctx, user.ID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return flow.End(flow.Say("You are not registered yet. Please register with /start first."))
	case err != nil:
		logger.Error(ctx, component, "profile.lookup",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return flow.End(flow.Say("Could not load your meters. Please try again later."))
	}

	meters, err := m.store.MetersForApartment(ctx, p.Apartment, nil)
	if err != nil {
		logger.Error(ctx, component, "meters.lookup",
			slog.String("status", "fail"),
			slog.Int("apartment", p.Apartment),
			slog.String("err", err.Error()),
		)
		return flow.End(flow.Say("Could not load your meters. Please try again later."))
	}
	if len(meters) == 0 {
		return flow.End(flow.Say("No meters are registered for your apartment."))
	}

	rows := make([][]keyboard.InlineBtn, 0, len(meters))
	offered := make(map[int64]string, len(meters))
	for _, mi := range meters {
		offered[mi.SerialID] = mi.SerialNumber
		label := mi.SerialNumber
		if mi.Description != "" {
			label += " → " + mi.Description
		}
		rows = append(rows, []keyboard.InlineBtn{{Text: label, Unique: CallbackPick, Data: strconv.FormatInt(mi.SerialID, 10)}})
	}
	return flow.To(Choosing{Serials: offered}, flow.Reply{Text: "Choose the serial number to change:", Inline: rows})
}

// Pick selects the serial to rename. Only ids offered by the current list are accepted.
func (m *Machine) Pick(_ context.Context, _ flow.User, st state.State, serialID int64) flow.Result {
	c, ok := st.(Choosing)
	if !ok {
		return flow.End(flow.Say("This list has expired. Use /edit_serials again."))
	}
	old, ok := c.Serials[serialID]
	if !ok {
		return flow.To(c, flow.Say("Please choose a serial number from the list above."))
	}
	return flow.To(AwaitNewSerial{SerialID: serialID, Old: old}, flow.Say(fmt.Sprintf("Enter the new serial number for %s:", old)))
}

// Handle consumes the new serial. Invalid or already used numbers ask again;
// any other outcome ends the conversation.
func (m *Machine) Handle(ctx context.Context, user flow.User, st state.State, text string) flow.Result {
	s, ok := st.(AwaitNewSerial)
	if !ok {
		return flow.To(st, flow.Say("Please choose a serial number from the list above."))
	}
	newSerial := strings.TrimSpace(text)
	switch err := meter.ValidateSerial(newSerial); {
	case errors.Is(err, meter.ErrTooLong):
		return flow.To(s, flow.Say(fmt.Sprintf("The serial number must be at most %d characters.", meter.MaxSerialLen)))
	case err != nil:
		return flow.To(s, flow.Say("The serial number must not be empty."))
	}

	n, err := m.store.UpdateSerialNumber(ctx, s.SerialID, newSerial, user.ID)
	if errors.Is(err, meter.ErrDuplicateSerial) {
		return flow.To(s, flow.Say(fmt.Sprintf("Another meter of this type already has serial number %s. Enter a different one:", newSerial)))
	}
	if err != nil {
		logger.Error(ctx, component, "serial.update",
			slog.String("status", "fail"),
			slog.Int64("serial_id", s.SerialID),
			slog.String("err", err.Error()),
		)
		return flow.End(flow.Say("Failed to update the serial number. Please try again later."))
	}
	if n == 0 {
		return flow.End(flow.Say(fmt.Sprintf("Serial number %s was not found for your apartment.", s.Old)))
	}
	logger.Info(ctx, component, "serial.update",
		slog.String("status", "ok"),
		slog.String("serial", s.Old),
		slog.String("new_serial", newSerial),
	)
	return flow.End(flow.Say(fmt.Sprintf("Serial number %s was changed to %s.", s.Old, newSerial)))
}
