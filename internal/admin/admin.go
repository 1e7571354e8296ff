// Package admin implements the administrator menu: the list of apartments
// missing readings, the xlsx export, resident deletion and the reminder broadcast.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/meterbot/core/logger"
	"github.com/m3rciful/meterbot/core/telegram/format"
	"github.com/m3rciful/meterbot/core/telegram/keyboard"
	"github.com/m3rciful/meterbot/core/telegram/sender"
	"github.com/m3rciful/meterbot/core/telegram/state"
	"github.com/m3rciful/meterbot/internal/flow"
	"github.com/m3rciful/meterbot/internal/meter"
	"github.com/m3rciful/meterbot/internal/repository"
)

const component = "service.admin"

// Reply keyboard labels of the admin menu.
const (
	ButtonMissing = "Missing readings"
	ButtonExport  = "Export readings"
	ButtonDelete  = "Delete resident"
	ButtonRemind  = "Send reminder"
)

const msgFailed = "The operation failed. See the logs for details."

// Store is the persistence the admin menu needs.
type Store interface {
	ApartmentsMissingReadings(ctx context.Context, period meter.Period) ([]int, error)
	ReadingsForPeriod(ctx context.Context, period meter.Period) ([]meter.ReadingRow, error)
	UsersByApartment(ctx context.Context, apartment int) ([]meter.Resident, error)
	AllUserIDs(ctx context.Context) ([]int64, error)
	DeleteUser(ctx context.Context, apartment int, userID int64, policy repository.DeletionPolicy) error
}

// Notifier delivers a text message to one user.
type Notifier func(ctx context.Context, userID int64, text string) error

// Settings configures the admin menu. Now defaults to time.Now.
type Settings struct {
	OffsetMonths int
	ApartmentMin int
	ApartmentMax int
	Policy       repository.DeletionPolicy
	ReminderText string
	Now          func() time.Time
}

// Service serves the admin menu.
type Service struct {
	store      Store
	settings   Settings
	dispatcher *sender.Dispatcher
	notify     Notifier
}

// New constructs a Service. A nil dispatcher gets the sender defaults.
func New(store Store, settings Settings, dispatcher *sender.Dispatcher, notify Notifier) *Service {
	if settings.Now == nil {
		settings.Now = time.Now
	}
	if settings.Policy == "" {
		settings.Policy = repository.DeleteKeep
	}
	if dispatcher == nil {
		dispatcher = sender.NewDispatcher(sender.Options{})
	}
	return &Service{store: store, settings: settings, dispatcher: dispatcher, notify: notify}
}

func (s *Service) period() meter.Period {
	return meter.CurrentPeriod(s.settings.Now(), s.settings.OffsetMonths)
}

// Menu shows the admin reply keyboard.
func (s *Service) Menu() flow.Result {
	return flow.End(flow.Reply{
		Text: "Admin menu:",
		Keyboard: [][]string{
			{ButtonMissing, ButtonExport},
			{ButtonDelete, ButtonRemind},
		},
	})
}

// IsButton reports whether text is one of the menu labels.
func IsButton(text string) bool {
	switch text {
	case ButtonMissing, ButtonExport, ButtonDelete, ButtonRemind:
		return true
	}
	return false
}

// Button runs the menu action labelled text.
func (s *Service) Button(ctx context.Context, text string) flow.Result {
	switch text {
	case ButtonMissing:
		return s.Missing(ctx)
	case ButtonExport:
		return s.Export(ctx)
	case ButtonDelete:
		return s.StartDelete(ctx)
	case ButtonRemind:
		return s.Remind(ctx)
	}
	return flow.End()
}

// Missing lists the apartments without any reading for the current period.
func (s *Service) Missing(ctx context.Context) flow.Result {
	period := s.period()
	apartments, err := s.store.ApartmentsMissingReadings(ctx, period)
	if err != nil {
		logger.Error(ctx, component, "missing.list",
			slog.String("status", "fail"),
			slog.String("period", period.String()),
			slog.String("err", err.Error()),
		)
		return flow.End(flow.Say(msgFailed))
	}
	if len(apartments) == 0 {
		return flow.End(flow.Say(fmt.Sprintf("All apartments submitted readings for %s.", period.Label())))
	}
	nums := make([]string, len(apartments))
	for i, a := range apartments {
		nums[i] = strconv.Itoa(a)
	}
	return flow.End(flow.Say(fmt.Sprintf("Apartments without readings for %s:\n%s",
		period.Label(), strings.Join(nums, ", "))))
}

// StartDelete asks for the apartment of the resident to remove.
func (s *Service) StartDelete(_ context.Context) flow.Result {
	return flow.To(AwaitDeleteApartment{}, flow.Say("Enter the apartment number:"))
}

// Handle consumes text typed during the deletion conversation.
func (s *Service) Handle(ctx context.Context, _ flow.User, st state.State, text string) flow.Result {
	switch cur := st.(type) {
	case AwaitDeleteApartment:
		return s.onDeleteApartment(ctx, cur, text)
	case AwaitDeleteChoice, AwaitDeleteConfirm:
		return flow.To(st, flow.Say("Please use the buttons above."))
	}
	return flow.End()
}

func (s *Service) onDeleteApartment(ctx context.Context, st AwaitDeleteApartment, text string) flow.Result {
	apartment, err := meter.ParseApartment(text, s.settings.ApartmentMin, s.settings.ApartmentMax)
	if err != nil {
		return flow.To(st, flow.Say(fmt.Sprintf("Please enter a number between %d and %d.",
			s.settings.ApartmentMin, s.settings.ApartmentMax)))
	}
	residents, err := s.store.UsersByApartment(ctx, apartment)
	if err != nil {
		logger.Error(ctx, component, "residents.list",
			slog.String("status", "fail"),
			slog.Int("apartment", apartment),
			slog.String("err", err.Error()),
		)
		return flow.End(flow.Say(msgFailed))
	}
	if len(residents) == 0 {
		return flow.End(flow.Say(fmt.Sprintf("No residents found in apartment %d.", apartment)))
	}

	rows := make([][]keyboard.InlineBtn, 0, len(residents)+1)
	for _, r := range residents {
		rows = append(rows, []keyboard.InlineBtn{{
			Text:   fmt.Sprintf("%s (%d)", residentName(r.FirstName), r.UserID),
			Unique: CallbackDeleteUser,
			Data:   strconv.FormatInt(r.UserID, 10),
		}})
	}
	rows = append(rows, []keyboard.InlineBtn{{Text: "Cancel", Unique: CallbackDeleteCancel}})
	return flow.To(AwaitDeleteChoice{Apartment: apartment, Residents: residents}, flow.Reply{
		Text:   fmt.Sprintf("Residents of apartment %d. Choose who to delete:", apartment),
		Inline: rows,
	})
}

// PickResident asks to confirm the deletion of userID.
func (s *Service) PickResident(_ context.Context, st state.State, userID int64) flow.Result {
	choice, ok := st.(AwaitDeleteChoice)
	if !ok {
		return flow.End(flow.Say("This list is outdated. Start the deletion again."))
	}
	for _, r := range choice.Residents {
		if r.UserID != userID {
			continue
		}
		pending := AwaitDeleteConfirm{Apartment: choice.Apartment, UserID: r.UserID, Name: residentName(r.FirstName)}
		return flow.To(pending, flow.Reply{
			Text: fmt.Sprintf("Delete %s (%d) from apartment %d?", pending.Name, pending.UserID, pending.Apartment),
			Inline: [][]keyboard.InlineBtn{{
				{Text: "Confirm", Unique: CallbackDeleteConfirm},
				{Text: "Cancel", Unique: CallbackDeleteCancel},
			}},
		})
	}
	return flow.To(choice, flow.Say("This resident is not in the list."))
}

// ConfirmDelete removes the pending resident with the configured policy.
func (s *Service) ConfirmDelete(ctx context.Context, st state.State) flow.Result {
	pending, ok := st.(AwaitDeleteConfirm)
	if !ok {
		return flow.End(flow.Say("Nothing to confirm."))
	}
	err := s.store.DeleteUser(ctx, pending.Apartment, pending.UserID, s.settings.Policy)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return flow.End(flow.Say("The resident was not found. Nothing was deleted."))
	case err != nil:
		logger.Error(ctx, component, "resident.delete",
			slog.String("status", "fail"),
			slog.Int("apartment", pending.Apartment),
			slog.Int64("user_id", pending.UserID),
			slog.String("err", err.Error()),
		)
		return flow.End(flow.Say(msgFailed))
	}
	logger.Info(ctx, component, "resident.delete",
		slog.String("status", "ok"),
		slog.Int("apartment", pending.Apartment),
		slog.Int64("user_id", pending.UserID),
		slog.String("policy", string(s.settings.Policy)),
	)
	return flow.End(flow.Say(fmt.Sprintf("%s was removed from apartment %d.", pending.Name, pending.Apartment)))
}

// CancelDelete drops the pending deletion.
func (s *Service) CancelDelete(_ context.Context) flow.Result {
	return flow.End(flow.Say("Deletion cancelled."))
}

func residentName(first string) string {
	return format.FullName(first, nil, "Unnamed")
}
