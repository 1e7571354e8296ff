package admin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/meterbot/core/logger"
	"github.com/m3rciful/meterbot/core/telegram/sender"
	"github.com/m3rciful/meterbot/internal/flow"
)

// Remind sends the reminder text to every registered user. Failed recipients
// are counted and never stop the run.
func (s *Service) Remind(ctx context.Context) flow.Result {
	ids, err := s.store.AllUserIDs(ctx)
	if err != nil {
		logger.Error(ctx, component, "reminder.recipients",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return flow.End(flow.Say(msgFailed))
	}
	if len(ids) == 0 || s.notify == nil {
		return flow.End(flow.Say("There is nobody to remind."))
	}

	runID := uuid.NewString()
	runCtx := logger.WithRID(ctx, runID)
	text := s.settings.ReminderText
	jobs := make([]sender.Job, 0, len(ids))
	for _, id := range ids {
		jobs = append(jobs, sender.Job{
			Recipient: id,
			Run: func(ctx context.Context) error {
				return s.notify(ctx, id, text)
			},
		})
	}

	start := time.Now()
	sum := s.dispatcher.Deliver(runCtx, "reminder", jobs)
	logger.Info(runCtx, component, "reminder.sent",
		slog.String("status", "ok"),
		slog.String("run_id", runID),
		slog.Int("count", len(ids)),
		slog.Int("sent", sum.Sent),
		slog.Int("failed", sum.Failed),
		slog.Duration("duration", logger.Took(start)),
	)
	return flow.End(flow.Say(fmt.Sprintf("Reminder sent: %d delivered, %d failed.", sum.Sent, sum.Failed)))
}
