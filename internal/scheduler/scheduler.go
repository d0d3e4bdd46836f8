// Package scheduler sends each user the evening summary at their local
// summary time.
package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"

	"telegram-diet-diary/internal/models"
	"telegram-diet-diary/internal/report"
	"telegram-diet-diary/internal/storage"
)

// lateWindow is how long after summary_at a missed tick may still send.
const lateWindow = 15 * time.Minute

// Summarizer delivers one summary; *handlers.Handler implements it.
type Summarizer interface {
	SendDailySummary(ctx context.Context, u *models.User, day string) error
}

type Runner struct {
	DB        storage.Store
	Sender    Summarizer
	DefaultTZ string
	SummaryAt string
}

// Start registers the minute job and starts the scheduler. The caller
// shuts it down.
func Start(ctx context.Context, r *Runner) (gocron.Scheduler, error) {
	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, err
	}

	_, err = s.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			r.Tick(ctx, time.Now())
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, err
	}

	s.Start()
	return s, nil
}

// Tick sends every summary that is due at now and returns how many went out.
// MarkSummarySent guards each (chat, local day) pair; a failed send is
// retried by later ticks inside the late window.
func (r *Runner) Tick(ctx context.Context, now time.Time) int {
	users, err := r.DB.ListUsers(ctx)
	if err != nil {
		log.Error().Err(err).Msg("scheduler: list users")
		return 0
	}

	sent := 0
	for i := range users {
		u := &users[i]
		loc, err := report.LoadZone(or(u.TZ, r.DefaultTZ))
		if err != nil {
			log.Warn().Str("tz", u.TZ).Int64("chat_id", u.TelegramID).Msg("scheduler: invalid timezone")
			continue
		}
		local := now.In(loc)
		if !due(local, or(u.SummaryAt, r.SummaryAt)) {
			continue
		}

		day := local.Format(report.DateLayout)
		// The mark is taken before sending so that concurrent ticks and
		// replicas send at most once; a failed send releases it again.
		first, err := r.DB.MarkSummarySent(ctx, u.TelegramID, day)
		if err != nil {
			log.Error().Err(err).Int64("chat_id", u.TelegramID).Msg("scheduler: mark summary")
			continue
		}
		if !first {
			continue
		}
		if err := r.Sender.SendDailySummary(ctx, u, day); err != nil {
			log.Error().Err(err).Int64("chat_id", u.TelegramID).Msg("scheduler: send summary")
			if err := r.DB.UnmarkSummarySent(ctx, u.TelegramID, day); err != nil {
				log.Error().Err(err).Int64("chat_id", u.TelegramID).Msg("scheduler: release summary mark")
			}
			continue
		}
		sent++
	}
	if sent > 0 {
		log.Info().Int("sent", sent).Msg("daily summaries sent")
	}
	return sent
}

// due reports whether local falls in [hm, hm+lateWindow) of its own day.
func due(local time.Time, hm string) bool {
	t, err := time.Parse("15:04", hm)
	if err != nil {
		return false
	}
	at := time.Date(local.Year(), local.Month(), local.Day(), t.Hour(), t.Minute(), 0, 0, local.Location())
	return !local.Before(at) && local.Before(at.Add(lateWindow))
}

func or(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
