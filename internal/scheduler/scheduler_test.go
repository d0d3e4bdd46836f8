package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"telegram-diet-diary/internal/models"
	"telegram-diet-diary/internal/storage"
)

type fakeSummarizer struct {
	calls []string
	err   error
}

func (f *fakeSummarizer) SendDailySummary(_ context.Context, u *models.User, day string) error {
	f.calls = append(f.calls, day)
	return f.err
}

func newRunner(t *testing.T) (*Runner, *fakeSummarizer, *storage.DB) {
	t.Helper()
	db, err := storage.New(filepath.Join(t.TempDir(), "bot.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	fs := &fakeSummarizer{}
	return &Runner{DB: db, Sender: fs, DefaultTZ: "Europe/Moscow", SummaryAt: "21:00"}, fs, db
}

func TestTickSendsOncePerLocalDay(t *testing.T) {
	t.Parallel()
	r, fs, db := newRunner(t)
	ctx := context.Background()
	if _, err := db.EnsureUser(ctx, 42, "Europe/Moscow", "21:00"); err != nil {
		t.Fatalf("ensure user: %v", err)
	}

	// 17:59 UTC is 20:59 in Moscow.
	if n := r.Tick(ctx, time.Date(2024, 1, 5, 17, 59, 0, 0, time.UTC)); n != 0 {
		t.Fatalf("expected nothing before summary time, sent %d", n)
	}
	if n := r.Tick(ctx, time.Date(2024, 1, 5, 18, 0, 0, 0, time.UTC)); n != 1 {
		t.Fatalf("expected one summary at 21:00 local, sent %d", n)
	}
	if n := r.Tick(ctx, time.Date(2024, 1, 5, 18, 1, 0, 0, time.UTC)); n != 0 {
		t.Fatalf("expected no repeat on the same day, sent %d", n)
	}
	if n := r.Tick(ctx, time.Date(2024, 1, 6, 18, 5, 0, 0, time.UTC)); n != 1 {
		t.Fatalf("expected a late tick on the next day to send, sent %d", n)
	}
	if len(fs.calls) != 2 || fs.calls[0] != "2024-01-05" || fs.calls[1] != "2024-01-06" {
		t.Fatalf("unexpected summary days %v", fs.calls)
	}
}

func TestTickUsesUserZoneForDayKey(t *testing.T) {
	t.Parallel()
	r, fs, db := newRunner(t)
	ctx := context.Background()
	if _, err := db.EnsureUser(ctx, 7, "Asia/Tokyo", "00:30"); err != nil {
		t.Fatalf("ensure user: %v", err)
	}

	// 15:30 UTC on Jan 5 is 00:30 on Jan 6 in Tokyo.
	if n := r.Tick(ctx, time.Date(2024, 1, 5, 15, 30, 0, 0, time.UTC)); n != 1 {
		t.Fatalf("expected one summary, sent %d", n)
	}
	if fs.calls[0] != "2024-01-06" {
		t.Fatalf("expected local day 2024-01-06, got %s", fs.calls[0])
	}
}

func TestTickSkipsBadZoneAndCountsFailures(t *testing.T) {
	t.Parallel()
	r, fs, db := newRunner(t)
	ctx := context.Background()
	if _, err := db.EnsureUser(ctx, 1, "Mars/Olympus", "21:00"); err != nil {
		t.Fatalf("ensure user: %v", err)
	}
	if _, err := db.EnsureUser(ctx, 2, "UTC", "21:00"); err != nil {
		t.Fatalf("ensure user: %v", err)
	}
	fs.err = errors.New("bot blocked by user")

	if n := r.Tick(ctx, time.Date(2024, 1, 5, 21, 0, 0, 0, time.UTC)); n != 0 {
		t.Fatalf("failed sends must not count, got %d", n)
	}
	if len(fs.calls) != 1 {
		t.Fatalf("expected only the valid-zone user to be tried, got %v", fs.calls)
	}
}

func TestTickRetriesFailedSendInsideWindow(t *testing.T) {
	t.Parallel()
	r, fs, db := newRunner(t)
	ctx := context.Background()
	if _, err := db.EnsureUser(ctx, 3, "UTC", "21:00"); err != nil {
		t.Fatalf("ensure user: %v", err)
	}

	fs.err = errors.New("telegram: too many requests")
	if n := r.Tick(ctx, time.Date(2024, 1, 5, 21, 0, 0, 0, time.UTC)); n != 0 {
		t.Fatalf("failed send must not count, got %d", n)
	}

	fs.err = nil
	if n := r.Tick(ctx, time.Date(2024, 1, 5, 21, 1, 0, 0, time.UTC)); n != 1 {
		t.Fatalf("expected the next tick to retry, sent %d", n)
	}
	if n := r.Tick(ctx, time.Date(2024, 1, 5, 21, 2, 0, 0, time.UTC)); n != 0 {
		t.Fatalf("expected no repeat after a successful send, sent %d", n)
	}
	if len(fs.calls) != 2 {
		t.Fatalf("expected two attempts, got %v", fs.calls)
	}
}

func TestDue(t *testing.T) {
	t.Parallel()
	loc := time.UTC
	cases := []struct {
		at   time.Time
		hm   string
		want bool
	}{
		{time.Date(2024, 1, 5, 21, 0, 0, 0, loc), "21:00", true},
		{time.Date(2024, 1, 5, 21, 14, 59, 0, loc), "21:00", true},
		{time.Date(2024, 1, 5, 21, 15, 0, 0, loc), "21:00", false},
		{time.Date(2024, 1, 5, 20, 59, 59, 0, loc), "21:00", false},
		{time.Date(2024, 1, 5, 21, 0, 0, 0, loc), "bogus", false},
	}
	for _, tc := range cases {
		if got := due(tc.at, tc.hm); got != tc.want {
			t.Fatalf("due(%s, %q) = %v, want %v", tc.at.Format(time.RFC3339), tc.hm, got, tc.want)
		}
	}
}
