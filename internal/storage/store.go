package storage

import (
	"context"
	"time"

	"telegram-diet-diary/internal/models"
)

// Store is implemented by the sqlite DB and the hosted postgres PG.
// Lookups of a single row return nil, nil when it does not exist; errors are
// reserved for failures.
type Store interface {
	// reports
	FindUserNorm(ctx context.Context, userID int64) (*models.UserNorm, error)
	FindMeals(ctx context.Context, telegramID int64, from, to time.Time) ([]models.Meal, error)

	// meals
	ListMeals(ctx context.Context, telegramID int64) ([]models.Meal, error)
	CreateMeal(ctx context.Context, m *models.Meal) error
	UpdateMeal(ctx context.Context, id int64, upd models.MealUpdate) (*models.Meal, error)
	DeleteMeal(ctx context.Context, id int64) (*models.Meal, error)
	ClearMeals(ctx context.Context, telegramID int64) error

	// users
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByTelegram(ctx context.Context, telegramID int64) (*models.User, error)
	EnsureUser(ctx context.Context, telegramID int64, tz, summaryAt string) (*models.User, error)
	UpdateProfile(ctx context.Context, id int64, p models.Profile) (*models.User, error)
	SetTZ(ctx context.Context, telegramID int64, tz string) error
	SetSummaryAt(ctx context.Context, telegramID int64, hm string) error
	ListUsers(ctx context.Context) ([]models.User, error)

	// bot
	SetUserState(ctx context.Context, chatID int64, st models.State) error
	GetUserState(ctx context.Context, chatID int64) (models.State, error)
	MarkSummarySent(ctx context.Context, chatID int64, day string) (bool, error)
	UnmarkSummarySent(ctx context.Context, chatID int64, day string) error

	Close() error
}

// Open picks the hosted postgres store when dsn is set and the sqlite file
// at path otherwise.
func Open(path, dsn string) (Store, error) {
	if dsn != "" {
		return NewPG(dsn)
	}
	return New(path)
}
