package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"telegram-diet-diary/internal/models"
)

// PG is the hosted postgres store.
type PG struct {
	db *gorm.DB
}

var _ Store = (*PG)(nil)

func NewPG(dsn string) (*PG, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Meal{},
		&models.UserState{},
		&models.DailySummary{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &PG{db: db}, nil
}

func (p *PG) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ---------- meals -----------------------------------------------------------

func (p *PG) FindMeals(ctx context.Context, telegramID int64, from, to time.Time) ([]models.Meal, error) {
	meals := make([]models.Meal, 0)
	err := p.db.WithContext(ctx).
		Where("user_id = ? AND created_at >= ? AND created_at <= ?", telegramID, from.UTC(), to.UTC()).
		Find(&meals).Error
	if err != nil {
		return nil, fmt.Errorf("query meals: %w", err)
	}
	utc(meals)
	return meals, nil
}

func (p *PG) ListMeals(ctx context.Context, telegramID int64) ([]models.Meal, error) {
	meals := make([]models.Meal, 0)
	err := p.db.WithContext(ctx).
		Where("user_id = ?", telegramID).
		Order("created_at DESC, id DESC").
		Find(&meals).Error
	if err != nil {
		return nil, fmt.Errorf("list meals: %w", err)
	}
	utc(meals)
	return meals, nil
}

func utc(meals []models.Meal) {
	for i := range meals {
		meals[i].CreatedAt = meals[i].CreatedAt.UTC()
	}
}

func (p *PG) CreateMeal(ctx context.Context, m *models.Meal) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	m.CreatedAt = m.CreatedAt.UTC().Truncate(time.Microsecond)
	if err := p.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("insert meal: %w", err)
	}
	return nil
}

func (p *PG) UpdateMeal(ctx context.Context, id int64, upd models.MealUpdate) (*models.Meal, error) {
	fields := map[string]any{
		"calories": upd.Calories,
		"protein":  upd.Protein,
		"fat":      upd.Fat,
		"carbs":    upd.Carbs,
	}
	if upd.MealText != nil {
		fields["meal_text"] = *upd.MealText
	}
	var m models.Meal
	res := p.db.WithContext(ctx).Model(&m).
		Clauses(clause.Returning{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return nil, fmt.Errorf("update meal %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	m.CreatedAt = m.CreatedAt.UTC()
	return &m, nil
}

func (p *PG) DeleteMeal(ctx context.Context, id int64) (*models.Meal, error) {
	var m models.Meal
	res := p.db.WithContext(ctx).Clauses(clause.Returning{}).Where("id = ?", id).Delete(&m)
	if res.Error != nil {
		return nil, fmt.Errorf("delete meal %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	m.CreatedAt = m.CreatedAt.UTC()
	return &m, nil
}

func (p *PG) ClearMeals(ctx context.Context, telegramID int64) error {
	if err := p.db.WithContext(ctx).Where("user_id = ?", telegramID).Delete(&models.Meal{}).Error; err != nil {
		return fmt.Errorf("clear meals: %w", err)
	}
	return nil
}

// ---------- users -----------------------------------------------------------

func (p *PG) first(ctx context.Context, query string, arg any) (*models.User, error) {
	var u models.User
	err := p.db.WithContext(ctx).Where(query, arg).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (p *PG) GetUser(ctx context.Context, id int64) (*models.User, error) {
	u, err := p.first(ctx, "id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return u, nil
}

func (p *PG) GetUserByTelegram(ctx context.Context, telegramID int64) (*models.User, error) {
	u, err := p.first(ctx, "telegram_id = ?", telegramID)
	if err != nil {
		return nil, fmt.Errorf("get user by telegram id %d: %w", telegramID, err)
	}
	return u, nil
}

func (p *PG) FindUserNorm(ctx context.Context, userID int64) (*models.UserNorm, error) {
	u, err := p.GetUser(ctx, userID)
	if err != nil || u == nil {
		return nil, err
	}
	return u.Norm(), nil
}

func (p *PG) EnsureUser(ctx context.Context, telegramID int64, tz, summaryAt string) (*models.User, error) {
	u := models.User{TelegramID: telegramID, TZ: tz, SummaryAt: summaryAt, CreatedAt: time.Now().UTC()}
	err := p.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "telegram_id"}}, DoNothing: true}).
		Create(&u).Error
	if err != nil {
		return nil, fmt.Errorf("ensure user %d: %w", telegramID, err)
	}
	return p.GetUserByTelegram(ctx, telegramID)
}

func (p *PG) UpdateProfile(ctx context.Context, id int64, pr models.Profile) (*models.User, error) {
	var u models.User
	res := p.db.WithContext(ctx).Model(&u).
		Clauses(clause.Returning{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"gender":   pr.Gender,
			"age":      pr.Age,
			"height":   pr.Height,
			"weight":   pr.Weight,
			"activity": pr.Activity,
			"goal":     pr.Goal,
			"calories": pr.Calories,
			"protein":  pr.Protein,
			"fat":      pr.Fat,
			"carbs":    pr.Carbs,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("update profile %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &u, nil
}

func (p *PG) SetTZ(ctx context.Context, telegramID int64, tz string) error {
	err := p.db.WithContext(ctx).Model(&models.User{}).
		Where("telegram_id = ?", telegramID).Update("tz", tz).Error
	if err != nil {
		return fmt.Errorf("set tz: %w", err)
	}
	return nil
}

func (p *PG) SetSummaryAt(ctx context.Context, telegramID int64, hm string) error {
	err := p.db.WithContext(ctx).Model(&models.User{}).
		Where("telegram_id = ?", telegramID).Update("summary_at", hm).Error
	if err != nil {
		return fmt.Errorf("set summary time: %w", err)
	}
	return nil
}

func (p *PG) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := p.db.WithContext(ctx).Order("id").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// ---------- user state (fsm) ------------------------------------------------

func (p *PG) SetUserState(ctx context.Context, chatID int64, st models.State) error {
	return p.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "chat_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"state"}),
		}).
		Create(&models.UserState{ChatID: chatID, State: st}).Error
}

func (p *PG) GetUserState(ctx context.Context, chatID int64) (models.State, error) {
	var s models.UserState
	err := p.db.WithContext(ctx).Where("chat_id = ?", chatID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.StateIdle, nil
	}
	return s.State, err
}

// ---------- summaries -------------------------------------------------------

func (p *PG) MarkSummarySent(ctx context.Context, chatID int64, day string) (bool, error) {
	res := p.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.DailySummary{ChatID: chatID, Day: day})
	if res.Error != nil {
		return false, fmt.Errorf("mark summary: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (p *PG) UnmarkSummarySent(ctx context.Context, chatID int64, day string) error {
	err := p.db.WithContext(ctx).
		Where("chat_id = ? AND day = ?", chatID, day).
		Delete(&models.DailySummary{}).Error
	if err != nil {
		return fmt.Errorf("unmark summary: %w", err)
	}
	return nil
}
