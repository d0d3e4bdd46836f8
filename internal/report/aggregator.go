// Package report turns raw diary rows of one user into calendar, day and
// period reports bucketed by the user's local calendar day.
package report

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"telegram-diet-diary/internal/models"
)

// Store is the read side the reports need.
type Store interface {
	// FindUserNorm returns nil, nil when the user does not exist.
	FindUserNorm(ctx context.Context, userID int64) (*models.UserNorm, error)
	// FindMeals returns the meals of telegramID created within [from, to],
	// in no particular order.
	FindMeals(ctx context.Context, telegramID int64, from, to time.Time) ([]models.Meal, error)
}

// Aggregator builds reports. It keeps no state between calls; every report
// is recomputed from storage.
type Aggregator struct {
	store    Store
	fallback *time.Location
}

// New creates an Aggregator. fallback is used when neither the caller nor the
// user row names a zone.
func New(store Store, fallback *time.Location) *Aggregator {
	if fallback == nil {
		fallback = time.UTC
	}
	return &Aggregator{store: store, fallback: fallback}
}

// DayPercentage is one calendar cell.
type DayPercentage struct {
	Date       string  `json:"date"`
	Calories   float64 `json:"calories"`
	Percentage float64 `json:"percentage"`
}

// Calendar lists the days of a month that have at least one meal.
type Calendar struct {
	Month               string          `json:"month"`
	Dates               []string        `json:"dates"`
	DatesWithPercentage []DayPercentage `json:"datesWithPercentage"`
	DailyNorm           float64         `json:"dailyNorm"`
}

// DayReport is the report of one local day.
type DayReport struct {
	Date       string        `json:"date"`
	Totals     Totals        `json:"totals"`
	DailyNorm  float64       `json:"dailyNorm"`
	Percentage float64       `json:"percentage"`
	Meals      []models.Meal `json:"meals"`
	MealsCount int           `json:"mealsCount"`
}

// DayBucket groups the meals of one local day.
type DayBucket struct {
	Date       string        `json:"date"`
	Meals      []models.Meal `json:"meals"`
	Totals     Totals        `json:"totals"`
	Percentage float64       `json:"percentage"`
}

// PeriodReport is the report of an inclusive range of local days.
type PeriodReport struct {
	PeriodStart string      `json:"periodStart"`
	PeriodEnd   string      `json:"periodEnd"`
	MealsByDay  []DayBucket `json:"mealsByDay"`
	Totals      Totals      `json:"totals"`
	DailyNorm   float64     `json:"dailyNorm"`
	PeriodNorm  float64     `json:"periodNorm"`
	PeriodDays  int         `json:"periodDays"`
	Percentage  float64     `json:"percentage"`
	MealsCount  int         `json:"mealsCount"`
}

// ParseUserID validates a user id coming from a query string.
func ParseUserID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidInput.New("userId is required")
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidInput.New("userId must be a positive number")
	}
	return id, nil
}

// Calendar returns the days of month (YYYY-MM) with logged meals, ascending.
// loc may be nil.
func (a *Aggregator) Calendar(ctx context.Context, userID int64, month string, loc *time.Location) (*Calendar, error) {
	if err := checkUserID(userID); err != nil {
		return nil, err
	}
	first, last, err := MonthBounds(month)
	if err != nil {
		return nil, err
	}
	norm, loc, err := a.user(ctx, userID, loc)
	if err != nil {
		return nil, err
	}

	from, to := RangeBounds(first, last, loc)
	meals, err := a.meals(ctx, norm, from, to)
	if err != nil {
		return nil, err
	}

	buckets := Bucket(meals, loc)
	cal := &Calendar{
		Month:               first.Format(monthLayout),
		Dates:               make([]string, 0, len(buckets)),
		DatesWithPercentage: make([]DayPercentage, 0, len(buckets)),
		DailyNorm:           norm.Calories,
	}
	for i := len(buckets) - 1; i >= 0; i-- {
		b := buckets[i]
		cal.Dates = append(cal.Dates, b.Date)
		cal.DatesWithPercentage = append(cal.DatesWithPercentage, DayPercentage{
			Date:       b.Date,
			Calories:   b.Totals.Calories,
			Percentage: Percentage(b.Totals.Calories, norm.Calories),
		})
	}

	log.Debug().Int64("user_id", userID).Str("month", cal.Month).
		Int("meals", len(meals)).Int("days", len(cal.Dates)).Msg("calendar built")
	return cal, nil
}

// Day returns the report of one local day (YYYY-MM-DD), meals newest first.
// loc may be nil.
func (a *Aggregator) Day(ctx context.Context, userID int64, date string, loc *time.Location) (*DayReport, error) {
	if err := checkUserID(userID); err != nil {
		return nil, err
	}
	day, err := ParseDate(date)
	if err != nil {
		return nil, err
	}
	norm, loc, err := a.user(ctx, userID, loc)
	if err != nil {
		return nil, err
	}

	from, to := DayBounds(day, loc)
	meals, err := a.meals(ctx, norm, from, to)
	if err != nil {
		return nil, err
	}

	totals := Sum(meals)
	return &DayReport{
		Date:       day.Format(DateLayout),
		Totals:     totals,
		DailyNorm:  norm.Calories,
		Percentage: Percentage(totals.Calories, norm.Calories),
		Meals:      meals,
		MealsCount: len(meals),
	}, nil
}

// Period returns the report of the inclusive range [start, end] of local days.
// Days are ordered newest first. loc may be nil.
func (a *Aggregator) Period(ctx context.Context, userID int64, start, end string, loc *time.Location) (*PeriodReport, error) {
	if err := checkUserID(userID); err != nil {
		return nil, err
	}
	first, err := ParseDate(start)
	if err != nil {
		return nil, err
	}
	last, err := ParseDate(end)
	if err != nil {
		return nil, err
	}
	if first.After(last) {
		return nil, ErrInvalidInput.New("periodStart %s is after periodEnd %s", start, end)
	}
	norm, loc, err := a.user(ctx, userID, loc)
	if err != nil {
		return nil, err
	}

	from, to := RangeBounds(first, last, loc)
	meals, err := a.meals(ctx, norm, from, to)
	if err != nil {
		return nil, err
	}

	days := PeriodDays(first, last)
	totals := Sum(meals)
	periodNorm := norm.Calories * float64(days)
	buckets := Bucket(meals, loc)
	for i := range buckets {
		buckets[i].Percentage = Percentage(buckets[i].Totals.Calories, norm.Calories)
	}

	return &PeriodReport{
		PeriodStart: first.Format(DateLayout),
		PeriodEnd:   last.Format(DateLayout),
		MealsByDay:  buckets,
		Totals:      totals,
		DailyNorm:   norm.Calories,
		PeriodNorm:  periodNorm,
		PeriodDays:  days,
		Percentage:  Percentage(totals.Calories, periodNorm),
		MealsCount:  len(meals),
	}, nil
}

// Bucket groups meals by local day. Days are ordered newest first and the
// meals inside a day keep their order in the input.
func Bucket(meals []models.Meal, loc *time.Location) []DayBucket {
	idx := make(map[string]int)
	var buckets []DayBucket
	for _, m := range meals {
		key := DayKey(m.CreatedAt, loc)
		i, ok := idx[key]
		if !ok {
			i = len(buckets)
			idx[key] = i
			buckets = append(buckets, DayBucket{Date: key})
		}
		buckets[i].Meals = append(buckets[i].Meals, m)
	}
	for i := range buckets {
		buckets[i].Totals = Sum(buckets[i].Meals)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Date > buckets[j].Date })
	if buckets == nil {
		buckets = []DayBucket{}
	}
	return buckets
}

func checkUserID(id int64) error {
	if id <= 0 {
		return ErrInvalidInput.New("userId must be a positive number")
	}
	return nil
}

// user loads the norm record and settles the zone: caller's, then the
// user's own, then the fallback.
func (a *Aggregator) user(ctx context.Context, userID int64, loc *time.Location) (*models.UserNorm, *time.Location, error) {
	norm, err := a.store.FindUserNorm(ctx, userID)
	if err != nil {
		return nil, nil, ErrStorageUnavailable.Wrap(err)
	}
	if norm == nil {
		return nil, nil, ErrNotFound.New("user %d not found", userID)
	}
	if loc != nil {
		return norm, loc, nil
	}
	if norm.TZ != "" {
		if l, err := LoadZone(norm.TZ); err == nil {
			return norm, l, nil
		}
		log.Warn().Int64("user_id", userID).Str("tz", norm.TZ).Msg("stored timezone is invalid, using fallback")
	}
	return norm, a.fallback, nil
}

// meals fetches the range and orders it newest first.
func (a *Aggregator) meals(ctx context.Context, norm *models.UserNorm, from, to time.Time) ([]models.Meal, error) {
	meals, err := a.store.FindMeals(ctx, norm.TelegramID, from, to)
	if err != nil {
		return nil, ErrStorageUnavailable.Wrap(err)
	}
	if meals == nil {
		meals = []models.Meal{}
	}
	sort.SliceStable(meals, func(i, j int) bool {
		if meals[i].CreatedAt.Equal(meals[j].CreatedAt) {
			return meals[i].ID > meals[j].ID
		}
		return meals[i].CreatedAt.After(meals[j].CreatedAt)
	})
	return meals, nil
}
