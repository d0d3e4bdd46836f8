package models

import "time"

// User is one row of the users table. It is created by the bot on /start and
// filled in by the questionnaire.
type User struct {
	ID         int64     `db:"id"          gorm:"primaryKey"                json:"id"`
	TelegramID int64     `db:"telegram_id" gorm:"uniqueIndex;not null"      json:"telegram_id"`
	TZ         string    `db:"tz"          gorm:"not null;default:''"       json:"tz"`
	SummaryAt  string    `db:"summary_at"  gorm:"not null;default:''"       json:"summary_at"` // "HH:MM"
	Gender     string    `db:"gender"      gorm:"not null;default:''"       json:"gender"`
	Age        int       `db:"age"         gorm:"not null;default:0"        json:"age"`
	Height     float64   `db:"height"      gorm:"not null;default:0"        json:"height"`
	Weight     float64   `db:"weight"      gorm:"not null;default:0"        json:"weight"`
	Activity   string    `db:"activity"    gorm:"not null;default:''"       json:"activity"`
	Goal       string    `db:"goal"        gorm:"not null;default:''"       json:"goal"`
	Calories   float64   `db:"calories"    gorm:"not null;default:0"        json:"calories"`
	Protein    float64   `db:"protein"     gorm:"not null;default:0"        json:"protein"`
	Fat        float64   `db:"fat"         gorm:"not null;default:0"        json:"fat"`
	Carbs      float64   `db:"carbs"       gorm:"not null;default:0"        json:"carbs"`
	CreatedAt  time.Time `db:"created_at"  gorm:"not null"                  json:"created_at"`
}

// Norm extracts the daily norm part of the user row.
func (u *User) Norm() *UserNorm {
	return &UserNorm{
		UserID:     u.ID,
		TelegramID: u.TelegramID,
		TZ:         u.TZ,
		Calories:   u.Calories,
		Protein:    u.Protein,
		Fat:        u.Fat,
		Carbs:      u.Carbs,
	}
}

// UserNorm is what the reports need from a user: the key joining it to the
// diary and the configured daily targets. Calories == 0 means no norm is set.
type UserNorm struct {
	UserID     int64
	TelegramID int64
	TZ         string
	Calories   float64
	Protein    float64
	Fat        float64
	Carbs      float64
}

// Profile is the questionnaire payload saved over an existing user row.
type Profile struct {
	Gender   string  `json:"gender"`
	Age      int     `json:"age"`
	Height   float64 `json:"height"`
	Weight   float64 `json:"weight"`
	Activity string  `json:"activity"`
	Goal     string  `json:"goal"`
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Fat      float64 `json:"fat"`
	Carbs    float64 `json:"carbs"`
}

// Meal is one diary row. Macro values are nullable in storage.
type Meal struct {
	ID        int64     `db:"id"         gorm:"primaryKey"              json:"id"`
	UserID    int64     `db:"user_id"    gorm:"index;not null"          json:"user_id"` // telegram id
	MealText  string    `db:"meal_text"  gorm:"not null;default:''"     json:"meal_text"`
	Calories  *float64  `db:"calories"                                  json:"calories"`
	Protein   *float64  `db:"protein"                                   json:"protein"`
	Fat       *float64  `db:"fat"                                       json:"fat"`
	Carbs     *float64  `db:"carbs"                                     json:"carbs"`
	CreatedAt time.Time `db:"created_at" gorm:"index;not null"          json:"created_at"`
}

// TableName keeps the legacy table name for gorm.
func (Meal) TableName() string { return "diary" }

// MealUpdate carries the editable fields of a meal. Missing numbers are
// stored as 0; a nil MealText keeps the stored text.
type MealUpdate struct {
	MealText *string
	Calories float64
	Protein  float64
	Fat      float64
	Carbs    float64
}

// UserState stores transient FSM states (waiting text input).
type UserState struct {
	ChatID int64 `db:"chat_id" gorm:"primaryKey;autoIncrement:false"`
	State  State `db:"state"   gorm:"not null;default:''"`
}

// DailySummary marks that the evening summary for a local day was sent.
type DailySummary struct {
	ChatID int64  `db:"chat_id" gorm:"primaryKey;autoIncrement:false"`
	Day    string `db:"day"     gorm:"primaryKey"` // YYYY-MM-DD
}

// Float returns a pointer to v, for building meals.
func Float(v float64) *float64 { return &v }
