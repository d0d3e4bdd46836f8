package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"telegram-diet-diary/internal/models"
)

//go:embed schema.sql
var ddl embed.FS

// DB is the local sqlite store.
type DB struct{ *sql.DB }

var _ Store = (*DB)(nil)

func New(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}
	if err = migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{db}, nil
}

func migrate(db *sql.DB) error {
	b, err := ddl.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	if _, err = db.Exec(string(b)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// ---------- meals -----------------------------------------------------------

const mealColumns = `id, user_id, meal_text, calories, protein, fat, carbs, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanMeal(row scanner) (models.Meal, error) {
	var (
		m                     models.Meal
		cal, prot, fat, carbs sql.NullFloat64
		createdMs             int64
	)
	if err := row.Scan(&m.ID, &m.UserID, &m.MealText, &cal, &prot, &fat, &carbs, &createdMs); err != nil {
		return m, err
	}
	m.Calories = nullable(cal)
	m.Protein = nullable(prot)
	m.Fat = nullable(fat)
	m.Carbs = nullable(carbs)
	m.CreatedAt = time.UnixMilli(createdMs).UTC()
	return m, nil
}

func nullable(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

func (d *DB) queryMeals(ctx context.Context, query string, args ...any) ([]models.Meal, error) {
	rows, err := d.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query meals: %w", err)
	}
	defer rows.Close()

	res := make([]models.Meal, 0)
	for rows.Next() {
		m, err := scanMeal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan meal: %w", err)
		}
		res = append(res, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate meals: %w", err)
	}
	return res, nil
}

// FindMeals returns the meals of telegramID with created_at in [from, to].
func (d *DB) FindMeals(ctx context.Context, telegramID int64, from, to time.Time) ([]models.Meal, error) {
	return d.queryMeals(ctx, `
        SELECT `+mealColumns+`
        FROM diary
        WHERE user_id = ? AND created_at >= ? AND created_at <= ?`,
		telegramID, from.UnixMilli(), to.UnixMilli())
}

// ListMeals returns every meal of telegramID, newest first.
func (d *DB) ListMeals(ctx context.Context, telegramID int64) ([]models.Meal, error) {
	return d.queryMeals(ctx, `
        SELECT `+mealColumns+`
        FROM diary
        WHERE user_id = ?
        ORDER BY created_at DESC, id DESC`, telegramID)
}

func (d *DB) CreateMeal(ctx context.Context, m *models.Meal) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	m.CreatedAt = m.CreatedAt.UTC().Truncate(time.Millisecond)
	res, err := d.ExecContext(ctx, `
        INSERT INTO diary (user_id, meal_text, calories, protein, fat, carbs, created_at)
        VALUES (?,?,?,?,?,?,?)`,
		m.UserID, m.MealText, m.Calories, m.Protein, m.Fat, m.Carbs, m.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert meal: %w", err)
	}
	m.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert meal id: %w", err)
	}
	return nil
}

// UpdateMeal overwrites the editable fields and returns the row, or nil when
// no meal has that id.
func (d *DB) UpdateMeal(ctx context.Context, id int64, upd models.MealUpdate) (*models.Meal, error) {
	m, err := scanMeal(d.QueryRowContext(ctx, `
        UPDATE diary
        SET meal_text = COALESCE(?, meal_text), calories = ?, protein = ?, fat = ?, carbs = ?
        WHERE id = ?
        RETURNING `+mealColumns,
		upd.MealText, upd.Calories, upd.Protein, upd.Fat, upd.Carbs, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update meal %d: %w", id, err)
	}
	return &m, nil
}

// DeleteMeal removes the row and returns it, or nil when it did not exist.
func (d *DB) DeleteMeal(ctx context.Context, id int64) (*models.Meal, error) {
	m, err := scanMeal(d.QueryRowContext(ctx, `
        DELETE FROM diary WHERE id = ?
        RETURNING `+mealColumns, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("delete meal %d: %w", id, err)
	}
	return &m, nil
}

// ClearMeals wipes the diary of a user.
func (d *DB) ClearMeals(ctx context.Context, telegramID int64) error {
	if _, err := d.ExecContext(ctx, `DELETE FROM diary WHERE user_id = ?`, telegramID); err != nil {
		return fmt.Errorf("clear meals: %w", err)
	}
	return nil
}

// ---------- users -----------------------------------------------------------

const userColumns = `id, telegram_id, tz, summary_at, gender, age, height, weight,
        activity, goal, calories, protein, fat, carbs, created_at`

func scanUser(row scanner) (*models.User, error) {
	var (
		u         models.User
		createdMs int64
	)
	err := row.Scan(&u.ID, &u.TelegramID, &u.TZ, &u.SummaryAt, &u.Gender, &u.Age, &u.Height, &u.Weight,
		&u.Activity, &u.Goal, &u.Calories, &u.Protein, &u.Fat, &u.Carbs, &createdMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.CreatedAt = time.UnixMilli(createdMs).UTC()
	return &u, nil
}

func (d *DB) GetUser(ctx context.Context, id int64) (*models.User, error) {
	u, err := scanUser(d.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return u, nil
}

func (d *DB) GetUserByTelegram(ctx context.Context, telegramID int64) (*models.User, error) {
	u, err := scanUser(d.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE telegram_id = ?`, telegramID))
	if err != nil {
		return nil, fmt.Errorf("get user by telegram id %d: %w", telegramID, err)
	}
	return u, nil
}

// FindUserNorm returns the daily norm of the user row id.
func (d *DB) FindUserNorm(ctx context.Context, userID int64) (*models.UserNorm, error) {
	u, err := d.GetUser(ctx, userID)
	if err != nil || u == nil {
		return nil, err
	}
	return u.Norm(), nil
}

// EnsureUser creates the row for telegramID once; later calls return it as is.
func (d *DB) EnsureUser(ctx context.Context, telegramID int64, tz, summaryAt string) (*models.User, error) {
	_, err := d.ExecContext(ctx, `
        INSERT INTO users (telegram_id, tz, summary_at, created_at)
        VALUES (?,?,?,?)
        ON CONFLICT(telegram_id) DO NOTHING`,
		telegramID, tz, summaryAt, time.Now().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("ensure user %d: %w", telegramID, err)
	}
	return d.GetUserByTelegram(ctx, telegramID)
}

// UpdateProfile never inserts: it returns nil when the row does not exist.
func (d *DB) UpdateProfile(ctx context.Context, id int64, p models.Profile) (*models.User, error) {
	u, err := scanUser(d.QueryRowContext(ctx, `
        UPDATE users
        SET gender = ?, age = ?, height = ?, weight = ?, activity = ?, goal = ?,
            calories = ?, protein = ?, fat = ?, carbs = ?
        WHERE id = ?
        RETURNING `+userColumns,
		p.Gender, p.Age, p.Height, p.Weight, p.Activity, p.Goal,
		p.Calories, p.Protein, p.Fat, p.Carbs, id))
	if err != nil {
		return nil, fmt.Errorf("update profile %d: %w", id, err)
	}
	return u, nil
}

func (d *DB) SetTZ(ctx context.Context, telegramID int64, tz string) error {
	if _, err := d.ExecContext(ctx, `UPDATE users SET tz = ? WHERE telegram_id = ?`, tz, telegramID); err != nil {
		return fmt.Errorf("set tz: %w", err)
	}
	return nil
}

func (d *DB) SetSummaryAt(ctx context.Context, telegramID int64, hm string) error {
	if _, err := d.ExecContext(ctx, `UPDATE users SET summary_at = ? WHERE telegram_id = ?`, hm, telegramID); err != nil {
		return fmt.Errorf("set summary time: %w", err)
	}
	return nil
}

func (d *DB) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := d.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	var res []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		res = append(res, *u)
	}
	return res, rows.Err()
}

// ---------- user state (fsm) ------------------------------------------------

func (d *DB) SetUserState(ctx context.Context, chatID int64, st models.State) error {
	_, err := d.ExecContext(ctx, `
        INSERT INTO user_states(chat_id, state) VALUES (?,?)
        ON CONFLICT(chat_id) DO UPDATE SET state=excluded.state`, chatID, string(st))
	return err
}

func (d *DB) GetUserState(ctx context.Context, chatID int64) (models.State, error) {
	var st string
	err := d.QueryRowContext(ctx, `SELECT state FROM user_states WHERE chat_id=?`, chatID).Scan(&st)
	if errors.Is(err, sql.ErrNoRows) {
		return models.StateIdle, nil
	}
	return models.State(st), err
}

// ---------- summaries -------------------------------------------------------

// MarkSummarySent reports true only for the first call per chat and day.
func (d *DB) MarkSummarySent(ctx context.Context, chatID int64, day string) (bool, error) {
	res, err := d.ExecContext(ctx, `
        INSERT OR IGNORE INTO daily_summaries (chat_id, day) VALUES (?,?)`, chatID, day)
	if err != nil {
		return false, fmt.Errorf("mark summary: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// UnmarkSummarySent releases a mark whose send failed.
func (d *DB) UnmarkSummarySent(ctx context.Context, chatID int64, day string) error {
	if _, err := d.ExecContext(ctx, `DELETE FROM daily_summaries WHERE chat_id = ? AND day = ?`, chatID, day); err != nil {
		return fmt.Errorf("unmark summary: %w", err)
	}
	return nil
}
