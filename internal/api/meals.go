package api

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"telegram-diet-diary/internal/models"
	"telegram-diet-diary/internal/report"
)

// number accepts a JSON number, a numeric string or null. Anything that is
// not a finite number decodes as 0.
type number struct {
	set bool
	v   float64
}

func (n *number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	n.set = true
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		b = []byte(strings.ReplaceAll(strings.TrimSpace(s), ",", "."))
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	n.v = v
	return nil
}

func (n number) value() float64 { return n.v }

func (n number) ptr() *float64 {
	if !n.set {
		return nil
	}
	return models.Float(n.v)
}

// mealBody is a partial meal: a nil MealText means "not sent".
type mealBody struct {
	MealText *string `json:"meal_text"`
	Calories number  `json:"calories"`
	Protein  number  `json:"protein"`
	Fat      number  `json:"fat"`
	Carbs    number  `json:"carbs"`
}

// check rejects negative amounts and a blank description.
func (b mealBody) check() error {
	fields := []struct {
		name string
		n    number
	}{{"calories", b.Calories}, {"protein", b.Protein}, {"fat", b.Fat}, {"carbs", b.Carbs}}
	for _, f := range fields {
		if f.n.v < 0 {
			return report.ErrInvalidInput.New("%s must not be negative", f.name)
		}
	}
	if b.MealText != nil && strings.TrimSpace(*b.MealText) == "" {
		return report.ErrInvalidInput.New("meal_text must not be empty")
	}
	return nil
}

func (b mealBody) text() *string {
	if b.MealText == nil {
		return nil
	}
	t := strings.TrimSpace(*b.MealText)
	return &t
}

type createMealBody struct {
	mealBody
	UserID    int64      `json:"userId"`
	CreatedAt *time.Time `json:"created_at"`
}

// MealEvent is pushed to websocket clients after a meal mutation; clients
// re-fetch their report instead of patching it.
type MealEvent struct {
	Kind      string    `json:"kind"`
	Action    string    `json:"action"`
	MealID    int64     `json:"mealId"`
	CreatedAt time.Time `json:"createdAt"`
}

func (s *Server) publish(action string, m *models.Meal) {
	s.hub.Publish(m.UserID, MealEvent{
		Kind:      "meal.changed",
		Action:    action,
		MealID:    m.ID,
		CreatedAt: m.CreatedAt,
	})
}

func mealID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, report.ErrInvalidInput.New("meal id must be a positive number")
	}
	return id, nil
}

// userByID resolves the row id of the mini-app to a user.
func (s *Server) userByID(c *gin.Context, id int64) (*models.User, error) {
	u, err := s.store.GetUser(c.Request.Context(), id)
	if err != nil {
		return nil, report.ErrStorageUnavailable.Wrap(err)
	}
	if u == nil {
		return nil, report.ErrNotFound.New("user %d not found", id)
	}
	return u, nil
}

// GET /api/meals?userId=
func (s *Server) listMeals(c *gin.Context) {
	id, err := report.ParseUserID(c.Query("userId"))
	if err != nil {
		fail(c, err)
		return
	}
	u, err := s.userByID(c, id)
	if err != nil {
		fail(c, err)
		return
	}
	meals, err := s.store.ListMeals(c.Request.Context(), u.TelegramID)
	if err != nil {
		fail(c, report.ErrStorageUnavailable.Wrap(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "meals": meals})
}

// POST /api/meals
func (s *Server) createMeal(c *gin.Context) {
	var body createMealBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, report.ErrInvalidInput.New("invalid body: %v", err))
		return
	}
	if body.UserID <= 0 {
		fail(c, report.ErrInvalidInput.New("userId must be a positive number"))
		return
	}
	if body.MealText == nil {
		fail(c, report.ErrInvalidInput.New("meal_text is required"))
		return
	}
	if err := body.check(); err != nil {
		fail(c, err)
		return
	}
	u, err := s.userByID(c, body.UserID)
	if err != nil {
		fail(c, err)
		return
	}

	m := models.Meal{
		UserID:   u.TelegramID,
		MealText: *body.text(),
		Calories: body.Calories.ptr(),
		Protein:  body.Protein.ptr(),
		Fat:      body.Fat.ptr(),
		Carbs:    body.Carbs.ptr(),
	}
	if body.CreatedAt != nil {
		m.CreatedAt = *body.CreatedAt
	}
	if err := s.store.CreateMeal(c.Request.Context(), &m); err != nil {
		fail(c, report.ErrStorageUnavailable.Wrap(err))
		return
	}
	s.publish("created", &m)
	c.JSON(http.StatusCreated, gin.H{"ok": true, "meal": m})
}

// PATCH /api/meals/:id
func (s *Server) updateMeal(c *gin.Context) {
	id, err := mealID(c)
	if err != nil {
		fail(c, err)
		return
	}
	var body mealBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, report.ErrInvalidInput.New("invalid body: %v", err))
		return
	}
	if err := body.check(); err != nil {
		fail(c, err)
		return
	}
	m, err := s.store.UpdateMeal(c.Request.Context(), id, models.MealUpdate{
		MealText: body.text(),
		Calories: body.Calories.value(),
		Protein:  body.Protein.value(),
		Fat:      body.Fat.value(),
		Carbs:    body.Carbs.value(),
	})
	if err != nil {
		fail(c, report.ErrStorageUnavailable.Wrap(err))
		return
	}
	if m == nil {
		fail(c, report.ErrNotFound.New("meal %d not found", id))
		return
	}
	s.publish("updated", m)
	c.JSON(http.StatusOK, gin.H{"ok": true, "id": m.ID})
}

// DELETE /api/meals/:id
func (s *Server) deleteMeal(c *gin.Context) {
	id, err := mealID(c)
	if err != nil {
		fail(c, err)
		return
	}
	m, err := s.store.DeleteMeal(c.Request.Context(), id)
	if err != nil {
		fail(c, report.ErrStorageUnavailable.Wrap(err))
		return
	}
	if m == nil {
		fail(c, report.ErrNotFound.New("meal %d not found", id))
		return
	}
	s.publish("deleted", m)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
