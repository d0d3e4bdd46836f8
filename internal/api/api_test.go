package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"telegram-diet-diary/internal/api"
	"telegram-diet-diary/internal/models"
	"telegram-diet-diary/internal/report"
	"telegram-diet-diary/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	db     *storage.DB
	srv    *api.Server
	router *gin.Engine
	user   *models.User
}

func newFixture(t *testing.T, dailyNorm float64) *fixture {
	t.Helper()
	db, err := storage.New(filepath.Join(t.TempDir(), "bot.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	u, err := db.EnsureUser(ctx, 100500, "UTC", "21:00")
	if err != nil {
		t.Fatalf("ensure user: %v", err)
	}
	if dailyNorm > 0 {
		u, err = db.UpdateProfile(ctx, u.ID, models.Profile{
			Gender: "male", Age: 35, Height: 180, Weight: 80,
			Activity: "light", Goal: "maintain",
			Calories: dailyNorm, Protein: 120, Fat: 70, Carbs: 250,
		})
		if err != nil {
			t.Fatalf("update profile: %v", err)
		}
	}

	srv := api.New(db, report.New(db, time.UTC), nil, "*")
	return &fixture{db: db, srv: srv, router: srv.Router(), user: u}
}

func (f *fixture) addMeal(t *testing.T, at time.Time, cal float64) *models.Meal {
	t.Helper()
	m := &models.Meal{UserID: f.user.TelegramID, MealText: "meal", Calories: models.Float(cal), CreatedAt: at}
	if err := f.db.CreateMeal(context.Background(), m); err != nil {
		t.Fatalf("create meal: %v", err)
	}
	return m
}

func (f *fixture) do(t *testing.T, method, target string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, rd)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode %s %s response %q: %v", method, target, w.Body.String(), err)
		}
	}
	return w, out
}

func TestDayReportEndpoint(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 2000)
	f.addMeal(t, time.Date(2024, 1, 5, 8, 0, 0, 0, time.UTC), 700)
	f.addMeal(t, time.Date(2024, 1, 5, 19, 0, 0, 0, time.UTC), 800)

	w, out := f.do(t, http.MethodGet, fmt.Sprintf("/api/report/day?userId=%d&date=2024-01-05", f.user.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	rep := out["report"].(map[string]any)
	if rep["percentage"].(float64) != 75 || rep["mealsCount"].(float64) != 2 || rep["dailyNorm"].(float64) != 2000 {
		t.Fatalf("unexpected report %v", rep)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" || w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("missing CORS or request id headers: %v", w.Header())
	}
}

func TestReportEndpointsStatusCodes(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 2000)
	uid := f.user.ID

	cases := []struct {
		target string
		status int
	}{
		{fmt.Sprintf("/api/report/day?userId=%d&date=2024-01-05", uid), http.StatusOK},
		{"/api/report/day?date=2024-01-05", http.StatusBadRequest},
		{"/api/report/day?userId=abc&date=2024-01-05", http.StatusBadRequest},
		{fmt.Sprintf("/api/report/day?userId=%d", uid), http.StatusBadRequest},
		{fmt.Sprintf("/api/report/day?userId=%d&date=2024-13-45", uid), http.StatusBadRequest},
		{fmt.Sprintf("/api/report/day?userId=%d&date=2024-01-05&tz=Nowhere/City", uid), http.StatusBadRequest},
		{"/api/report/day?userId=999&date=2024-01-05", http.StatusNotFound},
		{fmt.Sprintf("/api/report/calendar?userId=%d&month=2024-01", uid), http.StatusOK},
		{fmt.Sprintf("/api/report/calendar?userId=%d&month=январь", uid), http.StatusBadRequest},
		{"/api/report/calendar?userId=999&month=2024-01", http.StatusNotFound},
		{fmt.Sprintf("/api/report/period?userId=%d&periodStart=2024-01-01&periodEnd=2024-01-07", uid), http.StatusOK},
		{fmt.Sprintf("/api/report/period?userId=%d&periodStart=2024-01-07&periodEnd=2024-01-01", uid), http.StatusBadRequest},
		{fmt.Sprintf("/api/report/period?userId=%d&periodStart=2024-01-07", uid), http.StatusBadRequest},
	}
	for _, tc := range cases {
		if w, _ := f.do(t, http.MethodGet, tc.target, nil); w.Code != tc.status {
			t.Fatalf("%s: expected %d, got %d: %s", tc.target, tc.status, w.Code, w.Body.String())
		}
	}
}

type brokenStore struct{}

func (brokenStore) FindUserNorm(context.Context, int64) (*models.UserNorm, error) {
	return nil, errors.New("connection reset by peer")
}

func (brokenStore) FindMeals(context.Context, int64, time.Time, time.Time) ([]models.Meal, error) {
	return nil, errors.New("connection reset by peer")
}

func TestReportStorageFailureIs500(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 2000)
	srv := api.New(f.db, report.New(brokenStore{}, time.UTC), nil, "*")
	router := srv.Router()

	req := httptest.NewRequest(http.MethodGet, "/api/report/day?userId=1&date=2024-01-05", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "connection reset") {
		t.Fatalf("storage details must not leak: %s", w.Body.String())
	}
}

func TestCalendarAndPeriodEndpoints(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 2000)
	f.addMeal(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), 2000)
	f.addMeal(t, time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC), 1000)
	f.addMeal(t, time.Date(2024, 1, 2, 18, 0, 0, 0, time.UTC), 1500)

	w, out := f.do(t, http.MethodGet, fmt.Sprintf("/api/report/calendar?userId=%d&month=2024-01", f.user.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("calendar: expected 200, got %d", w.Code)
	}
	dates := out["dates"].([]any)
	if len(dates) != 2 || dates[0] != "2024-01-01" || dates[1] != "2024-01-02" {
		t.Fatalf("unexpected dates %v", dates)
	}

	w, out = f.do(t, http.MethodGet,
		fmt.Sprintf("/api/report/period?userId=%d&periodStart=2024-01-01&periodEnd=2024-01-03", f.user.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("period: expected 200, got %d", w.Code)
	}
	rep := out["report"].(map[string]any)
	if rep["periodNorm"].(float64) != 6000 || rep["percentage"].(float64) != 75 || rep["periodDays"].(float64) != 3 {
		t.Fatalf("unexpected period report %v", rep)
	}
	days := rep["mealsByDay"].([]any)
	if len(days) != 2 || days[0].(map[string]any)["date"] != "2024-01-02" {
		t.Fatalf("expected 2 days newest first, got %v", days)
	}
}

func TestExplicitTZOverridesStoredZone(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 2000)
	// 22:00 UTC on Jan 4 is Jan 5 in Moscow.
	f.addMeal(t, time.Date(2024, 1, 4, 22, 0, 0, 0, time.UTC), 500)

	_, out := f.do(t, http.MethodGet, fmt.Sprintf("/api/report/day?userId=%d&date=2024-01-05", f.user.ID), nil)
	if n := out["report"].(map[string]any)["mealsCount"].(float64); n != 0 {
		t.Fatalf("UTC user: expected no meals on Jan 5, got %v", n)
	}
	_, out = f.do(t, http.MethodGet, fmt.Sprintf("/api/report/day?userId=%d&date=2024-01-05&tz=%%2B03:00", f.user.ID), nil)
	if n := out["report"].(map[string]any)["mealsCount"].(float64); n != 1 {
		t.Fatalf("+03:00: expected 1 meal on Jan 5, got %v", n)
	}
}

func TestMealMutationsAreVisibleToNextReport(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 2000)
	m := f.addMeal(t, time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC), 1000)
	dayURL := fmt.Sprintf("/api/report/day?userId=%d&date=2024-01-05", f.user.ID)

	w, _ := f.do(t, http.MethodPatch, fmt.Sprintf("/api/meals/%d", m.ID), map[string]any{
		"meal_text": "борщ",
		"calories":  "1500",
		"protein":   nil,
		"fat":       "n/a",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("patch: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	_, out := f.do(t, http.MethodGet, dayURL, nil)
	rep := out["report"].(map[string]any)
	if rep["percentage"].(float64) != 75 {
		t.Fatalf("expected 75%% after patch, got %v", rep["percentage"])
	}
	meal := rep["meals"].([]any)[0].(map[string]any)
	if meal["meal_text"] != "борщ" || meal["fat"].(float64) != 0 || meal["protein"].(float64) != 0 {
		t.Fatalf("unexpected patched meal %v", meal)
	}

	// Fields left out of the body keep their stored text.
	if w, _ := f.do(t, http.MethodPatch, fmt.Sprintf("/api/meals/%d", m.ID), map[string]any{"calories": 500}); w.Code != http.StatusOK {
		t.Fatalf("partial patch: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	_, out = f.do(t, http.MethodGet, dayURL, nil)
	rep = out["report"].(map[string]any)
	meal = rep["meals"].([]any)[0].(map[string]any)
	if meal["meal_text"] != "борщ" || rep["percentage"].(float64) != 25 {
		t.Fatalf("partial patch must keep meal_text, got %v (%v%%)", meal["meal_text"], rep["percentage"])
	}

	if w, _ := f.do(t, http.MethodDelete, fmt.Sprintf("/api/meals/%d", m.ID), nil); w.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", w.Code)
	}
	_, out = f.do(t, http.MethodGet, dayURL, nil)
	if out["report"].(map[string]any)["mealsCount"].(float64) != 0 {
		t.Fatalf("expected no meals after delete")
	}

	if w, _ := f.do(t, http.MethodDelete, fmt.Sprintf("/api/meals/%d", m.ID), nil); w.Code != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %d", w.Code)
	}
	if w, _ := f.do(t, http.MethodPatch, "/api/meals/abc", map[string]any{}); w.Code != http.StatusBadRequest {
		t.Fatalf("bad id: expected 400, got %d", w.Code)
	}
}

func TestCreateAndListMeals(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 2000)

	w, _ := f.do(t, http.MethodPost, "/api/meals", map[string]any{
		"userId":     f.user.ID,
		"meal_text":  "омлет",
		"calories":   320,
		"protein":    22.5,
		"created_at": "2024-01-05T07:30:00Z",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if w, _ := f.do(t, http.MethodPost, "/api/meals", map[string]any{"userId": 999, "meal_text": "x"}); w.Code != http.StatusNotFound {
		t.Fatalf("unknown user: expected 404, got %d", w.Code)
	}
	if w, _ := f.do(t, http.MethodPost, "/api/meals", map[string]any{"userId": f.user.ID}); w.Code != http.StatusBadRequest {
		t.Fatalf("no text: expected 400, got %d", w.Code)
	}

	_, out := f.do(t, http.MethodGet, fmt.Sprintf("/api/meals?userId=%d", f.user.ID), nil)
	meals := out["meals"].([]any)
	if len(meals) != 1 {
		t.Fatalf("expected 1 meal, got %v", meals)
	}
	m := meals[0].(map[string]any)
	if m["fat"] != nil || m["protein"].(float64) != 22.5 {
		t.Fatalf("absent macros must stay null, got %v", m)
	}
}

func TestNegativeAmountsAreRejected(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 2000)
	m := f.addMeal(t, time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC), 1000)

	w, _ := f.do(t, http.MethodPost, "/api/meals", map[string]any{
		"userId":     f.user.ID,
		"meal_text":  "ошибка",
		"calories":   -1500,
		"created_at": "2024-01-05T09:00:00Z",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("negative create: expected 400, got %d", w.Code)
	}
	if w, _ := f.do(t, http.MethodPatch, fmt.Sprintf("/api/meals/%d", m.ID), map[string]any{"calories": 100, "fat": "-3"}); w.Code != http.StatusBadRequest {
		t.Fatalf("negative patch: expected 400, got %d", w.Code)
	}
	if w, _ := f.do(t, http.MethodPatch, fmt.Sprintf("/api/meals/%d", m.ID), map[string]any{"meal_text": "  "}); w.Code != http.StatusBadRequest {
		t.Fatalf("blank text: expected 400, got %d", w.Code)
	}

	_, out := f.do(t, http.MethodGet, fmt.Sprintf("/api/report/day?userId=%d&date=2024-01-05", f.user.ID), nil)
	rep := out["report"].(map[string]any)
	totals := rep["totals"].(map[string]any)
	if rep["mealsCount"].(float64) != 1 || totals["calories"].(float64) != 1000 || rep["percentage"].(float64) != 50 {
		t.Fatalf("rejected writes must not change the report, got %v", rep)
	}
}

func TestSaveProfile(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 0)
	good := map[string]any{
		"gender": "female", "age": 28, "height": 165, "weight": 58,
		"activity": "moderate", "goal": "lose",
		"calories": 1750, "protein": 100, "fat": 55, "carbs": 200,
	}

	if w, _ := f.do(t, http.MethodPost, "/api/save?id=999", good); w.Code != http.StatusNotFound {
		t.Fatalf("missing user: expected 404, got %d", w.Code)
	}
	bad := map[string]any{"gender": "female", "age": 0, "activity": "moderate", "goal": "lose"}
	if w, _ := f.do(t, http.MethodPost, fmt.Sprintf("/api/save?id=%d", f.user.ID), bad); w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad values: expected 422, got %d", w.Code)
	}

	rec := &recordingNotifier{}
	f.srv.SetNotifier(rec)
	w, _ := f.do(t, http.MethodPost, fmt.Sprintf("/api/save?id=%d", f.user.ID), good)
	if w.Code != http.StatusOK {
		t.Fatalf("save: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if rec.user == nil || rec.user.Calories != 1750 {
		t.Fatalf("notifier not called with saved user: %+v", rec.user)
	}

	_, out := f.do(t, http.MethodGet, fmt.Sprintf("/api/report/calendar?userId=%d&month=2024-01", f.user.ID), nil)
	if out["dailyNorm"].(float64) != 1750 {
		t.Fatalf("expected saved norm in reports, got %v", out["dailyNorm"])
	}
}

type recordingNotifier struct{ user *models.User }

func (r *recordingNotifier) ProfileSaved(_ context.Context, u *models.User) { r.user = u }

func TestPreflight(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 0)
	req := httptest.NewRequest(http.MethodOptions, "/api/report/day", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent || w.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Fatalf("unexpected preflight response %d %v", w.Code, w.Header())
	}
}

func TestWebsocketReceivesMealEvents(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 2000)
	m := f.addMeal(t, time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC), 1000)

	ts := httptest.NewServer(f.router)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + fmt.Sprintf("/api/ws?userId=%d", f.user.ID)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for f.srv.Hub().Subscribers(f.user.TelegramID) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	req, _ := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/api/meals/%d", ts.URL, m.ID), nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	resp.Body.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev api.MealEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Kind != "meal.changed" || ev.Action != "deleted" || ev.MealID != m.ID {
		t.Fatalf("unexpected event %+v", ev)
	}
}
