package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"telegram-diet-diary/internal/models"
	"telegram-diet-diary/internal/report"
)

func (h *Handler) HandleText(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	state, err := h.DB.GetUserState(ctx, chatID)
	if err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("load state")
		h.send(chatID, txtFailed)
		return
	}

	switch state {
	case models.StateWaitingTZ:
		// a bad answer keeps the chat waiting
		if h.setTZ(ctx, chatID, text) {
			h.resetState(ctx, chatID)
		}
		return
	case models.StateWaitingSummary:
		if h.setSummaryAt(ctx, chatID, text) {
			h.resetState(ctx, chatID)
		}
		return
	}

	switch text {
	case kbToday:
		h.HandleToday(ctx, chatID)
	case kbWeek:
		h.HandleWeek(ctx, chatID)
	default:
		h.recordMeal(ctx, chatID, text)
	}
}

func (h *Handler) recordMeal(ctx context.Context, chatID int64, text string) {
	meal, ok := parseMeal(text)
	if !ok {
		h.send(chatID, txtMealHint)
		return
	}
	u, err := h.user(ctx, chatID)
	if err != nil || u == nil {
		return
	}

	meal.UserID = u.TelegramID
	meal.CreatedAt = h.now().UTC()
	if err := h.DB.CreateMeal(ctx, meal); err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("create meal")
		h.send(chatID, txtFailed)
		return
	}
	h.publish("created", meal, u.TelegramID)
	log.Debug().Int64("chat_id", chatID).Int64("meal_id", meal.ID).Msg("meal recorded")

	reply := fmt.Sprintf("Записал: %s, %s ккал", meal.MealText, num(*meal.Calories))
	loc := h.zone(u)
	if rep, err := h.Reports.Day(ctx, u.ID, report.DayKey(meal.CreatedAt, loc), loc); err == nil {
		reply += "\n" + consumedLine(rep.Totals.Calories, rep.DailyNorm, rep.Percentage)
	}
	h.send(chatID, reply)
}

// parseMeal reads "<description> <kcal> [<protein> <fat> <carbs>]". Macros
// are left nil when not given.
func parseMeal(text string) (*models.Meal, bool) {
	m := mealRx.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return nil, false
	}
	meal := &models.Meal{MealText: strings.TrimSpace(m[1])}
	kcal, ok := parseNum(m[2])
	if !ok {
		return nil, false
	}
	meal.Calories = models.Float(kcal)
	if m[3] != "" {
		p, ok1 := parseNum(m[3])
		f, ok2 := parseNum(m[4])
		c, ok3 := parseNum(m[5])
		if !ok1 || !ok2 || !ok3 {
			return nil, false
		}
		meal.Protein, meal.Fat, meal.Carbs = models.Float(p), models.Float(f), models.Float(c)
	}
	return meal, true
}

func parseNum(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}
