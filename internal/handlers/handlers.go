package handlers

import (
	"context"
	"fmt"
	"math"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"telegram-diet-diary/internal/models"
	"telegram-diet-diary/internal/report"
)

// SendDailySummary sends the report of the local day to the user's chat.
func (h *Handler) SendDailySummary(ctx context.Context, u *models.User, day string) error {
	rep, err := h.Reports.Day(ctx, u.ID, day, h.zone(u))
	if err != nil {
		return fmt.Errorf("summary for user %d: %w", u.ID, err)
	}
	msg := tgbotapi.NewMessage(u.TelegramID, txtSummaryHeader+formatDay(rep))
	msg.ReplyMarkup = weekKeyboard()
	if _, err := h.Bot.Send(msg); err != nil {
		return fmt.Errorf("send summary to %d: %w", u.TelegramID, err)
	}
	return nil
}

// ProfileSaved confirms a questionnaire save from the mini-app.
func (h *Handler) ProfileSaved(_ context.Context, u *models.User) {
	text := fmt.Sprintf("Анкета сохранена ✅\nДневная норма: %s ккал\nБ/Ж/У: %s / %s / %s г",
		num(u.Calories), num(u.Protein), num(u.Fat), num(u.Carbs))
	reply := tgbotapi.NewMessage(u.TelegramID, text)
	reply.ReplyMarkup = mainMenu()
	h.sendMsg(reply)
	log.Debug().Int64("user_id", u.ID).Msg("profile confirmation sent")
}

func formatDay(rep *report.DayReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 %s\n", rep.Date)
	b.WriteString(consumedLine(rep.Totals.Calories, rep.DailyNorm, rep.Percentage))
	fmt.Fprintf(&b, "\nБ/Ж/У: %s / %s / %s г\n", num(rep.Totals.Protein), num(rep.Totals.Fat), num(rep.Totals.Carbs))

	if rep.MealsCount == 0 {
		b.WriteString("\n" + txtNoMeals)
		return b.String()
	}
	fmt.Fprintf(&b, "Приёмов пищи: %d\n", rep.MealsCount)
	for _, m := range rep.Meals {
		fmt.Fprintf(&b, "\n• %s, %s ккал", m.MealText, num(value(m.Calories)))
	}
	return b.String()
}

func formatPeriod(rep *report.PeriodReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📅 %s … %s (%d дн.)\n", rep.PeriodStart, rep.PeriodEnd, rep.PeriodDays)
	b.WriteString(consumedLine(rep.Totals.Calories, rep.PeriodNorm, rep.Percentage))
	b.WriteString("\n")
	if rep.MealsCount == 0 {
		b.WriteString("\n" + txtNoMeals)
		return b.String()
	}
	for _, d := range rep.MealsByDay {
		fmt.Fprintf(&b, "\n%s: %s ккал", d.Date, num(d.Totals.Calories))
		if rep.DailyNorm > 0 {
			fmt.Fprintf(&b, " (%s%%)", num(d.Percentage))
		}
	}
	return b.String()
}

// consumedLine renders "Калории: 1500 / 2000 ккал (75%)"; without a norm
// only the eaten amount is shown.
func consumedLine(consumed, norm, pct float64) string {
	if norm <= 0 {
		return fmt.Sprintf("Калории: %s ккал (норма не задана)", num(consumed))
	}
	return fmt.Sprintf("Калории: %s / %s ккал (%s%%)", num(consumed), num(norm), num(pct))
}

// num prints v with at most one decimal, "12.5" or "300".
func num(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "0"
	}
	return decimal.NewFromFloat(v).Round(1).String()
}

func value(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
