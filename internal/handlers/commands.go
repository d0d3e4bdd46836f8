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

func (h *Handler) HandleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	arg := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start":
		h.HandleStart(ctx, chatID)
	case "today":
		h.HandleToday(ctx, chatID)
	case "week":
		h.HandleWeek(ctx, chatID)
	case "tz":
		if arg == "" {
			h.ask(ctx, chatID, models.StateWaitingTZ, txtAskTZ)
			return
		}
		h.setTZ(ctx, chatID, arg)
	case "summary":
		if arg == "" {
			h.ask(ctx, chatID, models.StateWaitingSummary, txtAskSummary)
			return
		}
		h.setSummaryAt(ctx, chatID, arg)
	case "clear":
		reply := tgbotapi.NewMessage(chatID, txtAskClear)
		reply.ReplyMarkup = clearKeyboard()
		h.sendMsg(reply)
	default:
		h.send(chatID, txtWelcome)
	}
}

// ---------------- /start --------------------
func (h *Handler) HandleStart(ctx context.Context, chatID int64) {
	u, err := h.DB.EnsureUser(ctx, chatID, h.DefaultTZ, h.SummaryAt)
	if err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("ensure user")
		h.send(chatID, txtFailed)
		return
	}
	h.resetState(ctx, chatID)

	reply := tgbotapi.NewMessage(chatID, txtWelcome)
	reply.ReplyMarkup = mainMenu()
	h.sendMsg(reply)

	if h.WebAppURL == "" {
		return
	}
	id := strconv.FormatInt(u.ID, 10)
	links := tgbotapi.NewMessage(chatID, "Заполни анкету, чтобы я посчитал твою дневную норму:")
	links.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL(btnProfile, h.WebAppURL+"/?id="+id),
			tgbotapi.NewInlineKeyboardButtonURL(btnReports, h.WebAppURL+"/reports?id="+id),
		),
	)
	h.sendMsg(links)
}

// ---------------- reports -------------------
func (h *Handler) HandleToday(ctx context.Context, chatID int64) {
	u, err := h.user(ctx, chatID)
	if err != nil || u == nil {
		return
	}
	loc := h.zone(u)
	rep, err := h.Reports.Day(ctx, u.ID, report.DayKey(h.now(), loc), loc)
	if err != nil {
		log.Error().Err(err).Int64("user_id", u.ID).Msg("day report")
		h.send(chatID, txtFailed)
		return
	}
	reply := tgbotapi.NewMessage(chatID, formatDay(rep))
	reply.ReplyMarkup = weekKeyboard()
	h.sendMsg(reply)
}

func (h *Handler) HandleWeek(ctx context.Context, chatID int64) {
	u, err := h.user(ctx, chatID)
	if err != nil || u == nil {
		return
	}
	loc := h.zone(u)
	end := report.CivilDay(h.now(), loc)
	start := end.AddDate(0, 0, -6)
	rep, err := h.Reports.Period(ctx, u.ID, start.Format(report.DateLayout), end.Format(report.DateLayout), loc)
	if err != nil {
		log.Error().Err(err).Int64("user_id", u.ID).Msg("period report")
		h.send(chatID, txtFailed)
		return
	}
	h.send(chatID, formatPeriod(rep))
}

// ---------------- settings ------------------
func (h *Handler) ask(ctx context.Context, chatID int64, st models.State, text string) {
	if u, err := h.user(ctx, chatID); err != nil || u == nil {
		return
	}
	if err := h.DB.SetUserState(ctx, chatID, st); err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("set state")
		h.send(chatID, txtFailed)
		return
	}
	h.send(chatID, text)
}

// setTZ reports whether the zone was accepted.
func (h *Handler) setTZ(ctx context.Context, chatID int64, name string) bool {
	if u, err := h.user(ctx, chatID); err != nil || u == nil {
		return false
	}
	if _, err := report.LoadZone(name); err != nil {
		h.send(chatID, txtBadTZ)
		return false
	}
	if err := h.DB.SetTZ(ctx, chatID, name); err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("set tz")
		h.send(chatID, txtFailed)
		return false
	}
	h.send(chatID, fmt.Sprintf("Часовой пояс: %s", name))
	return true
}

// setSummaryAt reports whether the time was accepted.
func (h *Handler) setSummaryAt(ctx context.Context, chatID int64, text string) bool {
	if u, err := h.user(ctx, chatID); err != nil || u == nil {
		return false
	}
	hm, ok := parseHM(text)
	if !ok {
		h.send(chatID, txtBadSummary)
		return false
	}
	if err := h.DB.SetSummaryAt(ctx, chatID, hm); err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("set summary time")
		h.send(chatID, txtFailed)
		return false
	}
	h.send(chatID, fmt.Sprintf("Сводка будет приходить в %s", hm))
	return true
}

// parseHM normalises "9:05" to "09:05".
func parseHM(s string) (string, bool) {
	m := timeRx.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", false
	}
	hh, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	if hh > 23 || mm > 59 {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d", hh, mm), true
}
