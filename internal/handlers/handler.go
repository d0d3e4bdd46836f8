// Package handlers is the Telegram side of the diary: commands, free-text meal
// entry and the evening summary.
package handlers

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"telegram-diet-diary/internal/api"
	"telegram-diet-diary/internal/models"
	"telegram-diet-diary/internal/report"
	"telegram-diet-diary/internal/storage"
)

// Sender is the part of *tgbotapi.BotAPI the handlers use.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Publisher receives meal change events, normally the websocket hub.
type Publisher interface {
	Publish(telegramID int64, payload any)
}

type Handler struct {
	Bot     Sender
	DB      storage.Store
	Reports *report.Aggregator
	Events  Publisher // optional

	WebAppURL string
	DefaultTZ string
	SummaryAt string

	Now func() time.Time // tests pin the clock
}

// Listen dispatches updates until ctx is done or the channel is closed.
func (h *Handler) Listen(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			h.HandleUpdate(ctx, upd)
		}
	}
}

func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	switch {
	case upd.Message != nil:
		h.HandleMessage(ctx, upd.Message)
	case upd.CallbackQuery != nil:
		h.HandleCallback(ctx, upd.CallbackQuery)
	}
}

func (h *Handler) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Chat == nil {
		return
	}
	if msg.IsCommand() {
		h.HandleCommand(ctx, msg)
		return
	}
	h.HandleText(ctx, msg)
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// user loads the row of a chat. A nil user with nil error means /start was
// never sent; the chat is told so.
func (h *Handler) user(ctx context.Context, chatID int64) (*models.User, error) {
	u, err := h.DB.GetUserByTelegram(ctx, chatID)
	if err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("load user")
		h.send(chatID, txtFailed)
		return nil, err
	}
	if u == nil {
		h.send(chatID, txtNeedStart)
	}
	return u, nil
}

// resetState returns the chat to idle. A failure only leaves the chat
// waiting for another answer, so it is logged and not reported.
func (h *Handler) resetState(ctx context.Context, chatID int64) {
	if err := h.DB.SetUserState(ctx, chatID, models.StateIdle); err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("reset state")
	}
}

// zone is the user's zone, or the configured default.
func (h *Handler) zone(u *models.User) *time.Location {
	for _, name := range []string{u.TZ, h.DefaultTZ} {
		if name == "" {
			continue
		}
		if loc, err := report.LoadZone(name); err == nil {
			return loc
		}
	}
	return time.UTC
}

func (h *Handler) publish(action string, m *models.Meal, telegramID int64) {
	if h.Events == nil {
		return
	}
	ev := api.MealEvent{Kind: "meal.changed", Action: action}
	if m != nil {
		ev.MealID = m.ID
		ev.CreatedAt = m.CreatedAt
	}
	h.Events.Publish(telegramID, ev)
}

func (h *Handler) send(chatID int64, text string) {
	h.sendMsg(tgbotapi.NewMessage(chatID, text))
}

func (h *Handler) sendMsg(msg tgbotapi.MessageConfig) {
	if _, err := h.Bot.Send(msg); err != nil {
		log.Warn().Err(err).Int64("chat_id", msg.ChatID).Msg("telegram send failed")
	}
}
