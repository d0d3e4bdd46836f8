package handlers

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

func (h *Handler) HandleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	// always answer callback to remove 'loading...'
	if _, err := h.Bot.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		log.Debug().Err(err).Msg("answer callback")
	}
	if cq.Message == nil || cq.Message.Chat == nil {
		return
	}
	chatID := cq.Message.Chat.ID

	switch cq.Data {
	case cbClearConfirm:
		h.handleClear(ctx, chatID, cq.Message.MessageID)
	case cbClearCancel:
		h.editText(chatID, cq.Message.MessageID, txtCancelled)
	case cbWeek:
		h.HandleWeek(ctx, chatID)
	}
}

func (h *Handler) handleClear(ctx context.Context, chatID int64, msgID int) {
	u, err := h.user(ctx, chatID)
	if err != nil || u == nil {
		return
	}
	if err := h.DB.ClearMeals(ctx, u.TelegramID); err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("clear meals")
		h.send(chatID, txtFailed)
		return
	}
	log.Info().Int64("chat_id", chatID).Msg("diary cleared")
	h.publish("cleared", nil, u.TelegramID)
	h.editText(chatID, msgID, txtCleared)
}

// editText replaces the question and drops its inline keyboard.
func (h *Handler) editText(chatID int64, msgID int, text string) {
	if _, err := h.Bot.Send(tgbotapi.NewEditMessageText(chatID, msgID, text)); err != nil {
		log.Debug().Err(err).Int64("chat_id", chatID).Msg("edit message")
	}
}
