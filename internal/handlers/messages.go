package handlers

import (
	"regexp"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

var (
	timeRx = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
	// "<description> <kcal> [<protein> <fat> <carbs>]"
	mealRx = regexp.MustCompile(`^(.+?)\s+(\d+(?:[.,]\d+)?)(?:\s+(\d+(?:[.,]\d+)?)\s+(\d+(?:[.,]\d+)?)\s+(\d+(?:[.,]\d+)?))?$`)
)

const (
	kbToday = "Сегодня"
	kbWeek  = "Неделя"

	btnProfile = "Анкета"
	btnReports = "Отчёты"
	btnClear   = "Удалить всё"
	btnCancel  = "Отмена"

	cbClearConfirm = "clear_confirm"
	cbClearCancel  = "clear_cancel"
	cbWeek         = "report_week"
)

const (
	txtWelcome = "Привет! Я считаю калории.\n\n" +
		"Пиши приёмы пищи сообщением: «Борщ 350» или «Омлет 320 22 18 3» (ккал, Б, Ж, У).\n" +
		"/today и /week покажут отчёты, /tz и /summary настраивают часовой пояс и время вечерней сводки."
	txtNeedStart     = "Сначала нажми /start"
	txtMealHint      = "Не понял. Формат: «описание ккал» или «описание ккал белки жиры углеводы», например «Гречка 250 9 3 50»."
	txtAskTZ         = "Пришли часовой пояс, например Europe/Moscow или +03:00"
	txtBadTZ         = "Не знаю такой часовой пояс. Пример: Europe/Moscow или +03:00"
	txtAskSummary    = "Во сколько присылать вечернюю сводку? (HH:MM)"
	txtBadSummary    = "Формат HH:MM"
	txtAskClear      = "Удалить все записи дневника? Это нельзя отменить."
	txtCleared       = "Дневник очищен."
	txtCancelled     = "Отменено"
	txtFailed        = "Что-то пошло не так, попробуй позже."
	txtSummaryHeader = "🌙 Итоги дня\n\n"
	txtNoMeals       = "Записей нет."
)

func mainMenu() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(kbToday),
			tgbotapi.NewKeyboardButton(kbWeek),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

func clearKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(btnClear, cbClearConfirm),
			tgbotapi.NewInlineKeyboardButtonData(btnCancel, cbClearCancel),
		),
	)
}

func weekKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(kbWeek, cbWeek),
		),
	)
}
