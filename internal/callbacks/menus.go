package callbacks

import (
	"fmt"

	"github.com/itamhq/teambot/pkg/telegram"
)

const (
	toastProcessing    = "Обработка..."
	toastIssuingToken  = "Генерирую токен..."
	toastUnknownAction = "Неизвестное действие"
	toastEnabling      = "Включаю уведомления..."
	toastDisabling     = "Выключаю уведомления..."

	joinAcceptedText       = "✅ Заявка успешно принята! Пользователь добавлен в команду."
	joinRejectedText       = "❌ Заявка отклонена."
	joinAlreadyDoneText    = "⚠️ Эта заявка уже была обработана ранее."
	joinTeamFullText       = "⚠️ Команда уже заполнена. Нельзя принять нового участника."
	joinFailedText         = "❌ Ошибка при обработке заявки. Попробуйте позже."
	inviteAcceptedText     = "✅ Приглашение принято! Вы добавлены в команду."
	inviteRejectedText     = "❌ Приглашение отклонено."
	inviteAlreadyDoneText  = "⚠️ Это приглашение уже было обработано ранее."
	inviteWrongUserText    = "⚠️ Это приглашение адресовано другому пользователю."
	inviteFailedText       = "❌ Ошибка при обработке приглашения. Попробуйте позже."
	backendUnreachableText = "❌ Не удалось связаться с сервером. Попробуйте позже."

	tokenFailedText    = "❌ Ошибка при генерации токена. Попробуйте позже."
	settingsFailedText = "❌ Не удалось обновить настройки. Убедитесь, что вы авторизованы на сайте."

	joinFallbackSubject   = "Запрос на вступление"
	inviteFallbackSubject = "Приглашение в команду"

	infoText = "ℹ️ *О платформе ITAM Hackathon*\n\n" +
		"🎯 *Что это?*\n" +
		"Платформа для участия в хакатонах с системой подбора команд\\.\n\n" +
		"✨ *Возможности:*\n" +
		"• 🔍 Поиск команды по навыкам\n" +
		"• 👆 Свайп\\-система как в Tinder\n" +
		"• 🏆 Геймификация и достижения\n" +
		"• 🎨 Кастомизация профиля\n" +
		"• 📊 Рейтинг и MMR система\n\n" +
		"💡 *Как это работает:*\n" +
		"1\\. Создайте профиль с вашими навыками\n" +
		"2\\. Свайпайте карточки команд/участников\n" +
		"3\\. При взаимном лайке \\- это Match\\!\n" +
		"4\\. Общайтесь и формируйте команду\\!"
)

// MainMenuText greets the user and lists what the bot can do.
func MainMenuText(firstName string) string {
	return fmt.Sprintf(
		"👋 Привет, %s\\!\n\n"+
			"🚀 *ITAM Hackathon Bot*\n\n"+
			"Этот бот поможет тебе:\n"+
			"• 🔐 Авторизоваться на платформе\n"+
			"• 🔔 Получать уведомления\n"+
			"• 👥 Управлять приглашениями\n\n"+
			"Выбери действие:",
		telegram.EscapeMarkdown(firstName),
	)
}

// MainMenuKeyboard is the top-level inline menu.
func MainMenuKeyboard() *telegram.InlineKeyboardMarkup {
	return telegram.Keyboard(
		telegram.Row(telegram.Button("🔐 Получить токен", string(VerbGetToken))),
		telegram.Row(
			telegram.Button("🔔 Уведомления", string(VerbNotificationsMenu)),
			telegram.Button("ℹ️ Информация", string(VerbShowInfo)),
		),
	)
}

func tokenText(token string) string {
	return fmt.Sprintf(
		"🔐 *Ваш токен для авторизации:*\n\n"+
			"`%s`\n\n"+
			"⏰ Токен действителен *10 минут*\n\n"+
			"📋 Скопируйте токен и вставьте его на сайте для входа\\.",
		telegram.EscapeMarkdown(token),
	)
}

func notificationsMenuText(known, enabled bool) string {
	status := "Статус неизвестен \\(авторизуйтесь на сайте\\)"
	emoji := "❓"
	if known {
		if enabled {
			status = "Уведомления *включены* ✅"
			emoji = "🔔"
		} else {
			status = "Уведомления *выключены* 🔇"
			emoji = "🔕"
		}
	}
	return fmt.Sprintf(
		"%s *Настройки уведомлений*\n\n"+
			"Текущий статус: %s\n\n"+
			"Уведомления включают:\n"+
			"• 📨 Заявки на вступление в команду\n"+
			"• ✅ Одобрение/отклонение заявок\n"+
			"• 🎉 Новые матчи\n\n"+
			"Используйте кнопки ниже для управления\\.",
		emoji, status,
	)
}

func notificationsToggledText(enabled bool) string {
	if enabled {
		return "🔔 Уведомления *включены* ✅\n\nТеперь вы будете получать все важные уведомления\\."
	}
	return "🔕 Уведомления *выключены* 🔇\n\nВы больше не будете получать уведомления в Telegram\\."
}

func notificationsKeyboard(enabled bool) *telegram.InlineKeyboardMarkup {
	toggle := telegram.Button("🔔 Включить уведомления", string(VerbNotificationsOn))
	if enabled {
		toggle = telegram.Button("🔕 Выключить уведомления", string(VerbNotificationsOff))
	}
	return telegram.Keyboard(
		telegram.Row(toggle),
		telegram.Row(telegram.Button("◀️ Назад", string(VerbBackToMain))),
	)
}

func backKeyboard() *telegram.InlineKeyboardMarkup {
	return telegram.Keyboard(
		telegram.Row(telegram.Button("◀️ Назад", string(VerbBackToMain))),
	)
}
