// Package commands routes chat commands and onboarding replies.
package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/itamhq/teambot/internal/callbacks"
	"github.com/itamhq/teambot/internal/gateway"
	pkgerrors "github.com/itamhq/teambot/pkg/errors"
	"github.com/itamhq/teambot/pkg/logger"
	"github.com/itamhq/teambot/pkg/telegram"
)

const (
	tokenReplyHint = "Используйте этот токен для авторизации на сайте"
	tokenErrorText = "Ошибка при генерации токена"
	askNameText    = "Давай познакомимся! Как тебя зовут?"
	askEmailFormat = "Приятно познакомиться, %s! Теперь укажи свой email:"
	badEmailText   = "Это не похоже на email. Попробуй ещё раз."
	onboardedText  = "Готово! Профиль заполнен."
)

// Transport sends replies back into the chat.
type Transport interface {
	SendMessage(ctx context.Context, params telegram.SendMessageParams) (*telegram.Message, error)
}

// Registrar upserts users in the backend.
type Registrar interface {
	RegisterUser(ctx context.Context, telegramUserID int64, username string) (*gateway.RegisterResult, error)
}

// TokenIssuer issues login tokens.
type TokenIssuer interface {
	Issue(ctx context.Context, userID int64, username string) (string, error)
}

// Handler resolves incoming text messages: slash commands first, then
// pending onboarding dialogue steps.
type Handler struct {
	transport  Transport
	registrar  Registrar
	tokens     TokenIssuer
	onboarding *Onboarding
	validate   *validator.Validate
	logg       *logger.Logger
}

// NewHandler wires command handling dependencies.
func NewHandler(transport Transport, registrar Registrar, tokens TokenIssuer, onboarding *Onboarding, logg *logger.Logger) (*Handler, error) {
	if transport == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "chat transport required")
	}
	if registrar == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "registrar required")
	}
	if tokens == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "token issuer required")
	}
	if onboarding == nil {
		onboarding = NewOnboarding()
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger required")
	}
	return &Handler{
		transport:  transport,
		registrar:  registrar,
		tokens:     tokens,
		onboarding: onboarding,
		validate:   validator.New(),
		logg:       logg,
	}, nil
}

// Handle processes one incoming message.
func (h *Handler) Handle(ctx context.Context, msg *telegram.Message) error {
	if msg == nil || msg.From == nil {
		return nil
	}
	ctx = h.logg.WithUserID(ctx, msg.From.ID)

	text := strings.TrimSpace(msg.Text)
	switch command(text) {
	case "/start":
		return h.handleStart(ctx, msg)
	case "/login":
		return h.handleLogin(ctx, msg)
	}
	return h.handleDialogue(ctx, msg, text)
}

// command strips the bot-name suffix Telegram appends in groups, so
// "/login@teambot" routes the same as "/login".
func command(text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	cmd := strings.Fields(text)[0]
	if at := strings.IndexByte(cmd, '@'); at > 0 {
		cmd = cmd[:at]
	}
	return cmd
}

func (h *Handler) handleStart(ctx context.Context, msg *telegram.Message) error {
	_, err := h.transport.SendMessage(ctx, telegram.SendMessageParams{
		ChatID:      msg.Chat.ID,
		Text:        callbacks.MainMenuText(msg.From.FirstName),
		ParseMode:   telegram.ParseModeMarkdownV2,
		ReplyMarkup: callbacks.MainMenuKeyboard(),
	})
	return err
}

func (h *Handler) handleLogin(ctx context.Context, msg *telegram.Message) error {
	token, err := h.tokens.Issue(ctx, msg.From.ID, msg.From.Username)
	if err != nil {
		h.logg.Error(ctx, "token issuance failed", err)
		_, sendErr := h.transport.SendMessage(ctx, telegram.SendMessageParams{
			ChatID: msg.Chat.ID,
			Text:   tokenErrorText,
		})
		return sendErr
	}

	newUser := h.registerUser(ctx, msg.From.ID, msg.From.Username)

	_, err = h.transport.SendMessage(ctx, telegram.SendMessageParams{
		ChatID:    msg.Chat.ID,
		Text:      fmt.Sprintf("Ваш токен: `%s`", token),
		ParseMode: telegram.ParseModeMarkdownV2,
	})
	if err != nil && telegram.IsMarkupError(err) {
		_, err = h.transport.SendMessage(ctx, telegram.SendMessageParams{
			ChatID: msg.Chat.ID,
			Text:   fmt.Sprintf("Ваш токен: %s", token),
		})
	}
	if err != nil {
		return err
	}
	if _, err := h.transport.SendMessage(ctx, telegram.SendMessageParams{
		ChatID: msg.Chat.ID,
		Text:   tokenReplyHint,
	}); err != nil {
		return err
	}

	if newUser {
		h.onboarding.Begin(msg.From.ID)
		_, err = h.transport.SendMessage(ctx, telegram.SendMessageParams{
			ChatID: msg.Chat.ID,
			Text:   askNameText,
		})
	}
	return err
}

// registerUser upserts the user and reports whether they are new.
// Registration failure never blocks the login reply.
func (h *Handler) registerUser(ctx context.Context, userID int64, username string) bool {
	result, err := h.registrar.RegisterUser(ctx, userID, username)
	if err != nil {
		h.logg.Error(ctx, "user registration failed", err)
		return false
	}
	h.logg.Info(ctx, fmt.Sprintf("user registered (new: %t)", result.IsNewUser))
	return result.IsNewUser
}

func (h *Handler) handleDialogue(ctx context.Context, msg *telegram.Message, text string) error {
	profile, ok := h.onboarding.Get(msg.From.ID)
	if !ok || text == "" {
		return nil
	}

	switch profile.Step {
	case StepAwaitingName:
		h.onboarding.SetName(msg.From.ID, text)
		_, err := h.transport.SendMessage(ctx, telegram.SendMessageParams{
			ChatID: msg.Chat.ID,
			Text:   fmt.Sprintf(askEmailFormat, text),
		})
		return err
	case StepAwaitingEmail:
		if h.validate.Var(text, "required,email") != nil {
			_, err := h.transport.SendMessage(ctx, telegram.SendMessageParams{
				ChatID: msg.Chat.ID,
				Text:   badEmailText,
			})
			return err
		}
		h.onboarding.SetEmail(msg.From.ID, text)
		_, err := h.transport.SendMessage(ctx, telegram.SendMessageParams{
			ChatID: msg.Chat.ID,
			Text:   onboardedText,
		})
		return err
	}
	return nil
}
