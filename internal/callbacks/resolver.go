package callbacks

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/itamhq/teambot/internal/gateway"
	pkgerrors "github.com/itamhq/teambot/pkg/errors"
	"github.com/itamhq/teambot/pkg/logger"
	"github.com/itamhq/teambot/pkg/metrics"
	"github.com/itamhq/teambot/pkg/telegram"
)

// Transport is the chat surface the resolver answers and edits on.
type Transport interface {
	SendMessage(ctx context.Context, params telegram.SendMessageParams) (*telegram.Message, error)
	EditMessageText(ctx context.Context, params telegram.EditMessageParams) error
	AnswerCallbackQuery(ctx context.Context, callbackQueryID, text string) error
}

// Backend is the mutation and preference surface behind button presses.
type Backend interface {
	RespondJoinRequest(ctx context.Context, teamID, requestID string, accepted bool) error
	RespondInvite(ctx context.Context, inviteID string, telegramUserID int64, accept bool) error
	GetNotificationStatus(ctx context.Context, telegramUserID int64) (*gateway.NotificationStatus, error)
	SetNotifications(ctx context.Context, telegramUserID int64, enabled bool) error
}

// TokenIssuer issues login tokens for the get_token menu action.
type TokenIssuer interface {
	Issue(ctx context.Context, userID int64, username string) (string, error)
}

// Resolver turns a button press into a backend mutation and renders
// the outcome back into the originating message. Every press is
// acknowledged to the transport before any slow work so the client UI
// never hangs; repeated presses resolve idempotently because the
// backend reports replays as already-processed.
type Resolver struct {
	transport Transport
	backend   Backend
	tokens    TokenIssuer
	logg      *logger.Logger
	metrics   *metrics.PipelineMetrics
}

// NewResolver wires resolver dependencies.
func NewResolver(transport Transport, backend Backend, tokens TokenIssuer, logg *logger.Logger, m *metrics.PipelineMetrics) (*Resolver, error) {
	if transport == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "chat transport required")
	}
	if backend == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "backend client required")
	}
	if tokens == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "token issuer required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger required")
	}
	return &Resolver{transport: transport, backend: backend, tokens: tokens, logg: logg, metrics: m}, nil
}

// Resolve handles one callback query end to end.
func (r *Resolver) Resolve(ctx context.Context, q *telegram.CallbackQuery) error {
	ctx = r.logg.WithInteractionID(ctx, uuid.NewString())
	ctx = r.logg.WithUserID(ctx, q.From.ID)

	action, err := Decode(q.Data)
	if err != nil {
		r.logg.Warn(ctx, fmt.Sprintf("unrecognized callback data %q", q.Data))
		r.metrics.IncCallback("unrecognized")
		return r.transport.AnswerCallbackQuery(ctx, q.ID, toastUnknownAction)
	}
	ctx = r.logg.WithField(ctx, "verb", string(action.Verb))

	switch action.Verb {
	case VerbJoinAccept, VerbJoinReject, VerbInviteAccept, VerbInviteReject:
		return r.resolveResponse(ctx, q, action)
	case VerbGetToken:
		return r.resolveGetToken(ctx, q)
	case VerbNotificationsMenu:
		return r.resolveNotificationsMenu(ctx, q)
	case VerbNotificationsOn:
		return r.resolveNotificationsToggle(ctx, q, true)
	case VerbNotificationsOff:
		return r.resolveNotificationsToggle(ctx, q, false)
	case VerbShowInfo:
		return r.resolveShowInfo(ctx, q)
	case VerbBackToMain:
		return r.resolveBackToMain(ctx, q)
	}
	return nil
}

func (r *Resolver) resolveResponse(ctx context.Context, q *telegram.CallbackQuery, action Action) error {
	if err := r.transport.AnswerCallbackQuery(ctx, q.ID, toastProcessing); err != nil {
		r.logg.Warn(ctx, fmt.Sprintf("answering callback failed: %v", err))
	}

	var mutationErr error
	if action.Join() {
		mutationErr = r.backend.RespondJoinRequest(ctx, action.TeamID, action.CorrelationID, action.Accept())
	} else {
		mutationErr = r.backend.RespondInvite(ctx, action.CorrelationID, q.From.ID, action.Accept())
	}

	outcome := classifyOutcome(action, mutationErr)
	if mutationErr != nil {
		r.logg.Error(ctx, "backend mutation failed", mutationErr)
	}
	r.metrics.IncCallback(outcomeLabel(mutationErr))

	return r.appendOutcome(ctx, q, action, outcome)
}

// appendOutcome edits the originating message to show the result. The
// edit replaces the keyboard with nothing, which removes the buttons.
func (r *Resolver) appendOutcome(ctx context.Context, q *telegram.CallbackQuery, action Action, outcome string) error {
	if q.Message == nil {
		return nil
	}
	subject := q.Message.Text
	if subject == "" {
		subject = joinFallbackSubject
		if !action.Join() {
			subject = inviteFallbackSubject
		}
	}
	err := r.transport.EditMessageText(ctx, telegram.EditMessageParams{
		ChatID:    q.Message.Chat.ID,
		MessageID: q.Message.MessageID,
		Text:      fmt.Sprintf("%s\n\n%s", subject, outcome),
	})
	if err != nil {
		r.logg.Warn(ctx, fmt.Sprintf("editing message failed: %v", err))
	}
	return nil
}

// classifyOutcome maps a mutation result onto one fixed user-facing
// message per error class. A replayed press comes back from the
// backend as already-processed and lands on the same benign message.
func classifyOutcome(action Action, err error) string {
	if err == nil {
		switch {
		case action.Join() && action.Accept():
			return joinAcceptedText
		case action.Join():
			return joinRejectedText
		case action.Accept():
			return inviteAcceptedText
		default:
			return inviteRejectedText
		}
	}

	switch pkgerrors.CodeOf(err) {
	case pkgerrors.CodeAlreadyProcessed:
		if action.Join() {
			return joinAlreadyDoneText
		}
		return inviteAlreadyDoneText
	case pkgerrors.CodeTeamFull:
		return joinTeamFullText
	case pkgerrors.CodeNotYourInvite:
		return inviteWrongUserText
	case pkgerrors.CodeDependency:
		return backendUnreachableText
	default:
		if action.Join() {
			return joinFailedText
		}
		return inviteFailedText
	}
}

func outcomeLabel(err error) string {
	if err == nil {
		return "success"
	}
	switch pkgerrors.CodeOf(err) {
	case pkgerrors.CodeAlreadyProcessed:
		return "already_processed"
	case pkgerrors.CodeTeamFull:
		return "capacity_rejected"
	case pkgerrors.CodeNotYourInvite:
		return "not_authorized"
	case pkgerrors.CodeDependency:
		return "connectivity_error"
	default:
		return "unknown_error"
	}
}

func (r *Resolver) resolveGetToken(ctx context.Context, q *telegram.CallbackQuery) error {
	if err := r.transport.AnswerCallbackQuery(ctx, q.ID, toastIssuingToken); err != nil {
		r.logg.Warn(ctx, fmt.Sprintf("answering callback failed: %v", err))
	}
	if q.Message == nil {
		return nil
	}

	token, err := r.tokens.Issue(ctx, q.From.ID, q.From.Username)
	if err != nil {
		r.logg.Error(ctx, "token issuance failed", err)
		r.metrics.IncCallback("token_failed")
		_, sendErr := r.transport.SendMessage(ctx, telegram.SendMessageParams{
			ChatID: q.Message.Chat.ID,
			Text:   tokenFailedText,
		})
		return sendErr
	}

	r.metrics.IncCallback("token_issued")
	_, err = r.transport.SendMessage(ctx, telegram.SendMessageParams{
		ChatID:    q.Message.Chat.ID,
		Text:      tokenText(token),
		ParseMode: telegram.ParseModeMarkdownV2,
	})
	if err != nil && telegram.IsMarkupError(err) {
		_, err = r.transport.SendMessage(ctx, telegram.SendMessageParams{
			ChatID: q.Message.Chat.ID,
			Text:   fmt.Sprintf("Ваш токен: %s (действителен 10 минут)", token),
		})
	}
	return err
}

func (r *Resolver) resolveNotificationsMenu(ctx context.Context, q *telegram.CallbackQuery) error {
	if err := r.transport.AnswerCallbackQuery(ctx, q.ID, ""); err != nil {
		r.logg.Warn(ctx, fmt.Sprintf("answering callback failed: %v", err))
	}
	if q.Message == nil {
		return nil
	}

	known, enabled := true, true
	status, err := r.backend.GetNotificationStatus(ctx, q.From.ID)
	if err != nil {
		r.logg.Warn(ctx, fmt.Sprintf("notification status lookup failed: %v", err))
		known = false
	} else {
		enabled = status.Enabled
	}

	return r.transport.EditMessageText(ctx, telegram.EditMessageParams{
		ChatID:      q.Message.Chat.ID,
		MessageID:   q.Message.MessageID,
		Text:        notificationsMenuText(known, enabled),
		ParseMode:   telegram.ParseModeMarkdownV2,
		ReplyMarkup: notificationsKeyboard(enabled),
	})
}

func (r *Resolver) resolveNotificationsToggle(ctx context.Context, q *telegram.CallbackQuery, enable bool) error {
	toast := toastDisabling
	if enable {
		toast = toastEnabling
	}
	if err := r.transport.AnswerCallbackQuery(ctx, q.ID, toast); err != nil {
		r.logg.Warn(ctx, fmt.Sprintf("answering callback failed: %v", err))
	}
	if q.Message == nil {
		return nil
	}

	if err := r.backend.SetNotifications(ctx, q.From.ID, enable); err != nil {
		r.logg.Error(ctx, "updating notification settings failed", err)
		r.metrics.IncCallback("settings_failed")
		_, sendErr := r.transport.SendMessage(ctx, telegram.SendMessageParams{
			ChatID: q.Message.Chat.ID,
			Text:   settingsFailedText,
		})
		return sendErr
	}

	r.metrics.IncCallback("settings_updated")
	return r.transport.EditMessageText(ctx, telegram.EditMessageParams{
		ChatID:      q.Message.Chat.ID,
		MessageID:   q.Message.MessageID,
		Text:        notificationsToggledText(enable),
		ParseMode:   telegram.ParseModeMarkdownV2,
		ReplyMarkup: notificationsKeyboard(enable),
	})
}

func (r *Resolver) resolveShowInfo(ctx context.Context, q *telegram.CallbackQuery) error {
	if err := r.transport.AnswerCallbackQuery(ctx, q.ID, ""); err != nil {
		r.logg.Warn(ctx, fmt.Sprintf("answering callback failed: %v", err))
	}
	if q.Message == nil {
		return nil
	}
	return r.transport.EditMessageText(ctx, telegram.EditMessageParams{
		ChatID:      q.Message.Chat.ID,
		MessageID:   q.Message.MessageID,
		Text:        infoText,
		ParseMode:   telegram.ParseModeMarkdownV2,
		ReplyMarkup: backKeyboard(),
	})
}

func (r *Resolver) resolveBackToMain(ctx context.Context, q *telegram.CallbackQuery) error {
	if err := r.transport.AnswerCallbackQuery(ctx, q.ID, ""); err != nil {
		r.logg.Warn(ctx, fmt.Sprintf("answering callback failed: %v", err))
	}
	if q.Message == nil {
		return nil
	}
	return r.transport.EditMessageText(ctx, telegram.EditMessageParams{
		ChatID:      q.Message.Chat.ID,
		MessageID:   q.Message.MessageID,
		Text:        MainMenuText(q.From.FirstName),
		ParseMode:   telegram.ParseModeMarkdownV2,
		ReplyMarkup: MainMenuKeyboard(),
	})
}
