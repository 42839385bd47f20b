package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/itamhq/teambot/internal/gateway"
	pkgerrors "github.com/itamhq/teambot/pkg/errors"
	"github.com/itamhq/teambot/pkg/logger"
	"github.com/itamhq/teambot/pkg/metrics"
	"github.com/itamhq/teambot/pkg/telegram"
	"go.uber.org/multierr"
)

// Transport is the outbound chat surface the dispatcher renders onto.
type Transport interface {
	SendMessage(ctx context.Context, params telegram.SendMessageParams) (*telegram.Message, error)
}

// Directory answers delivery-eligibility questions from the backend.
type Directory interface {
	GetNotificationStatus(ctx context.Context, telegramUserID int64) (*gateway.NotificationStatus, error)
	AuthorizedUsers(ctx context.Context) ([]gateway.AuthorizedUser, error)
}

// Dispatcher routes parsed notifications to the right transport action:
// an interactive direct message, a plain direct message, or a broadcast.
type Dispatcher struct {
	transport Transport
	directory Directory
	logg      *logger.Logger
	metrics   *metrics.PipelineMetrics
}

// NewDispatcher wires dispatcher dependencies.
func NewDispatcher(transport Transport, directory Directory, logg *logger.Logger, m *metrics.PipelineMetrics) (*Dispatcher, error) {
	if transport == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "chat transport required")
	}
	if directory == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user directory required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger required")
	}
	return &Dispatcher{transport: transport, directory: directory, logg: logg, metrics: m}, nil
}

// Dispatch renders one notification. Returned errors are delivery
// failures the caller may log; they never indicate the entry should be
// retried by the stream loop.
func (d *Dispatcher) Dispatch(ctx context.Context, n *Notification) error {
	start := time.Now()
	defer func() {
		d.metrics.ObserveDispatch(string(n.Type), time.Since(start))
	}()

	ctx = d.logg.WithField(ctx, "notification_type", string(n.Type))

	if !n.Type.Targeted() {
		return d.broadcast(ctx, n)
	}

	chatID, ok := n.TargetChatID()
	if !ok {
		// A targeted action broadcast to everyone would leak it;
		// dropping is the only safe rendering.
		d.logg.Warn(ctx, "targeted notification without target user, dropping")
		d.metrics.IncDropped("missing_target")
		return nil
	}
	ctx = d.logg.WithUserID(ctx, chatID)

	if !d.deliveryEnabled(ctx, chatID) {
		d.logg.Info(ctx, "notifications disabled for user, skipping")
		d.metrics.IncDropped("opted_out")
		return nil
	}

	if n.Type.Interactive() {
		return d.sendInteractive(ctx, chatID, n)
	}
	return d.sendPlain(ctx, chatID, n)
}

// deliveryEnabled consults the per-user preference. An unavailable
// preference service must not suppress delivery, so lookup failures
// count as enabled.
func (d *Dispatcher) deliveryEnabled(ctx context.Context, chatID int64) bool {
	status, err := d.directory.GetNotificationStatus(ctx, chatID)
	if err != nil {
		d.logg.Warn(ctx, fmt.Sprintf("preference lookup failed, delivering anyway: %v", err))
		return true
	}
	return status.Enabled
}

func (d *Dispatcher) sendInteractive(ctx context.Context, chatID int64, n *Notification) error {
	var keyboard *telegram.InlineKeyboardMarkup
	switch n.Type {
	case TypeJoinRequest:
		keyboard = telegram.Keyboard(telegram.Row(
			telegram.Button("✅ Принять", fmt.Sprintf("join_accept:%s:%s", n.TeamID, n.RequestID)),
			telegram.Button("❌ Отклонить", fmt.Sprintf("join_reject:%s:%s", n.TeamID, n.RequestID)),
		))
	case TypeTeamInvite:
		correlation := n.CorrelationID()
		keyboard = telegram.Keyboard(telegram.Row(
			telegram.Button("✅ Принять", fmt.Sprintf("invite_accept:%s:%s", n.TeamID, correlation)),
			telegram.Button("❌ Отклонить", fmt.Sprintf("invite_reject:%s:%s", n.TeamID, correlation)),
		))
	}

	err := d.send(ctx, telegram.SendMessageParams{
		ChatID:      chatID,
		Text:        telegram.EscapeMarkdown(n.Message),
		ParseMode:   telegram.ParseModeMarkdownV2,
		ReplyMarkup: keyboard,
	}, n.Message)
	if err != nil {
		d.metrics.IncSendFailed("interactive")
		return err
	}
	d.metrics.IncSent("interactive")
	d.logg.Info(ctx, "interactive notification delivered")
	return nil
}

func (d *Dispatcher) sendPlain(ctx context.Context, chatID int64, n *Notification) error {
	err := d.send(ctx, telegram.SendMessageParams{ChatID: chatID, Text: n.Message}, n.Message)
	if err != nil {
		d.metrics.IncSendFailed("plain")
		return err
	}
	d.metrics.IncSent("plain")
	d.logg.Info(ctx, "notification delivered")
	return nil
}

// broadcast fans the message out to every authorized user. Each send
// is independent: one rejected recipient never blocks the rest, and
// failures are aggregated for the caller's log line.
func (d *Dispatcher) broadcast(ctx context.Context, n *Notification) error {
	users, err := d.directory.AuthorizedUsers(ctx)
	if err != nil {
		d.metrics.IncSendFailed("broadcast")
		return pkgerrors.Wrap(pkgerrors.CodeOf(err), err, "fetching broadcast roster")
	}
	if len(users) == 0 {
		d.logg.Warn(ctx, "no authorized users for broadcast")
		return nil
	}

	var delivered int
	var errs error
	for _, user := range users {
		if !user.Authorized {
			continue
		}
		userCtx := d.logg.WithUserID(ctx, user.TelegramUserID)
		if err := d.send(userCtx, telegram.SendMessageParams{ChatID: user.TelegramUserID, Text: n.Message}, n.Message); err != nil {
			d.logg.Error(userCtx, "broadcast send failed", err)
			d.metrics.IncSendFailed("broadcast")
			errs = multierr.Append(errs, fmt.Errorf("user %d: %w", user.TelegramUserID, err))
			continue
		}
		delivered++
		d.metrics.IncSent("broadcast")
	}
	d.logg.Info(d.logg.WithField(ctx, "delivered", delivered), "broadcast complete")
	return errs
}

// send delivers one message, degrading to an unformatted retry when
// the transport rejects the rich markup.
func (d *Dispatcher) send(ctx context.Context, params telegram.SendMessageParams, plainText string) error {
	_, err := d.transport.SendMessage(ctx, params)
	if err == nil {
		return nil
	}
	if params.ParseMode == telegram.ParseModeNone || !telegram.IsMarkupError(err) {
		return err
	}

	d.logg.Warn(ctx, fmt.Sprintf("formatted send rejected, retrying plain: %v", err))
	params.Text = plainText
	params.ParseMode = telegram.ParseModeNone
	_, err = d.transport.SendMessage(ctx, params)
	return err
}
