package callbacks

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/itamhq/teambot/internal/gateway"
	pkgerrors "github.com/itamhq/teambot/pkg/errors"
	"github.com/itamhq/teambot/pkg/logger"
	"github.com/itamhq/teambot/pkg/telegram"
)

type stubTransport struct {
	answers []string
	sent    []telegram.SendMessageParams
	edits   []telegram.EditMessageParams
	sendErr error
}

func (s *stubTransport) SendMessage(_ context.Context, params telegram.SendMessageParams) (*telegram.Message, error) {
	s.sent = append(s.sent, params)
	if s.sendErr != nil {
		err := s.sendErr
		s.sendErr = nil
		return nil, err
	}
	return &telegram.Message{MessageID: 1}, nil
}

func (s *stubTransport) EditMessageText(_ context.Context, params telegram.EditMessageParams) error {
	s.edits = append(s.edits, params)
	return nil
}

func (s *stubTransport) AnswerCallbackQuery(_ context.Context, _, text string) error {
	s.answers = append(s.answers, text)
	return nil
}

type stubBackend struct {
	joinCalls   int
	inviteCalls int
	joinTeamID  string
	joinReqID   string
	accepted    bool
	mutationErr error

	status    *gateway.NotificationStatus
	statusErr error
	setCalls  []bool
	setErr    error
}

func (s *stubBackend) RespondJoinRequest(_ context.Context, teamID, requestID string, accepted bool) error {
	s.joinCalls++
	s.joinTeamID, s.joinReqID, s.accepted = teamID, requestID, accepted
	return s.mutationErr
}

func (s *stubBackend) RespondInvite(_ context.Context, _ string, _ int64, accept bool) error {
	s.inviteCalls++
	s.accepted = accept
	return s.mutationErr
}

func (s *stubBackend) GetNotificationStatus(_ context.Context, _ int64) (*gateway.NotificationStatus, error) {
	return s.status, s.statusErr
}

func (s *stubBackend) SetNotifications(_ context.Context, _ int64, enabled bool) error {
	s.setCalls = append(s.setCalls, enabled)
	return s.setErr
}

type stubIssuer struct {
	token string
	err   error
}

func (s *stubIssuer) Issue(_ context.Context, _ int64, _ string) (string, error) {
	return s.token, s.err
}

func newTestResolver(t *testing.T, transport *stubTransport, backend *stubBackend, issuer *stubIssuer) *Resolver {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	resolver, err := NewResolver(transport, backend, issuer, logg, nil)
	require.NoError(t, err)
	return resolver
}

func pressed(data string) *telegram.CallbackQuery {
	return &telegram.CallbackQuery{
		ID:   "cb-1",
		From: telegram.User{ID: 42, FirstName: "Ivan", Username: "ivan"},
		Message: &telegram.Message{
			MessageID: 10,
			Chat:      telegram.Chat{ID: 42},
			Text:      "Пользователь хочет вступить в команду",
		},
		Data: data,
	}
}

func TestResolveJoinAccept(t *testing.T) {
	transport := &stubTransport{}
	backend := &stubBackend{}
	resolver := newTestResolver(t, transport, backend, &stubIssuer{})

	err := resolver.Resolve(context.Background(), pressed("join_accept:7:99"))
	require.NoError(t, err)

	require.Equal(t, 1, backend.joinCalls)
	require.Equal(t, "7", backend.joinTeamID)
	require.Equal(t, "99", backend.joinReqID)
	require.True(t, backend.accepted)

	require.Equal(t, []string{toastProcessing}, transport.answers)
	require.Len(t, transport.edits, 1)
	edit := transport.edits[0]
	require.Equal(t, int64(42), edit.ChatID)
	require.Equal(t, int64(10), edit.MessageID)
	require.Contains(t, edit.Text, "Пользователь хочет вступить в команду")
	require.Contains(t, edit.Text, joinAcceptedText)
	require.Nil(t, edit.ReplyMarkup)
}

func TestResolveInviteReject(t *testing.T) {
	transport := &stubTransport{}
	backend := &stubBackend{}
	resolver := newTestResolver(t, transport, backend, &stubIssuer{})

	err := resolver.Resolve(context.Background(), pressed("invite_reject:3:55"))
	require.NoError(t, err)

	require.Equal(t, 1, backend.inviteCalls)
	require.False(t, backend.accepted)
	require.Contains(t, transport.edits[0].Text, inviteRejectedText)
}

func TestResolveRepeatedPressStaysBenign(t *testing.T) {
	transport := &stubTransport{}
	backend := &stubBackend{
		mutationErr: pkgerrors.New(pkgerrors.CodeAlreadyProcessed, "request already processed"),
	}
	resolver := newTestResolver(t, transport, backend, &stubIssuer{})

	err := resolver.Resolve(context.Background(), pressed("join_accept:7:99"))
	require.NoError(t, err)

	require.Contains(t, transport.edits[0].Text, joinAlreadyDoneText)
}

func TestResolveOutcomeClassification(t *testing.T) {
	cases := []struct {
		name string
		data string
		err  error
		want string
	}{
		{"team full", "join_accept:7:99", pkgerrors.New(pkgerrors.CodeTeamFull, "team is full"), joinTeamFullText},
		{"wrong user", "invite_accept:3:55", pkgerrors.New(pkgerrors.CodeNotYourInvite, "not your invite"), inviteWrongUserText},
		{"backend down", "join_reject:7:99", pkgerrors.New(pkgerrors.CodeDependency, "connect refused"), backendUnreachableText},
		{"join unknown", "join_accept:7:99", pkgerrors.New(pkgerrors.CodeInternal, "boom"), joinFailedText},
		{"invite unknown", "invite_accept:3:55", pkgerrors.New(pkgerrors.CodeInternal, "boom"), inviteFailedText},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			transport := &stubTransport{}
			backend := &stubBackend{mutationErr: tc.err}
			resolver := newTestResolver(t, transport, backend, &stubIssuer{})

			err := resolver.Resolve(context.Background(), pressed(tc.data))
			require.NoError(t, err)
			require.Contains(t, transport.edits[0].Text, tc.want)
		})
	}
}

func TestResolveUnknownDataAnswersOnly(t *testing.T) {
	transport := &stubTransport{}
	backend := &stubBackend{}
	resolver := newTestResolver(t, transport, backend, &stubIssuer{})

	err := resolver.Resolve(context.Background(), pressed("self_destruct"))
	require.NoError(t, err)

	require.Equal(t, []string{toastUnknownAction}, transport.answers)
	require.Empty(t, transport.edits)
	require.Zero(t, backend.joinCalls)
	require.Zero(t, backend.inviteCalls)
}

func TestResolveGetToken(t *testing.T) {
	transport := &stubTransport{}
	resolver := newTestResolver(t, transport, &stubBackend{}, &stubIssuer{token: "abc123XYZ0abc123"})

	err := resolver.Resolve(context.Background(), pressed("get_token"))
	require.NoError(t, err)

	require.Equal(t, []string{toastIssuingToken}, transport.answers)
	require.Len(t, transport.sent, 1)
	require.Equal(t, telegram.ParseModeMarkdownV2, transport.sent[0].ParseMode)
	require.Contains(t, transport.sent[0].Text, "abc123XYZ0abc123")
}

func TestResolveGetTokenMarkupFallback(t *testing.T) {
	transport := &stubTransport{
		sendErr: &telegram.APIError{Method: "sendMessage", ErrorCode: 400, Description: "Bad Request: can't parse entities"},
	}
	resolver := newTestResolver(t, transport, &stubBackend{}, &stubIssuer{token: "abc123XYZ0abc123"})

	err := resolver.Resolve(context.Background(), pressed("get_token"))
	require.NoError(t, err)

	require.Len(t, transport.sent, 2)
	require.Equal(t, telegram.ParseMode(""), transport.sent[1].ParseMode)
	require.Contains(t, transport.sent[1].Text, "abc123XYZ0abc123")
}

func TestResolveGetTokenIssueFailure(t *testing.T) {
	transport := &stubTransport{}
	issuer := &stubIssuer{err: pkgerrors.New(pkgerrors.CodeDependency, "redis down")}
	resolver := newTestResolver(t, transport, &stubBackend{}, issuer)

	err := resolver.Resolve(context.Background(), pressed("get_token"))
	require.NoError(t, err)

	require.Len(t, transport.sent, 1)
	require.Equal(t, tokenFailedText, transport.sent[0].Text)
}

func TestResolveNotificationsMenu(t *testing.T) {
	transport := &stubTransport{}
	backend := &stubBackend{status: &gateway.NotificationStatus{Enabled: false}}
	resolver := newTestResolver(t, transport, backend, &stubIssuer{})

	err := resolver.Resolve(context.Background(), pressed("notifications_menu"))
	require.NoError(t, err)

	require.Len(t, transport.edits, 1)
	require.Equal(t, notificationsMenuText(true, false), transport.edits[0].Text)
	require.NotNil(t, transport.edits[0].ReplyMarkup)
}

func TestResolveNotificationsMenuUnknownStatus(t *testing.T) {
	transport := &stubTransport{}
	backend := &stubBackend{statusErr: pkgerrors.New(pkgerrors.CodeNotFound, "user not found")}
	resolver := newTestResolver(t, transport, backend, &stubIssuer{})

	err := resolver.Resolve(context.Background(), pressed("notifications_menu"))
	require.NoError(t, err)

	require.Equal(t, notificationsMenuText(false, true), transport.edits[0].Text)
}

func TestResolveNotificationsToggle(t *testing.T) {
	transport := &stubTransport{}
	backend := &stubBackend{}
	resolver := newTestResolver(t, transport, backend, &stubIssuer{})

	err := resolver.Resolve(context.Background(), pressed("notifications_off"))
	require.NoError(t, err)

	require.Equal(t, []bool{false}, backend.setCalls)
	require.Equal(t, []string{toastDisabling}, transport.answers)
	require.Equal(t, notificationsToggledText(false), transport.edits[0].Text)
}

func TestResolveNotificationsToggleFailure(t *testing.T) {
	transport := &stubTransport{}
	backend := &stubBackend{setErr: pkgerrors.New(pkgerrors.CodeDependency, "connect refused")}
	resolver := newTestResolver(t, transport, backend, &stubIssuer{})

	err := resolver.Resolve(context.Background(), pressed("notifications_on"))
	require.NoError(t, err)

	require.Empty(t, transport.edits)
	require.Equal(t, settingsFailedText, transport.sent[0].Text)
}

func TestResolveShowInfoAndBack(t *testing.T) {
	transport := &stubTransport{}
	resolver := newTestResolver(t, transport, &stubBackend{}, &stubIssuer{})

	require.NoError(t, resolver.Resolve(context.Background(), pressed("show_info")))
	require.NoError(t, resolver.Resolve(context.Background(), pressed("back_to_main")))

	require.Len(t, transport.edits, 2)
	require.Equal(t, infoText, transport.edits[0].Text)
	require.Equal(t, MainMenuText("Ivan"), transport.edits[1].Text)
	require.NotNil(t, transport.edits[1].ReplyMarkup)
}
