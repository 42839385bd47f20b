package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/itamhq/teambot/pkg/config"
	pkgerrors "github.com/itamhq/teambot/pkg/errors"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(config.BackendConfig{BaseURL: srv.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)
	return client
}

func TestRegisterUser(t *testing.T) {
	var gotBody map[string]any
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/user/register", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"status":"ok","isNewUser":true}`))
	}))

	result, err := client.RegisterUser(context.Background(), 42, "alice")
	require.NoError(t, err)
	require.True(t, result.IsNewUser)
	require.EqualValues(t, 42, gotBody["telegramUserId"])
	require.Equal(t, "alice", gotBody["username"])
}

func TestNotificationStatusRoundTrip(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			require.Equal(t, "/api/bot/notifications/42", r.URL.Path)
			_, _ = w.Write([]byte(`{"notificationsEnabled":false,"name":"Alice"}`))
		case http.MethodPut:
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			require.Equal(t, true, body["enabled"])
			_, _ = w.Write([]byte(`{"success":true}`))
		}
	}))

	status, err := client.GetNotificationStatus(context.Background(), 42)
	require.NoError(t, err)
	require.False(t, status.Enabled)
	require.Equal(t, "Alice", status.Name)

	require.NoError(t, client.SetNotifications(context.Background(), 42, true))
}

func TestAuthorizedUsers(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/users/authorized", r.URL.Path)
		_, _ = w.Write([]byte(`{"users":[{"telegramUserId":1,"username":"a","authorized":true},{"telegramUserId":2,"username":"b","authorized":false}]}`))
	}))

	users, err := client.AuthorizedUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	require.True(t, users[0].Authorized)
	require.False(t, users[1].Authorized)
}

func TestRespondJoinRequestPaths(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"success":true}`))
	}))

	require.NoError(t, client.RespondJoinRequest(context.Background(), "7", "99", true))
	require.Equal(t, "/api/teams/7/join-requests/99", gotPath)
	require.Equal(t, true, gotBody["accepted"])
}

func TestRespondInvitePaths(t *testing.T) {
	var gotURLs []string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURLs = append(gotURLs, r.URL.String())
		_, _ = w.Write([]byte(`{"success":true}`))
	}))

	require.NoError(t, client.RespondInvite(context.Background(), "15", 42, true))
	require.NoError(t, client.RespondInvite(context.Background(), "15", 42, false))
	require.Equal(t, "/api/bot/invites/15/accept?telegramId=42", gotURLs[0])
	require.Equal(t, "/api/bot/invites/15/decline?telegramId=42", gotURLs[1])
}

func TestRejectionClassification(t *testing.T) {
	cases := []struct {
		name string
		body string
		code pkgerrors.Code
	}{
		{"already processed", `{"error":"join request already processed"}`, pkgerrors.CodeAlreadyProcessed},
		{"not found", `{"error":"request not found"}`, pkgerrors.CodeAlreadyProcessed},
		{"team full", `{"error":"team is full"}`, pkgerrors.CodeTeamFull},
		{"wrong invitee", `{"error":"not your invite"}`, pkgerrors.CodeNotYourInvite},
		{"unknown", `{"error":"something odd"}`, pkgerrors.CodeInternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusConflict)
				_, _ = w.Write([]byte(tc.body))
			}))
			err := client.RespondJoinRequest(context.Background(), "7", "99", true)
			require.Error(t, err)
			require.Equal(t, tc.code, pkgerrors.CodeOf(err))
		})
	}
}

func TestConnectivityFailureClassifiesDependency(t *testing.T) {
	client, err := NewClient(config.BackendConfig{BaseURL: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond})
	require.NoError(t, err)

	_, err = client.AuthorizedUsers(context.Background())
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeDependency, pkgerrors.CodeOf(err))
	require.True(t, pkgerrors.IsRetryable(err))
}
