// Package notify parses notification payloads from the event stream
// and renders them onto the chat transport.
package notify

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	pkgerrors "github.com/itamhq/teambot/pkg/errors"
)

// Type is the closed set of structured notification kinds. Anything
// outside the set (or an absent type) is a generic announcement.
type Type string

const (
	TypeJoinRequest    Type = "join_request"
	TypeTeamInvite     Type = "team_invite"
	TypeTeamAccepted   Type = "team_accepted"
	TypeTeamRejected   Type = "team_rejected"
	TypeInviteAccepted Type = "invite_accepted"
	TypeInviteRejected Type = "invite_rejected"
)

// Interactive reports whether the type renders with action buttons.
func (t Type) Interactive() bool {
	return t == TypeJoinRequest || t == TypeTeamInvite
}

// Targeted reports whether the type addresses a single user.
func (t Type) Targeted() bool {
	switch t {
	case TypeJoinRequest, TypeTeamInvite, TypeTeamAccepted, TypeTeamRejected, TypeInviteAccepted, TypeInviteRejected:
		return true
	default:
		return false
	}
}

// ID is a correlation identifier. The producer writes ids as JSON
// numbers, older payloads as strings; both decode to the string form
// used in callback encodings.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*id = ""
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// Notification is the parsed stream payload.
type Notification struct {
	Message      string `json:"message" validate:"required"`
	Type         Type   `json:"type,omitempty"`
	TargetUserID ID     `json:"targetUserId,omitempty"`
	RequestID    ID     `json:"requestId,omitempty"`
	InviteID     ID     `json:"inviteId,omitempty"`
	TeamID       ID     `json:"teamId,omitempty"`
	TeamName     string `json:"teamName,omitempty"`
	UserName     string `json:"userName,omitempty"`
	InviterName  string `json:"inviterName,omitempty"`
}

// TargetChatID returns the Telegram chat id for targeted delivery.
func (n *Notification) TargetChatID() (int64, bool) {
	if n.TargetUserID == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(string(n.TargetUserID), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// CorrelationID is the id encoded into invite buttons: the invite id
// when present, the request id otherwise.
func (n *Notification) CorrelationID() ID {
	if n.InviteID != "" {
		return n.InviteID
	}
	return n.RequestID
}

var validate = validator.New()

// Parse decodes one stream payload. A payload that is not JSON or has
// no message text cannot be rendered even as a fallback and is
// rejected.
func Parse(payload string) (*Notification, error) {
	var n Notification
	decoder := json.NewDecoder(strings.NewReader(payload))
	if err := decoder.Decode(&n); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "payload is not valid json")
	}
	if err := validate.Struct(&n); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "payload missing required fields")
	}
	return &n, nil
}
