// Package callbacks decodes inline-button presses and resolves them
// into backend mutations and message edits.
package callbacks

import (
	"errors"
	"fmt"
	"strings"
)

// Verb is the closed set of actions a button can carry.
type Verb string

const (
	VerbJoinAccept        Verb = "join_accept"
	VerbJoinReject        Verb = "join_reject"
	VerbInviteAccept      Verb = "invite_accept"
	VerbInviteReject      Verb = "invite_reject"
	VerbGetToken          Verb = "get_token"
	VerbNotificationsMenu Verb = "notifications_menu"
	VerbNotificationsOn   Verb = "notifications_on"
	VerbNotificationsOff  Verb = "notifications_off"
	VerbShowInfo          Verb = "show_info"
	VerbBackToMain        Verb = "back_to_main"
)

// ErrUnrecognized marks callback data outside the closed verb set.
var ErrUnrecognized = errors.New("unrecognized callback action")

// Action is one decoded button press. TeamID and CorrelationID are set
// only for the join/invite verbs.
type Action struct {
	Verb          Verb
	TeamID        string
	CorrelationID string
}

// Accept reports whether the verb approves (vs. rejects) its subject.
func (a Action) Accept() bool {
	return a.Verb == VerbJoinAccept || a.Verb == VerbInviteAccept
}

// Join reports whether the verb targets a join request (vs. an invite).
func (a Action) Join() bool {
	return a.Verb == VerbJoinAccept || a.Verb == VerbJoinReject
}

// Decode parses the wire encoding: "{verb}:{teamId}:{correlationId}"
// for the join/invite verbs, a bare verb for everything else. The verb
// set is closed; anything outside it decodes to ErrUnrecognized so the
// caller can acknowledge the press explicitly.
func Decode(data string) (Action, error) {
	parts := strings.Split(data, ":")
	switch len(parts) {
	case 1:
		switch Verb(parts[0]) {
		case VerbGetToken, VerbNotificationsMenu, VerbNotificationsOn, VerbNotificationsOff, VerbShowInfo, VerbBackToMain:
			return Action{Verb: Verb(parts[0])}, nil
		}
	case 3:
		switch Verb(parts[0]) {
		case VerbJoinAccept, VerbJoinReject, VerbInviteAccept, VerbInviteReject:
			if parts[1] == "" || parts[2] == "" {
				break
			}
			return Action{Verb: Verb(parts[0]), TeamID: parts[1], CorrelationID: parts[2]}, nil
		}
	}
	return Action{}, fmt.Errorf("%w: %q", ErrUnrecognized, data)
}
