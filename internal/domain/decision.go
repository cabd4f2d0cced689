package domain

import (
	"fmt"
	"strings"
	"time"
)

// Action is a reviewer decision action carried inside a channel token.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

func (a Action) String() string { return string(a) }

func (a Action) IsValid() bool {
	return a == ActionApprove || a == ActionReject
}

func ParseActionFromString(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	if !a.IsValid() {
		return "", fmt.Errorf("%w: invalid action %q", ErrValidation, s)
	}
	return a, nil
}

// Decision is the recorded approve/reject outcome for one batch item.
// Decisions live only in process memory for the lifetime of the batch's
// completion monitor; a restart loses in-flight decisions.
type Decision struct {
	BatchID           string
	ItemIndex         int
	Approved          bool
	ChannelMessageRef string
	RemoteAssetID     string
	RecordedAt        time.Time
}
