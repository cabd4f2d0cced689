package channel

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/creativeops/review-engine/internal/domain"
)

const tokenSeparator = "||"

// ActionToken is the opaque state carried through the review channel on each
// approve/reject button. It is self-describing: a decision can be fully
// reconstructed from the token alone, with no extra lookups.
type ActionToken struct {
	Action        domain.Action
	BatchID       string
	ItemIndex     int
	RemoteAssetID string
}

// Encode renders the wire form action||batchId||itemIndex||remoteAssetId.
func (t ActionToken) Encode() string {
	return strings.Join([]string{
		t.Action.String(),
		t.BatchID,
		strconv.Itoa(t.ItemIndex),
		t.RemoteAssetID,
	}, tokenSeparator)
}

// ParseActionToken decodes a wire token. The asset id segment may be empty
// for items whose upload never completed.
func ParseActionToken(raw string) (ActionToken, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ActionToken{}, fmt.Errorf("%w: empty action token", domain.ErrValidation)
	}

	parts := strings.Split(trimmed, tokenSeparator)
	if len(parts) != 4 {
		return ActionToken{}, fmt.Errorf("%w: malformed action token %q", domain.ErrValidation, raw)
	}

	action, err := domain.ParseActionFromString(parts[0])
	if err != nil {
		return ActionToken{}, err
	}

	batchID := strings.TrimSpace(parts[1])
	if batchID == "" {
		return ActionToken{}, fmt.Errorf("%w: action token has no batch id", domain.ErrValidation)
	}

	index, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil || index < 0 {
		return ActionToken{}, fmt.Errorf("%w: invalid item index %q in action token", domain.ErrValidation, parts[2])
	}

	return ActionToken{
		Action:        action,
		BatchID:       batchID,
		ItemIndex:     index,
		RemoteAssetID: strings.TrimSpace(parts[3]),
	}, nil
}
