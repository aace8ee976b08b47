package usecase

import (
	"fmt"

	"tradechat/internal/domain/entity"
)

// ConversationKey derives the stable identifier for the conversation
// between two participants. The key is commutative: the lower id always
// comes first, so both sides of an exchange compute the same value.
func ConversationKey(a, b string) (string, error) {
	if !entity.ValidUserID(a) {
		return "", fmt.Errorf("invalid participant id %q", a)
	}
	if !entity.ValidUserID(b) {
		return "", fmt.Errorf("invalid participant id %q", b)
	}
	if a == b {
		return "", fmt.Errorf("participants must differ")
	}
	if a < b {
		return a + "_" + b, nil
	}
	return b + "_" + a, nil
}
