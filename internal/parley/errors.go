package parley

import (
	"errors"
	"fmt"

	"github.com/colonyops/parley/internal/core/chat"
)

var domainErrors = []error{
	chat.ErrAuthenticationFailed,
	chat.ErrRoomNotFound,
	chat.ErrNotAMember,
	chat.ErrAccountExists,
	chat.ErrAccountNotFound,
	chat.ErrRoomExists,
	chat.ErrMessageNotFound,
	chat.ErrForbidden,
	chat.ErrInvalidInput,
}

// storeErr passes domain errors through and marks anything else as a
// collaborator failure.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return err
		}
	}
	return fmt.Errorf("%s: %w: %w", op, chat.ErrStoreUnavailable, err)
}
