package chat

import "errors"

var (
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrRoomNotFound         = errors.New("room not found")
	ErrNotAMember           = errors.New("account is not a member of the room")
	ErrStoreUnavailable     = errors.New("store unavailable")

	// ErrOverflowDropped marks a message discarded by a full subscription
	// queue. It is only ever reported to diagnostics.
	ErrOverflowDropped = errors.New("message dropped: subscription queue full")

	// ErrSubscriptionClosed is returned by reads on a cancelled subscription.
	ErrSubscriptionClosed = errors.New("subscription closed")

	ErrAccountExists   = errors.New("account already exists")
	ErrAccountNotFound = errors.New("account not found")
	ErrRoomExists      = errors.New("room already exists")
	ErrMessageNotFound = errors.New("message not found")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidInput    = errors.New("invalid input")
)
