// Package chat defines the domain types shared by parley's stores, services,
// and transports.
package chat

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type (
	RoomID    int64
	AccountID int64
	MessageID int64
)

// MaxContentSize is the default upper bound for message content in bytes.
const MaxContentSize = 64 << 10

// Message is a single chat message. Values are snapshots: fan-out hands
// every subscriber its own copy.
type Message struct {
	ID       MessageID  `json:"id"`
	RoomID   RoomID     `json:"room_id"`
	SenderID AccountID  `json:"sender_id"`
	Content  string     `json:"content"`
	SentAt   time.Time  `json:"sent_at"`
	ReplyTo  *MessageID `json:"reply_to,omitempty"`
	IsMedia  bool       `json:"is_media"`
	EditedAt *time.Time `json:"edited_at,omitempty"`
}

// Account is a registered user. The credential hash stays in the store.
type Account struct {
	ID        AccountID `json:"id"`
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	Profile   string    `json:"profile,omitempty"`
	Bio       string    `json:"bio,omitempty"`
	Status    string    `json:"status,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Room is a named chat.
type Room struct {
	ID        RoomID    `json:"id"`
	Name      string    `json:"name"`
	Title     string    `json:"title"`
	About     string    `json:"about,omitempty"`
	OwnerID   AccountID `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// RoomRef addresses a room either by id or by name. ID takes precedence.
type RoomRef struct {
	ID   RoomID
	Name string
}

// ParseRoomRef interprets s as a room id when it is all digits, otherwise as
// a room name.
func ParseRoomRef(s string) RoomRef {
	s = strings.TrimSpace(s)
	if id, err := strconv.ParseInt(s, 10, 64); err == nil && id > 0 {
		return RoomRef{ID: RoomID(id)}
	}
	return RoomRef{Name: s}
}

// IsZero reports whether the reference names no room.
func (r RoomRef) IsZero() bool {
	return r.ID <= 0 && r.Name == ""
}

func (r RoomRef) String() string {
	if r.ID > 0 {
		return fmt.Sprintf("#%d", r.ID)
	}
	return r.Name
}
