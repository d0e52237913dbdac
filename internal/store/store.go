package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a looked-up record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique constraint rejects a write.
	ErrConflict = errors.New("conflict")
)

// User represents a registered user.
type User struct {
	ID           int64
	UUID         string
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Room represents a chat room.
type Room struct {
	ID        int64
	UUID      string
	Name      string
	OwnerID   int64
	OwnerName string
	Global    bool // global rooms are open to every user
	CreatedAt time.Time
}

// Message represents a persisted chat message.
type Message struct {
	ID      string // UUID assigned by SaveMessage
	RoomID  int64
	UserID  int64
	Sender  string // username of UserID, filled by SaveMessage and ListMessages
	Kind    string
	Content string
	SentAt  time.Time
}

// Friend is the other side of an accepted friendship.
type Friend struct {
	UserID   int64
	UUID     string
	Username string
}

// FriendRequest is a pending request addressed to a user.
type FriendRequest struct {
	SenderID       int64
	SenderUUID     string
	SenderUsername string
	CreatedAt      time.Time
}

// Admission is a stored stream admission token.
type Admission struct {
	Token     string
	RoomID    int64
	UserID    int64
	ExpiresAt time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user; ErrConflict on duplicate email or username.
	CreateUser(ctx context.Context, username, email, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUUID retrieves a user by its public UUID.
	GetUserByUUID(ctx context.Context, uuid string) (*User, error)

	// GetUserByEmail retrieves a user by email.
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)
}

// RoomStore handles room persistence.
type RoomStore interface {
	// CreateRoom creates a room and adds the owner as a member.
	CreateRoom(ctx context.Context, name string, global bool, ownerID int64) (*Room, error)

	// GetRoomByUUID retrieves a room by its public UUID.
	GetRoomByUUID(ctx context.Context, uuid string) (*Room, error)

	// ListRooms lists global rooms and rooms the user is a member of.
	ListRooms(ctx context.Context, userID int64) ([]*Room, error)

	// AddMember adds a user to a room. Adding twice is a no-op.
	AddMember(ctx context.Context, userID, roomID int64) error

	// IsMember reports whether the room is global or the user belongs to it.
	IsMember(ctx context.Context, userID, roomID int64) (bool, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// SaveMessage persists msg, assigning ID, SentAt and Sender.
	SaveMessage(ctx context.Context, msg *Message) error

	// ListMessages returns a room's messages in chronological order.
	// limit <= 0 returns all messages.
	ListMessages(ctx context.Context, roomID int64, limit int) ([]*Message, error)
}

// FriendStore handles friend requests and friendships.
type FriendStore interface {
	// CreateFriendRequest records a request; ErrConflict if it already exists.
	CreateFriendRequest(ctx context.Context, senderID, receiverID int64) error

	// AcceptFriendRequest removes the pending request and creates the
	// friendship in one transaction. ErrNotFound if no request exists.
	AcceptFriendRequest(ctx context.Context, senderID, receiverID int64) error

	// ListFriendRequests lists requests addressed to the user.
	ListFriendRequests(ctx context.Context, receiverID int64) ([]*FriendRequest, error)

	// ListFriends lists accepted friendships of the user.
	ListFriends(ctx context.Context, userID int64) ([]*Friend, error)

	// AreFriends reports whether two users are friends.
	AreFriends(ctx context.Context, userID, otherID int64) (bool, error)
}

// AdmissionStore persists stream admission tokens.
type AdmissionStore interface {
	// SaveAdmission records a freshly issued token.
	SaveAdmission(ctx context.Context, a Admission) error

	// ConsumeAdmission deletes the token in one statement if it exists, is
	// bound to roomID and has not expired at now. It returns the bound user
	// and whether the deletion happened.
	ConsumeAdmission(ctx context.Context, token string, roomID int64, now time.Time) (int64, bool, error)

	// PurgeExpiredAdmissions removes every token expired at now.
	PurgeExpiredAdmissions(ctx context.Context, now time.Time) (int64, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	RoomStore
	MessageStore
	FriendStore
	AdmissionStore

	// Close closes the underlying database connection.
	Close() error
}
