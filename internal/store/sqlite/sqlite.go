package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

//go:embed schema.sql
var schema string

const dsnOptions = "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// Migrate applies the embedded schema. It is idempotent.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// New opens the database at dbPath and applies the schema.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, Migrate)
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Tests pass Migrate together with ":memory:".
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+dsnOptions)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// A single connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

func newPublicID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// ==== UserStore implementation ====

const userColumns = `id, uuid, username, email, password_hash, created_at`

func scanUser(row *sql.Row) (*store.User, error) {
	var user store.User
	err := row.Scan(
		&user.ID,
		&user.UUID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &user, nil
}

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, email, passwordHash string) (*store.User, error) {
	query := `
		INSERT INTO users (uuid, username, email, password_hash)
		VALUES (?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, newPublicID(), username, email, passwordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("insert user: %w", store.ErrConflict)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

// GetUserByUUID retrieves a user by its public UUID.
func (s *SQLiteStore) GetUserByUUID(ctx context.Context, id string) (*store.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE uuid = ?`, id))
}

// GetUserByEmail retrieves a user by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username))
}

// ==== RoomStore implementation ====

// CreateRoom creates a room and adds the owner as its first member.
func (s *SQLiteStore) CreateRoom(ctx context.Context, name string, global bool, ownerID int64) (*store.Room, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	publicID := newPublicID()
	result, err := tx.ExecContext(ctx, `
		INSERT INTO rooms (uuid, name, owner_id, global)
		VALUES (?, ?, ?, ?)
	`, publicID, name, ownerID, global)
	if err != nil {
		return nil, fmt.Errorf("insert room: %w", err)
	}

	roomID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	// The owner is a member even of global rooms.
	if _, err := tx.ExecContext(ctx, `INSERT INTO room_members (room_id, user_id) VALUES (?, ?)`, roomID, ownerID); err != nil {
		return nil, fmt.Errorf("add owner to members: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return s.GetRoomByUUID(ctx, publicID)
}

// GetRoomByUUID retrieves a room by its public UUID.
func (s *SQLiteStore) GetRoomByUUID(ctx context.Context, id string) (*store.Room, error) {
	query := `
		SELECT r.id, r.uuid, r.name, r.owner_id, u.username, r.global, r.created_at
		FROM rooms r
		JOIN users u ON u.id = r.owner_id
		WHERE r.uuid = ?
	`
	var room store.Room
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&room.ID,
		&room.UUID,
		&room.Name,
		&room.OwnerID,
		&room.OwnerName,
		&room.Global,
		&room.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("room: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query room: %w", err)
	}

	return &room, nil
}

// ListRooms lists global rooms and rooms the user is a member of.
func (s *SQLiteStore) ListRooms(ctx context.Context, userID int64) ([]*store.Room, error) {
	query := `
		SELECT r.id, r.uuid, r.name, r.owner_id, u.username, r.global, r.created_at
		FROM rooms r
		JOIN users u ON u.id = r.owner_id
		WHERE r.global
		   OR EXISTS (
				SELECT 1 FROM room_members m
				WHERE m.room_id = r.id AND m.user_id = ?
		   )
		ORDER BY r.id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer rows.Close()

	rooms := make([]*store.Room, 0)
	for rows.Next() {
		var room store.Room
		if err := rows.Scan(&room.ID, &room.UUID, &room.Name, &room.OwnerID, &room.OwnerName, &room.Global, &room.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms = append(rooms, &room)
	}

	return rooms, rows.Err()
}

// AddMember adds a user to a room.
func (s *SQLiteStore) AddMember(ctx context.Context, userID, roomID int64) error {
	query := `
		INSERT OR IGNORE INTO room_members (room_id, user_id)
		VALUES (?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, roomID, userID); err != nil {
		return fmt.Errorf("insert room member: %w", err)
	}

	return nil
}

// IsMember reports whether the room is global or the user belongs to it.
// An unknown room is reported as not a member.
func (s *SQLiteStore) IsMember(ctx context.Context, userID, roomID int64) (bool, error) {
	query := `
		SELECT r.global OR EXISTS (
			SELECT 1 FROM room_members m
			WHERE m.user_id = ? AND m.room_id = r.id
		)
		FROM rooms r
		WHERE r.id = ?
	`
	var member bool
	err := s.db.QueryRowContext(ctx, query, userID, roomID).Scan(&member)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query membership: %w", err)
	}

	return member, nil
}

// ==== MessageStore implementation ====

// SaveMessage persists msg and fills in ID, SentAt and Sender.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *store.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	var sender string
	if err := tx.QueryRowContext(ctx, `SELECT username FROM users WHERE id = ?`, msg.UserID).Scan(&sender); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("message sender: %w", store.ErrNotFound)
		}
		return fmt.Errorf("query sender: %w", err)
	}

	id := uuid.NewString()
	sentAt := time.Now().UTC()

	query := `
		INSERT INTO messages (uuid, room_id, user_id, kind, content, sent_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	if _, err := tx.ExecContext(ctx, query, id, msg.RoomID, msg.UserID, msg.Kind, msg.Content, sentAt); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	msg.ID = id
	msg.SentAt = sentAt
	msg.Sender = sender
	return nil
}

// ListMessages returns a room's messages in chronological order.
func (s *SQLiteStore) ListMessages(ctx context.Context, roomID int64, limit int) ([]*store.Message, error) {
	if limit <= 0 {
		limit = -1 // sqlite: no limit
	}

	query := `
		SELECT m.uuid, m.room_id, m.user_id, u.username, m.kind, m.content, m.sent_at
		FROM messages m
		JOIN users u ON u.id = m.user_id
		WHERE m.room_id = ?
		ORDER BY m.seq DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*store.Message, 0)
	for rows.Next() {
		var msg store.Message
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.UserID, &msg.Sender, &msg.Kind, &msg.Content, &msg.SentAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, &msg)
	}

	// Reverse to get chronological order
	for i := range len(messages) / 2 {
		messages[i], messages[len(messages)-1-i] = messages[len(messages)-1-i], messages[i]
	}

	return messages, rows.Err()
}

// ==== FriendStore implementation ====

// CreateFriendRequest records a pending friend request.
func (s *SQLiteStore) CreateFriendRequest(ctx context.Context, senderID, receiverID int64) error {
	query := `
		INSERT INTO friend_requests (sender_id, receiver_id)
		VALUES (?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, senderID, receiverID); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert friend request: %w", store.ErrConflict)
		}
		return fmt.Errorf("insert friend request: %w", err)
	}
	return nil
}

// AcceptFriendRequest turns a pending request into a friendship.
func (s *SQLiteStore) AcceptFriendRequest(ctx context.Context, senderID, receiverID int64) error {
	first, second := senderID, receiverID
	if first > second {
		first, second = second, first
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	result, err := tx.ExecContext(ctx, `DELETE FROM friend_requests WHERE sender_id = ? AND receiver_id = ?`, senderID, receiverID)
	if err != nil {
		return fmt.Errorf("delete friend request: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("friend request: %w", store.ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO friendships (user_first, user_second) VALUES (?, ?)`, first, second); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert friendship: %w", store.ErrConflict)
		}
		return fmt.Errorf("insert friendship: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ListFriendRequests lists requests addressed to the user.
func (s *SQLiteStore) ListFriendRequests(ctx context.Context, receiverID int64) ([]*store.FriendRequest, error) {
	query := `
		SELECT u.id, u.uuid, u.username, fr.created_at
		FROM friend_requests fr
		JOIN users u ON u.id = fr.sender_id
		WHERE fr.receiver_id = ?
		ORDER BY fr.created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, receiverID)
	if err != nil {
		return nil, fmt.Errorf("query friend requests: %w", err)
	}
	defer rows.Close()

	requests := make([]*store.FriendRequest, 0)
	for rows.Next() {
		var req store.FriendRequest
		if err := rows.Scan(&req.SenderID, &req.SenderUUID, &req.SenderUsername, &req.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan friend request: %w", err)
		}
		requests = append(requests, &req)
	}

	return requests, rows.Err()
}

// ListFriends lists accepted friendships of the user.
func (s *SQLiteStore) ListFriends(ctx context.Context, userID int64) ([]*store.Friend, error) {
	query := `
		SELECT u.id, u.uuid, u.username
		FROM friendships f
		JOIN users u
		  ON (u.id = f.user_first AND f.user_second = ?)
		  OR (u.id = f.user_second AND f.user_first = ?)
		ORDER BY u.username ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("query friends: %w", err)
	}
	defer rows.Close()

	friends := make([]*store.Friend, 0)
	for rows.Next() {
		var f store.Friend
		if err := rows.Scan(&f.UserID, &f.UUID, &f.Username); err != nil {
			return nil, fmt.Errorf("scan friend: %w", err)
		}
		friends = append(friends, &f)
	}

	return friends, rows.Err()
}

// AreFriends reports whether two users are friends.
func (s *SQLiteStore) AreFriends(ctx context.Context, userID, otherID int64) (bool, error) {
	first, second := userID, otherID
	if first > second {
		first, second = second, first
	}

	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM friendships WHERE user_first = ? AND user_second = ?`, first, second).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query friendship: %w", err)
	}
	return true, nil
}

// ==== AdmissionStore implementation ====

// SaveAdmission records a freshly issued admission token.
func (s *SQLiteStore) SaveAdmission(ctx context.Context, a store.Admission) error {
	query := `
		INSERT INTO admission_tokens (token, room_id, user_id, expires_at)
		VALUES (?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, a.Token, a.RoomID, a.UserID, a.ExpiresAt.UnixMilli()); err != nil {
		return fmt.Errorf("insert admission token: %w", err)
	}
	return nil
}

// ConsumeAdmission checks and deletes the token in a single statement, so
// two concurrent consumers can never both observe the row. An expired
// token is deleted whichever room it is presented for; a live token
// presented for another room is kept.
func (s *SQLiteStore) ConsumeAdmission(ctx context.Context, token string, roomID int64, now time.Time) (int64, bool, error) {
	query := `
		DELETE FROM admission_tokens
		WHERE token = ?
		  AND (room_id = ? OR expires_at <= ?)
		RETURNING user_id, room_id, expires_at
	`
	nowMs := now.UnixMilli()

	var (
		userID    int64
		boundRoom int64
		expiresAt int64
	)
	err := s.db.QueryRowContext(ctx, query, token, roomID, nowMs).Scan(&userID, &boundRoom, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("consume admission token: %w", err)
	}
	if expiresAt <= nowMs || boundRoom != roomID {
		return 0, false, nil
	}
	return userID, true, nil
}

// PurgeExpiredAdmissions removes every token expired at now.
func (s *SQLiteStore) PurgeExpiredAdmissions(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM admission_tokens WHERE expires_at <= ?`, now.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("purge admission tokens: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return n, nil
}
