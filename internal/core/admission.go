package core

import (
	"context"
	"fmt"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/store"
	"github.com/vovakirdan/wirechat-rooms/internal/utils"
)

// AdmissionTTL is how long an issued admission token stays consumable.
// It covers the round trip from issue to websocket handshake.
const AdmissionTTL = 30 * time.Second

// AdmissionToken binds one identity to one room for one stream upgrade.
type AdmissionToken struct {
	Token     string
	RoomID    int64
	UserID    int64
	ExpiresAt time.Time
}

// Membership answers whether a user may enter a room.
type Membership interface {
	IsMember(ctx context.Context, userID, roomID int64) (bool, error)
}

// Admissions issues and consumes single-use stream admission tokens.
type Admissions struct {
	store   store.AdmissionStore
	members Membership
	log     *zerolog.Logger
	now     func() time.Time
}

// NewAdmissions builds an admission service over the given token store.
func NewAdmissions(st store.AdmissionStore, members Membership, logger *zerolog.Logger) *Admissions {
	return &Admissions{
		store:   st,
		members: members,
		log:     logger,
		now:     time.Now,
	}
}

// Issue re-checks membership and records a fresh token for userID in roomID.
func (a *Admissions) Issue(ctx context.Context, userID, roomID int64) (AdmissionToken, error) {
	if !authorize(ctx, a.members, a.log, userID, roomID) {
		return AdmissionToken{}, ErrNotMember
	}

	token, err := utils.NewToken()
	if err != nil {
		return AdmissionToken{}, fmt.Errorf("generate admission token: %w", err)
	}

	tok := AdmissionToken{
		Token:     token,
		RoomID:    roomID,
		UserID:    userID,
		ExpiresAt: a.now().Add(AdmissionTTL),
	}
	if err := a.store.SaveAdmission(ctx, store.Admission(tok)); err != nil {
		return AdmissionToken{}, fmt.Errorf("save admission token: %w", err)
	}

	a.log.Debug().Int64("user_id", userID).Int64("room_id", roomID).Msg("admission token issued")
	return tok, nil
}

// Consume atomically validates and invalidates token for roomID, returning
// the identity it was issued to. Every failure mode yields ErrTokenRejected.
func (a *Admissions) Consume(ctx context.Context, token string, roomID int64) (int64, error) {
	if token == "" {
		return 0, ErrTokenRejected
	}

	userID, ok, err := a.store.ConsumeAdmission(ctx, token, roomID, a.now())
	if err != nil {
		return 0, fmt.Errorf("consume admission token: %w", err)
	}
	if !ok {
		return 0, ErrTokenRejected
	}
	return userID, nil
}

// PurgeExpired drops tokens that expired without being consumed.
func (a *Admissions) PurgeExpired(ctx context.Context) (int64, error) {
	return a.store.PurgeExpiredAdmissions(ctx, a.now())
}

// authorize treats a failed membership lookup as "not a member".
func authorize(ctx context.Context, members Membership, logger *zerolog.Logger, userID, roomID int64) bool {
	ok, err := members.IsMember(ctx, userID, roomID)
	if err != nil {
		logger.Warn().Err(err).Int64("user_id", userID).Int64("room_id", roomID).Msg("membership check failed, denying")
		return false
	}
	return ok
}

// MemoryAdmissionStore keeps admission tokens in process memory.
type MemoryAdmissionStore struct {
	tokens *xsync.MapOf[string, store.Admission]
}

// NewMemoryAdmissionStore builds an empty in-memory token store.
func NewMemoryAdmissionStore() *MemoryAdmissionStore {
	return &MemoryAdmissionStore{tokens: xsync.NewMapOf[string, store.Admission]()}
}

// SaveAdmission records a token.
func (m *MemoryAdmissionStore) SaveAdmission(_ context.Context, a store.Admission) error {
	m.tokens.Store(a.Token, a)
	return nil
}

// ConsumeAdmission performs lookup, expiry check, room check and delete
// under the map's per-key lock. Expired records are deleted on sight.
func (m *MemoryAdmissionStore) ConsumeAdmission(_ context.Context, token string, roomID int64, now time.Time) (int64, bool, error) {
	var (
		userID   int64
		consumed bool
	)
	m.tokens.Compute(token, func(old store.Admission, loaded bool) (store.Admission, bool) {
		if !loaded {
			return old, true
		}
		if !now.Before(old.ExpiresAt) {
			return old, true
		}
		if old.RoomID != roomID {
			return old, false
		}
		userID = old.UserID
		consumed = true
		return old, true
	})
	return userID, consumed, nil
}

// PurgeExpiredAdmissions removes every token expired at now.
func (m *MemoryAdmissionStore) PurgeExpiredAdmissions(_ context.Context, now time.Time) (int64, error) {
	var purged int64
	m.tokens.Range(func(token string, a store.Admission) bool {
		if !now.Before(a.ExpiresAt) {
			m.tokens.Compute(token, func(cur store.Admission, loaded bool) (store.Admission, bool) {
				if loaded && !now.Before(cur.ExpiresAt) {
					purged++
					return cur, true
				}
				return cur, !loaded
			})
		}
		return true
	})
	return purged, nil
}

// Len returns the number of stored tokens, expired ones included.
func (m *MemoryAdmissionStore) Len() int {
	return m.tokens.Size()
}
