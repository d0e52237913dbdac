package friends

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

// Common errors for friend operations.
var (
	ErrCannotFriendSelf     = errors.New("cannot send friend request to yourself")
	ErrAlreadyFriends       = errors.New("already friends")
	ErrRequestAlreadyExists = errors.New("friend request already exists")
	ErrRequestNotFound      = errors.New("friend request not found")
	ErrUserNotFound         = errors.New("user not found")
)

// Store is the persistence the friends service needs.
type Store interface {
	store.UserStore
	store.FriendStore
}

// Service provides friend management business logic.
type Service struct {
	store Store
}

// New creates a new friends Service.
func New(st Store) *Service {
	return &Service{
		store: st,
	}
}

// SendRequest sends a friend request from senderID to the user named receiverUsername.
func (s *Service) SendRequest(ctx context.Context, senderID int64, receiverUsername string) (*store.User, error) {
	receiver, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(receiverUsername))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup receiver: %w", err)
	}
	if receiver.ID == senderID {
		return nil, ErrCannotFriendSelf
	}

	friends, err := s.store.AreFriends(ctx, senderID, receiver.ID)
	if err != nil {
		return nil, fmt.Errorf("check friendship: %w", err)
	}
	if friends {
		return nil, ErrAlreadyFriends
	}

	if err := s.store.CreateFriendRequest(ctx, senderID, receiver.ID); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrRequestAlreadyExists
		}
		return nil, fmt.Errorf("create friend request: %w", err)
	}

	return receiver, nil
}

// AcceptRequest accepts the pending request the user identified by senderUUID
// sent to receiverID.
func (s *Service) AcceptRequest(ctx context.Context, receiverID int64, senderUUID string) (*store.User, error) {
	sender, err := s.store.GetUserByUUID(ctx, senderUUID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("lookup sender: %w", err)
	}

	if err := s.store.AcceptFriendRequest(ctx, sender.ID, receiverID); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return nil, ErrRequestNotFound
		case errors.Is(err, store.ErrConflict):
			return nil, ErrAlreadyFriends
		}
		return nil, fmt.Errorf("accept request: %w", err)
	}

	return sender, nil
}

// ListFriends returns all friends of a user.
func (s *Service) ListFriends(ctx context.Context, userID int64) ([]*store.Friend, error) {
	friends, err := s.store.ListFriends(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	return friends, nil
}

// ListPendingRequests returns incoming pending friend requests for a user.
func (s *Service) ListPendingRequests(ctx context.Context, userID int64) ([]*store.FriendRequest, error) {
	requests, err := s.store.ListFriendRequests(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	return requests, nil
}
