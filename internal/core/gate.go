package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

// RoomResolver maps an external room reference to its internal ID.
type RoomResolver interface {
	ResolveRoom(ctx context.Context, ref string) (int64, error)
}

// RoomResolverFunc adapts a function to RoomResolver.
type RoomResolverFunc func(ctx context.Context, ref string) (int64, error)

// ResolveRoom calls f.
func (f RoomResolverFunc) ResolveRoom(ctx context.Context, ref string) (int64, error) {
	return f(ctx, ref)
}

// StoreRoomResolver resolves room UUIDs through the room store.
func StoreRoomResolver(rooms store.RoomStore) RoomResolver {
	return RoomResolverFunc(func(ctx context.Context, ref string) (int64, error) {
		room, err := rooms.GetRoomByUUID(ctx, ref)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return 0, ErrRoomNotFound
			}
			return 0, err
		}
		return room.ID, nil
	})
}

// AdmissionState is the outcome of one stream entry attempt.
type AdmissionState int

const (
	// AdmissionPending is the state while Admit is running.
	AdmissionPending AdmissionState = iota
	// AdmissionAdmitted means the caller holds a live subscription.
	AdmissionAdmitted
	// AdmissionRejected is terminal; a new attempt needs a new token.
	AdmissionRejected
)

func (s AdmissionState) String() string {
	switch s {
	case AdmissionPending:
		return "pending"
	case AdmissionAdmitted:
		return "admitted"
	case AdmissionRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Admission is one stream entry attempt. Once admitted the caller owns
// Subscriber and must hand it to Deliver or call Release.
type Admission struct {
	State      AdmissionState
	RoomID     int64
	UserID     int64
	Hub        *Hub
	Subscriber *Subscriber
}

// Release unsubscribes without delivering, for when the transport upgrade
// fails after admission. It is a no-op for a rejected attempt.
func (a *Admission) Release() {
	if a == nil || a.Hub == nil {
		return
	}
	a.Hub.Unsubscribe(a.Subscriber)
}

func (a *Admission) settle(state AdmissionState) {
	if a.State != AdmissionPending {
		panic(fmt.Sprintf("admission already %s", a.State))
	}
	a.State = state
}

func (a *Admission) reject(err error) (*Admission, error) {
	a.settle(AdmissionRejected)
	return a, err
}

// Gate admits stream connections into rooms.
type Gate struct {
	rooms      RoomResolver
	admissions *Admissions
	registry   *Registry
	log        *zerolog.Logger
}

// NewGate builds a stream entry gate.
func NewGate(rooms RoomResolver, admissions *Admissions, registry *Registry, logger *zerolog.Logger) *Gate {
	return &Gate{
		rooms:      rooms,
		admissions: admissions,
		registry:   registry,
		log:        logger,
	}
}

// Admit resolves roomRef, consumes token and subscribes to the room's hub.
// It returns ErrRoomNotFound or ErrTokenRejected before any subscription
// exists, so the caller can refuse the upgrade cleanly. The returned
// Admission is never nil; on error it is AdmissionRejected and holds no
// subscription.
func (g *Gate) Admit(ctx context.Context, roomRef, token string) (*Admission, error) {
	adm := &Admission{State: AdmissionPending}

	roomID, err := g.rooms.ResolveRoom(ctx, roomRef)
	if err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			return adm.reject(ErrRoomNotFound)
		}
		return adm.reject(fmt.Errorf("resolve room: %w", err))
	}
	adm.RoomID = roomID

	userID, err := g.admissions.Consume(ctx, token, roomID)
	if err != nil {
		g.log.Debug().Err(err).Int64("room_id", roomID).Msg("stream admission rejected")
		return adm.reject(err)
	}

	adm.UserID = userID
	adm.Hub = g.registry.Hub(roomID)
	adm.Subscriber = adm.Hub.Subscribe()
	adm.settle(AdmissionAdmitted)
	return adm, nil
}
