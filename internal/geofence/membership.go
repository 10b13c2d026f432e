package geofence

import (
	"context"

	"github.com/example/fleet-tracking/internal/cache"
)

// MembershipState is the persisted side of the per-(entity, zone)
// state machine.
type MembershipState string

const (
	StateOutside MembershipState = "outside"
	StateInside  MembershipState = "inside"
)

// MembershipStore persists membership records keyed by (entity, zone)
// so state survives process restarts. Get returns StateOutside for
// unknown pairs.
type MembershipStore interface {
	Get(ctx context.Context, entityID, zoneID string) (MembershipState, error)
	Set(ctx context.Context, entityID, zoneID string, state MembershipState) error
}

// KVMembershipStore stores membership records in the shared key-value
// collaborator (Redis in production, memory in tests).
type KVMembershipStore struct {
	kv cache.KV
}

func NewKVMembershipStore(kv cache.KV) *KVMembershipStore {
	return &KVMembershipStore{kv: kv}
}

func membershipKey(entityID, zoneID string) string {
	return "geofence:member:" + entityID + ":" + zoneID
}

func (s *KVMembershipStore) Get(ctx context.Context, entityID, zoneID string) (MembershipState, error) {
	b, err := s.kv.Get(ctx, membershipKey(entityID, zoneID))
	if err != nil {
		return StateOutside, err
	}
	if string(b) == string(StateInside) {
		return StateInside, nil
	}
	return StateOutside, nil
}

func (s *KVMembershipStore) Set(ctx context.Context, entityID, zoneID string, state MembershipState) error {
	// no TTL: membership is authoritative until the next flip
	return s.kv.SetWithTTL(ctx, membershipKey(entityID, zoneID), []byte(state), 0)
}
