package service

import (
	"context"
	"hash/fnv"

	"github.com/google/uuid"
)

const lockShards = 128

// keyLocks serializes read-decide-write sequences per lobby id. Locks are
// sharded by id hash so operations on different lobbies rarely contend, and
// acquisition is channel-based so a waiting caller can still be cancelled.
type keyLocks struct {
	shards [lockShards]chan struct{}
}

func newKeyLocks() *keyLocks {
	kl := &keyLocks{}
	for i := range kl.shards {
		kl.shards[i] = make(chan struct{}, 1)
	}
	return kl
}

func (kl *keyLocks) shard(id uuid.UUID) chan struct{} {
	h := fnv.New32a()
	h.Write(id[:])
	return kl.shards[h.Sum32()%lockShards]
}

// acquire blocks until the lock for id is held or ctx is done. On success the
// returned release func must be called exactly once.
func (kl *keyLocks) acquire(ctx context.Context, id uuid.UUID) (release func(), err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ch := kl.shard(id)
	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
