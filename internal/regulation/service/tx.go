package service

import (
	"context"
	"sync"
	"time"

	id "domus/pkg/domain"
	dErrors "domus/pkg/domain-errors"
)

// StoreTx provides the transactional boundary for the activation swap. The
// scope is the residence whose single-active invariant the transaction
// protects. Implementations may wrap a database transaction or, in-memory, a
// per-residence lock; fn observes the transaction through its context.
type StoreTx interface {
	RunInTx(ctx context.Context, scope id.ResidenceID, fn func(ctx context.Context) error) error
}

// numShards spreads residence locks so unrelated residences never contend.
const numShards = 128

// defaultTxTimeout is the maximum duration for an activation transaction.
const defaultTxTimeout = 5 * time.Second

// shardedTx serializes transactions per residence using sharded mutexes.
// Two swaps against the same residence take the same shard and execute one
// after the other, which is exactly the serialization the invariant needs.
type shardedTx struct {
	shards  [numShards]sync.Mutex
	timeout time.Duration
}

func newShardedTx() *shardedTx {
	return &shardedTx{timeout: defaultTxTimeout}
}

func (t *shardedTx) RunInTx(ctx context.Context, scope id.ResidenceID, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := hashFNV(scope.String()) % numShards
	t.shards[shard].Lock()
	defer t.shards[shard].Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	return fn(ctx)
}

// hashFNV is FNV-1a over the scope key.
func hashFNV(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}
