package pending

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/and161185/fin-keeper/internal/errs"
	"github.com/and161185/fin-keeper/internal/kv"
)

// MutateFunc derives the next queue from the stored one. It may be called
// more than once and must not keep ops.
type MutateFunc func(ops []Operation) []Operation

// Repository persists the whole queue as one unit. It is shared by every
// process using the same data directory, so it is the source of truth.
type Repository interface {
	// Load returns nil, nil when nothing was stored yet.
	Load(ctx context.Context) ([]Operation, error)
	// Mutate applies fn to the stored queue atomically and returns the result.
	// An empty result removes the stored key.
	Mutate(ctx context.Context, fn MutateFunc) ([]Operation, error)
}

// KVRepository stores the queue as a JSON array under kv.KeyPendingOperations.
type KVRepository struct {
	store kv.Store
}

// NewKVRepository constructs a Repository over a key-value store.
func NewKVRepository(store kv.Store) *KVRepository {
	return &KVRepository{store: store}
}

func (r *KVRepository) Load(ctx context.Context) ([]Operation, error) {
	raw, err := r.store.Get(ctx, kv.KeyPendingOperations)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decode(raw)
}

// Mutate treats an undecodable blob as an empty queue so a corrupt key is
// replaced rather than wedging every writer.
func (r *KVRepository) Mutate(ctx context.Context, fn MutateFunc) ([]Operation, error) {
	var next []Operation
	err := r.store.Update(ctx, kv.KeyPendingOperations, func(cur []byte, found bool) ([]byte, error) {
		var ops []Operation
		if found {
			ops, _ = decode(cur)
		}
		next = fn(ops)
		if len(next) == 0 {
			return nil, nil
		}
		raw, err := json.Marshal(next)
		if err != nil {
			return nil, fmt.Errorf("encode pending operations: %w", err)
		}
		return raw, nil
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

func decode(raw []byte) ([]Operation, error) {
	var ops []Operation
	if err := json.Unmarshal(raw, &ops); err != nil {
		return nil, fmt.Errorf("decode pending operations: %w", err)
	}
	return ops, nil
}
