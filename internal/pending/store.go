package pending

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/fin-keeper/internal/model"
)

const (
	// DefaultStaleAge is how long an update may wait before it is purged.
	DefaultStaleAge = 7 * 24 * time.Hour
	// DefaultMountLimit is the queue size above which EnforceLimit clears everything.
	DefaultMountLimit = 50
)

// Option configures a Store.
type Option func(*Store)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// WithStaleAge overrides DefaultStaleAge.
func WithStaleAge(d time.Duration) Option { return func(s *Store) { s.staleAge = d } }

// WithMountLimit overrides DefaultMountLimit.
func WithMountLimit(n int) Option { return func(s *Store) { s.mountLimit = n } }

// Store is the process-local view of the queue. The Repository is the source
// of truth: every mutation is a read-modify-write against it, so records queued
// by another process sharing the data directory are never overwritten, and
// Reload picks them up. Persistence failures are logged and never returned;
// the mutation is then applied to the local view only.
type Store struct {
	repo Repository
	log  *zap.Logger

	now        func() time.Time
	staleAge   time.Duration
	mountLimit int

	mu  sync.Mutex
	ops []Operation

	subMu   sync.Mutex
	subs    map[int]func(n int)
	nextSub int
}

// New loads the persisted queue. A failed load yields an empty queue.
func New(ctx context.Context, repo Repository, log *zap.Logger, opts ...Option) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{
		repo:       repo,
		log:        log,
		now:        time.Now,
		staleAge:   DefaultStaleAge,
		mountLimit: DefaultMountLimit,
		subs:       make(map[int]func(int)),
	}
	for _, o := range opts {
		o(s)
	}
	ops, err := repo.Load(ctx)
	if err != nil {
		log.Warn("pending: load failed, starting empty", zap.Error(err))
		ops = nil
	}
	s.ops = ops
	return s
}

// Reload replaces the local view with the persisted queue. On error the
// current view is kept.
func (s *Store) Reload(ctx context.Context) error {
	ops, err := s.repo.Load(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	changed := !slices.EqualFunc(s.ops, ops, func(a, b Operation) bool { return a.ID == b.ID })
	s.ops = ops
	n := len(ops)
	s.mu.Unlock()

	if changed {
		s.notify(n)
	}
	return nil
}

// Add queues a record with no recorded owner.
func (s *Store) Add(ctx context.Context, op OpType, c model.Collection, data any) Operation {
	return s.AddAs(ctx, uuid.Nil, op, c, data)
}

// AddAs appends a record owned by user, with a generated id and the current
// timestamp. data is stored as JSON; a value that cannot be encoded is stored
// as null.
func (s *Store) AddAs(ctx context.Context, user uuid.UUID, op OpType, c model.Collection, data any) Operation {
	raw, err := json.Marshal(data)
	if err != nil {
		s.log.Warn("pending: encode payload", zap.String("collection", string(c)), zap.Error(err))
		raw = json.RawMessage("null")
	}

	var rec Operation
	s.mu.Lock()
	ts := s.now().UnixMilli()
	n := s.mutateLocked(ctx, func(ops []Operation) []Operation {
		rec = Operation{
			ID:            uniqueID(ops, fmt.Sprintf("%s_%s_%d", op, c, ts)),
			OperationType: op,
			Collection:    c,
			Data:          raw,
			Timestamp:     ts,
			UserID:        user,
		}
		return append(ops, rec)
	})
	s.mu.Unlock()

	s.notify(n)
	return rec
}

// uniqueID appends _1, _2, ... until base no longer collides.
func uniqueID(ops []Operation, base string) string {
	id := base
	for n := 1; index(ops, id) >= 0; n++ {
		id = fmt.Sprintf("%s_%d", base, n)
	}
	return id
}

func index(ops []Operation, id string) int {
	return slices.IndexFunc(ops, func(o Operation) bool { return o.ID == id })
}

// Remove deletes a record by id. Absent ids are ignored.
func (s *Store) Remove(ctx context.Context, id string) {
	var found bool
	s.mu.Lock()
	n := s.mutateLocked(ctx, func(ops []Operation) []Operation {
		i := index(ops, id)
		found = i >= 0
		if !found {
			return ops
		}
		return slices.Delete(ops, i, i+1)
	})
	s.mu.Unlock()

	if found {
		s.notify(n)
	}
}

// IsPending reports whether any record targets collection c and, when itemID
// is non-empty, that item.
func (s *Store) IsPending(c model.Collection, itemID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.ops {
		if o.Collection != c {
			continue
		}
		if itemID == "" || o.ItemID() == itemID {
			return true
		}
	}
	return false
}

// CleanupInvalidOperations drops update records older than the stale age.
// Add and delete records are kept regardless of age.
func (s *Store) CleanupInvalidOperations(ctx context.Context) int {
	var removed int
	s.mu.Lock()
	cutoff := s.now().Add(-s.staleAge).UnixMilli()
	n := s.mutateLocked(ctx, func(ops []Operation) []Operation {
		before := len(ops)
		ops = slices.DeleteFunc(ops, func(o Operation) bool {
			return o.OperationType == OpUpdate && o.Timestamp < cutoff
		})
		removed = before - len(ops)
		return ops
	})
	s.mu.Unlock()

	if removed == 0 {
		return 0
	}
	s.log.Info("pending: purged stale updates", zap.Int("removed", removed))
	s.notify(n)
	return removed
}

// ClearAll empties the queue and removes the persisted key.
func (s *Store) ClearAll(ctx context.Context) {
	var dropped int
	s.mu.Lock()
	s.mutateLocked(ctx, func(ops []Operation) []Operation {
		dropped = len(ops)
		return nil
	})
	s.mu.Unlock()

	if dropped > 0 {
		s.log.Warn("pending: queue cleared", zap.Int("dropped", dropped))
	}
	s.notify(0)
}

// EnforceLimit clears the whole queue when it holds more than the mount limit.
// The check and the clear are one atomic step against the repository.
func (s *Store) EnforceLimit(ctx context.Context) bool {
	var dropped int
	s.mu.Lock()
	s.mutateLocked(ctx, func(ops []Operation) []Operation {
		dropped = 0
		if len(ops) <= s.mountLimit {
			return ops
		}
		dropped = len(ops)
		return nil
	})
	s.mu.Unlock()

	if dropped == 0 {
		return false
	}
	s.log.Warn("pending: queue cleared", zap.Int("dropped", dropped))
	s.notify(0)
	return true
}

// List returns a copy of the queue in insertion order.
func (s *Store) List() []Operation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.ops)
}

// ByCollection partitions the queue, keeping insertion order inside each part.
func (s *Store) ByCollection() map[model.Collection][]Operation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[model.Collection][]Operation)
	for _, o := range s.ops {
		out[o.Collection] = append(out[o.Collection], o)
	}
	return out
}

// Collections lists distinct collections in order of first appearance.
func (s *Store) Collections() []model.Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Collection
	for _, o := range s.ops {
		if !slices.Contains(out, o.Collection) {
			out = append(out, o.Collection)
		}
	}
	return out
}

// Len returns the queue length.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ops)
}

// Subscribe registers fn to receive the queue length after every mutation.
// The returned func unregisters it.
func (s *Store) Subscribe(fn func(n int)) (cancel func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify(n int) {
	s.subMu.Lock()
	fns := make([]func(int), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(n)
	}
}

// mutateLocked runs fn against the repository and adopts the result as the
// local view. If the repository fails, fn is applied to the local view.
func (s *Store) mutateLocked(ctx context.Context, fn MutateFunc) int {
	ops, err := s.repo.Mutate(ctx, fn)
	if err != nil {
		s.log.Error("pending: persist", zap.Int("len", len(s.ops)), zap.Error(err))
		ops = fn(slices.Clone(s.ops))
	}
	s.ops = ops
	return len(ops)
}
