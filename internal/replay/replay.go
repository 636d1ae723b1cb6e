// Package replay pushes queued operations of one collection to the remote store.
package replay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/and161185/fin-keeper/internal/api"
	"github.com/and161185/fin-keeper/internal/model"
	"github.com/and161185/fin-keeper/internal/pending"
)

// Remote is the slice of api.FinanceClient a replayer writes through.
type Remote interface {
	AddEntry(ctx context.Context, in *api.AddEntryRequest, opts ...grpc.CallOption) (*api.AddEntryResponse, error)
	UpdateEntry(ctx context.Context, in *api.UpdateEntryRequest, opts ...grpc.CallOption) (*api.UpdateEntryResponse, error)
	DeleteEntry(ctx context.Context, in *api.DeleteEntryRequest, opts ...grpc.CallOption) (*api.DeleteEntryResponse, error)
}

// Queue is the slice of *pending.Store a replayer consumes.
type Queue interface {
	ByCollection() map[model.Collection][]pending.Operation
	Remove(ctx context.Context, id string)
}

// Replayer drains one collection in insertion order.
type Replayer struct {
	collection model.Collection
	queue      Queue
	remote     Remote
	log        *zap.Logger
	owner      func() uuid.UUID
}

// Option configures a Replayer.
type Option func(*Replayer)

// WithOwner limits replay to records queued by the user owner returns, plus
// records with no owner. Records of other users stay queued untouched.
func WithOwner(owner func() uuid.UUID) Option { return func(r *Replayer) { r.owner = owner } }

// New constructs a replayer for collection c.
func New(c model.Collection, queue Queue, remote Remote, log *zap.Logger, opts ...Option) *Replayer {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Replayer{collection: c, queue: queue, remote: remote, log: log.With(zap.String("collection", string(c)))}
	for _, o := range opts {
		o(r)
	}
	return r
}

// ForCollections builds one replayer per collection.
func ForCollections(cs []model.Collection, queue Queue, remote Remote, log *zap.Logger, opts ...Option) []*Replayer {
	out := make([]*Replayer, 0, len(cs))
	for _, c := range cs {
		out = append(out, New(c, queue, remote, log, opts...))
	}
	return out
}

// Collection returns the collection this replayer owns.
func (r *Replayer) Collection() model.Collection { return r.collection }

// SyncPendingItems replays every queued operation of the collection. Records
// are removed once the remote confirms them. Failed records stay queued and
// their errors are combined into the returned error.
func (r *Replayer) SyncPendingItems(ctx context.Context) error {
	ops := r.queue.ByCollection()[r.collection]
	var owner uuid.UUID
	if r.owner != nil {
		owner = r.owner()
	}
	var errAll error
	done, skipped := 0, 0
	for _, op := range ops {
		if r.owner != nil && !op.OwnedBy(owner) {
			skipped++
			continue
		}
		drop, err := r.apply(ctx, op)
		switch {
		case err != nil:
			r.log.Warn("replay: kept for retry", zap.String("op", op.ID), zap.Error(err))
			errAll = multierr.Append(errAll, fmt.Errorf("%s: %w", op.ID, err))
		case drop:
			r.queue.Remove(ctx, op.ID)
			done++
		}
	}
	r.log.Info("replay: collection done",
		zap.Int("queued", len(ops)),
		zap.Int("removed", done),
		zap.Int("other_users", skipped),
		zap.Int("failed", len(multierr.Errors(errAll))))
	return errAll
}

// apply sends one record. drop reports whether the record can leave the queue.
func (r *Replayer) apply(ctx context.Context, op pending.Operation) (drop bool, err error) {
	switch op.OperationType {
	case pending.OpAdd:
		e, ok := r.decodeEntry(op)
		if !ok {
			return true, nil
		}
		_, err = r.remote.AddEntry(ctx, &api.AddEntryRequest{Collection: string(r.collection), Entry: e})
		if status.Code(err) == codes.AlreadyExists {
			// client generated ids: the add already landed
			return true, nil
		}
	case pending.OpUpdate:
		e, ok := r.decodeEntry(op)
		if !ok {
			return true, nil
		}
		_, err = r.remote.UpdateEntry(ctx, &api.UpdateEntryRequest{Collection: string(r.collection), Entry: e})
		if status.Code(err) == codes.NotFound {
			r.log.Warn("replay: update target gone, dropped", zap.String("op", op.ID), zap.String("item", e.ID))
			return true, nil
		}
	case pending.OpDelete:
		var id string
		if uerr := json.Unmarshal(op.Data, &id); uerr != nil || id == "" {
			r.log.Warn("replay: undecodable delete dropped", zap.String("op", op.ID))
			return true, nil
		}
		_, err = r.remote.DeleteEntry(ctx, &api.DeleteEntryRequest{Collection: string(r.collection), ID: id})
		if status.Code(err) == codes.NotFound {
			r.log.Info("replay: delete target already gone", zap.String("op", op.ID), zap.String("item", id))
			return true, nil
		}
	default:
		r.log.Warn("replay: unknown operation dropped", zap.String("op", op.ID), zap.String("type", string(op.OperationType)))
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *Replayer) decodeEntry(op pending.Operation) (*api.Entry, bool) {
	var e api.Entry
	if err := json.Unmarshal(op.Data, &e); err != nil || e.ID == "" {
		r.log.Warn("replay: undecodable payload dropped", zap.String("op", op.ID), zap.Error(err))
		return nil, false
	}
	return &e, true
}
