// Package reconcile asks the remote store to rebuild account balances from
// authoritative entries instead of adjusting them incrementally.
package reconcile

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/and161185/fin-keeper/internal/api"
	"github.com/and161185/fin-keeper/internal/errs"
)

// Remote is the slice of api.FinanceClient used here.
type Remote interface {
	RecomputeBalances(ctx context.Context, in *api.RecomputeBalancesRequest, opts ...grpc.CallOption) (*api.RecomputeBalancesResponse, error)
}

// Reconciler recomputes every account balance of a user.
type Reconciler struct {
	remote Remote
	log    *zap.Logger

	initialDone atomic.Bool
	runs        atomic.Int64
}

// New constructs a Reconciler.
func New(remote Remote, log *zap.Logger) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{remote: remote, log: log}
}

// UpdateAllAccountBalances recomputes balances once. Failures are logged and
// returned but never retried here; the next sync batch calls it again.
func (r *Reconciler) UpdateAllAccountBalances(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return fmt.Errorf("%w: empty userID", errs.ErrValidation)
	}
	r.runs.Add(1)
	resp, err := r.remote.RecomputeBalances(ctx, &api.RecomputeBalancesRequest{})
	if err != nil {
		r.log.Warn("reconcile: recompute balances", zap.String("user", userID.String()), zap.Error(err))
		return err
	}
	r.log.Info("reconcile: balances recomputed",
		zap.String("user", userID.String()),
		zap.Int("accounts", len(resp.Accounts)))
	return nil
}

// InitialLoad runs UpdateAllAccountBalances the first time it is called in
// this process and is a no-op afterwards, even for another user.
func (r *Reconciler) InitialLoad(ctx context.Context, userID uuid.UUID) bool {
	if userID == uuid.Nil || !r.initialDone.CompareAndSwap(false, true) {
		return false
	}
	_ = r.UpdateAllAccountBalances(ctx, userID)
	return true
}

// Runs reports how many recomputations were attempted.
func (r *Reconciler) Runs() int64 { return r.runs.Load() }
