// Package syncer drains the pending queue against the remote store.
//
// The Coordinator is an explicit Idle/Syncing state machine. A trigger that
// arrives while a batch is in flight is dropped, periodic triggers are
// throttled by a minimum interval, and nothing runs while offline or before a
// user is known. After every batch that touched a collection, account
// balances are reconciled exactly once.
package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/fin-keeper/internal/connectivity"
	"github.com/and161185/fin-keeper/internal/model"
)

// State of the coordinator.
type State int32

const (
	Idle State = iota
	Syncing
)

func (s State) String() string {
	if s == Syncing {
		return "syncing"
	}
	return "idle"
}

// Trigger names what started a batch.
type Trigger string

const (
	TriggerOnline   Trigger = "online"
	TriggerIdentity Trigger = "identity"
	TriggerMount    Trigger = "mount"
	TriggerPeriodic Trigger = "periodic"
	TriggerManual   Trigger = "manual"
)

// Reasons a trigger did not start a batch.
var (
	ErrBusy      = errors.New("sync already in progress")
	ErrThrottled = errors.New("sync attempted too recently")
	ErrOffline   = errors.New("offline")
	ErrNoUser    = errors.New("no user")
	ErrStopped   = errors.New("coordinator stopped")
)

// Queue is the part of *pending.Store the coordinator drives.
type Queue interface {
	// Reload picks up records written by other processes.
	Reload(ctx context.Context) error
	CleanupInvalidOperations(ctx context.Context) int
	EnforceLimit(ctx context.Context) bool
	Collections() []model.Collection
	Len() int
	ClearAll(ctx context.Context)
}

// Replayer replays one collection's queued operations.
type Replayer interface {
	Collection() model.Collection
	SyncPendingItems(ctx context.Context) error
}

// Reconciler recomputes account balances.
type Reconciler interface {
	UpdateAllAccountBalances(ctx context.Context, userID uuid.UUID) error
	InitialLoad(ctx context.Context, userID uuid.UUID) bool
}

// Monitor reports connectivity.
type Monitor interface {
	IsOnline() bool
	Subscribe() (<-chan connectivity.Transition, func())
}

// Config holds the timing and breaker thresholds.
type Config struct {
	// Interval between periodic triggers.
	Interval time.Duration
	// MinInterval is the minimum gap before a periodic trigger may run.
	MinInterval time.Duration
	// BreakerThreshold: a failed batch that started with more records clears the queue.
	BreakerThreshold int
}

// DefaultConfig returns the production timings.
func DefaultConfig() Config {
	return Config{
		Interval:         5 * time.Minute,
		MinInterval:      60 * time.Second,
		BreakerThreshold: 20,
	}
}

// Report is the outcome of one batch.
type Report struct {
	Trigger        Trigger                     `json:"trigger"`
	User           uuid.UUID                   `json:"user"`
	StartedAt      time.Time                   `json:"started_at"`
	FinishedAt     time.Time                   `json:"finished_at"`
	Purged         int                         `json:"purged"`
	Queued         int                         `json:"queued"`
	Processed      []model.Collection          `json:"processed"`
	Failures       map[model.Collection]string `json:"failures,omitempty"`
	BreakerTripped bool                        `json:"breaker_tripped"`
	Reconciled     bool                        `json:"reconciled"`
	ReconcileError string                      `json:"reconcile_error,omitempty"`
	Remaining      int                         `json:"remaining"`
}

// Failed reports whether any collection failed to replay.
func (r Report) Failed() bool { return len(r.Failures) > 0 }

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(c *Coordinator) { c.now = now } }

// WithConfig overrides DefaultConfig.
func WithConfig(cfg Config) Option { return func(c *Coordinator) { c.cfg = cfg } }

// Coordinator serialises sync batches within the process.
type Coordinator struct {
	queue     Queue
	monitor   Monitor
	recon     Reconciler
	replayers map[model.Collection]Replayer
	log       *zap.Logger
	now       func() time.Time
	cfg       Config

	mu          sync.Mutex
	state       State
	lastAttempt time.Time
	user        uuid.UUID
	last        *Report
	closing     bool

	userCh chan uuid.UUID
	wg     sync.WaitGroup
}

// New wires a coordinator. Replayers are keyed by their collection.
func New(queue Queue, monitor Monitor, recon Reconciler, replayers []Replayer, log *zap.Logger, opts ...Option) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Coordinator{
		queue:     queue,
		monitor:   monitor,
		recon:     recon,
		replayers: make(map[model.Collection]Replayer, len(replayers)),
		log:       log,
		now:       time.Now,
		cfg:       DefaultConfig(),
		userCh:    make(chan uuid.UUID, 1),
	}
	for _, r := range replayers {
		c.replayers[r.Collection()] = r
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// User returns the current user id.
func (c *Coordinator) User() uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

// LastReport returns the most recent batch outcome.
func (c *Coordinator) LastReport() (Report, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return Report{}, false
	}
	return *c.last, true
}

// SetUser records the current identity. A change to a non-empty id
// signals Run to fire TriggerIdentity.
func (c *Coordinator) SetUser(id uuid.UUID) {
	c.mu.Lock()
	changed := c.user != id
	c.user = id
	c.mu.Unlock()
	if !changed || id == uuid.Nil {
		return
	}
	// keep only the latest identity
	select {
	case <-c.userCh:
	default:
	}
	c.userCh <- id
}

// Trigger attempts one batch and blocks until it completes. The batch runs on
// a context detached from ctx's cancellation so it always finishes. Every
// batch is tracked, whoever starts it, so Run does not return while one is in
// flight; once Run has returned Trigger fails with ErrStopped.
func (c *Coordinator) Trigger(ctx context.Context, t Trigger) (Report, error) {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return Report{}, ErrStopped
	}
	if c.state == Syncing {
		c.mu.Unlock()
		return Report{}, ErrBusy
	}
	if !c.monitor.IsOnline() {
		c.mu.Unlock()
		return Report{}, ErrOffline
	}
	if c.user == uuid.Nil {
		c.mu.Unlock()
		return Report{}, ErrNoUser
	}
	now := c.now()
	if t == TriggerPeriodic && !c.lastAttempt.IsZero() && now.Sub(c.lastAttempt) < c.cfg.MinInterval {
		c.mu.Unlock()
		return Report{}, ErrThrottled
	}
	c.state = Syncing
	c.lastAttempt = now
	user := c.user
	c.wg.Add(1)
	c.mu.Unlock()

	rep := Report{Trigger: t, User: user, StartedAt: now}
	defer func() {
		c.mu.Lock()
		c.state = Idle
		c.last = &rep
		c.mu.Unlock()
		c.wg.Done()
	}()
	c.batch(context.WithoutCancel(ctx), &rep)
	return rep, nil
}

func (c *Coordinator) batch(ctx context.Context, rep *Report) {
	log := c.log.With(zap.String("trigger", string(rep.Trigger)))

	if err := c.queue.Reload(ctx); err != nil {
		log.Warn("sync: reload queue, using local view", zap.Error(err))
	}
	rep.Purged = c.queue.CleanupInvalidOperations(ctx)
	rep.Queued = c.queue.Len()

	for _, col := range c.queue.Collections() {
		r, ok := c.replayers[col]
		if !ok {
			log.Warn("sync: no replayer for collection", zap.String("collection", string(col)))
			continue
		}
		rep.Processed = append(rep.Processed, col)
		if err := r.SyncPendingItems(ctx); err != nil {
			log.Error("sync: collection failed", zap.String("collection", string(col)), zap.Error(err))
			if rep.Failures == nil {
				rep.Failures = make(map[model.Collection]string)
			}
			rep.Failures[col] = err.Error()
		}
	}

	if rep.Failed() && rep.Queued > c.cfg.BreakerThreshold {
		log.Warn("sync: circuit breaker, clearing queue",
			zap.Int("queued", rep.Queued), zap.Int("failed_collections", len(rep.Failures)))
		c.queue.ClearAll(ctx)
		rep.BreakerTripped = true
	}

	if len(rep.Processed) > 0 {
		rep.Reconciled = true
		if err := c.recon.UpdateAllAccountBalances(ctx, rep.User); err != nil {
			rep.ReconcileError = err.Error()
		}
	}

	rep.Remaining = c.queue.Len()
	rep.FinishedAt = c.now()
	log.Info("sync: batch done",
		zap.Int("purged", rep.Purged),
		zap.Int("queued", rep.Queued),
		zap.Int("remaining", rep.Remaining),
		zap.Bool("failed", rep.Failed()),
		zap.Bool("reconciled", rep.Reconciled))
}

// Run drives triggers until ctx is cancelled: mount on start, online edges,
// identity changes and the periodic ticker. Batches run in the background so
// triggers arriving mid-batch are dropped. On return the coordinator is
// stopped and no batch, including one started through Trigger by another
// caller, is still running.
func (c *Coordinator) Run(ctx context.Context) error {
	edges, unsubscribe := c.monitor.Subscribe()
	defer unsubscribe()
	defer c.stop()

	if c.queue.EnforceLimit(ctx) {
		c.log.Warn("sync: queue over mount limit, cleared")
	}
	if user := c.User(); user != uuid.Nil {
		c.recon.InitialLoad(ctx, user)
	}
	if c.queue.Len() > 0 {
		c.fire(ctx, TriggerMount)
	}

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case tr, ok := <-edges:
			if !ok {
				edges = nil
				continue
			}
			if tr.Online {
				c.fire(ctx, TriggerOnline)
			}
		case id := <-c.userCh:
			c.recon.InitialLoad(ctx, id)
			c.fire(ctx, TriggerIdentity)
		case <-ticker.C:
			c.fire(ctx, TriggerPeriodic)
		}
	}
}

func (c *Coordinator) stop() {
	c.mu.Lock()
	c.closing = true
	c.mu.Unlock()
	c.wg.Wait()
}

func (c *Coordinator) fire(ctx context.Context, t Trigger) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if _, err := c.Trigger(ctx, t); err != nil {
			c.log.Debug("sync: trigger skipped", zap.String("trigger", string(t)), zap.Error(err))
		}
	}()
}
