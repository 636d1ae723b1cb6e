// Package agent serves the loopback HTTP API of a running fk daemon.
package agent

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/fin-keeper/internal/model"
	"github.com/and161185/fin-keeper/internal/pending"
	"github.com/and161185/fin-keeper/internal/syncer"
)

// Coordinator is the part of *syncer.Coordinator exposed over HTTP.
type Coordinator interface {
	State() syncer.State
	User() uuid.UUID
	LastReport() (syncer.Report, bool)
	Trigger(ctx context.Context, t syncer.Trigger) (syncer.Report, error)
}

// Queue is the read side of *pending.Store. Reload runs before every read so
// records queued by fk commands are visible.
type Queue interface {
	Reload(ctx context.Context) error
	List() []pending.Operation
	Len() int
	IsPending(c model.Collection, itemID string) bool
}

// Online reports connectivity.
type Online interface {
	IsOnline() bool
}

// Agent wires the status API.
type Agent struct {
	sync   Coordinator
	queue  Queue
	online Online
	log    *zap.Logger
}

// New constructs an Agent.
func New(sync Coordinator, queue Queue, online Online, log *zap.Logger) *Agent {
	if log == nil {
		log = zap.NewNop()
	}
	return &Agent{sync: sync, queue: queue, online: online, log: log}
}

// Router builds the gin engine.
func (a *Agent) Router() *gin.Engine {
	r := gin.New()
	r.Use(a.accessLog(), gin.Recovery())

	r.GET("/status", a.status)
	r.GET("/pending", a.pendingOps)
	r.POST("/sync", a.syncNow)
	return r
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func (a *Agent) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	a.log.Info("agent listening", zap.String("addr", addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *Agent) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		a.log.Info("http",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("dur", time.Since(start)))
	}
}

func (a *Agent) reload(c *gin.Context) {
	if err := a.queue.Reload(c.Request.Context()); err != nil {
		a.log.Warn("agent: reload queue", zap.Error(err))
	}
}

func (a *Agent) status(c *gin.Context) {
	a.reload(c)
	body := gin.H{
		"online":  a.online.IsOnline(),
		"state":   a.sync.State().String(),
		"pending": a.queue.Len(),
	}
	if user := a.sync.User(); user != uuid.Nil {
		body["user"] = user.String()
	}
	if rep, ok := a.sync.LastReport(); ok {
		body["last_report"] = rep
	}
	c.JSON(http.StatusOK, body)
}

func (a *Agent) pendingOps(c *gin.Context) {
	col := model.Collection(c.Query("collection"))
	id := c.Query("id")
	a.reload(c)
	if col == "" {
		if id != "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "id requires collection"})
			return
		}
		ops := a.queue.List()
		c.JSON(http.StatusOK, gin.H{"count": len(ops), "operations": ops})
		return
	}
	if !col.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown collection"})
		return
	}
	var ops []pending.Operation
	for _, o := range a.queue.List() {
		if o.Collection == col && (id == "" || o.ItemID() == id) {
			ops = append(ops, o)
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"collection": col,
		"id":         id,
		"is_pending": a.queue.IsPending(col, id),
		"operations": ops,
	})
}

func (a *Agent) syncNow(c *gin.Context) {
	rep, err := a.sync.Trigger(c.Request.Context(), syncer.TriggerManual)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, rep)
	case errors.Is(err, syncer.ErrBusy):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, syncer.ErrOffline), errors.Is(err, syncer.ErrStopped):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, syncer.ErrNoUser):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
