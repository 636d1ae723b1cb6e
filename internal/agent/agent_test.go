package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/fin-keeper/internal/kv"
	"github.com/and161185/fin-keeper/internal/model"
	"github.com/and161185/fin-keeper/internal/pending"
	"github.com/and161185/fin-keeper/internal/syncer"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeCoord struct {
	state syncer.State
	last  *syncer.Report
	err   error
	calls int
	user  uuid.UUID
}

func (f *fakeCoord) User() uuid.UUID { return f.user }

func (f *fakeCoord) State() syncer.State { return f.state }
func (f *fakeCoord) LastReport() (syncer.Report, bool) {
	if f.last == nil {
		return syncer.Report{}, false
	}
	return *f.last, true
}
func (f *fakeCoord) Trigger(_ context.Context, t syncer.Trigger) (syncer.Report, error) {
	f.calls++
	if f.err != nil {
		return syncer.Report{}, f.err
	}
	return syncer.Report{Trigger: t, Processed: []model.Collection{model.Incomes}, Reconciled: true}, nil
}

type flag bool

func (f flag) IsOnline() bool { return bool(f) }

func setup(t *testing.T, coord *fakeCoord) (*gin.Engine, *pending.Store) {
	t.Helper()
	r, q, _ := setupShared(t, coord)
	return r, q
}

// setupShared also returns the backing store so a test can queue records the
// way a separate fk command would.
func setupShared(t *testing.T, coord *fakeCoord) (*gin.Engine, *pending.Store, *kv.Memory) {
	t.Helper()
	mem := kv.NewMemory()
	q := pending.New(context.Background(), pending.NewKVRepository(mem), zaptest.NewLogger(t))
	return New(coord, q, flag(true), zaptest.NewLogger(t)).Router(), q, mem
}

func do(t *testing.T, r http.Handler, method, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return w, body
}

func TestStatus(t *testing.T) {
	t.Parallel()
	coord := &fakeCoord{state: syncer.Syncing}
	r, q := setup(t, coord)
	q.Add(context.Background(), pending.OpDelete, model.Expenses, "x")

	w, body := do(t, r, http.MethodGet, "/status")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, true, body["online"])
	require.Equal(t, "syncing", body["state"])
	require.EqualValues(t, 1, body["pending"])
	require.NotContains(t, body, "last_report")
	require.NotContains(t, body, "user")

	coord.last = &syncer.Report{Trigger: syncer.TriggerPeriodic}
	coord.user = uuid.Must(uuid.NewV4())
	_, body = do(t, r, http.MethodGet, "/status")
	require.Equal(t, "periodic", body["last_report"].(map[string]any)["trigger"])
	require.Equal(t, coord.user.String(), body["user"])
}

func TestStatusAndPending_SeeOtherWriters(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r, _, mem := setupShared(t, &fakeCoord{})

	cli := pending.New(ctx, pending.NewKVRepository(mem), zaptest.NewLogger(t))
	cli.Add(ctx, pending.OpAdd, model.Expenses, map[string]string{"id": "e1"})

	_, body := do(t, r, http.MethodGet, "/status")
	require.EqualValues(t, 1, body["pending"])
	_, body = do(t, r, http.MethodGet, "/pending?collection=expenses&id=e1")
	require.Equal(t, true, body["is_pending"])
}

func TestPending(t *testing.T) {
	t.Parallel()
	r, q := setup(t, &fakeCoord{})
	ctx := context.Background()
	q.Add(ctx, pending.OpAdd, model.Incomes, map[string]string{"id": "i1"})
	q.Add(ctx, pending.OpDelete, model.Expenses, "e1")

	w, body := do(t, r, http.MethodGet, "/pending")
	require.Equal(t, http.StatusOK, w.Code)
	require.EqualValues(t, 2, body["count"])

	_, body = do(t, r, http.MethodGet, "/pending?collection=incomes&id=i1")
	require.Equal(t, true, body["is_pending"])
	require.Len(t, body["operations"], 1)

	_, body = do(t, r, http.MethodGet, "/pending?collection=incomes&id=e1")
	require.Equal(t, false, body["is_pending"])

	w, _ = do(t, r, http.MethodGet, "/pending?collection=transfers")
	require.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = do(t, r, http.MethodGet, "/pending?id=i1")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSync(t *testing.T) {
	t.Parallel()
	coord := &fakeCoord{}
	r, _ := setup(t, coord)

	w, body := do(t, r, http.MethodPost, "/sync")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "manual", body["trigger"])
	require.Equal(t, true, body["reconciled"])

	cases := map[error]int{
		syncer.ErrBusy:    http.StatusConflict,
		syncer.ErrOffline: http.StatusServiceUnavailable,
		syncer.ErrNoUser:  http.StatusUnauthorized,
		syncer.ErrStopped: http.StatusServiceUnavailable,
	}
	for err, code := range cases {
		coord.err = err
		w, body := do(t, r, http.MethodPost, "/sync")
		require.Equal(t, code, w.Code, err.Error())
		require.Equal(t, err.Error(), body["error"])
	}
	require.Equal(t, 5, coord.calls)
}
