package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snippetd/internal/models"
	"snippetd/internal/pool"
	"snippetd/internal/runner"
	"snippetd/internal/schedule"
	"snippetd/internal/state"
)

func quietLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

type testEnv struct {
	router *gin.Engine
	pool   *pool.WorkerPool
	sched  *schedule.Scheduler
}

func newTestEnv(t *testing.T, started bool) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	p := pool.New(runner.Func(func(_ context.Context, source string) (string, error) {
		return "ran " + source, nil
	}), pool.WithLogger(quietLogger()))
	if started {
		require.NoError(t, p.Start(context.Background(), 1))
	}
	t.Cleanup(func() { p.Shutdown(context.Background(), pool.Immediate) })

	sched := schedule.New(p, quietLogger())
	server := NewServer(p, sched, nil, quietLogger())
	return &testEnv{router: NewRouter(server), pool: p, sched: sched}
}

func (e *testEnv) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestCreateJob(t *testing.T) {
	env := newTestEnv(t, true)

	w := env.do(http.MethodPost, "/api/jobs", gin.H{"source": "echo hi", "description": "demo"})
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["id"])

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		view, err := env.pool.Status(resp["id"])
		require.NoError(t, err)
		if view.Status.Terminal() {
			assert.Equal(t, state.StatusDone, view.Status)
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("submitted job never finished")
}

func TestCreateJob_MissingSource(t *testing.T) {
	env := newTestEnv(t, true)

	w := env.do(http.MethodPost, "/api/jobs", gin.H{"description": "no source"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateJob_InvalidSchedule(t *testing.T) {
	env := newTestEnv(t, true)

	w := env.do(http.MethodPost, "/api/jobs", gin.H{"source": "echo hi", "schedule": 7})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateJob_WithScheduleRegistersEntry(t *testing.T) {
	env := newTestEnv(t, true)

	w := env.do(http.MethodPost, "/api/jobs", gin.H{"source": "echo hi", "schedule": 2})
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 1, env.sched.Len())
}

func TestCreateJob_AfterShutdown(t *testing.T) {
	env := newTestEnv(t, true)
	require.NoError(t, env.pool.Shutdown(context.Background(), pool.Graceful))

	w := env.do(http.MethodPost, "/api/jobs", gin.H{"source": "echo hi"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGetJob(t *testing.T) {
	env := newTestEnv(t, false)

	id, err := env.pool.Submit(context.Background(), pool.SubmitRequest{Source: "echo hi"})
	require.NoError(t, err)

	w := env.do(http.MethodGet, "/api/jobs/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var view models.JobView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, id, view.ID)
	assert.Equal(t, state.StatusPending, view.Status)
}

func TestGetJob_NotFound(t *testing.T) {
	env := newTestEnv(t, true)

	w := env.do(http.MethodGet, "/api/jobs/unknown-id", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListJobs(t *testing.T) {
	env := newTestEnv(t, false)

	for i := 0; i < 3; i++ {
		_, err := env.pool.Submit(context.Background(), pool.SubmitRequest{Source: "echo hi"})
		require.NoError(t, err)
	}

	w := env.do(http.MethodGet, "/api/jobs", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Jobs []models.JobView `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Jobs, 3)
}

func TestCancelJob(t *testing.T) {
	env := newTestEnv(t, false)

	id, err := env.pool.Submit(context.Background(), pool.SubmitRequest{Source: "echo hi"})
	require.NoError(t, err)

	w := env.do(http.MethodPost, "/api/jobs/"+id+"/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code)

	view, err := env.pool.Status(id)
	require.NoError(t, err)
	assert.Equal(t, state.StatusCancelled, view.Status)
}

func TestCancelJob_NotFound(t *testing.T) {
	env := newTestEnv(t, true)

	w := env.do(http.MethodPost, "/api/jobs/unknown/cancel", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCancelJob_AlreadyFinished(t *testing.T) {
	env := newTestEnv(t, true)

	id, err := env.pool.Submit(context.Background(), pool.SubmitRequest{Source: "echo hi"})
	require.NoError(t, err)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		view, err := env.pool.Status(id)
		require.NoError(t, err)
		if view.Status.Terminal() {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	w := env.do(http.MethodPost, "/api/jobs/"+id+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestListArchived_NotConfigured(t *testing.T) {
	env := newTestEnv(t, true)

	w := env.do(http.MethodGet, "/api/jobs/archive", nil)
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, true)

	w := env.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
