package apihttp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"payguard/internal/decision"
	"payguard/internal/execution"
	"payguard/internal/scoring"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const recommendBody = `{
  "priority": "balanced",
  "risk_tolerance": "balanced",
  "candidates": [
    {"id": "A", "block_offset": 0, "estimated_output_usd": 1000, "gas_cost_usd": "20", "mev_risk_score": 80, "price_impact_percent": 0.5},
    {"id": "B", "block_offset": 3, "estimated_output_usd": 950, "gas_cost_usd": 25, "mev_risk_score": 20, "price_impact_percent": 0.4}
  ]
}`

const executionBody = `{
  "mode": "%s",
  "payroll": [
    {"amount": "3000", "from_token": "USDC", "to_token": "DAI"},
    {"amount": 1200.5, "from_token": "USDT", "to_token": "WETH"}
  ],
  "netting": {"netted_transactions": 2, "gas_savings_usd": 18.4, "netted_gas_cost": "6.10", "execution_time_estimate": 45}
}`

// idleDriver never completes a step, leaving immediate executions in flight.
var idleDriver = execution.DriverFunc(func(ctx context.Context, _ []string, _ func(int)) error {
	<-ctx.Done()
	return ctx.Err()
})

func newTestServer(t *testing.T, perMin int) (*Server, *execution.Manager) {
	t.Helper()
	mgr := execution.NewManager(execution.Options{Driver: idleDriver})
	t.Cleanup(mgr.Close)
	srv, err := NewServer(ServerConfig{
		Recommender:     decision.NewService(decision.DefaultWeights(), scoring.DefaultPenalties()),
		Executions:      mgr,
		RateLimitPerMin: perMin,
		Burst:           2,
	})
	require.NoError(t, err)
	return srv, mgr
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func execBody(mode string) string {
	return strings.Replace(executionBody, "%s", mode, 1)
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	w := do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", gjson.Get(w.Body.String(), "status").String())
}

func TestRecommend(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	w := do(t, srv, http.MethodPost, "/api/recommendations", recommendBody)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := w.Body.String()
	assert.Equal(t, "balanced", gjson.Get(body, "policy").String())
	assert.Equal(t, "B", gjson.Get(body, "final.recommended_id").String())
	assert.Equal(t, "B", gjson.Get(body, "mev_recommendation.recommended_id").String())
	assert.Equal(t, "A", gjson.Get(body, "profit_recommendation.recommended_id").String())
	assert.Equal(t, int64(60), gjson.Get(body, "mev_recommendation.mev_metrics.risk_reduction").Int())
}

func TestRecommend_RejectsBadBodies(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	cases := map[string]string{
		"empty":            ``,
		"not json":         `{"candidates": [`,
		"array":            `[]`,
		"no candidates":    `{"candidates": []}`,
		"risk too high":    `{"candidates": [{"id": "A", "block_offset": 0, "estimated_output_usd": 1, "gas_cost_usd": 1, "mev_risk_score": 101}]}`,
		"duplicate id":     `{"candidates": [{"id": "A", "block_offset": 0, "estimated_output_usd": 1, "gas_cost_usd": 1, "mev_risk_score": 1}, {"id": "A", "block_offset": 1, "estimated_output_usd": 1, "gas_cost_usd": 1, "mev_risk_score": 1}]}`,
		"unknown priority": `{"priority": "yolo", "candidates": [{"id": "A", "block_offset": 0, "estimated_output_usd": 1, "gas_cost_usd": 1, "mev_risk_score": 1}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := do(t, srv, http.MethodPost, "/api/recommendations", body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.NotEmpty(t, gjson.Get(w.Body.String(), "error").String())
		})
	}
}

func TestSubmitSimulate(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	w := do(t, srv, http.MethodPost, "/api/executions", execBody("simulate"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body := w.Body.String()
	assert.Equal(t, "simulation_complete", gjson.Get(body, "status").String())
	assert.Equal(t, int64(2), gjson.Get(body, "preview.transactions.#").Int())
	assert.Equal(t, int64(2), gjson.Get(body, "summary.employee_count").Int())
}

func TestSubmit_MissingNettingField(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	body := strings.Replace(execBody("execute"), `"execution_time_estimate": 45`, `"other": 1`, 1)
	w := do(t, srv, http.MethodPost, "/api/executions", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, gjson.Get(w.Body.String(), "error").String(), "execution_time_estimate")

	w = do(t, srv, http.MethodPost, "/api/executions", execBody("later"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExecutionLifecycleEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	w := do(t, srv, http.MethodPost, "/api/executions", execBody("schedule"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	scheduledID := gjson.Get(w.Body.String(), "execution_id").String()
	require.NotEmpty(t, scheduledID)
	assert.Equal(t, "scheduled", gjson.Get(w.Body.String(), "status").String())

	w = do(t, srv, http.MethodPost, "/api/executions", execBody("execute"))
	require.Equal(t, http.StatusCreated, w.Code)
	runningID := gjson.Get(w.Body.String(), "execution_id").String()
	assert.Equal(t, "executing", gjson.Get(w.Body.String(), "status").String())
	assert.Equal(t, "processing", gjson.Get(w.Body.String(), "steps.0.status").String())

	w = do(t, srv, http.MethodGet, "/api/executions/"+scheduledID, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, srv, http.MethodGet, "/api/executions", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), gjson.Get(w.Body.String(), "history.#").Int())
	assert.Equal(t, int64(1), gjson.Get(w.Body.String(), "pending.#").Int())

	w = do(t, srv, http.MethodPost, "/api/executions/"+runningID+"/cancel", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.False(t, gjson.Get(w.Body.String(), "success").Bool())

	w = do(t, srv, http.MethodPost, "/api/executions/"+scheduledID+"/cancel", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cancelled", gjson.Get(w.Body.String(), "record.status").String())

	w = do(t, srv, http.MethodPost, "/api/executions/"+scheduledID+"/cancel", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, gjson.Get(w.Body.String(), "message").String(), "not found or already completed")

	w = do(t, srv, http.MethodGet, "/api/executions/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubmit_RateLimited(t *testing.T) {
	srv, _ := newTestServer(t, 1)
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, do(t, srv, http.MethodPost, "/api/executions", execBody("simulate")).Code)
	}
	assert.Equal(t, []int{http.StatusCreated, http.StatusCreated, http.StatusTooManyRequests}, codes)

	w := do(t, srv, http.MethodGet, "/api/executions", "")
	assert.Equal(t, http.StatusOK, w.Code, "reads are not limited")
}

func TestNewServer_RequiresDependencies(t *testing.T) {
	_, err := NewServer(ServerConfig{})
	assert.Error(t, err)
}

func TestExecutionEventsStream(t *testing.T) {
	srv, mgr := newTestServer(t, 0)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/executions/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return srv.events.count() == 1 }, time.Second, 5*time.Millisecond)

	w := do(t, srv, http.MethodPost, "/api/executions", execBody("schedule"))
	require.Equal(t, http.StatusCreated, w.Code)
	id := gjson.Get(w.Body.String(), "execution_id").String()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var evt execution.Event
	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, id, evt.ExecutionID)
	assert.Equal(t, execution.StatusScheduled, evt.To)
	assert.Equal(t, -1, evt.Step)

	res := mgr.Cancel(id)
	require.True(t, res.Success)
	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, execution.StatusCancelled, evt.To)

	srv.events.close()
	_, _, err = conn.ReadMessage()
	assert.Error(t, err, "stream closes on shutdown")
}
