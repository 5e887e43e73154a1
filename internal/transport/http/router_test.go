package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendtrend/internal/config"
	"spendtrend/internal/panel"
	"spendtrend/internal/pipeline"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// runOutput analyzes two entities; X quadruples its FTE in the break year
// and B carries one row beyond the supported year range
func runOutput(t *testing.T) *pipeline.Output {
	t.Helper()
	xFTE := map[int]float64{2018: 100, 2019: 105, 2020: 420, 2021: 430, 2022: 440, 2023: 450}

	row := func(id string, year int, cat panel.Category, fte, total float64) panel.Row {
		r := panel.Row{EntityID: id, Year: year, Category: cat, FTE: panel.Of(fte)}
		r.Set(panel.ColAdmin, panel.Of(total*0.2))
		r.Set(panel.ColInstruction, panel.Of(total*0.5))
		r.Set(panel.ColResearch, panel.Of(total*0.1))
		r.Set(panel.ColState, panel.Of(total*0.3))
		r.Set(panel.ColTotal, panel.Of(total))
		return r
	}

	var rows []panel.Row
	for i, y := range []int{2018, 2019, 2020, 2021, 2022, 2023} {
		total := 10000 * (1 + 0.05*float64(i))
		rows = append(rows,
			row("X", y, panel.CategoryPublic, xFTE[y], total),
			row("B", y, panel.CategoryPrivate, 40, total),
		)
	}
	rows = append(rows, row("B", 2024, panel.CategoryPrivate, 40, 20000))

	tbl, err := panel.New(rows)
	require.NoError(t, err)
	p, err := pipeline.New(config.DefaultAnalysis(), testLogger(), nil)
	require.NoError(t, err)
	out, err := p.Run(context.Background(), tbl)
	require.NoError(t, err)
	return out
}

func newTestRouter(t *testing.T, store *ResultStore, server config.ServerConfig) http.Handler {
	t.Helper()
	h, err := NewRouter(RouterDeps{
		Store:          store,
		Server:         server,
		Logger:         testLogger(),
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("# metrics")) }),
	})
	require.NoError(t, err)
	return h
}

func get(t *testing.T, h http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	if body != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), body), rec.Body.String())
	}
	return rec
}

func TestRouter_NoResults(t *testing.T) {
	h := newTestRouter(t, NewResultStore(), config.ServerConfig{})

	var health HealthResponse
	rec := get(t, h, "/healthz", &health)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, health.HasResults)

	rec = get(t, h, "/readyz", &health)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "waiting_for_results", health.Status)

	var problem map[string]interface{}
	rec = get(t, h, "/api/v1/summary", &problem)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "NO_RESULTS", problem["error_code"])
	assert.NotEmpty(t, problem["trace_id"])
}

func TestRouter_Results(t *testing.T) {
	store := NewResultStore()
	out := runOutput(t)
	store.Set(out)
	h := newTestRouter(t, store, config.ServerConfig{})

	t.Run("summary", func(t *testing.T) {
		var resp SummaryResponse
		rec := get(t, h, "/api/v1/summary", &resp)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, out.RunID, resp.RunID)
		assert.Equal(t, []string{"X"}, resp.CorrectedEntities)
		require.NotNil(t, resp.BreakYearAlert)
		assert.Equal(t, 2020, resp.BreakYearAlert.Year)
		assert.Equal(t, 2, resp.IssueCount)
		assert.Len(t, resp.Steps, 8)
	})

	t.Run("diagnosis", func(t *testing.T) {
		var resp DiagnosisResponse
		rec := get(t, h, "/api/v1/diagnosis", &resp)
		require.Equal(t, http.StatusOK, rec.Code)
		yd, ok := resp.Before.Year(2020)
		require.True(t, ok)
		assert.Equal(t, 1, yd.AnomalyCount)
		yd, ok = resp.After.Year(2020)
		require.True(t, ok)
		assert.Equal(t, 0, yd.AnomalyCount)
	})

	t.Run("corrections", func(t *testing.T) {
		var resp map[string]interface{}
		rec := get(t, h, "/api/v1/corrections", &resp)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.EqualValues(t, 2020, resp["break_year"])
	})

	t.Run("trends", func(t *testing.T) {
		var all, byCat TrendsResponse
		require.Equal(t, http.StatusOK, get(t, h, "/api/v1/trends", &all).Code)
		require.Equal(t, http.StatusOK, get(t, h, "/api/v1/trends?group=category", &byCat).Code)
		assert.Equal(t, GroupAll, all.GroupBy)
		assert.Equal(t, len(out.Trends.Trends), all.Count)
		assert.Equal(t, GroupCategory, byCat.GroupBy)
		assert.Equal(t, len(out.CategoryTrends.Trends), byCat.Count)

		var ok TrendsResponse
		require.Equal(t, http.StatusOK, get(t, h, "/api/v1/trends?status=ok&significant=true", &ok).Code)
		for _, mt := range ok.Trends {
			assert.Equal(t, "ok", string(mt.Status))
			assert.NotEqual(t, "NS", string(mt.Significance))
		}
	})

	t.Run("metric", func(t *testing.T) {
		var resp TrendsResponse
		rec := get(t, h, "/api/v1/trends/admin_per_fte_real", &resp)
		require.Equal(t, http.StatusOK, rec.Code)
		// overall plus Public and Private
		assert.Equal(t, 3, resp.Count)

		var problem map[string]interface{}
		rec = get(t, h, "/api/v1/trends/unknown_metric", &problem)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "NOT_FOUND", problem["error_code"])
	})

	t.Run("issues", func(t *testing.T) {
		var resp IssuesResponse
		require.Equal(t, http.StatusOK, get(t, h, "/api/v1/issues", &resp).Code)
		assert.Equal(t, 2, resp.Total)

		require.Equal(t, http.StatusOK, get(t, h, "/api/v1/issues?stage=inflation&limit=5", &resp).Code)
		require.Equal(t, 1, resp.Total)
		assert.Equal(t, "B", resp.Issues[0].EntityID)
		assert.Equal(t, 2024, resp.Issues[0].Year)

		require.Equal(t, http.StatusOK, get(t, h, "/api/v1/issues?limit=1", &resp).Code)
		assert.Equal(t, 2, resp.Total)
		assert.Len(t, resp.Issues, 1)
	})

	t.Run("health", func(t *testing.T) {
		var health HealthResponse
		require.Equal(t, http.StatusOK, get(t, h, "/readyz", &health).Code)
		assert.True(t, health.HasResults)
		assert.Equal(t, out.RunID, health.RunID)
	})

	t.Run("metrics", func(t *testing.T) {
		rec := get(t, h, "/metrics", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "# metrics", rec.Body.String())
	})
}

func TestRouter_BadRequests(t *testing.T) {
	store := NewResultStore()
	store.Set(runOutput(t))
	h := newTestRouter(t, store, config.ServerConfig{})

	tests := []struct {
		name   string
		path   string
		status int
		param  string
	}{
		{"bad group", "/api/v1/trends?group=state", http.StatusBadRequest, "group"},
		{"bad status", "/api/v1/trends?status=done", http.StatusBadRequest, "status"},
		{"bad bool", "/api/v1/trends?significant=yes-please", http.StatusBadRequest, "significant"},
		{"bad metric", "/api/v1/trends/Admin%20Pct", http.StatusBadRequest, "metric"},
		{"bad limit", "/api/v1/issues?limit=-1", http.StatusBadRequest, "limit"},
		{"unknown route", "/api/v1/nothing", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var problem map[string]interface{}
			rec := get(t, h, tt.path, &problem)
			assert.Equal(t, tt.status, rec.Code)
			if tt.param != "" {
				details, ok := problem["details"].(map[string]interface{})
				require.True(t, ok, "details missing: %v", problem)
				assert.Equal(t, tt.param, details["parameter"])
			}
		})
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/summary", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRouter_RateLimit(t *testing.T) {
	store := NewResultStore()
	store.Set(runOutput(t))
	h := newTestRouter(t, store, config.ServerConfig{
		RateLimit: config.RateLimitConfig{Enabled: true, RPS: 0.1, Burst: 1},
	})

	assert.Equal(t, http.StatusOK, get(t, h, "/api/v1/summary", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, get(t, h, "/api/v1/summary", nil).Code)
	// health checks are not limited
	assert.Equal(t, http.StatusOK, get(t, h, "/healthz", nil).Code)
}

func TestResultStore(t *testing.T) {
	s := NewResultStore()
	_, ok := s.Latest()
	assert.False(t, ok)

	out := &pipeline.Output{RunID: "r1"}
	s.Set(out)
	got, ok := s.Latest()
	assert.True(t, ok)
	assert.Same(t, out, got)
}
