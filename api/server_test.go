package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ricmunrom/botAtencionClientes/agent/business"
	"github.com/ricmunrom/botAtencionClientes/agent/catalog"
	contractx "github.com/ricmunrom/botAtencionClientes/agent/contract"
	"github.com/ricmunrom/botAtencionClientes/agent/finance"
	"github.com/ricmunrom/botAtencionClientes/agent/knowledge"
	"github.com/ricmunrom/botAtencionClientes/agent/search"
	statex "github.com/ricmunrom/botAtencionClientes/agent/state"
)

func setupRouter(t *testing.T, cfg Config) *gin.Engine {
	t.Helper()

	cat, err := catalog.New("test", []catalog.Row{
		{"stock_id": "10", "make": "Nissan", "model": "Versa", "year": "2020", "price": "220000"},
		{"stock_id": "11", "make": "Nissan", "model": "Sentra", "year": "2022", "price": "310000"},
		{"stock_id": "12", "make": "Kia", "model": "Rio", "year": "2019", "price": "200000"},
	})
	require.NoError(t, err)
	svc, err := business.New(search.New(cat), finance.New(), statex.NewStore(), knowledge.MustLoad(), business.Config{})
	require.NoError(t, err)

	router, err := NewRouter(StartOpts{Config: cfg, Business: svc})
	require.NoError(t, err)
	return router
}

func do(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestNewRouterRequiresBusiness(t *testing.T) {
	t.Parallel()

	_, err := NewRouter(StartOpts{})
	assert.Error(t, err)
	assert.Error(t, Start(context.Background(), StartOpts{}))
}

func TestHealthAndRequestID(t *testing.T) {
	t.Parallel()

	router := setupRouter(t, Config{})
	rec := do(t, router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(headerRequestID))

	body := decode[map[string]any](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(3), body["vehicles"])

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(headerRequestID, "req-42")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "req-42", rec.Header().Get(headerRequestID))
}

func TestConversationFlow(t *testing.T) {
	t.Parallel()

	router := setupRouter(t, Config{})

	rec := do(t, router, http.MethodPost, "/v1/users/u1/search", map[string]any{"brand": "nissan"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[search.Result](t, rec)
	require.Len(t, res.Vehicles, 2)
	assert.Equal(t, int64(10), res.Vehicles[0].ID)

	rec = do(t, router, http.MethodPost, "/v1/users/u1/select", map[string]any{"position": 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(11), decode[catalog.Vehicle](t, rec).ID)

	rec = do(t, router, http.MethodPost, "/v1/users/u1/financing", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	plans := decode[struct {
		Plans []finance.Plan `json:"plans"`
	}](t, rec).Plans
	assert.Len(t, plans, 12)

	rec = do(t, router, http.MethodGet, "/v1/users/u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(statex.PhaseFocused), decode[map[string]any](t, rec)["phase"])

	rec = do(t, router, http.MethodPost, "/v1/users/u1/reset", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, router, http.MethodPost, "/v1/users/u1/financing", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, contractx.CodeNoSelection, decode[errorBody](t, rec).Code)

	rec = do(t, router, http.MethodDelete, "/v1/users/u1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, router, http.MethodGet, "/v1/users", nil)
	assert.JSONEq(t, `{"users":[]}`, rec.Body.String())
}

func TestErrorStatuses(t *testing.T) {
	t.Parallel()

	router := setupRouter(t, Config{})

	rec := do(t, router, http.MethodPost, "/v1/users/u2/select", map[string]any{"position": 1})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, contractx.CodeNoSearch, decode[errorBody](t, rec).Code)

	do(t, router, http.MethodPost, "/v1/users/u2/search", map[string]any{"brand": "kia"})
	rec = do(t, router, http.MethodPost, "/v1/users/u2/select", map[string]any{"position": 5})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Equal(t, contractx.CodeOutOfRange, body.Code)
	assert.Equal(t, float64(1), body.Detail["available"])

	rec = do(t, router, http.MethodPost, "/v1/users/u2/select", map[string]any{"stock_id": 404})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/users/u2/search", bytes.NewBufferString("{broken"))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/v1/sweep", map[string]any{"max_age": "soon"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestToolEndpoint(t *testing.T) {
	t.Parallel()

	router := setupRouter(t, Config{})

	rec := do(t, router, http.MethodGet, "/v1/tools", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), contractx.ToolFinancingOptions)

	rec = do(t, router, http.MethodGet, "/v1/tools?format=eino", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	einoTools := decode[struct {
		Tools []struct {
			Name       string         `json:"name"`
			Parameters map[string]any `json:"parameters"`
		} `json:"tools"`
	}](t, rec).Tools
	require.Len(t, einoTools, 4)
	assert.Equal(t, contractx.ToolCompanyInfo, einoTools[0].Name)
	assert.Contains(t, einoTools[0].Parameters, "properties")

	rec = do(t, router, http.MethodPost, "/v1/users/u3/tools", contractx.ToolRequest{
		Tool: contractx.ToolCompanyInfo,
		Args: map[string]any{"query": "¿dónde están sus sedes?"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[contractx.ToolResult](t, rec)
	assert.False(t, res.Failed())
	assert.Equal(t, "sedes_ubicaciones", res.Result.(map[string]any)["topic"])

	rec = do(t, router, http.MethodPost, "/v1/users/u3/tools", contractx.ToolRequest{Tool: "nope"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, contractx.CodeUnknownTool, decode[contractx.ToolResult](t, rec).Code)
}

func TestSweepEndpoint(t *testing.T) {
	t.Parallel()

	router := setupRouter(t, Config{})
	do(t, router, http.MethodPost, "/v1/users/idle/search", nil)
	time.Sleep(5 * time.Millisecond)

	rec := do(t, router, http.MethodPost, "/v1/sweep", map[string]any{"max_age": "1ms"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode[map[string]any](t, rec)["removed"])
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	router := setupRouter(t, Config{RateLimit: 0.001, RateBurst: 2})
	assert.Equal(t, http.StatusOK, do(t, router, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, router, http.MethodGet, "/health", nil).Code)

	rec := do(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestCatalogStats(t *testing.T) {
	t.Parallel()

	rec := do(t, setupRouter(t, Config{}), http.MethodGet, "/v1/catalog/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[catalog.Stats](t, rec)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 200000.0, stats.PriceMin)
}

func TestCapabilities(t *testing.T) {
	t.Parallel()

	rec := do(t, setupRouter(t, Config{}), http.MethodGet, "/v1/capabilities", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	caps := decode[contractx.Capabilities](t, rec)
	assert.Equal(t, []int{3, 4, 5, 6}, caps.TermYears)
	assert.Equal(t, []float64{0.10, 0.20, 0.30}, caps.DownPaymentPcts)
	assert.Len(t, caps.Topics, 10)
	assert.InDelta(t, 0.10, caps.AnnualRate, 1e-9)
}
