package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/aristath/allocator/internal/database"
	"github.com/aristath/allocator/internal/modules/historical"
	testingpkg "github.com/aristath/allocator/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(t *testing.T, importDir string) (*chi.Mux, *historical.HistoryDB) {
	t.Helper()
	logger := zerolog.Nop()
	db := testingpkg.NewTestDB(t, database.NameHistory)
	historyDB := historical.NewHistoryDB(db.Conn(), logger)

	require.NoError(t, historyDB.UpsertPrices(context.Background(), "SPY", "test", []historical.DailyPrice{
		{Date: "2024-01-02", Close: 100},
		{Date: "2024-01-31", Close: 110},
		{Date: "2024-02-01", Close: 121},
	}))

	handler := NewHandler(historyDB, historical.NewImporter(historyDB, importDir, logger), logger)
	router := chi.NewRouter()
	router.Route("/api", handler.RegisterRoutes)
	return router, historyDB
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.NotNil(t, response["metadata"])
	return response["data"].(map[string]interface{})
}

func TestHandleListTickers(t *testing.T) {
	router, _ := setupRouter(t, "")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/historical/", nil))

	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)
	assert.EqualValues(t, 1, data["count"])
}

func TestHandleGetDailyPrices(t *testing.T) {
	router, _ := setupRouter(t, "")

	tests := []struct {
		name           string
		path           string
		expectedStatus int
		expectedCount  int
	}{
		{name: "all prices", path: "/api/historical/SPY", expectedStatus: http.StatusOK, expectedCount: 3},
		{name: "lowercase ticker", path: "/api/historical/spy", expectedStatus: http.StatusOK, expectedCount: 3},
		{name: "since filter", path: "/api/historical/SPY?since=2024-01-31", expectedStatus: http.StatusOK, expectedCount: 2},
		{name: "bad since", path: "/api/historical/SPY?since=yesterday", expectedStatus: http.StatusBadRequest},
		{name: "unknown ticker", path: "/api/historical/NOPE", expectedStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest("GET", tt.path, nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusOK {
				data := decode(t, w)
				assert.EqualValues(t, tt.expectedCount, data["count"])
				assert.Equal(t, "SPY", data["ticker"])
			}
		})
	}
}

func TestHandleGetReturns(t *testing.T) {
	router, _ := setupRouter(t, "")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/historical/SPY/returns?frequency=M", nil))
	require.Equal(t, http.StatusOK, w.Code)

	data := decode(t, w)
	assert.Equal(t, "M", data["frequency"])
	returns := data["returns"].([]interface{})
	require.Len(t, returns, 2)
	assert.InDelta(t, 0.1, returns[0].(map[string]interface{})["return"].(float64), 1e-12)
	assert.InDelta(t, 0.1, returns[1].(map[string]interface{})["return"].(float64), 1e-12)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/historical/SPY/returns?frequency=Q", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleImport(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "agg.csv"), []byte("date,AGG\n2024-01-02,50\n"), 0644))
	router, historyDB := setupRouter(t, dir)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/api/historical/import", nil))
	require.Equal(t, http.StatusOK, w.Code)

	data := decode(t, w)
	assert.EqualValues(t, 1, data["files"])
	assert.EqualValues(t, 1, data["rows"])

	tickers, err := historyDB.ListTickers(context.Background())
	require.NoError(t, err)
	assert.Len(t, tickers, 2)
}

func TestHandleImport_NotConfigured(t *testing.T) {
	router, _ := setupRouter(t, "")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/api/historical/import", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
