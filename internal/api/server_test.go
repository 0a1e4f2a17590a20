package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evidence-triage-server/internal/config"
	"github.com/evidence-triage-server/internal/domain"
	"github.com/evidence-triage-server/internal/logstore"
	"github.com/evidence-triage-server/internal/service"
)

type staticAdapter struct {
	name    string
	studies []domain.NormalizedStudy
}

func (a *staticAdapter) Name() string { return a.name }

func (a *staticAdapter) Search(ctx context.Context, query string, filters domain.AdapterFilters) ([]domain.NormalizedStudy, error) {
	return a.studies, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	store, err := logstore.NewMemoryStore(16)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	adapters := []domain.SourceAdapter{&staticAdapter{
		name: "PubMed",
		studies: []domain.NormalizedStudy{
			{
				ID: "PMID:1", DOI: "10.1/a", SourceDatabase: "PubMed",
				Title:        "Aspirin for cardiovascular prevention: a randomized controlled trial",
				RawStudyType: "Randomized Controlled Trial",
				PublishedAt:  time.Now().AddDate(-1, 0, 0),
				Abstract: "Double-blind placebo-controlled trial of aspirin for cardiovascular prevention; " +
					"participants were randomly assigned, intention-to-treat analysis of the prespecified " +
					"primary endpoint with complete follow-up and blinded outcome adjudication.",
				Authors: []string{"A", "B", "C"},
			},
		},
	}}

	pipeline := service.NewPipeline(
		service.NewExpander(config.DefaultVocabulary()),
		service.NewOrchestrator(adapters, time.Second, 50, logger),
		service.NewScreener(service.ScreeningConfig{}, logger),
		service.NewHeuristicBiasAssessor(),
		store,
		logger,
	)

	cfg := &config.Config{
		Server:  config.ServerConfig{Host: "127.0.0.1", Port: 0},
		Logging: config.LoggingConfig{Level: "error"},
	}
	return NewServer(cfg, pipeline, logger)
}

func TestServer_Health(t *testing.T) {
	server := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	server.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestServer_SearchAndFetchLog(t *testing.T) {
	server := newTestServer(t)

	body, err := json.Marshal(map[string]any{
		"query": "aspirin cardiovascular prevention",
		"filters": map[string]any{
			"include_screening_log": true,
		},
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/evidence/search", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	server.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result domain.SearchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.NotEmpty(t, result.QueryID)
	assert.Len(t, result.IncludedStudies, 1)
	require.NotNil(t, result.ScreeningLog)

	// The persisted log is retrievable by query id.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/evidence/screening-logs/"+result.QueryID, nil)
	server.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var log domain.ScreeningLog
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &log))
	assert.Equal(t, result.QueryID, log.QueryID)
}

func TestServer_SearchRejectsMissingQuery(t *testing.T) {
	server := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/evidence/search", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	server.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_SearchRejectsInvalidFilters(t *testing.T) {
	server := newTestServer(t)

	body := []byte(`{"query": "aspirin", "filters": {"max_results": -5}}`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/evidence/search", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	server.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "max_results")
}

func TestServer_GetScreeningLogNotFound(t *testing.T) {
	server := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/evidence/screening-logs/9f0c2f6e-0b63-4a57-9e1f-0a6c24d3f111", nil)
	server.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_GetScreeningLogRejectsBadID(t *testing.T) {
	server := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/evidence/screening-logs/not-a-uuid", nil)
	server.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_ListScreeningLogs(t *testing.T) {
	server := newTestServer(t)

	body := []byte(`{"query": "aspirin cardiovascular prevention"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/evidence/search", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/evidence/screening-logs?limit=10", nil)
	server.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		ScreeningLogs []domain.ScreeningLog `json:"screening_logs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.ScreeningLogs, 1)
}

func TestServer_CORSPreflights(t *testing.T) {
	server := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/evidence/search", nil)
	server.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
