package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecoroute/internal/chromemdb"
	"ecoroute/internal/chunk"
	"ecoroute/internal/emission"
	"ecoroute/internal/llmservice"
	"ecoroute/internal/models"
	"ecoroute/internal/parser"
	"ecoroute/internal/planner"
	"ecoroute/internal/rag"
	"ecoroute/internal/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeQA struct {
	err error
}

func (f *fakeQA) Ask(_ context.Context, question string) (models.PromptResponse, error) {
	if strings.TrimSpace(question) == "" {
		return models.PromptResponse{}, rag.ErrEmptyQuestion
	}
	if f.err != nil {
		return models.PromptResponse{}, f.err
	}
	return models.PromptResponse{Query: question, Source: "Metro: 0.011", Content: "Take the metro."}, nil
}

type fakeClient struct {
	err error
}

func (f *fakeClient) Answer(context.Context, string) (string, error) {
	return "Cycle.", f.err
}

func newTestServer(t *testing.T, qa rag.Answerer) (*Server, *session.Manager) {
	t.Helper()
	india, err := emission.Builtin(emission.TableIndia)
	require.NoError(t, err)
	urban, err := emission.Builtin(emission.TableUrban)
	require.NoError(t, err)
	sessions := session.NewManager(10)
	return New(Deps{
		Table:    india,
		QA:       qa,
		Planner:  planner.New(urban, &fakeClient{err: fmt.Errorf("%w: refused", llmservice.ErrServiceUnavailable)}),
		Sessions: sessions,
	}), sessions
}

func do(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 && strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func TestEmissionRoutes(t *testing.T) {
	s, _ := newTestServer(t, &fakeQA{})

	t.Run("ShouldListModes", func(t *testing.T) {
		w, body := do(t, s, http.MethodGet, "/api/modes", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "india", body["table"])
		assert.Len(t, body["modes"], 8)
	})
	t.Run("ShouldCalculateMetro", func(t *testing.T) {
		w, body := do(t, s, http.MethodPost, "/api/emissions", `{"mode":"Metro","distance_km":10}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.InDelta(t, 0.11, body["emissions_kg"], 1e-9)
		assert.Equal(t, false, body["zero_emissions"])
	})
	t.Run("ShouldFlagZeroEmissions", func(t *testing.T) {
		w, body := do(t, s, http.MethodPost, "/api/emissions", `{"mode":"Walking","distance_km":5}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, body["zero_emissions"])
	})
	t.Run("ShouldRejectUnknownMode", func(t *testing.T) {
		w, body := do(t, s, http.MethodPost, "/api/emissions", `{"mode":"Unicycle","distance_km":5}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, body["error"], "unknown transport mode")
		assert.NotContains(t, body, "emissions_kg")
	})
	t.Run("ShouldRequireDistance", func(t *testing.T) {
		w, _ := do(t, s, http.MethodPost, "/api/emissions", `{"mode":"Metro"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
	t.Run("ShouldCompareModes", func(t *testing.T) {
		w, body := do(t, s, http.MethodPost, "/api/compare", `{"distance_km":10,"priority":"eco"}`)
		require.Equal(t, http.StatusOK, w.Code)
		routes := body["routes"].([]any)
		require.Len(t, routes, 8)
		assert.Equal(t, "Walking", routes[0].(map[string]any)["mode"])
		assert.Contains(t, body, "savings")
	})
	t.Run("ShouldRejectUnknownPriority", func(t *testing.T) {
		w, _ := do(t, s, http.MethodPost, "/api/compare", `{"distance_km":10,"priority":"scenic"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestPlanRoute(t *testing.T) {
	s, _ := newTestServer(t, &fakeQA{})

	t.Run("ShouldReturnRoutesWithFallbackRecommendation", func(t *testing.T) {
		w, body := do(t, s, http.MethodPost, "/api/plan", `{"origin":"Indiranagar","destination":"Whitefield","distance_km":8,"priority":"fast"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, planner.FallbackRecommendation, body["recommendation"])
		assert.Contains(t, body["recommendation_error"], "unavailable")
		assert.Len(t, body["routes"], 7)
	})
	t.Run("ShouldRequireEndpoints", func(t *testing.T) {
		w, _ := do(t, s, http.MethodPost, "/api/plan", `{"origin":"Indiranagar","distance_km":8}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSessionRoutes(t *testing.T) {
	t.Run("ShouldAskWithinSessionAndRecordHistory", func(t *testing.T) {
		s, sessions := newTestServer(t, &fakeQA{})
		w, body := do(t, s, http.MethodPost, "/api/sessions", "")
		require.Equal(t, http.StatusCreated, w.Code)
		id := body["id"].(string)

		w, body = do(t, s, http.MethodPost, "/api/sessions/"+id+"/ask", `{"question":"Is the metro green?"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Take the metro.", body["content"])

		sess, err := sessions.Get(id)
		require.NoError(t, err)
		require.Len(t, sess.History(), 1)
		assert.Equal(t, "Is the metro green?", sess.History()[0].Question)

		w, body = do(t, s, http.MethodGet, "/api/sessions/"+id, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, body["history"], 1)

		w, _ = do(t, s, http.MethodDelete, "/api/sessions/"+id, "")
		assert.Equal(t, http.StatusNoContent, w.Code)
		w, _ = do(t, s, http.MethodDelete, "/api/sessions/"+id, "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
	t.Run("ShouldReturnNotFoundForUnknownSession", func(t *testing.T) {
		s, _ := newTestServer(t, &fakeQA{})
		w, body := do(t, s, http.MethodPost, "/api/sessions/missing/ask", `{"question":"hi"}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, body["error"], "session not found")
	})
	t.Run("ShouldRejectEmptyQuestion", func(t *testing.T) {
		s, _ := newTestServer(t, &fakeQA{})
		_, body := do(t, s, http.MethodPost, "/api/sessions", "")
		w, _ := do(t, s, http.MethodPost, "/api/sessions/"+body["id"].(string)+"/ask", `{"question":"   "}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
	t.Run("ShouldReportUnavailableModel", func(t *testing.T) {
		s, sessions := newTestServer(t, &fakeQA{err: fmt.Errorf("%w: timeout", llmservice.ErrServiceUnavailable)})
		_, body := do(t, s, http.MethodPost, "/api/sessions", "")
		id := body["id"].(string)
		w, _ := do(t, s, http.MethodPost, "/api/sessions/"+id+"/ask", `{"question":"metro?"}`)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		sess, err := sessions.Get(id)
		require.NoError(t, err)
		assert.NotEmpty(t, sess.History()[0].Err)
	})
}

func TestAskWithEmbeddingOutage(t *testing.T) {
	ctx := context.Background()
	calls := 0
	// the first call embeds the only chunk, then the service goes away
	embed := func(context.Context, string) ([]float32, error) {
		calls++
		if calls > 1 {
			return nil, errors.New("dial tcp 127.0.0.1:11434: connect: connection refused")
		}
		return []float32{1, 0}, nil
	}
	store, err := chromemdb.NewVectorDBManager("", "kb", embed, "")
	require.NoError(t, err)
	splitter, err := chunk.New(chunk.StrategyFixed, 500, 0)
	require.NoError(t, err)
	qa := rag.NewVectorQA(store, &fakeClient{}, splitter, 3)
	_, err = qa.Ingest(ctx, &parser.Corpus{Documents: []parser.Document{{Source: "kb.txt", Content: "Metro Rail emits 0.011 kg per km."}}})
	require.NoError(t, err)

	s, _ := newTestServer(t, qa)
	_, body := do(t, s, http.MethodPost, "/api/sessions", "")
	w, body := do(t, s, http.MethodPost, "/api/sessions/"+body["id"].(string)+"/ask", `{"question":"metro?"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, body["error"], "connection refused")
}

func TestOperationalRoutes(t *testing.T) {
	s, _ := newTestServer(t, &fakeQA{})
	do(t, s, http.MethodPost, "/api/emissions", `{"mode":"Metro","distance_km":10}`)

	w, body := do(t, s, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `ecoroute_lookups_total{kind="emission",result="ok"} 1`)
}
