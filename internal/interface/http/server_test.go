package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/pixelcoders/roadmap-progress/internal/application/command"
	"github.com/pixelcoders/roadmap-progress/internal/application/query"
	"github.com/pixelcoders/roadmap-progress/internal/application/saga"
	"github.com/pixelcoders/roadmap-progress/internal/domain/gamification"
	"github.com/pixelcoders/roadmap-progress/internal/domain/roadmap"
	"github.com/pixelcoders/roadmap-progress/internal/infrastructure/idgen"
	"github.com/pixelcoders/roadmap-progress/internal/infrastructure/persistence/memory"
	"github.com/pixelcoders/roadmap-progress/internal/interface/http/handlers"
	"github.com/pixelcoders/roadmap-progress/pkg/logger"
	"github.com/pixelcoders/roadmap-progress/pkg/timeutil"
)

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     *APIError       `json:"error"`
	RequestID string          `json:"request_id"`
}

type testServer struct {
	server *Server
	store  *memory.Store
}

func newTestServer(t *testing.T, configure func(*Config)) *testServer {
	t.Helper()

	nodes := []roadmap.Node{{ID: "html"}, {ID: "css"}, {ID: "javascript"}, {ID: "react"}, {ID: "testing"}}
	graph, err := roadmap.NewGraph(roadmap.NewGraphParams{ID: "frontend_dev", Title: "Frontend Developer", Nodes: nodes})
	require.NoError(t, err)
	catalog, err := roadmap.NewStaticCatalog(graph)
	require.NoError(t, err)

	st := memory.New()
	registry := gamification.MustDefaultRegistry()
	clock := timeutil.NewManualClock(time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC))
	ids := idgen.UUID{}

	flow := saga.NewAchievementFlow(catalog, gamification.NewEvaluator(registry), ids, time.UTC)
	complete := command.NewCompleteNodeHandler(command.CompleteNodeDeps{
		Catalog: catalog,
		Store:   st,
		Flow:    flow,
		IDs:     ids,
		Clock:   clock,
	}, command.DefaultCompleteNodeHandlerConfig())

	health := handlers.NewCompositeHealthChecker("test")
	health.AddCheck("store", handlers.NewPingCheck(st))

	cfg := DefaultConfig()
	cfg.RateLimitRPS = 0
	if configure != nil {
		configure(&cfg)
	}

	srv := NewServer(cfg, Dependencies{
		CompleteNode:  complete,
		Progress:      query.NewGetProgressHandler(catalog, st, nil, nil),
		Achievements:  query.NewAchievementsHandler(registry, st),
		Roadmaps:      query.NewRoadmapsHandler(catalog),
		GameState:     query.NewGetGameStateHandler(st, clock),
		HealthChecker: health,
		Logger:        logger.Nop(),
	})
	t.Cleanup(func() {
		if srv.rateLimiter != nil {
			srv.rateLimiter.Stop()
		}
	})
	return &testServer{server: srv, store: st}
}

func (ts *testServer) do(t *testing.T, method, path, userID, body string, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if userID != "" {
		req.Header.Set(handlers.UserIDHeader, userID)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t, nil)

	rec, env := ts.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec, env = ts.do(t, http.MethodGet, "/ready", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var status handlers.HealthStatus
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.True(t, status.Ready)
	assert.True(t, status.Checks["store"].Healthy)
}

func TestReady_StoreDownIsNotReady(t *testing.T) {
	ts := newTestServer(t, nil)
	require.NoError(t, ts.store.Close())

	rec, env := ts.do(t, http.MethodGet, "/ready", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.False(t, env.Success)
}

func TestRequestID_IsEchoed(t *testing.T) {
	ts := newTestServer(t, nil)

	rec, env := ts.do(t, http.MethodGet, "/health", "", "", "X-Request-ID", "req-42")
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "req-42", env.RequestID)
}

func TestUserRoutes_RequireIdentity(t *testing.T) {
	ts := newTestServer(t, nil)

	rec, env := ts.do(t, http.MethodGet, "/api/v1/progress", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "unauthenticated", env.Error.Code)

	rec, _ = ts.do(t, http.MethodGet, "/api/v1/progress", "bad id!", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCompleteNode(t *testing.T) {
	ts := newTestServer(t, nil)

	rec, env := ts.do(t, http.MethodPost, "/api/v1/progress/frontend_dev/complete-node", "user-1", `{"node_id":"html"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	var body struct {
		RoadmapID  string   `json:"roadmap_id"`
		Completed  []string `json:"completed_nodes"`
		Percentage float64  `json:"progress_percentage"`
		Status     string   `json:"status"`
		Changed    bool     `json:"changed"`
		XPGained   int      `json:"xp_gained"`
		GameState  struct {
			XP    int `json:"xp"`
			Level int `json:"level"`
		} `json:"game_state"`
		Unlocked []struct {
			ID string `json:"achievement_id"`
		} `json:"unlocked_achievements"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, "frontend_dev", body.RoadmapID)
	assert.Equal(t, []string{"html"}, body.Completed)
	assert.InDelta(t, 20.0, body.Percentage, 0.001)
	assert.Equal(t, "IN_PROGRESS", body.Status)
	assert.True(t, body.Changed)
	assert.Equal(t, 40, body.XPGained)
	assert.Equal(t, 40, body.GameState.XP)
	assert.Equal(t, 1, body.GameState.Level)
	assert.Len(t, body.Unlocked, 2)

	// Repeating the same node changes nothing.
	rec, env = ts.do(t, http.MethodPost, "/api/v1/progress/frontend_dev/complete-node", "user-1", `{"node_id":"html"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.False(t, body.Changed)
	assert.Equal(t, 0, body.XPGained)
	assert.Equal(t, 40, body.GameState.XP)
}

func TestCompleteNode_Errors(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name     string
		path     string
		body     string
		wantCode int
		wantErr  string
	}{
		{"unknown node", "/api/v1/progress/frontend_dev/complete-node", `{"node_id":"cobol"}`, http.StatusBadRequest, "invalid_node"},
		{"unknown roadmap", "/api/v1/progress/devops/complete-node", `{"node_id":"html"}`, http.StatusNotFound, "not_found"},
		{"malformed json", "/api/v1/progress/frontend_dev/complete-node", `{"node_id":`, http.StatusBadRequest, "invalid_request"},
		{"empty body", "/api/v1/progress/frontend_dev/complete-node", "", http.StatusBadRequest, "invalid_request"},
		{"missing node id", "/api/v1/progress/frontend_dev/complete-node", `{}`, http.StatusBadRequest, "invalid_node"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := ts.do(t, http.MethodPost, tt.path, "user-1", tt.body)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantErr, env.Error.Code)
		})
	}

	// Nothing was recorded by the failed calls.
	rec, env := ts.do(t, http.MethodGet, "/api/v1/progress", "user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(env.Data))
}

func TestCompleteNode_StoreDownIsRetryable(t *testing.T) {
	ts := newTestServer(t, nil)
	require.NoError(t, ts.store.Close())

	rec, env := ts.do(t, http.MethodPost, "/api/v1/progress/frontend_dev/complete-node", "user-1", `{"node_id":"html"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	require.NotNil(t, env.Error)
	assert.Equal(t, "unavailable", env.Error.Code)
}

func TestProgressReads(t *testing.T) {
	ts := newTestServer(t, nil)

	for _, node := range []string{"html", "css"} {
		rec, _ := ts.do(t, http.MethodPost, "/api/v1/progress/frontend_dev/complete-node", "user-1", `{"node_id":"`+node+`"}`)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	t.Run("list", func(t *testing.T) {
		rec, env := ts.do(t, http.MethodGet, "/api/v1/progress", "user-1", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var list []struct {
			RoadmapID  string  `json:"roadmap_id"`
			Percentage float64 `json:"progress_percentage"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &list))
		require.Len(t, list, 1)
		assert.InDelta(t, 40.0, list[0].Percentage, 0.001)
	})

	t.Run("single roadmap", func(t *testing.T) {
		rec, env := ts.do(t, http.MethodGet, "/api/v1/progress/frontend_dev", "user-1", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Completed []string `json:"completed_nodes"`
			Available []struct {
				ID string `json:"id"`
			} `json:"available_nodes"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &body))
		assert.Equal(t, []string{"html", "css"}, body.Completed)
		require.Len(t, body.Available, 1)
		assert.Equal(t, "javascript", body.Available[0].ID)
	})

	t.Run("unknown roadmap", func(t *testing.T) {
		rec, _ := ts.do(t, http.MethodGet, "/api/v1/progress/devops", "user-1", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("achievements", func(t *testing.T) {
		rec, env := ts.do(t, http.MethodGet, "/api/v1/user-achievements", "user-1", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var list []struct {
			ID string `json:"achievement_id"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &list))
		assert.Len(t, list, 2)
	})

	t.Run("game state", func(t *testing.T) {
		rec, env := ts.do(t, http.MethodGet, "/api/v1/game-state", "user-1", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var view struct {
			XP            int `json:"xp"`
			CurrentStreak int `json:"current_streak"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &view))
		assert.Equal(t, 50, view.XP)
		assert.Equal(t, 1, view.CurrentStreak)
	})

	t.Run("other user sees nothing", func(t *testing.T) {
		rec, env := ts.do(t, http.MethodGet, "/api/v1/progress", "user-2", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, string(env.Data))
	})
}

func TestCatalogEndpoints(t *testing.T) {
	ts := newTestServer(t, nil)

	rec, env := ts.do(t, http.MethodGet, "/api/v1/roadmaps", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var summaries []roadmap.Summary
	require.NoError(t, json.Unmarshal(env.Data, &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, 5, summaries[0].NodeCount)

	rec, env = ts.do(t, http.MethodGet, "/api/v1/roadmaps/frontend_dev", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var graph struct {
		ID    string         `json:"roadmap_id"`
		Nodes []roadmap.Node `json:"nodes"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &graph))
	assert.Equal(t, "frontend_dev", graph.ID)
	assert.Len(t, graph.Nodes, 5)

	rec, _ = ts.do(t, http.MethodGet, "/api/v1/roadmaps/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env = ts.do(t, http.MethodGet, "/api/v1/achievements", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var defs []gamification.DefinitionView
	require.NoError(t, json.Unmarshal(env.Data, &defs))
	assert.NotEmpty(t, defs)
}

func TestAPIKey(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	ts := newTestServer(t, func(c *Config) { c.APIKeyHash = string(hash) })

	rec, env := ts.do(t, http.MethodGet, "/api/v1/roadmaps", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "missing_api_key", env.Error.Code)

	rec, env = ts.do(t, http.MethodGet, "/api/v1/roadmaps", "", "", "X-API-Key", "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_api_key", env.Error.Code)

	rec, _ = ts.do(t, http.MethodGet, "/api/v1/roadmaps", "", "", "X-API-Key", "s3cret")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = ts.do(t, http.MethodGet, "/api/v1/progress", "user-1", "", "Authorization", "Bearer s3cret")
	assert.Equal(t, http.StatusOK, rec.Code)

	// Probes stay open.
	rec, _ = ts.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit_PerUser(t *testing.T) {
	ts := newTestServer(t, func(c *Config) {
		c.RateLimitRPS = 1
		c.RateLimitBurst = 2
	})

	for i := 0; i < 2; i++ {
		rec, _ := ts.do(t, http.MethodGet, "/api/v1/progress", "user-1", "")
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec, env := ts.do(t, http.MethodGet, "/api/v1/progress", "user-1", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "rate_limit_exceeded", env.Error.Code)

	// Limits are tracked per user.
	rec, _ = ts.do(t, http.MethodGet, "/api/v1/progress", "user-2", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestSizeLimit(t *testing.T) {
	ts := newTestServer(t, func(c *Config) { c.MaxBodyBytes = 16 })

	rec, env := ts.do(t, http.MethodPost, "/api/v1/progress/frontend_dev/complete-node", "user-1", `{"node_id":"javascript"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "payload_too_large", env.Error.Code)
}
