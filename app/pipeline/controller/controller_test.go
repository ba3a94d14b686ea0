package controller

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/vyaparbazaar/featurex/app/pipeline/types"
	"github.com/vyaparbazaar/featurex/pkg/config"
	"github.com/vyaparbazaar/featurex/pkg/db/memory"
	"github.com/vyaparbazaar/featurex/pkg/pipeline"
)

func newTestController(t *testing.T) (*Controller, *mux.Router) {
	t.Helper()
	cfg := config.Default()
	cfg.Workers = 2
	engine := pipeline.New(cfg, zap.NewNop(), memory.NewSourceStore(), memory.NewStagingStore(),
		memory.NewFactStore(), memory.NewFeatureStore(), memory.NewStateStore(), pipeline.NewMemoryLocker())

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.DefaultCost)
	require.NoError(t, err)

	c := &Controller{
		App: &types.App{
			Cfg:    cfg,
			Engine: engine,
			Logger: zap.NewNop(),
		},
		AdminToken: "test-token",
		JWTSecret:  []byte("test-secret"),
		Users:      map[string]User{"ops": {Username: "ops", Hash: hash, Role: "admin"}},
	}
	router, err := c.NewRouter()
	require.NoError(t, err)
	return c, router
}

func TestStagesListRequiresAuth(t *testing.T) {
	_, router := newTestController(t)

	req := httptest.NewRequest(http.MethodGet, "/api/stages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/stages", nil)
	req.Header.Set("Authorization", "Bearer test-token")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, `"staging"`)
	require.Contains(t, body, `"sales_overview"`)
}

func TestStageStatusUnknownStage(t *testing.T) {
	_, router := newTestController(t)

	req := httptest.NewRequest(http.MethodGet, "/api/stages/nope/status", nil)
	req.Header.Set("Authorization", "Bearer test-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStageRunRejectsBadMode(t *testing.T) {
	_, router := newTestController(t)

	req := httptest.NewRequest(http.MethodPost, "/api/stages/staging/run?mode=sideways", nil)
	req.Header.Set("Authorization", "Bearer test-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStageRunAccepted(t *testing.T) {
	_, router := newTestController(t)

	req := httptest.NewRequest(http.MethodPost, "/api/stages/staging/run", nil)
	req.Header.Set("Authorization", "Bearer test-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Contains(t, rec.Body.String(), `"started"`)
	// Let the background run settle before the test tears down.
	time.Sleep(50 * time.Millisecond)
}

func TestLoginIssuesSessionCookie(t *testing.T) {
	_, router := newTestController(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"username":"ops","password":"hunter2"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var session *http.Cookie
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == "fx_session" {
			session = ck
		}
	}
	require.NotNil(t, session)
	require.NotEmpty(t, session.Value)

	// The cookie authenticates subsequent requests.
	req = httptest.NewRequest(http.MethodGet, "/api/stages", nil)
	req.AddCookie(session)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	_, router := newTestController(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"username":"ops","password":"wrong"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
