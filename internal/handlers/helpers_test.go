package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"talkquest/internal/database"
	"talkquest/internal/models"
	"talkquest/internal/security"
	"talkquest/internal/service"
)

const testInternalToken = "internal-secret"

type testServer struct {
	handler   http.Handler
	verifier  *security.IdentityVerifier
	directory *service.UserDirectory
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := database.Initialize(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = db.RunMigrations(context.Background())
	require.NoError(t, err)

	logger := zap.NewNop()
	clock := service.SystemClock()

	events := service.NewEventLog(db, clock)
	xp := service.NewXPService(db, events, nil, clock, logger, 500)
	achievements := service.NewAchievementService(db, xp, events, nil, clock, logger)
	streaks := service.NewStreakService(db, achievements, events, nil, clock, time.UTC, logger)
	streaks.Milestones = nil
	goals := service.NewGoalService(db, xp, achievements, events, nil, nil, clock, logger)
	goals.Milestones = nil
	stats := service.NewStatsService(db, nil, time.Minute, logger)
	directory := service.NewUserDirectory(db, clock)

	verifier, err := security.NewIdentityVerifier("test-secret", "")
	require.NoError(t, err)

	handler := NewRouter(Routes{
		Middleware: NewMiddleware(verifier, directory, nil, testInternalToken, logger),
		Health:     NewHealthHandler(db, logger),
		Progress:   NewProgressHandler(stats, streaks, xp, achievements, events, logger),
		Practice:   NewPracticeHandler(service.NewPracticeService(db, clock, logger), logger),
		Goals:      NewGoalHandler(goals, logger),
		Internal:   NewInternalHandler(achievements, logger),
		Logger:     logger,
	})

	return &testServer{handler: handler, verifier: verifier, directory: directory}
}

func (s *testServer) token(t *testing.T, identity models.Identity) string {
	t.Helper()

	token, err := s.verifier.Sign(&identity, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	require.NoError(t, err)
	return token
}

// do sends a request as identity. A nil identity sends no token.
func (s *testServer) do(t *testing.T, method, path string, identity *models.Identity, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if identity != nil {
		req.Header.Set("Authorization", "Bearer "+s.token(t, *identity))
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

// sync mirrors identity into the directory without a request
func (s *testServer) sync(t *testing.T, identity models.Identity) {
	t.Helper()
	require.NoError(t, s.directory.Sync(context.Background(), identity))
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

var (
	childIdentity     = models.Identity{UserID: "child-1", Role: models.RoleChild, Name: "Sam"}
	otherChild        = models.Identity{UserID: "child-2", Role: models.RoleChild, Name: "Alex"}
	parentIdentity    = models.Identity{UserID: "parent-1", Role: models.RoleParent, Name: "Pat", Children: []string{"child-1"}}
	therapistIdentity = models.Identity{UserID: "therapist-1", Role: models.RoleTherapist, Name: "Dr Lee"}
)

func jsonReader(t *testing.T, v interface{}) *bytes.Reader {
	t.Helper()

	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func jsonRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()

	req := httptest.NewRequest(method, path, jsonReader(t, body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func serve(s *testServer, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}
