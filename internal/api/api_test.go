package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Messijah/PedagogiskDialog/internal/audio"
	"github.com/Messijah/PedagogiskDialog/internal/audit"
	"github.com/Messijah/PedagogiskDialog/internal/auth"
	"github.com/Messijah/PedagogiskDialog/internal/config"
	"github.com/Messijah/PedagogiskDialog/internal/database"
	"github.com/Messijah/PedagogiskDialog/internal/llm"
	"github.com/Messijah/PedagogiskDialog/internal/models"
	"github.com/Messijah/PedagogiskDialog/internal/prompts"
	"github.com/Messijah/PedagogiskDialog/internal/repository/sqlstore"
	"github.com/Messijah/PedagogiskDialog/internal/services"
)

type stubCompleter struct{}

func (stubCompleter) Name() string { return "stub" }

func (stubCompleter) Complete(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return &llm.CompletionResponse{Content: "## Förslag\n\nInledning"}, nil
}

// waitingCompleter never answers; it returns when its context ends.
type waitingCompleter struct{}

func (waitingCompleter) Name() string { return "waiting" }

func (waitingCompleter) Complete(ctx context.Context, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type stubTranscriber struct{}

func (stubTranscriber) Name() string { return "stub" }

func (stubTranscriber) Transcribe(context.Context, llm.TranscriptionRequest) (string, error) {
	return "Anna: vi börjar med läsplattorna.", nil
}

type testServer struct {
	app   *fiber.App
	auth  *auth.Service
	token string
}

func newTestServer(t *testing.T, completer llm.Completer, opts ...func(*config.Config)) *testServer {
	t.Helper()
	dir := t.TempDir()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	dbCfg := config.DatabaseConfig{Driver: database.DriverSQLite, Path: filepath.Join(dir, "api.db")}
	require.NoError(t, database.RunMigrations(dbCfg))
	db, err := database.NewConnection(dbCfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		Auth: config.AuthConfig{JWTSecret: "api-test-secret", Issuer: "test"},
		LLM:  config.LLMConfig{MaxChunkChars: 2000, MaxConcurrency: 2},
		Audio: config.AudioConfig{
			StorageDir:        filepath.Join(dir, "audio"),
			TempDir:           dir,
			MaxUploadMB:       1,
			DirectThresholdMB: 5,
			SegmentDuration:   10 * time.Minute,
			MaxConcurrency:    2,
			AllowedExtensions: []string{"wav"},
		},
	}

	for _, opt := range opts {
		opt(cfg)
	}

	users := sqlstore.NewUserRepository(db.DB)
	authService := auth.NewService(users, cfg.Auth, logger)
	auditService := audit.NewService(sqlstore.NewAuditLogRepository(db.DB), logger)

	gateway := llm.NewGateway(completer, stubTranscriber{}, logger, llm.WithRetryPolicy(llm.RetryPolicy{}))
	storage, err := audio.NewStorage(cfg.Audio)
	require.NoError(t, err)
	svc := services.NewServices(cfg, sqlstore.NewSessionRepository(db.DB), gateway, prompts.Default(), storage, nil, logger)

	app := NewApp(cfg.Server, logger)
	SetupRoutes(app, Dependencies{Services: svc, Auth: authService, Audit: auditService, DB: db, Logger: logger})

	now := time.Now().UTC()
	user := &models.User{
		ID: uuid.New(), Email: "anna@skolan.se", FullName: "Anna", PasswordHash: "unused",
		Role: models.RoleFacilitator, IsActive: true, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, users.Create(context.Background(), user))
	token, _, err := authService.JWT().GenerateTokenPair(user.ID, user.Email, user.Role)
	require.NoError(t, err)

	return &testServer{app: app, auth: authService, token: token}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	return s.send(t, req)
}

func (s *testServer) send(t *testing.T, req *http.Request) (int, map[string]interface{}) {
	t.Helper()
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]interface{}{}
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(data) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(data, &out))
	}
	return resp.StatusCode, out
}

func TestHealthIsPublic(t *testing.T) {
	s := newTestServer(t, stubCompleter{})
	s.token = ""

	code, body := s.do(t, http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])

	code, body = s.do(t, http.MethodGet, "/api/v1/sessions", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.EqualValues(t, http.StatusUnauthorized, body["code"])
}

func TestStageWorkflowOverHTTP(t *testing.T) {
	s := newTestServer(t, stubCompleter{})

	code, body := s.do(t, http.MethodPost, "/api/v1/sessions", map[string]string{
		"name": "Digitalisering 2024", "facilitator_name": "Anna", "participants": "Arbetslag 7-9",
	})
	require.Equal(t, http.StatusCreated, code)
	id := body["id"].(string)
	base := "/api/v1/sessions/" + id

	code, _ = s.do(t, http.MethodPost, "/api/v1/sessions", map[string]string{"facilitator_name": "Anna"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = s.do(t, http.MethodPut, base+"/stages/1", map[string]interface{}{
		"input_text": "Hur använder vi digitala verktyg?", "version": 1,
	})
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 2, body["version"])

	code, _ = s.do(t, http.MethodPost, base+"/stages/2/generate", nil)
	assert.Equal(t, http.StatusConflict, code, "stage 2 is locked")

	code, _ = s.do(t, http.MethodPost, base+"/stages/1/approve", nil)
	assert.Equal(t, http.StatusBadRequest, code, "nothing to approve yet")

	code, _ = s.do(t, http.MethodPost, base+"/stages/5/generate", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = s.do(t, http.MethodPost, base+"/stages/1/generate", nil)
	require.Equal(t, http.StatusOK, code)
	stages := body["stages"].([]interface{})
	assert.Contains(t, stages[0].(map[string]interface{})["ai_output"], "Inledning")

	code, _ = s.do(t, http.MethodPost, base+"/stages/1/approve", map[string]int{"version": 1})
	assert.Equal(t, http.StatusConflict, code, "stale version")

	code, body = s.do(t, http.MethodPost, base+"/stages/1/approve", nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 2, body["current_stage"])

	code, body = s.do(t, http.MethodGet, base+"/status", nil)
	require.Equal(t, http.StatusOK, code)
	assert.InDelta(t, 0.25, body["progress"], 0.001)

	req := httptest.NewRequest(http.MethodGet, base+"/export", nil)
	req.Header.Set("Authorization", "Bearer "+s.token)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	doc, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "handlingsplan_Digitalisering_2024_")
	assert.Contains(t, string(doc), "# HANDLINGSPLAN - Digitalisering 2024")

	code, body = s.do(t, http.MethodGet, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["sessions"], 1)

	code, _ = s.do(t, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, code)
	code, _ = s.do(t, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestOtherUsersSessionsAreHidden(t *testing.T) {
	s := newTestServer(t, stubCompleter{})

	code, body := s.do(t, http.MethodPost, "/api/v1/sessions", map[string]string{"name": "Trygghet", "facilitator_name": "Anna"})
	require.Equal(t, http.StatusCreated, code)

	other, _, err := s.auth.JWT().GenerateTokenPair(uuid.New(), "bo@skolan.se", models.RoleFacilitator)
	require.NoError(t, err)
	s.token = other

	code, _ = s.do(t, http.MethodGet, "/api/v1/sessions/"+body["id"].(string), nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = s.do(t, http.MethodGet, "/api/v1/sessions/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestGenerateWithoutBackendIs503(t *testing.T) {
	s := newTestServer(t, nil)

	code, body := s.do(t, http.MethodPost, "/api/v1/sessions", map[string]string{"name": "Trygghet", "facilitator_name": "Anna"})
	require.Equal(t, http.StatusCreated, code)

	code, body = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/sessions/%s/stages/1/generate", body["id"]), map[string]string{
		"input_text": "Trygghet på rasterna",
	})
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.EqualValues(t, http.StatusServiceUnavailable, body["code"])
}

func TestGenerateIsBoundedByOperationTimeout(t *testing.T) {
	s := newTestServer(t, waitingCompleter{}, func(cfg *config.Config) {
		cfg.Server.OperationTimeout = 100 * time.Millisecond
	})

	code, body := s.do(t, http.MethodPost, "/api/v1/sessions", map[string]string{"name": "Trygghet", "facilitator_name": "Anna"})
	require.Equal(t, http.StatusCreated, code)
	id := body["id"].(string)

	code, body = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/sessions/%s/stages/1/generate", id), map[string]string{
		"input_text": "Trygghet på rasterna",
	})
	assert.Equal(t, http.StatusGatewayTimeout, code)
	assert.EqualValues(t, http.StatusGatewayTimeout, body["code"])

	code, body = s.do(t, http.MethodGet, "/api/v1/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, code)
	stages := body["stages"].([]interface{})
	assert.Empty(t, stages[0].(map[string]interface{})["ai_output"])
}

func TestAudioUploadAndPlayback(t *testing.T) {
	s := newTestServer(t, stubCompleter{})

	code, body := s.do(t, http.MethodPost, "/api/v1/sessions", map[string]string{"name": "Trygghet", "facilitator_name": "Anna"})
	require.Equal(t, http.StatusCreated, code)
	base := "/api/v1/sessions/" + body["id"].(string) + "/stages/1/audio"

	upload := func(filename string, content []byte) (int, map[string]interface{}) {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		part, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
		require.NoError(t, w.Close())

		req := httptest.NewRequest(http.MethodPost, base, &buf)
		req.Header.Set("Content-Type", w.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+s.token)
		return s.send(t, req)
	}

	code, _ = upload("samtal.mp3", []byte("ID3"))
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = upload("samtal.wav", bytes.Repeat([]byte{1}, 1024*1024+1))
	assert.Equal(t, http.StatusRequestEntityTooLarge, code)

	code, body = upload("samtal.wav", []byte("RIFF-audio"))
	require.Equal(t, http.StatusCreated, code)
	session := body["session"].(map[string]interface{})
	stage := session["stages"].([]interface{})[0].(map[string]interface{})
	assert.Contains(t, stage["transcript"], "läsplattorna")

	req := httptest.NewRequest(http.MethodGet, base, nil)
	req.Header.Set("Authorization", "Bearer "+s.token)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "RIFF-audio", string(data))
}

func TestSignupAndLogin(t *testing.T) {
	s := newTestServer(t, stubCompleter{})
	s.token = ""

	code, _ := s.do(t, http.MethodPost, "/api/v1/auth/signup", map[string]string{
		"email": "bo@skolan.se", "password": "Rektor2024", "full_name": "Bo",
	})
	require.Equal(t, http.StatusCreated, code)

	code, _ = s.do(t, http.MethodPost, "/api/v1/auth/signup", map[string]string{
		"email": "bo@skolan.se", "password": "Rektor2024",
	})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = s.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email": "bo@skolan.se", "password": "fel",
	})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body := s.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email": "bo@skolan.se", "password": "Rektor2024",
	})
	require.Equal(t, http.StatusOK, code)
	s.token = body["access_token"].(string)

	code, body = s.do(t, http.MethodGet, "/api/v1/auth/me", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "bo@skolan.se", body["email"])

	code, _ = s.do(t, http.MethodGet, "/api/v1/audit", nil)
	assert.Equal(t, http.StatusForbidden, code)

	admin, _, err := s.auth.JWT().GenerateTokenPair(uuid.New(), "admin@skolan.se", models.RoleAdmin)
	require.NoError(t, err)
	s.token = admin

	code, body = s.do(t, http.MethodGet, "/api/v1/audit?limit=10", nil)
	require.Equal(t, http.StatusOK, code)
	var actions []string
	for _, ev := range body["events"].([]interface{}) {
		actions = append(actions, ev.(map[string]interface{})["event_type"].(string))
	}
	assert.Contains(t, actions, string(audit.EventSignup))
	assert.Contains(t, actions, string(audit.EventLogin))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{models.ErrNotConfigured, http.StatusServiceUnavailable},
		{fmt.Errorf("%w: %w", models.ErrCompletionFailed, errors.New("boom")), http.StatusBadGateway},
		{models.ErrAllSegmentsFailed, http.StatusBadGateway},
		{fmt.Errorf("%w: %w", models.ErrCompletionFailed, context.DeadlineExceeded), http.StatusGatewayTimeout},
		{context.Canceled, http.StatusServiceUnavailable},
		{models.NewValidationError("file", "unsupported"), http.StatusBadRequest},
		{&models.ValidationError{TooLarge: true}, http.StatusRequestEntityTooLarge},
		{models.ErrSessionNotFound, http.StatusNotFound},
		{models.ErrVersionConflict, http.StatusConflict},
		{models.ErrStageLocked, http.StatusConflict},
		{models.ErrInvalidStage, http.StatusBadRequest},
		{auth.ErrExpiredToken, http.StatusUnauthorized},
		{fiber.NewError(http.StatusTeapot, "tea"), http.StatusTeapot},
		{errors.New("database exploded"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
