package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/studbud/internal/api/middleware"
	"github.com/phrazzld/studbud/internal/api/shared"
	"github.com/phrazzld/studbud/internal/config"
	"github.com/phrazzld/studbud/internal/mocks"
	"github.com/phrazzld/studbud/internal/orchestrator"
	"github.com/phrazzld/studbud/internal/platform/logger"
	"github.com/phrazzld/studbud/internal/service/auth"
	"github.com/phrazzld/studbud/internal/session"
)

const studyText = "Plate tectonics describes how the rigid lithosphere is broken into plates that " +
	"move over the softer asthenosphere. Divergent boundaries form mid-ocean ridges, convergent " +
	"boundaries build mountains and trenches, and transform boundaries such as the San Andreas " +
	"fault slide past each other and release energy as earthquakes."

type testAPI struct {
	t       *testing.T
	router  http.Handler
	gen     *mocks.MockGenerator
	manager *session.Manager
}

func newTestAPI(t *testing.T, gen *mocks.MockGenerator) *testAPI {
	t.Helper()

	log := logger.Discard()
	engine := orchestrator.New(log, gen, nil, nil, nil, orchestrator.Config{})
	manager := session.NewManager(log, engine, session.ManagerConfig{})
	t.Cleanup(manager.Close)

	tokens, err := auth.NewJWTService(config.AuthConfig{
		SessionSecret:        "test-secret-that-is-long-enough-for-testing",
		TokenLifetimeMinutes: 60,
	})
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(middleware.NewTraceMiddleware(log))
	RegisterSessionRoutes(r, NewSessionHandler(manager, tokens, 1<<20), middleware.NewAuthMiddleware(tokens))

	return &testAPI{t: t, router: r, gen: gen, manager: manager}
}

func (a *testAPI) do(method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	a.t.Helper()
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

func (a *testAPI) postJSON(path, token string, v interface{}) *httptest.ResponseRecorder {
	a.t.Helper()
	var body io.Reader = http.NoBody
	if v != nil {
		raw, err := json.Marshal(v)
		require.NoError(a.t, err)
		body = bytes.NewReader(raw)
	}
	return a.do(http.MethodPost, path, token, body, "application/json")
}

func (a *testAPI) createSession() string {
	a.t.Helper()
	rr := a.do(http.MethodPost, "/api/sessions", "", nil, "")
	require.Equal(a.t, http.StatusCreated, rr.Code)

	var resp CreateSessionResponse
	require.NoError(a.t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotEmpty(a.t, resp.Token)
	return resp.Token
}

func decodeSession(t *testing.T, rr *httptest.ResponseRecorder) SessionResponse {
	t.Helper()
	var resp SessionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp), rr.Body.String())
	return resp
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) shared.ErrorResponse {
	t.Helper()
	var resp shared.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp), rr.Body.String())
	return resp
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t, mocks.NewMockGeneratorForMode())
	token := api.createSession()

	rr := api.do(http.MethodGet, "/api/session", token, nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "IDLE", decodeSession(t, rr).Phase)

	rr = api.postJSON("/api/session/text", token, SubmitTextRequest{Text: studyText})
	require.Equal(t, http.StatusOK, rr.Code)
	snap := decodeSession(t, rr)
	assert.Equal(t, "SELECTING_MODE", snap.Phase)
	require.NotNil(t, snap.Payload)
	assert.Equal(t, "pasted", string(snap.Payload.Origin))

	count := 3
	rr = api.postJSON("/api/session/generate?wait=true", token, GenerateRequest{Mode: "flashcards", Count: &count})
	require.Equal(t, http.StatusOK, rr.Code)
	snap = decodeSession(t, rr)
	assert.Equal(t, "VIEWING", snap.Phase)
	require.Len(t, snap.Items, 3)
	for _, item := range snap.Items {
		assert.Equal(t, "FLASHCARDS", item.Type)
		assert.NotEmpty(t, item.Question)
		assert.NotEmpty(t, item.Answer)
	}

	rr = api.postJSON("/api/session/next", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, decodeSession(t, rr).Cursor)

	rr = api.postJSON("/api/session/prev", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 0, decodeSession(t, rr).Cursor)

	rr = api.postJSON("/api/session/reset", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	snap = decodeSession(t, rr)
	assert.Equal(t, "IDLE", snap.Phase)
	assert.Empty(t, snap.Items)
}

func TestGenerateWithoutWaitIsAccepted(t *testing.T) {
	release := make(chan struct{})
	api := newTestAPI(t, mocks.NewBlockingMockGenerator(release, mocks.QuizJSON(2)))
	token := api.createSession()

	require.Equal(t, http.StatusOK, api.postJSON("/api/session/topic", token, SubmitTopicRequest{Topic: "volcanoes"}).Code)

	count := 2
	rr := api.postJSON("/api/session/generate", token, GenerateRequest{Mode: "QUIZ", Count: &count})
	require.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, "PROCESSING", decodeSession(t, rr).Phase)

	rr = api.postJSON("/api/session/generate", token, GenerateRequest{})
	assert.Equal(t, http.StatusConflict, rr.Code)

	close(release)
}

func TestInsufficientContentAndSearchOverHTTP(t *testing.T) {
	api := newTestAPI(t, mocks.NewMockGeneratorForMode())
	token := api.createSession()

	rr := api.postJSON("/api/session/text", token, SubmitTextRequest{Text: "Cats purr."})
	require.Equal(t, http.StatusOK, rr.Code)
	snap := decodeSession(t, rr)
	assert.Equal(t, "INSUFFICIENT_CONTENT", snap.Phase)
	assert.Equal(t, "Cats purr.", snap.Seed)

	rr = api.postJSON("/api/session/search", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	snap = decodeSession(t, rr)
	assert.Equal(t, "SELECTING_MODE", snap.Phase)
	assert.True(t, snap.UseExternalSearch)

	rr = api.postJSON("/api/session/generate?wait=1", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	snap = decodeSession(t, rr)
	assert.Equal(t, "VIEWING", snap.Phase)
	assert.Len(t, snap.Items, 10, "the session default count applies")

	req, ok := api.gen.LastRequest()
	require.True(t, ok)
	assert.True(t, req.UseSearch)
}

func TestFileUpload(t *testing.T) {
	upload := func(name, body string) (*bytes.Buffer, string) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		part, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(body))
		require.NoError(t, err)
		require.NoError(t, mw.Close())
		return &buf, mw.FormDataContentType()
	}

	t.Run("text file is accepted", func(t *testing.T) {
		api := newTestAPI(t, mocks.NewMockGeneratorForMode())
		token := api.createSession()

		body, ct := upload("geology.txt", studyText)
		rr := api.do(http.MethodPost, "/api/session/file", token, body, ct)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		snap := decodeSession(t, rr)
		assert.Equal(t, "SELECTING_MODE", snap.Phase)
		require.NotNil(t, snap.Payload)
		assert.Equal(t, "file", string(snap.Payload.Origin))
		assert.Equal(t, "geology.txt", snap.Payload.Name)
	})

	t.Run("empty file lands in error", func(t *testing.T) {
		api := newTestAPI(t, mocks.NewMockGeneratorForMode())
		token := api.createSession()

		body, ct := upload("empty.txt", "")
		rr := api.do(http.MethodPost, "/api/session/file", token, body, ct)
		require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

		snap := decodeSession(t, rr)
		assert.Equal(t, "ERROR", snap.Phase)
		assert.Contains(t, snap.Error, "Could not read the content")
	})

	t.Run("oversized upload is rejected", func(t *testing.T) {
		api := newTestAPI(t, mocks.NewMockGeneratorForMode())
		token := api.createSession()

		body, ct := upload("huge.txt", strings.Repeat("a", 3<<19))
		rr := api.do(http.MethodPost, "/api/session/file", token, body, ct)
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	})

	t.Run("missing file field", func(t *testing.T) {
		api := newTestAPI(t, mocks.NewMockGeneratorForMode())
		token := api.createSession()

		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.WriteField("note", "nothing here"))
		require.NoError(t, mw.Close())

		rr := api.do(http.MethodPost, "/api/session/file", token, &buf, mw.FormDataContentType())
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestSessionErrorResponses(t *testing.T) {
	api := newTestAPI(t, mocks.NewMockGeneratorForMode())
	token := api.createSession()

	t.Run("missing token", func(t *testing.T) {
		rr := api.do(http.MethodGet, "/api/session", "", nil, "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("forged token", func(t *testing.T) {
		rr := api.do(http.MethodGet, "/api/session", "not.a.token", nil, "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("wrong phase", func(t *testing.T) {
		rr := api.postJSON("/api/session/retry", token, nil)
		assert.Equal(t, http.StatusConflict, rr.Code)
		assert.NotEmpty(t, decodeError(t, rr).TraceID)
	})

	t.Run("malformed body", func(t *testing.T) {
		rr := api.do(http.MethodPost, "/api/session/text", token, strings.NewReader("{"), "application/json")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("missing text", func(t *testing.T) {
		rr := api.postJSON("/api/session/text", token, map[string]string{})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "text is required", decodeError(t, rr).Error)
	})

	t.Run("blank topic", func(t *testing.T) {
		rr := api.postJSON("/api/session/topic", token, SubmitTopicRequest{Topic: "   "})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("count out of range", func(t *testing.T) {
		require.Equal(t, http.StatusOK, api.postJSON("/api/session/text", token, SubmitTextRequest{Text: studyText}).Code)

		count := 150
		rr := api.postJSON("/api/session/generate", token, GenerateRequest{Count: &count})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "count must be between 1 and 100", decodeError(t, rr).Error)

		rr = api.postJSON("/api/session/generate", token, GenerateRequest{Mode: "essay"})
		assert.Equal(t, http.StatusBadRequest, rr.Code)

		rr = api.do(http.MethodGet, "/api/session", token, nil, "")
		assert.Equal(t, "SELECTING_MODE", decodeSession(t, rr).Phase)
	})

	t.Run("closed session", func(t *testing.T) {
		other := api.createSession()
		rr := api.do(http.MethodDelete, "/api/session", other, nil, "")
		require.Equal(t, http.StatusNoContent, rr.Code)

		rr = api.do(http.MethodGet, "/api/session", other, nil, "")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestGenerationFailureIsReportedInSnapshot(t *testing.T) {
	api := newTestAPI(t, mocks.MockGeneratorWithRateLimit())
	token := api.createSession()

	require.Equal(t, http.StatusOK, api.postJSON("/api/session/topic", token, SubmitTopicRequest{Topic: "tides"}).Code)

	rr := api.postJSON("/api/session/generate?wait=true", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	snap := decodeSession(t, rr)
	assert.Equal(t, "ERROR", snap.Phase)
	assert.Contains(t, snap.Error, "rate limiting")
}
