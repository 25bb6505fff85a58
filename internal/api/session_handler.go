package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/phrazzld/studbud/internal/api/middleware"
	"github.com/phrazzld/studbud/internal/api/shared"
	"github.com/phrazzld/studbud/internal/content"
	"github.com/phrazzld/studbud/internal/domain"
	"github.com/phrazzld/studbud/internal/generation"
	"github.com/phrazzld/studbud/internal/platform/logger"
	"github.com/phrazzld/studbud/internal/service/auth"
	"github.com/phrazzld/studbud/internal/session"
)

const (
	// multipartOverhead is allowed on top of the file limit for form
	// boundaries and headers.
	multipartOverhead = 1 << 20

	// multipartMemory is how much of an upload is buffered in memory before
	// spilling to disk.
	multipartMemory = 8 << 20
)

// SessionHandler exposes the session state machine over HTTP.
type SessionHandler struct {
	sessions     *session.Manager
	tokens       auth.JWTService
	maxFileBytes int64
}

// NewSessionHandler creates a SessionHandler. maxFileBytes bounds uploads; a
// non-positive value selects content.DefaultMaxFileBytes.
func NewSessionHandler(sessions *session.Manager, tokens auth.JWTService, maxFileBytes int64) *SessionHandler {
	if maxFileBytes <= 0 {
		maxFileBytes = content.DefaultMaxFileBytes
	}
	return &SessionHandler{
		sessions:     sessions,
		tokens:       tokens,
		maxFileBytes: maxFileBytes,
	}
}

// RegisterSessionRoutes mounts the session API on r.
func RegisterSessionRoutes(r chi.Router, h *SessionHandler, authMiddleware *middleware.AuthMiddleware) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/sessions", h.CreateSession)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Get("/session", h.GetSession)
			r.Delete("/session", h.CloseSession)
			r.Post("/session/text", h.SubmitText)
			r.Post("/session/topic", h.SubmitTopic)
			r.Post("/session/file", h.SubmitFile)
			r.Post("/session/retry", h.Retry)
			r.Post("/session/search", h.AcceptSearch)
			r.Post("/session/generate", h.Generate)
			r.Post("/session/next", h.Next)
			r.Post("/session/prev", h.Prev)
			r.Post("/session/reset", h.Reset)
		})
	})
}

// CreateSession handles POST /api/sessions.
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	s := h.sessions.Create(r.Context())

	token, err := h.tokens.GenerateToken(r.Context(), s.ID())
	if err != nil {
		_ = h.sessions.Remove(r.Context(), s.ID())
		HandleAPIError(w, r, err, "Failed to create session")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, CreateSessionResponse{
		SessionID: s.ID(),
		Token:     token,
	})
}

// GetSession handles GET /api/session.
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.current(w, r)
	if !ok {
		return
	}
	respondWithSnapshot(w, r, http.StatusOK, s)
}

// CloseSession handles DELETE /api/session.
func (h *SessionHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.current(w, r)
	if !ok {
		return
	}
	if err := h.sessions.Remove(r.Context(), s.ID()); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SubmitText handles POST /api/session/text.
func (h *SessionHandler) SubmitText(w http.ResponseWriter, r *http.Request) {
	var req SubmitTextRequest
	if !decodeAndValidate(w, r, &req, "text is required") {
		return
	}
	h.submit(w, r, content.Input{Text: req.Text})
}

// SubmitTopic handles POST /api/session/topic.
func (h *SessionHandler) SubmitTopic(w http.ResponseWriter, r *http.Request) {
	var req SubmitTopicRequest
	if !decodeAndValidate(w, r, &req, "topic is required") {
		return
	}
	h.submit(w, r, content.Input{Topic: req.Topic})
}

// SubmitFile handles POST /api/session/file with a multipart "file" field.
func (h *SessionHandler) SubmitFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileBytes+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			HandleAPIError(w, r, generation.Errorf(generation.ErrRead,
				"the file exceeds the %d MB limit", h.maxFileBytes>>20), "")
			return
		}
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			logger.FromContext(r.Context()).Warn("failed to remove multipart temp files", "error", err)
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	if header.Size > h.maxFileBytes {
		HandleAPIError(w, r, generation.Errorf(generation.ErrRead,
			"the file exceeds the %d MB limit", h.maxFileBytes>>20), "")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		HandleAPIError(w, r, generation.NewError(generation.ErrRead, "the upload could not be read", err), "")
		return
	}

	h.submit(w, r, content.Input{File: &content.File{
		Name:      header.Filename,
		Size:      header.Size,
		MediaType: header.Header.Get("Content-Type"),
		Data:      data,
	}})
}

func (h *SessionHandler) submit(w http.ResponseWriter, r *http.Request, in content.Input) {
	s, ok := h.current(w, r)
	if !ok {
		return
	}
	if err := s.Submit(r.Context(), in); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	// Unreadable content moves the session to ERROR; the status reflects it.
	status := http.StatusOK
	if s.Phase() == session.PhaseError {
		status = http.StatusUnprocessableEntity
	}
	respondWithSnapshot(w, r, status, s)
}

// Retry handles POST /api/session/retry.
func (h *SessionHandler) Retry(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, r, (*session.Session).Retry)
}

// AcceptSearch handles POST /api/session/search.
func (h *SessionHandler) AcceptSearch(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, r, (*session.Session).AcceptSearch)
}

// Next handles POST /api/session/next.
func (h *SessionHandler) Next(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, r, (*session.Session).Next)
}

// Prev handles POST /api/session/prev.
func (h *SessionHandler) Prev(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, r, (*session.Session).Prev)
}

// Reset handles POST /api/session/reset.
func (h *SessionHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, r, func(s *session.Session) error {
		s.Reset()
		return nil
	})
}

func (h *SessionHandler) trigger(w http.ResponseWriter, r *http.Request, fire func(*session.Session) error) {
	s, ok := h.current(w, r)
	if !ok {
		return
	}
	if err := fire(s); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	respondWithSnapshot(w, r, http.StatusOK, s)
}

// Generate handles POST /api/session/generate. It answers 202 while the
// generation runs, or with ?wait=true blocks and answers 200 once the session
// has left PROCESSING.
func (h *SessionHandler) Generate(w http.ResponseWriter, r *http.Request) {
	s, ok := h.current(w, r)
	if !ok {
		return
	}

	var req GenerateRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil && !errors.Is(err, shared.ErrEmptyBody) {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	snap := s.Snapshot()
	mode := snap.Mode
	if req.Mode != "" {
		parsed, err := domain.ParseMode(req.Mode)
		if err != nil {
			HandleAPIError(w, r, generation.NewError(generation.ErrValidation,
				fmt.Sprintf("unknown generation mode %q", req.Mode), err), "")
			return
		}
		mode = parsed
	}
	count := snap.Count
	if req.Count != nil {
		count = *req.Count
	}

	done, err := s.Start(mode, count)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	if !wait {
		respondWithSnapshot(w, r, http.StatusAccepted, s)
		return
	}

	select {
	case <-done:
		respondWithSnapshot(w, r, http.StatusOK, s)
	case <-r.Context().Done():
		logger.FromContext(r.Context()).Debug("client left before generation finished")
	}
}

// current resolves the authenticated session, writing an error response when
// it cannot.
func (h *SessionHandler) current(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id, ok := shared.GetSessionID(r.Context())
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Session token required")
		return nil, false
	}

	s, err := h.sessions.Get(id)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return nil, false
	}
	return s, true
}

func decodeAndValidate(w http.ResponseWriter, r *http.Request, v interface{}, invalidMessage string) bool {
	if err := shared.DecodeJSON(w, r, v); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return false
	}
	if err := shared.ValidateRequest(v); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, invalidMessage)
		return false
	}
	return true
}

func respondWithSnapshot(w http.ResponseWriter, r *http.Request, status int, s *session.Session) {
	shared.RespondWithJSON(w, r, status, snapshotToResponse(s.Snapshot()))
}
