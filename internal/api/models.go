package api

import (
	"github.com/google/uuid"

	"github.com/phrazzld/studbud/internal/domain"
	"github.com/phrazzld/studbud/internal/session"
)

// CreateSessionResponse is returned by POST /api/sessions.
type CreateSessionResponse struct {
	SessionID uuid.UUID `json:"session_id"`
	Token     string    `json:"token"`
}

// SubmitTextRequest is the body of POST /api/session/text.
type SubmitTextRequest struct {
	Text string `json:"text" validate:"required"`
}

// SubmitTopicRequest is the body of POST /api/session/topic.
type SubmitTopicRequest struct {
	Topic string `json:"topic" validate:"required"`
}

// GenerateRequest is the body of POST /api/session/generate. Omitted fields
// keep the session's current mode and count.
type GenerateRequest struct {
	Mode  string `json:"mode"`
	Count *int   `json:"count"`
}

// ItemResponse is one study item. Flashcards carry Answer; quiz questions
// carry Options and CorrectAnswer. Fields follow the snake_case of the rest of
// the HTTP API; domain items keep the generation contract's correctAnswer.
type ItemResponse struct {
	ID            uuid.UUID `json:"id"`
	Type          string    `json:"type"`
	Question      string    `json:"question"`
	Answer        string    `json:"answer,omitempty"`
	Options       []string  `json:"options,omitempty"`
	CorrectAnswer string    `json:"correct_answer,omitempty"`
}

// SessionResponse is the presentation view of a session.
type SessionResponse struct {
	ID                  uuid.UUID            `json:"id"`
	Phase               string               `json:"phase"`
	Mode                string               `json:"mode"`
	Count               int                  `json:"count"`
	UseExternalSearch   bool                 `json:"use_external_search"`
	Payload             *session.PayloadInfo `json:"payload,omitempty"`
	Seed                string               `json:"seed,omitempty"`
	Items               []ItemResponse       `json:"items"`
	Cursor              int                  `json:"cursor"`
	Sources             []domain.Source      `json:"sources"`
	Error               string               `json:"error,omitempty"`
	ProcessingElapsedMS int64                `json:"processing_elapsed_ms,omitempty"`
}

func itemToResponse(item domain.StudyItem) ItemResponse {
	switch it := item.(type) {
	case *domain.Flashcard:
		return ItemResponse{
			ID:       it.ID,
			Type:     domain.ModeFlashcards.String(),
			Question: it.Question,
			Answer:   it.Answer,
		}
	case *domain.QuizQuestion:
		return ItemResponse{
			ID:            it.ID,
			Type:          domain.ModeQuiz.String(),
			Question:      it.Question,
			Options:       append([]string(nil), it.Options...),
			CorrectAnswer: it.CorrectAnswer,
		}
	default:
		return ItemResponse{ID: item.ItemID(), Type: item.ItemMode().String()}
	}
}

func snapshotToResponse(snap session.Snapshot) SessionResponse {
	items := make([]ItemResponse, 0, len(snap.Items))
	for _, item := range snap.Items {
		items = append(items, itemToResponse(item))
	}

	return SessionResponse{
		ID:                  snap.ID,
		Phase:               snap.Phase.String(),
		Mode:                snap.Mode.String(),
		Count:               snap.Count,
		UseExternalSearch:   snap.UseExternalSearch,
		Payload:             snap.Payload,
		Seed:                snap.Seed,
		Items:               items,
		Cursor:              snap.Cursor,
		Sources:             snap.Sources,
		Error:               snap.Error,
		ProcessingElapsedMS: snap.ProcessingElapsed.Milliseconds(),
	}
}
