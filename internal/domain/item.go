package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// StudyItem is a single generated unit of study material.
type StudyItem interface {
	// ItemID returns the item's identifier, unique within its result set.
	ItemID() uuid.UUID

	// ItemMode returns the mode the item belongs to.
	ItemMode() GenerationMode

	// Validate checks the item's structural invariants.
	Validate() error
}

// Flashcard is a question/answer pair.
type Flashcard struct {
	ID       uuid.UUID `json:"id"`
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
}

// NewFlashcard creates a flashcard with a fresh ID.
func NewFlashcard(question, answer string) (*Flashcard, error) {
	card := &Flashcard{
		ID:       uuid.New(),
		Question: strings.TrimSpace(question),
		Answer:   strings.TrimSpace(answer),
	}
	if err := card.Validate(); err != nil {
		return nil, err
	}
	return card, nil
}

func (f *Flashcard) ItemID() uuid.UUID        { return f.ID }
func (f *Flashcard) ItemMode() GenerationMode { return ModeFlashcards }

// Validate checks that both sides of the card are present.
func (f *Flashcard) Validate() error {
	if f.ID == uuid.Nil {
		return fmt.Errorf("%w: flashcard id is empty", ErrInvalidItem)
	}
	if f.Question == "" {
		return fmt.Errorf("%w: flashcard question is empty", ErrInvalidItem)
	}
	if f.Answer == "" {
		return fmt.Errorf("%w: flashcard answer is empty", ErrInvalidItem)
	}
	return nil
}

// QuizQuestion is a multiple-choice question with exactly four distinct
// options, one of which is the correct answer.
type QuizQuestion struct {
	ID            uuid.UUID `json:"id"`
	Question      string    `json:"question"`
	Options       []string  `json:"options"`
	CorrectAnswer string    `json:"correctAnswer"`
}

// NewQuizQuestion creates a quiz question with a fresh ID. The options slice
// is copied.
func NewQuizQuestion(question string, options []string, correctAnswer string) (*QuizQuestion, error) {
	opts := make([]string, len(options))
	for i, o := range options {
		opts[i] = strings.TrimSpace(o)
	}

	q := &QuizQuestion{
		ID:            uuid.New(),
		Question:      strings.TrimSpace(question),
		Options:       opts,
		CorrectAnswer: strings.TrimSpace(correctAnswer),
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *QuizQuestion) ItemID() uuid.UUID        { return q.ID }
func (q *QuizQuestion) ItemMode() GenerationMode { return ModeQuiz }

// Validate enforces quiz integrity: four non-empty distinct options and a
// correct answer equal to exactly one of them.
func (q *QuizQuestion) Validate() error {
	if q.ID == uuid.Nil {
		return fmt.Errorf("%w: quiz question id is empty", ErrInvalidItem)
	}
	if q.Question == "" {
		return fmt.Errorf("%w: quiz question text is empty", ErrInvalidItem)
	}
	if len(q.Options) != QuizOptionCount {
		return fmt.Errorf("%w: quiz question has %d options, want %d",
			ErrInvalidItem, len(q.Options), QuizOptionCount)
	}

	seen := make(map[string]struct{}, len(q.Options))
	for i, opt := range q.Options {
		if opt == "" {
			return fmt.Errorf("%w: quiz option %d is empty", ErrInvalidItem, i)
		}
		if _, dup := seen[opt]; dup {
			return fmt.Errorf("%w: quiz option %q is duplicated", ErrInvalidItem, opt)
		}
		seen[opt] = struct{}{}
	}

	if _, ok := seen[q.CorrectAnswer]; !ok {
		return fmt.Errorf("%w: correct answer %q is not one of the options",
			ErrInvalidItem, q.CorrectAnswer)
	}
	return nil
}
