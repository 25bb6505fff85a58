package domain

import (
	"fmt"
	"strings"
)

// GenerationMode selects the kind of study item to generate.
type GenerationMode string

const (
	ModeFlashcards GenerationMode = "FLASHCARDS"
	ModeQuiz       GenerationMode = "QUIZ"
)

// Item count bounds and session defaults.
const (
	MinItemCount     = 1
	MaxItemCount     = 100
	DefaultItemCount = 10
	DefaultMode      = ModeFlashcards

	// QuizOptionCount is the exact number of options every quiz question carries.
	QuizOptionCount = 4
)

// ParseMode parses a mode name case-insensitively.
func ParseMode(s string) (GenerationMode, error) {
	switch GenerationMode(strings.ToUpper(strings.TrimSpace(s))) {
	case ModeFlashcards:
		return ModeFlashcards, nil
	case ModeQuiz:
		return ModeQuiz, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// Valid reports whether m is a known mode.
func (m GenerationMode) Valid() bool {
	return m == ModeFlashcards || m == ModeQuiz
}

func (m GenerationMode) String() string {
	return string(m)
}

// ValidateCount checks that count lies within [MinItemCount, MaxItemCount].
func ValidateCount(count int) error {
	if count < MinItemCount || count > MaxItemCount {
		return fmt.Errorf("%w: %w: %d is not between %d and %d",
			ErrValidation, ErrInvalidCount, count, MinItemCount, MaxItemCount)
	}
	return nil
}
