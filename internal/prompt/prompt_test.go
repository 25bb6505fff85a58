package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/phrazzld/studbud/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogRendersBothModes(t *testing.T) {
	t.Parallel()

	c, err := Default()
	require.NoError(t, err)
	assert.NotEmpty(t, c.System())

	out, err := c.Render(Data{
		Mode:    domain.ModeFlashcards,
		Count:   7,
		Content: "Mitochondria produce ATP.",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "exactly 7 flashcards")
	assert.Contains(t, out, "Mitochondria produce ATP.")
	assert.NotContains(t, out, `"items"`)

	out, err = c.Render(Data{
		Mode:     domain.ModeQuiz,
		Count:    3,
		Topic:    "the French Revolution",
		Search:   true,
		Contract: true,
	})
	require.NoError(t, err)
	assert.Contains(t, out, "exactly 3 multiple-choice")
	assert.Contains(t, out, `"correctAnswer"`)
	assert.Contains(t, out, "The subject is: the French Revolution")
	assert.Contains(t, out, "web")
}

func TestRenderAttachment(t *testing.T) {
	t.Parallel()

	c, err := Default()
	require.NoError(t, err)

	out, err := c.Render(Data{Mode: domain.ModeFlashcards, Count: 2, Attachment: true})
	require.NoError(t, err)
	assert.Contains(t, out, "attached document")
}

func TestRenderUnknownMode(t *testing.T) {
	t.Parallel()

	c, err := Default()
	require.NoError(t, err)

	_, err = c.Render(Data{Mode: "ESSAY", Count: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidMode)
}

func TestLoadFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "prompts.yaml")
	custom := `
system: Be brief.
modes:
  FLASHCARDS: "Make {{.Count}} cards."
  QUIZ: "Make {{.Count}} questions."
contracts:
  FLASHCARDS: "JSON please"
  QUIZ: "JSON please"
source: "{{.Content}}"
`
	require.NoError(t, os.WriteFile(path, []byte(custom), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Be brief.", c.System())

	out, err := c.Render(Data{Mode: domain.ModeFlashcards, Count: 4, Content: "text", Contract: true})
	require.NoError(t, err)
	assert.Equal(t, "Make 4 cards.\n\nJSON please\n\ntext", out)
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrInvalidCatalog)

	_, err = Parse([]byte("system: hi\nmodes:\n  FLASHCARDS: x\n"))
	assert.ErrorIs(t, err, ErrInvalidCatalog)

	_, err = Parse([]byte("system: hi\nmodes:\n  FLASHCARDS: \"{{.Count\"\n  QUIZ: x\n"))
	assert.ErrorIs(t, err, ErrInvalidCatalog)

	_, err = Parse([]byte("modes: {}"))
	assert.ErrorIs(t, err, ErrInvalidCatalog)
}
