package prompt

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/phrazzld/studbud/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultCatalog []byte

// ErrInvalidCatalog is returned when a catalog file is missing a section or a
// template fails to parse.
var ErrInvalidCatalog = errors.New("invalid prompt catalog")

// file is the on-disk shape of a catalog.
type file struct {
	System    string            `yaml:"system"`
	Modes     map[string]string `yaml:"modes"`
	Contracts map[string]string `yaml:"contracts"`
	Source    string            `yaml:"source"`
}

// Data is the input to Render.
type Data struct {
	Mode       domain.GenerationMode
	Count      int
	Content    string
	Topic      string
	Attachment bool
	Search     bool

	// Contract asks for the output shape to be spelled out in the prompt, for
	// calls that cannot use schema-constrained decoding.
	Contract bool
}

// Catalog holds the parsed prompt templates.
type Catalog struct {
	system    string
	modes     map[domain.GenerationMode]*template.Template
	contracts map[domain.GenerationMode]string
	source    *template.Template
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog from path, or returns the embedded default when path
// is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", ErrInvalidCatalog, path, err)
	}
	return Parse(raw)
}

// Parse builds a catalog from YAML.
func Parse(raw []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if strings.TrimSpace(f.System) == "" {
		return nil, fmt.Errorf("%w: system prompt is empty", ErrInvalidCatalog)
	}

	source, err := template.New("source").Parse(f.Source)
	if err != nil {
		return nil, fmt.Errorf("%w: source: %v", ErrInvalidCatalog, err)
	}

	c := &Catalog{
		system:    strings.TrimSpace(f.System),
		modes:     make(map[domain.GenerationMode]*template.Template),
		contracts: make(map[domain.GenerationMode]string),
		source:    source,
	}

	for _, mode := range []domain.GenerationMode{domain.ModeFlashcards, domain.ModeQuiz} {
		body, ok := f.Modes[mode.String()]
		if !ok {
			return nil, fmt.Errorf("%w: no template for mode %s", ErrInvalidCatalog, mode)
		}
		tmpl, err := template.New(mode.String()).Parse(body)
		if err != nil {
			return nil, fmt.Errorf("%w: mode %s: %v", ErrInvalidCatalog, mode, err)
		}
		c.modes[mode] = tmpl

		contract, ok := f.Contracts[mode.String()]
		if !ok {
			return nil, fmt.Errorf("%w: no contract for mode %s", ErrInvalidCatalog, mode)
		}
		c.contracts[mode] = strings.TrimSpace(contract)
	}

	return c, nil
}

// System returns the system instruction.
func (c *Catalog) System() string {
	return c.system
}

// Render returns the user prompt for one generation call.
func (c *Catalog) Render(data Data) (string, error) {
	tmpl, ok := c.modes[data.Mode]
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidMode, data.Mode)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute %s template: %w", data.Mode, err)
	}
	instructions := strings.TrimSpace(buf.String())

	buf.Reset()
	if err := c.source.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute source template: %w", err)
	}
	source := strings.TrimSpace(buf.String())

	parts := []string{instructions}
	if data.Contract {
		parts = append(parts, c.contracts[data.Mode])
	}
	if source != "" {
		parts = append(parts, source)
	}
	return strings.Join(parts, "\n\n"), nil
}
