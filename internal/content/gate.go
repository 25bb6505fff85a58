package content

import (
	"path/filepath"
	"strings"
	"unicode"

	"github.com/phrazzld/studbud/internal/domain"
)

// DefaultMinAlphanumeric is the smallest number of letters and digits a file
// or paste must contain to be generated from directly.
const DefaultMinAlphanumeric = 100

// FallbackSeed labels a search when the insufficient content offers nothing
// better.
const FallbackSeed = "General knowledge"

// Verdict is the gate's decision about a payload.
type Verdict struct {
	Sufficient bool `json:"sufficient"`

	// Seed is the topic suggested for a search-augmented retry. Set only
	// when Sufficient is false.
	Seed string `json:"seed,omitempty"`

	// Alphanumeric is the number of letters and digits counted.
	Alphanumeric int `json:"alphanumeric"`
}

// Gate applies the sufficiency policy.
type Gate struct {
	min int
}

// NewGate creates a gate requiring at least min alphanumeric characters.
// min <= 0 selects DefaultMinAlphanumeric.
func NewGate(min int) *Gate {
	if min <= 0 {
		min = DefaultMinAlphanumeric
	}
	return &Gate{min: min}
}

// Min returns the configured threshold.
func (g *Gate) Min() int {
	return g.min
}

// Evaluate decides whether p is sufficient. Topics and binary payloads are
// always sufficient.
func (g *Gate) Evaluate(p domain.ContentPayload) Verdict {
	if p.Kind() != domain.PayloadText || p.Origin() == domain.OriginTopic {
		return Verdict{Sufficient: true}
	}

	n := CountAlphanumeric(p.Text())
	if n >= g.min {
		return Verdict{Sufficient: true, Alphanumeric: n}
	}

	return Verdict{
		Sufficient:   false,
		Seed:         seedFor(p),
		Alphanumeric: n,
	}
}

// CountAlphanumeric counts Unicode letters and digits in s. Everything else is
// dropped before counting, so the letters need not be one contiguous run.
func CountAlphanumeric(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			n++
		}
	}
	return n
}

func seedFor(p domain.ContentPayload) string {
	if text := CollapseWhitespace(p.Text()); text != "" {
		return text
	}
	if name := strings.TrimSpace(strings.TrimSuffix(filepath.Base(p.Name()), filepath.Ext(p.Name()))); name != "" && name != "." {
		return name
	}
	return FallbackSeed
}
