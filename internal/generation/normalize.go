package generation

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/phrazzld/studbud/internal/domain"
)

type flashcardWire struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type quizWire struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
}

// NormalizeResult reports what the normalizer kept and dropped.
type NormalizeResult struct {
	Items    []domain.StudyItem
	Received int
	Dropped  int
	Repaired bool
}

// NormalizeResponse turns raw model output into at most count validated study
// items with fresh IDs.
//
// Envelopes accepted, in order: {"items": [...]}, a bare array, or an object
// whose only array-valued field holds the items. Output that fails to parse is
// repaired exactly once by stripping code fences and surrounding prose.
// Elements with missing fields, and quiz questions that violate integrity, are
// dropped. Fewer than count items is accepted; zero is ErrMalformedResponse.
func NormalizeResponse(raw string, mode domain.GenerationMode, count int) (*NormalizeResult, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, Errorf(ErrEmptyResponse, "model returned no content")
	}

	doc := []byte(strings.TrimSpace(raw))
	repaired := false
	if !json.Valid(doc) {
		doc = []byte(ExtractJSON(raw))
		repaired = true
		if !json.Valid(doc) {
			return nil, Errorf(ErrMalformedResponse, "response is not valid JSON")
		}
	}

	elems, ok := unwrapItems(doc)
	if !ok {
		return nil, Errorf(ErrMalformedResponse, "response does not contain an item array")
	}

	res := &NormalizeResult{Received: len(elems), Repaired: repaired}
	for _, elem := range elems {
		if count > 0 && len(res.Items) == count {
			break
		}
		item, err := decodeItem(elem, mode)
		if err != nil {
			res.Dropped++
			continue
		}
		res.Items = append(res.Items, item)
	}

	if len(res.Items) == 0 {
		return nil, Errorf(ErrMalformedResponse, "response contained no usable %s items", strings.ToLower(mode.String()))
	}
	return res, nil
}

// fencedBlock matches the first markdown code fence anywhere in the output.
var fencedBlock = regexp.MustCompile("(?s)```[A-Za-z]*[ \\t]*\\n?(.*?)```")

// ExtractJSON strips markdown code fences and any prose around the outermost
// JSON object or array. A fenced block wins over brackets in surrounding
// prose.
func ExtractJSON(content string) string {
	content = strings.TrimSpace(content)

	if m := fencedBlock.FindStringSubmatch(content); m != nil {
		content = strings.TrimSpace(m[1])
	} else if strings.HasPrefix(content, "```") {
		// Unterminated fence.
		content = strings.TrimLeft(content, "`")
		if nl := strings.Index(content, "\n"); nl != -1 && !strings.ContainsAny(content[:nl], "{[") {
			content = content[nl+1:]
		}
		content = strings.TrimSpace(content)
	}

	if json.Valid([]byte(content)) {
		return content
	}

	best := ""
	bestOpen := -1
	for _, pair := range [][2]string{{"{", "}"}, {"[", "]"}} {
		open := strings.Index(content, pair[0])
		end := strings.LastIndex(content, pair[1])
		if open == -1 || end <= open {
			continue
		}
		candidate := content[open : end+1]
		valid := json.Valid([]byte(candidate))
		switch {
		case best == "":
		case valid && !json.Valid([]byte(best)):
		case valid == json.Valid([]byte(best)) && open < bestOpen:
		default:
			continue
		}
		best, bestOpen = candidate, open
	}
	if best == "" {
		return content
	}
	return strings.TrimSpace(best)
}

func unwrapItems(doc []byte) ([]json.RawMessage, bool) {
	doc = bytes.TrimSpace(doc)
	if len(doc) == 0 {
		return nil, false
	}

	switch doc[0] {
	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(doc, &elems); err != nil {
			return nil, false
		}
		return elems, true

	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(doc, &obj); err != nil {
			return nil, false
		}
		if items, ok := obj[ItemsField]; ok {
			return unwrapItems(items)
		}

		var only json.RawMessage
		arrays := 0
		for _, v := range obj {
			v = bytes.TrimSpace(v)
			if len(v) > 0 && v[0] == '[' {
				only = v
				arrays++
			}
		}
		if arrays == 1 {
			return unwrapItems(only)
		}
	}
	return nil, false
}

func decodeItem(elem json.RawMessage, mode domain.GenerationMode) (domain.StudyItem, error) {
	switch mode {
	case domain.ModeQuiz:
		var w quizWire
		if err := json.Unmarshal(elem, &w); err != nil {
			return nil, err
		}
		return domain.NewQuizQuestion(w.Question, w.Options, w.CorrectAnswer)
	default:
		var w flashcardWire
		if err := json.Unmarshal(elem, &w); err != nil {
			return nil, err
		}
		return domain.NewFlashcard(w.Question, w.Answer)
	}
}
