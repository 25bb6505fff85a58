package domain

import (
	"bytes"
	"fmt"
	"strings"
)

// PayloadKind discriminates the two shapes a ContentPayload can take.
type PayloadKind string

const (
	// PayloadText holds normalized UTF-8 text.
	PayloadText PayloadKind = "text"

	// PayloadBinary holds raw bytes tagged with a media type, passed through
	// to providers that can read the format natively.
	PayloadBinary PayloadKind = "binary"
)

// Origin records where a payload came from. The sufficiency gate only
// applies to file and pasted origins.
type Origin string

const (
	OriginFile   Origin = "file"
	OriginPasted Origin = "pasted"
	OriginTopic  Origin = "topic"
)

// ContentPayload is the canonical, immutable form of study-source content.
// The zero value is an empty payload.
type ContentPayload struct {
	kind      PayloadKind
	origin    Origin
	name      string
	text      string
	mediaType string
	data      []byte
}

// NewTextPayload creates a text payload. The text is stored as given; callers
// normalize whitespace before construction. Empty text is allowed so that an
// empty file can still reach the sufficiency gate.
func NewTextPayload(text string, origin Origin, name string) ContentPayload {
	return ContentPayload{
		kind:   PayloadText,
		origin: origin,
		name:   name,
		text:   text,
	}
}

// NewTopicPayload creates a text payload holding a bare topic string.
func NewTopicPayload(topic string) ContentPayload {
	return NewTextPayload(strings.TrimSpace(topic), OriginTopic, "")
}

// NewBinaryPayload creates a binary payload from a file. The byte slice is
// copied so later mutation by the caller cannot leak into the payload.
func NewBinaryPayload(mediaType string, data []byte, name string) (ContentPayload, error) {
	if mediaType == "" {
		return ContentPayload{}, fmt.Errorf("%w: binary payload requires a media type", ErrValidation)
	}
	if len(data) == 0 {
		return ContentPayload{}, fmt.Errorf("%w: binary payload", ErrEmptyContent)
	}

	cp := make([]byte, len(data))
	copy(cp, data)

	return ContentPayload{
		kind:      PayloadBinary,
		origin:    OriginFile,
		name:      name,
		mediaType: mediaType,
		data:      cp,
	}, nil
}

// Kind returns the payload shape.
func (p ContentPayload) Kind() PayloadKind { return p.kind }

// Origin returns where the payload came from.
func (p ContentPayload) Origin() Origin { return p.origin }

// Name returns the originating file name, if any.
func (p ContentPayload) Name() string { return p.name }

// Text returns the text of a text payload and "" for binary payloads.
func (p ContentPayload) Text() string { return p.text }

// MediaType returns the media type of a binary payload, or "text/plain" for
// text payloads.
func (p ContentPayload) MediaType() string {
	if p.kind == PayloadText {
		return "text/plain"
	}
	return p.mediaType
}

// Bytes returns a copy of the binary content.
func (p ContentPayload) Bytes() []byte {
	if p.data == nil {
		return nil
	}
	cp := make([]byte, len(p.data))
	copy(cp, p.data)
	return cp
}

// Len is the payload size: characters for text, bytes for binary.
func (p ContentPayload) Len() int {
	if p.kind == PayloadBinary {
		return len(p.data)
	}
	return len([]rune(p.text))
}

// IsEmpty reports whether the payload carries nothing a provider could use.
func (p ContentPayload) IsEmpty() bool {
	switch p.kind {
	case PayloadText:
		return strings.TrimSpace(p.text) == ""
	case PayloadBinary:
		return len(p.data) == 0
	default:
		return true
	}
}

// Equal reports whether two payloads carry identical content.
func (p ContentPayload) Equal(other ContentPayload) bool {
	return p.kind == other.kind &&
		p.origin == other.origin &&
		p.name == other.name &&
		p.text == other.text &&
		p.mediaType == other.mediaType &&
		bytes.Equal(p.data, other.data)
}
