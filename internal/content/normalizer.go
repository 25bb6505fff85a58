package content

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/phrazzld/studbud/internal/domain"
	"github.com/phrazzld/studbud/internal/generation"
)

// DefaultMaxFileBytes bounds uploads when no limit is configured.
const DefaultMaxFileBytes int64 = 20 << 20

// File is an uploaded document.
type File struct {
	Name string

	// Size is the declared size, e.g. from a multipart header. The length of
	// Data is authoritative when they differ.
	Size int64

	// MediaType is the declared media type; it may be empty.
	MediaType string

	Data []byte
}

// Input is raw study material. Exactly one of File, Text and Topic is set.
type Input struct {
	File  *File
	Text  string
	Topic string
}

// MediaAcceptor reports which binary formats the active provider reads
// natively. generation.Generator satisfies it.
type MediaAcceptor interface {
	AcceptsMediaType(mediaType string) bool
}

// Normalizer converts Input into canonical payloads.
type Normalizer struct {
	logger       *slog.Logger
	acceptor     MediaAcceptor
	maxFileBytes int64
}

// NewNormalizer creates a Normalizer. A nil acceptor means every file is
// converted to text; maxFileBytes <= 0 selects DefaultMaxFileBytes.
func NewNormalizer(logger *slog.Logger, acceptor MediaAcceptor, maxFileBytes int64) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	if maxFileBytes <= 0 {
		maxFileBytes = DefaultMaxFileBytes
	}
	return &Normalizer{
		logger:       logger.With(slog.String("component", "content_normalizer")),
		acceptor:     acceptor,
		maxFileBytes: maxFileBytes,
	}
}

// Normalize dispatches on whichever field of in is set.
func (n *Normalizer) Normalize(ctx context.Context, in Input) (domain.ContentPayload, error) {
	set := 0
	if in.File != nil {
		set++
	}
	if in.Text != "" {
		set++
	}
	if in.Topic != "" {
		set++
	}
	if set != 1 {
		return domain.ContentPayload{}, generation.Errorf(generation.ErrValidation,
			"provide exactly one of a file, pasted text, or a topic")
	}

	switch {
	case in.File != nil:
		return n.NormalizeFile(ctx, *in.File)
	case in.Topic != "":
		return NormalizeTopic(in.Topic)
	default:
		return NormalizeText(in.Text)
	}
}

// NormalizeFile converts an uploaded file. Failures are ErrRead errors.
func (n *Normalizer) NormalizeFile(ctx context.Context, f File) (domain.ContentPayload, error) {
	log := n.logger

	if len(f.Data) == 0 {
		return domain.ContentPayload{}, generation.Errorf(generation.ErrRead, "%s is empty", displayName(f.Name))
	}
	if int64(len(f.Data)) > n.maxFileBytes || f.Size > n.maxFileBytes {
		return domain.ContentPayload{}, generation.Errorf(generation.ErrRead,
			"%s is larger than the %d byte limit", displayName(f.Name), n.maxFileBytes)
	}

	mediaType := DetectMediaType(f.Name, f.MediaType, f.Data)
	log.DebugContext(ctx, "normalizing file",
		slog.String("name", f.Name),
		slog.String("media_type", mediaType),
		slog.Int("size", len(f.Data)))

	if n.acceptor != nil && !IsTextual(mediaType) && n.acceptor.AcceptsMediaType(mediaType) {
		payload, err := domain.NewBinaryPayload(mediaType, f.Data, f.Name)
		if err != nil {
			return domain.ContentPayload{}, generation.NewError(generation.ErrRead, "", err)
		}
		return payload, nil
	}

	var (
		text string
		err  error
	)
	switch {
	case mediaType == MediaTypeHTML:
		text, err = extractHTML(f.Data)
	case mediaType == MediaTypePDF:
		text, err = extractPDF(f.Data, n.maxFileBytes)
	case mediaType == MediaTypeDOCX:
		text, err = extractDOCX(f.Data, n.maxFileBytes)
	case IsTextual(mediaType):
		if !utf8.Valid(f.Data) {
			return domain.ContentPayload{}, generation.Errorf(generation.ErrRead,
				"%s is not valid UTF-8 text", displayName(f.Name))
		}
		text = string(f.Data)
	case strings.HasPrefix(mediaType, "image/"):
		return domain.ContentPayload{}, generation.Errorf(generation.ErrRead,
			"the configured provider cannot read %s images", mediaType)
	default:
		return domain.ContentPayload{}, generation.Errorf(generation.ErrRead,
			"unsupported file type %s", mediaType)
	}

	if err != nil {
		log.WarnContext(ctx, "failed to extract document text",
			slog.String("name", f.Name),
			slog.String("media_type", mediaType),
			slog.String("error", err.Error()))
		if errors.Is(err, errTooLarge) {
			return domain.ContentPayload{}, generation.Errorf(generation.ErrRead,
				"%s expands beyond the %d byte limit", displayName(f.Name), n.maxFileBytes)
		}
		if errors.Is(err, errNoText) {
			return domain.ContentPayload{}, generation.Errorf(generation.ErrRead,
				"%s contains no readable text", displayName(f.Name))
		}
		return domain.ContentPayload{}, generation.NewError(generation.ErrRead,
			"could not decode "+displayName(f.Name), err)
	}

	return domain.NewTextPayload(CollapseWhitespace(text), domain.OriginFile, f.Name), nil
}

// NormalizeText wraps pasted text. Text that is empty after trimming is a
// validation error.
func NormalizeText(text string) (domain.ContentPayload, error) {
	cleaned := CollapseWhitespace(text)
	if cleaned == "" {
		return domain.ContentPayload{}, generation.Errorf(generation.ErrValidation, "pasted text is empty")
	}
	return domain.NewTextPayload(cleaned, domain.OriginPasted, ""), nil
}

// NormalizeTopic wraps a topic string.
func NormalizeTopic(topic string) (domain.ContentPayload, error) {
	cleaned := CollapseWhitespace(topic)
	if cleaned == "" {
		return domain.ContentPayload{}, generation.Errorf(generation.ErrValidation, "topic is empty")
	}
	return domain.NewTopicPayload(cleaned), nil
}

// CollapseWhitespace replaces every whitespace run with a single space and
// trims the ends.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func displayName(name string) string {
	if name == "" {
		return "the file"
	}
	return name
}
