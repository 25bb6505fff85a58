package content

import (
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

// Media types the normalizer handles specially.
const (
	MediaTypePlain    = "text/plain"
	MediaTypeMarkdown = "text/markdown"
	MediaTypeHTML     = "text/html"
	MediaTypePDF      = "application/pdf"
	MediaTypeDOCX     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MediaTypeOctet    = "application/octet-stream"
)

// MediaTypeFromExtension returns the media type for a file extension, or
// application/octet-stream when the extension is unknown.
func MediaTypeFromExtension(ext string) string {
	switch strings.ToLower(ext) {
	case ".txt", ".text":
		return MediaTypePlain
	case ".md", ".markdown":
		return MediaTypeMarkdown
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	case ".yaml", ".yml":
		return "application/yaml"
	case ".xml":
		return "application/xml"
	case ".html", ".htm":
		return MediaTypeHTML
	case ".pdf":
		return MediaTypePDF
	case ".docx":
		return MediaTypeDOCX
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return MediaTypeOctet
	}
}

// DetectMediaType resolves the media type of a file. A declared type wins
// unless it is empty or application/octet-stream; then the extension is
// consulted, and finally the content is sniffed.
func DetectMediaType(name, declared string, data []byte) string {
	if mt := baseMediaType(declared); mt != "" && mt != MediaTypeOctet {
		return mt
	}

	if mt := MediaTypeFromExtension(filepath.Ext(name)); mt != MediaTypeOctet {
		return mt
	}

	return baseMediaType(http.DetectContentType(data))
}

// IsTextual reports whether a media type can be decoded directly as text.
func IsTextual(mediaType string) bool {
	if strings.HasPrefix(mediaType, "text/") {
		return true
	}
	switch mediaType {
	case "application/json", "application/yaml", "application/x-yaml", "application/xml":
		return true
	default:
		return false
	}
}

// baseMediaType strips parameters such as charset and lowercases the type.
func baseMediaType(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(v)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.SplitN(v, ";", 2)[0]))
	}
	return mt
}
