package docparse

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrUnsupportedFormat indicates the document's MIME type has no parser.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Parser extracts plain text from an uploaded document.
type Parser interface {
	Parse(data []byte, mimeType string) (string, error)
}

// textMIMETypes are the non-"text/" media types handled as plain text.
var textMIMETypes = map[string]struct{}{
	"application/json":         {},
	"application/xml":          {},
	"application/x-yaml":       {},
	"application/yaml":         {},
	"application/javascript":   {},
	"application/x-markdown":   {},
	"application/octet-stream": {},
}

// TextParser handles text-like documents. Binary formats (PDF, Office
// documents) are rejected with ErrUnsupportedFormat; their parsers live
// behind this same contract.
type TextParser struct{}

// Parse returns the document bytes as text when the MIME type is text-like
// and the payload is valid UTF-8.
func (TextParser) Parse(data []byte, mimeType string) (string, error) {
	mediaType := mimeType
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = mediaType[:i]
	}
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))

	if !strings.HasPrefix(mediaType, "text/") {
		if _, ok := textMIMETypes[mediaType]; !ok {
			return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, mediaType)
		}
	}

	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: %s is not valid UTF-8", ErrUnsupportedFormat, mediaType)
	}
	return string(data), nil
}
