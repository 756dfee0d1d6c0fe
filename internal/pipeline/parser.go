package pipeline

import (
	"bytes"
	"unicode/utf8"

	"vecdb/internal/domain"
	"vecdb/internal/text"
)

// ParsedContent is the parser's output before it becomes an
// ExtractedContent entity: raw bytes with a detected modality.
type ParsedContent struct {
	Modality domain.Modality
	Content  []byte
}

// Parser extracts typed content from a raw fragment.
type Parser interface {
	Parse(fragment *domain.Fragment) ([]ParsedContent, error)
}

// Magic prefixes for the image formats passed through as IMAGE modality.
var (
	pngMagic  = []byte{0x89, 'P', 'N', 'G'}
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
	gifMagic  = []byte("GIF8")
)

// BytesParser classifies fragment bytes by sniffing: known image formats
// become IMAGE content, valid UTF-8 becomes TEXT. Anything else is a
// parse failure, which fails the document rather than silently indexing
// garbage.
type BytesParser struct{}

func NewBytesParser() *BytesParser { return &BytesParser{} }

func (p *BytesParser) Parse(fragment *domain.Fragment) ([]ParsedContent, error) {
	data := fragment.Content
	switch {
	case bytes.HasPrefix(data, pngMagic), bytes.HasPrefix(data, jpegMagic), bytes.HasPrefix(data, gifMagic):
		return []ParsedContent{{Modality: domain.ModalityImage, Content: data}}, nil
	case utf8.Valid(data):
		// Normalizing here keeps chunk ids stable across CRLF/LF
		// variants of the same upload.
		return []ParsedContent{{Modality: domain.ModalityText, Content: text.Normalize(data)}}, nil
	default:
		return nil, &domain.ValidationError{Msg: "unsupported content format"}
	}
}
