// Package extract turns uploaded documents into plain text. It owns the
// normalization of every supported format, so callers only ever see a single
// ExtractedText result or an error.
package extract

import (
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

// Supported media types, matching the upload filter.
const (
	TypePDF  = "application/pdf"
	TypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	TypePPTX = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	TypeText = "text/plain"
)

// ErrUnsupportedType is returned before any processing when the declared
// media type is not one of the supported formats.
var ErrUnsupportedType = errors.New("unsupported media type")

// Document is an uploaded file awaiting ingestion. It is consumed by
// extraction and not retained afterwards.
type Document struct {
	Name      string
	MediaType string
	Data      []byte
}

// ExtractedText is the normalized text content of a document.
type ExtractedText struct {
	Content string
}

var extensionTypes = map[string]string{
	".pdf":  TypePDF,
	".docx": TypeDOCX,
	".pptx": TypePPTX,
	".txt":  TypeText,
	".md":   TypeText,
}

// ResolveMediaType normalizes a declared content type, falling back to the
// file extension when the declaration is missing or generic.
func ResolveMediaType(declared, filename string) string {
	if declared != "" {
		if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != "application/octet-stream" {
			return mt
		}
	}
	return extensionTypes[strings.ToLower(filepath.Ext(filename))]
}

// IsSupported reports whether a media type can be ingested.
func IsSupported(mediaType string) bool {
	switch mediaType {
	case TypePDF, TypeDOCX, TypePPTX, TypeText:
		return true
	}
	return false
}

// FromDocument extracts the text of a document according to its declared
// media type.
func FromDocument(doc Document) (ExtractedText, error) {
	switch doc.MediaType {
	case TypeText:
		return ExtractedText{Content: string(doc.Data)}, nil
	case TypePDF:
		return fromPDF(doc.Data)
	case TypeDOCX:
		return fromDOCX(doc.Data)
	case TypePPTX:
		return fromPPTX(doc.Data)
	default:
		return ExtractedText{}, fmt.Errorf("%w: %q", ErrUnsupportedType, doc.MediaType)
	}
}
