package extract

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// fromPDF extracts the plain text of every page. The pdf library panics on
// some malformed inputs, so the whole read is wrapped in a recover.
func fromPDF(data []byte) (text ExtractedText, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed PDF document: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return ExtractedText{}, fmt.Errorf("failed to open PDF: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return ExtractedText{}, fmt.Errorf("failed to read PDF text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return ExtractedText{}, fmt.Errorf("failed to read PDF text: %w", err)
	}
	return ExtractedText{Content: buf.String()}, nil
}
