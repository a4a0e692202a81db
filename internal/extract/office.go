package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// OOXML documents are ZIP archives of XML parts. DOCX keeps its text in
// word/document.xml, PPTX spreads it over ppt/slides/slideN.xml.

func fromDOCX(data []byte) (ExtractedText, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return ExtractedText{}, fmt.Errorf("malformed DOCX document: %w", err)
	}

	content, err := readArchiveFile(reader, "word/document.xml")
	if err != nil {
		return ExtractedText{}, err
	}
	if content == nil {
		return ExtractedText{}, fmt.Errorf("DOCX document has no word/document.xml")
	}

	return ExtractedText{Content: parseDocumentXML(content)}, nil
}

// documentXML mirrors the parts of word/document.xml we care about.
type documentXML struct {
	Body struct {
		Paragraphs []paragraph `xml:"p"`
	} `xml:"body"`
}

type paragraph struct {
	Runs []run `xml:"r"`
}

type run struct {
	Text []textElement `xml:"t"`
}

type textElement struct {
	Content string `xml:",chardata"`
}

func parseDocumentXML(content []byte) string {
	var doc documentXML
	if err := xml.Unmarshal(content, &doc); err != nil {
		return ""
	}

	var result strings.Builder
	for i, para := range doc.Body.Paragraphs {
		if i > 0 {
			result.WriteString("\n")
		}
		for _, r := range para.Runs {
			for _, t := range r.Text {
				result.WriteString(t.Content)
			}
		}
	}
	return strings.TrimSpace(result.String())
}

var slidePattern = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

func fromPPTX(data []byte) (ExtractedText, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return ExtractedText{}, fmt.Errorf("malformed PPTX document: %w", err)
	}

	type slide struct {
		num  int
		name string
	}
	var slides []slide
	for _, f := range reader.File {
		m := slidePattern.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		num, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{num: num, name: f.Name})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	var result strings.Builder
	for _, sl := range slides {
		content, err := readArchiveFile(reader, sl.name)
		if err != nil {
			return ExtractedText{}, err
		}
		text := parseSlideXML(content)
		if text == "" {
			continue
		}
		if result.Len() > 0 {
			result.WriteString("\n")
		}
		result.WriteString(text)
	}

	return ExtractedText{Content: strings.TrimSpace(result.String())}, nil
}

// parseSlideXML collects the character data of every a:t element. A token
// scan avoids modelling the full DrawingML schema.
func parseSlideXML(content []byte) string {
	decoder := xml.NewDecoder(bytes.NewReader(content))

	var result strings.Builder
	inText := false
	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			if t.Name.Local == "t" {
				inText = false
				result.WriteString(" ")
			}
		case xml.CharData:
			if inText {
				result.Write(t)
			}
		}
	}
	return strings.TrimSpace(result.String())
}

func readArchiveFile(reader *zip.Reader, name string) ([]byte, error) {
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		return content, nil
	}
	return nil, nil
}
