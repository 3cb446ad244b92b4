package extraction

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/SiegfredLorelle/iskobot-api/internal/core"
	"github.com/SiegfredLorelle/iskobot-api/internal/models"
)

var _ core.Extractor = (*PPTXExtractor)(nil)

const (
	slidePathPrefix = "ppt/slides/slide"
	drawingMLNS     = "http://schemas.openxmlformats.org/drawingml/2006/main"
)

// PPTXExtractor reads ppt/slides/slideN.xml parts in slide order and collects
// the DrawingML paragraphs of every text-bearing shape.
type PPTXExtractor struct{}

func NewPPTXExtractor() *PPTXExtractor {
	return &PPTXExtractor{}
}

type slidePart struct {
	num  int
	file *zip.File
}

func (e *PPTXExtractor) Extract(ctx context.Context, name string, content []byte) (*models.Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open pptx: %w", err)
	}

	var parts []slidePart
	for _, f := range zr.File {
		num, ok := slideNumber(f.Name)
		if !ok {
			continue
		}
		parts = append(parts, slidePart{num: num, file: f})
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].num < parts[j].num })

	var slides []string
	var slideNumbers []int
	for i, p := range parts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		paragraphs, err := readSlideParagraphs(p.file)
		if err != nil {
			return nil, fmt.Errorf("slide %d: %w", p.num, err)
		}
		if len(paragraphs) > 0 {
			slides = append(slides, strings.Join(paragraphs, "\n"))
			slideNumbers = append(slideNumbers, i+1)
		}
	}

	return &models.Document{
		Text: strings.Join(slides, "\n\n"),
		Metadata: map[string]any{
			"source":        name,
			"file_type":     string(models.FileTypePPTX),
			"slide_numbers": slideNumbers,
			"total_slides":  len(parts),
		},
	}, nil
}

// slideNumber parses N from "ppt/slides/slideN.xml". Layouts, masters and
// the _rels directory do not match.
func slideNumber(path string) (int, bool) {
	if !strings.HasPrefix(path, slidePathPrefix) || !strings.HasSuffix(path, ".xml") {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(path, slidePathPrefix), ".xml"))
	if err != nil {
		return 0, false
	}
	return n, true
}

func isDrawing(name xml.Name, local string) bool {
	return name.Local == local && (name.Space == drawingMLNS || name.Space == "a")
}

// readSlideParagraphs returns the cleaned, non-empty <a:p> paragraphs of a
// slide in document order. Runs (<a:t>) are concatenated and <a:br/> becomes
// a space.
func readSlideParagraphs(f *zip.File) ([]string, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	dec := xml.NewDecoder(rc)
	var (
		paragraphs []string
		current    strings.Builder
		inPara     bool
		inText     bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case isDrawing(t.Name, "p"):
				inPara = true
				current.Reset()
			case isDrawing(t.Name, "t"):
				inText = true
			case isDrawing(t.Name, "br") && inPara:
				current.WriteByte(' ')
			}
		case xml.EndElement:
			switch {
			case isDrawing(t.Name, "t"):
				inText = false
			case isDrawing(t.Name, "p"):
				if text := CleanText(current.String()); text != "" {
					paragraphs = append(paragraphs, text)
				}
				inPara = false
			}
		case xml.CharData:
			if inPara && inText {
				current.Write(t)
			}
		}
	}
	return paragraphs, nil
}
