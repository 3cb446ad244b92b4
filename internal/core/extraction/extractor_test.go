package extraction

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SiegfredLorelle/iskobot-api/internal/core"
	"github.com/SiegfredLorelle/iskobot-api/internal/models"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func slideXML(paragraphs ...string) string {
	var body string
	for _, p := range paragraphs {
		body += fmt.Sprintf(`<a:p><a:r><a:t>%s</a:t></a:r></a:p>`, p)
	}
	return `<?xml version="1.0" encoding="UTF-8"?>
<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">
<p:cSld><p:spTree><p:sp><p:txBody><a:bodyPr/>` + body + `</p:txBody></p:sp></p:spTree></p:cSld></p:sld>`
}

func TestPPTXExtractor(t *testing.T) {
	content := buildZip(t, map[string]string{
		"ppt/slides/slide1.xml":             slideXML("Welcome", "  to   PLM "),
		"ppt/slides/slide2.xml":             slideXML(),
		"ppt/slides/slide10.xml":            slideXML("Tenth"),
		"ppt/slides/slide3.xml":             slideXML("Third"),
		"ppt/slides/_rels/slide1.xml.rels":  `<Relationships/>`,
		"ppt/slideLayouts/slideLayout1.xml": slideXML("Layout text"),
	})

	doc, err := NewPPTXExtractor().Extract(context.Background(), "deck.pptx", content)
	require.NoError(t, err)

	assert.Equal(t, "Welcome\nto PLM\n\nThird\n\nTenth", doc.Text)
	assert.Equal(t, "deck.pptx", doc.Metadata["source"])
	assert.Equal(t, "pptx", doc.Metadata["file_type"])
	assert.Equal(t, []int{1, 3, 4}, doc.Metadata["slide_numbers"])
	assert.Equal(t, 4, doc.Metadata["total_slides"])
}

func TestPPTXExtractor_RunsAndBreaks(t *testing.T) {
	slide := `<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">
<a:p><a:r><a:t>Hello</a:t></a:r><a:br/><a:r><a:t>world</a:t></a:r></a:p></p:sld>`
	content := buildZip(t, map[string]string{"ppt/slides/slide1.xml": slide})

	doc, err := NewPPTXExtractor().Extract(context.Background(), "d.pptx", content)
	require.NoError(t, err)
	assert.Equal(t, "Hello world", doc.Text)
}

func TestPPTXExtractor_NotAZip(t *testing.T) {
	_, err := NewPPTXExtractor().Extract(context.Background(), "bad.pptx", []byte("not a zip"))
	assert.Error(t, err)
}

func TestDOCXExtractor(t *testing.T) {
	contentTypes := `<?xml version="1.0" encoding="UTF-8"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`
	document := `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>
<w:p><w:r><w:t>Admission   requirements</w:t></w:r></w:p>
<w:p></w:p>
<w:p><w:r><w:t>Bring two IDs</w:t></w:r></w:p>
</w:body></w:document>`
	content := buildZip(t, map[string]string{
		"[Content_Types].xml": contentTypes,
		"word/document.xml":   document,
	})

	doc, err := NewDOCXExtractor().Extract(context.Background(), "guide.docx", content)
	require.NoError(t, err)

	assert.Equal(t, "Admission requirements\nBring two IDs", doc.Text)
	assert.Equal(t, 2, doc.Metadata["total_paragraphs"])
	assert.Equal(t, "docx", doc.Metadata["file_type"])
}

// buildPDF writes a minimal PDF with one Helvetica text page per entry of
// pages. An empty entry produces a page whose content stream shows only
// whitespace.
func buildPDF(pages ...string) []byte {
	var objects []string
	add := func(body string) int {
		objects = append(objects, body)
		return len(objects)
	}

	catalog := add("")
	tree := add("")
	font := add("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")
	var kids []string
	for _, text := range pages {
		if text == "" {
			text = "   "
		}
		content := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		stream := add(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
		page := add(fmt.Sprintf("<< /Type /Page /Parent %d 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 %d 0 R >> >> /Contents %d 0 R >>", tree, font, stream))
		kids = append(kids, fmt.Sprintf("%d 0 R", page))
	}
	objects[catalog-1] = fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R >>", tree)
	objects[tree-1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(kids))

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, body := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %d 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, catalog, xref)
	return buf.Bytes()
}

func TestPDFExtractor_PagesAndEmptyPages(t *testing.T) {
	content := buildPDF("Enrollment opens in June", "", "Classes start in August")

	doc, err := NewPDFExtractor().Extract(context.Background(), "calendar.pdf", content)
	require.NoError(t, err)

	assert.Equal(t, "Enrollment opens in June\nClasses start in August", doc.Text)
	assert.Equal(t, []int{1, 3}, doc.Metadata["page_numbers"])
	assert.Equal(t, 3, doc.Metadata["total_pages"])
	assert.Equal(t, "pdf", doc.Metadata["file_type"])
	assert.Equal(t, "calendar.pdf", doc.Metadata["source"])
}

func TestPDFExtractor_NoTextPages(t *testing.T) {
	doc, err := NewPDFExtractor().Extract(context.Background(), "scan.pdf", buildPDF("", ""))
	require.NoError(t, err)

	assert.Empty(t, doc.Text)
	assert.Equal(t, []int{}, doc.Metadata["page_numbers"])
	assert.Equal(t, 2, doc.Metadata["total_pages"])
}

func TestPDFExtractor_InvalidInput(t *testing.T) {
	_, err := NewPDFExtractor().Extract(context.Background(), "broken.pdf", []byte("%PDF-garbage"))
	assert.Error(t, err)
}

type stubExtractor struct {
	calls int
}

func (s *stubExtractor) Extract(_ context.Context, name string, content []byte) (*models.Document, error) {
	s.calls++
	return &models.Document{Text: string(content), Metadata: map[string]any{"source": name}}, nil
}

func TestRegistry_Dispatch(t *testing.T) {
	pdf := &stubExtractor{}
	r := NewRegistry()
	r.Register(models.FileTypePDF, pdf)

	doc, err := r.Extract(context.Background(), models.FileRef{Name: "a.pdf", Type: models.FileTypePDF}, []byte("text"))
	require.NoError(t, err)
	assert.Equal(t, "text", doc.Text)
	assert.Equal(t, 1, pdf.calls)

	_, err = r.Extract(context.Background(), models.FileRef{Name: "a.docx", Type: models.FileTypeDOCX}, nil)
	assert.ErrorIs(t, err, core.ErrUnsupportedSourceType)

	_, err = r.Extract(context.Background(), models.FileRef{Name: "notes", Type: ""}, nil)
	assert.ErrorIs(t, err, core.ErrUnsupportedSourceType)
}

func TestDefaultRegistry_Extensions(t *testing.T) {
	assert.Equal(t, []string{"pdf", "docx", "pptx"}, NewDefaultRegistry().Extensions())
}
