package models

import (
	"strings"
	"time"
)

// FileType is the declared type of a stored file. The set is closed: only the
// constants below are extractable.
type FileType string

const (
	FileTypePDF  FileType = "pdf"
	FileTypeDOCX FileType = "docx"
	FileTypePPTX FileType = "pptx"
)

// SupportedFileTypes lists every FileType that has an extractor.
var SupportedFileTypes = []FileType{FileTypePDF, FileTypeDOCX, FileTypePPTX}

// ParseFileType maps an extension (with or without the leading dot, any case)
// to a FileType.
func ParseFileType(ext string) (FileType, bool) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, t := range SupportedFileTypes {
		if string(t) == ext {
			return t, true
		}
	}
	return FileType(ext), false
}

// FileRef is a stored file enumerated from object storage.
//
// Name: object key.
// Size: byte length.
// Type: declared type derived from the key's extension.
type FileRef struct {
	Name string   `json:"name"`
	Size int64    `json:"size"`
	Type FileType `json:"type"`
}

// Seed is a website root registered for crawling.
type Seed struct {
	URL         string     `db:"url" json:"url"`
	LastScraped *time.Time `db:"last_scraped" json:"last_scraped,omitempty"`
}

// Document is the text of one source item (an extracted file or a crawled
// page) together with its metadata.
type Document struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

// Chunk is a bounded segment of a Document. Metadata is a copy of the parent's
// with "chunk_index" added.
type Chunk struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
	Index    int            `json:"chunk_index"`
}

// VectorRecord is one row written to the vector store.
type VectorRecord struct {
	ID        string         `db:"id" json:"id"`
	Text      string         `db:"document" json:"text"`
	Embedding []float32      `db:"embedding" json:"-"`
	Metadata  map[string]any `db:"cmetadata" json:"metadata"`
}

// SearchResult is a record returned by a similarity query. Score is the
// cosine similarity (higher is closer).
type SearchResult struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
	Score    float32        `json:"score"`
}

// IngestionRun aggregates the outcome of one pipeline run.
type IngestionRun struct {
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	FilesFound     int        `json:"files_found"`
	FilesProcessed int        `json:"files_processed"`
	SitesCrawled   int        `json:"sites_crawled"`
	PagesScraped   int        `json:"pages_scraped"`
	TotalChunks    int        `json:"total_chunks"`
	BatchesSaved   int        `json:"batches_saved"`
	AvgChunkSize   float64    `json:"avg_chunk_size"`
	Errors         []string   `json:"errors"`
}

// Phase is the pipeline stage reported by the progress tracker.
type Phase string

const (
	PhaseIdle            Phase = "idle"
	PhaseListing         Phase = "listing"
	PhaseExtractingFiles Phase = "extracting_files"
	PhaseCrawling        Phase = "crawling"
	PhaseStoring         Phase = "storing"
	PhaseComplete        Phase = "complete"
	PhaseFailed          Phase = "failed"
)

// ProgressState is a point-in-time view of the current (or last) run.
type ProgressState struct {
	Percentage int    `json:"percentage"`
	Message    string `json:"message"`
	Phase      Phase  `json:"phase"`
	Active     bool   `json:"active"`
	Error      string `json:"error,omitempty"`
}
