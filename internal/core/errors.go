package core

import "errors"

var (
	// ErrUnsupportedSourceType is returned for a file whose declared type has no extractor.
	ErrUnsupportedSourceType = errors.New("unsupported source type")
	// ErrFetchFailure marks a network or HTTP failure while crawling a URL.
	ErrFetchFailure = errors.New("fetch failure")
	// ErrDuplicateContent marks a crawled page whose content hash was already seen.
	ErrDuplicateContent = errors.New("duplicate content")
	// ErrEmbeddingQuotaExceeded is returned when retries ran out on a rate or quota error.
	ErrEmbeddingQuotaExceeded = errors.New("embedding quota exceeded")
	// ErrEmbeddingFailed is returned when retries ran out on any other provider error.
	ErrEmbeddingFailed = errors.New("embedding failed")
	// ErrPersistenceFailure wraps any failure while writing to the vector store.
	ErrPersistenceFailure = errors.New("persistence failure")
	// ErrConcurrentRunRejected is returned when a run is triggered while another is active.
	ErrConcurrentRunRejected = errors.New("ingestion already in progress")
)
