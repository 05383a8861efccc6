package models

import "time"

// Document is a single ingested file. Documents are immutable once stored;
// re-uploading the same file creates a new document rather than merging.
type Document struct {
	ID        string
	Filename  string
	Text      string
	Sections  []string
	CreatedAt time.Time
}

// Chunk is a bounded, section-labelled span of document text. The ID is
// derived from the document ID and the chunk's ordinal so re-ingesting a
// document overwrites rather than duplicates.
type Chunk struct {
	ID         string
	DocumentID string
	Section    string
	Ordinal    int
	Text       string
}

// ChunkDraft is the chunker's output before a chunk is bound to a document.
type ChunkDraft struct {
	Text    string
	Section string
}

// IngestResult summarizes an upload for the API response.
type IngestResult struct {
	Filename      string
	ChunksAdded   int
	TotalChunks   int
	SectionsFound []string
}
