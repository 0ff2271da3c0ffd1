package models

// Metadata keys stored alongside vectors in the index.
const (
	MetaSourceType   = "source_type"
	MetaDocumentID   = "document_id"
	MetaItemID       = "item_id"
	MetaFilename     = "filename"
	MetaPage         = "page"
	MetaChunkIndex   = "chunk_index"
	MetaContentChunk = "content_chunk"
	MetaCategory     = "category"
)

// SourceTypePDF marks vectors that came from an uploaded PDF. Book vectors
// carry no source_type; anything other than "pdf" is treated as a book.
const SourceTypePDF = "pdf"

// Vector is one embedding with its ID and metadata, as stored in the index.
// IDs are deterministic ("doc-{id}-chunk-{n}", "book-{id}-chunk-{n}") so
// re-upserting the same logical chunk overwrites rather than duplicates.
type Vector struct {
	ID       string                 `json:"id"`
	Values   []float64              `json:"values"`
	Metadata map[string]interface{} `json:"metadata"`
}

// Match is a similarity query hit. Score is in the provider's native range
// and is used only for display.
type Match struct {
	ID       string                 `json:"id"`
	Score    float64                `json:"score"`
	Metadata map[string]interface{} `json:"metadata"`
}
