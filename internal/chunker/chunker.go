// Package chunker splits page text into bounded, overlapping chunks with
// sentence-boundary snapping.
package chunker

import (
	"strings"

	"github.com/pustakalab/pustaka/internal/models"
)

// Chunker splits text into overlapping character-window chunks. Windows are
// measured in runes so multi-byte text chunks evenly.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given window size and overlap (in runes).
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Chunk splits text into chunks for one page. startIndex seeds the chunk
// index so numbering continues across pages. Each window except the last is
// snapped back to the last sentence terminator or newline inside it, but only
// when that boundary lies past half the window. The offset advances by the
// emitted window length minus the overlap, with a minimum step of 1 so the
// loop always terminates even when overlap >= window.
func (c *Chunker) Chunk(text string, page int, filename string, startIndex int) []models.Chunk {
	runes := []rune(text)
	if len(strings.TrimSpace(text)) == 0 {
		return nil
	}
	index := startIndex

	if len(runes) <= c.chunkSize {
		return []models.Chunk{{
			Text:       strings.TrimSpace(text),
			Page:       page,
			ChunkIndex: index,
			Filename:   filename,
		}}
	}

	var chunks []models.Chunk
	offset := 0
	for offset < len(runes) {
		end := offset + c.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		window := runes[offset:end]

		if end < len(runes) {
			if bp := lastBoundary(window); float64(bp) > float64(c.chunkSize)*0.5 {
				window = window[:bp+1]
			}
		}

		if content := strings.TrimSpace(string(window)); content != "" {
			chunks = append(chunks, models.Chunk{
				Text:       content,
				Page:       page,
				ChunkIndex: index,
				Filename:   filename,
			})
			index++
		}

		step := len(window) - c.chunkOverlap
		if step <= 0 {
			step = 1
		}
		offset += step
	}
	return chunks
}

// lastBoundary returns the index of the last sentence terminator or newline
// in window, or -1 if there is none.
func lastBoundary(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		if window[i] == '.' || window[i] == '\n' {
			return i
		}
	}
	return -1
}
