package chunker

import (
	"fmt"
	"strconv"

	"ragbot/internal/domain"
)

// WindowChunker splits text into fixed-size rune windows where each window
// overlaps its predecessor by a fixed number of runes.
type WindowChunker struct {
	size    int
	overlap int
}

// NewWindowChunker validates the window parameters. overlap must be in [0, size).
func NewWindowChunker(size, overlap int) (*WindowChunker, error) {
	if size <= 0 {
		return nil, domain.NewConfigError("chunker.chunk_size", fmt.Sprintf("must be positive, got %d", size))
	}
	if overlap < 0 {
		return nil, domain.NewConfigError("chunker.overlap", fmt.Sprintf("must not be negative, got %d", overlap))
	}
	if overlap >= size {
		return nil, domain.NewConfigError("chunker.overlap", fmt.Sprintf("must be smaller than chunk_size (%d >= %d)", overlap, size))
	}
	return &WindowChunker{size: size, overlap: overlap}, nil
}

// Size returns the window length in runes.
func (c *WindowChunker) Size() int { return c.size }

// Overlap returns the number of runes shared by consecutive chunks.
func (c *WindowChunker) Overlap() int { return c.overlap }

// Chunk splits the document greedily from start to end. The last chunk may be
// shorter than the window; an empty document yields no chunks.
func (c *WindowChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	runes := []rune(document.Content)
	if len(runes) == 0 {
		return nil, nil
	}
	step := c.size - c.overlap
	chunks := make([]domain.Chunk, 0, len(runes)/step+1)
	for start, idx := 0, 0; ; start, idx = start+step, idx+1 {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, domain.Chunk{
			DocumentID: document.ID,
			ChunkID:    document.ID + ":" + strconv.Itoa(idx),
			Text:       string(runes[start:end]),
			Index:      idx,
			Start:      start,
			End:        end,
		})
		if end == len(runes) {
			break
		}
	}
	return chunks, nil
}
