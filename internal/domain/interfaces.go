package domain

import "context"

// Document is the reference text the bot answers from. It is loaded once at startup.
type Document struct {
	ID      string
	Path    string
	Content string
}

// Chunk is a contiguous window of a document used for indexing.
// Start and End are rune offsets into the document content (End exclusive).
type Chunk struct {
	DocumentID string
	ChunkID    string
	Text       string
	Index      int
	Start      int
	End        int
}

// SearchResult represents a matching chunk with a relevance score.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// Report is a file that can be listed and fetched by its position in the listing.
type Report struct {
	Index int
	Name  string
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}

// Answerer turns a free-text question into a reply.
type Answerer interface {
	Answer(ctx context.Context, question string) Result
}

// Result is the outcome of answering one question. Exactly one of Text or Err is meaningful.
type Result struct {
	Text string
	Err  error
}

// Display flattens the result into text that can be sent over a messaging channel.
func (r Result) Display() string {
	if r.Err != nil {
		return "An error occurred: " + r.Err.Error()
	}
	return r.Text
}

// ReportStore enumerates report files in a stable order.
type ReportStore interface {
	List(ctx context.Context) ([]Report, error)
	RefByIndex(index int) (string, error)
}
