package domain

import "context"

// Document represents a single text file loaded into the system.
type Document struct {
	ID      string
	Path    string
	Content string
}

// Chunk is a bounded slice of a document used as the unit of embedding and retrieval.
type Chunk struct {
	DocumentID string
	ChunkID    string
	Index      int
	Text       string
	// Source is the path of the document the chunk was cut from.
	Source   string
	Metadata map[string]string
}

// SearchResult represents a matching chunk with a relevance score (higher is better).
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatTurn is one message of the conversation history.
type ChatTurn struct {
	Role    Role
	Content string
}

// Message is a single prompt message sent to a Generator.
type Message struct {
	Role    Role
	Content string
}

// Answer is the outcome of one question/answer round.
type Answer struct {
	Text            string
	StandaloneQuery string
	Context         []SearchResult
}

// Embedder converts free text into a numeric vector representation.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Preparer is implemented by embedders that need a pass over the corpus
// before they can embed anything.
type Preparer interface {
	Prepare(corpus []string) error
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// Generator produces text from an ordered list of prompt messages.
type Generator interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}
