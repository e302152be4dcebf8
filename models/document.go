package models

// MetadataSource is the source label of the synthetic batch-metadata chunk.
const MetadataSource = "System Metadata"

// Document is one uploaded PDF after text extraction: the original filename
// and the extracted text of each page, in page order.
type Document struct {
	Name  string
	Pages []string
}

// Chunk is the unit of embedding and retrieval: a bounded substring of a
// document's concatenated text with a back-reference to its source file.
type Chunk struct {
	ChunkID string `json:"chunk_id"`
	Source  string `json:"source"`
	Order   int    `json:"order"`
	Text    string `json:"text"`
}

// RetrievalResult is one similarity-search hit. Distance is squared L2
// between the query and chunk embeddings; lower means more similar.
type RetrievalResult struct {
	Chunk    Chunk
	Distance float64
}
