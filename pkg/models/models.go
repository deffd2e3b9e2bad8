package models

// Chunk is the unit of retrieval: a word-bounded slice of a source document.
type Chunk struct {
	Content     string `json:"content"`
	Source      string `json:"source"`
	ChunkID     int    `json:"chunk_id"`
	TotalChunks int    `json:"total_chunks"`
}

// Meta returns the metadata portion of the chunk, without its content.
func (c Chunk) Meta() ChunkMeta {
	return ChunkMeta{
		Source:      c.Source,
		ChunkID:     c.ChunkID,
		TotalChunks: c.TotalChunks,
	}
}

// ChunkMeta identifies where a chunk came from. It lives in a parallel array
// alongside the chunk contents and the vector index: position i in the index
// corresponds to position i in both arrays.
type ChunkMeta struct {
	Source      string `json:"source"`
	ChunkID     int    `json:"chunk_id"`
	TotalChunks int    `json:"total_chunks"`
}

type SearchResult struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// Health reports whether an index is loaded and how many vectors it holds.
type Health struct {
	Loaded bool `json:"loaded"`
	Count  int  `json:"count"`
}
