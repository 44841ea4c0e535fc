package models

// QueryRequest is sent to the knowledge base query endpoint.
type QueryRequest struct {
	Query          string  `json:"query"`
	TopK           int     `json:"top_k"`
	ScoreThreshold float64 `json:"score_threshold"`
	Stream         bool    `json:"stream"`
}

// QueryResponse carries the generated answer and the chunks it was built from.
type QueryResponse struct {
	Answer   string         `json:"answer"`
	Sources  []SourceInfo   `json:"sources"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

// SourceInfo describes one retrieved chunk.
type SourceInfo struct {
	ChunkID  string         `json:"chunk_id"`
	Content  string         `json:"content"`
	Source   string         `json:"source"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
