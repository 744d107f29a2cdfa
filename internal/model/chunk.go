package model

// Chunk is a bounded slice of a page's plain text, the unit of embedding and
// retrieval. ChunkIndex values are contiguous from 0 within a page, in split
// order.
type Chunk struct {
	ID         int64  `json:"id,omitempty"`
	Text       string `json:"text"`
	PageID     string `json:"page_id"`
	PageName   string `json:"page_name"`
	ChunkIndex int    `json:"chunk_index"`
	NotebookID string `json:"notebook_id,omitempty"`
	SectionID  string `json:"section_id,omitempty"`
	TopicID    string `json:"topic_id,omitempty"`
}

// StoredChunk is a chunk as read back from the index store, with its vector.
type StoredChunk struct {
	Chunk
	Embedding []float32 `json:"embedding"`
}

// SearchMatch is one ranked retrieval result with its surrounding context.
type SearchMatch struct {
	Chunk        StoredChunk `json:"chunk"`
	Score        float32     `json:"score"`
	PrevText     string      `json:"prev_text,omitempty"`
	NextText     string      `json:"next_text,omitempty"`
	RelatedPages []string    `json:"related_pages,omitempty"`
}

// ChatMatch is the trimmed source attribution attached to a chat answer.
type ChatMatch struct {
	PageName    string  `json:"page_name"`
	ChunkIndex  int     `json:"chunk_index"`
	Score       float32 `json:"score"`
	TextPreview string  `json:"text_preview"`
}

// NotFoundAnswer is the fixed answer value used when nothing in the user's
// notes covers the question.
const NotFoundAnswer = "NOT_FOUND"

type ChatResult struct {
	Answer      string      `json:"answer"`
	Matches     []ChatMatch `json:"matches"`
	ContextUsed int         `json:"context_used"`
	Message     string      `json:"message,omitempty"`
	Error       string      `json:"error,omitempty"`
}

func (r ChatResult) NotFound() bool {
	return r.Answer == NotFoundAnswer
}
