package store

import "time"

// Turn speakers.
const (
	SpeakerUser      = "user"
	SpeakerAssistant = "assistant"
)

// Turn statuses. Only final turns are rendered into prompts.
const (
	StatusPending = "pending"
	StatusFinal   = "final"
	StatusError   = "error"
)

type Turn struct {
	ID        string    `json:"id"` // UUID
	SessionID string    `json:"session_id"`
	Speaker   string    `json:"speaker"` // "user" or "assistant"
	Content   string    `json:"content"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type DataChunk struct {
	ID            int64     `json:"id"`
	Document      string    `json:"document"` // original file name
	Position      int       `json:"position"` // order within the document
	Content       string    `json:"content"`
	Embedding     []float32 `json:"-"` // Don't marshal to JSON response, internal
	EmbeddingJSON string    `json:"-"` // Store as JSON string for DB
}
