package store

import "time"

type User struct {
	ID             int64     `json:"id"`
	ExternalUserID string    `json:"external_user_id"`
	PasswordHash   string    `json:"-"` // Do not expose this in JSON responses
	CreatedAt      time.Time `json:"created_at"`
}

// Document processing statuses.
const (
	DocStatusPending   = "pending"
	DocStatusProcessed = "processed"
	DocStatusRejected  = "rejected"
)

// KnowledgeDoc is an uploaded source document. Classification and status are
// set by the ingestion pipeline; a processed document is immutable except for
// administrative metadata.
type KnowledgeDoc struct {
	ID         string    `json:"id"` // UUID
	Filename   string    `json:"filename"`
	IsRelevant bool      `json:"is_relevant"`
	Confidence float64   `json:"confidence"`
	Status     string    `json:"status"` // pending | processed | rejected
	UploadedAt time.Time `json:"uploaded_at"`
}

// Chunk is a contiguous slice of a document's text stored with its own
// embedding vector. Chunks are owned by exactly one document; deleting the
// document cascades.
type Chunk struct {
	ID        string    `json:"id"` // UUID
	DocID     string    `json:"doc_id"`
	Index     int       `json:"chunk_index"` // order within the document
	Content   string    `json:"content"`
	Embedding []float32 `json:"-"` // Stored as a JSON array in a TEXT column
}

type ChatSession struct {
	ID             string    `json:"id"` // UUID
	UserIdentifier string    `json:"user_identifier"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	IsActive       bool      `json:"is_active"`
}

// Chat message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type ChatMessage struct {
	ID             string    `json:"id"` // UUID
	SessionID      string    `json:"session_id"`
	Role           string    `json:"role"` // "user" or "assistant"
	Content        string    `json:"content"`
	SourceChunkIDs []string  `json:"source_chunk_ids,omitempty"` // ordered, assistant messages only
	Timestamp      time.Time `json:"timestamp"`
}

// Audit severities.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// AuditLog records an administrative or system action for later review.
type AuditLog struct {
	ID           string    `json:"id"` // UUID
	Action       string    `json:"action"`
	ActorID      string    `json:"actor_id"`
	ActorType    string    `json:"actor_type"` // user, system, api
	ResourceType string    `json:"resource_type"`
	ResourceID   string    `json:"resource_id"`
	Severity     string    `json:"severity"`
	Details      string    `json:"details"` // JSON blob
	Timestamp    time.Time `json:"timestamp"`
}
