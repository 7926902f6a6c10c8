package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"go.uber.org/zap"
)

type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewSQLiteStore(dataSourceName string, logger *zap.Logger) (*SQLiteStore, error) {
	// Foreign keys must be enabled per connection for chunk cascade deletes.
	if !strings.Contains(dataSourceName, "_foreign_keys") {
		if strings.Contains(dataSourceName, "?") {
			dataSourceName += "&_foreign_keys=on"
		} else {
			dataSourceName += "?_foreign_keys=on"
		}
	}

	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db, logger: logger}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS users (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        external_user_id TEXT UNIQUE NOT NULL,
        password_hash TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS knowledge_docs (
        id TEXT PRIMARY KEY, -- UUID
        filename TEXT NOT NULL,
        is_relevant BOOLEAN NOT NULL DEFAULT FALSE,
        confidence REAL NOT NULL DEFAULT 0,
        status TEXT NOT NULL CHECK (status IN ('pending', 'processed', 'rejected')),
        uploaded_at DATETIME NOT NULL
    );

    CREATE TABLE IF NOT EXISTS chunks (
        id TEXT PRIMARY KEY, -- UUID
        doc_id TEXT NOT NULL,
        chunk_index INTEGER NOT NULL,
        content TEXT NOT NULL,
        embedding_json TEXT NOT NULL, -- JSON array of float32
        FOREIGN KEY (doc_id) REFERENCES knowledge_docs (id) ON DELETE CASCADE
    );

    CREATE TABLE IF NOT EXISTS chat_sessions (
        id TEXT PRIMARY KEY, -- UUID
        user_identifier TEXT NOT NULL,
        created_at DATETIME NOT NULL,
        last_activity_at DATETIME NOT NULL,
        is_active BOOLEAN NOT NULL DEFAULT TRUE
    );

    CREATE TABLE IF NOT EXISTS chat_messages (
        id TEXT PRIMARY KEY, -- UUID
        session_id TEXT NOT NULL,
        role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
        content TEXT NOT NULL,
        source_chunk_ids TEXT, -- JSON array of chunk UUIDs, assistant messages only
        timestamp DATETIME NOT NULL,
        FOREIGN KEY (session_id) REFERENCES chat_sessions (id)
    );

    CREATE TABLE IF NOT EXISTS audit_logs (
        id TEXT PRIMARY KEY, -- UUID
        action TEXT NOT NULL,
        actor_id TEXT NOT NULL,
        actor_type TEXT NOT NULL,
        resource_type TEXT NOT NULL,
        resource_id TEXT NOT NULL,
        severity TEXT NOT NULL DEFAULT 'info',
        details TEXT NOT NULL DEFAULT '{}',
        timestamp DATETIME NOT NULL
    );

    CREATE INDEX IF NOT EXISTS idx_chunks_doc_id ON chunks (doc_id);
    CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages (session_id);
    `
	_, err := s.db.Exec(schema)
	return err
}

// User methods

func (s *SQLiteStore) GetUserByExternalID(externalUserID string) (*User, error) {
	var user User
	err := s.db.QueryRow("SELECT id, external_user_id, password_hash, created_at FROM users WHERE external_user_id = ?", externalUserID).
		Scan(&user.ID, &user.ExternalUserID, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

func (s *SQLiteStore) CreateUser(externalUserID, passwordHash string) (*User, error) {
	res, err := s.db.Exec("INSERT INTO users (external_user_id, password_hash) VALUES (?, ?)", externalUserID, passwordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	id, _ := res.LastInsertId()
	return s.getUserByID(id)
}

func (s *SQLiteStore) getUserByID(id int64) (*User, error) {
	var user User
	err := s.db.QueryRow("SELECT id, external_user_id, password_hash, created_at FROM users WHERE id = ?", id).
		Scan(&user.ID, &user.ExternalUserID, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return &user, nil
}

// KnowledgeDoc methods

func (s *SQLiteStore) CreateDocument(doc *KnowledgeDoc) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.Status == "" {
		doc.Status = DocStatusPending
	}
	doc.UploadedAt = time.Now()

	_, err := s.db.Exec(
		"INSERT INTO knowledge_docs (id, filename, is_relevant, confidence, status, uploaded_at) VALUES (?, ?, ?, ?, ?, ?)",
		doc.ID, doc.Filename, doc.IsRelevant, doc.Confidence, doc.Status, doc.UploadedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert knowledge doc: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetDocumentByID(id string) (*KnowledgeDoc, error) {
	var doc KnowledgeDoc
	err := s.db.QueryRow("SELECT id, filename, is_relevant, confidence, status, uploaded_at FROM knowledge_docs WHERE id = ?", id).
		Scan(&doc.ID, &doc.Filename, &doc.IsRelevant, &doc.Confidence, &doc.Status, &doc.UploadedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get knowledge doc: %w", err)
	}
	return &doc, nil
}

// UpdateDocumentClassification records the relevance decision and the
// resulting processing status for a document.
func (s *SQLiteStore) UpdateDocumentClassification(id string, isRelevant bool, confidence float64, status string) error {
	res, err := s.db.Exec(
		"UPDATE knowledge_docs SET is_relevant = ?, confidence = ?, status = ? WHERE id = ?",
		isRelevant, confidence, status, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update knowledge doc classification: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("knowledge doc not found, classification not updated")
	}
	return nil
}

// ListDocuments returns documents with pagination. sortField must be one of
// the allowed columns; anything else falls back to uploaded_at.
func (s *SQLiteStore) ListDocuments(limit, offset int, sortField, sortDirection string) ([]KnowledgeDoc, error) {
	allowed := map[string]bool{"filename": true, "status": true, "uploaded_at": true, "confidence": true}
	if !allowed[sortField] {
		sortField = "uploaded_at"
	}
	direction := "ASC"
	if strings.EqualFold(sortDirection, "desc") {
		direction = "DESC"
	}

	query := fmt.Sprintf(
		"SELECT id, filename, is_relevant, confidence, status, uploaded_at FROM knowledge_docs ORDER BY %s %s LIMIT ? OFFSET ?",
		sortField, direction,
	)
	rows, err := s.db.Query(query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query knowledge docs: %w", err)
	}
	defer rows.Close()

	var docs []KnowledgeDoc
	for rows.Next() {
		var doc KnowledgeDoc
		if err := rows.Scan(&doc.ID, &doc.Filename, &doc.IsRelevant, &doc.Confidence, &doc.Status, &doc.UploadedAt); err != nil {
			return nil, fmt.Errorf("failed to scan knowledge doc row: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// DeleteDocument removes a document; its chunks cascade via the foreign key.
func (s *SQLiteStore) DeleteDocument(id string) error {
	res, err := s.db.Exec("DELETE FROM knowledge_docs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete knowledge doc: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("knowledge doc not found")
	}
	return nil
}

// Chunk methods

// CreateChunks inserts a document's chunks in one transaction so a partially
// ingested document never becomes visible to retrieval.
func (s *SQLiteStore) CreateChunks(chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin chunk insert transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT INTO chunks (id, doc_id, chunk_index, content, embedding_json) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for i := range chunks {
		if chunks[i].ID == "" {
			chunks[i].ID = uuid.NewString()
		}
		embeddingBytes, err := json.Marshal(chunks[i].Embedding)
		if err != nil {
			return fmt.Errorf("failed to marshal embedding for chunk %d: %w", chunks[i].Index, err)
		}
		if _, err := stmt.Exec(chunks[i].ID, chunks[i].DocID, chunks[i].Index, chunks[i].Content, string(embeddingBytes)); err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", chunks[i].Index, err)
		}
	}

	return tx.Commit()
}

// ListChunks returns every stored chunk in insertion order. Retrieval scores
// the full candidate set per query, so ordering here is the tie-break order.
func (s *SQLiteStore) ListChunks() ([]Chunk, error) {
	rows, err := s.db.Query("SELECT id, doc_id, chunk_index, content, embedding_json FROM chunks ORDER BY rowid ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	return s.scanChunks(rows)
}

// ListChunksByDoc returns a single document's chunks in document order.
func (s *SQLiteStore) ListChunksByDoc(docID string) ([]Chunk, error) {
	rows, err := s.db.Query("SELECT id, doc_id, chunk_index, content, embedding_json FROM chunks WHERE doc_id = ? ORDER BY chunk_index ASC", docID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks for doc %s: %w", docID, err)
	}
	defer rows.Close()

	return s.scanChunks(rows)
}

func (s *SQLiteStore) scanChunks(rows *sql.Rows) ([]Chunk, error) {
	var chunks []Chunk
	for rows.Next() {
		var chunk Chunk
		var embeddingJSON string
		if err := rows.Scan(&chunk.ID, &chunk.DocID, &chunk.Index, &chunk.Content, &embeddingJSON); err != nil {
			return nil, fmt.Errorf("failed to scan chunk row: %w", err)
		}
		if embeddingJSON != "" {
			if err := json.Unmarshal([]byte(embeddingJSON), &chunk.Embedding); err != nil {
				s.logger.Warn("failed to unmarshal chunk embedding, chunk will be skipped by retrieval",
					zap.String("chunk_id", chunk.ID), zap.Error(err))
				chunk.Embedding = nil
			}
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

// ChatSession methods

func (s *SQLiteStore) CreateSession(userIdentifier string) (*ChatSession, error) {
	now := time.Now()
	session := &ChatSession{
		ID:             uuid.NewString(),
		UserIdentifier: userIdentifier,
		CreatedAt:      now,
		LastActivityAt: now,
		IsActive:       true,
	}

	_, err := s.db.Exec(
		"INSERT INTO chat_sessions (id, user_identifier, created_at, last_activity_at, is_active) VALUES (?, ?, ?, ?, ?)",
		session.ID, session.UserIdentifier, session.CreatedAt, session.LastActivityAt, session.IsActive,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert chat session: %w", err)
	}
	return session, nil
}

func (s *SQLiteStore) GetSession(id string) (*ChatSession, error) {
	var session ChatSession
	err := s.db.QueryRow("SELECT id, user_identifier, created_at, last_activity_at, is_active FROM chat_sessions WHERE id = ?", id).
		Scan(&session.ID, &session.UserIdentifier, &session.CreatedAt, &session.LastActivityAt, &session.IsActive)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get chat session: %w", err)
	}
	return &session, nil
}

// TouchSession bumps the session's last-activity timestamp.
func (s *SQLiteStore) TouchSession(id string) error {
	_, err := s.db.Exec("UPDATE chat_sessions SET last_activity_at = ? WHERE id = ?", time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to touch chat session: %w", err)
	}
	return nil
}

// ChatMessage methods

func (s *SQLiteStore) CreateMessage(msg *ChatMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.Timestamp = time.Now()

	var sourceIDs sql.NullString
	if len(msg.SourceChunkIDs) > 0 {
		b, err := json.Marshal(msg.SourceChunkIDs)
		if err != nil {
			return fmt.Errorf("failed to marshal source chunk ids: %w", err)
		}
		sourceIDs = sql.NullString{String: string(b), Valid: true}
	}

	_, err := s.db.Exec(
		"INSERT INTO chat_messages (id, session_id, role, content, source_chunk_ids, timestamp) VALUES (?, ?, ?, ?, ?, ?)",
		msg.ID, msg.SessionID, msg.Role, msg.Content, sourceIDs, msg.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert chat message: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetMessagesBySession(sessionID string, limit, offset int) ([]ChatMessage, error) {
	rows, err := s.db.Query(
		"SELECT id, session_id, role, content, source_chunk_ids, timestamp FROM chat_messages WHERE session_id = ? ORDER BY timestamp ASC, rowid ASC LIMIT ? OFFSET ?",
		sessionID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat messages: %w", err)
	}
	defer rows.Close()

	return s.scanMessages(rows)
}

func (s *SQLiteStore) scanMessages(rows *sql.Rows) ([]ChatMessage, error) {
	var messages []ChatMessage
	for rows.Next() {
		var msg ChatMessage
		var sourceIDs sql.NullString
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &sourceIDs, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan chat message row: %w", err)
		}
		if sourceIDs.Valid && sourceIDs.String != "" {
			if err := json.Unmarshal([]byte(sourceIDs.String), &msg.SourceChunkIDs); err != nil {
				s.logger.Warn("failed to unmarshal source chunk ids",
					zap.String("message_id", msg.ID), zap.Error(err))
			}
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// AuditLog methods

func (s *SQLiteStore) CreateAuditLog(entry *AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Severity == "" {
		entry.Severity = SeverityInfo
	}
	if entry.Details == "" {
		entry.Details = "{}"
	}
	entry.Timestamp = time.Now()

	_, err := s.db.Exec(
		"INSERT INTO audit_logs (id, action, actor_id, actor_type, resource_type, resource_id, severity, details, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		entry.ID, entry.Action, entry.ActorID, entry.ActorType, entry.ResourceType, entry.ResourceID, entry.Severity, entry.Details, entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListAuditLogs(limit, offset int) ([]AuditLog, error) {
	rows, err := s.db.Query(
		"SELECT id, action, actor_id, actor_type, resource_type, resource_id, severity, details, timestamp FROM audit_logs ORDER BY timestamp DESC, rowid DESC LIMIT ? OFFSET ?",
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	var logs []AuditLog
	for rows.Next() {
		var entry AuditLog
		if err := rows.Scan(&entry.ID, &entry.Action, &entry.ActorID, &entry.ActorType, &entry.ResourceType, &entry.ResourceID, &entry.Severity, &entry.Details, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan audit log row: %w", err)
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}
