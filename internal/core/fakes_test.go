package core

import (
	"context"
	"errors"

	"github.com/novamindhealth/ketamine-assistant/internal/llm"
	"github.com/novamindhealth/ketamine-assistant/internal/store"
)

// fakeEmbedder returns a fixed vector, or fails when err is set.
type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

// fakeGenerator records prompts and returns a canned completion.
type fakeGenerator struct {
	response string
	err      error
	calls    int
	prompts  []string
}

func (f *fakeGenerator) Complete(ctx context.Context, prompt string, opts llm.CompleteOptions) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

// fakeChunkLister serves a fixed candidate set.
type fakeChunkLister struct {
	chunks []store.Chunk
	err    error
}

func (f *fakeChunkLister) ListChunks() ([]store.Chunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.chunks, nil
}

// fakeChatStore keeps sessions and messages in memory.
type fakeChatStore struct {
	sessions map[string]*store.ChatSession
	messages []store.ChatMessage
	created  int
}

func newFakeChatStore() *fakeChatStore {
	return &fakeChatStore{sessions: make(map[string]*store.ChatSession)}
}

func (f *fakeChatStore) GetSession(id string) (*store.ChatSession, error) {
	return f.sessions[id], nil
}

func (f *fakeChatStore) CreateSession(userIdentifier string) (*store.ChatSession, error) {
	f.created++
	session := &store.ChatSession{
		ID:             "session-" + userIdentifier,
		UserIdentifier: userIdentifier,
		IsActive:       true,
	}
	f.sessions[session.ID] = session
	return session, nil
}

func (f *fakeChatStore) TouchSession(id string) error { return nil }

func (f *fakeChatStore) CreateMessage(msg *store.ChatMessage) error {
	f.messages = append(f.messages, *msg)
	return nil
}

func (f *fakeChatStore) GetMessagesBySession(sessionID string, limit, offset int) ([]store.ChatMessage, error) {
	var out []store.ChatMessage
	for _, m := range f.messages {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	return out, nil
}

// fakeIngestStore records ingestion writes.
type fakeIngestStore struct {
	docs       map[string]*store.KnowledgeDoc
	chunks     []store.Chunk
	auditLogs  []store.AuditLog
	nextDocID  int
	chunksErr  error
	createErr  error
	updatedTo  string
	updateCall int
}

func newFakeIngestStore() *fakeIngestStore {
	return &fakeIngestStore{docs: make(map[string]*store.KnowledgeDoc)}
}

func (f *fakeIngestStore) CreateDocument(doc *store.KnowledgeDoc) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.nextDocID++
	if doc.ID == "" {
		doc.ID = "doc-" + string(rune('0'+f.nextDocID))
	}
	f.docs[doc.ID] = doc
	return nil
}

func (f *fakeIngestStore) UpdateDocumentClassification(id string, isRelevant bool, confidence float64, status string) error {
	doc, ok := f.docs[id]
	if !ok {
		return errors.New("doc not found")
	}
	doc.IsRelevant = isRelevant
	doc.Confidence = confidence
	doc.Status = status
	f.updatedTo = status
	f.updateCall++
	return nil
}

func (f *fakeIngestStore) CreateChunks(chunks []store.Chunk) error {
	if f.chunksErr != nil {
		return f.chunksErr
	}
	f.chunks = append(f.chunks, chunks...)
	return nil
}

func (f *fakeIngestStore) CreateAuditLog(entry *store.AuditLog) error {
	f.auditLogs = append(f.auditLogs, *entry)
	return nil
}
