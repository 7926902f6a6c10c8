package core

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/novamindhealth/ketamine-assistant/internal/llm"
	"github.com/novamindhealth/ketamine-assistant/internal/store"
	"github.com/novamindhealth/ketamine-assistant/internal/utils"
)

// classificationSampleSize is how many leading characters of a document are
// sent to the relevance classifier.
const classificationSampleSize = 500

// IngestStore is the slice of the store the ingestion pipeline writes to.
type IngestStore interface {
	CreateDocument(doc *store.KnowledgeDoc) error
	UpdateDocumentClassification(id string, isRelevant bool, confidence float64, status string) error
	CreateChunks(chunks []store.Chunk) error
	CreateAuditLog(entry *store.AuditLog) error
}

// IngestionService turns an uploaded document into stored, embedded chunks:
// extract text, classify topical relevance, chunk, embed, persist.
type IngestionService struct {
	store        IngestStore
	embedder     llm.Embedder
	classifier   *Classifier
	chunker      *WordChunker
	embeddingDim int
	logger       *zap.Logger
}

func NewIngestionService(st IngestStore, embedder llm.Embedder, classifier *Classifier, chunker *WordChunker, embeddingDim int, logger *zap.Logger) *IngestionService {
	return &IngestionService{
		store:        st,
		embedder:     embedder,
		classifier:   classifier,
		chunker:      chunker,
		embeddingDim: embeddingDim,
		logger:       logger,
	}
}

// ProcessUpload ingests one uploaded file. An irrelevant document is stored
// with status "rejected" and produces no chunks; a relevant one ends up
// "processed" with its chunk set persisted. The returned document reflects
// the final state.
func (s *IngestionService) ProcessUpload(ctx context.Context, filename string, data []byte, actor string) (*store.KnowledgeDoc, error) {
	text, err := extractText(filename, data)
	if err != nil {
		return nil, err
	}

	doc := &store.KnowledgeDoc{
		Filename: filename,
		Status:   store.DocStatusPending,
	}
	if err := s.store.CreateDocument(doc); err != nil {
		return nil, fmt.Errorf("failed to create knowledge doc: %w", err)
	}

	sample := text
	if len(sample) > classificationSampleSize {
		sample = sample[:classificationSampleSize]
	}

	classification := s.classifier.ClassifyRelevance(ctx, sample)
	doc.IsRelevant = classification.IsRelevant
	doc.Confidence = classification.Confidence

	if !classification.IsRelevant {
		doc.Status = store.DocStatusRejected
		if err := s.store.UpdateDocumentClassification(doc.ID, false, classification.Confidence, store.DocStatusRejected); err != nil {
			return nil, fmt.Errorf("failed to mark document rejected: %w", err)
		}
		s.audit("document.rejected", actor, doc.ID, store.SeverityWarning, map[string]any{
			"filename": filename,
			"reason":   classification.Reason,
		})
		s.logger.Info("document rejected as out of domain",
			zap.String("doc_id", doc.ID), zap.String("filename", filename))
		return doc, nil
	}

	pieces := s.chunker.Chunk(text)
	if len(pieces) == 0 {
		doc.Status = store.DocStatusRejected
		if err := s.store.UpdateDocumentClassification(doc.ID, true, classification.Confidence, store.DocStatusRejected); err != nil {
			return nil, fmt.Errorf("failed to mark empty document rejected: %w", err)
		}
		return doc, ErrEmptyDocument
	}

	chunks := make([]store.Chunk, 0, len(pieces))
	for i, piece := range pieces {
		embedding, err := s.embedChunk(ctx, piece)
		if err != nil {
			s.audit("document.ingest_failed", actor, doc.ID, store.SeverityError, map[string]any{
				"filename":    filename,
				"chunk_index": i,
				"error":       err.Error(),
			})
			return nil, err
		}
		chunks = append(chunks, store.Chunk{
			DocID:     doc.ID,
			Index:     i,
			Content:   piece,
			Embedding: embedding,
		})
	}

	if err := s.store.CreateChunks(chunks); err != nil {
		return nil, fmt.Errorf("failed to store chunks: %w", err)
	}

	doc.Status = store.DocStatusProcessed
	if err := s.store.UpdateDocumentClassification(doc.ID, true, classification.Confidence, store.DocStatusProcessed); err != nil {
		return nil, fmt.Errorf("failed to mark document processed: %w", err)
	}

	s.audit("document.processed", actor, doc.ID, store.SeverityInfo, map[string]any{
		"filename": filename,
		"chunks":   len(chunks),
	})
	s.logger.Info("document ingested",
		zap.String("doc_id", doc.ID),
		zap.String("filename", filename),
		zap.Int("chunks", len(chunks)))

	return doc, nil
}

// embedChunk embeds one chunk of text. Empty or whitespace-only text gets the
// documented zero-vector fallback instead of a provider call; any returned
// vector must match the configured dimensionality.
func (s *IngestionService) embedChunk(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return utils.ZeroVector(s.embeddingDim), nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	embedding, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, NewDomainError(KindEmbeddingFailure, "failed to embed chunk", err)
	}
	if len(embedding) != s.embeddingDim {
		return nil, NewDomainError(KindEmbeddingFailure,
			fmt.Sprintf("embedding must have exactly %d dimensions, got %d", s.embeddingDim, len(embedding)), nil)
	}
	return embedding, nil
}

func (s *IngestionService) audit(action, actor, resourceID, severity string, details map[string]any) {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		detailsJSON = []byte("{}")
	}
	entry := &store.AuditLog{
		Action:       action,
		ActorID:      actor,
		ActorType:    "api",
		ResourceType: "knowledge_doc",
		ResourceID:   resourceID,
		Severity:     severity,
		Details:      string(detailsJSON),
	}
	if err := s.store.CreateAuditLog(entry); err != nil {
		s.logger.Warn("failed to write audit log entry", zap.String("action", action), zap.Error(err))
	}
}

// extractText pulls plain text out of an uploaded file. Only plain-text
// formats are supported natively; binary formats are rejected upstream by
// the upload handler's allowlist and again here.
func extractText(filename string, data []byte) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".md":
		text := string(data)
		if strings.TrimSpace(text) == "" {
			return "", ErrEmptyDocument
		}
		return text, nil
	default:
		return "", NewDomainError(KindInvalidInput,
			fmt.Sprintf("unsupported file type %q (allowed: .txt, .md)", filepath.Ext(filename)), nil)
	}
}
