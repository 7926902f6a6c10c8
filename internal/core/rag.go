package core

import (
	"context"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/novamindhealth/ketamine-assistant/internal/llm"
	"github.com/novamindhealth/ketamine-assistant/internal/store"
)

// Status is the terminal state of one query through the pipeline.
type Status string

const (
	StatusCompleted Status = "COMPLETED"
	StatusRefused   Status = "REFUSED"
	StatusFailed    Status = "FAILED"
)

// RefusalMessage is returned verbatim whenever retrieval finds no relevant
// context. It must stay distinct from the generation-failure reply so callers
// can tell "out of domain" from "service is down".
const RefusalMessage = "I can only answer questions about ketamine therapy based on the documents in my knowledge base, " +
	"and I couldn't find anything relevant to your question. " +
	"For other medical concerns, please consult a qualified healthcare professional."

// FailureMessage is the assistant reply persisted when an upstream model call
// fails terminally.
const FailureMessage = "I'm sorry, but I encountered an error while processing your request. Please try again later."

// ChunkLister is the slice of the store the retriever needs.
type ChunkLister interface {
	ListChunks() ([]store.Chunk, error)
}

// Result is the outcome of one query: the assistant's reply, the terminal
// status, and, for completed answers, the ordered IDs of the chunks that were
// included in the prompt.
type Result struct {
	Answer         string
	Status         Status
	SourceChunkIDs []string
}

// RAGService runs the retrieval-augmented pipeline: embed the query, rank
// stored chunks, refuse if nothing relevant exists, otherwise assemble a
// grounded prompt and generate an answer.
type RAGService struct {
	chunks      ChunkLister
	embedder    llm.Embedder
	generator   llm.Generator
	topK        int
	genOpts     llm.CompleteOptions
	callTimeout time.Duration
	logger      *zap.Logger
}

func NewRAGService(chunks ChunkLister, embedder llm.Embedder, generator llm.Generator, topK int, genOpts llm.CompleteOptions, callTimeout time.Duration, logger *zap.Logger) *RAGService {
	if topK <= 0 {
		topK = 3
	}
	if callTimeout <= 0 {
		callTimeout = 30 * time.Second
	}
	if genOpts.MaxTokens <= 0 {
		genOpts.MaxTokens = 200
	}
	if len(genOpts.Stop) == 0 {
		genOpts.Stop = []string{"\nUser Question:", "\nAssistant:"}
	}
	return &RAGService{
		chunks:      chunks,
		embedder:    embedder,
		generator:   generator,
		topK:        topK,
		genOpts:     genOpts,
		callTimeout: callTimeout,
		logger:      logger,
	}
}

// Answer runs one query through the pipeline. The returned Result always
// carries the text to persist as the assistant reply; the error, when
// non-nil, is a DomainError describing the failure kind. A refusal is a
// successful outcome, not an error.
func (s *RAGService) Answer(ctx context.Context, query string) (Result, error) {
	if strings.TrimSpace(query) == "" {
		return Result{Status: StatusFailed, Answer: FailureMessage}, ErrEmptyQuery
	}

	embedCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	queryEmbedding, err := s.embedder.Embed(embedCtx, query)
	if err != nil {
		s.logger.Error("query embedding failed", zap.Error(err))
		return Result{Status: StatusFailed, Answer: FailureMessage},
			NewDomainError(KindEmbeddingFailure, "failed to embed query", err)
	}

	candidates, err := s.chunks.ListChunks()
	if err != nil {
		s.logger.Error("failed to load chunks for retrieval", zap.Error(err))
		return Result{Status: StatusFailed, Answer: FailureMessage},
			NewDomainError(KindInternal, "failed to load candidate chunks", err)
	}

	ranked := RankChunks(queryEmbedding, candidates, s.topK)

	// Refusal policy: no retrieved context means the query is treated as out
	// of domain. No model call is made.
	if len(ranked) == 0 {
		s.logger.Info("refusing query with no retrieved context", zap.Int("candidates", len(candidates)))
		return Result{Status: StatusRefused, Answer: RefusalMessage, SourceChunkIDs: []string{}}, nil
	}

	prompt := BuildPrompt(query, ranked)

	genCtx, cancelGen := context.WithTimeout(ctx, s.callTimeout)
	defer cancelGen()
	answer, err := s.generator.Complete(genCtx, prompt, s.genOpts)
	if err != nil {
		s.logger.Error("generation failed", zap.Error(err))
		return Result{Status: StatusFailed, Answer: FailureMessage},
			NewDomainError(KindGenerationFailure, "failed to generate answer", err)
	}

	sourceIDs := lo.Map(ranked, func(sc ScoredChunk, _ int) string {
		return sc.Chunk.ID
	})

	s.logger.Info("query completed",
		zap.Int("retrieved_chunks", len(ranked)),
		zap.Float64("top_score", ranked[0].Score))

	return Result{Status: StatusCompleted, Answer: answer, SourceChunkIDs: sourceIDs}, nil
}
