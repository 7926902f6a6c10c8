package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/novamindhealth/ketamine-assistant/internal/llm"
	"github.com/novamindhealth/ketamine-assistant/internal/store"
	"github.com/novamindhealth/ketamine-assistant/internal/utils"
)

func newTestRAGService(chunks ChunkLister, embedder llm.Embedder, generator llm.Generator, topK int) *RAGService {
	return NewRAGService(chunks, embedder, generator, topK, llm.CompleteOptions{}, time.Second, zap.NewNop())
}

func TestAnswerCompletedWithSources(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{1, 0, 0}}
	generator := &fakeGenerator{response: "Ketamine infusions are administered under supervision."}
	chunks := &fakeChunkLister{chunks: []store.Chunk{
		chunkWithEmbedding("c1", []float32{1, 0, 0}),
		chunkWithEmbedding("c2", []float32{0.9, 0.1, 0}),
		chunkWithEmbedding("c3", []float32{0, 1, 0}),
	}}

	svc := newTestRAGService(chunks, embedder, generator, 2)
	result, err := svc.Answer(context.Background(), "how are infusions given?")

	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, "Ketamine infusions are administered under supervision.", result.Answer)
	// Source IDs are exactly the ranked chunks included in the prompt, in order.
	assert.Equal(t, []string{"c1", "c2"}, result.SourceChunkIDs)
	assert.Equal(t, 1, generator.calls)
}

func TestAnswerRefusesOnEmptyCorpus(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{1, 0, 0}}
	generator := &fakeGenerator{response: "should never be called"}
	svc := newTestRAGService(&fakeChunkLister{}, embedder, generator, 3)

	result, err := svc.Answer(context.Background(), "tell me about anything")

	require.NoError(t, err)
	assert.Equal(t, StatusRefused, result.Status)
	assert.Equal(t, RefusalMessage, result.Answer)
	assert.Empty(t, result.SourceChunkIDs)
	// Refusal short-circuits before any model call.
	assert.Zero(t, generator.calls)
}

func TestAnswerRefusalMessageIsStable(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{1, 0}}
	svc := newTestRAGService(&fakeChunkLister{}, embedder, &fakeGenerator{}, 3)

	first, err := svc.Answer(context.Background(), "question one")
	require.NoError(t, err)
	second, err := svc.Answer(context.Background(), "a completely different question")
	require.NoError(t, err)

	assert.Equal(t, first.Answer, second.Answer)
	assert.Equal(t, RefusalMessage, first.Answer)
}

func TestAnswerEmptyQuery(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{1, 0}}
	generator := &fakeGenerator{}
	svc := newTestRAGService(&fakeChunkLister{}, embedder, generator, 3)

	result, err := svc.Answer(context.Background(), "   ")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyQuery))
	assert.Equal(t, StatusFailed, result.Status)
	assert.Zero(t, embedder.calls, "invalid input must not reach the embedding provider")
	assert.Zero(t, generator.calls)
}

func TestAnswerEmbeddingFailure(t *testing.T) {
	embedder := &fakeEmbedder{err: errors.New("provider unreachable")}
	generator := &fakeGenerator{}
	svc := newTestRAGService(&fakeChunkLister{}, embedder, generator, 3)

	result, err := svc.Answer(context.Background(), "valid question")

	require.Error(t, err)
	assert.Equal(t, KindEmbeddingFailure, KindOf(err))
	assert.Equal(t, StatusFailed, result.Status)
	assert.Zero(t, generator.calls)
}

func TestAnswerGenerationFailure(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{1, 0}}
	generator := &fakeGenerator{err: errors.New("model is down")}
	chunks := &fakeChunkLister{chunks: []store.Chunk{
		chunkWithEmbedding("c1", []float32{1, 0}),
	}}
	svc := newTestRAGService(chunks, embedder, generator, 3)

	result, err := svc.Answer(context.Background(), "valid question")

	require.Error(t, err)
	assert.Equal(t, KindGenerationFailure, KindOf(err))
	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, FailureMessage, result.Answer)
	// The outage reply and the domain refusal must stay distinguishable.
	assert.NotEqual(t, RefusalMessage, result.Answer)
}

func TestAnswerZeroVectorChunkRanksBelowRealOne(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{0.3, 0.7, 0.2}}
	generator := &fakeGenerator{response: "grounded answer"}
	chunks := &fakeChunkLister{chunks: []store.Chunk{
		chunkWithEmbedding("empty-fallback", utils.ZeroVector(3)),
		chunkWithEmbedding("well-formed", []float32{0.3, 0.7, 0.2}),
	}}
	svc := newTestRAGService(chunks, embedder, generator, 1)

	result, err := svc.Answer(context.Background(), "question")

	require.NoError(t, err)
	require.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, []string{"well-formed"}, result.SourceChunkIDs)
}

func TestAnswerPromptContainsRankedChunks(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{1, 0}}
	generator := &fakeGenerator{response: "answer"}
	chunks := &fakeChunkLister{chunks: []store.Chunk{
		{ID: "c1", Content: "dissociation is a common effect", Embedding: []float32{1, 0}},
		{ID: "c2", Content: "six infusions per course", Embedding: []float32{0.9, 0.1}},
	}}
	svc := newTestRAGService(chunks, embedder, generator, 2)

	result, err := svc.Answer(context.Background(), "what are the side effects?")

	require.NoError(t, err)
	require.Len(t, generator.prompts, 1)
	prompt := generator.prompts[0]
	assert.Contains(t, prompt, "1. dissociation is a common effect")
	assert.Contains(t, prompt, "2. six infusions per course")
	assert.Contains(t, prompt, "what are the side effects?")
	assert.Equal(t, []string{"c1", "c2"}, result.SourceChunkIDs)
}
