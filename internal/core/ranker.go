package core

import (
	"sort"

	"github.com/novamindhealth/ketamine-assistant/internal/store"
	"github.com/novamindhealth/ketamine-assistant/internal/utils"
)

// ScoredChunk pairs a stored chunk with its cosine similarity to the query.
type ScoredChunk struct {
	Chunk store.Chunk
	Score float64
}

// RankChunks scores every candidate against the query embedding and returns
// the top-K by descending cosine similarity. Ties keep the candidates'
// original (storage) order. Candidates whose embedding is missing or has a
// different dimensionality are skipped; a zero-vector candidate scores 0 and
// therefore ranks at the bottom against any non-zero query.
func RankChunks(query []float32, candidates []store.Chunk, topK int) []ScoredChunk {
	if topK <= 0 || len(candidates) == 0 {
		return []ScoredChunk{}
	}

	scored := make([]ScoredChunk, 0, len(candidates))
	for _, chunk := range candidates {
		if len(chunk.Embedding) == 0 || len(chunk.Embedding) != len(query) {
			continue
		}
		similarity, err := utils.CosineSimilarity(query, chunk.Embedding)
		if err != nil {
			continue
		}
		scored = append(scored, ScoredChunk{Chunk: chunk, Score: similarity})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored
}
