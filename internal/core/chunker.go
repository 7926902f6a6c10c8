package core

import "strings"

// WordChunker splits document text into overlapping word windows. Overlap
// keeps sentences that straddle a boundary retrievable from both sides.
type WordChunker struct {
	wordsPerChunk int
	overlapWords  int
}

func NewWordChunker(wordsPerChunk, overlapWords int) *WordChunker {
	if wordsPerChunk <= 0 {
		wordsPerChunk = 180
	}
	// Overlap must stay strictly smaller than the window or the next window
	// start would not advance.
	if overlapWords < 0 || overlapWords >= wordsPerChunk {
		overlapWords = wordsPerChunk / 6
	}
	return &WordChunker{
		wordsPerChunk: wordsPerChunk,
		overlapWords:  overlapWords,
	}
}

// Chunk splits text into ordered chunk strings. Whitespace-only input yields
// no chunks.
func (c *WordChunker) Chunk(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var chunks []string
	i := 0
	for i < len(words) {
		end := i + c.wordsPerChunk
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[i:end], " "))
		if end == len(words) {
			break
		}
		i = end - c.overlapWords
	}
	return chunks
}
