package core

import (
	"fmt"
	"strings"
)

const systemInstruction = "You are a medical information assistant specializing ONLY in ketamine therapy. " +
	"You must provide educational information based on the provided context. " +
	"Do not diagnose conditions, prescribe treatments, or provide medical advice beyond the scope of ketamine therapy. " +
	"If the context doesn't contain relevant information, politely explain that you don't have sufficient information to answer the question."

// BuildPrompt assembles the grounding prompt sent to the generation model:
// the domain-restriction instruction, the retrieved chunks numbered in
// ranking order, the literal user question, and the answer cue.
func BuildPrompt(query string, chunks []ScoredChunk) string {
	var sb strings.Builder

	sb.WriteString(systemInstruction)
	sb.WriteString("\n\n")

	if len(chunks) > 0 {
		sb.WriteString("Relevant Context:\n")
		for i, sc := range chunks {
			sb.WriteString(fmt.Sprintf("%d. %s\n\n", i+1, sc.Chunk.Content))
		}
	} else {
		sb.WriteString("No relevant context found in the knowledge base.\n")
	}

	sb.WriteString("\nUser Question: ")
	sb.WriteString(query)
	sb.WriteString("\n\nAssistant:")

	return sb.String()
}
