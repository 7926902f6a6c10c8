package core

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/novamindhealth/ketamine-assistant/internal/llm"
)

// Classification is the relevance decision for an uploaded document.
type Classification struct {
	IsRelevant bool
	Confidence float64
	Reason     string
}

// Classifier asks the generation model whether a document sample belongs to
// the knowledge domain.
type Classifier struct {
	generator llm.Generator
	logger    *zap.Logger
}

func NewClassifier(generator llm.Generator, logger *zap.Logger) *Classifier {
	return &Classifier{generator: generator, logger: logger}
}

// ClassifyRelevance decides whether the sampled text is about ketamine
// therapy. A failed model call classifies the document as not relevant: an
// unclassifiable document must never enter the corpus.
func (c *Classifier) ClassifyRelevance(ctx context.Context, textSample string) Classification {
	prompt := fmt.Sprintf("Is this text about Ketamine Therapy? Answer with 'Yes' or 'No' only.\n\n%s", textSample)

	response, err := c.generator.Complete(ctx, prompt, llm.CompleteOptions{
		MaxTokens:   10,
		Temperature: 0.1,
	})
	if err != nil {
		c.logger.Warn("relevance classification call failed, rejecting document", zap.Error(err))
		return Classification{
			IsRelevant: false,
			Confidence: 0.0,
			Reason:     fmt.Sprintf("Classification failed: %v", err),
		}
	}

	lower := strings.ToLower(response)
	isRelevant := strings.Contains(lower, "yes") ||
		strings.Contains(lower, "ketamine") ||
		strings.Contains(lower, "therapy")

	confidence := 0.2
	if isRelevant {
		confidence = 0.8
	}

	reason := response
	if len(reason) > 200 {
		reason = reason[:200]
	}

	return Classification{IsRelevant: isRelevant, Confidence: confidence, Reason: reason}
}
