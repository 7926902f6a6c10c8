package core

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/novamindhealth/ketamine-assistant/internal/store"
)

// ChatStore is the slice of the store the chat service needs.
type ChatStore interface {
	GetSession(id string) (*store.ChatSession, error)
	CreateSession(userIdentifier string) (*store.ChatSession, error)
	TouchSession(id string) error
	CreateMessage(msg *store.ChatMessage) error
	GetMessagesBySession(sessionID string, limit, offset int) ([]store.ChatMessage, error)
}

// ChatResult is what the chat endpoint returns for one user message.
type ChatResult struct {
	Answer         string   `json:"answer"`
	SessionID      string   `json:"session_id"`
	SourceChunkIDs []string `json:"source_chunk_ids"`
	Status         Status   `json:"status"`
}

// ChatService manages session lifecycle and conversation history around the
// RAG pipeline. Every terminal pipeline state — completed, refused, or failed
// — is preserved in the session as an assistant message.
type ChatService struct {
	store  ChatStore
	rag    *RAGService
	logger *zap.Logger
}

func NewChatService(st ChatStore, rag *RAGService, logger *zap.Logger) *ChatService {
	return &ChatService{store: st, rag: rag, logger: logger}
}

// HandleMessage runs one user message through the pipeline. A session is
// created lazily when sessionID is empty or unknown. The returned error, if
// any, is the pipeline failure; the ChatResult is still valid and its answer
// has been persisted.
func (s *ChatService) HandleMessage(ctx context.Context, sessionID, userIdentifier, message string) (*ChatResult, error) {
	if strings.TrimSpace(message) == "" {
		// No session side effects for invalid input.
		return nil, ErrEmptyQuery
	}

	session, err := s.resolveSession(sessionID, userIdentifier)
	if err != nil {
		return nil, err
	}

	userMsg := &store.ChatMessage{
		SessionID: session.ID,
		Role:      store.RoleUser,
		Content:   message,
	}
	if err := s.store.CreateMessage(userMsg); err != nil {
		return nil, fmt.Errorf("failed to store user message: %w", err)
	}

	result, ragErr := s.rag.Answer(ctx, message)

	assistantMsg := &store.ChatMessage{
		SessionID:      session.ID,
		Role:           store.RoleAssistant,
		Content:        result.Answer,
		SourceChunkIDs: result.SourceChunkIDs,
	}
	if err := s.store.CreateMessage(assistantMsg); err != nil {
		// The user already saw (or will see) the reply; history loss is worth
		// surfacing but not worth failing the request over.
		s.logger.Error("failed to store assistant message",
			zap.String("session_id", session.ID), zap.Error(err))
	}

	if err := s.store.TouchSession(session.ID); err != nil {
		s.logger.Warn("failed to update session activity",
			zap.String("session_id", session.ID), zap.Error(err))
	}

	return &ChatResult{
		Answer:         result.Answer,
		SessionID:      session.ID,
		SourceChunkIDs: result.SourceChunkIDs,
		Status:         result.Status,
	}, ragErr
}

// resolveSession loads the requested session, falling back to creating a new
// one when no valid session id is supplied.
func (s *ChatService) resolveSession(sessionID, userIdentifier string) (*store.ChatSession, error) {
	if sessionID != "" {
		session, err := s.store.GetSession(sessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to load session: %w", err)
		}
		if session != nil {
			return session, nil
		}
		s.logger.Info("unknown session id supplied, creating a new session",
			zap.String("requested_session_id", sessionID))
	}

	session, err := s.store.CreateSession(userIdentifier)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// GetSessionMessages returns a session's conversation history in order.
func (s *ChatService) GetSessionMessages(sessionID string, limit, offset int) ([]store.ChatMessage, error) {
	session, err := s.store.GetSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return s.store.GetMessagesBySession(sessionID, limit, offset)
}
