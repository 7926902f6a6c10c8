package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/novamindhealth/ketamine-assistant/internal/auth"
	"github.com/novamindhealth/ketamine-assistant/internal/config"
	"github.com/novamindhealth/ketamine-assistant/internal/core"
	"github.com/novamindhealth/ketamine-assistant/internal/store"
)

// maxUploadBytes caps admin document uploads at 10MB.
const maxUploadBytes = 10 << 20

// contextKey keeps request-context values private to this package.
type contextKey string

const (
	ctxKeyUserID         contextKey = "userID"
	ctxKeyExternalUserID contextKey = "externalUserID"
)

// UserStore is the slice of the store the auth handlers need.
type UserStore interface {
	GetUserByExternalID(externalUserID string) (*store.User, error)
	CreateUser(externalUserID, passwordHash string) (*store.User, error)
}

// AdminStore is the slice of the store the admin handlers need.
type AdminStore interface {
	ListDocuments(limit, offset int, sortField, sortDirection string) ([]store.KnowledgeDoc, error)
	GetDocumentByID(id string) (*store.KnowledgeDoc, error)
	DeleteDocument(id string) error
	ListAuditLogs(limit, offset int) ([]store.AuditLog, error)
}

type APIHandler struct {
	chatService *core.ChatService
	ingestion   *core.IngestionService
	users       UserStore
	admin       AdminStore
	logger      *zap.Logger
}

func NewAPIHandler(cs *core.ChatService, ingestion *core.IngestionService, users UserStore, admin AdminStore, logger *zap.Logger) *APIHandler {
	return &APIHandler{
		chatService: cs,
		ingestion:   ingestion,
		users:       users,
		admin:       admin,
		logger:      logger,
	}
}

// Middleware

func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		externalUserID, err := auth.ValidateJWT(tokenString)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		user, err := h.users.GetUserByExternalID(externalUserID)
		if err != nil {
			h.logger.Error("failed to resolve user identity",
				zap.String("external_user_id", externalUserID), zap.Error(err))
			http.Error(w, "Failed to process user identity", http.StatusInternalServerError)
			return
		}

		if user == nil {
			http.Error(w, "User not found", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyUserID, user.ID)
		ctx = context.WithValue(ctx, ctxKeyExternalUserID, user.ExternalUserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AdminKeyMiddleware gates the admin surface behind the configured API key.
func (h *APIHandler) AdminKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != config.AppConfig.AdminAPIKey {
			http.Error(w, "Invalid API key", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Auth handlers

type SignupRequest struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`
}

func (h *APIHandler) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if req.UserID == "" || req.Password == "" {
		http.Error(w, "User ID and password are required", http.StatusBadRequest)
		return
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("failed to hash password", zap.String("user_id", req.UserID), zap.Error(err))
		http.Error(w, "Failed to process password", http.StatusInternalServerError)
		return
	}

	user, err := h.users.CreateUser(req.UserID, hashedPassword)
	if err != nil {
		h.logger.Error("failed to create user", zap.String("user_id", req.UserID), zap.Error(err))
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user)
}

type LoginRequest struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if req.UserID == "" || req.Password == "" {
		http.Error(w, "User ID and password are required", http.StatusBadRequest)
		return
	}

	user, err := h.users.GetUserByExternalID(req.UserID)
	if err != nil {
		h.logger.Error("failed to look up user", zap.String("user_id", req.UserID), zap.Error(err))
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	if user == nil || !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := auth.GenerateJWT(req.UserID)
	if err != nil {
		h.logger.Error("failed to generate JWT", zap.String("user_id", req.UserID), zap.Error(err))
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(map[string]string{"token": token})
}

// Chat handlers

type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

func (h *APIHandler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	externalUserID, _ := r.Context().Value(ctxKeyExternalUserID).(string)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.chatService.HandleMessage(r.Context(), req.SessionID, externalUserID, req.Message)
	if err != nil {
		if errors.Is(err, core.ErrEmptyQuery) {
			http.Error(w, "Message cannot be empty", http.StatusBadRequest)
			return
		}

		switch core.KindOf(err) {
		case core.KindEmbeddingFailure, core.KindGenerationFailure:
			// The failure reply was persisted to the session; surface it with
			// a gateway error so clients can tell outage from refusal.
			h.logger.Error("chat pipeline failed", zap.Error(err))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadGateway)
			json.NewEncoder(w).Encode(result)
		default:
			h.logger.Error("chat request failed", zap.Error(err))
			http.Error(w, "Failed to process message", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (h *APIHandler) SessionMessagesHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	limit := queryInt(r, "limit", 100)
	offset := queryInt(r, "offset", 0)

	messages, err := h.chatService.GetSessionMessages(sessionID, limit, offset)
	if err != nil {
		if errors.Is(err, core.ErrSessionNotFound) {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to load session messages",
			zap.String("session_id", sessionID), zap.Error(err))
		http.Error(w, "Failed to load messages", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(messages)
}

// Admin handlers

func (h *APIHandler) UploadDocumentHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "File too large or malformed upload (max 10MB)", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "A \"file\" form field is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Failed to read uploaded file", http.StatusBadRequest)
		return
	}

	doc, err := h.ingestion.ProcessUpload(r.Context(), header.Filename, data, "admin")
	if err != nil {
		switch core.KindOf(err) {
		case core.KindInvalidInput:
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			h.logger.Error("document ingestion failed",
				zap.String("filename", header.Filename), zap.Error(err))
			http.Error(w, "Error processing document", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(doc)
}

func (h *APIHandler) ListDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)
	offset := queryInt(r, "offset", 0)

	// sort is "field" or "field:desc"
	sortField, sortDirection := "", "asc"
	if sortParam := r.URL.Query().Get("sort"); sortParam != "" {
		parts := strings.SplitN(sortParam, ":", 2)
		sortField = parts[0]
		if len(parts) > 1 {
			sortDirection = parts[1]
		}
	}

	docs, err := h.admin.ListDocuments(limit, offset, sortField, sortDirection)
	if err != nil {
		h.logger.Error("failed to list documents", zap.Error(err))
		http.Error(w, "Failed to list documents", http.StatusInternalServerError)
		return
	}
	if docs == nil {
		docs = []store.KnowledgeDoc{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(docs)
}

func (h *APIHandler) DeleteDocumentHandler(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")

	doc, err := h.admin.GetDocumentByID(docID)
	if err != nil {
		h.logger.Error("failed to load document", zap.String("doc_id", docID), zap.Error(err))
		http.Error(w, "Failed to delete document", http.StatusInternalServerError)
		return
	}
	if doc == nil {
		http.Error(w, "Document not found", http.StatusNotFound)
		return
	}

	if err := h.admin.DeleteDocument(docID); err != nil {
		h.logger.Error("failed to delete document", zap.String("doc_id", docID), zap.Error(err))
		http.Error(w, "Failed to delete document", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) ListAuditLogsHandler(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	logs, err := h.admin.ListAuditLogs(limit, offset)
	if err != nil {
		h.logger.Error("failed to list audit logs", zap.Error(err))
		http.Error(w, "Failed to list audit logs", http.StatusInternalServerError)
		return
	}
	if logs == nil {
		logs = []store.AuditLog{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(logs)
}

func queryInt(r *http.Request, key string, defaultValue int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return defaultValue
}
