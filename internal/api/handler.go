package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/RichardoC/threadchat/internal/apperr"
	"github.com/RichardoC/threadchat/internal/db"
	"github.com/RichardoC/threadchat/internal/llm"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Sender runs one message exchange.
type Sender interface {
	SendMessage(ctx context.Context, conversationID, content string) (*llm.Exchange, error)
}

type Handler struct {
	store  db.Store
	chat   Sender
	logger *zap.Logger
}

func NewHandler(store db.Store, chat Sender, logger *zap.Logger) *Handler {
	return &Handler{
		store:  store,
		chat:   chat,
		logger: logger,
	}
}

type CreateConversationRequest struct {
	Title *string `json:"title"`
}

type UpdateConversationRequest struct {
	Title *string `json:"title"`
}

type SendMessageRequest struct {
	Content *string `json:"content"`
}

type DeleteResponse struct {
	Success bool `json:"success"`
}

type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}

func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	conversations, err := h.store.ListConversations()
	if err != nil {
		h.fail(w, r, apperr.Wrap(apperr.Internal, "Failed to fetch conversations", err))
		return
	}

	h.logger.Debug("Retrieved conversations",
		zap.Int("count", len(conversations)),
		zap.String("path", r.URL.Path))

	writeJSON(w, http.StatusOK, conversations)
}

func (h *Handler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	var req CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, r, apperr.Wrap(apperr.Validation, "Invalid request body", err))
		return
	}
	if req.Title == nil {
		h.fail(w, r, apperr.New(apperr.Validation, "Title is required"))
		return
	}

	conversation, err := h.store.CreateConversation(*req.Title)
	if err != nil {
		h.fail(w, r, apperr.Wrap(apperr.Internal, "Failed to create conversation", err))
		return
	}

	writeJSON(w, http.StatusOK, conversation)
}

func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	conversation, err := h.store.GetConversation(id)
	if err != nil {
		h.fail(w, r, apperr.Wrap(apperr.Internal, "Failed to fetch messages", err))
		return
	}
	if conversation == nil {
		h.fail(w, r, apperr.New(apperr.NotFound, "Conversation not found"))
		return
	}

	messages, err := h.store.ListMessages(id)
	if err != nil {
		h.fail(w, r, apperr.Wrap(apperr.Internal, "Failed to fetch messages", err))
		return
	}

	writeJSON(w, http.StatusOK, messages)
}

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, r, apperr.Wrap(apperr.Validation, "Invalid request body", err))
		return
	}

	var content string
	if req.Content != nil {
		content = *req.Content
	}

	exchange, err := h.chat.SendMessage(r.Context(), id, content)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, exchange)
}

func (h *Handler) UpdateConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Title == nil || *req.Title == "" {
		h.fail(w, r, apperr.New(apperr.Validation, "Title is required"))
		return
	}

	conversation, err := h.store.UpdateConversationTitle(id, *req.Title)
	if err != nil {
		h.fail(w, r, apperr.Wrap(apperr.Internal, "Failed to update conversation", err))
		return
	}
	if conversation == nil {
		h.fail(w, r, apperr.New(apperr.NotFound, "Conversation not found"))
		return
	}

	writeJSON(w, http.StatusOK, conversation)
}

func (h *Handler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	deleted, err := h.store.DeleteConversation(id)
	if err != nil {
		h.fail(w, r, apperr.Wrap(apperr.Internal, "Failed to delete conversation", err))
		return
	}
	if !deleted {
		h.fail(w, r, apperr.New(apperr.NotFound, "Conversation not found"))
		return
	}

	writeJSON(w, http.StatusOK, DeleteResponse{Success: true})
}

// fail maps err to a status code and writes the structured error body.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL_ERROR"
	switch apperr.KindOf(err) {
	case apperr.NotFound:
		status, code = http.StatusNotFound, "NOT_FOUND"
	case apperr.Validation:
		status, code = http.StatusBadRequest, "VALIDATION_ERROR"
	case apperr.Provider:
		code = "PROVIDER_ERROR"
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path))
	}

	writeJSON(w, status, ErrorResponse{Error: APIError{
		Code:      code,
		Message:   apperr.MessageOf(err),
		RequestID: middleware.GetReqID(r.Context()),
	}})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
