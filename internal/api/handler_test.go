package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/RichardoC/threadchat/internal/db"
	"github.com/RichardoC/threadchat/internal/llm"
	"github.com/RichardoC/threadchat/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type completerFunc func(ctx context.Context, history []models.ChatTurn) (string, error)

func (f completerFunc) Complete(ctx context.Context, history []models.ChatTurn) (string, error) {
	return f(ctx, history)
}

type testServer struct {
	store  *db.MemoryStore
	router http.Handler
}

func newTestServer(t *testing.T, completer llm.Completer) *testServer {
	t.Helper()
	store := db.NewMemory()
	logger := zap.NewNop()
	svc := llm.New(store, completer, logger)
	h := NewHandler(store, svc, logger)
	return &testServer{
		store:  store,
		router: NewRouter(h, logger, RouterConfig{Metrics: promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})}),
	}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v), rr.Body.String())
	return v
}

func hiThere(context.Context, []models.ChatTurn) (string, error) {
	return "Hi there", nil
}

func TestCreateAndListConversations(t *testing.T) {
	s := newTestServer(t, completerFunc(hiThere))

	rr := s.do(t, http.MethodPost, "/api/conversations", `{"title":"New Chat"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	created := decode[models.Conversation](t, rr)
	assert.Equal(t, "New Chat", created.Title)
	assert.NotEmpty(t, created.ID)

	rr = s.do(t, http.MethodGet, "/api/conversations", "")
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[[]models.Conversation](t, rr)
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)
}

func TestListConversationsEmptyIsArray(t *testing.T) {
	s := newTestServer(t, completerFunc(hiThere))

	rr := s.do(t, http.MethodGet, "/api/conversations", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestCreateConversationInvalidBody(t *testing.T) {
	s := newTestServer(t, completerFunc(hiThere))

	for _, body := range []string{`{oops`, `{}`, `{"title": 7}`} {
		rr := s.do(t, http.MethodPost, "/api/conversations", body)
		assert.Equal(t, http.StatusBadRequest, rr.Code, body)
		resp := decode[ErrorResponse](t, rr)
		assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
		assert.NotEmpty(t, resp.Error.RequestID)
	}
}

func TestSendMessageRoundTrip(t *testing.T) {
	s := newTestServer(t, completerFunc(hiThere))
	conv, _ := s.store.CreateConversation("New Chat")

	rr := s.do(t, http.MethodPost, "/api/conversations/"+conv.ID+"/messages", `{"content":"Hello"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]models.Message
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, "Hello", body["userMessage"].Content)
	assert.Equal(t, models.RoleUser, body["userMessage"].Role)
	assert.Equal(t, "Hi there", body["aiMessage"].Content)
	assert.Equal(t, conv.ID, body["aiMessage"].ConversationID)

	rr = s.do(t, http.MethodGet, "/api/conversations/"+conv.ID+"/messages", "")
	require.Equal(t, http.StatusOK, rr.Code)
	msgs := decode[[]models.Message](t, rr)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Hello", msgs[0].Content)
	assert.Equal(t, "Hi there", msgs[1].Content)
}

func TestSendMessageStatusCodes(t *testing.T) {
	failing := completerFunc(func(context.Context, []models.ChatTurn) (string, error) {
		return "", errors.New("upstream down")
	})

	tests := []struct {
		name      string
		completer llm.Completer
		target    string
		body      string
		wantCode  int
		wantError string
	}{
		{"unknown conversation", completerFunc(hiThere), "xyz", `{"content":"Hello"}`, http.StatusNotFound, "NOT_FOUND"},
		{"malformed body", completerFunc(hiThere), "", `{nope`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"missing content", completerFunc(hiThere), "", `{}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"blank content", completerFunc(hiThere), "", `{"content":"  "}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"provider failure", failing, "", `{"content":"Hello"}`, http.StatusInternalServerError, "PROVIDER_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.completer)
			target := tt.target
			if target == "" {
				conv, _ := s.store.CreateConversation("New Chat")
				target = conv.ID
			}

			rr := s.do(t, http.MethodPost, "/api/conversations/"+target+"/messages", tt.body)
			assert.Equal(t, tt.wantCode, rr.Code)
			resp := decode[ErrorResponse](t, rr)
			assert.Equal(t, tt.wantError, resp.Error.Code)
			assert.NotEmpty(t, resp.Error.Message)
		})
	}
}

func TestGetMessagesUnknownConversation(t *testing.T) {
	s := newTestServer(t, completerFunc(hiThere))

	rr := s.do(t, http.MethodGet, "/api/conversations/xyz/messages", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestUpdateConversation(t *testing.T) {
	s := newTestServer(t, completerFunc(hiThere))
	conv, _ := s.store.CreateConversation("New Chat")

	rr := s.do(t, http.MethodPatch, "/api/conversations/"+conv.ID, `{"title":"Renamed"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	updated := decode[models.Conversation](t, rr)
	assert.Equal(t, "Renamed", updated.Title)

	for _, body := range []string{`{}`, `{"title":""}`, `{"title":3}`, `garbage`} {
		rr = s.do(t, http.MethodPatch, "/api/conversations/"+conv.ID, body)
		assert.Equal(t, http.StatusBadRequest, rr.Code, body)
	}

	rr = s.do(t, http.MethodPatch, "/api/conversations/xyz", `{"title":"Renamed"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDeleteConversation(t *testing.T) {
	s := newTestServer(t, completerFunc(hiThere))
	conv, _ := s.store.CreateConversation("New Chat")
	_, err := s.store.CreateMessage(conv.ID, models.RoleUser, "Hello")
	require.NoError(t, err)

	rr := s.do(t, http.MethodDelete, "/api/conversations/"+conv.ID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"success":true}`, rr.Body.String())

	msgs, err := s.store.ListMessages(conv.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	rr = s.do(t, http.MethodDelete, "/api/conversations/"+conv.ID, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	s := newTestServer(t, completerFunc(hiThere))

	rr := s.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())

	rr = s.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}
