package llm

import (
	"context"
	"strings"
	"time"

	"github.com/RichardoC/threadchat/internal/apperr"
	"github.com/RichardoC/threadchat/internal/db"
	"github.com/RichardoC/threadchat/internal/metrics"
	"github.com/RichardoC/threadchat/internal/models"
	"go.uber.org/zap"
)

// PlaceholderReply is stored when the provider succeeds with empty text.
const PlaceholderReply = "I apologize, but I couldn't generate a response."

const defaultProviderTimeout = 60 * time.Second

// Exchange is the result of one successful send.
type Exchange struct {
	UserMessage *models.Message `json:"userMessage"`
	AIMessage   *models.Message `json:"aiMessage"`
}

type Service struct {
	store     db.Store
	completer Completer
	logger    *zap.Logger
	metrics   *metrics.Exchange
	timeout   time.Duration
	locks     *conversationLocks
}

type Option func(*Service)

// WithProviderTimeout bounds each provider call. Zero disables the bound.
func WithProviderTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.timeout = d
	}
}

func WithMetrics(m *metrics.Exchange) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(store db.Store, completer Completer, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:     store,
		completer: completer,
		logger:    logger,
		timeout:   defaultProviderTimeout,
		locks:     newConversationLocks(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// SendMessage stores content as a user message, asks the provider for a reply
// over the full history and stores that reply. If the provider fails the user
// message stays persisted and a Provider error is returned.
//
// Sends to the same conversation are serialized.
func (s *Service) SendMessage(ctx context.Context, conversationID, content string) (ex *Exchange, err error) {
	start := time.Now()
	defer func() {
		s.record(conversationID, start, err)
	}()

	unlock := s.locks.lock(conversationID)
	defer unlock()

	conv, err := s.store.GetConversation(conversationID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "Failed to load conversation", err)
	}
	if conv == nil {
		return nil, apperr.New(apperr.NotFound, "Conversation not found")
	}

	if strings.TrimSpace(content) == "" {
		return nil, apperr.New(apperr.Validation, "Content is required")
	}

	userMsg, err := s.store.CreateMessage(conv.ID, models.RoleUser, content)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "Failed to save message", err)
	}

	history, err := s.store.ListMessages(conv.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "Failed to get conversation history", err)
	}

	reply, err := s.complete(ctx, models.Turns(history))
	if err != nil {
		return nil, apperr.Wrap(apperr.Provider, "Failed to generate response", err)
	}
	if reply == "" {
		s.metrics.ObservePlaceholder()
		reply = PlaceholderReply
	}

	aiMsg, err := s.store.CreateMessage(conv.ID, models.RoleAssistant, reply)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "Failed to save message", err)
	}

	return &Exchange{UserMessage: userMsg, AIMessage: aiMsg}, nil
}

// complete detaches the provider call from the caller's cancellation: a client
// that stops waiting does not abort the request in flight.
func (s *Service) complete(ctx context.Context, history []models.ChatTurn) (string, error) {
	ctx = context.WithoutCancel(ctx)
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := s.completer.Complete(ctx, history)
	s.metrics.ObserveProvider(time.Since(start))
	return reply, err
}

func (s *Service) record(conversationID string, start time.Time, err error) {
	fields := []zap.Field{
		zap.String("conversationID", conversationID),
		zap.Duration("elapsed", time.Since(start)),
	}

	if err == nil {
		s.metrics.Observe(metrics.OutcomeOK)
		s.logger.Info("message exchange completed", fields...)
		return
	}

	fields = append(fields, zap.Error(err))
	switch apperr.KindOf(err) {
	case apperr.NotFound:
		s.metrics.Observe(metrics.OutcomeNotFound)
		s.logger.Warn("message exchange rejected", fields...)
	case apperr.Validation:
		s.metrics.Observe(metrics.OutcomeValidation)
		s.logger.Warn("message exchange rejected", fields...)
	case apperr.Provider:
		s.metrics.Observe(metrics.OutcomeProvider)
		s.logger.Error("provider call failed, user message kept", fields...)
	default:
		s.metrics.Observe(metrics.OutcomeInternal)
		s.logger.Error("message exchange failed", fields...)
	}
}
