package db

import (
	"sort"
	"sync"

	"github.com/RichardoC/threadchat/internal/models"
	"github.com/google/uuid"
)

type storedConversation struct {
	conv     models.Conversation
	revision uint64
}

type storedMessage struct {
	msg models.Message
	seq uint64
}

// MemoryStore keeps everything in process memory.
type MemoryStore struct {
	mu             sync.RWMutex
	opts           options
	conversations  map[string]*storedConversation
	messages       map[string]*storedMessage
	// byConversation indexes message ids per conversation in insertion order.
	byConversation map[string][]string
	seq            uint64
}

func NewMemory(opts ...Option) *MemoryStore {
	return &MemoryStore{
		opts:           buildOptions(opts),
		conversations:  make(map[string]*storedConversation),
		messages:       make(map[string]*storedMessage),
		byConversation: make(map[string][]string),
	}
}

func (s *MemoryStore) next() uint64 {
	s.seq++
	return s.seq
}

func (s *MemoryStore) CreateConversation(title string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.now()
	sc := &storedConversation{
		conv: models.Conversation{
			ID:        uuid.NewString(),
			Title:     title,
			CreatedAt: now,
			UpdatedAt: now,
		},
		revision: s.next(),
	}
	s.conversations[sc.conv.ID] = sc

	conv := sc.conv
	return &conv, nil
}

func (s *MemoryStore) GetConversation(id string) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sc, ok := s.conversations[id]
	if !ok {
		return nil, nil
	}
	conv := sc.conv
	return &conv, nil
}

func (s *MemoryStore) ListConversations() ([]models.Conversation, error) {
	s.mu.RLock()
	stored := make([]*storedConversation, 0, len(s.conversations))
	for _, sc := range s.conversations {
		stored = append(stored, &storedConversation{conv: sc.conv, revision: sc.revision})
	}
	s.mu.RUnlock()

	sort.Slice(stored, func(i, j int) bool {
		a, b := stored[i], stored[j]
		if !a.conv.UpdatedAt.Equal(b.conv.UpdatedAt) {
			return a.conv.UpdatedAt.After(b.conv.UpdatedAt)
		}
		return a.revision > b.revision
	})

	conversations := make([]models.Conversation, 0, len(stored))
	for _, sc := range stored {
		conversations = append(conversations, sc.conv)
	}
	return conversations, nil
}

func (s *MemoryStore) UpdateConversationTitle(id, title string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, ok := s.conversations[id]
	if !ok {
		return nil, nil
	}
	sc.conv.Title = title
	sc.conv.UpdatedAt = s.opts.now()
	sc.revision = s.next()

	conv := sc.conv
	return &conv, nil
}

func (s *MemoryStore) DeleteConversation(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, msgID := range s.byConversation[id] {
		delete(s.messages, msgID)
	}
	delete(s.byConversation, id)

	if _, ok := s.conversations[id]; !ok {
		return false, nil
	}
	delete(s.conversations, id)
	return true, nil
}

func (s *MemoryStore) CreateMessage(conversationID string, role models.Role, content string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.now()
	sm := &storedMessage{
		msg: models.Message{
			ID:             uuid.NewString(),
			ConversationID: conversationID,
			Role:           role,
			Content:        content,
			CreatedAt:      now,
		},
		seq: s.next(),
	}
	s.messages[sm.msg.ID] = sm
	s.byConversation[conversationID] = append(s.byConversation[conversationID], sm.msg.ID)

	if sc, ok := s.conversations[conversationID]; ok {
		sc.conv.UpdatedAt = now
		sc.revision = sm.seq
	}

	msg := sm.msg
	return &msg, nil
}

func (s *MemoryStore) ListMessages(conversationID string) ([]models.Message, error) {
	s.mu.RLock()
	ids := s.byConversation[conversationID]
	messages := make([]models.Message, 0, len(ids))
	for _, id := range ids {
		messages = append(messages, s.messages[id].msg)
	}
	s.mu.RUnlock()

	// The index is already in insertion order, so a stable sort keeps ties.
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
	return messages, nil
}

func (s *MemoryStore) Close() error { return nil }
