package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/quibitai/quibit-rag/internal/models"
)

// MemoryStorage is an in-process Storage used for local runs and tests.
type MemoryStorage struct {
	mu        sync.RWMutex
	chats     map[string]*models.Chat
	messages  map[string][]*models.Message // keyed by chat ID, append order
	entities  map[string][]*models.ConversationEntity
	summaries map[string][]*models.ConversationSummary
	files     map[string][]*models.FileReference
	documents map[string]*models.Document
	nextID    int64
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		chats:     make(map[string]*models.Chat),
		messages:  make(map[string][]*models.Message),
		entities:  make(map[string][]*models.ConversationEntity),
		summaries: make(map[string][]*models.ConversationSummary),
		files:     make(map[string][]*models.FileReference),
		documents: make(map[string]*models.Document),
	}
}

func (s *MemoryStorage) CreateChat(ctx context.Context, chat *models.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	chat.CreatedAt = now
	chat.UpdatedAt = now
	copied := *chat
	s.chats[chat.ID] = &copied
	return nil
}

func (s *MemoryStorage) GetChat(ctx context.Context, chatID, userID string) (*models.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chat, exists := s.chats[chatID]
	if !exists || chat.UserID != userID {
		return nil, nil
	}
	copied := *chat
	return &copied, nil
}

func (s *MemoryStorage) ListChats(ctx context.Context, userID, clientID string) ([]*models.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var chats []*models.Chat
	for _, chat := range s.chats {
		if chat.UserID == userID && chat.ClientID == clientID {
			copied := *chat
			chats = append(chats, &copied)
		}
	}
	sort.Slice(chats, func(i, j int) bool { return chats[i].UpdatedAt.After(chats[j].UpdatedAt) })
	return chats, nil
}

func (s *MemoryStorage) UpdateChatTitle(ctx context.Context, chatID, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat, exists := s.chats[chatID]
	if !exists {
		return errors.New("chat not found")
	}
	chat.Title = title
	chat.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStorage) CreateMessage(ctx context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	copied := *msg
	s.messages[msg.ChatID] = append(s.messages[msg.ChatID], &copied)
	if chat, exists := s.chats[msg.ChatID]; exists {
		chat.UpdatedAt = time.Now()
	}
	return nil
}

func (s *MemoryStorage) GetRecentMessages(ctx context.Context, chatID string, limit int) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.messages[chatID]
	start := len(all) - limit
	if start < 0 {
		start = 0
	}

	// Most recent first, matching the SQL implementation.
	var msgs []*models.Message
	for i := len(all) - 1; i >= start; i-- {
		copied := *all[i]
		msgs = append(msgs, &copied)
	}
	return msgs, nil
}

func (s *MemoryStorage) ListMessages(ctx context.Context, chatID string) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.messages[chatID]
	msgs := make([]*models.Message, 0, len(all))
	for _, msg := range all {
		copied := *msg
		msgs = append(msgs, &copied)
	}
	return msgs, nil
}

func (s *MemoryStorage) CountMessages(ctx context.Context, chatID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages[chatID]), nil
}

func (s *MemoryStorage) UpsertEntity(ctx context.Context, entity *models.ConversationEntity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := entity.ChatID
	for _, existing := range s.entities[key] {
		if existing.UserID == entity.UserID && existing.Type == entity.Type && existing.Value == entity.Value {
			return nil
		}
	}

	s.nextID++
	copied := *entity
	copied.ID = s.nextID
	copied.CreatedAt = time.Now()
	s.entities[key] = append(s.entities[key], &copied)
	return nil
}

func (s *MemoryStorage) ListEntities(ctx context.Context, chatID, userID string) ([]*models.ConversationEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entities []*models.ConversationEntity
	for _, e := range s.entities[chatID] {
		if e.UserID == userID {
			copied := *e
			entities = append(entities, &copied)
		}
	}
	return entities, nil
}

func (s *MemoryStorage) SaveSummary(ctx context.Context, summary *models.ConversationSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	summary.ID = s.nextID
	summary.CreatedAt = time.Now()
	copied := *summary
	s.summaries[summary.ChatID] = append(s.summaries[summary.ChatID], &copied)
	return nil
}

func (s *MemoryStorage) GetLatestSummary(ctx context.Context, chatID, userID string) (*models.ConversationSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.summaries[chatID]
	for i := len(rows) - 1; i >= 0; i-- {
		if rows[i].UserID == userID {
			copied := *rows[i]
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *MemoryStorage) AddFileReference(ctx context.Context, ref *models.FileReference) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	ref.ID = s.nextID
	ref.CreatedAt = time.Now()
	copied := *ref
	s.files[ref.ChatID] = append(s.files[ref.ChatID], &copied)
	return nil
}

func (s *MemoryStorage) ListFileReferences(ctx context.Context, chatID, userID string) ([]*models.FileReference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var refs []*models.FileReference
	for _, ref := range s.files[chatID] {
		if ref.UserID == userID {
			copied := *ref
			refs = append(refs, &copied)
		}
	}
	return refs, nil
}

func (s *MemoryStorage) CreateDocument(ctx context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc.CreatedAt = time.Now()
	copied := *doc
	s.documents[doc.ID] = &copied
	return nil
}

func (s *MemoryStorage) GetDocument(ctx context.Context, docID, userID string) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, exists := s.documents[docID]
	if !exists || doc.UserID != userID {
		return nil, nil
	}
	copied := *doc
	return &copied, nil
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
