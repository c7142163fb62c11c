package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/quibitai/quibit-rag/internal/models"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	UseInMemory bool
}

type PostgresStorage struct {
	db *sql.DB
}

func NewPostgresStorage(config DatabaseConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "connect to database")
	}

	storage := &PostgresStorage{db: db}
	if err := storage.initializeSchema(); err != nil {
		return nil, errors.Wrap(err, "initialize schema")
	}

	return storage, nil
}

func (s *PostgresStorage) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return errors.Wrap(err, "read migrations file")
	}

	if _, err := s.db.Exec(string(migrationSQL)); err != nil {
		return errors.Wrap(err, "execute migrations")
	}

	return nil
}

func (s *PostgresStorage) CreateChat(ctx context.Context, chat *models.Chat) error {
	query := `
		INSERT INTO chats (id, user_id, client_id, title)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`

	err := s.db.QueryRowContext(ctx, query,
		chat.ID, chat.UserID, chat.ClientID, chat.Title,
	).Scan(&chat.CreatedAt, &chat.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, "create chat")
	}
	return nil
}

func (s *PostgresStorage) GetChat(ctx context.Context, chatID, userID string) (*models.Chat, error) {
	query := `
		SELECT id, user_id, client_id, title, created_at, updated_at
		FROM chats
		WHERE id = $1 AND user_id = $2`

	chat := &models.Chat{}
	err := s.db.QueryRowContext(ctx, query, chatID, userID).Scan(
		&chat.ID, &chat.UserID, &chat.ClientID, &chat.Title, &chat.CreatedAt, &chat.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get chat")
	}
	return chat, nil
}

func (s *PostgresStorage) ListChats(ctx context.Context, userID, clientID string) ([]*models.Chat, error) {
	query := `
		SELECT id, user_id, client_id, title, created_at, updated_at
		FROM chats
		WHERE user_id = $1 AND client_id = $2
		ORDER BY updated_at DESC`

	rows, err := s.db.QueryContext(ctx, query, userID, clientID)
	if err != nil {
		return nil, errors.Wrap(err, "list chats")
	}
	defer rows.Close()

	var chats []*models.Chat
	for rows.Next() {
		chat := &models.Chat{}
		if err := rows.Scan(&chat.ID, &chat.UserID, &chat.ClientID, &chat.Title, &chat.CreatedAt, &chat.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "scan chat")
		}
		chats = append(chats, chat)
	}
	return chats, rows.Err()
}

func (s *PostgresStorage) UpdateChatTitle(ctx context.Context, chatID, title string) error {
	query := `UPDATE chats SET title = $1, updated_at = $2 WHERE id = $3`

	result, err := s.db.ExecContext(ctx, query, title, time.Now(), chatID)
	if err != nil {
		return errors.Wrap(err, "update chat title")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if affected == 0 {
		return errors.New("chat not found")
	}
	return nil
}

// CreateMessage appends a message and touches the parent chat's updated_at
// in the same transaction, so chat ordering never drifts from its rows.
func (s *PostgresStorage) CreateMessage(ctx context.Context, msg *models.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback()

	query := `
		INSERT INTO messages (id, chat_id, role, content, tool_name, tool_call_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	err = tx.QueryRowContext(ctx, query,
		msg.ID, msg.ChatID, msg.Role, msg.Content, msg.ToolName, msg.ToolCallID,
	).Scan(&msg.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "create message")
	}

	if _, err = tx.ExecContext(ctx, `UPDATE chats SET updated_at = NOW() WHERE id = $1`, msg.ChatID); err != nil {
		return errors.Wrap(err, "touch chat")
	}
	return errors.Wrap(tx.Commit(), "commit message")
}

func (s *PostgresStorage) GetRecentMessages(ctx context.Context, chatID string, limit int) ([]*models.Message, error) {
	query := `
		SELECT id, chat_id, role, content, tool_name, tool_call_id, created_at
		FROM messages
		WHERE chat_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, chatID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query messages")
	}
	defer rows.Close()

	var msgs []*models.Message
	for rows.Next() {
		msg := &models.Message{}
		if err := rows.Scan(&msg.ID, &msg.ChatID, &msg.Role, &msg.Content, &msg.ToolName, &msg.ToolCallID, &msg.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan message")
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

func (s *PostgresStorage) ListMessages(ctx context.Context, chatID string) ([]*models.Message, error) {
	query := `
		SELECT id, chat_id, role, content, tool_name, tool_call_id, created_at
		FROM messages
		WHERE chat_id = $1
		ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, chatID)
	if err != nil {
		return nil, errors.Wrap(err, "list messages")
	}
	defer rows.Close()

	var msgs []*models.Message
	for rows.Next() {
		msg := &models.Message{}
		if err := rows.Scan(&msg.ID, &msg.ChatID, &msg.Role, &msg.Content, &msg.ToolName, &msg.ToolCallID, &msg.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan message")
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

func (s *PostgresStorage) CountMessages(ctx context.Context, chatID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE chat_id = $1`, chatID).Scan(&count)
	if err != nil {
		return 0, errors.Wrap(err, "count messages")
	}
	return count, nil
}

func (s *PostgresStorage) UpsertEntity(ctx context.Context, entity *models.ConversationEntity) error {
	query := `
		INSERT INTO conversation_entities (chat_id, user_id, entity_type, entity_value)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (chat_id, user_id, entity_type, entity_value) DO NOTHING`

	_, err := s.db.ExecContext(ctx, query, entity.ChatID, entity.UserID, entity.Type, entity.Value)
	if err != nil {
		return errors.Wrap(err, "upsert entity")
	}
	return nil
}

func (s *PostgresStorage) ListEntities(ctx context.Context, chatID, userID string) ([]*models.ConversationEntity, error) {
	query := `
		SELECT id, chat_id, user_id, entity_type, entity_value, created_at
		FROM conversation_entities
		WHERE chat_id = $1 AND user_id = $2
		ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, chatID, userID)
	if err != nil {
		return nil, errors.Wrap(err, "query entities")
	}
	defer rows.Close()

	var entities []*models.ConversationEntity
	for rows.Next() {
		e := &models.ConversationEntity{}
		if err := rows.Scan(&e.ID, &e.ChatID, &e.UserID, &e.Type, &e.Value, &e.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan entity")
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

func (s *PostgresStorage) SaveSummary(ctx context.Context, summary *models.ConversationSummary) error {
	query := `
		INSERT INTO conversation_summaries (chat_id, user_id, content, message_count)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := s.db.QueryRowContext(ctx, query,
		summary.ChatID, summary.UserID, summary.Content, summary.MessageCount,
	).Scan(&summary.ID, &summary.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "save summary")
	}
	return nil
}

func (s *PostgresStorage) GetLatestSummary(ctx context.Context, chatID, userID string) (*models.ConversationSummary, error) {
	query := `
		SELECT id, chat_id, user_id, content, message_count, created_at
		FROM conversation_summaries
		WHERE chat_id = $1 AND user_id = $2
		ORDER BY created_at DESC
		LIMIT 1`

	summary := &models.ConversationSummary{}
	err := s.db.QueryRowContext(ctx, query, chatID, userID).Scan(
		&summary.ID, &summary.ChatID, &summary.UserID, &summary.Content, &summary.MessageCount, &summary.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get latest summary")
	}
	return summary, nil
}

func (s *PostgresStorage) AddFileReference(ctx context.Context, ref *models.FileReference) error {
	query := `
		INSERT INTO file_references (chat_id, user_id, file_name, file_type, file_url)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := s.db.QueryRowContext(ctx, query,
		ref.ChatID, ref.UserID, ref.FileName, ref.FileType, ref.FileURL,
	).Scan(&ref.ID, &ref.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "add file reference")
	}
	return nil
}

func (s *PostgresStorage) ListFileReferences(ctx context.Context, chatID, userID string) ([]*models.FileReference, error) {
	query := `
		SELECT id, chat_id, user_id, file_name, file_type, file_url, created_at
		FROM file_references
		WHERE chat_id = $1 AND user_id = $2
		ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, chatID, userID)
	if err != nil {
		return nil, errors.Wrap(err, "query file references")
	}
	defer rows.Close()

	var refs []*models.FileReference
	for rows.Next() {
		ref := &models.FileReference{}
		if err := rows.Scan(&ref.ID, &ref.ChatID, &ref.UserID, &ref.FileName, &ref.FileType, &ref.FileURL, &ref.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan file reference")
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

func (s *PostgresStorage) CreateDocument(ctx context.Context, doc *models.Document) error {
	query := `
		INSERT INTO documents (id, chat_id, user_id, title, content)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	err := s.db.QueryRowContext(ctx, query,
		doc.ID, doc.ChatID, doc.UserID, doc.Title, doc.Content,
	).Scan(&doc.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "create document")
	}
	return nil
}

func (s *PostgresStorage) GetDocument(ctx context.Context, docID, userID string) (*models.Document, error) {
	query := `
		SELECT id, chat_id, user_id, title, content, created_at
		FROM documents
		WHERE id = $1 AND user_id = $2`

	doc := &models.Document{}
	err := s.db.QueryRowContext(ctx, query, docID, userID).Scan(
		&doc.ID, &doc.ChatID, &doc.UserID, &doc.Title, &doc.Content, &doc.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get document")
	}
	return doc, nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
