package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mentora-labs/mentora/internal/domain"
)

// ConversationRepository persists conversations and their turns.
type ConversationRepository struct {
	db dbtx
}

func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{db: pool}
}

func NewConversationRepositoryWithTx(tx pgx.Tx) *ConversationRepository {
	return &ConversationRepository{db: tx}
}

func (r *ConversationRepository) Create(ctx context.Context, c *domain.Conversation) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO conversations (id, chatbot_id, visitor_id, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.ChatbotID, c.VisitorID, c.Status, c.CreatedAt, c.UpdatedAt,
	)
	return err
}

// GetByID loads the conversation with up to historyLimit most recent
// messages, returned oldest-to-newest.
func (r *ConversationRepository) GetByID(ctx context.Context, id string, historyLimit int) (*domain.Conversation, error) {
	if historyLimit <= 0 {
		historyLimit = 10
	}

	var c domain.Conversation
	err := r.db.QueryRow(ctx,
		`SELECT id, chatbot_id, visitor_id, status, created_at, updated_at
		 FROM conversations WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.ChatbotID, &c.VisitorID, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, err
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, conversation_id, role, content, model, confidence, citations, created_at
		 FROM (
			SELECT id, conversation_id, role, content, model, confidence, citations, created_at
			FROM conversation_messages
			WHERE conversation_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		 ) recent
		 ORDER BY created_at ASC, id ASC`,
		id, historyLimit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	c.Messages, err = scanMessageRows(rows)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ConversationRepository) AppendMessage(ctx context.Context, m *domain.ConversationMessage) error {
	var citations []byte
	if len(m.Citations) > 0 {
		var err error
		citations, err = json.Marshal(m.Citations)
		if err != nil {
			return fmt.Errorf("failed to encode citations: %w", err)
		}
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO conversation_messages (id, conversation_id, role, content, model, confidence, citations, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.ConversationID, m.Role, m.Content, nullableString(m.Model), m.Confidence, citations, m.CreatedAt,
	)
	return err
}

func (r *ConversationRepository) Touch(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE conversations SET updated_at = now() WHERE id = $1`,
		id,
	)
	return err
}

func scanMessageRows(rows pgx.Rows) ([]*domain.ConversationMessage, error) {
	var results []*domain.ConversationMessage
	for rows.Next() {
		var m domain.ConversationMessage
		var model *string
		var citations []byte
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &model, &m.Confidence, &citations, &m.CreatedAt); err != nil {
			return nil, err
		}
		if model != nil {
			m.Model = *model
		}
		if len(citations) > 0 {
			if err := json.Unmarshal(citations, &m.Citations); err != nil {
				return nil, fmt.Errorf("failed to decode citations: %w", err)
			}
		}
		results = append(results, &m)
	}
	return results, rows.Err()
}
