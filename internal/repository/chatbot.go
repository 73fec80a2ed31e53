package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mentora-labs/mentora/internal/domain"
)

// ChatbotRepository loads tenant chatbot configurations and maintains
// their message counters.
type ChatbotRepository struct {
	db dbtx
}

func NewChatbotRepository(pool *pgxpool.Pool) *ChatbotRepository {
	return &ChatbotRepository{db: pool}
}

func NewChatbotRepositoryWithTx(tx pgx.Tx) *ChatbotRepository {
	return &ChatbotRepository{db: tx}
}

const chatbotColumns = `id, public_id, owner_id, name, industry, active, allowed_origins,
	language, model, temperature, welcome_message, fallback_message,
	escalation_messaging_number, escalation_support_email, escalation_support_url,
	message_count, created_at, updated_at`

func (r *ChatbotRepository) Create(ctx context.Context, c *domain.Chatbot) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO chatbots (`+chatbotColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		c.ID, c.PublicID, c.OwnerID, c.Name, c.Industry, c.Active, c.AllowedOrigins,
		c.Language, nullableString(c.Model), c.Temperature, nullableString(c.WelcomeMessage), nullableString(c.FallbackMessage),
		nullableString(c.Escalation.MessagingNumber), nullableString(c.Escalation.SupportEmail), nullableString(c.Escalation.SupportURL),
		c.MessageCount, c.CreatedAt, c.UpdatedAt,
	)
	return err
}

func (r *ChatbotRepository) GetByPublicID(ctx context.Context, publicID string) (*domain.Chatbot, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+chatbotColumns+` FROM chatbots WHERE public_id = $1`,
		publicID,
	)
	return scanChatbot(row)
}

func (r *ChatbotRepository) GetByID(ctx context.Context, id string) (*domain.Chatbot, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+chatbotColumns+` FROM chatbots WHERE id = $1`,
		id,
	)
	return scanChatbot(row)
}

// IncrementMessageCount bumps the per-chatbot counter atomically in the
// store, so concurrent answers never lose increments.
func (r *ChatbotRepository) IncrementMessageCount(ctx context.Context, chatbotID string, delta int64) error {
	_, err := r.db.Exec(ctx,
		`UPDATE chatbots SET message_count = message_count + $2, updated_at = now() WHERE id = $1`,
		chatbotID, delta,
	)
	return err
}

func scanChatbot(row pgx.Row) (*domain.Chatbot, error) {
	var c domain.Chatbot
	var model, welcome, fallback, messaging, supportEmail, supportURL *string
	err := row.Scan(
		&c.ID, &c.PublicID, &c.OwnerID, &c.Name, &c.Industry, &c.Active, &c.AllowedOrigins,
		&c.Language, &model, &c.Temperature, &welcome, &fallback,
		&messaging, &supportEmail, &supportURL,
		&c.MessageCount, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrChatbotNotFound
		}
		return nil, err
	}
	if model != nil {
		c.Model = *model
	}
	if welcome != nil {
		c.WelcomeMessage = *welcome
	}
	if fallback != nil {
		c.FallbackMessage = *fallback
	}
	if messaging != nil {
		c.Escalation.MessagingNumber = *messaging
	}
	if supportEmail != nil {
		c.Escalation.SupportEmail = *supportEmail
	}
	if supportURL != nil {
		c.Escalation.SupportURL = *supportURL
	}
	return &c, nil
}
