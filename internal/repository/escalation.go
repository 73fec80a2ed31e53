package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mentora-labs/mentora/internal/domain"
)

// EscalationRepository persists human hand-off requests for the support
// queue tooling.
type EscalationRepository struct {
	db dbtx
}

func NewEscalationRepository(pool *pgxpool.Pool) *EscalationRepository {
	return &EscalationRepository{db: pool}
}

func NewEscalationRepositoryWithTx(tx pgx.Tx) *EscalationRepository {
	return &EscalationRepository{db: tx}
}

func (r *EscalationRepository) Create(ctx context.Context, e *domain.EscalationRequest) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO escalation_requests (id, conversation_id, chatbot_id, visitor_id, message, status, priority, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.ConversationID, e.ChatbotID, e.VisitorID, e.Message, e.Status, e.Priority, e.CreatedAt,
	)
	return err
}

// ListPending returns open hand-offs for a chatbot, oldest first.
func (r *EscalationRepository) ListPending(ctx context.Context, chatbotID string) ([]*domain.EscalationRequest, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, conversation_id, chatbot_id, visitor_id, message, status, priority, created_at
		 FROM escalation_requests
		 WHERE chatbot_id = $1 AND status = $2
		 ORDER BY created_at ASC`,
		chatbotID, domain.EscalationStatusPending,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*domain.EscalationRequest
	for rows.Next() {
		var e domain.EscalationRequest
		if err := rows.Scan(&e.ID, &e.ConversationID, &e.ChatbotID, &e.VisitorID, &e.Message, &e.Status, &e.Priority, &e.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, &e)
	}
	return results, rows.Err()
}
