package admin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mentora-labs/mentora/internal/config"
	"github.com/mentora-labs/mentora/internal/domain"
	"github.com/mentora-labs/mentora/internal/repository"
	"github.com/spf13/cobra"
)

func ChatbotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chatbot",
		Short: "Manage chatbots",
		Long:  "Create chatbots and inspect their support queue",
	}

	cmd.AddCommand(ChatbotCreateCmd())
	cmd.AddCommand(ChatbotEscalationsCmd())

	return cmd
}

func ChatbotCreateCmd() *cobra.Command {
	var (
		publicID   string
		ownerEmail string
		industry   string
		language   string
		quota      int64
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new chatbot",
		Long:  "Create a chatbot with its owner account and usage quota",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, _ := cmd.Flags().GetString("output")
			return runChatbotCreate(args[0], publicID, ownerEmail, industry, language, quota, outputFormat)
		},
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")
	cmd.Flags().StringVar(&publicID, "public-id", "", "Public widget id (default: random)")
	cmd.Flags().StringVar(&ownerEmail, "owner-email", "", "Owner notification email")
	cmd.Flags().StringVar(&industry, "industry", "generic", "Industry vertical (education, ecommerce, real_estate, generic)")
	cmd.Flags().StringVar(&language, "language", "en", "Answer language (en or tr)")
	cmd.Flags().Int64Var(&quota, "quota", domain.UnlimitedQuota, "Monthly conversation ceiling (-1 for unlimited)")

	return cmd
}

func runChatbotCreate(name, publicID, ownerEmail, industry, language string, quota int64, outputFormat string) error {
	ctx := context.Background()

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	chatbotRepo := repository.NewChatbotRepository(pool)
	quotaRepo := repository.NewQuotaRepository(pool)
	ownerRepo := repository.NewOwnerRepository(pool)

	if publicID == "" {
		publicID = uuid.NewString()
	}

	ownerID := uuid.NewString()
	if err := ownerRepo.Create(ctx, ownerID, ownerEmail, ownerEmail != ""); err != nil {
		return fmt.Errorf("failed to create owner: %w", err)
	}

	chatbot := domain.NewChatbot(uuid.NewString(), publicID, ownerID, name, domain.Industry(industry))
	chatbot.Language = language
	if err := domain.ValidateChatbot(chatbot); err != nil {
		return err
	}
	if err := chatbotRepo.Create(ctx, chatbot); err != nil {
		return fmt.Errorf("failed to create chatbot: %w", err)
	}

	if err := quotaRepo.Create(ctx, &domain.UsageQuota{OwnerID: ownerID, Ceiling: quota}); err != nil {
		return fmt.Errorf("failed to create quota: %w", err)
	}

	if outputFormat == "json" {
		data := map[string]interface{}{
			"id":        chatbot.ID,
			"public_id": chatbot.PublicID,
			"owner_id":  chatbot.OwnerID,
			"name":      chatbot.Name,
			"industry":  chatbot.Industry,
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(jsonBytes))
	} else {
		fmt.Printf("Chatbot created: %s (public id: %s)\n", chatbot.Name, chatbot.PublicID)
	}

	return nil
}

func ChatbotEscalationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "escalations <chatbot-id>",
		Short: "List pending escalations",
		Long:  "List pending human hand-off requests for a chatbot, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, _ := cmd.Flags().GetString("output")
			return runChatbotEscalations(args[0], outputFormat)
		},
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runChatbotEscalations(chatbotID, outputFormat string) error {
	ctx := context.Background()

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	escalationRepo := repository.NewEscalationRepository(pool)
	pending, err := escalationRepo.ListPending(ctx, chatbotID)
	if err != nil {
		return fmt.Errorf("failed to list escalations: %w", err)
	}

	if outputFormat == "json" {
		data := make([]map[string]interface{}, len(pending))
		for i, e := range pending {
			data[i] = map[string]interface{}{
				"id":              e.ID,
				"conversation_id": e.ConversationID,
				"visitor_id":      e.VisitorID,
				"message":         e.Message,
				"priority":        e.Priority,
				"created_at":      e.CreatedAt,
			}
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(jsonBytes))
		return nil
	}

	if len(pending) == 0 {
		fmt.Println("No pending escalations")
		return nil
	}
	for _, e := range pending {
		fmt.Printf("%s  conversation=%s visitor=%s  %q\n", e.CreatedAt.Format("2006-01-02 15:04"), e.ConversationID, e.VisitorID, e.Message)
	}

	return nil
}

func getDBPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}
