package config

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port    string `envconfig:"PORT" default:"8080"`
	Debug   bool   `envconfig:"DEBUG" default:"false"`
	DevMode bool   `envconfig:"DEV_MODE" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"mentora-documents"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	// Pipeline tuning. Defaults match the thresholds the decision engine
	// was calibrated with; override per deployment, not per tenant.
	SimilarityFloor float32 `envconfig:"SIMILARITY_FLOOR" default:"0.68"`
	EscalationFloor float32 `envconfig:"ESCALATION_FLOOR" default:"0.45"`
	PromptWindow    int     `envconfig:"PROMPT_WINDOW" default:"5"`
	HistoryLimit    int     `envconfig:"HISTORY_LIMIT" default:"10"`
	ChunkLimit      int     `envconfig:"CHUNK_LIMIT" default:"3"`
	RecordLimit     int     `envconfig:"RECORD_LIMIT" default:"5"`
	EmbedRatePerSec int     `envconfig:"EMBED_RATE_PER_SEC" default:"1"`

	// Bootstrap: create a demo chatbot on startup
	InitChatbotName     string `envconfig:"INIT_CHATBOT_NAME"`
	InitChatbotOwner    string `envconfig:"INIT_CHATBOT_OWNER"`
	InitChatbotPublicID string `envconfig:"INIT_CHATBOT_PUBLIC_ID" default:"demo"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("MENTORA", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}
