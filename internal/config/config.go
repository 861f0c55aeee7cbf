package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"narrative-server/pkg/utils"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config содержит конфигурацию narrative-server.
type Config struct {
	// Сервер
	Env                string `envconfig:"ENV" default:"production"`
	Port               string `envconfig:"SERVER_PORT" default:"3001"`
	LogLevel           string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding        string `envconfig:"LOG_ENCODING" default:"json"`
	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:""`

	// PostgreSQL
	DBHost        string        `envconfig:"DB_HOST" default:"localhost"`
	DBPort        string        `envconfig:"DB_PORT" default:"5432"`
	DBUser        string        `envconfig:"DB_USER" default:"postgres"`
	DBName        string        `envconfig:"DB_NAME" default:"narrative"`
	DBSSLMode     string        `envconfig:"DB_SSL_MODE" default:"disable"`
	DBMaxConns    int32         `envconfig:"DB_MAX_CONNECTIONS" default:"10"`
	DBIdleTimeout time.Duration `envconfig:"DB_MAX_IDLE" default:"5m"`
	AutoMigrate   bool          `envconfig:"AUTO_MIGRATE" default:"true"`
	// Секрет, без envconfig тега
	DBPassword string `ignored:"true"`

	// Redis для rate limit. Пусто = хранилище в памяти.
	RedisURL            string        `envconfig:"REDIS_URL" default:""`
	NarrationRateLimit  uint          `envconfig:"NARRATION_RATE_LIMIT" default:"20"`
	NarrationRatePeriod time.Duration `envconfig:"NARRATION_RATE_PERIOD" default:"1m"`

	// RabbitMQ. Пусто = события историй только в websocket.
	RabbitMQURL         string `envconfig:"RABBITMQ_URL" default:""`
	StoryUpdateExchange string `envconfig:"STORY_UPDATES_EXCHANGE" default:"story_updates"`

	// JWT внешнего провайдера. Нужен хотя бы один из ключей.
	JWTAudience     string `envconfig:"JWT_AUDIENCE" default:"authenticated"`
	JWTIssuer       string `envconfig:"JWT_ISSUER" default:""`
	JWTPublicKeyPEM string `envconfig:"JWT_PUBLIC_KEY_PEM" default:""`
	JWTSecret       string `ignored:"true"`

	// AI
	AIClientType       string        `envconfig:"AI_CLIENT_TYPE" default:"openai"`
	AIBaseURL          string        `envconfig:"AI_BASE_URL" default:"https://api.openai.com/v1"`
	AIModel            string        `envconfig:"AI_MODEL" default:"gpt-4o-mini"`
	AITimeout          time.Duration `envconfig:"AI_TIMEOUT" default:"60s"`
	ExtractionTimeout  time.Duration `envconfig:"EXTRACTION_TIMEOUT" default:"45s"`
	ListenerTimeout    time.Duration `envconfig:"LISTENER_TIMEOUT" default:"15s"`
	HelperTimeout      time.Duration `envconfig:"HELPER_TIMEOUT" default:"30s"`
	ContextTokenBudget int           `envconfig:"CONTEXT_TOKEN_BUDGET" default:"1500"`
	AIAPIKey           string        `ignored:"true"`
}

// GetDSN возвращает строку подключения к PostgreSQL.
func (c *Config) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// MaskedDSN - DSN без пароля, для логов.
func (c *Config) MaskedDSN() string {
	return fmt.Sprintf("postgres://%s:***@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// GetAllowedOrigins разбирает CORS_ALLOWED_ORIGINS через запятую.
func (c *Config) GetAllowedOrigins() []string {
	if strings.TrimSpace(c.CORSAllowedOrigins) == "" {
		return nil
	}
	var origins []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// IsDevelopment сообщает, что сервис запущен локально.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, "development")
}

// LoadConfig загружает .env (если есть), переменные окружения и секреты.
func LoadConfig(envFiles ...string) (*Config, error) {
	// .env не обязателен
	_ = godotenv.Load(envFiles...)

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации narrative-server: %w", err)
	}

	var err error
	cfg.DBPassword, err = utils.ReadSecretOrEnv("db_password", "DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// JWT секрет опционален, если задан публичный ключ ES256
	cfg.JWTSecret, err = utils.ReadSecretOrEnv("jwt_secret", "JWT_SECRET")
	if err != nil && !errors.Is(err, utils.ErrSecretNotFound) {
		return nil, err
	}
	if cfg.JWTSecret == "" && cfg.JWTPublicKeyPEM == "" {
		return nil, errors.New("either jwt_secret or JWT_PUBLIC_KEY_PEM must be configured")
	}

	// Ollama ключ не требует
	cfg.AIAPIKey, err = utils.ReadSecretOrEnv("ai_api_key", "AI_API_KEY")
	if err != nil && !strings.EqualFold(cfg.AIClientType, "ollama") {
		return nil, err
	}

	return &cfg, nil
}
