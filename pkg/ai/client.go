package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ErrAIGenerationFailed - ошибка при генерации текста AI.
var ErrAIGenerationFailed = errors.New("ошибка генерации текста AI")

// Поддерживаемые провайдеры.
const (
	ClientTypeOpenAI = "openai"
	ClientTypeOllama = "ollama"
)

// Config - параметры подключения к провайдеру.
type Config struct {
	Type    string
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// GenerationParams - параметры генерации. Указатели отличают 0 от отсутствия значения.
type GenerationParams struct {
	Temperature *float64
	MaxTokens   *int
	// JSONMode просит провайдера вернуть валидный JSON-объект.
	JSONMode bool
}

// UsageInfo содержит информацию об использовании токенов.
type UsageInfo struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// AIClient интерфейс для взаимодействия с AI API.
type AIClient interface {
	// GenerateText делает один запрос без повторов. operation попадает в метрики.
	GenerateText(ctx context.Context, operation, systemPrompt, userInput string, params GenerationParams) (string, UsageInfo, error)
	// Model возвращает имя используемой модели.
	Model() string
}

// --- OpenAI Client Implementation ---

type openAIClient struct {
	client *openaigo.Client
	model  string
	logger *zap.Logger
}

func (c *openAIClient) Model() string { return c.model }

func (c *openAIClient) GenerateText(ctx context.Context, operation, systemPrompt, userInput string, params GenerationParams) (string, UsageInfo, error) {
	usage := UsageInfo{}
	log := c.logger.With(zap.String("operation", operation), zap.String("model", c.model))

	if strings.TrimSpace(systemPrompt) == "" {
		observeRequest(c.model, operation, statusError, time.Now())
		return "", usage, fmt.Errorf("%w: системный промт пуст", ErrAIGenerationFailed)
	}

	messages := []openaigo.ChatCompletionMessage{
		{Role: openaigo.ChatMessageRoleSystem, Content: systemPrompt},
	}
	if userInput != "" {
		messages = append(messages, openaigo.ChatCompletionMessage{Role: openaigo.ChatMessageRoleUser, Content: userInput})
	}

	req := openaigo.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: float32Val(params.Temperature),
		MaxTokens:   intVal(params.MaxTokens),
	}
	if params.JSONMode {
		req.ResponseFormat = &openaigo.ChatCompletionResponseFormat{Type: openaigo.ChatCompletionResponseFormatTypeJSONObject}
	}

	started := time.Now()
	log.Debug("Sending AI request", zap.Int("systemPromptBytes", len(systemPrompt)), zap.Int("userInputBytes", len(userInput)))

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		observeRequest(c.model, operation, errorStatus(err), started)
		log.Warn("AI request failed", zap.Duration("duration", time.Since(started)), zap.Error(err))
		return "", usage, fmt.Errorf("%w: %w", ErrAIGenerationFailed, err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		observeRequest(c.model, operation, statusEmptyResponse, started)
		log.Warn("AI returned empty response", zap.Duration("duration", time.Since(started)))
		return "", usage, fmt.Errorf("%w: получен пустой ответ", ErrAIGenerationFailed)
	}

	observeRequest(c.model, operation, statusSuccess, started)
	usage = UsageInfo{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	observeUsage(c.model, operation, usage)

	text := resp.Choices[0].Message.Content
	log.Debug("AI response received",
		zap.Duration("duration", time.Since(started)),
		zap.Int("responseLength", len(text)),
		zap.Int("totalTokens", usage.TotalTokens),
	)
	return text, usage, nil
}

func float32Val(f64 *float64) float32 {
	if f64 == nil {
		return 0
	}
	return float32(*f64)
}

func intVal(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}

// requestContext ограничивает запрос таймаутом. Нулевой таймаут означает без ограничения.
func requestContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// --- Ollama Client Implementation ---

type ollamaClient struct {
	client  *api.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

func newOllamaClient(cfg Config, logger *zap.Logger) (AIClient, error) {
	httpClient := &http.Client{Timeout: cfg.Timeout}

	// api.NewClient ожидает URL без суффикса /v1
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/v1")
	baseURL = strings.TrimSuffix(baseURL, "/")

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга Ollama Base URL '%s': %w", baseURL, err)
	}

	logger.Info("Ollama client created",
		zap.String("baseURL", baseURL),
		zap.String("model", cfg.Model),
		zap.Duration("timeout", cfg.Timeout),
	)
	return &ollamaClient{
		client:  api.NewClient(parsedURL, httpClient),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		logger:  logger,
	}, nil
}

func (c *ollamaClient) Model() string { return c.model }

func (c *ollamaClient) GenerateText(ctx context.Context, operation, systemPrompt, userInput string, params GenerationParams) (string, UsageInfo, error) {
	usage := UsageInfo{}
	log := c.logger.With(zap.String("operation", operation), zap.String("model", c.model))

	if strings.TrimSpace(systemPrompt) == "" {
		observeRequest(c.model, operation, statusError, time.Now())
		return "", usage, fmt.Errorf("%w: системный промт пуст", ErrAIGenerationFailed)
	}

	messages := []api.Message{{Role: "system", Content: systemPrompt}}
	if userInput != "" {
		messages = append(messages, api.Message{Role: "user", Content: userInput})
	}

	stream := false
	options := map[string]any{}
	if params.Temperature != nil {
		options["temperature"] = *params.Temperature
	}
	if params.MaxTokens != nil {
		options["num_predict"] = *params.MaxTokens
	}
	req := &api.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   &stream,
		Options:  options,
	}
	if params.JSONMode {
		req.Format = json.RawMessage(`"json"`)
	}

	requestCtx, cancel := requestContext(ctx, c.timeout)
	defer cancel()

	started := time.Now()
	var resp api.ChatResponse
	err := c.client.Chat(requestCtx, req, func(r api.ChatResponse) error {
		resp = r
		return nil
	})
	if err != nil {
		observeRequest(c.model, operation, errorStatus(err), started)
		log.Warn("Ollama request failed", zap.Duration("duration", time.Since(started)), zap.Error(err))
		return "", usage, fmt.Errorf("%w: %w", ErrAIGenerationFailed, err)
	}

	if strings.TrimSpace(resp.Message.Content) == "" {
		observeRequest(c.model, operation, statusEmptyResponse, started)
		return "", usage, fmt.Errorf("%w: получен пустой ответ", ErrAIGenerationFailed)
	}

	observeRequest(c.model, operation, statusSuccess, started)
	usage = UsageInfo{
		PromptTokens:     resp.PromptEvalCount,
		CompletionTokens: resp.EvalCount,
		TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
	}
	observeUsage(c.model, operation, usage)

	log.Debug("Ollama response received",
		zap.Duration("duration", time.Since(started)),
		zap.Int("responseLength", len(resp.Message.Content)),
	)
	return resp.Message.Content, usage, nil
}

func errorStatus(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return statusTimeout
	}
	return statusError
}

// --- Factory Function ---

// NewAIClient создает клиент AI в зависимости от типа провайдера.
func NewAIClient(cfg Config, logger *zap.Logger) (AIClient, error) {
	logger = logger.Named("AIClient")
	switch strings.ToLower(cfg.Type) {
	case ClientTypeOpenAI:
		openaiConfig := openaigo.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			openaiConfig.BaseURL = cfg.BaseURL
		}
		openaiConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}
		logger.Info("OpenAI client created",
			zap.String("baseURL", openaiConfig.BaseURL),
			zap.String("model", cfg.Model),
			zap.Duration("timeout", cfg.Timeout),
		)
		return &openAIClient{
			client: openaigo.NewClientWithConfig(openaiConfig),
			model:  cfg.Model,
			logger: logger,
		}, nil
	case ClientTypeOllama:
		return newOllamaClient(cfg, logger)
	default:
		return nil, fmt.Errorf("неизвестный тип AI клиента: '%s'", cfg.Type)
	}
}
