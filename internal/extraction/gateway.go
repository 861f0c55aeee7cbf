// Package extraction превращает свободный текст наррации в структурированные
// кандидаты через LLM и содержит вспомогательные AI-функции истории.
package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"narrative-server/internal/models"
	"narrative-server/pkg/ai"

	"go.uber.org/zap"
)

// Имена операций для метрик AI.
const (
	opExtract    = "extract"
	opListener   = "listener"
	opBrainstorm = "brainstorm"
	opDialogue   = "dialogue"
)

// brainstormOptions - сколько вариантов вайба возвращает Brainstorm.
const brainstormOptions = 3

// Context - сведения об истории для разрешения имен в промте.
type Context struct {
	Entities     []string
	RecentEvents []models.EventSummary
}

// Config - таймауты и бюджет контекста.
type Config struct {
	ExtractionTimeout  time.Duration
	ListenerTimeout    time.Duration
	HelperTimeout      time.Duration
	ContextTokenBudget int
}

// Extractor - контракт шлюза, от которого зависят сервисы.
type Extractor interface {
	Extract(ctx context.Context, narration string, c Context) (*models.ExtractionResult, json.RawMessage, error)
	ListenerResponse(ctx context.Context, narration string, recent []models.EventSummary) string
	Brainstorm(ctx context.Context, entities []string, moments []models.EventSummary) []models.ThemeOption
	Dialogue(ctx context.Context, characterName string, attributes models.ElementAttributes, prompt string, moments []models.EventSummary) string
}

// Gateway - реализация Extractor поверх ai.AIClient.
type Gateway struct {
	client  ai.AIClient
	tokens  *ai.TokenCounter
	prompts prompts
	cfg     Config
	logger  *zap.Logger
}

var _ Extractor = (*Gateway)(nil)

// NewGateway создает шлюз извлечения.
func NewGateway(client ai.AIClient, tokens *ai.TokenCounter, cfg Config, logger *zap.Logger) (*Gateway, error) {
	p, err := loadPrompts()
	if err != nil {
		return nil, err
	}
	if tokens == nil {
		tokens = ai.ApproxTokenCounter()
	}
	return &Gateway{
		client:  client,
		tokens:  tokens,
		prompts: p,
		cfg:     cfg,
		logger:  logger.Named("Extraction"),
	}, nil
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// Extract делает один запрос к LLM без повторов. Любая ошибка
// (транспорт, таймаут, пустой ответ, невалидный JSON) оборачивается в
// models.ErrExtractionFailed. Вторым значением возвращается JSON ответа как есть.
func (g *Gateway) Extract(ctx context.Context, narration string, c Context) (*models.ExtractionResult, json.RawMessage, error) {
	entities := g.tokens.FitList(c.Entities, g.cfg.ContextTokenBudget)
	log := g.logger.With(zap.Int("narrationLength", len(narration)), zap.Int("contextEntities", len(entities)))
	if len(entities) < len(c.Entities) {
		log.Warn("Entity context truncated by token budget",
			zap.Int("total", len(c.Entities)),
			zap.Int("budget", g.cfg.ContextTokenBudget),
		)
	}

	system := g.prompts.render(promptExtract,
		"EXISTING_ENTITIES", existingEntitiesLine(entities),
		"RECENT_EVENTS", recentEventsLine(c.RecentEvents),
	)

	callCtx, cancel := withOptionalTimeout(ctx, g.cfg.ExtractionTimeout)
	defer cancel()

	text, _, err := g.client.GenerateText(callCtx, opExtract, system, narration, ai.GenerationParams{JSONMode: true})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			log.Warn("Extraction timed out", zap.Duration("timeout", g.cfg.ExtractionTimeout))
			return nil, nil, fmt.Errorf("%w: timeout after %s: %w", models.ErrExtractionFailed, g.cfg.ExtractionTimeout, err)
		}
		log.Warn("Extraction request failed", zap.Error(err))
		return nil, nil, fmt.Errorf("%w: %w", models.ErrExtractionFailed, err)
	}

	result, raw, err := parseExtraction(text)
	if err != nil {
		log.Warn("Extraction response is not valid JSON", zap.Error(err), zap.Int("responseLength", len(text)))
		return nil, nil, err
	}

	log.Info("Narration extracted",
		zap.Int("characters", len(result.Characters)),
		zap.Int("locations", len(result.Locations)),
		zap.Int("organizations", len(result.Organizations)),
		zap.Int("events", len(result.Events)),
		zap.Int("connections", len(result.Connections)),
	)
	return result, raw, nil
}

// parseExtraction снимает markdown-обертку, декодирует и нормализует ответ.
func parseExtraction(text string) (*models.ExtractionResult, json.RawMessage, error) {
	body := ai.StripCodeFence(text)
	if body == "" {
		return nil, nil, fmt.Errorf("%w: empty response", models.ErrExtractionFailed)
	}
	var w wireResult
	if err := json.Unmarshal([]byte(body), &w); err != nil {
		return nil, nil, fmt.Errorf("%w: invalid JSON: %w", models.ErrExtractionFailed, err)
	}
	// jsonb и text в Postgres не принимают U+0000
	var tree any
	if err := json.Unmarshal([]byte(body), &tree); err != nil {
		return nil, nil, fmt.Errorf("%w: invalid JSON: %w", models.ErrExtractionFailed, err)
	}
	if containsNUL(tree) {
		return nil, nil, fmt.Errorf("%w: response contains NUL character", models.ErrExtractionFailed)
	}
	return normalize(w), json.RawMessage(body), nil
}

func containsNUL(v any) bool {
	switch t := v.(type) {
	case string:
		return strings.ContainsRune(t, 0)
	case []any:
		for _, item := range t {
			if containsNUL(item) {
				return true
			}
		}
	case map[string]any:
		for k, item := range t {
			if strings.ContainsRune(k, 0) || containsNUL(item) {
				return true
			}
		}
	}
	return false
}

// ListenerResponse возвращает короткую реплику слушателя.
// При любой ошибке возвращает models.DefaultListenerResponse.
func (g *Gateway) ListenerResponse(ctx context.Context, narration string, recent []models.EventSummary) string {
	system := g.prompts.render(promptListener, "RECENT_EVENTS", recentEventsLine(recent))

	callCtx, cancel := withOptionalTimeout(ctx, g.cfg.ListenerTimeout)
	defer cancel()

	text, _, err := g.client.GenerateText(callCtx, opListener, system, narration, ai.GenerationParams{})
	if err != nil {
		g.logger.Warn("Listener response failed, using default", zap.Error(err))
		return models.DefaultListenerResponse
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return models.DefaultListenerResponse
	}
	return text
}

// Brainstorm предлагает варианты вайба истории. При ошибке возвращает пустой список.
func (g *Gateway) Brainstorm(ctx context.Context, entities []string, moments []models.EventSummary) []models.ThemeOption {
	system := g.prompts.render(promptBrainstorm,
		"ENTITIES", toJSON(g.tokens.FitList(entities, g.cfg.ContextTokenBudget)),
		"MOMENTS", toJSON(moments),
	)

	callCtx, cancel := withOptionalTimeout(ctx, g.cfg.HelperTimeout)
	defer cancel()

	text, _, err := g.client.GenerateText(callCtx, opBrainstorm, system, "", ai.GenerationParams{})
	if err != nil {
		g.logger.Warn("Brainstorm failed", zap.Error(err))
		return []models.ThemeOption{}
	}

	var options []models.ThemeOption
	if err := json.Unmarshal([]byte(ai.StripCodeFence(text)), &options); err != nil {
		g.logger.Warn("Brainstorm response is not a JSON array", zap.Error(err))
		return []models.ThemeOption{}
	}

	out := make([]models.ThemeOption, 0, brainstormOptions)
	for _, o := range options {
		o.Title = strings.TrimSpace(o.Title)
		o.Description = strings.TrimSpace(o.Description)
		if o.Title == "" {
			continue
		}
		out = append(out, o)
		if len(out) == brainstormOptions {
			break
		}
	}
	return out
}

// DialogueFallback - реплика персонажа, когда LLM не ответил.
func DialogueFallback(characterName string) string {
	return fmt.Sprintf("[%s looks at you silently, unable to find the words.]", characterName)
}

// Dialogue отвечает на вопрос от лица персонажа.
func (g *Gateway) Dialogue(ctx context.Context, characterName string, attributes models.ElementAttributes, prompt string, moments []models.EventSummary) string {
	system := g.prompts.render(promptDialogue,
		"CHARACTER_NAME", characterName,
		"ATTRIBUTES", toJSON(attributes),
		"MOMENTS", toJSON(moments),
	)

	callCtx, cancel := withOptionalTimeout(ctx, g.cfg.HelperTimeout)
	defer cancel()

	text, _, err := g.client.GenerateText(callCtx, opDialogue, system, prompt, ai.GenerationParams{})
	if err != nil || strings.TrimSpace(text) == "" {
		g.logger.Warn("Character dialogue failed", zap.String("character", characterName), zap.Error(err))
		return DialogueFallback(characterName)
	}
	return strings.TrimSpace(text)
}
