package ai

import (
	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

const fallbackEncoding = "cl100k_base"

// TokenCounter считает токены для бюджетирования контекста промта.
// Без доступного словаря tiktoken использует оценку len/4.
type TokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTokenCounter подбирает кодировку по модели, иначе cl100k_base.
func NewTokenCounter(model string, logger *zap.Logger) *TokenCounter {
	enc, err := tiktoken.EncodingForModel(model)
	if err == nil {
		return &TokenCounter{enc: enc}
	}
	enc, fallbackErr := tiktoken.GetEncoding(fallbackEncoding)
	if fallbackErr == nil {
		logger.Debug("No tokenizer for model, using fallback encoding",
			zap.String("model", model),
			zap.String("encoding", fallbackEncoding),
		)
		return &TokenCounter{enc: enc}
	}
	logger.Warn("Tokenizer unavailable, token counts are estimated",
		zap.String("model", model),
		zap.Error(fallbackErr),
	)
	return &TokenCounter{}
}

// ApproxTokenCounter возвращает счетчик без словаря.
func ApproxTokenCounter() *TokenCounter {
	return &TokenCounter{}
}

// Count возвращает число токенов в тексте.
func (c *TokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	if c == nil || c.enc == nil {
		return (len(text) + 3) / 4
	}
	return len(c.enc.Encode(text, nil, nil))
}

// FitList берет элементы по порядку, пока их суммарная стоимость не превысит budget.
// Каждый элемент дополнительно стоит один токен на разделитель.
// budget <= 0 отключает ограничение.
func (c *TokenCounter) FitList(items []string, budget int) []string {
	if budget <= 0 {
		return items
	}
	out := make([]string, 0, len(items))
	used := 0
	for _, item := range items {
		cost := c.Count(item) + 1
		if used+cost > budget {
			break
		}
		used += cost
		out = append(out, item)
	}
	return out
}
