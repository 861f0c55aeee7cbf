package extraction

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"narrative-server/internal/models"
)

// number принимает из ответа LLM число, числовую строку или null.
type number struct {
	v *float64
}

func (n *number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		n.v = nil
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			// Нечисловая строка считается отсутствующим значением.
			n.v = nil
			return nil
		}
		n.v = &f
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	n.v = &f
	return nil
}

// flag принимает из ответа LLM bool, строку ("true", "yes", "1") или число.
// Нераспознанное значение считается false.
type flag bool

func (f *flag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*f = false
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	switch data[0] {
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*f = flag(b)
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "yes", "y", "1":
			*f = true
		}
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err == nil {
			*f = n != 0
		}
	}
	return nil
}

// Сырые структуры ответа LLM. Диапазоны не гарантированы.
type wireResult struct {
	Characters    []wireEntity     `json:"characters"`
	Locations     []wireEntity     `json:"locations"`
	Organizations []wireEntity     `json:"organizations"`
	Events        []wireEvent      `json:"events"`
	Connections   []wireConnection `json:"connections"`
}

type wireAttributes struct {
	Description    string   `json:"description"`
	Traits         []string `json:"traits"`
	CurrentEmotion string   `json:"current_emotion"`
	SentimentScore number   `json:"sentiment_score"`
	Type           string   `json:"type"`
}

type wireEntity struct {
	Name          string         `json:"name"`
	MentionPhrase string         `json:"mention_phrase"`
	Attributes    wireAttributes `json:"attributes"`
	Confidence    number         `json:"confidence"`
}

type wireEvent struct {
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	CharactersInvolved []string `json:"characters_involved"`
	Location           string   `json:"location"`
	EmotionalTone      string   `json:"emotional_tone"`
	Importance         number   `json:"importance"`
	IsTurningPoint     flag     `json:"is_turning_point"`
}

type wireConnection struct {
	From            string `json:"from"`
	To              string `json:"to"`
	Type            string `json:"type"`
	Weight          number `json:"weight"`
	EmotionalCharge number `json:"emotional_charge"`
	Description     string `json:"description"`
}

// normalize приводит ответ к типизированному результату: обрезает строки,
// ограничивает числа допустимыми диапазонами и отбрасывает элементы без имени.
func normalize(w wireResult) *models.ExtractionResult {
	return &models.ExtractionResult{
		Characters:    normalizeEntities(w.Characters, models.ElementTypeCharacter),
		Locations:     normalizeEntities(w.Locations, models.ElementTypeLocation),
		Organizations: normalizeEntities(w.Organizations, models.ElementTypeOrganization),
		Events:        normalizeEvents(w.Events),
		Connections:   normalizeConnections(w.Connections),
	}
}

func normalizeEntities(in []wireEntity, t models.ElementType) []models.ExtractedEntity {
	out := make([]models.ExtractedEntity, 0, len(in))
	for _, e := range in {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			continue
		}
		attrs := models.ElementAttributes{
			Description:    e.Attributes.Description,
			Traits:         cleanStrings(e.Attributes.Traits),
			CurrentEmotion: e.Attributes.CurrentEmotion,
			SentimentScore: clampPtr(e.Attributes.SentimentScore.v, -10, 10),
			Type:           e.Attributes.Type,
		}
		out = append(out, models.ExtractedEntity{
			Name:          name,
			MentionPhrase: strings.TrimSpace(e.MentionPhrase),
			Attributes:    attrs.ForType(t),
			Confidence:    clampPtr(e.Confidence.v, 0, 1),
		})
	}
	return out
}

func normalizeEvents(in []wireEvent) []models.ExtractedEvent {
	out := make([]models.ExtractedEvent, 0, len(in))
	for _, e := range in {
		title := strings.TrimSpace(e.Title)
		if title == "" {
			continue
		}
		out = append(out, models.ExtractedEvent{
			Title:              title,
			Description:        strings.TrimSpace(e.Description),
			CharactersInvolved: cleanStrings(e.CharactersInvolved),
			Location:           strings.TrimSpace(e.Location),
			EmotionalTone:      strings.TrimSpace(e.EmotionalTone),
			Importance:         clampIntPtr(e.Importance.v, 1, 10),
			IsTurningPoint:     bool(e.IsTurningPoint),
		})
	}
	return out
}

func normalizeConnections(in []wireConnection) []models.ExtractedConnection {
	out := make([]models.ExtractedConnection, 0, len(in))
	for _, c := range in {
		from, to := strings.TrimSpace(c.From), strings.TrimSpace(c.To)
		connType := strings.TrimSpace(c.Type)
		if from == "" || to == "" || connType == "" {
			continue
		}
		out = append(out, models.ExtractedConnection{
			From:            from,
			To:              to,
			Type:            connType,
			Weight:          clampIntPtr(c.Weight.v, 1, 10),
			EmotionalCharge: clampIntPtr(c.EmotionalCharge.v, -10, 10),
			Description:     strings.TrimSpace(c.Description),
		})
	}
	return out
}

func cleanStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func clampPtr(v *float64, lo, hi float64) *float64 {
	if v == nil || math.IsNaN(*v) {
		return nil
	}
	c := clamp(*v, lo, hi)
	return &c
}

func clampIntPtr(v *float64, lo, hi int) *int {
	if v == nil || math.IsNaN(*v) {
		return nil
	}
	i := int(math.Round(clamp(*v, float64(lo), float64(hi))))
	return &i
}
