package models

// ExtractionResult - нормализованный результат разбора наррации LLM.
// Все числовые поля уже приведены к допустимым диапазонам.
type ExtractionResult struct {
	Characters    []ExtractedEntity     `json:"characters"`
	Locations     []ExtractedEntity     `json:"locations"`
	Organizations []ExtractedEntity     `json:"organizations"`
	Events        []ExtractedEvent      `json:"events"`
	Connections   []ExtractedConnection `json:"connections"`
}

// ExtractedEntity - персонаж, локация или организация.
type ExtractedEntity struct {
	Name          string            `json:"name"`
	MentionPhrase string            `json:"mention_phrase,omitempty"`
	Attributes    ElementAttributes `json:"attributes"`
	Confidence    *float64          `json:"confidence,omitempty"`
}

// ExtractedEvent - событие из наррации.
type ExtractedEvent struct {
	Title              string   `json:"title"`
	Description        string   `json:"description,omitempty"`
	CharactersInvolved []string `json:"characters_involved"`
	Location           string   `json:"location,omitempty"`
	EmotionalTone      string   `json:"emotional_tone,omitempty"`
	Importance         *int     `json:"importance,omitempty"`
	IsTurningPoint     bool     `json:"is_turning_point"`
}

// ExtractedConnection - отношение между двумя сущностями по именам.
type ExtractedConnection struct {
	From            string `json:"from"`
	To              string `json:"to"`
	Type            string `json:"type"`
	Weight          *int   `json:"weight,omitempty"`
	EmotionalCharge *int   `json:"emotional_charge,omitempty"`
	Description     string `json:"description,omitempty"`
}

// IsEmpty сообщает, что LLM ничего не нашел.
func (r *ExtractionResult) IsEmpty() bool {
	return r == nil || len(r.Characters)+len(r.Locations)+len(r.Organizations)+len(r.Events)+len(r.Connections) == 0
}

// EntityNames возвращает имена всех сущностей результата.
func (r *ExtractionResult) EntityNames() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.Characters)+len(r.Locations)+len(r.Organizations))
	for _, group := range [][]ExtractedEntity{r.Characters, r.Locations, r.Organizations} {
		for _, e := range group {
			names = append(names, e.Name)
		}
	}
	return names
}

// EventSummary - краткое описание недавнего события для контекста промта.
type EventSummary struct {
	Title       string  `json:"title" db:"title"`
	Description *string `json:"description,omitempty" db:"description"`
}

// ThemeOption - вариант "вайба" истории из брейншторма.
type ThemeOption struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}
