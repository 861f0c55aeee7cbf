package models

// WorldBible - все канонические записи истории.
type WorldBible struct {
	Story       *Story                `json:"story"`
	Elements    []NarrativeElement    `json:"elements"`
	Timeline    []StoryMoment         `json:"timeline"`
	Connections []NarrativeConnection `json:"connections"`
	Mentions    []EntityMention       `json:"mentions"`
}

// Dossier - сущность, ее путь по упоминаниям и ее связи.
type Dossier struct {
	Element     *NarrativeElement     `json:"element"`
	Mentions    []EntityMention       `json:"mentions"`
	Connections []NarrativeConnection `json:"connections"`
}

// InterviewResult - реплика персонажа в интервью.
type InterviewResult struct {
	CharacterID string `json:"character_id"`
	Response    string `json:"response"`
}
