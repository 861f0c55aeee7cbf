package extraction

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"narrative-server/internal/models"
)

//go:embed prompts/*.md
var promptFS embed.FS

const (
	promptExtract    = "extract.md"
	promptListener   = "listener.md"
	promptBrainstorm = "brainstorm.md"
	promptDialogue   = "dialogue.md"
)

// prompts - шаблоны промтов с плейсхолдерами вида {{NAME}}.
type prompts map[string]string

func loadPrompts() (prompts, error) {
	p := make(prompts, 4)
	for _, name := range []string{promptExtract, promptListener, promptBrainstorm, promptDialogue} {
		content, err := promptFS.ReadFile("prompts/" + name)
		if err != nil {
			return nil, fmt.Errorf("failed to read prompt file %s: %w", name, err)
		}
		p[name] = string(content)
	}
	return p, nil
}

// render подставляет значения плейсхолдеров. Пары: "NAME", value, ...
func (p prompts) render(name string, pairs ...string) string {
	oldnew := make([]string, 0, len(pairs))
	for i := 0; i+1 < len(pairs); i += 2 {
		oldnew = append(oldnew, "{{"+pairs[i]+"}}", pairs[i+1])
	}
	return strings.TrimSpace(strings.NewReplacer(oldnew...).Replace(p[name]))
}

func existingEntitiesLine(names []string) string {
	if len(names) == 0 {
		return "No existing entities yet."
	}
	return "Existing Story Entities (use these for resolution/aliasing): " + strings.Join(names, ", ")
}

func recentEventsLine(events []models.EventSummary) string {
	if len(events) == 0 {
		return ""
	}
	return "Recent Story Events: " + toJSON(events)
}

func toJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(data)
}
