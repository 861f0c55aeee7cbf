package ai

import "strings"

// StripCodeFence убирает обертку ```json ... ``` или ``` ... ``` вокруг ответа модели.
// Текст без обертки возвращается обрезанным по краям.
func StripCodeFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Язык после открывающих кавычек, например ```json
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		if lang := strings.TrimSpace(s[:nl]); !strings.ContainsAny(lang, "{[") {
			s = s[nl+1:]
		}
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
