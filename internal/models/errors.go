package models

import "errors"

// Стандартные ошибки приложения
var (
	// Ресурсы / БД
	ErrNotFound = errors.New("resource not found") // история, подсказка, элемент отсутствуют или принадлежат другому пользователю

	// Аутентификация
	ErrUnauthorized   = errors.New("unauthorized")
	ErrTokenInvalid   = errors.New("token is invalid")
	ErrTokenMalformed = errors.New("token is malformed")
	ErrTokenExpired   = errors.New("token has expired")

	// Подсказки и реконсиляция
	ErrSuggestionNotPending = errors.New("suggestion is not pending")
	ErrNotRevertible        = errors.New("record was not created from a suggestion and cannot be reverted")
	ErrUnknownSuggestion    = errors.New("unknown suggestion type")

	// Извлечение (LLM). Единственная ошибка, которая восстанавливается локально.
	ErrExtractionFailed = errors.New("narrative extraction failed")

	// Общие
	ErrInvalidInput   = errors.New("invalid input data")
	ErrInternalServer = errors.New("internal server error")
)
