package handler

import "narrative-server/internal/models"

type createStoryRequest struct {
	Title       *string `json:"title" binding:"omitempty,max=200"`
	Description *string `json:"description" binding:"omitempty,max=2000"`
}

type addNarrationRequest struct {
	Content string `json:"content" binding:"required,max=20000"`
}

type interviewRequest struct {
	Prompt string `json:"prompt" binding:"required,max=2000"`
}

// successResponse - ответ операций без тела результата.
type successResponse struct {
	Success bool `json:"success"`
}

// progressResponse - прогресс пользователя вместе с порогом следующего уровня.
type progressResponse struct {
	*models.UserProgress
	NextLevelXP int `json:"next_level_xp"`
}
