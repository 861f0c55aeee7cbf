package models

import (
	"time"

	"github.com/google/uuid"
)

// Награды за действия пользователя.
const (
	XPForNarration  = 10
	XPForConfirmed  = 5
	ReasonNarration = "narration"
	ReasonConfirmed = "suggestion_confirmed"
)

// UserProgress - опыт и уровень пользователя.
type UserProgress struct {
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	XP        int       `json:"xp" db:"xp"`
	Level     int       `json:"level" db:"level"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// XPAward - итог начисления опыта.
type XPAward struct {
	NewXP     int  `json:"new_xp"`
	NewLevel  int  `json:"new_level"`
	LeveledUp bool `json:"leveled_up"`
}

// NextLevelThreshold - порог опыта для перехода на следующий уровень: (level+1)^2 * 100.
func NextLevelThreshold(level int) int {
	return (level + 1) * (level + 1) * 100
}

// ApplyXP начисляет опыт. Уровень растет не больше чем на один за начисление.
func (p UserProgress) ApplyXP(amount int) (UserProgress, XPAward) {
	level := p.Level
	if level < 1 {
		level = 1
	}
	next := p
	next.XP = p.XP + amount
	next.Level = level
	if next.XP >= NextLevelThreshold(level) {
		next.Level = level + 1
	}
	return next, XPAward{NewXP: next.XP, NewLevel: next.Level, LeveledUp: next.Level > level}
}
