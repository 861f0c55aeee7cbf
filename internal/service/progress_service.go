package service

import (
	"context"
	"fmt"

	"narrative-server/internal/models"
	"narrative-server/internal/repository"
	"narrative-server/pkg/database"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProgressService - опыт и уровни пользователя.
type ProgressService interface {
	AwardXP(ctx context.Context, userID uuid.UUID, amount int, reason string) (*models.XPAward, error)
	GetProgress(ctx context.Context, userID uuid.UUID) (*models.UserProgress, error)
}

type progressServiceImpl struct {
	db       database.DBTX
	tx       database.TxManager
	progress repository.ProgressRepository
	logger   *zap.Logger
}

// NewProgressService создает сервис прогресса.
func NewProgressService(db database.DBTX, tx database.TxManager, progress repository.ProgressRepository, logger *zap.Logger) ProgressService {
	return &progressServiceImpl{
		db:       db,
		tx:       tx,
		progress: progress,
		logger:   logger.Named("ProgressService"),
	}
}

// AwardXP начисляет опыт и пишет запись в журнал в одной транзакции.
func (s *progressServiceImpl) AwardXP(ctx context.Context, userID uuid.UUID, amount int, reason string) (*models.XPAward, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: xp amount must be positive", models.ErrInvalidInput)
	}

	var award models.XPAward
	err := s.tx.WithTransaction(ctx, func(ctx context.Context, tx database.DBTX) error {
		current, err := s.progress.GetForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		next, a := current.ApplyXP(amount)
		if err := s.progress.Save(ctx, tx, &next); err != nil {
			return err
		}
		if err := s.progress.AppendLedger(ctx, tx, userID, amount, reason); err != nil {
			return err
		}
		award = a
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка начисления опыта: %w", err)
	}

	log := s.logger.With(zap.String("userID", userID.String()), zap.String("reason", reason))
	if award.LeveledUp {
		log.Info("User leveled up", zap.Int("level", award.NewLevel), zap.Int("xp", award.NewXP))
	} else {
		log.Debug("XP awarded", zap.Int("amount", amount), zap.Int("xp", award.NewXP))
	}
	return &award, nil
}

func (s *progressServiceImpl) GetProgress(ctx context.Context, userID uuid.UUID) (*models.UserProgress, error) {
	p, err := s.progress.Get(ctx, s.db, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения прогресса: %w", err)
	}
	return p, nil
}
