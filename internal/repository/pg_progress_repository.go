package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"narrative-server/internal/models"
	"narrative-server/pkg/database"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const (
	ensureProfileQuery = `
        INSERT INTO profiles (user_id, xp, level, updated_at)
        VALUES ($1, 0, 1, NOW())
        ON CONFLICT (user_id) DO NOTHING
    `
	getProfileForUpdateQuery = `SELECT user_id, xp, level, updated_at FROM profiles WHERE user_id = $1 FOR UPDATE`
	getProfileQuery          = `SELECT user_id, xp, level, updated_at FROM profiles WHERE user_id = $1`
	saveProfileQuery         = `UPDATE profiles SET xp = $2, level = $3, updated_at = $4 WHERE user_id = $1`
	appendLedgerQuery        = `INSERT INTO xp_ledger (id, user_id, amount, reason, created_at) VALUES ($1, $2, $3, $4, NOW())`
)

type pgProgressRepository struct {
	logger *zap.Logger
}

var _ ProgressRepository = (*pgProgressRepository)(nil)

// NewPgProgressRepository создает репозиторий опыта пользователей.
func NewPgProgressRepository(logger *zap.Logger) ProgressRepository {
	return &pgProgressRepository{logger: logger.Named("PgProgressRepo")}
}

func (r *pgProgressRepository) GetForUpdate(ctx context.Context, querier database.DBTX, userID uuid.UUID) (*models.UserProgress, error) {
	if _, err := querier.Exec(ctx, ensureProfileQuery, userID); err != nil {
		return nil, fmt.Errorf("ошибка создания профиля %s: %w", userID, err)
	}
	var progress models.UserProgress
	if err := pgxscan.Get(ctx, querier, &progress, getProfileForUpdateQuery, userID); err != nil {
		return nil, fmt.Errorf("ошибка блокировки профиля %s: %w", userID, err)
	}
	return &progress, nil
}

// Get возвращает нулевой прогресс первого уровня, если профиля еще нет.
func (r *pgProgressRepository) Get(ctx context.Context, querier database.DBTX, userID uuid.UUID) (*models.UserProgress, error) {
	var progress models.UserProgress
	if err := pgxscan.Get(ctx, querier, &progress, getProfileQuery, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &models.UserProgress{UserID: userID, Level: 1}, nil
		}
		return nil, fmt.Errorf("ошибка получения профиля %s: %w", userID, err)
	}
	return &progress, nil
}

func (r *pgProgressRepository) Save(ctx context.Context, querier database.DBTX, progress *models.UserProgress) error {
	progress.UpdatedAt = time.Now().UTC()
	tag, err := querier.Exec(ctx, saveProfileQuery, progress.UserID, progress.XP, progress.Level, progress.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to save progress", zap.String("userID", progress.UserID.String()), zap.Error(err))
		return fmt.Errorf("ошибка сохранения профиля: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *pgProgressRepository) AppendLedger(ctx context.Context, querier database.DBTX, userID uuid.UUID, amount int, reason string) error {
	if _, err := querier.Exec(ctx, appendLedgerQuery, uuid.New(), userID, amount, reason); err != nil {
		return fmt.Errorf("ошибка записи в xp_ledger: %w", err)
	}
	return nil
}
