package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// DBTX - общий интерфейс для *pgxpool.Pool и pgx.Tx.
// Begin на pgx.Tx открывает SAVEPOINT.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Begin(ctx context.Context) (pgx.Tx, error)
}

// TxFunc - работа внутри транзакции.
type TxFunc func(ctx context.Context, tx DBTX) error

// TxManager управляет транзакциями. Сервисы зависят от интерфейса, чтобы
// в тестах транзакцию можно было подменить.
type TxManager interface {
	// WithTransaction выполняет fn в транзакции с rollback при ошибке или панике.
	WithTransaction(ctx context.Context, fn TxFunc) error
	// WithSavepoint выполняет fn во вложенной транзакции (SAVEPOINT) внутри tx.
	// Ошибка fn откатывает только savepoint.
	WithSavepoint(ctx context.Context, tx DBTX, fn TxFunc) error
}

// TransactionHelper - реализация TxManager поверх пула.
type TransactionHelper struct {
	db     DBTX
	logger *zap.Logger
}

var _ TxManager = (*TransactionHelper)(nil)

// NewTransactionHelper создает помощник транзакций.
func NewTransactionHelper(db DBTX, logger *zap.Logger) *TransactionHelper {
	return &TransactionHelper{
		db:     db,
		logger: logger.Named("TxHelper"),
	}
}

// WithTransaction выполняет функцию в транзакции с автоматическим rollback при ошибке.
func (h *TransactionHelper) WithTransaction(ctx context.Context, fn TxFunc) error {
	return h.run(ctx, h.db, "transaction", fn)
}

// WithSavepoint выполняет функцию во вложенной транзакции.
func (h *TransactionHelper) WithSavepoint(ctx context.Context, tx DBTX, fn TxFunc) error {
	return h.run(ctx, tx, "savepoint", fn)
}

func (h *TransactionHelper) run(ctx context.Context, parent DBTX, kind string, fn TxFunc) (err error) {
	tx, err := parent.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin %s: %w", kind, err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
				h.logger.Error("Failed to rollback after panic",
					zap.String("kind", kind),
					zap.Error(rollbackErr),
					zap.Any("panic", p))
			}
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
			h.logger.Error("Failed to rollback",
				zap.String("kind", kind),
				zap.Error(rollbackErr),
				zap.NamedError("original_error", err))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit %s: %w", kind, err)
	}
	return nil
}
