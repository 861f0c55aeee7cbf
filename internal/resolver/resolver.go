// Package resolver сопоставляет имена из текста с каноническими сущностями истории.
//
// Сопоставление точное и регистронезависимое: "virat" == "Virat", но
// "Virat" != "Virat Asthana". Нормализация частичных имен - задача LLM.
package resolver

import (
	"context"
	"fmt"
	"strings"

	"narrative-server/internal/models"
	"narrative-server/internal/repository"
	"narrative-server/pkg/database"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Key нормализует имя для поиска.
func Key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Index - снимок имен сущностей одной истории на момент начала операции.
// Не потокобезопасен: каждая операция строит собственный индекс.
type Index struct {
	byName map[string]uuid.UUID
	ids    map[uuid.UUID]struct{}
	names  []string
}

// Build строит индекс. При совпадении имен выигрывает первая сущность.
func Build(refs []models.ElementRef) *Index {
	idx := &Index{
		byName: make(map[string]uuid.UUID, len(refs)),
		ids:    make(map[uuid.UUID]struct{}, len(refs)),
	}
	for _, ref := range refs {
		idx.Add(ref.Name, ref.ID)
	}
	return idx
}

// Resolve возвращает идентификатор сущности с таким именем.
func (i *Index) Resolve(name string) (uuid.UUID, bool) {
	key := Key(name)
	if key == "" {
		return uuid.Nil, false
	}
	id, ok := i.byName[key]
	return id, ok
}

// ResolveAll разрешает список имен. Неразрешенные имена не попадают в ids,
// а возвращаются отдельно. Дубликаты схлопываются.
func (i *Index) ResolveAll(names []string) (ids []uuid.UUID, unresolved []string) {
	ids = make([]uuid.UUID, 0, len(names))
	seen := make(map[uuid.UUID]struct{}, len(names))
	for _, name := range names {
		id, ok := i.Resolve(name)
		if !ok {
			if strings.TrimSpace(name) != "" {
				unresolved = append(unresolved, name)
			}
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, unresolved
}

// Add регистрирует сущность, созданную в рамках текущей операции.
// Уже известное имя не перезаписывается.
func (i *Index) Add(name string, id uuid.UUID) {
	key := Key(name)
	if key == "" {
		return
	}
	if _, exists := i.byName[key]; !exists {
		i.byName[key] = id
		i.names = append(i.names, strings.TrimSpace(name))
	}
	i.ids[id] = struct{}{}
}

// Contains сообщает, что сущность с таким ID есть в истории.
func (i *Index) Contains(id uuid.UUID) bool {
	_, ok := i.ids[id]
	return ok
}

// Len - количество известных имен.
func (i *Index) Len() int {
	return len(i.byName)
}

// Names возвращает имена в исходном написании в порядке добавления.
func (i *Index) Names() []string {
	out := make([]string, len(i.names))
	copy(out, i.names)
	return out
}

// Service строит индексы по данным хранилища.
type Service struct {
	elements repository.ElementRepository
	logger   *zap.Logger
}

// NewService создает сервис разрешения имен.
func NewService(elements repository.ElementRepository, logger *zap.Logger) *Service {
	return &Service{
		elements: elements,
		logger:   logger.Named("Resolver"),
	}
}

// ForStory загружает свежий индекс для истории. Индекс не кэшируется между запросами.
func (s *Service) ForStory(ctx context.Context, querier database.DBTX, storyID uuid.UUID) (*Index, error) {
	refs, err := s.elements.ListRefs(ctx, querier, storyID)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки сущностей для разрешения имен: %w", err)
	}
	s.logger.Debug("Resolver index built", zap.String("storyID", storyID.String()), zap.Int("elements", len(refs)))
	return Build(refs), nil
}
