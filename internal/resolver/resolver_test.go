package resolver

import (
	"context"
	"errors"
	"testing"

	"narrative-server/internal/models"
	"narrative-server/internal/repository/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestIndexResolve(t *testing.T) {
	virat := uuid.New()
	mumbai := uuid.New()
	idx := Build([]models.ElementRef{
		{ID: virat, Name: "Virat", ElementType: models.ElementTypeCharacter},
		{ID: mumbai, Name: "  Mumbai ", ElementType: models.ElementTypeLocation},
	})

	t.Run("case insensitive exact match", func(t *testing.T) {
		id, ok := idx.Resolve("VIRAT")
		require.True(t, ok)
		assert.Equal(t, virat, id)

		id, ok = idx.Resolve("mumbai")
		require.True(t, ok)
		assert.Equal(t, mumbai, id)
	})

	t.Run("partial names do not match", func(t *testing.T) {
		_, ok := idx.Resolve("Virat Asthana")
		assert.False(t, ok)
	})

	t.Run("empty name never resolves", func(t *testing.T) {
		_, ok := idx.Resolve("   ")
		assert.False(t, ok)
	})

	assert.True(t, idx.Contains(virat))
	assert.False(t, idx.Contains(uuid.New()))
	assert.Equal(t, 2, idx.Len())
}

func TestIndexFirstWins(t *testing.T) {
	first := uuid.New()
	idx := Build([]models.ElementRef{
		{ID: first, Name: "Raven", ElementType: models.ElementTypeCharacter},
		{ID: uuid.New(), Name: "raven", ElementType: models.ElementTypeOrganization},
	})

	id, ok := idx.Resolve("Raven")
	require.True(t, ok)
	assert.Equal(t, first, id)
}

func TestIndexResolveAll(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	idx := Build([]models.ElementRef{{ID: a, Name: "Asha"}, {ID: b, Name: "Bilal"}})

	ids, unresolved := idx.ResolveAll([]string{"asha", "Ghost", "BILAL", "Asha", ""})

	assert.Equal(t, []uuid.UUID{a, b}, ids)
	assert.Equal(t, []string{"Ghost"}, unresolved)
}

func TestIndexAdd(t *testing.T) {
	idx := Build(nil)
	_, ok := idx.Resolve("Kiran")
	require.False(t, ok)

	id := uuid.New()
	idx.Add("Kiran", id)

	got, ok := idx.Resolve("kiran")
	require.True(t, ok)
	assert.Equal(t, id, got)
	assert.Contains(t, idx.Names(), "Kiran")
}

func TestServiceForStory(t *testing.T) {
	ctx := context.Background()
	storyID := uuid.New()

	t.Run("builds fresh index each call", func(t *testing.T) {
		repo := new(mocks.ElementRepository)
		id := uuid.New()
		repo.On("ListRefs", ctx, mock.Anything, storyID).
			Return([]models.ElementRef{{ID: id, Name: "Meera"}}, nil).Once()
		repo.On("ListRefs", ctx, mock.Anything, storyID).
			Return([]models.ElementRef{{ID: id, Name: "Meera"}, {ID: uuid.New(), Name: "Dev"}}, nil).Once()

		svc := NewService(repo, zap.NewNop())

		first, err := svc.ForStory(ctx, nil, storyID)
		require.NoError(t, err)
		assert.Equal(t, 1, first.Len())

		second, err := svc.ForStory(ctx, nil, storyID)
		require.NoError(t, err)
		assert.Equal(t, 2, second.Len())

		repo.AssertExpectations(t)
	})

	t.Run("repository error", func(t *testing.T) {
		repo := new(mocks.ElementRepository)
		dbErr := errors.New("connection reset")
		repo.On("ListRefs", ctx, mock.Anything, storyID).Return(nil, dbErr).Once()

		_, err := NewService(repo, zap.NewNop()).ForStory(ctx, nil, storyID)
		require.Error(t, err)
		assert.ErrorIs(t, err, dbErr)
	})
}
