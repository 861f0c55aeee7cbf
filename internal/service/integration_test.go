//go:build integration

package service_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"narrative-server/internal/database"
	"narrative-server/internal/extraction"
	"narrative-server/internal/messaging"
	"narrative-server/internal/models"
	"narrative-server/internal/repository"
	"narrative-server/internal/resolver"
	"narrative-server/internal/service"
	pgdb "narrative-server/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

// scriptedExtractor возвращает заранее заданный результат для текста наррации.
type scriptedExtractor struct {
	mu      sync.Mutex
	results map[string]*models.ExtractionResult
}

func (e *scriptedExtractor) set(narration string, result *models.ExtractionResult) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.results[narration] = result
}

func (e *scriptedExtractor) Extract(_ context.Context, narration string, _ extraction.Context) (*models.ExtractionResult, json.RawMessage, error) {
	e.mu.Lock()
	result, ok := e.results[narration]
	e.mu.Unlock()
	if !ok {
		return nil, nil, models.ErrExtractionFailed
	}
	raw, _ := json.Marshal(result)
	return result, raw, nil
}

func (e *scriptedExtractor) ListenerResponse(context.Context, string, []models.EventSummary) string {
	return "Go on."
}

func (e *scriptedExtractor) Brainstorm(context.Context, []string, []models.EventSummary) []models.ThemeOption {
	return nil
}

func (e *scriptedExtractor) Dialogue(context.Context, string, models.ElementAttributes, string, []models.EventSummary) string {
	return ""
}

type ReconciliationSuite struct {
	suite.Suite
	pgContainer *postgres.PostgresContainer
	pool        *pgxpool.Pool
	extractor   *scriptedExtractor

	stories     service.StoryService
	narrations  service.NarrationService
	suggestions service.SuggestionService
	world       service.WorldService

	elementRepo repository.ElementRepository
	mentionRepo repository.MentionRepository
	userID      uuid.UUID
}

func (s *ReconciliationSuite) SetupSuite() {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("narrative"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(3*time.Minute),
		),
	)
	s.Require().NoError(err)
	s.pgContainer = pgContainer

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)
	pool, err := pgxpool.New(ctx, connStr)
	s.Require().NoError(err)
	s.pool = pool

	s.Require().NoError(database.NewMigrator(pool, zap.NewNop()).Up())

	log := zap.NewNop()
	tx := pgdb.NewTransactionHelper(pool, log)
	storyRepo := repository.NewPgStoryRepository(log)
	narrationRepo := repository.NewPgNarrationRepository(log)
	s.elementRepo = repository.NewPgElementRepository(log)
	s.mentionRepo = repository.NewPgMentionRepository(log)
	momentRepo := repository.NewPgMomentRepository(log)
	connectionRepo := repository.NewPgConnectionRepository(log)
	suggestionRepo := repository.NewPgSuggestionRepository(log)
	progress := service.NewProgressService(pool, tx, repository.NewPgProgressRepository(log), log)
	res := resolver.NewService(s.elementRepo, log)
	s.extractor = &scriptedExtractor{results: map[string]*models.ExtractionResult{}}

	s.stories = service.NewStoryService(pool, storyRepo, log)
	s.narrations = service.NewNarrationService(service.NarrationDeps{
		DB: pool, Tx: tx, Stories: storyRepo, Narrations: narrationRepo, Moments: momentRepo,
		Resolver: res, Extractor: s.extractor, Stager: service.NewStager(tx, suggestionRepo, log),
		Progress: progress, Publisher: messaging.NoopPublisher{},
	}, log)
	s.suggestions = service.NewSuggestionService(service.SuggestionDeps{
		DB: pool, Tx: tx, Stories: storyRepo, Narrations: narrationRepo, Suggestions: suggestionRepo,
		Elements: s.elementRepo, Mentions: s.mentionRepo, Moments: momentRepo, Connections: connectionRepo,
		Resolver: res, Progress: progress, Publisher: messaging.NoopPublisher{},
	}, log)
	s.world = service.NewWorldService(service.WorldDeps{
		DB: pool, Tx: tx, Stories: storyRepo, Elements: s.elementRepo, Mentions: s.mentionRepo,
		Moments: momentRepo, Connections: connectionRepo, Extractor: s.extractor,
	}, log)
	s.userID = uuid.New()
}

func (s *ReconciliationSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.pgContainer != nil {
		s.Require().NoError(s.pgContainer.Terminate(context.Background()))
	}
}

func (s *ReconciliationSuite) newStory() uuid.UUID {
	title := fmt.Sprintf("story-%s", uuid.NewString()[:8])
	story, err := s.stories.CreateStory(context.Background(), s.userID, &title, nil)
	s.Require().NoError(err)
	return story.ID
}

func (s *ReconciliationSuite) pendingByType(storyID uuid.UUID, t models.SuggestionType) []models.PendingSuggestion {
	pending, err := s.suggestions.ListPending(context.Background(), s.userID, storyID)
	s.Require().NoError(err)
	var out []models.PendingSuggestion
	for _, p := range pending {
		if p.SuggestionType == t {
			out = append(out, p)
		}
	}
	return out
}

func (s *ReconciliationSuite) confirmNamed(storyID uuid.UUID, name string) *models.ConfirmResult {
	for _, p := range s.pendingByType(storyID, models.SuggestionTypeElement) {
		var payload models.ElementSuggestion
		s.Require().NoError(json.Unmarshal(p.SuggestedData, &payload))
		if payload.Name == name {
			result, err := s.suggestions.Confirm(context.Background(), s.userID, p.ID)
			s.Require().NoError(err)
			return result
		}
	}
	s.FailNow("pending element suggestion not found", name)
	return nil
}

func (s *ReconciliationSuite) addMillNarration(storyID uuid.UUID) {
	s.extractor.set("Mira meets Jon at the old mill", &models.ExtractionResult{
		Characters:  []models.ExtractedEntity{{Name: "Mira"}, {Name: "Jon"}},
		Locations:   []models.ExtractedEntity{{Name: "old mill"}},
		Connections: []models.ExtractedConnection{{From: "Mira", To: "Jon", Type: "meets"}},
	})

	result, err := s.narrations.AddNarration(context.Background(), s.userID, storyID, "Mira meets Jon at the old mill")
	s.Require().NoError(err)
	s.Equal(models.NarrationStatusSuggestionsPending, result.Status)
	s.Equal(4, result.Staged)
	s.Len(s.pendingByType(storyID, models.SuggestionTypeElement), 3)
	s.Len(s.pendingByType(storyID, models.SuggestionTypeConnection), 1)
}

func (s *ReconciliationSuite) TestScenarioA_NewWorld() {
	ctx := context.Background()
	storyID := s.newStory()
	s.addMillNarration(storyID)

	mira := s.confirmNamed(storyID, "Mira")
	jon := s.confirmNamed(storyID, "Jon")
	mill := s.confirmNamed(storyID, "old mill")
	for _, r := range []*models.ConfirmResult{mira, jon, mill} {
		s.True(r.Materialized)
		s.Require().NotNil(r.CanonicalID)
	}

	conn := s.pendingByType(storyID, models.SuggestionTypeConnection)
	s.Require().Len(conn, 1)
	connResult, err := s.suggestions.Confirm(ctx, s.userID, conn[0].ID)
	s.Require().NoError(err)
	s.True(connResult.Materialized)
	s.Require().NotNil(connResult.CanonicalID)

	elements, err := s.world.Elements(ctx, s.userID, storyID)
	s.Require().NoError(err)
	s.Len(elements, 3)

	mentions, err := s.world.Mentions(ctx, s.userID, storyID)
	s.Require().NoError(err)
	s.Len(mentions, 3)

	edges, err := s.world.Connections(ctx, s.userID, storyID)
	s.Require().NoError(err)
	s.Require().Len(edges, 1)
	s.Equal(*mira.CanonicalID, edges[0].FromID)
	s.Equal(*jon.CanonicalID, edges[0].ToID)
	s.Equal(*connResult.CanonicalID, edges[0].ID)

	s.Empty(s.pendingByType(storyID, models.SuggestionTypeElement))
	s.Empty(s.pendingByType(storyID, models.SuggestionTypeConnection))
}

func (s *ReconciliationSuite) TestUnresolvedConnectionIsAcceptedWithoutEdge() {
	ctx := context.Background()
	storyID := s.newStory()
	s.addMillNarration(storyID)

	mira := s.confirmNamed(storyID, "Mira")
	s.True(mira.Materialized)
	s.Require().NotNil(mira.CanonicalID)

	// Jon еще не канон: связь принимается без ребра
	conn := s.pendingByType(storyID, models.SuggestionTypeConnection)
	s.Require().Len(conn, 1)
	connResult, err := s.suggestions.Confirm(ctx, s.userID, conn[0].ID)
	s.Require().NoError(err)
	s.False(connResult.Materialized)

	mentions, err := s.mentionRepo.ListByElement(ctx, s.pool, *mira.CanonicalID)
	s.Require().NoError(err)
	s.Len(mentions, 1)

	edges, err := s.world.Connections(ctx, s.userID, storyID)
	s.Require().NoError(err)
	s.Empty(edges)
}

func (s *ReconciliationSuite) TestScenarioB_KnownNameIsNotDuplicated() {
	ctx := context.Background()
	storyID := s.newStory()
	s.extractor.set("Mira arrives", &models.ExtractionResult{Characters: []models.ExtractedEntity{{Name: "Mira"}}})
	s.extractor.set("MIRA leaves", &models.ExtractionResult{Characters: []models.ExtractedEntity{{Name: "MIRA"}}})

	_, err := s.narrations.AddNarration(ctx, s.userID, storyID, "Mira arrives")
	s.Require().NoError(err)
	first := s.confirmNamed(storyID, "Mira")

	_, err = s.narrations.AddNarration(ctx, s.userID, storyID, "MIRA leaves")
	s.Require().NoError(err)
	second := s.confirmNamed(storyID, "MIRA")
	s.Equal(*first.CanonicalID, *second.CanonicalID)

	elements, err := s.world.Elements(ctx, s.userID, storyID)
	s.Require().NoError(err)
	s.Len(elements, 1)

	mentions, err := s.mentionRepo.ListByElement(ctx, s.pool, *first.CanonicalID)
	s.Require().NoError(err)
	s.Len(mentions, 2)
}

func (s *ReconciliationSuite) TestScenarioC_ExtractionFailureKeepsNarration() {
	ctx := context.Background()
	storyID := s.newStory()

	result, err := s.narrations.AddNarration(ctx, s.userID, storyID, "unscripted text")
	s.Require().NoError(err)
	s.Equal(models.NarrationStatusRaw, result.Status)
	s.Zero(result.Staged)

	narrations, err := s.narrations.ListNarrations(ctx, s.userID, storyID)
	s.Require().NoError(err)
	s.Len(narrations, 1)
}

func (s *ReconciliationSuite) TestSequencesHaveNoGaps() {
	ctx := context.Background()
	storyID := s.newStory()

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.narrations.AddNarration(ctx, s.userID, storyID, fmt.Sprintf("line %d", i))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.Require().NoError(err)
	}

	narrations, err := s.narrations.ListNarrations(ctx, s.userID, storyID)
	s.Require().NoError(err)
	s.Require().Len(narrations, n)
	seqs := make([]int, 0, n)
	for _, nr := range narrations {
		seqs = append(seqs, nr.SequenceNumber)
	}
	sort.Ints(seqs)
	for i, seq := range seqs {
		s.Equal(i, seq)
	}
}

func (s *ReconciliationSuite) TestRejectAndRevert() {
	ctx := context.Background()
	storyID := s.newStory()
	s.extractor.set("Kiran and the Guild", &models.ExtractionResult{
		Characters:    []models.ExtractedEntity{{Name: "Kiran"}},
		Organizations: []models.ExtractedEntity{{Name: "Guild"}},
	})
	_, err := s.narrations.AddNarration(ctx, s.userID, storyID, "Kiran and the Guild")
	s.Require().NoError(err)

	var guildID uuid.UUID
	for _, p := range s.pendingByType(storyID, models.SuggestionTypeElement) {
		var payload models.ElementSuggestion
		s.Require().NoError(json.Unmarshal(p.SuggestedData, &payload))
		if payload.Name == "Guild" {
			guildID = p.ID
		}
	}
	s.Require().NotEqual(uuid.Nil, guildID)
	s.Require().NoError(s.suggestions.Reject(ctx, s.userID, guildID))
	s.Require().NoError(s.suggestions.Reject(ctx, s.userID, guildID))

	kiran := s.confirmNamed(storyID, "Kiran")
	revert, err := s.suggestions.RevertElement(ctx, s.userID, *kiran.CanonicalID)
	s.Require().NoError(err)
	s.Contains(revert.SuggestionIDs, kiran.ID)

	elements, err := s.world.Elements(ctx, s.userID, storyID)
	s.Require().NoError(err)
	s.Empty(elements)
	s.Len(s.pendingByType(storyID, models.SuggestionTypeElement), 1, "Kiran is pending again, Guild stays rejected")
}

func (s *ReconciliationSuite) TestForeignUserSeesNothing() {
	storyID := s.newStory()
	_, err := s.stories.GetStory(context.Background(), uuid.New(), storyID)
	s.ErrorIs(err, models.ErrNotFound)
}

func TestReconciliationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(ReconciliationSuite))
}
