package categorization

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Service fronts the keyword engine and job queue for the rest of the
// application: synchronous classification during statement normalization,
// fire-and-forget job dispatch after import, and the admin search
// diagnostics.
type Service struct {
	repo   *Repository
	engine *Engine
	index  *NarrationIndex
	logger *slog.Logger
}

// NewService builds a service around an engine seeded with the built-in
// keyword table. Call RefreshKeywords after startup to layer admin keywords
// on top.
func NewService(repo *Repository, index *NarrationIndex, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		engine: NewEngine(BuiltinKeywords()),
		index:  index,
		logger: logger,
	}
}

// Engine exposes the classifier for normalization-time category guesses.
func (s *Service) Engine() *Engine {
	return s.engine
}

// RefreshKeywords rebuilds the engine from the built-in table plus the
// admin-defined keywords, admin entries taking priority.
func (s *Service) RefreshKeywords(ctx context.Context) error {
	admin, err := s.repo.ListKeywords(ctx)
	if err != nil {
		return fmt.Errorf("load admin keywords: %w", err)
	}

	keywords := BuiltinKeywords()
	for _, kw := range admin {
		if kw.Priority <= 0 {
			kw.Priority = 100
		}
		keywords = append(keywords, kw)
	}
	s.engine.Build(keywords)

	s.logger.Info("categorization keywords refreshed",
		slog.Int("builtin", len(keywords)-len(admin)),
		slog.Int("admin", len(admin)))
	return nil
}

// EnqueueJob queues background categorization for a user's imported rows.
func (s *Service) EnqueueJob(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	return s.repo.Enqueue(ctx, userID)
}

// IndexNarrations feeds freshly imported narrations into the search index.
// Failures are logged and swallowed; the index is a diagnostic aid, never a
// reason to fail an import.
func (s *Service) IndexNarrations(docs []NarrationDocument) {
	if s.index == nil || len(docs) == 0 {
		return
	}
	if err := s.index.IndexBatch(docs); err != nil {
		s.logger.Warn("index narrations", slog.Any("error", err))
	}
}

// SimilarUncategorized surfaces uncategorized narrations resembling the
// query. Used by administrators while tuning keywords for a new bank.
func (s *Service) SimilarUncategorized(query string, limit int) ([]NarrationHit, error) {
	if s.index == nil {
		return nil, nil
	}
	return s.index.SimilarUncategorized(query, limit)
}

// NarrationGroups searches all indexed narrations for the query and collapses
// the hits into merchant groups, so "SWIGGY ORDER 4091" and "SWIGGY ORDER
// 5512" surface as one candidate keyword rather than two.
func (s *Service) NarrationGroups(query string, limit int) ([]NarrationGroup, error) {
	if s.index == nil {
		return nil, nil
	}
	hits, err := s.index.Similar(query, limit)
	if err != nil {
		return nil, err
	}
	narrations := make([]string, 0, len(hits))
	for _, h := range hits {
		narrations = append(narrations, h.Document.Narration)
	}
	return GroupSimilarNarrations(narrations, 0), nil
}
