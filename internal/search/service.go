package search

import (
	"context"

	"github.com/rs/zerolog"

	"arp/api/internal/section"
	"arp/api/internal/store"
)

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	meili    *Meili
	fallback Searcher
	log      zerolog.Logger
}

type recordLoader interface {
	LoadAllRecords(ctx context.Context) ([]SectionRecord, error)
}

// NewService creates a search service. meili may be nil if Meilisearch is not
// configured; fallback may be nil when there is no database.
func NewService(meili *Meili, fallback Searcher, logger zerolog.Logger) *Service {
	return &Service{meili: meili, fallback: fallback, log: logger.With().Str("component", "search").Logger()}
}

func (s *Service) meiliReady() bool {
	return s.meili != nil && s.meili.Healthy()
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.meiliReady() {
		results, total, err := s.meili.Search(ctx, q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		s.log.Warn().Err(err).Msg("meilisearch error, falling back to pgfts")
	}
	if s.fallback == nil {
		return Response{Results: []Result{}, Query: q.Text}
	}

	results, total, err := s.fallback.Search(ctx, q)
	if err != nil {
		s.log.Error().Err(err).Msg("pgfts error")
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexSections pushes the sections of ownerID to Meilisearch and drops the
// records of sections that were removed (fire-and-forget). The Postgres rows
// are written by the store in the save transaction.
func (s *Service) IndexSections(ownerID string, sections, removed []section.Section) {
	if !s.meiliReady() {
		return
	}
	records := RecordsFromRows(store.SearchRows(ownerID, sections))
	go func() {
		if err := s.meili.IndexSections(records); err != nil {
			s.log.Warn().Err(err).Str("owner", ownerID).Msg("index sections")
		}
		for _, sec := range removed {
			if err := s.meili.DeleteSection(RecordID(ownerID, sec.ID)); err != nil {
				s.log.Warn().Err(err).Str("section", sec.ID).Msg("delete section from index")
			}
		}
	}()
}

// ReindexAllFromPG reindexes every section row from PostgreSQL into Meilisearch.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	loader, ok := s.fallback.(recordLoader)
	if !s.meiliReady() || !ok {
		return
	}
	records, err := loader.LoadAllRecords(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("reindex load failed")
		return
	}
	if err := s.meili.IndexSections(records); err != nil {
		s.log.Error().Err(err).Msg("reindex sections")
		return
	}
	s.log.Info().Int("records", len(records)).Msg("reindexed sections")
}

// Removed returns the sections of before whose ids are missing from after.
func Removed(before, after []section.Section) []section.Section {
	keep := make(map[string]bool, len(after))
	for _, s := range after {
		keep[s.ID] = true
	}
	var out []section.Section
	for _, s := range before {
		if !keep[s.ID] {
			out = append(out, s)
		}
	}
	return out
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
