package memory

import (
	"errors"
	"strings"
	"unicode"

	"go.uber.org/zap"
)

// BuildContext assembles the memory relevant to one query: entities
// named in it, facts matching it, applicable lessons, and recent
// history. Retrieval is best-effort; a failing section is logged and
// left empty rather than failing the whole bundle, because a response
// with partial context beats no response.
func (s *Store) BuildContext(query string) ContextBundle {
	bundle := ContextBundle{Query: query}

	for _, name := range extractEntityNames(query) {
		e, err := s.GetEntity(name)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				s.log.Warn("entity lookup failed", zap.String("name", name), zap.Error(err))
			}
			continue
		}
		bundle.Entities = append(bundle.Entities, *e)

		facts, err := s.FactsForEntity(e.Name)
		if err != nil {
			s.log.Warn("entity facts lookup failed", zap.String("name", e.Name), zap.Error(err))
			continue
		}
		bundle.Facts = append(bundle.Facts, facts...)
	}

	facts, err := s.SearchFacts(query)
	if err != nil {
		s.log.Warn("fact search failed", zap.Error(err))
	} else {
		bundle.Facts = mergeFacts(bundle.Facts, facts, s.searchLimit())
	}

	refs, err := s.RelevantReflections(query, 3)
	if err != nil {
		s.log.Warn("reflection retrieval failed", zap.Error(err))
	} else {
		bundle.Reflections = refs
	}

	recent, err := s.RecentInteractions(s.cfg.RecentInteractions)
	if err != nil {
		s.log.Warn("recent interactions lookup failed", zap.Error(err))
	} else {
		bundle.RecentInteractions = recent
	}

	return bundle
}

// extractEntityNames pulls candidate entity names out of free text by
// capitalization, joining adjacent capitalized words ("Acme Corp")
// into one candidate. The first word of the text only counts when it
// is part of a longer run, since English capitalizes it regardless.
func extractEntityNames(text string) []string {
	words := strings.Fields(text)
	var names []string
	var run []string
	flush := func(startIdx int) {
		if len(run) == 0 {
			return
		}
		if startIdx == 0 && len(run) == 1 {
			run = nil
			return
		}
		names = append(names, strings.Join(run, " "))
		run = nil
	}

	runStart := -1
	for i, w := range words {
		trimmed := strings.TrimFunc(w, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if trimmed != "" && unicode.IsUpper([]rune(trimmed)[0]) {
			if len(run) == 0 {
				runStart = i
			}
			run = append(run, trimmed)
			continue
		}
		flush(runStart)
	}
	flush(runStart)

	// Dedupe while keeping order.
	seen := make(map[string]bool, len(names))
	out := names[:0]
	for _, n := range names {
		if n == "I" {
			continue
		}
		key := strings.ToLower(n)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, n)
	}
	return out
}

// mergeFacts appends search hits to entity facts without duplicates,
// capped at limit.
func mergeFacts(base, extra []Fact, limit int) []Fact {
	seen := make(map[int64]bool, len(base))
	for _, f := range base {
		seen[f.ID] = true
	}
	for _, f := range extra {
		if seen[f.ID] {
			continue
		}
		seen[f.ID] = true
		base = append(base, f)
	}
	if limit > 0 && len(base) > limit {
		base = base[:limit]
	}
	return base
}
