// Package reflexion implements the failure-analysis cycle: scan recent
// interactions that drew negative feedback, ask the model what went
// wrong, and persist the lessons as reflections the agent will consult
// before similar situations.
package reflexion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"aide/internal/config"
	"aide/internal/llm"
	"aide/internal/memory"
)

// ErrCycleInProgress is returned when a cycle is started while another
// is still running. The caller should simply skip this round.
var ErrCycleInProgress = errors.New("reflexion cycle already in progress")

// CycleResult summarizes one reflexion run.
type CycleResult struct {
	InteractionsAnalyzed int
	LessonsStored        int
	LessonsDiscarded     int
}

// ConsolidationResult summarizes one consolidation pass.
type ConsolidationResult struct {
	Reviewed int
	Merged   int
	Pruned   int
}

// Engine runs the reflexion and consolidation cycles.
type Engine struct {
	mu     sync.Mutex
	store  *memory.Store
	client llm.Client
	cfg    config.ReflexionConfig
	log    *zap.Logger
}

// NewEngine wires the cycle to the store and the model.
func NewEngine(store *memory.Store, client llm.Client, cfg config.ReflexionConfig, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{store: store, client: client, cfg: cfg, log: log.Named("reflexion")}
}

// RunCycle analyzes recent problematic interactions in one batch and
// stores the extracted lessons atomically. Only one cycle runs at a
// time; a second caller gets ErrCycleInProgress rather than a queue.
// An empty batch is the healthy case, not an error.
func (e *Engine) RunCycle(ctx context.Context) (CycleResult, error) {
	if !e.mu.TryLock() {
		return CycleResult{}, ErrCycleInProgress
	}
	defer e.mu.Unlock()

	batch, err := e.store.ProblematicInteractions(e.cfg.LookbackHours, e.cfg.MaxInteractions)
	if err != nil {
		return CycleResult{}, fmt.Errorf("failed to load problematic interactions: %w", err)
	}
	if len(batch) == 0 {
		e.log.Debug("no problematic interactions, nothing to reflect on")
		return CycleResult{}, nil
	}

	e.log.Info("reflexion cycle starting", zap.Int("interactions", len(batch)))

	// A failing or incoherent model call costs this cycle its output,
	// nothing more. The same interactions are still in the lookback
	// window next time.
	raw, err := e.client.CompleteWithSystem(ctx, analysisSystemPrompt, buildAnalysisPrompt(batch))
	if err != nil {
		e.log.Warn("analysis call failed, no lessons this cycle", zap.Error(err))
		return CycleResult{}, nil
	}

	analyses, err := parseAnalyses(raw)
	if err != nil {
		e.log.Warn("unparseable analysis response, no lessons this cycle", zap.Error(err))
		return CycleResult{}, nil
	}

	result := CycleResult{InteractionsAnalyzed: len(batch)}
	reflections := make([]memory.Reflection, 0, len(analyses))
	for i, a := range analyses {
		if strings.TrimSpace(a.Lesson) == "" {
			result.LessonsDiscarded++
			continue
		}
		trigger := "negative feedback"
		if i < len(batch) {
			trigger = fmt.Sprintf("%s feedback: %s", batch[i].Feedback, truncate(batch[i].UserInput, 80))
		}
		reflections = append(reflections, memory.Reflection{
			Trigger:      trigger,
			WhatHappened: a.WhatHappened,
			WhyFailed:    a.WhyFailed,
			Lesson:       a.Lesson,
			NewApproach:  a.NewApproach,
		})
	}

	if len(reflections) > 0 {
		ids, err := e.store.StoreReflectionBatch(reflections)
		if err != nil {
			return CycleResult{}, fmt.Errorf("failed to persist lessons: %w", err)
		}
		result.LessonsStored = len(ids)
	}

	e.log.Info("reflexion cycle complete",
		zap.Int("analyzed", result.InteractionsAnalyzed),
		zap.Int("stored", result.LessonsStored),
		zap.Int("discarded", result.LessonsDiscarded))
	return result, nil
}

// analysis is one parsed entry of the model's response.
type analysis struct {
	WhatHappened string `json:"what_happened"`
	WhyFailed    string `json:"why_failed"`
	Lesson       string `json:"lesson"`
	NewApproach  string `json:"new_approach"`
}

// parseAnalyses decodes the model's JSON array, tolerating the
// markdown code fences models wrap JSON in despite instructions.
func parseAnalyses(raw string) ([]analysis, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	// Salvage the array if the model added prose around it.
	if start := strings.Index(cleaned, "["); start > 0 {
		if end := strings.LastIndex(cleaned, "]"); end > start {
			cleaned = cleaned[start : end+1]
		}
	}

	var out []analysis
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return nil, fmt.Errorf("invalid analysis JSON: %w", err)
	}
	return out, nil
}

// Consolidate reviews the stored reflections, merging near-duplicate
// lessons into the earliest one and pruning lessons too short to be
// actionable. Dedup is by token overlap; the model is not consulted.
func (e *Engine) Consolidate() (ConsolidationResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	refs, err := e.store.ListReflections(500)
	if err != nil {
		return ConsolidationResult{}, fmt.Errorf("failed to list reflections: %w", err)
	}

	result := ConsolidationResult{Reviewed: len(refs)}
	var doomed []int64

	// Walk most-applied first so that of two duplicate lessons the one
	// that has actually changed behavior survives; ties go to the
	// older lesson.
	sort.SliceStable(refs, func(i, j int) bool {
		if refs[i].AppliedCount != refs[j].AppliedCount {
			return refs[i].AppliedCount > refs[j].AppliedCount
		}
		return refs[i].CreatedAt.Before(refs[j].CreatedAt)
	})

	var kept []memory.Reflection
	for _, r := range refs {
		if len(strings.TrimSpace(r.Lesson)) < e.cfg.MinLessonLength {
			doomed = append(doomed, r.ID)
			result.Pruned++
			continue
		}
		dup := false
		for _, k := range kept {
			if tokenOverlap(r.Lesson, k.Lesson) >= e.cfg.DuplicateSimilarity {
				dup = true
				break
			}
		}
		if dup {
			doomed = append(doomed, r.ID)
			result.Merged++
			continue
		}
		kept = append(kept, r)
	}

	if len(doomed) > 0 {
		if err := e.store.DeleteReflections(doomed); err != nil {
			return ConsolidationResult{}, fmt.Errorf("failed to prune reflections: %w", err)
		}
	}

	e.log.Info("consolidation complete",
		zap.Int("reviewed", result.Reviewed),
		zap.Int("merged", result.Merged),
		zap.Int("pruned", result.Pruned))
	return result, nil
}

// tokenOverlap is the Jaccard similarity of the lowercased token sets
// of two lessons. Crude, but duplicates from repeated failures of the
// same kind share most of their words.
func tokenOverlap(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	inter := 0
	for tok := range setA {
		if setB[tok] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, f := range strings.Fields(strings.ToLower(s)) {
		f = strings.Trim(f, `.,!?:;"'()`)
		if f != "" {
			set[f] = true
		}
	}
	return set
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
