package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"aide/internal/reflexion"
)

// lastConsolidatedKey is the settings key tracking when the reflexion
// consolidation pass last ran.
const lastConsolidatedKey = "nightly.last_consolidated_at"

// nightlyTimeout bounds one maintenance run end to end.
const nightlyTimeout = 5 * time.Minute

// NightlySummary reports what one maintenance cycle did.
type NightlySummary struct {
	Duration           time.Duration
	Reflexion          reflexion.CycleResult
	SuggestionsExpired int
	OverduePredictions int
	Consolidated       bool
	Consolidation      reflexion.ConsolidationResult
}

// RunNightlyCycle performs the maintenance pass: reflexion over
// yesterday's failures, suggestion expiry, and a sweep for forecasts
// past their deadline. The parts are independent and run concurrently;
// one failing leg does not stop the others, but the first error is
// reported. Consolidation piggybacks on the cycle every few days.
func (o *Orchestrator) RunNightlyCycle(ctx context.Context) (NightlySummary, error) {
	start := time.Now()
	o.log.Info("nightly cycle starting")

	var summary NightlySummary
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		res, err := o.reflexion.RunCycle(gctx)
		if err != nil {
			if errors.Is(err, reflexion.ErrCycleInProgress) {
				o.log.Warn("reflexion cycle already running, skipping")
				return nil
			}
			return fmt.Errorf("reflexion leg: %w", err)
		}
		summary.Reflexion = res
		return nil
	})

	g.Go(func() error {
		n, err := o.proactive.ExpireStale()
		if err != nil {
			return fmt.Errorf("suggestion expiry leg: %w", err)
		}
		summary.SuggestionsExpired = n
		return nil
	})

	g.Go(func() error {
		overdue, err := o.store.OverduePredictions(time.Now())
		if err != nil {
			return fmt.Errorf("prediction sweep leg: %w", err)
		}
		summary.OverduePredictions = len(overdue)
		for _, p := range overdue {
			o.log.Info("prediction overdue, needs resolution",
				zap.Int64("id", p.ID),
				zap.String("prediction", p.Text),
				zap.String("domain", p.Domain))
		}
		return nil
	})

	err := g.Wait()

	if err == nil && o.consolidationDue() {
		res, cerr := o.reflexion.Consolidate()
		if cerr != nil {
			o.log.Error("consolidation failed", zap.Error(cerr))
		} else {
			summary.Consolidated = true
			summary.Consolidation = res
			if serr := o.store.SetSetting(lastConsolidatedKey, time.Now().UTC().Format(time.RFC3339)); serr != nil {
				o.log.Error("failed to record consolidation time", zap.Error(serr))
			}
		}
	}

	summary.Duration = time.Since(start)
	o.log.Info("nightly cycle finished",
		zap.Duration("duration", summary.Duration),
		zap.Int("lessons_stored", summary.Reflexion.LessonsStored),
		zap.Int("suggestions_expired", summary.SuggestionsExpired),
		zap.Int("overdue_predictions", summary.OverduePredictions),
		zap.Bool("consolidated", summary.Consolidated),
		zap.Error(err))
	return summary, err
}

// consolidationDue reports whether enough days have passed since the
// last consolidation pass. A missing or unparseable marker means due.
func (o *Orchestrator) consolidationDue() bool {
	every := o.cfg.Nightly.ConsolidateEveryDays
	if every <= 0 {
		return false
	}
	raw, err := o.store.GetSetting(lastConsolidatedKey)
	if err != nil || raw == "" {
		return true
	}
	last, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return true
	}
	return time.Since(last) >= time.Duration(every)*24*time.Hour
}

// StartScheduler begins the cron-driven nightly cycle. Calling it
// twice is a no-op.
func (o *Orchestrator) StartScheduler() error {
	if o.cron != nil {
		return nil
	}

	c := cron.New()
	_, err := c.AddFunc(o.cfg.Nightly.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), nightlyTimeout)
		defer cancel()
		if _, err := o.RunNightlyCycle(ctx); err != nil {
			o.log.Error("scheduled nightly cycle failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid nightly schedule %q: %w", o.cfg.Nightly.Schedule, err)
	}

	c.Start()
	o.cron = c
	o.log.Info("nightly scheduler started", zap.String("schedule", o.cfg.Nightly.Schedule))
	return nil
}

// StopScheduler stops the cron loop and waits for a running job to
// finish.
func (o *Orchestrator) StopScheduler() {
	if o.cron == nil {
		return
	}
	<-o.cron.Stop().Done()
	o.cron = nil
	o.log.Info("nightly scheduler stopped")
}
