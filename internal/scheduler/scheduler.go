package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mroshb/colony_engine/internal/services"
	"github.com/mroshb/colony_engine/pkg/errors"
	"github.com/mroshb/colony_engine/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Pass string

const (
	PassMissions     Pass = "missions"
	PassResearch     Pass = "research"
	PassProduction   Pass = "production"
	PassRegeneration Pass = "regeneration"
)

// Passes lists every pass in the order RunAll executes them.
func Passes() []Pass {
	return []Pass{PassMissions, PassResearch, PassProduction, PassRegeneration}
}

// Intervals sets how often each pass runs. A zero interval disables the pass.
type Intervals struct {
	Missions     time.Duration
	Research     time.Duration
	Production   time.Duration
	Regeneration time.Duration
}

func DefaultIntervals() Intervals {
	return Intervals{
		Missions:     time.Minute,
		Research:     time.Minute,
		Production:   time.Hour,
		Regeneration: 10 * time.Minute,
	}
}

func (i Intervals) of(p Pass) time.Duration {
	switch p {
	case PassMissions:
		return i.Missions
	case PassResearch:
		return i.Research
	case PassProduction:
		return i.Production
	case PassRegeneration:
		return i.Regeneration
	}
	return 0
}

// Scheduler drives the timed passes of an engine. Due checks use the
// engine's clock; the tickers only decide how often to look.
type Scheduler struct {
	engine    *services.Engine
	intervals Intervals
	log       *zap.SugaredLogger

	mu     sync.Mutex
	cancel context.CancelFunc
	group  *errgroup.Group
}

func New(engine *services.Engine, intervals Intervals) *Scheduler {
	return &Scheduler{
		engine:    engine,
		intervals: intervals,
		log:       logger.Named("scheduler"),
	}
}

// RunOnce executes a single pass synchronously.
func (s *Scheduler) RunOnce(ctx context.Context, pass Pass) (services.PassStats, error) {
	switch pass {
	case PassMissions:
		return s.engine.Missions.CompleteDue(ctx)
	case PassResearch:
		return s.engine.Research.CompleteDue(ctx)
	case PassProduction:
		return s.engine.Buildings.ProducePass(ctx)
	case PassRegeneration:
		return s.engine.Characters.RegeneratePass(ctx)
	}
	return services.PassStats{}, errors.Validation(fmt.Sprintf("unknown pass %q", pass))
}

// RunAll executes every pass once, stopping at the first pass-level error.
func (s *Scheduler) RunAll(ctx context.Context) (map[Pass]services.PassStats, error) {
	out := make(map[Pass]services.PassStats, len(Passes()))
	for _, p := range Passes() {
		stats, err := s.RunOnce(ctx, p)
		if err != nil {
			return out, fmt.Errorf("%s pass: %w", p, err)
		}
		out[p] = stats
	}
	return out, nil
}

// Start launches one goroutine per enabled pass. Each pass runs once right
// away so work that fell due while the process was down is picked up.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return fmt.Errorf("scheduler already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range Passes() {
		every := s.intervals.of(p)
		if every <= 0 {
			s.log.Infow("Pass disabled", "pass", p)
			continue
		}
		p := p
		g.Go(func() error {
			s.loop(gctx, p, every)
			return nil
		})
	}
	s.cancel = cancel
	s.group = g
	s.log.Infow("Scheduler started",
		"missions", s.intervals.Missions,
		"research", s.intervals.Research,
		"production", s.intervals.Production,
		"regeneration", s.intervals.Regeneration,
	)
	return nil
}

// Stop cancels every pass and waits for in-flight work to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, g := s.cancel, s.group
	s.cancel, s.group = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	_ = g.Wait()
	s.log.Infow("Scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, pass Pass, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	s.tick(ctx, pass)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, pass)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, pass Pass) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorw("Panic in scheduler pass", "pass", pass, "error", r)
		}
	}()

	started := time.Now()
	stats, err := s.RunOnce(ctx, pass)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.log.Errorw("Scheduler pass failed", "pass", pass, "error", err)
		return
	}
	if stats == (services.PassStats{}) {
		return
	}
	s.log.Infow("Scheduler pass finished",
		"pass", pass,
		"processed", stats.Processed,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
		"took", time.Since(started),
	)
}
