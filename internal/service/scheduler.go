package service

import (
	"context"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/freeeve/qdice/internal/bot"
	"github.com/freeeve/qdice/pkg/dice"
)

// SchedulerConfig controls the periodic table tick.
type SchedulerConfig struct {
	Interval      time.Duration
	WatcherMaxAge time.Duration
	Bot           bot.TickConfig
	Parallelism   int
}

// DefaultSchedulerConfig ticks every 500ms.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval:      500 * time.Millisecond,
		WatcherMaxAge: 30 * time.Second,
		Bot:           bot.DefaultTickConfig(),
		Parallelism:   4,
	}
}

// Scheduler drives time-based transitions: game starts, turn timeouts,
// overdue attack rolls, bot turns and bot seating. A failure at one table
// is logged and never affects the others.
type Scheduler struct {
	svc       *TableService
	cfg       SchedulerConfig
	lastInfos []dice.TableInfo
}

// NewScheduler creates a Scheduler.
func NewScheduler(svc *TableService, cfg SchedulerConfig) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 500 * time.Millisecond
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 1
	}
	return &Scheduler{svc: svc, cfg: cfg}
}

// Start ticks until ctx is canceled.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	log.Info().Dur("interval", s.cfg.Interval).Int("tables", len(s.svc.Tags())).Msg("Table scheduler started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Table scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one pass over every table, then republishes the global table
// list if it changed.
func (s *Scheduler) Tick(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Parallelism)
	for _, tag := range s.svc.Tags() {
		g.Go(func() error {
			s.tickTable(gctx, tag)
			return nil
		})
	}
	_ = g.Wait()
	s.publishInfos(ctx)
}

type tickStep struct {
	name string
	fn   stepFunc
}

func (s *Scheduler) steps() []tickStep {
	eng := s.svc.engine
	overdue := s.svc.attackDelay + s.cfg.Interval
	return []tickStep{
		{"prune", func(t *dice.Table, now time.Time) (*dice.CommandResult, error) {
			return eng.PruneWatchers(t, now, s.cfg.WatcherMaxAge), nil
		}},
		{"start", func(t *dice.Table, now time.Time) (*dice.CommandResult, error) {
			if !eng.ShouldStart(t, now) {
				return nil, nil
			}
			return eng.StartGame(t, now)
		}},
		{"seats", func(t *dice.Table, now time.Time) (*dice.CommandResult, error) {
			cmd := bot.FillSeats(t, now, s.cfg.Bot)
			if cmd == nil {
				return nil, nil
			}
			return eng.Execute(t, *cmd, now)
		}},
		{"attack", func(t *dice.Table, now time.Time) (*dice.CommandResult, error) {
			if t.Attack == nil || now.Sub(t.Attack.Start) < overdue {
				return nil, nil
			}
			return eng.Resolve(t, t.Attack.ID, now)
		}},
		{"timeout", func(t *dice.Table, now time.Time) (*dice.CommandResult, error) {
			if !eng.TurnExpired(t, now) {
				return nil, nil
			}
			return eng.Timeout(t, now)
		}},
		{"bot", func(t *dice.Table, now time.Time) (*dice.CommandResult, error) {
			if t.Status != dice.StatusPlaying || t.TurnIndex < 0 || t.TurnIndex >= len(t.Players) ||
				!t.Players[t.TurnIndex].IsBot() {
				return nil, nil
			}
			cmd, err := bot.TickTurn(t, now, s.cfg.Bot)
			if err != nil || cmd == nil {
				return nil, err
			}
			return eng.Execute(t, *cmd, now)
		}},
	}
}

// tickTable runs the steps in order. Once watchers are pruned, a finished
// table without players has nothing left to schedule.
func (s *Scheduler) tickTable(ctx context.Context, tag string) {
	for i, step := range s.steps() {
		if ctx.Err() != nil {
			return
		}
		t, err := s.svc.update(ctx, tag, step.fn)
		if err != nil {
			log.Error().Err(err).Str("tag", tag).Str("step", step.name).Msg("Table tick failed")
			continue
		}
		if i == 0 && idle(t) {
			return
		}
	}
}

func idle(t *dice.Table) bool {
	return t != nil && t.Status == dice.StatusFinished && len(t.Players) == 0
}

func (s *Scheduler) publishInfos(ctx context.Context) {
	tables, err := s.svc.Tables(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list tables for global status")
		return
	}
	infos := dice.Infos(tables)
	if cmp.Equal(infos, s.lastInfos) {
		return
	}
	s.lastInfos = infos
	ev := dice.Event{Type: dice.EventTables, Payload: infos}
	if err := s.svc.publisher.Publish(ctx, GlobalTopic, ev); err != nil {
		log.Error().Err(err).Msg("Publish global status failed")
	}
}
