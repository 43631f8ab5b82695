package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/qdice/internal/model"
	"github.com/freeeve/qdice/internal/repository"
	"github.com/freeeve/qdice/pkg/dice"
)

// Options configures a TableService. Store and Engine are required.
type Options struct {
	Configs     []dice.Config
	Store       repository.TableRepository
	Users       repository.UserRepository // optional: score accrual
	Chat        repository.ChatLog        // optional: chat history
	Engine      *dice.Engine
	Publisher   Publisher
	AttackDelay time.Duration
	VerifyRate  float64   // share of cached reads re-checked against the store
	Rand        dice.Rand // drives VerifyRate sampling
	Now         func() time.Time
}

// TableService is the entry point for table commands. It caches tables in
// memory over the store and serializes every mutation per table.
type TableService struct {
	configs     map[string]dice.Config
	tags        []string
	store       repository.TableRepository
	users       repository.UserRepository
	chat        repository.ChatLog
	engine      *dice.Engine
	publisher   Publisher
	attackDelay time.Duration
	verifyRate  float64
	rng         dice.Rand
	now         func() time.Time

	mu    sync.RWMutex
	cache map[string]*dice.Table

	// tableLocks holds one mutex per tag; commands, timers and ticks for a
	// table never interleave.
	tableLocks sync.Map

	attacks *attackTimers
}

// NewTableService creates a TableService.
func NewTableService(opts Options) *TableService {
	s := &TableService{
		configs:     make(map[string]dice.Config, len(opts.Configs)),
		store:       opts.Store,
		users:       opts.Users,
		chat:        opts.Chat,
		engine:      opts.Engine,
		publisher:   opts.Publisher,
		attackDelay: opts.AttackDelay,
		verifyRate:  opts.VerifyRate,
		rng:         opts.Rand,
		now:         opts.Now,
		cache:       make(map[string]*dice.Table),
		attacks:     newAttackTimers(),
	}
	for _, c := range opts.Configs {
		if _, dup := s.configs[c.Tag]; !dup {
			s.tags = append(s.tags, c.Tag)
		}
		s.configs[c.Tag] = c
	}
	if s.publisher == nil {
		s.publisher = NoopPublisher{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.rng == nil {
		s.rng = dice.NewRand(uint64(time.Now().UnixNano()))
	}
	return s
}

// Tags lists the configured table tags in configuration order.
func (s *TableService) Tags() []string {
	return append([]string(nil), s.tags...)
}

// Engine returns the rules engine.
func (s *TableService) Engine() *dice.Engine { return s.engine }

// Stop cancels pending attack timers.
func (s *TableService) Stop() {
	s.attacks.stopAll()
}

func (s *TableService) tableLock(tag string) *sync.Mutex {
	v, _ := s.tableLocks.LoadOrStore(tag, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// Get returns a copy of the table with the given tag, creating it from its
// configuration on first access.
func (s *TableService) Get(ctx context.Context, tag string) (*dice.Table, error) {
	t, err := s.load(ctx, tag)
	if err != nil {
		return nil, err
	}
	return t.Clone(), nil
}

// Tables returns copies of every configured table. Misconfigured tables
// are logged and left out.
func (s *TableService) Tables(ctx context.Context) ([]*dice.Table, error) {
	out := make([]*dice.Table, 0, len(s.tags))
	for _, tag := range s.tags {
		t, err := s.Get(ctx, tag)
		var cfgErr *dice.ConfigurationError
		if errors.As(err, &cfgErr) {
			log.Error().Err(err).Str("tag", tag).Msg("Skipping misconfigured table")
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// load reads through the cache. A sampled share of cached reads are
// compared with the store; on drift the cache is kept and a warning logged.
func (s *TableService) load(ctx context.Context, tag string) (*dice.Table, error) {
	s.mu.RLock()
	cached, ok := s.cache[tag]
	s.mu.RUnlock()
	if ok {
		if s.verifyRate > 0 && s.rng.Float64() < s.verifyRate {
			s.verify(ctx, cached)
		}
		return cached, nil
	}

	t, err := s.store.Get(ctx, tag)
	if err != nil {
		return nil, fmt.Errorf("load table %s: %w", tag, err)
	}
	if t == nil {
		t, err = s.create(ctx, tag)
		if err != nil {
			return nil, err
		}
	} else if err := s.attachMap(ctx, t); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if existing, ok := s.cache[tag]; ok {
		t = existing
	} else {
		s.cache[tag] = t
	}
	s.mu.Unlock()
	return t, nil
}

func (s *TableService) create(ctx context.Context, tag string) (*dice.Table, error) {
	cfg, ok := s.configs[tag]
	if !ok {
		return nil, &dice.ConfigurationError{Tag: tag, Err: dice.ErrUnknownTable}
	}
	m, err := dice.LoadMap(cfg.MapName)
	if err != nil {
		return nil, &dice.ConfigurationError{Tag: tag, MapName: cfg.MapName, Err: err}
	}
	t := dice.NewTable(cfg, m)
	if err := s.store.Save(ctx, t); err != nil {
		return nil, fmt.Errorf("create table %s: %w", tag, err)
	}
	log.Info().Str("tag", tag).Str("map", cfg.MapName).Msg("Table created")
	return t, nil
}

// attachMap restores the adjacency of a stored table and reconciles its
// lands with the current map.
func (s *TableService) attachMap(ctx context.Context, t *dice.Table) error {
	m, err := dice.LoadMap(t.MapName)
	if err != nil {
		return &dice.ConfigurationError{Tag: t.Tag, MapName: t.MapName, Err: err}
	}
	t.Adjacency = m.Adjacency
	lands, changed := dice.ReconcileLands(m, t.Lands)
	if !changed {
		return nil
	}
	log.Warn().Str("tag", t.Tag).Str("map", t.MapName).Int("lands", len(lands)).Msg("Map changed, reconciling stored lands")
	t.Lands = lands
	if err := s.store.Save(ctx, t); err != nil {
		return fmt.Errorf("save reconciled table %s: %w", t.Tag, err)
	}
	return nil
}

var tableDiffOpts = cmp.Options{
	cmpopts.IgnoreFields(dice.Table{}, "Adjacency"),
	cmpopts.EquateEmpty(),
}

func (s *TableService) verify(ctx context.Context, cached *dice.Table) {
	stored, err := s.store.Get(ctx, cached.Tag)
	if err != nil {
		log.Error().Err(err).Str("tag", cached.Tag).Msg("Consistency check read failed")
		return
	}
	if stored == nil {
		log.Warn().Err(&dice.ConsistencyWarning{Tag: cached.Tag, Diff: "missing from store"}).Msg("Table cache drift")
		return
	}
	if diff := cmp.Diff(stored, cached, tableDiffOpts); diff != "" {
		log.Warn().Err(&dice.ConsistencyWarning{Tag: cached.Tag, Diff: diff}).Msg("Table cache drift")
	}
}

// Execute runs a command against a table and commits the result.
func (s *TableService) Execute(ctx context.Context, tag string, cmd dice.Command) error {
	_, err := s.update(ctx, tag, func(t *dice.Table, now time.Time) (*dice.CommandResult, error) {
		return s.engine.Execute(t, cmd, now)
	})
	if err != nil {
		var illegal *dice.IllegalMoveError
		if errors.As(err, &illegal) {
			log.Debug().Str("tag", tag).Str("command", string(cmd.Type)).Str("userId", illegal.UserID).
				Str("reason", illegal.Reason).Msg("Illegal move")
		}
		return err
	}
	if cmd.Type == dice.CmdChat && s.chat != nil {
		line := model.ChatLine{Message: strings.TrimSpace(cmd.Message), SentAt: s.now()}
		if cmd.User != nil {
			line.UserID = cmd.User.ID
			line.Name = cmd.User.Name
		}
		if err := s.chat.Append(ctx, tag, line); err != nil {
			log.Error().Err(err).Str("tag", tag).Msg("Failed to store chat line")
		}
	}
	return nil
}

// ChatHistory returns the stored chat lines of a table.
func (s *TableService) ChatHistory(ctx context.Context, tag string) ([]model.ChatLine, error) {
	if _, ok := s.configs[tag]; !ok {
		return nil, &dice.ConfigurationError{Tag: tag, Err: dice.ErrUnknownTable}
	}
	if s.chat == nil {
		return []model.ChatLine{}, nil
	}
	return s.chat.Recent(ctx, tag)
}

// ResolveAttack rolls the pending attack with the given id. Stale ids are
// ignored.
func (s *TableService) ResolveAttack(ctx context.Context, tag, attackID string) error {
	_, err := s.update(ctx, tag, func(t *dice.Table, now time.Time) (*dice.CommandResult, error) {
		res, err := s.engine.Resolve(t, attackID, now)
		if errors.Is(err, dice.ErrNoAttack) {
			return nil, nil
		}
		return res, err
	})
	return err
}

// stepFunc computes a result from the current table; nil means no change.
type stepFunc func(t *dice.Table, now time.Time) (*dice.CommandResult, error)

// update applies fn to the table under its lock and commits the result.
func (s *TableService) update(ctx context.Context, tag string, fn stepFunc) (*dice.Table, error) {
	mu := s.tableLock(tag)
	mu.Lock()
	defer mu.Unlock()

	t, err := s.load(ctx, tag)
	if err != nil {
		return nil, err
	}
	now := s.now()
	res, err := fn(t, now)
	if err != nil || res == nil {
		return t, err
	}
	return s.commit(ctx, t, res)
}

// commit persists the patched table, publishes its events and schedules a
// roll for a newly declared attack.
func (s *TableService) commit(ctx context.Context, t *dice.Table, res *dice.CommandResult) (*dice.Table, error) {
	next := t
	if res.Mutates() {
		next = res.Apply(t)
		if err := s.store.Save(ctx, next); err != nil {
			return t, fmt.Errorf("save table %s: %w", t.Tag, err)
		}
		s.mu.Lock()
		s.cache[t.Tag] = next
		s.mu.Unlock()
	}

	for _, ev := range res.Events {
		if err := s.publisher.Publish(ctx, topicOf(ev), ev); err != nil {
			log.Error().Err(err).Str("tag", t.Tag).Str("event", string(ev.Type)).Msg("Publish failed")
		}
		if ev.Type == dice.EventElimination {
			s.accrue(ctx, t, ev)
		}
	}
	if res.Mutates() {
		update := dice.Event{Type: dice.EventUpdate, Table: next.Tag, Payload: dice.Serialize(next)}
		if err := s.publisher.Publish(ctx, TableTopic(next.Tag), update); err != nil {
			log.Error().Err(err).Str("tag", next.Tag).Msg("Publish update failed")
		}
	}

	if a := next.Attack; a != nil && (t.Attack == nil || t.Attack.ID != a.ID) {
		tag, id := next.Tag, a.ID
		s.attacks.schedule(tag, id, s.attackDelay, func() {
			if err := s.ResolveAttack(context.Background(), tag, id); err != nil {
				log.Error().Err(err).Str("tag", tag).Str("attackId", id).Msg("Attack resolution failed")
			}
		})
	}
	return next, nil
}

// accrue adds an eliminated human's score to their account.
func (s *TableService) accrue(ctx context.Context, t *dice.Table, ev dice.Event) {
	if s.users == nil {
		return
	}
	p, ok := ev.Payload.(dice.EliminationPayload)
	if !ok || p.Score == 0 {
		return
	}
	if i := t.PlayerByID(p.Player.ID); i >= 0 && t.Players[i].IsBot() {
		return
	}
	if err := s.users.AddPoints(ctx, p.Player.ID, p.Score); err != nil {
		log.Error().Err(err).Str("tag", t.Tag).Str("userId", p.Player.ID).Msg("Failed to add points")
	}
}
