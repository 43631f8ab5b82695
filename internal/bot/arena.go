package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/qdice/internal/repository"
	"github.com/freeeve/qdice/pkg/dice"
)

// ArenaConfig configures a single bot-vs-bot game.
type ArenaConfig struct {
	Tag        string
	MapName    string
	Strategies []dice.Strategy // one seat per entry
	StackSize  int
	MaxTurns   int    // cap before the game is called a draw
	Seed       uint64 // 0 = random
	DryRun     bool   // skip store writes
}

// Standing is one bot's final placing.
type Standing struct {
	Name     string        `json:"name"`
	Strategy dice.Strategy `json:"strategy"`
	Position int           `json:"position"`
	Score    int           `json:"score"`
}

// ArenaResult describes the outcome of a completed arena game.
type ArenaResult struct {
	GameID    string        `json:"gameId"`
	Winner    dice.Strategy `json:"winner,omitempty"` // empty for a draw
	Turns     int           `json:"turns"`
	Rounds    int           `json:"rounds"`
	Standings []Standing    `json:"standings"`
}

// RunGame plays a full game between bot personas, advancing a simulated
// clock and rolling attacks immediately. Pass a nil store for dry runs.
func RunGame(ctx context.Context, cfg ArenaConfig, store repository.TableRepository) (*ArenaResult, error) {
	if len(cfg.Strategies) < 2 || len(cfg.Strategies) > dice.MaxPlayers {
		return nil, fmt.Errorf("arena needs 2 to %d bots, got %d", dice.MaxPlayers, len(cfg.Strategies))
	}
	if cfg.MapName == "" {
		cfg.MapName = "Melchor"
	}
	if cfg.Tag == "" {
		cfg.Tag = "arena"
	}
	if cfg.StackSize == 0 {
		cfg.StackSize = 4
	}
	if cfg.MaxTurns == 0 {
		cfg.MaxTurns = 500
	}
	if store == nil {
		cfg.DryRun = true
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	SeedBotRng(seed)
	engine := dice.NewEngine(dice.DefaultRules(), dice.NewRand(seed))

	m, err := dice.LoadMap(cfg.MapName)
	if err != nil {
		return nil, &dice.ConfigurationError{Tag: cfg.Tag, MapName: cfg.MapName, Err: err}
	}
	t := dice.NewTable(dice.Config{
		Tag:         cfg.Tag,
		Name:        cfg.Tag,
		MapName:     cfg.MapName,
		PlayerSlots: len(cfg.Strategies),
		StartSlots:  len(cfg.Strategies),
		StackSize:   cfg.StackSize,
		Points:      100,
		Params:      dice.Params{BotLess: true},
	}, m)

	now := time.Unix(0, 0).UTC()
	tick := DefaultTickConfig()
	apply := func(res *dice.CommandResult, err error) error {
		if err != nil {
			return err
		}
		if res != nil {
			t = res.Apply(t)
		}
		return nil
	}

	for i, p := range arenaPersonas(cfg.Strategies) {
		if err := apply(engine.Execute(t, JoinCommand(p), now)); err != nil {
			return nil, fmt.Errorf("seat %s (%d): %w", p.Name, i, err)
		}
	}
	if err := apply(engine.StartGame(t, now)); err != nil {
		return nil, fmt.Errorf("start arena game: %w", err)
	}

	result := &ArenaResult{GameID: uuid.NewString()}
	for t.Status == dice.StatusPlaying && t.TurnCount <= cfg.MaxTurns {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		now = now.Add(tick.TurnDelay)

		cmd, err := TickTurn(t, now, tick)
		if err != nil {
			return nil, fmt.Errorf("turn %d: %w", t.TurnCount, err)
		}
		if cmd == nil {
			continue
		}
		turn := t.TurnCount
		if err := apply(engine.Execute(t, *cmd, now)); err != nil {
			return nil, fmt.Errorf("turn %d %s: %w", turn, cmd.Type, err)
		}
		if t.Attack != nil {
			err := apply(engine.Resolve(t, t.Attack.ID, now))
			if err != nil && !errors.Is(err, dice.ErrNoAttack) {
				return nil, fmt.Errorf("turn %d roll: %w", turn, err)
			}
		}
		if !cfg.DryRun && t.TurnCount != turn {
			if err := store.Save(ctx, t); err != nil {
				return nil, fmt.Errorf("save arena table: %w", err)
			}
		}
	}

	result.Turns = t.TurnCount
	result.Rounds = t.RoundCount
	for _, p := range t.Retired {
		result.Standings = append(result.Standings, standingOf(p, p.Position, p.Score))
		if p.Position == 1 {
			result.Winner = result.Standings[len(result.Standings)-1].Strategy
		}
	}
	if t.Status == dice.StatusPlaying {
		for i, d := range dice.DerivePlayers(t) {
			result.Standings = append(result.Standings, standingOf(t.Players[i], d.Position, d.Score))
		}
	}
	if !cfg.DryRun {
		if err := store.Save(ctx, t); err != nil {
			return nil, fmt.Errorf("save arena table: %w", err)
		}
	}

	log.Info().Str("gameId", result.GameID).Str("winner", string(result.Winner)).
		Int("turns", result.Turns).Int("rounds", result.Rounds).Msg("Arena game finished")
	return result, nil
}

func standingOf(p dice.Player, position, score int) Standing {
	st := Standing{Name: p.Name, Position: position, Score: score}
	if p.Bot != nil {
		st.Strategy = p.Bot.Strategy
	}
	return st
}

// arenaPersonas picks a distinct persona for each requested strategy.
func arenaPersonas(strategies []dice.Strategy) []Persona {
	used := make(map[string]bool)
	out := make([]Persona, 0, len(strategies))
	for _, s := range strategies {
		var pick Persona
		found := false
		for _, p := range personas {
			if p.Strategy == s && !used[p.Name] {
				pick, found = p, true
				break
			}
		}
		if !found {
			// fall back to any free persona, keeping the requested strategy
			for _, p := range personas {
				if !used[p.Name] {
					pick = Persona{Name: p.Name, Picture: p.Picture, Strategy: s}
					break
				}
			}
		}
		used[pick.Name] = true
		out = append(out, pick)
	}
	return out
}

// ParseLineup parses a seat lineup like "ExtraCareful=2,RandomCareless".
// Names are matched case-insensitively; a missing count means one seat.
// A lineup holds at most dice.MaxPlayers seats.
func ParseLineup(s string) ([]dice.Strategy, error) {
	var out []dice.Strategy
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, count, hasCount := strings.Cut(part, "=")
		n := 1
		if hasCount {
			var err error
			n, err = strconv.Atoi(strings.TrimSpace(count))
			if err != nil || n < 1 {
				return nil, fmt.Errorf("invalid seat count in %q", part)
			}
		}
		strategy, ok := lookupStrategy(strings.TrimSpace(name))
		if !ok {
			return nil, fmt.Errorf("unknown strategy %q", name)
		}
		if len(out)+n > dice.MaxPlayers {
			return nil, fmt.Errorf("lineup has more than %d seats", dice.MaxPlayers)
		}
		for range n {
			out = append(out, strategy)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("empty lineup")
	}
	return out, nil
}

func lookupStrategy(name string) (dice.Strategy, bool) {
	for _, s := range Strategies() {
		if strings.EqualFold(string(s), name) {
			return s, true
		}
	}
	return "", false
}
