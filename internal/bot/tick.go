package bot

import (
	"fmt"
	"time"

	"github.com/freeeve/qdice/pkg/dice"
)

// TickConfig holds bot timing and stall limits.
type TickConfig struct {
	TurnDelay   time.Duration // wait after turn start before acting
	JoinDelay   time.Duration // wait after the last join before filling a seat
	DeadlockMax int           // idle turns before a bot gives up
}

// DefaultTickConfig returns the standard bot timings.
func DefaultTickConfig() TickConfig {
	return TickConfig{
		TurnDelay:   500 * time.Millisecond,
		JoinDelay:   5 * time.Second,
		DeadlockMax: 10,
	}
}

// lateGameRound is the round from which a losing bot in a duel concedes.
const lateGameRound = 10

// Sources lists the player's lands with more than one die that border a
// land of another color, in random order.
func Sources(t *dice.Table, p dice.Player) []Source {
	var out []Source
	for _, land := range t.Lands {
		if land.Color != p.Color || land.Points <= 1 {
			continue
		}
		var targets []dice.Land
		for _, other := range t.Lands {
			if other.Color != p.Color && t.Adjacency.IsBorder(land.Emoji, other.Emoji) {
				targets = append(targets, other)
			}
		}
		if len(targets) > 0 {
			out = append(out, Source{Source: land, Targets: targets})
		}
	}
	botShuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// TickTurn decides the current bot's next command. It returns nil while
// the bot is still waiting out its turn delay.
func TickTurn(t *dice.Table, now time.Time, cfg TickConfig) (*dice.Command, error) {
	if t.Status != dice.StatusPlaying || t.Attack != nil {
		return nil, nil
	}
	if now.Sub(t.TurnStart) < cfg.TurnDelay {
		return nil, nil
	}
	if t.TurnIndex < 0 || t.TurnIndex >= len(t.Players) {
		return nil, fmt.Errorf("table %s: no player at turn index %d", t.Tag, t.TurnIndex)
	}
	p := t.Players[t.TurnIndex]
	if !p.IsBot() {
		return nil, fmt.Errorf("table %s: cannot tick non-bot %s", t.Tag, p.ID)
	}

	endTurn := &dice.Command{Type: dice.CmdEndTurn, User: userOf(p)}
	flag := &dice.Command{Type: dice.CmdFlag, User: userOf(p)}
	position := dice.Positions(t)[t.TurnIndex]
	canRaiseFlag := t.CanFlag() && position > 1 && (p.Flag == nil || *p.Flag < position)

	if allBots(t) || p.Bot.State.DeadlockCount > cfg.DeadlockMax {
		if position > 1 {
			if canRaiseFlag {
				return flag, nil
			}
			return endTurn, nil
		}
	}
	if t.RoundCount >= lateGameRound && len(t.Players) == 2 && position == 2 && canRaiseFlag {
		other := t.Players[1-t.TurnIndex]
		if 2*t.LandCount(other.Color) >= t.LandCount(p.Color) {
			return flag, nil
		}
	}

	sources := Sources(t, p)
	if len(sources) == 0 {
		return endTurn, nil
	}
	m := StrategyFor(p.Bot.Strategy).Move(sources, p, t)
	if m == nil {
		return endTurn, nil
	}
	return &dice.Command{Type: dice.CmdAttack, User: userOf(p), From: m.From.Emoji, To: m.To.Emoji}, nil
}

func allBots(t *dice.Table) bool {
	for _, p := range t.Players {
		if !p.IsBot() {
			return false
		}
	}
	return true
}

// FillSeats returns a command that adjusts bot seating at a paused table:
// a bot joins when humans are waiting for opponents, and bots leave once no
// human remains. It returns nil when nothing should change.
func FillSeats(t *dice.Table, now time.Time, cfg TickConfig) *dice.Command {
	if t.Status != dice.StatusPaused || t.Params.BotLess {
		return nil
	}
	humans := 0
	var lastJoin time.Time
	var firstBot *dice.Player
	for i, p := range t.Players {
		if p.IsBot() {
			if firstBot == nil {
				firstBot = &t.Players[i]
			}
		} else {
			humans++
		}
		if p.LastBeat.After(lastJoin) {
			lastJoin = p.LastBeat
		}
	}
	if humans == 0 {
		if firstBot != nil {
			return &dice.Command{Type: dice.CmdLeave, User: userOf(*firstBot)}
		}
		return nil
	}
	if len(t.Players) >= t.StartSlots || len(t.Players) >= t.PlayerSlots {
		return nil
	}
	if now.Sub(lastJoin) < cfg.JoinDelay {
		return nil
	}
	cmd, ok := AddBot(t)
	if !ok {
		return nil
	}
	return &cmd
}
