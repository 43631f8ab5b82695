package bot

import (
	"github.com/freeeve/qdice/pkg/dice"
)

// Source is an owned land able to attack, with the enemy lands it borders.
type Source struct {
	Source  dice.Land
	Targets []dice.Land
}

// Move is a chosen attack.
type Move struct {
	From dice.Land
	To   dice.Land
}

// Strategy picks an attack for a bot, or nil to end the turn.
type Strategy interface {
	Name() dice.Strategy
	Move(sources []Source, player dice.Player, t *dice.Table) *Move
}

// StrategyFor returns the implementation of a strategy tag. Unknown tags
// get RandomCareful.
func StrategyFor(tag dice.Strategy) Strategy {
	switch tag {
	case dice.RandomCareless:
		return RandomCarelessStrategy{}
	case dice.TargetCareful:
		return TargetCarefulStrategy{}
	case dice.ExtraCareful:
		return ExtraCarefulStrategy{Margin: extraCarefulMargin}
	case dice.Revengeful:
		return RevengefulStrategy{}
	default:
		return RandomCarefulStrategy{}
	}
}

// Strategies lists every strategy tag.
func Strategies() []dice.Strategy {
	return []dice.Strategy{dice.RandomCareless, dice.RandomCareful, dice.TargetCareful, dice.ExtraCareful, dice.Revengeful}
}

const extraCarefulMargin = 1

// pick returns a uniformly random candidate, or nil.
func pick(moves []Move) *Move {
	if len(moves) == 0 {
		return nil
	}
	m := moves[botIntn(len(moves))]
	return &m
}

func allMoves(sources []Source, keep func(from, to dice.Land) bool) []Move {
	var out []Move
	for _, s := range sources {
		for _, t := range s.Targets {
			if keep == nil || keep(s.Source, t) {
				out = append(out, Move{From: s.Source, To: t})
			}
		}
	}
	return out
}

// --- RandomCareless ---

// RandomCarelessStrategy attacks from a random source to a random target.
type RandomCarelessStrategy struct{}

func (RandomCarelessStrategy) Name() dice.Strategy { return dice.RandomCareless }

func (RandomCarelessStrategy) Move(sources []Source, _ dice.Player, _ *dice.Table) *Move {
	if len(sources) == 0 {
		return nil
	}
	s := sources[botIntn(len(sources))]
	if len(s.Targets) == 0 {
		return nil
	}
	return &Move{From: s.Source, To: s.Targets[botIntn(len(s.Targets))]}
}

// --- RandomCareful ---

// RandomCarefulStrategy attacks at random but avoids targets holding at
// least the source's dice minus one, unless nothing else is available.
type RandomCarefulStrategy struct{}

func (RandomCarefulStrategy) Name() dice.Strategy { return dice.RandomCareful }

func (RandomCarefulStrategy) Move(sources []Source, p dice.Player, t *dice.Table) *Move {
	if m := pick(allMoves(sources, safe)); m != nil {
		return m
	}
	return RandomCarelessStrategy{}.Move(sources, p, t)
}

func safe(from, to dice.Land) bool {
	return to.Points < from.Points-1
}

// --- TargetCareful ---

// TargetCarefulStrategy goes for the weakest bordering enemy land, using the
// strongest source next to it.
type TargetCarefulStrategy struct{}

func (TargetCarefulStrategy) Name() dice.Strategy { return dice.TargetCareful }

func (TargetCarefulStrategy) Move(sources []Source, _ dice.Player, _ *dice.Table) *Move {
	moves := allMoves(sources, nil)
	if len(moves) == 0 {
		return nil
	}
	weakest, strongest := moves[0].To.Points, 0
	for _, m := range moves {
		weakest = min(weakest, m.To.Points)
	}
	for _, m := range moves {
		if m.To.Points == weakest {
			strongest = max(strongest, m.From.Points)
		}
	}
	return pick(allMoves(sources, func(from, to dice.Land) bool {
		return to.Points == weakest && from.Points == strongest
	}))
}

// --- ExtraCareful ---

// ExtraCarefulStrategy only attacks when its dice exceed the target's by
// more than Margin, preferring the largest advantage.
type ExtraCarefulStrategy struct {
	Margin int
}

func (ExtraCarefulStrategy) Name() dice.Strategy { return dice.ExtraCareful }

func (s ExtraCarefulStrategy) Move(sources []Source, _ dice.Player, _ *dice.Table) *Move {
	best := s.Margin
	var moves []Move
	for _, m := range allMoves(sources, nil) {
		adv := m.From.Points - m.To.Points
		switch {
		case adv > best:
			best = adv
			moves = []Move{m}
		case adv == best && adv > s.Margin:
			moves = append(moves, m)
		}
	}
	return pick(moves)
}

// --- Revengeful ---

// RevengefulStrategy strikes back at whoever attacked it last, otherwise
// it plays like RandomCareful.
type RevengefulStrategy struct{}

func (RevengefulStrategy) Name() dice.Strategy { return dice.Revengeful }

func (RevengefulStrategy) Move(sources []Source, p dice.Player, t *dice.Table) *Move {
	if p.Bot != nil && p.Bot.State.LastAgressor != "" {
		if i := t.PlayerByID(p.Bot.State.LastAgressor); i >= 0 {
			enemy := t.Players[i].Color
			if m := pick(allMoves(sources, func(_, to dice.Land) bool { return to.Color == enemy })); m != nil {
				return m
			}
		}
	}
	return RandomCarefulStrategy{}.Move(sources, p, t)
}
