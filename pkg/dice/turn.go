package dice

import (
	"fmt"
	"sort"
	"time"
)

// ShouldStart reports whether a paused table's start time has come.
func (e *Engine) ShouldStart(t *Table, now time.Time) bool {
	return t.Status == StatusPaused &&
		len(t.Players) >= 2 &&
		!t.GameStart.IsZero() &&
		!now.Before(t.GameStart)
}

// StartGame moves a paused table to PLAYING: colors are made dense, lands
// get random dice and go neutral, and each player receives one capital.
func (e *Engine) StartGame(t *Table, now time.Time) (*CommandResult, error) {
	if t.Status == StatusPlaying {
		return nil, illegal("start while STATUS_PLAYING", "")
	}
	if len(t.Players) < 2 {
		return nil, illegal("start with fewer than 2 players", "")
	}
	if len(t.Players) > len(t.Lands) {
		return nil, &ConfigurationError{Tag: t.Tag, MapName: t.MapName, Err: fmt.Errorf("%d players but only %d lands", len(t.Players), len(t.Lands))}
	}

	players := clonePlayers(t.Players)
	for i := range players {
		p := &players[i]
		p.Color = Color(i + 1)
		p.ReserveDice = 0
		p.Out = false
		p.OutTurns = 0
		p.Flag = nil
		p.Score = 0
		p.Position = 0
		if p.Bot != nil {
			p.Bot.State = BotState{}
		}
	}

	lands := make([]Land, len(t.Lands))
	for i, l := range t.Lands {
		lands[i] = Land{Emoji: l.Emoji, Color: Neutral, Points: e.startDice(t.StackSize)}
	}
	order := make([]int, len(lands))
	for i := range order {
		order[i] = i
	}
	for i := len(order) - 1; i > 0; i-- {
		j := e.rng.Intn(i + 1)
		order[i], order[j] = order[j], order[i]
	}
	for i, p := range players {
		l := &lands[order[i]]
		l.Color = p.Color
		l.Points = e.rules.CapitalDice
		l.Capital = true
	}

	refs := make([]PlayerRef, len(players))
	for i, p := range players {
		refs[i] = refOf(p)
	}
	return &CommandResult{
		Type: ResultStart,
		Props: &TableProps{
			Status:           ptr(StatusPlaying),
			GameStart:        ptr(time.Time{}),
			TurnIndex:        ptr(0),
			TurnStart:        ptr(now),
			TurnActivity:     ptr(false),
			TurnCount:        ptr(1),
			RoundCount:       ptr(1),
			PlayerStartCount: ptr(len(players)),
			CurrentGame:      ptr(t.CurrentGame + 1),
			ClearAttack:      true,
		},
		Players: players,
		Lands:   lands,
		Retired: []Player{},
		Events: []Event{
			newEvent(t, EventStart, refs),
			newEvent(t, EventTurn, TurnPayload{TurnIndex: 0, Player: refs[0]}),
		},
	}, nil
}

// startDice is the weighted initial dice count of a land.
func (e *Engine) startDice(stack int) int {
	r := e.rng.Float64()
	switch {
	case r > 0.98:
		return min(e.rules.MaxDice, stack+1)
	case r > 0.90:
		return max(1, stack)
	}
	return between(e.rng, 1, max(1, stack-1))
}

// TurnExpired reports whether the current turn has run out of time.
func (e *Engine) TurnExpired(t *Table, now time.Time) bool {
	return t.Status == StatusPlaying &&
		t.Attack == nil &&
		now.Sub(t.TurnStart) >= e.rules.TurnTimeout
}

// Timeout ends the current turn as if the player had ended it. A human who
// let the turn lapse without acting accrues an out turn.
func (e *Engine) Timeout(t *Table, now time.Time) (*CommandResult, error) {
	if t.Status != StatusPlaying {
		return nil, illegal("timeout while not STATUS_PLAYING", "")
	}
	if t.Attack != nil {
		return nil, illegal("timeout while attack pending", "")
	}
	players := clonePlayers(t.Players)
	if i := t.TurnIndex; i >= 0 && i < len(players) && !players[i].IsBot() && !t.TurnActivity {
		players[i].OutTurns++
		if players[i].OutTurns >= e.rules.OutTurnsMax {
			players[i].Out = true
		}
	}
	return e.nextTurn(t, ResultTurnTimeout, players, now), nil
}

// nextTurn reinforces the player whose turn ends and hands the turn to the
// next player that is not out.
func (e *Engine) nextTurn(t *Table, typ CommandType, players []Player, now time.Time) *CommandResult {
	lands := append([]Land{}, t.Lands...)
	if cur := t.TurnIndex; cur >= 0 && cur < len(players) {
		p := &players[cur]
		e.reinforce(p, lands, t.Adjacency)
		if p.Bot != nil {
			if t.TurnActivity {
				p.Bot.State.DeadlockCount = 0
			} else {
				p.Bot.State.DeadlockCount++
			}
		}
	}

	next, wrapped := nextTurnIndex(players, t.TurnIndex)
	round := t.RoundCount
	if wrapped {
		round++
	}
	res := &CommandResult{
		Type: typ,
		Props: &TableProps{
			TurnIndex:    ptr(next),
			TurnStart:    ptr(now),
			TurnActivity: ptr(false),
			TurnCount:    ptr(t.TurnCount + 1),
			RoundCount:   ptr(round),
		},
		Players: players,
		Lands:   lands,
	}
	if next >= 0 {
		res.Events = append(res.Events, newEvent(t, EventTurn, TurnPayload{TurnIndex: next, Player: refOf(players[next])}))
	}
	return res
}

// reinforce grants connected lands plus reserve as dice, one at a time on
// random owned lands below the cap. Dice that do not fit go to the reserve.
func (e *Engine) reinforce(p *Player, lands []Land, adj Adjacency) {
	count := LargestConnectedCount(lands, adj, p.Color) + p.ReserveDice
	p.ReserveDice = 0

	var targets []int
	for i, l := range lands {
		if l.Color == p.Color && l.Points < e.rules.MaxDice {
			targets = append(targets, i)
		}
	}
	for placed := 0; placed < count; placed++ {
		if len(targets) == 0 {
			p.ReserveDice += count - placed
			return
		}
		k := e.rng.Intn(len(targets))
		lands[targets[k]].Points++
		if lands[targets[k]].Points >= e.rules.MaxDice {
			targets[k] = targets[len(targets)-1]
			targets = targets[:len(targets)-1]
		}
	}
}

// nextTurnIndex returns the next player index after cur that is not out,
// and whether the search wrapped past the end of the list. If every player
// is out the plain successor is returned.
func nextTurnIndex(players []Player, cur int) (int, bool) {
	n := len(players)
	if n == 0 {
		return -1, false
	}
	for step := 1; step <= n; step++ {
		raw := cur + step
		if !players[raw%n].Out {
			return raw % n, raw >= n
		}
	}
	raw := cur + 1
	return raw % n, raw >= n
}

// Roll is the outcome of an attack's dice.
type Roll struct {
	From    []int
	To      []int
	Success bool
}

// RollAttack rolls one die per point on each side, capped at MaxDice.
// The attacker wins only with a strictly greater sum.
func (e *Engine) RollAttack(fromPoints, toPoints int) Roll {
	roll := Roll{
		From: e.rollDice(min(fromPoints, e.rules.MaxDice)),
		To:   e.rollDice(min(toPoints, e.rules.MaxDice)),
	}
	roll.Success = sum(roll.From) > sum(roll.To)
	return roll
}

func (e *Engine) rollDice(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = between(e.rng, 1, 6)
	}
	return out
}

func sum(xs []int) int {
	s := 0
	for _, x := range xs {
		s += x
	}
	return s
}

// Resolve rolls and resolves the pending attack with the given ID.
func (e *Engine) Resolve(t *Table, attackID string, now time.Time) (*CommandResult, error) {
	if t.Attack == nil || t.Attack.ID != attackID {
		return nil, ErrNoAttack
	}
	from, to := t.LandByEmoji(t.Attack.From), t.LandByEmoji(t.Attack.To)
	if from < 0 || to < 0 {
		return nil, fmt.Errorf("attack %s references missing land", attackID)
	}
	return e.ResolveAttack(t, e.RollAttack(t.Lands[from].Points, t.Lands[to].Points), now)
}

// ResolveAttack applies a roll to the pending attack: the target changes
// hands on success, the source always drops to one die, and a defender left
// without lands is eliminated.
func (e *Engine) ResolveAttack(t *Table, roll Roll, now time.Time) (*CommandResult, error) {
	if t.Attack == nil {
		return nil, ErrNoAttack
	}
	from, to := t.LandByEmoji(t.Attack.From), t.LandByEmoji(t.Attack.To)
	if from < 0 || to < 0 {
		return nil, fmt.Errorf("attack %s references missing land", t.Attack.ID)
	}

	lands := append([]Land{}, t.Lands...)
	players := clonePlayers(t.Players)
	attacker, defender := lands[from].Color, lands[to].Color

	if roll.Success {
		lands[to].Points = lands[from].Points - 1
		lands[to].Color = attacker
		lands[to].Capital = false
	}
	lands[from].Points = 1

	if ai := t.PlayerByColor(attacker); ai >= 0 {
		for i := range players {
			if players[i].Bot != nil && players[i].Color == defender {
				players[i].Bot.State.LastAgressor = players[ai].ID
			}
		}
	}

	res := &CommandResult{
		Type: ResultRoll,
		Props: &TableProps{
			TurnStart:   ptr(now),
			ClearAttack: true,
		},
		Players: players,
		Lands:   lands,
		Events: []Event{newEvent(t, EventRoll, RollPayload{
			From: RollSide{Emoji: t.Attack.From, Roll: roll.From},
			To:   RollSide{Emoji: t.Attack.To, Roll: roll.To},
		})},
	}

	if !roll.Success || defender == Neutral || countColor(lands, defender) > 0 {
		return res, nil
	}
	loser := -1
	for i := range players {
		if players[i].Color == defender {
			loser = i
		}
	}
	if loser < 0 {
		return res, nil
	}

	retired := clonePlayers(t.Retired)
	if retired == nil {
		retired = []Player{}
	}
	dead := players[loser]
	dead.Position = len(players)
	dead.Score += PositionScore(t.Points, t.PlayerStartCount, dead.Position)
	retired = append(retired, dead)
	players = append(players[:loser:loser], players[loser+1:]...)
	res.Events = append(res.Events, newEvent(t, EventElimination, EliminationPayload{
		Player: refOf(dead), Position: dead.Position, Score: dead.Score, Reason: ReasonDead,
	}))

	turnIndex := t.TurnIndex
	if loser < turnIndex {
		turnIndex--
	}
	clampFlags(players)
	res.Props.TurnIndex = ptr(turnIndex)
	res.Players = players
	res.Retired = retired

	if len(players) == 1 || unflaggedCount(players) == 1 {
		e.finish(t, res, lands)
	}
	return res, nil
}

// clampFlags lowers flags that point past the last remaining position.
func clampFlags(players []Player) {
	for i := range players {
		if f := players[i].Flag; f != nil && *f > len(players) {
			players[i].Flag = ptr(len(players))
		}
	}
}

func unflaggedCount(players []Player) int {
	n := 0
	for _, p := range players {
		if p.Flag == nil {
			n++
		}
	}
	return n
}

// finish retires every remaining player of res with final positions and
// scores and marks the table FINISHED.
func (e *Engine) finish(t *Table, res *CommandResult, lands []Land) {
	players := res.Players
	view := &Table{Players: players, Lands: lands}
	positions := Positions(view)

	flagged := 0
	for _, p := range players {
		if p.Flag != nil {
			flagged++
		}
	}
	for i, p := range players {
		if p.Flag == nil && flagged == len(players)-1 {
			positions[i] = 1
		}
	}
	if len(players) == 1 {
		positions[0] = 1
	}

	order := make([]int, len(players))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return positions[order[a]] > positions[order[b]] })

	retired := res.Retired
	if retired == nil {
		retired = clonePlayers(t.Retired)
		if retired == nil {
			retired = []Player{}
		}
	}
	for _, i := range order {
		p := players[i].clone()
		p.Position = positions[i]
		p.Score += PositionScore(t.Points, t.PlayerStartCount, p.Position)
		reason := ReasonFlag
		if p.Position == 1 {
			reason = ReasonWin
		}
		retired = append(retired, p)
		res.Events = append(res.Events, newEvent(t, EventElimination, EliminationPayload{
			Player: refOf(p), Position: p.Position, Score: p.Score, Reason: reason,
		}))
	}

	if res.Props == nil {
		res.Props = &TableProps{}
	}
	res.Props.Status = ptr(StatusFinished)
	res.Props.TurnIndex = ptr(-1)
	res.Props.GameStart = ptr(time.Time{})
	res.Props.ClearAttack = true
	res.Props.Attack = nil
	res.Players = []Player{}
	res.Retired = retired
	res.Lands = lands
}

func countColor(lands []Land, c Color) int {
	n := 0
	for _, l := range lands {
		if l.Color == c {
			n++
		}
	}
	return n
}
