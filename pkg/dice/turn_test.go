package dice

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNextTurnIndex(t *testing.T) {
	in, out := Player{}, Player{Out: true}
	tests := []struct {
		name        string
		players     []Player
		cur         int
		want        int
		wantWrapped bool
	}{
		{"first turn", []Player{in, in}, -1, 0, false},
		{"skip out", []Player{in, out, in}, 0, 2, false},
		{"wrap", []Player{in, out, in}, 2, 0, true},
		{"wrap past out", []Player{out, in, in}, 2, 1, true},
		{"all out", []Player{out, out, out}, 1, 2, false},
		{"all out wraps", []Player{out, out}, 1, 0, true},
		{"empty", nil, 0, -1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, wrapped := nextTurnIndex(tt.players, tt.cur)
			require.Equal(t, tt.want, got)
			require.Equal(t, tt.wantWrapped, wrapped)
		})
	}
}

func TestEndTurn_ReinforcesConnectedLands(t *testing.T) {
	e := NewEngine(DefaultRules(), NewRand(11))
	// red: a,b connected and d alone, so 2 connected lands
	tbl := playing(t, 2, []Color{Red, Red, Blue, Red, Blue, Blue}, []int{1, 1, 1, 1, 1, 1})
	tbl.Players[0].ReserveDice = 1
	p1, p2 := user("1"), user("2")

	now := t0.Add(2 * time.Second)
	res, err := e.Execute(tbl, Command{Type: CmdEndTurn, User: &p1}, now)
	require.NoError(t, err)
	require.Equal(t, EventTurn, res.Events[0].Type)
	next := res.Apply(tbl)

	dice := 0
	for _, l := range next.Lands {
		if l.Color == Red {
			dice += l.Points
		}
	}
	require.Equal(t, 3+3, dice)
	require.Zero(t, next.Players[0].ReserveDice)
	require.Equal(t, 1, next.TurnIndex)
	require.Equal(t, 2, next.TurnCount)
	require.Equal(t, 1, next.RoundCount)
	require.Equal(t, now, next.TurnStart)
	require.False(t, next.TurnActivity)

	_, err = e.Execute(next, Command{Type: CmdEndTurn, User: &p1}, now)
	requireIllegal(t, err, "endTurn while not having turn")

	next = apply(t, e, next, Command{Type: CmdEndTurn, User: &p2})
	require.Equal(t, 0, next.TurnIndex)
	require.Equal(t, 2, next.RoundCount)
}

func TestEndTurn_OverflowGoesToReserve(t *testing.T) {
	e := NewEngine(DefaultRules(), NewRand(3))
	tbl := playing(t, 2, []Color{Red, Red, Blue, Blue, Blue, Blue}, []int{8, 7, 1, 1, 1, 1})
	tbl.Players[0].ReserveDice = 3
	p1 := user("1")

	next := apply(t, e, tbl, Command{Type: CmdEndTurn, User: &p1})
	require.Equal(t, 8, next.Lands[0].Points)
	require.Equal(t, 8, next.Lands[1].Points)
	require.Equal(t, 4, next.Players[0].ReserveDice)
}

func TestTurnExpired(t *testing.T) {
	e := NewEngine(DefaultRules(), NewRand(1))
	tbl := playing(t, 2, []Color{Red, Red, Blue, Blue, Blue, Blue}, []int{1, 3, 1, 2, 2, 2})
	require.False(t, e.TurnExpired(tbl, t0.Add(9*time.Second)))
	require.True(t, e.TurnExpired(tbl, t0.Add(10*time.Second)))
	tbl.Attack = &Attack{ID: "x"}
	require.False(t, e.TurnExpired(tbl, t0.Add(time.Minute)))
	tbl.Attack = nil
	tbl.Status = StatusFinished
	require.False(t, e.TurnExpired(tbl, t0.Add(time.Minute)))
}

func TestTimeout_MarksIdleHumansOut(t *testing.T) {
	e := NewEngine(DefaultRules(), NewRand(1))
	tbl := playing(t, 2, []Color{Red, Red, Blue, Blue, Blue, Blue}, []int{1, 3, 1, 2, 2, 2})
	p2 := user("2")

	timeout := func(tbl *Table) *Table {
		t.Helper()
		res, err := e.Timeout(tbl, t0.Add(time.Minute))
		require.NoError(t, err)
		require.Equal(t, ResultTurnTimeout, res.Type)
		return res.Apply(tbl)
	}

	tbl = timeout(tbl)
	require.Equal(t, 1, tbl.Players[0].OutTurns)
	require.False(t, tbl.Players[0].Out)
	require.Equal(t, 1, tbl.TurnIndex)

	tbl = apply(t, e, tbl, Command{Type: CmdEndTurn, User: &p2})
	require.Equal(t, 0, tbl.TurnIndex)
	tbl = timeout(tbl)
	require.True(t, tbl.Players[0].Out)

	tbl = apply(t, e, tbl, Command{Type: CmdEndTurn, User: &p2})
	require.Equal(t, 1, tbl.TurnIndex, "out player is skipped")
	require.False(t, tbl.Players[tbl.TurnIndex].Out)
}

func TestTimeout_ActiveTurnDoesNotCountOut(t *testing.T) {
	e := NewEngine(DefaultRules(), NewRand(1))
	tbl := playing(t, 2, []Color{Red, Red, Blue, Blue, Blue, Blue}, []int{1, 3, 1, 2, 2, 2})
	tbl.TurnActivity = true
	res, err := e.Timeout(tbl, t0.Add(time.Minute))
	require.NoError(t, err)
	require.Zero(t, res.Apply(tbl).Players[0].OutTurns)

	tbl.Attack = &Attack{ID: "x"}
	_, err = e.Timeout(tbl, t0.Add(time.Minute))
	requireIllegal(t, err, "timeout while attack pending")
}

func TestNextTurn_BotDeadlockCount(t *testing.T) {
	e := NewEngine(DefaultRules(), NewRand(1))
	tbl := playing(t, 2, []Color{Red, Red, Blue, Blue, Blue, Blue}, []int{1, 3, 1, 2, 2, 2})
	tbl.Players[0].Bot = &Bot{Strategy: ExtraCareful, State: BotState{DeadlockCount: 2}}
	p1 := user("1")

	next := apply(t, e, tbl, Command{Type: CmdEndTurn, User: &p1})
	require.Equal(t, 3, next.Players[0].Bot.State.DeadlockCount)

	tbl.TurnActivity = true
	next = apply(t, e, tbl, Command{Type: CmdEndTurn, User: &p1})
	require.Zero(t, next.Players[0].Bot.State.DeadlockCount)
	require.Equal(t, 2, tbl.Players[0].Bot.State.DeadlockCount, "input table untouched")
}

func TestStartGame_Preconditions(t *testing.T) {
	e := NewEngine(DefaultRules(), NewRand(1))
	tbl := newTestTable(t, 2)
	_, err := e.StartGame(tbl, t0)
	requireIllegal(t, err, "start with fewer than 2 players")

	tbl = playing(t, 2, []Color{Red, Red, Blue, Blue, Blue, Blue}, []int{1, 3, 1, 2, 2, 2})
	_, err = e.StartGame(tbl, t0)
	requireIllegal(t, err, "start while STATUS_PLAYING")
}

func TestStartGame_ResetsPlayers(t *testing.T) {
	e := NewEngine(DefaultRules(), NewRand(4))
	tbl := newTestTable(t, 3)
	tbl.Status = StatusPaused
	tbl.CurrentGame = 6
	tbl.Retired = []Player{{ID: "old"}}
	tbl.Players = []Player{
		{ID: "a", Color: 3, ReserveDice: 5, Out: true, Flag: ptr(2)},
		{ID: "b", Color: 1, Bot: &Bot{Strategy: Revengeful, State: BotState{DeadlockCount: 9, LastAgressor: "a"}}},
	}

	res, err := e.StartGame(tbl, t0)
	require.NoError(t, err)
	next := res.Apply(tbl)
	require.Equal(t, []Color{Red, Blue}, colorsOf(next.Players))
	require.Zero(t, next.Players[0].ReserveDice)
	require.False(t, next.Players[0].Out)
	require.Nil(t, next.Players[0].Flag)
	require.Equal(t, BotState{}, next.Players[1].Bot.State)
	require.Equal(t, 7, next.CurrentGame)
	require.Empty(t, next.Retired)
	require.True(t, next.GameStart.IsZero())
}

func TestStartDice_Weighting(t *testing.T) {
	e := NewEngine(DefaultRules(), &seqRand{floats: []float64{0.99, 0.95, 0.5}, ints: []int{2}})
	require.Equal(t, 5, e.startDice(4))
	require.Equal(t, 4, e.startDice(4))
	require.Equal(t, 3, e.startDice(4))

	e = NewEngine(DefaultRules(), &seqRand{floats: []float64{0.99}})
	require.Equal(t, 8, e.startDice(8))
}

func TestRollAttack_CapsDice(t *testing.T) {
	e := NewEngine(DefaultRules(), NewRand(2))
	for i := 0; i < 100; i++ {
		r := e.RollAttack(12, 3)
		require.Len(t, r.From, 8)
		require.Len(t, r.To, 3)
		for _, d := range append(r.From, r.To...) {
			require.GreaterOrEqual(t, d, 1)
			require.LessOrEqual(t, d, 6)
		}
		require.Equal(t, sum(r.From) > sum(r.To), r.Success)
	}
}
