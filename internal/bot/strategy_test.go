package bot

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/freeeve/qdice/pkg/dice"
)

const (
	R = dice.Red
	B = dice.Blue
	G = dice.Green
	N = dice.Neutral
)

func TestStrategyFor(t *testing.T) {
	for _, s := range Strategies() {
		require.Equal(t, s, StrategyFor(s).Name())
	}
	require.Equal(t, dice.RandomCareful, StrategyFor("Unknown").Name())
}

func TestExtraCareful_UnfavorableAttacksEndTurn(t *testing.T) {
	SeedBotRng(1)
	defer ResetBotRng()

	// red c (3) borders blue b (3) and blue d (2): no advantage above one
	tbl := lineTable(t,
		[]dice.Color{B, B, R, B, B, B},
		[]int{1, 3, 3, 2, 1, 1},
		botPlayer("bot_red", R, dice.ExtraCareful), humanPlayer("blue", B))
	p := tbl.Players[0]

	require.Nil(t, ExtraCarefulStrategy{Margin: 1}.Move(Sources(tbl, p), p, tbl))

	cmd, err := TickTurn(tbl, t0.Add(DefaultTickConfig().TurnDelay), DefaultTickConfig())
	require.NoError(t, err)
	require.NotNil(t, cmd)
	require.Equal(t, dice.CmdEndTurn, cmd.Type)
	require.Equal(t, "bot_red", cmd.User.ID)
}

func TestExtraCareful_PicksLargestAdvantage(t *testing.T) {
	SeedBotRng(2)
	defer ResetBotRng()

	tbl := lineTable(t,
		[]dice.Color{B, R, B, R, B, N},
		[]int{2, 5, 4, 6, 1, 1},
		botPlayer("bot_red", R, dice.ExtraCareful), humanPlayer("blue", B))
	p := tbl.Players[0]

	for i := 0; i < 20; i++ {
		m := ExtraCarefulStrategy{Margin: 1}.Move(Sources(tbl, p), p, tbl)
		require.NotNil(t, m)
		require.Equal(t, dice.Emoji("d"), m.From.Emoji)
		require.Equal(t, dice.Emoji("e"), m.To.Emoji)
	}
}

func TestRandomCareful_PrefersSafeTargets(t *testing.T) {
	SeedBotRng(3)
	defer ResetBotRng()

	// c (4) can hit b (4, unsafe) or d (2, safe)
	tbl := lineTable(t,
		[]dice.Color{B, B, R, B, B, B},
		[]int{1, 4, 4, 2, 1, 1},
		botPlayer("bot_red", R, dice.RandomCareful), humanPlayer("blue", B))
	p := tbl.Players[0]

	for i := 0; i < 30; i++ {
		m := RandomCarefulStrategy{}.Move(Sources(tbl, p), p, tbl)
		require.NotNil(t, m)
		require.Equal(t, dice.Emoji("d"), m.To.Emoji)
	}
}

func TestRandomCareful_FallsBackToCareless(t *testing.T) {
	SeedBotRng(4)
	defer ResetBotRng()

	tbl := lineTable(t,
		[]dice.Color{B, B, R, B, B, B},
		[]int{1, 4, 2, 3, 1, 1},
		botPlayer("bot_red", R, dice.RandomCareful), humanPlayer("blue", B))
	p := tbl.Players[0]

	m := RandomCarefulStrategy{}.Move(Sources(tbl, p), p, tbl)
	require.NotNil(t, m)
	require.Equal(t, dice.Emoji("c"), m.From.Emoji)
}

func TestRandomCareless_NoSources(t *testing.T) {
	tbl := lineTable(t,
		[]dice.Color{R, R, B, B, B, B},
		[]int{1, 1, 3, 3, 3, 3},
		botPlayer("bot_red", R, dice.RandomCareless), humanPlayer("blue", B))
	p := tbl.Players[0]

	require.Empty(t, Sources(tbl, p))
	require.Nil(t, RandomCarelessStrategy{}.Move(nil, p, tbl))
}

func TestTargetCareful_WeakestTargetStrongestSource(t *testing.T) {
	SeedBotRng(5)
	defer ResetBotRng()

	// weakest targets are a (1) and e (1); strongest source next to one is d (6)
	tbl := lineTable(t,
		[]dice.Color{B, R, G, R, B, R},
		[]int{1, 3, 2, 6, 1, 2},
		botPlayer("bot_red", R, dice.TargetCareful), humanPlayer("blue", B), humanPlayer("green", G))
	p := tbl.Players[0]

	for i := 0; i < 20; i++ {
		m := TargetCarefulStrategy{}.Move(Sources(tbl, p), p, tbl)
		require.NotNil(t, m)
		require.Equal(t, dice.Emoji("d"), m.From.Emoji)
		require.Equal(t, dice.Emoji("e"), m.To.Emoji)
	}
}

func TestRevengeful_StrikesLastAgressor(t *testing.T) {
	SeedBotRng(6)
	defer ResetBotRng()

	// c borders blue b (1) and green d (5); green attacked last
	tbl := lineTable(t,
		[]dice.Color{B, B, R, G, G, G},
		[]int{1, 1, 6, 5, 1, 1},
		botPlayer("bot_red", R, dice.Revengeful), humanPlayer("blue", B), humanPlayer("green", G))
	tbl.Players[0].Bot.State.LastAgressor = "green"
	p := tbl.Players[0]

	for i := 0; i < 20; i++ {
		m := RevengefulStrategy{}.Move(Sources(tbl, p), p, tbl)
		require.NotNil(t, m)
		require.Equal(t, dice.Emoji("d"), m.To.Emoji)
	}
}

func TestRevengeful_WithoutAgressorPlaysCareful(t *testing.T) {
	SeedBotRng(7)
	defer ResetBotRng()

	tbl := lineTable(t,
		[]dice.Color{B, B, R, G, G, G},
		[]int{1, 1, 6, 5, 1, 1},
		botPlayer("bot_red", R, dice.Revengeful), humanPlayer("blue", B), humanPlayer("green", G))
	p := tbl.Players[0]

	for i := 0; i < 20; i++ {
		m := RevengefulStrategy{}.Move(Sources(tbl, p), p, tbl)
		require.NotNil(t, m)
		require.Equal(t, dice.Emoji("b"), m.To.Emoji)
	}
}
