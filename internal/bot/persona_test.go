package bot

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/freeeve/qdice/pkg/dice"
)

func TestPersonas_UniqueAndCoverStrategies(t *testing.T) {
	seen := map[string]bool{}
	strategies := map[dice.Strategy]bool{}
	for _, p := range Personas() {
		require.False(t, seen[p.Name], "duplicate persona %s", p.Name)
		seen[p.Name] = true
		strategies[p.Strategy] = true
		require.True(t, strings.HasPrefix(p.UserID(), "bot_"))
	}
	for _, s := range Strategies() {
		require.True(t, strategies[s], "no persona plays %s", s)
	}
}

func TestAddBot_SkipsSeatedPersonas(t *testing.T) {
	SeedBotRng(21)
	defer ResetBotRng()

	all := Personas()
	var players []dice.Player
	for _, p := range all[1:] {
		players = append(players, botPlayer(p.UserID(), dice.Red, p.Strategy))
	}
	tbl := pausedTable(t, players...)

	cmd, ok := AddBot(tbl)
	require.True(t, ok)
	require.Equal(t, all[0].UserID(), cmd.User.ID)
	require.Equal(t, all[0].Strategy, cmd.Bot.Strategy)

	tbl.Players = append(tbl.Players, botPlayer(all[0].UserID(), dice.Red, all[0].Strategy))
	_, ok = AddBot(tbl)
	require.False(t, ok)
}

func TestJoinCommand(t *testing.T) {
	p, ok := PersonaFor(dice.Revengeful)
	require.True(t, ok)
	cmd := JoinCommand(p)
	require.Equal(t, dice.CmdJoin, cmd.Type)
	require.Equal(t, p.Name, cmd.User.Name)
	require.Equal(t, dice.Revengeful, cmd.Bot.Strategy)
}
