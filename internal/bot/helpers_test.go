package bot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/freeeve/qdice/pkg/dice"
)

var t0 = time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

func botPlayer(id string, c dice.Color, s dice.Strategy) dice.Player {
	return dice.Player{ID: id, Name: id, Color: c, Bot: &dice.Bot{Strategy: s}}
}

func humanPlayer(id string, c dice.Color) dice.Player {
	return dice.Player{ID: id, Name: id, Color: c}
}

// lineTable builds a PLAYING table on the map a-b-c-d-e-f with the given
// land colors and dice.
func lineTable(t *testing.T, colors []dice.Color, points []int, players ...dice.Player) *dice.Table {
	t.Helper()
	m, err := dice.ParseMap([]byte(`{
		"name": "Line",
		"lands": ["a", "b", "c", "d", "e", "f"],
		"borders": [["a","b"], ["b","c"], ["c","d"], ["d","e"], ["e","f"]]
	}`))
	require.NoError(t, err)
	tbl := dice.NewTable(dice.Config{Tag: "Line", MapName: "Line", PlayerSlots: 4, StartSlots: 2, StackSize: 4, Points: 100}, m)
	tbl.Status = dice.StatusPlaying
	tbl.TurnIndex = 0
	tbl.TurnStart = t0
	tbl.RoundCount = 1
	tbl.PlayerStartCount = len(players)
	tbl.Players = players
	for i := range tbl.Lands {
		tbl.Lands[i].Color = colors[i]
		tbl.Lands[i].Points = points[i]
	}
	return tbl
}

func land(tbl *dice.Table, e dice.Emoji) dice.Land {
	return tbl.Lands[tbl.LandByEmoji(e)]
}
