package dice

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// seqRand replays scripted values, then returns zeros.
type seqRand struct {
	ints   []int
	floats []float64
}

func (s *seqRand) Intn(n int) int {
	if len(s.ints) == 0 {
		return 0
	}
	v := s.ints[0]
	s.ints = s.ints[1:]
	return v % n
}

func (s *seqRand) Float64() float64 {
	if len(s.floats) == 0 {
		return 0
	}
	v := s.floats[0]
	s.floats = s.floats[1:]
	return v
}

// lineMap is a-b-c-d-e in a row, with f bordering only e.
func lineMap(t *testing.T) *Map {
	t.Helper()
	m, err := ParseMap([]byte(`{
		"name": "Line",
		"lands": ["a", "b", "c", "d", "e", "f"],
		"borders": [["a","b"], ["b","c"], ["c","d"], ["d","e"], ["e","f"]]
	}`))
	require.NoError(t, err)
	return m
}

func newTestTable(t *testing.T, slots int) *Table {
	t.Helper()
	return NewTable(Config{
		Tag:         "Test",
		MapName:     "Line",
		PlayerSlots: slots,
		StartSlots:  2,
		StackSize:   4,
		Points:      100,
	}, lineMap(t))
}

func user(id string) User {
	return User{ID: id, Name: "user " + id, Points: 100, Level: 1}
}

// playing builds a PLAYING table with one player per color and lands set
// from the given colors and points.
func playing(t *testing.T, players int, colors []Color, points []int) *Table {
	t.Helper()
	tbl := newTestTable(t, players)
	tbl.Status = StatusPlaying
	tbl.TurnIndex = 0
	tbl.TurnStart = t0
	tbl.TurnCount = 1
	tbl.RoundCount = 1
	tbl.PlayerStartCount = players
	for i := 0; i < players; i++ {
		u := user(string(rune('1' + i)))
		tbl.Players = append(tbl.Players, Player{ID: u.ID, Name: u.Name, Color: Color(i + 1)})
	}
	for i := range tbl.Lands {
		tbl.Lands[i].Color = colors[i]
		tbl.Lands[i].Points = points[i]
	}
	return tbl
}

func apply(t *testing.T, e *Engine, tbl *Table, cmd Command) *Table {
	t.Helper()
	res, err := e.Execute(tbl, cmd, t0)
	require.NoError(t, err)
	return res.Apply(tbl)
}

func colorsOf(ps []Player) []Color {
	out := make([]Color, len(ps))
	for i, p := range ps {
		out[i] = p.Color
	}
	return out
}
