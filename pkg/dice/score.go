package dice

import (
	"sort"
	"time"
)

// Positions returns the current rank of each player, aligned with t.Players.
// Players with more lands rank higher and ties share a rank. A flagged player
// never ranks better than their flag, capped at the number of players.
func Positions(t *Table) []int {
	counts := make([]int, len(t.Players))
	for i, p := range t.Players {
		counts[i] = t.LandCount(p.Color)
	}
	pos := make([]int, len(t.Players))
	for i := range t.Players {
		pos[i] = 1
		for j := range t.Players {
			if counts[j] > counts[i] {
				pos[i]++
			}
		}
		if f := t.Players[i].Flag; f != nil && *f > pos[i] {
			pos[i] = min(*f, len(t.Players))
		}
	}
	return pos
}

// PositionScore is the score awarded for finishing at position among
// startCount players. Scores across all positions sum to zero.
func PositionScore(points, startCount, position int) int {
	if startCount < 2 {
		return 0
	}
	return points * (startCount - 2*position + 1) / (startCount - 1)
}

// Derived holds per-player values computed from lands and players alone.
type Derived struct {
	ConnectedLands int `json:"connectedLands"`
	TotalLands     int `json:"totalLands"`
	CurrentDice    int `json:"currentDice"`
	Position       int `json:"position"`
	Score          int `json:"score"`
}

// DerivePlayers computes derived values for every player, aligned with t.Players.
func DerivePlayers(t *Table) []Derived {
	positions := Positions(t)
	out := make([]Derived, len(t.Players))
	for i, p := range t.Players {
		d := Derived{
			ConnectedLands: LargestConnectedCount(t.Lands, t.Adjacency, p.Color),
			Position:       positions[i],
		}
		for _, l := range t.Lands {
			if l.Color == p.Color {
				d.TotalLands++
				d.CurrentDice += l.Points
			}
		}
		d.Score = p.Score + PositionScore(t.Points, t.PlayerStartCount, d.Position)
		out[i] = d
	}
	return out
}

// PlayerView is the public form of a player.
type PlayerView struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Picture     string  `json:"picture"`
	Color       Color   `json:"color"`
	ReserveDice int     `json:"reserveDice"`
	Out         bool    `json:"out"`
	OutTurns    int     `json:"outTurns"`
	Points      int     `json:"points"`
	Level       int     `json:"level"`
	Score       int     `json:"score"`
	Flag        *int    `json:"flag"`
	Bot         bool    `json:"bot"`
	Derived     Derived `json:"derived"`
}

// LandView is a land as [emoji, color, points].
type LandView [3]any

// TableStatus is the full public snapshot of a table.
type TableStatus struct {
	Tag         string       `json:"tag"`
	Name        string       `json:"name"`
	MapName     string       `json:"mapName"`
	PlayerSlots int          `json:"playerSlots"`
	StartSlots  int          `json:"startSlots"`
	Points      int          `json:"points"`
	Status      Status       `json:"status"`
	TurnIndex   int          `json:"turnIndex"`
	TurnStart   time.Time    `json:"turnStart"`
	GameStart   time.Time    `json:"gameStart"`
	TurnCount   int          `json:"turnCount"`
	RoundCount  int          `json:"roundCount"`
	Players     []PlayerView `json:"players"`
	Retired     []PlayerView `json:"retired"`
	Lands       []LandView   `json:"lands"`
	Attack      *Attack      `json:"attack,omitempty"`
	CanFlag     bool         `json:"canFlag"`
	WatchCount  int          `json:"watchCount"`
}

// Serialize builds the public snapshot, recomputing derived values.
func Serialize(t *Table) TableStatus {
	derived := DerivePlayers(t)
	players := make([]PlayerView, len(t.Players))
	for i, p := range t.Players {
		players[i] = viewOf(p, derived[i])
	}
	retired := make([]PlayerView, len(t.Retired))
	for i, p := range t.Retired {
		retired[i] = viewOf(p, Derived{Position: p.Position, Score: p.Score})
	}
	lands := make([]LandView, len(t.Lands))
	for i, l := range t.Lands {
		lands[i] = LandView{l.Emoji, l.Color, l.Points}
	}
	return TableStatus{
		Tag:         t.Tag,
		Name:        t.Name,
		MapName:     t.MapName,
		PlayerSlots: t.PlayerSlots,
		StartSlots:  t.StartSlots,
		Points:      t.Points,
		Status:      t.Status,
		TurnIndex:   t.TurnIndex,
		TurnStart:   t.TurnStart,
		GameStart:   t.GameStart,
		TurnCount:   t.TurnCount,
		RoundCount:  t.RoundCount,
		Players:     players,
		Retired:     retired,
		Lands:       lands,
		Attack:      t.Attack,
		CanFlag:     t.CanFlag(),
		WatchCount:  len(t.Watching),
	}
}

func viewOf(p Player, d Derived) PlayerView {
	return PlayerView{
		ID:          p.ID,
		Name:        p.Name,
		Picture:     p.Picture,
		Color:       p.Color,
		ReserveDice: p.ReserveDice,
		Out:         p.Out,
		OutTurns:    p.OutTurns,
		Points:      p.Points,
		Level:       p.Level,
		Score:       p.Score,
		Flag:        p.Flag,
		Bot:         p.IsBot(),
		Derived:     d,
	}
}

// TableInfo is one row of the global table list.
type TableInfo struct {
	Tag         string    `json:"tag"`
	Name        string    `json:"name"`
	MapName     string    `json:"mapName"`
	Status      Status    `json:"status"`
	PlayerSlots int       `json:"playerSlots"`
	StartSlots  int       `json:"startSlots"`
	Points      int       `json:"points"`
	StackSize   int       `json:"stackSize"`
	GameStart   time.Time `json:"gameStart"`
	TurnCount   int       `json:"turnCount"`
	RoundCount  int       `json:"roundCount"`
	Params      Params    `json:"params"`
	LandCount   int       `json:"landCount"`
	PlayerCount int       `json:"playerCount"`
	WatchCount  int       `json:"watchCount"`
	BotCount    int       `json:"botCount"`
}

// Info summarizes a table for the global list.
func Info(t *Table) TableInfo {
	bots := 0
	for _, p := range t.Players {
		if p.IsBot() {
			bots++
		}
	}
	return TableInfo{
		Tag:         t.Tag,
		Name:        t.Name,
		MapName:     t.MapName,
		Status:      t.Status,
		PlayerSlots: t.PlayerSlots,
		StartSlots:  t.StartSlots,
		Points:      t.Points,
		StackSize:   t.StackSize,
		GameStart:   t.GameStart,
		TurnCount:   t.TurnCount,
		RoundCount:  t.RoundCount,
		Params:      t.Params,
		LandCount:   len(t.Lands),
		PlayerCount: len(t.Players),
		WatchCount:  len(t.Watching),
		BotCount:    bots,
	}
}

// Infos summarizes tables sorted by name.
func Infos(tables []*Table) []TableInfo {
	out := make([]TableInfo, len(tables))
	for i, t := range tables {
		out[i] = Info(t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Tag < out[j].Tag
	})
	return out
}
