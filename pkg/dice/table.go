package dice

import (
	"slices"
	"time"
)

// Color identifies a player's ownership of lands. Neutral marks unclaimed lands.
type Color int

const (
	Neutral Color = -1
	Red     Color = 1
	Blue    Color = 2
	Green   Color = 3
	Yellow  Color = 4
	Magenta Color = 5
	Cyan    Color = 6
	Orange  Color = 7
	Beige   Color = 8
)

// MaxPlayers is the number of distinct player colors.
const MaxPlayers = 8

// Status is the table-level game status.
type Status string

const (
	StatusPaused   Status = "PAUSED"
	StatusPlaying  Status = "PLAYING"
	StatusFinished Status = "FINISHED"
)

// Emoji identifies a land on a map.
type Emoji string

// Land is a single territory cell.
type Land struct {
	Emoji   Emoji `json:"emoji"`
	Color   Color `json:"color"`
	Points  int   `json:"points"`
	Capital bool  `json:"capital"`
}

// Strategy names a bot decision policy.
type Strategy string

const (
	RandomCareless Strategy = "RandomCareless"
	RandomCareful  Strategy = "RandomCareful"
	TargetCareful  Strategy = "TargetCareful"
	ExtraCareful   Strategy = "ExtraCareful"
	Revengeful     Strategy = "Revengeful"
)

// BotState holds the counters a bot carries between turns.
type BotState struct {
	DeadlockCount int    `json:"deadlockCount"`
	LastAgressor  string `json:"lastAgressor,omitempty"` // player ID
}

// Bot is present only on bot-controlled players.
type Bot struct {
	Strategy Strategy `json:"strategy"`
	State    BotState `json:"state"`
}

// Player is a seated participant of a table.
type Player struct {
	ID          string    `json:"id"`
	ClientID    string    `json:"clientId"`
	Name        string    `json:"name"`
	Picture     string    `json:"picture"`
	Color       Color     `json:"color"`
	ReserveDice int       `json:"reserveDice"`
	Out         bool      `json:"out"`
	OutTurns    int       `json:"outTurns"`
	Points      int       `json:"points"`
	Level       int       `json:"level"`
	Position    int       `json:"position"`
	Score       int       `json:"score"`
	Flag        *int      `json:"flag"`
	LastBeat    time.Time `json:"lastBeat"`
	Bot         *Bot      `json:"bot,omitempty"`
}

// IsBot reports whether the player is bot-controlled.
func (p Player) IsBot() bool { return p.Bot != nil }

// Watcher is a spectator connection record.
type Watcher struct {
	ClientID string    `json:"clientId"`
	ID       string    `json:"id,omitempty"`
	Name     string    `json:"name,omitempty"`
	LastBeat time.Time `json:"lastBeat"`
}

// Attack is a validated attack awaiting its dice roll.
type Attack struct {
	ID       string    `json:"id"`
	Start    time.Time `json:"start"`
	From     Emoji     `json:"from"`
	To       Emoji     `json:"to"`
	ClientID string    `json:"clientId"`
}

// Params are per-table rule tweaks.
type Params struct {
	NoFlagRounds int  `json:"noFlagRounds" yaml:"noFlagRounds"`
	BotLess      bool `json:"botLess" yaml:"botLess"`
}

// Table is the aggregate root of one game table.
type Table struct {
	Name             string    `json:"name"`
	Tag              string    `json:"tag"`
	MapName          string    `json:"mapName"`
	Players          []Player  `json:"players"`
	PlayerSlots      int       `json:"playerSlots"`
	StartSlots       int       `json:"startSlots"`
	Points           int       `json:"points"`
	Status           Status    `json:"status"`
	GameStart        time.Time `json:"gameStart"`
	TurnIndex        int       `json:"turnIndex"`
	TurnStart        time.Time `json:"turnStart"`
	TurnActivity     bool      `json:"turnActivity"`
	Lands            []Land    `json:"lands"`
	Adjacency        Adjacency `json:"-"`
	StackSize        int       `json:"stackSize"`
	PlayerStartCount int       `json:"playerStartCount"`
	TurnCount        int       `json:"turnCount"`
	RoundCount       int       `json:"roundCount"`
	Watching         []Watcher `json:"watching"`
	Attack           *Attack   `json:"attack"`
	Params           Params    `json:"params"`
	Retired          []Player  `json:"retired"`
	CurrentGame      int       `json:"currentGame"`
}

// User is the acting identity behind a command.
type User struct {
	ID      string
	Name    string
	Picture string
	Points  int
	Level   int
}

// Config describes a table before it has been created.
type Config struct {
	Tag         string `yaml:"tag"`
	Name        string `yaml:"name"`
	MapName     string `yaml:"mapName"`
	PlayerSlots int    `yaml:"playerSlots"`
	StartSlots  int    `yaml:"startSlots"`
	StackSize   int    `yaml:"stackSize"`
	Points      int    `yaml:"points"`
	Params      Params `yaml:"params"`
}

// NewTable builds a fresh, empty table from a config and a loaded map.
// Lands start neutral with a single die.
func NewTable(cfg Config, m *Map) *Table {
	lands := make([]Land, len(m.Lands))
	for i, l := range m.Lands {
		lands[i] = Land{Emoji: l.Emoji, Color: Neutral, Points: 1}
	}
	name := cfg.Name
	if name == "" {
		name = cfg.Tag
	}
	return &Table{
		Name:        name,
		Tag:         cfg.Tag,
		MapName:     cfg.MapName,
		Players:     []Player{},
		PlayerSlots: cfg.PlayerSlots,
		StartSlots:  cfg.StartSlots,
		Points:      cfg.Points,
		Status:      StatusFinished,
		TurnIndex:   -1,
		Lands:       lands,
		Adjacency:   m.Adjacency,
		StackSize:   cfg.StackSize,
		TurnCount:   1,
		Watching:    []Watcher{},
		Params:      cfg.Params,
		Retired:     []Player{},
	}
}

// Clone returns a deep copy of the table. Adjacency is shared since it is immutable.
func (t *Table) Clone() *Table {
	c := *t
	c.Players = clonePlayers(t.Players)
	c.Retired = clonePlayers(t.Retired)
	c.Lands = slices.Clone(t.Lands)
	c.Watching = slices.Clone(t.Watching)
	if t.Attack != nil {
		a := *t.Attack
		c.Attack = &a
	}
	return &c
}

func clonePlayers(ps []Player) []Player {
	if ps == nil {
		return nil
	}
	out := make([]Player, len(ps))
	for i, p := range ps {
		out[i] = p.clone()
	}
	return out
}

func (p Player) clone() Player {
	if p.Flag != nil {
		f := *p.Flag
		p.Flag = &f
	}
	if p.Bot != nil {
		b := *p.Bot
		p.Bot = &b
	}
	return p
}

// PlayerByID returns the index of the player with the given ID, or -1.
func (t *Table) PlayerByID(id string) int {
	for i := range t.Players {
		if t.Players[i].ID == id {
			return i
		}
	}
	return -1
}

// PlayerByColor returns the index of the player holding the color, or -1.
func (t *Table) PlayerByColor(c Color) int {
	if c == Neutral {
		return -1
	}
	for i := range t.Players {
		if t.Players[i].Color == c {
			return i
		}
	}
	return -1
}

// LandByEmoji returns the index of the land, or -1.
func (t *Table) LandByEmoji(e Emoji) int {
	for i := range t.Lands {
		if t.Lands[i].Emoji == e {
			return i
		}
	}
	return -1
}

// HasTurn reports whether the user holds the current turn.
func (t *Table) HasTurn(userID string) bool {
	return t.TurnIndex >= 0 && t.TurnIndex < len(t.Players) && t.Players[t.TurnIndex].ID == userID
}

// CanFlag reports whether flagging is allowed at the current round.
func (t *Table) CanFlag() bool {
	return t.RoundCount >= t.Params.NoFlagRounds
}

// LandCount returns how many lands the color owns.
func (t *Table) LandCount(c Color) int {
	n := 0
	for _, l := range t.Lands {
		if l.Color == c {
			n++
		}
	}
	return n
}

func (t *Table) humanCount() int {
	n := 0
	for _, p := range t.Players {
		if !p.IsBot() {
			n++
		}
	}
	return n
}
