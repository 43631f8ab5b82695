package dice

import "time"

// CommandType tags a command variant.
type CommandType string

const (
	CmdJoin      CommandType = "Join"
	CmdLeave     CommandType = "Leave"
	CmdAttack    CommandType = "Attack"
	CmdEndTurn   CommandType = "EndTurn"
	CmdSitOut    CommandType = "SitOut"
	CmdSitIn     CommandType = "SitIn"
	CmdFlag      CommandType = "Flag"
	CmdEnter     CommandType = "Enter"
	CmdExit      CommandType = "Exit"
	CmdHeartbeat CommandType = "Heartbeat"
	CmdChat      CommandType = "Chat"
)

// Result types produced by the engine itself rather than by a command.
const (
	ResultStart       CommandType = "Start"
	ResultRoll        CommandType = "Roll"
	ResultTurnTimeout CommandType = "TurnTimeout"
	ResultCleanup     CommandType = "Cleanup"
)

// ParseCommandType validates a command name coming from a transport.
func ParseCommandType(s string) (CommandType, bool) {
	switch t := CommandType(s); t {
	case CmdJoin, CmdLeave, CmdAttack, CmdEndTurn, CmdSitOut, CmdSitIn,
		CmdFlag, CmdEnter, CmdExit, CmdHeartbeat, CmdChat:
		return t, true
	}
	return "", false
}

// Command is one request against a table. User is nil for anonymous watchers.
type Command struct {
	Type     CommandType
	User     *User
	ClientID string
	From     Emoji
	To       Emoji
	Message  string
	Bot      *Bot // set when a bot joins
}

// TableProps is a patch of scalar table fields. Nil fields are unchanged.
type TableProps struct {
	Status           *Status
	GameStart        *time.Time
	TurnIndex        *int
	TurnStart        *time.Time
	TurnActivity     *bool
	TurnCount        *int
	RoundCount       *int
	PlayerStartCount *int
	CurrentGame      *int
	Attack           *Attack
	ClearAttack      bool
}

// CommandResult is the outcome of a command: a shallow patch plus events.
// A nil list leaves the table's list unchanged; a non-nil list replaces it.
type CommandResult struct {
	Type     CommandType
	Props    *TableProps
	Players  []Player
	Lands    []Land
	Watchers []Watcher
	Retired  []Player
	Events   []Event
}

// Mutates reports whether applying the result changes the table.
func (r *CommandResult) Mutates() bool {
	return r.Props != nil || r.Players != nil || r.Lands != nil || r.Watchers != nil || r.Retired != nil
}

// Apply returns a copy of t with the result's patch merged in.
func (r *CommandResult) Apply(t *Table) *Table {
	next := t.Clone()
	if p := r.Props; p != nil {
		if p.Status != nil {
			next.Status = *p.Status
		}
		if p.GameStart != nil {
			next.GameStart = *p.GameStart
		}
		if p.TurnIndex != nil {
			next.TurnIndex = *p.TurnIndex
		}
		if p.TurnStart != nil {
			next.TurnStart = *p.TurnStart
		}
		if p.TurnActivity != nil {
			next.TurnActivity = *p.TurnActivity
		}
		if p.TurnCount != nil {
			next.TurnCount = *p.TurnCount
		}
		if p.RoundCount != nil {
			next.RoundCount = *p.RoundCount
		}
		if p.PlayerStartCount != nil {
			next.PlayerStartCount = *p.PlayerStartCount
		}
		if p.CurrentGame != nil {
			next.CurrentGame = *p.CurrentGame
		}
		if p.ClearAttack {
			next.Attack = nil
		}
		if p.Attack != nil {
			a := *p.Attack
			next.Attack = &a
		}
	}
	if r.Players != nil {
		next.Players = clonePlayers(r.Players)
	}
	if r.Lands != nil {
		next.Lands = append([]Land{}, r.Lands...)
	}
	if r.Watchers != nil {
		next.Watching = append([]Watcher{}, r.Watchers...)
	}
	if r.Retired != nil {
		next.Retired = clonePlayers(r.Retired)
	}
	return next
}

func ptr[T any](v T) *T { return &v }

// Rules are the tunable constants of the game.
type Rules struct {
	TurnTimeout        time.Duration
	GameStartCountdown time.Duration
	MaxDice            int
	CapitalDice        int
	OutTurnsMax        int
}

// DefaultRules returns the standard game constants.
func DefaultRules() Rules {
	return Rules{
		TurnTimeout:        10 * time.Second,
		GameStartCountdown: 10 * time.Second,
		MaxDice:            8,
		CapitalDice:        4,
		OutTurnsMax:        2,
	}
}

// Engine applies commands and turn transitions to tables. It holds no table
// state; callers serialize access per table.
type Engine struct {
	rules Rules
	rng   Rand
}

// NewEngine creates an engine with the given rules and randomness.
func NewEngine(rules Rules, rng Rand) *Engine {
	return &Engine{rules: rules, rng: rng}
}
