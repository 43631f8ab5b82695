package dice

import "time"

// EventType tags an outbound event.
type EventType string

const (
	EventJoin        EventType = "join"
	EventLeave       EventType = "leave"
	EventCountdown   EventType = "countdown"
	EventStart       EventType = "start"
	EventMove        EventType = "move"
	EventRoll        EventType = "roll"
	EventTurn        EventType = "turn"
	EventElimination EventType = "elimination"
	EventFlag        EventType = "flag"
	EventEnter       EventType = "enter"
	EventExit        EventType = "exit"
	EventChat        EventType = "chat"
	EventUpdate      EventType = "update"
	EventTables      EventType = "tables"
)

// Event is a message to publish. Table is empty for global events.
type Event struct {
	Type    EventType `json:"type"`
	Table   string    `json:"table,omitempty"`
	Payload any       `json:"payload"`
}

type PlayerRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color Color  `json:"color"`
}

type CountdownPayload struct {
	GameStart time.Time   `json:"gameStart"`
	Players   []PlayerRef `json:"players"`
}

type MovePayload struct {
	From Emoji `json:"from"`
	To   Emoji `json:"to"`
}

type RollSide struct {
	Emoji Emoji `json:"emoji"`
	Roll  []int `json:"roll"`
}

type RollPayload struct {
	From RollSide `json:"from"`
	To   RollSide `json:"to"`
}

type TurnPayload struct {
	TurnIndex int       `json:"turnIndex"`
	Player    PlayerRef `json:"player"`
}

// EliminationReason says why a player left the game.
type EliminationReason string

const (
	ReasonDead EliminationReason = "dead"
	ReasonFlag EliminationReason = "flag"
	ReasonWin  EliminationReason = "win"
)

type EliminationPayload struct {
	Player   PlayerRef         `json:"player"`
	Position int               `json:"position"`
	Score    int               `json:"score"`
	Reason   EliminationReason `json:"reason"`
}

type FlagPayload struct {
	Player PlayerRef `json:"player"`
	Flag   int       `json:"flag"`
}

type PresencePayload struct {
	Name string `json:"name,omitempty"`
}

type ChatPayload struct {
	User    string `json:"user,omitempty"`
	Message string `json:"message"`
}

func refOf(p Player) PlayerRef {
	return PlayerRef{ID: p.ID, Name: p.Name, Color: p.Color}
}

func newEvent(t *Table, typ EventType, payload any) Event {
	return Event{Type: typ, Table: t.Tag, Payload: payload}
}
