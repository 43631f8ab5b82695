package dice

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Execute validates cmd against t and returns the resulting patch. The table
// is never modified; an IllegalMoveError means nothing was applied.
func (e *Engine) Execute(t *Table, cmd Command, now time.Time) (*CommandResult, error) {
	switch cmd.Type {
	case CmdEnter:
		return e.Enter(t, cmd.User, cmd.ClientID, now), nil
	case CmdExit:
		return e.Exit(t, cmd.User, cmd.ClientID), nil
	case CmdHeartbeat:
		return e.Heartbeat(t, cmd.User, cmd.ClientID, now), nil
	case CmdChat:
		return e.Chat(t, cmd.User, cmd.Message)
	}

	if cmd.User == nil || cmd.User.ID == "" {
		return nil, illegal(fmt.Sprintf("%s requires a user", strings.ToLower(string(cmd.Type))), "")
	}
	u := *cmd.User
	switch cmd.Type {
	case CmdJoin:
		return e.Join(t, u, cmd.ClientID, cmd.Bot, now)
	case CmdLeave:
		return e.Leave(t, u, now)
	case CmdAttack:
		return e.Attack(t, u, cmd.ClientID, cmd.From, cmd.To, now)
	case CmdEndTurn:
		return e.EndTurn(t, u, now)
	case CmdSitOut:
		return e.SitOut(t, u)
	case CmdSitIn:
		return e.SitIn(t, u)
	case CmdFlag:
		return e.Flag(t, u)
	}
	return nil, illegal(fmt.Sprintf("unknown command %q", cmd.Type), u.ID)
}

// Join seats a user at a paused or finished table.
func (e *Engine) Join(t *Table, u User, clientID string, bot *Bot, now time.Time) (*CommandResult, error) {
	if t.Status == StatusPlaying {
		return nil, illegal("join while STATUS_PLAYING", u.ID)
	}
	if t.PlayerByID(u.ID) >= 0 {
		return nil, illegal("already joined", u.ID)
	}
	if len(t.Players) >= t.PlayerSlots {
		return nil, illegal("table full", u.ID)
	}

	p := Player{
		ID:       u.ID,
		ClientID: clientID,
		Name:     u.Name,
		Picture:  u.Picture,
		Color:    Color(len(t.Players) + 1),
		Points:   u.Points,
		Level:    u.Level,
		LastBeat: now,
	}
	if bot != nil {
		b := *bot
		p.Bot = &b
	}
	players := append(clonePlayers(t.Players), p)

	res := &CommandResult{Type: CmdJoin, Props: &TableProps{}, Players: players}
	if t.Status == StatusFinished {
		res.Props.Status = ptr(StatusPaused)
		res.Props.TurnCount = ptr(1)
		res.Props.RoundCount = ptr(0)
		lands := make([]Land, len(t.Lands))
		for i, l := range t.Lands {
			lands[i] = Land{Emoji: l.Emoji, Color: Neutral, Points: 1}
		}
		res.Lands = lands
	}

	switch {
	case len(players) == t.PlayerSlots:
		res.Props.GameStart = ptr(now)
	case len(players) >= 2 && len(players) >= t.StartSlots:
		start := now.Add(e.rules.GameStartCountdown)
		res.Props.GameStart = ptr(start)
		refs := make([]PlayerRef, len(players))
		for i, p := range players {
			refs[i] = refOf(p)
		}
		res.Events = append(res.Events, newEvent(t, EventCountdown, CountdownPayload{GameStart: start, Players: refs}))
	default:
		res.Events = append(res.Events, newEvent(t, EventJoin, refOf(p)))
	}
	return res, nil
}

// Leave removes a user from a table that is not playing and recolors the
// remaining players densely.
func (e *Engine) Leave(t *Table, u User, now time.Time) (*CommandResult, error) {
	if t.Status == StatusPlaying {
		return nil, illegal("leave while STATUS_PLAYING", u.ID)
	}
	idx := t.PlayerByID(u.ID)
	if idx < 0 {
		return nil, illegal("not joined", u.ID)
	}

	players := make([]Player, 0, len(t.Players)-1)
	for i, p := range t.Players {
		if i != idx {
			players = append(players, p.clone())
		}
	}
	for i := range players {
		players[i].Color = Color(i + 1)
	}

	gameStart := time.Time{}
	if len(players) >= 2 && len(players) >= t.StartSlots {
		gameStart = now.Add(e.rules.GameStartCountdown)
	}
	props := &TableProps{GameStart: ptr(gameStart)}
	if len(players) == 0 && t.Status == StatusPaused {
		props.Status = ptr(StatusFinished)
	}
	return &CommandResult{
		Type:    CmdLeave,
		Props:   props,
		Players: players,
		Events:  []Event{newEvent(t, EventLeave, refOf(t.Players[idx]))},
	}, nil
}

// Attack validates an attack and records it as pending. The dice are rolled
// later by Resolve.
func (e *Engine) Attack(t *Table, u User, clientID string, from, to Emoji, now time.Time) (*CommandResult, error) {
	args := []string{string(from), string(to)}
	if t.Status != StatusPlaying {
		return nil, illegal("attack while not STATUS_PLAYING", u.ID, args...)
	}
	if !t.HasTurn(u.ID) {
		return nil, illegal("attack while not having turn", u.ID, args...)
	}
	if t.Attack != nil {
		return nil, illegal("attack while attack pending", u.ID, args...)
	}
	fi, ti := t.LandByEmoji(from), t.LandByEmoji(to)
	if fi < 0 || ti < 0 {
		return nil, illegal("some land not found in attack", u.ID, args...)
	}
	fromLand, toLand := t.Lands[fi], t.Lands[ti]
	if fromLand.Color == Neutral {
		return nil, illegal("attack from neutral", u.ID, args...)
	}
	if fromLand.Color != t.Players[t.TurnIndex].Color {
		return nil, illegal("attack from foreign land", u.ID, args...)
	}
	if fromLand.Points <= 1 {
		return nil, illegal("attack from single-die land", u.ID, args...)
	}
	if fromLand.Color == toLand.Color {
		return nil, illegal("attack same color", u.ID, args...)
	}
	if !t.Adjacency.IsBorder(from, to) {
		return nil, illegal("attack not border", u.ID, args...)
	}

	res := &CommandResult{
		Type: CmdAttack,
		Props: &TableProps{
			TurnStart:    ptr(now),
			TurnActivity: ptr(true),
			Attack: &Attack{
				ID:       uuid.NewString(),
				Start:    now,
				From:     from,
				To:       to,
				ClientID: clientID,
			},
		},
		Events: []Event{newEvent(t, EventMove, MovePayload{From: from, To: to})},
	}
	if p := t.Players[t.TurnIndex]; p.Out || p.OutTurns > 0 {
		res.Players = backIn(t.Players, t.TurnIndex)
	}
	return res, nil
}

// EndTurn passes the turn on, reinforcing the ending player.
func (e *Engine) EndTurn(t *Table, u User, now time.Time) (*CommandResult, error) {
	if t.Status != StatusPlaying {
		return nil, illegal("endTurn while not STATUS_PLAYING", u.ID)
	}
	if !t.HasTurn(u.ID) {
		return nil, illegal("endTurn while not having turn", u.ID)
	}
	if t.Attack != nil {
		return nil, illegal("endTurn while attack pending", u.ID)
	}
	return e.nextTurn(t, CmdEndTurn, backIn(t.Players, t.TurnIndex), now), nil
}

// backIn returns a copy of players with players[i] no longer out.
func backIn(players []Player, i int) []Player {
	out := clonePlayers(players)
	out[i].Out = false
	out[i].OutTurns = 0
	return out
}

// SitOut marks a player as away. Their turns are skipped but lands are kept.
func (e *Engine) SitOut(t *Table, u User) (*CommandResult, error) {
	if t.Status != StatusPlaying {
		return nil, illegal("sitOut while not STATUS_PLAYING", u.ID)
	}
	idx := t.PlayerByID(u.ID)
	if idx < 0 {
		return nil, illegal("sitOut while not in game", u.ID)
	}
	players := clonePlayers(t.Players)
	players[idx].Out = true
	return &CommandResult{Type: CmdSitOut, Players: players}, nil
}

func (e *Engine) SitIn(t *Table, u User) (*CommandResult, error) {
	if t.Status != StatusPlaying {
		return nil, illegal("sitIn while not STATUS_PLAYING", u.ID)
	}
	idx := t.PlayerByID(u.ID)
	if idx < 0 {
		return nil, illegal("sitIn while not in game", u.ID)
	}
	return &CommandResult{Type: CmdSitIn, Players: backIn(t.Players, idx)}, nil
}

// Flag concedes the player's current position. A flag can only be raised
// to a worse position, and the game ends once a single player is unflagged.
func (e *Engine) Flag(t *Table, u User) (*CommandResult, error) {
	if t.Status != StatusPlaying {
		return nil, illegal("flag while not STATUS_PLAYING", u.ID)
	}
	idx := t.PlayerByID(u.ID)
	if idx < 0 {
		return nil, illegal("flag while not in game", u.ID)
	}
	if !t.CanFlag() {
		return nil, illegal(fmt.Sprintf("cannot flag before round %d", t.Params.NoFlagRounds), u.ID)
	}
	position := Positions(t)[idx]
	if position == 1 {
		return nil, illegal("cannot flag first position", u.ID)
	}
	if f := t.Players[idx].Flag; f != nil && *f >= position {
		return nil, illegal("flag not increasing", u.ID, fmt.Sprint(*f), fmt.Sprint(position))
	}

	players := clonePlayers(t.Players)
	players[idx].Flag = ptr(position)
	res := &CommandResult{
		Type:    CmdFlag,
		Players: players,
		Events:  []Event{newEvent(t, EventFlag, FlagPayload{Player: refOf(players[idx]), Flag: position})},
	}

	if unflaggedCount(players) == 1 {
		e.finish(t, res, append([]Land{}, t.Lands...))
	}
	return res, nil
}

func findWatcher(ws []Watcher, u *User, clientID string) int {
	for i, w := range ws {
		if u != nil && u.ID != "" {
			if w.ID == u.ID {
				return i
			}
		} else if w.ClientID == clientID {
			return i
		}
	}
	return -1
}

func newWatcher(u *User, clientID string, now time.Time) Watcher {
	w := Watcher{ClientID: clientID, LastBeat: now}
	if u != nil {
		w.ID = u.ID
		w.Name = u.Name
	}
	return w
}

// Heartbeat refreshes or adds the caller's watcher record.
func (e *Engine) Heartbeat(t *Table, u *User, clientID string, now time.Time) *CommandResult {
	watchers := append([]Watcher{}, t.Watching...)
	if i := findWatcher(watchers, u, clientID); i >= 0 {
		watchers[i].LastBeat = now
	} else {
		watchers = append(watchers, newWatcher(u, clientID, now))
	}
	return &CommandResult{Type: CmdHeartbeat, Watchers: watchers}
}

// Enter registers a client as watching the table.
func (e *Engine) Enter(t *Table, u *User, clientID string, now time.Time) *CommandResult {
	for _, w := range t.Watching {
		if w.ClientID == clientID {
			return &CommandResult{Type: CmdEnter}
		}
	}
	return &CommandResult{
		Type:     CmdEnter,
		Watchers: append(append([]Watcher{}, t.Watching...), newWatcher(u, clientID, now)),
		Events:   []Event{newEvent(t, EventEnter, PresencePayload{Name: nameOf(u)})},
	}
}

// Exit removes a client's watcher record.
func (e *Engine) Exit(t *Table, u *User, clientID string) *CommandResult {
	watchers := make([]Watcher, 0, len(t.Watching))
	for _, w := range t.Watching {
		if w.ClientID != clientID {
			watchers = append(watchers, w)
		}
	}
	if len(watchers) == len(t.Watching) {
		return &CommandResult{Type: CmdExit}
	}
	return &CommandResult{
		Type:     CmdExit,
		Watchers: watchers,
		Events:   []Event{newEvent(t, EventExit, PresencePayload{Name: nameOf(u)})},
	}
}

// Chat produces a chat event without changing the table.
func (e *Engine) Chat(t *Table, u *User, message string) (*CommandResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, illegal("empty chat message", idOf(u))
	}
	return &CommandResult{
		Type:   CmdChat,
		Events: []Event{newEvent(t, EventChat, ChatPayload{User: nameOf(u), Message: message})},
	}, nil
}

// PruneWatchers drops watchers whose last heartbeat is older than maxAge.
// It returns nil when nothing is stale.
func (e *Engine) PruneWatchers(t *Table, now time.Time, maxAge time.Duration) *CommandResult {
	watchers := make([]Watcher, 0, len(t.Watching))
	for _, w := range t.Watching {
		if now.Sub(w.LastBeat) < maxAge {
			watchers = append(watchers, w)
		}
	}
	if len(watchers) == len(t.Watching) {
		return nil
	}
	return &CommandResult{Type: ResultCleanup, Watchers: watchers}
}

func nameOf(u *User) string {
	if u == nil {
		return ""
	}
	return u.Name
}

func idOf(u *User) string {
	if u == nil {
		return ""
	}
	return u.ID
}
