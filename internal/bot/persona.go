package bot

import (
	"github.com/freeeve/qdice/pkg/dice"
)

// Persona is a named bot character with a fixed strategy.
type Persona struct {
	Name     string
	Picture  string
	Strategy dice.Strategy
}

// UserID is the user ID bots of this persona play under.
func (p Persona) UserID() string { return "bot_" + p.Name }

func persona(name string, s dice.Strategy, picture string) Persona {
	return Persona{Name: name, Strategy: s, Picture: "assets/bots/" + picture}
}

var personas = []Persona{
	persona("Alexander", dice.Revengeful, "bot_alexander.png"),
	persona("Augustus", dice.TargetCareful, "bot_caesar.png"),
	persona("Ioseb", dice.RandomCareless, "bot_ioseb.png"),
	persona("Napoleon", dice.ExtraCareful, "bot_napoleon.png"),
	persona("Franco", dice.ExtraCareful, "bot_franco.png"),
	persona("Benito", dice.RandomCareless, "bot_benito.png"),
	persona("Nikolae", dice.TargetCareful, "bot_nikolae.png"),
	persona("Mao", dice.TargetCareful, "bot_mao.png"),
	persona("Winston", dice.RandomCareful, "bot_winston.png"),
	persona("Genghis", dice.RandomCareless, "bot_genkhis.png"),
	persona("HiroHito", dice.TargetCareful, "bot_hirohito.png"),
	persona("Donald", dice.RandomCareful, "bot_trump.png"),
	persona("Fidel", dice.ExtraCareful, "bot_fidel.png"),
	persona("Vladimir", dice.RandomCareful, "bot_vladimir.png"),
	persona("Kim", dice.ExtraCareful, "bot_kim.png"),
	persona("Idi", dice.RandomCareful, "bot_idi.png"),
	persona("Ramses II", dice.RandomCareless, "bot_ramses.png"),
}

// Personas returns the roster of bot personas.
func Personas() []Persona {
	return append([]Persona(nil), personas...)
}

// PersonaFor returns the first persona playing the given strategy.
func PersonaFor(s dice.Strategy) (Persona, bool) {
	for _, p := range personas {
		if p.Strategy == s {
			return p, true
		}
	}
	return Persona{}, false
}

// JoinCommand is the command seating a persona at a table.
func JoinCommand(p Persona) dice.Command {
	return dice.Command{
		Type: dice.CmdJoin,
		User: &dice.User{
			ID:      p.UserID(),
			Name:    p.Name,
			Picture: p.Picture,
			Points:  100,
			Level:   1,
		},
		Bot: &dice.Bot{Strategy: p.Strategy},
	}
}

// AddBot returns a Join command for a random persona not yet seated, or
// false when every persona is taken.
func AddBot(t *dice.Table) (dice.Command, bool) {
	seated := make(map[string]bool, len(t.Players))
	for _, p := range t.Players {
		seated[p.ID] = true
	}
	var unused []Persona
	for _, p := range personas {
		if !seated[p.UserID()] {
			unused = append(unused, p)
		}
	}
	if len(unused) == 0 {
		return dice.Command{}, false
	}
	return JoinCommand(unused[botIntn(len(unused))]), true
}

func userOf(p dice.Player) *dice.User {
	return &dice.User{ID: p.ID, Name: p.Name, Picture: p.Picture, Points: p.Points, Level: p.Level}
}
