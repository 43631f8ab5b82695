package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/qdice/pkg/dice"
)

// RemotePlayer plays one strategy at a server table through the public
// HTTP and WebSocket API, as a logged-in user.
type RemotePlayer struct {
	client   *Client
	tag      string
	strategy dice.Strategy
	tick     TickConfig
	poll     time.Duration
	now      func() time.Time

	seated bool
}

// NewRemotePlayer creates a RemotePlayer.
func NewRemotePlayer(c *Client, tag string, strategy dice.Strategy) *RemotePlayer {
	return &RemotePlayer{
		client:   c,
		tag:      tag,
		strategy: strategy,
		tick:     DefaultTickConfig(),
		poll:     2 * time.Second,
		now:      time.Now,
	}
}

// Run logs in, joins the table and plays until the player is eliminated,
// the game finishes, or ctx is canceled.
func (p *RemotePlayer) Run(ctx context.Context) error {
	if err := p.client.Login(ctx); err != nil {
		return err
	}
	if err := p.client.ConnectWS(ctx); err != nil {
		return err
	}
	defer p.client.CloseWS()
	if err := p.client.Subscribe(p.tag); err != nil {
		return fmt.Errorf("subscribe %s: %w", p.tag, err)
	}

	join := dice.Command{Type: dice.CmdJoin}
	if err := p.client.Send(ctx, p.tag, join); err != nil && !isIllegal(err, "already joined") {
		return fmt.Errorf("join %s: %w", p.tag, err)
	}
	log.Info().Str("bot", p.client.Name()).Str("tag", p.tag).Str("strategy", string(p.strategy)).Msg("Remote bot joined")

	ticker := time.NewTicker(p.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-p.client.Events():
			if !ok {
				return errors.New("websocket closed")
			}
		case <-ticker.C:
		}

		done, err := p.Step(ctx)
		if err != nil {
			return err
		}
		if done {
			log.Info().Str("bot", p.client.Name()).Str("tag", p.tag).Msg("Remote bot finished")
			return nil
		}
	}
}

// Step fetches the table and sends at most one command. It reports true
// once the player has left the game.
func (p *RemotePlayer) Step(ctx context.Context) (bool, error) {
	st, err := p.client.Status(ctx, p.tag)
	if err != nil {
		return false, fmt.Errorf("status %s: %w", p.tag, err)
	}
	t, err := TableFromStatus(st)
	if err != nil {
		return false, err
	}
	me := t.PlayerByID(p.client.UserID())
	if me < 0 {
		return p.seated, nil
	}
	if t.Status != dice.StatusPlaying {
		return false, nil
	}
	p.seated = true
	if t.TurnIndex != me {
		return false, nil
	}

	t.Players[me].Bot = &dice.Bot{Strategy: p.strategy}
	cmd, err := TickTurn(t, p.now(), p.tick)
	if err != nil || cmd == nil {
		return false, err
	}
	if err := p.client.Send(ctx, p.tag, *cmd); err != nil {
		if isIllegal(err, "") {
			// the table moved on between status and command
			log.Debug().Err(err).Str("bot", p.client.Name()).Msg("Remote command rejected")
			return false, nil
		}
		return false, fmt.Errorf("%s %s: %w", cmd.Type, p.tag, err)
	}
	return false, nil
}

func isIllegal(err error, reason string) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusBadRequest && strings.Contains(se.Body, reason)
}

// TableFromStatus rebuilds an engine table from a public snapshot so bot
// strategies can run client side. Other bots are marked with a placeholder
// strategy; only their presence matters to the decision.
func TableFromStatus(st *dice.TableStatus) (*dice.Table, error) {
	m, err := dice.LoadMap(st.MapName)
	if err != nil {
		return nil, err
	}
	t := dice.NewTable(dice.Config{
		Tag:         st.Tag,
		Name:        st.Name,
		MapName:     st.MapName,
		PlayerSlots: st.PlayerSlots,
		StartSlots:  st.StartSlots,
		Points:      st.Points,
	}, m)
	t.Status = st.Status
	t.TurnIndex = st.TurnIndex
	t.TurnStart = st.TurnStart
	t.GameStart = st.GameStart
	t.TurnCount = st.TurnCount
	t.RoundCount = st.RoundCount
	t.Attack = st.Attack
	if !st.CanFlag {
		t.Params.NoFlagRounds = st.RoundCount + 1
	}

	t.Players = make([]dice.Player, len(st.Players))
	for i, v := range st.Players {
		t.Players[i] = dice.Player{
			ID:          v.ID,
			Name:        v.Name,
			Picture:     v.Picture,
			Color:       v.Color,
			ReserveDice: v.ReserveDice,
			Out:         v.Out,
			OutTurns:    v.OutTurns,
			Points:      v.Points,
			Level:       v.Level,
			Score:       v.Score,
			Flag:        v.Flag,
		}
		if v.Bot {
			t.Players[i].Bot = &dice.Bot{Strategy: dice.RandomCareful}
		}
	}

	for _, lv := range st.Lands {
		land, err := landOf(lv)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", st.Tag, err)
		}
		i := t.LandByEmoji(land.Emoji)
		if i < 0 {
			return nil, fmt.Errorf("table %s: land %s not on map %s", st.Tag, land.Emoji, st.MapName)
		}
		t.Lands[i].Color = land.Color
		t.Lands[i].Points = land.Points
	}
	return t, nil
}

// landOf decodes a [emoji, color, points] triple, which arrives with JSON
// numbers after a round trip.
func landOf(v dice.LandView) (dice.Land, error) {
	emoji, ok := v[0].(string)
	if !ok {
		if e, isEmoji := v[0].(dice.Emoji); isEmoji {
			emoji, ok = string(e), true
		}
	}
	color, okColor := number(v[1])
	points, okPoints := number(v[2])
	if !ok || !okColor || !okPoints {
		return dice.Land{}, fmt.Errorf("malformed land %v", v)
	}
	return dice.Land{Emoji: dice.Emoji(emoji), Color: dice.Color(color), Points: points}, nil
}

func number(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case dice.Color:
		return int(n), true
	}
	return 0, false
}
