package imposter

import (
	"context"
	"fmt"
)

// PassPlay drives a single-device game: everyone shares one screen, the
// device is passed around in join order so each player can privately reveal
// their role, and the table can immediately play again with the same roster
// and a freshly dealt round.
type PassPlay struct {
	sessions *Sessions
	code     string
	hostID   string
	turn     int
}

// NewPassPlay creates a local session with the given roster. The first name
// hosts; the rest join in order.
func NewPassPlay(sessions *Sessions, names []string, settings Settings) (*PassPlay, error) {
	if len(names) < MinPlayers {
		return nil, ErrInsufficientPlayers
	}

	sess, err := sessions.Create(names[0], settings)
	if err != nil {
		return nil, err
	}
	for _, name := range names[1:] {
		if _, _, err := sessions.Join(sess.Code, name); err != nil {
			return nil, fmt.Errorf("add player %q: %w", name, err)
		}
	}

	return &PassPlay{
		sessions: sessions,
		code:     sess.Code,
		hostID:   sess.HostID,
	}, nil
}

// Begin deals a fresh round and resets the device-passing cursor.
func (p *PassPlay) Begin(ctx context.Context) (Session, error) {
	sess, err := p.sessions.Start(ctx, p.code, p.hostID)
	if err != nil {
		return Session{}, err
	}
	p.turn = 0
	return sess, nil
}

// Current returns the player holding the device and their role.
func (p *PassPlay) Current() (Player, Role, error) {
	sess, err := p.sessions.Get(p.code)
	if err != nil {
		return Player{}, Role{}, err
	}
	if p.turn >= len(sess.Players) {
		return Player{}, Role{}, ErrNotActive
	}
	player := sess.Players[p.turn]
	role, err := sess.RoleFor(player.ID)
	if err != nil {
		return Player{}, Role{}, err
	}
	return player, role, nil
}

// Advance hands the device to the next player, reporting false once every
// player has seen their role.
func (p *PassPlay) Advance() (bool, error) {
	sess, err := p.sessions.Get(p.code)
	if err != nil {
		return false, err
	}
	p.turn++
	return p.turn < len(sess.Players), nil
}

// FirstSpeaker names the player who opens the round.
func (p *PassPlay) FirstSpeaker() (Player, error) {
	sess, err := p.sessions.Get(p.code)
	if err != nil {
		return Player{}, err
	}
	if sess.Round == nil {
		return Player{}, ErrNotActive
	}
	for _, player := range sess.Players {
		if player.ID == sess.Round.FirstSpeaker {
			return player, nil
		}
	}
	return Player{}, ErrRoleMissing
}

// PlayAgain discards the finished round and deals a new one for the same
// roster.
func (p *PassPlay) PlayAgain(ctx context.Context) (Session, error) {
	if _, err := p.sessions.End(p.code); err != nil {
		return Session{}, err
	}
	return p.Begin(ctx)
}

// Retire ends the session for good.
func (p *PassPlay) Retire() error {
	_, err := p.sessions.Retire(p.code)
	return err
}

// Session returns a snapshot of the underlying session.
func (p *PassPlay) Session() (Session, error) {
	return p.sessions.Get(p.code)
}
