/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package imposter

import "time"

// Status is the lifecycle state of a session.
type Status string

const (
	StatusWaiting Status = "waiting"
	StatusPlaying Status = "playing"
	StatusEnded   Status = "ended"
)

// Settings are fixed at creation time and immutable once a round starts.
type Settings struct {
	ImpostorCount int    `json:"impostorCount"`
	Theme         string `json:"theme"`
}

// Player is owned by exactly one session. Slice position is join order,
// which doubles as the pass-and-play turn order.
type Player struct {
	ID       string    `json:"playerId"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Round holds everything generated by one start. It exists only while the
// session is playing and is discarded, never reused, on end.
type Round struct {
	SecretWord   string          `json:"secretWord"`
	Impostors    []string        `json:"impostors"`
	FirstSpeaker string          `json:"firstSpeaker"`
	Roles        map[string]Role `json:"roles"`
	StartedAt    time.Time       `json:"startedAt"`
}

// Session is one lobby, identified by a short shareable code.
type Session struct {
	Code       string    `json:"code"`
	HostID     string    `json:"hostId"`
	Status     Status    `json:"status"`
	Players    []Player  `json:"players"`
	Settings   Settings  `json:"settings"`
	Round      *Round    `json:"round,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	LastActive time.Time `json:"lastActive"`
}

// Clone returns a deep copy sharing no mutable state with the receiver.
func (s *Session) Clone() Session {
	out := *s
	out.Players = append([]Player(nil), s.Players...)
	if s.Round != nil {
		r := *s.Round
		r.Impostors = append([]string(nil), s.Round.Impostors...)
		r.Roles = make(map[string]Role, len(s.Round.Roles))
		for id, role := range s.Round.Roles {
			role.Teammates = append([]string(nil), role.Teammates...)
			r.Roles[id] = role
		}
		out.Round = &r
	}
	return out
}

func (s *Session) member(playerID string) bool {
	for _, p := range s.Players {
		if p.ID == playerID {
			return true
		}
	}
	return false
}

func (s *Session) playerIDs() []string {
	ids := make([]string, 0, len(s.Players))
	for _, p := range s.Players {
		ids = append(ids, p.ID)
	}
	return ids
}

// View is the full-session view safe to show every participant. It never
// carries the secret word, the impostor set, or the role table.
type View struct {
	Code     string     `json:"code"`
	Status   Status     `json:"status"`
	Players  []Player   `json:"players"`
	Settings Settings   `json:"settings"`
	Round    *RoundView `json:"round,omitempty"`
}

// RoundView exposes only when the round began.
type RoundView struct {
	StartedAt time.Time `json:"startedAt"`
}

// View redacts the session down to what any participant may see.
func (s *Session) View() View {
	v := View{
		Code:     s.Code,
		Status:   s.Status,
		Players:  append([]Player(nil), s.Players...),
		Settings: s.Settings,
	}
	if s.Round != nil {
		v.Round = &RoundView{StartedAt: s.Round.StartedAt}
	}
	return v
}

// RoleFor returns the role the given player is entitled to see.
func (s *Session) RoleFor(playerID string) (Role, error) {
	if !s.member(playerID) {
		return Role{}, ErrNotAMember
	}
	if s.Status != StatusPlaying || s.Round == nil {
		return Role{}, ErrNotActive
	}
	role, ok := s.Round.Roles[playerID]
	if !ok {
		return Role{}, ErrRoleMissing
	}
	role.Teammates = append([]string(nil), role.Teammates...)
	return role, nil
}
