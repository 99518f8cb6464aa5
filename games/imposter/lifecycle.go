/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package imposter implements the lobby and role-assignment engine for the
// word imposter party game.
//
// One player hosts a session identified by a short code, others join while
// it is waiting, and starting a round deals each player a hidden role: most
// players learn a shared secret word, while the impostors instead learn who
// their fellow impostors are. One player, independent of role, is picked to
// speak first. Clients poll the session and fetch only their own role, so
// honest clients never see more than their entitlement.
//
// The same engine drives both the multiplayer server (shared in-memory
// store, HTTP polling) and the single-device pass-and-play mode (SQLite
// store, in-process calls); the modes differ only in Store implementation
// and transport.
package imposter

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MinPlayers is the smallest roster a round can start with.
const MinPlayers = 2

// Sessions exposes every lifecycle operation over one Store. All writes go
// through Store.Mutate, so concurrent callers against one code serialize.
type Sessions struct {
	store      Store
	words      WordSource
	codeLength int
	now        func() time.Time
}

// NewSessions wires the lifecycle to a store and a word source. codeLength
// falls back to DefaultCodeLength when non-positive.
func NewSessions(store Store, words WordSource, codeLength int) *Sessions {
	if codeLength <= 0 {
		codeLength = DefaultCodeLength
	}
	return &Sessions{
		store:      store,
		words:      words,
		codeLength: codeLength,
		now:        time.Now,
	}
}

func newPlayerID() string {
	return "player_" + uuid.New().String()
}

func validSettings(settings Settings) bool {
	return settings.ImpostorCount >= 1 && strings.TrimSpace(settings.Theme) != ""
}

// Create registers a new session with the host as its first player,
// generating codes until one is unused.
func (s *Sessions) Create(hostName string, settings Settings) (Session, error) {
	if strings.TrimSpace(hostName) == "" || !validSettings(settings) {
		return Session{}, ErrInvalidSettings
	}

	now := s.now()
	hostID := newPlayerID()

	for {
		code, err := newCode(s.codeLength)
		if err != nil {
			return Session{}, err
		}

		sess := Session{
			Code:   code,
			HostID: hostID,
			Status: StatusWaiting,
			Players: []Player{{
				ID:       hostID,
				Name:     hostName,
				JoinedAt: now,
			}},
			Settings:   settings,
			CreatedAt:  now,
			LastActive: now,
		}

		err = s.store.Put(sess)
		if err == errCodeInUse {
			continue
		}
		if err != nil {
			return Session{}, err
		}
		return sess, nil
	}
}

// Join appends a new player to a waiting session and returns its id along
// with the committed snapshot.
func (s *Sessions) Join(code, displayName string) (Session, string, error) {
	if strings.TrimSpace(displayName) == "" {
		return Session{}, "", ErrInvalidSettings
	}

	playerID := newPlayerID()
	snap, err := s.store.Mutate(code, func(sess *Session) error {
		if sess.Status != StatusWaiting {
			return ErrAlreadyStarted
		}
		sess.Players = append(sess.Players, Player{
			ID:       playerID,
			Name:     displayName,
			JoinedAt: s.now(),
		})
		return nil
	})
	if err != nil {
		return Session{}, "", err
	}
	return snap, playerID, nil
}

// Get returns a snapshot of the session.
func (s *Sessions) Get(code string) (Session, error) {
	return s.store.Get(code)
}

// validateStart runs the start preconditions in their fixed order against
// one consistent view of the session.
func validateStart(sess *Session, actorID string) error {
	if actorID != sess.HostID {
		return ErrForbidden
	}
	if sess.Status != StatusWaiting {
		return ErrNotWaiting
	}
	if len(sess.Players) < MinPlayers {
		return ErrInsufficientPlayers
	}
	if sess.Settings.ImpostorCount >= len(sess.Players) {
		return ErrInvalidPartyState
	}
	return nil
}

// Start moves a waiting session into a fresh playing round.
//
// The word source call can block for externally-variable latency, so it runs
// between two validation passes rather than inside the exclusive section:
// the first pass rejects hopeless attempts before paying for the word, and
// the second re-checks the same conditions under Mutate since the roster may
// have changed meanwhile. A failed second pass commits nothing.
func (s *Sessions) Start(ctx context.Context, code, actorID string) (Session, error) {
	snap, err := s.store.Get(code)
	if err != nil {
		return Session{}, err
	}
	if err := validateStart(&snap, actorID); err != nil {
		return Session{}, err
	}

	word := s.words.Word(ctx, snap.Settings.Theme)

	return s.store.Mutate(code, func(sess *Session) error {
		if err := validateStart(sess, actorID); err != nil {
			return err
		}
		asg, err := Assign(sess.playerIDs(), sess.Settings.ImpostorCount, word)
		if err != nil {
			return err
		}
		sess.Status = StatusPlaying
		sess.Round = &Round{
			SecretWord:   word,
			Impostors:    asg.Impostors,
			FirstSpeaker: asg.FirstSpeaker,
			Roles:        asg.Roles,
			StartedAt:    s.now(),
		}
		return nil
	})
}

// End discards the round and returns the session to waiting, keeping the
// roster for a rematch. Ending a session that is not playing is a no-op
// success, since clients race each other's end calls.
func (s *Sessions) End(code string) (Session, error) {
	return s.store.Mutate(code, func(sess *Session) error {
		sess.Round = nil
		sess.Status = StatusWaiting
		return nil
	})
}

// Retire discards the round and permanently ends the session. Pass-and-play
// uses it when the table is done playing; the multiplayer server instead
// lets the idle reaper collect abandoned sessions.
func (s *Sessions) Retire(code string) (Session, error) {
	return s.store.Mutate(code, func(sess *Session) error {
		sess.Round = nil
		sess.Status = StatusEnded
		return nil
	})
}

// Role returns the single role the given player may see.
func (s *Sessions) Role(code, playerID string) (Role, error) {
	snap, err := s.store.Get(code)
	if err != nil {
		return Role{}, err
	}
	return snap.RoleFor(playerID)
}
