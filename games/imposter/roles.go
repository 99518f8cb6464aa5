/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package imposter

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
)

// Role variant tags, matching the wire format clients already speak.
const (
	RoleWordHolder = "wordHolder"
	RoleImpostor   = "imposter"
)

// Role is what a single player is entitled to see for one round. Word
// holders carry the secret word; impostors carry their teammates instead.
type Role struct {
	Type           string   `json:"type"`
	Word           string   `json:"word,omitempty"`
	Teammates      []string `json:"teammates,omitempty"`
	IsFirstSpeaker bool     `json:"isFirstSpeaker"`
}

// Assignment is the outcome of partitioning one roster for one round.
type Assignment struct {
	Impostors    []string
	FirstSpeaker string
	Roles        map[string]Role
}

// intn is the one random primitive the engine needs. *rand.Rand satisfies it.
type intn interface {
	IntN(int) int
}

// Assign partitions the roster into impostors and word holders and picks a
// first speaker. Impostors are drawn uniformly without replacement (every
// subset of the requested size equally likely); the first speaker is an
// independent uniform draw over the whole roster, so a word holder can
// speak first.
func Assign(playerIDs []string, impostorCount int, secretWord string) (Assignment, error) {
	rng, err := newRand()
	if err != nil {
		return Assignment{}, err
	}
	return assign(playerIDs, impostorCount, secretWord, rng)
}

func assign(playerIDs []string, impostorCount int, secretWord string, rng intn) (Assignment, error) {
	if impostorCount < 1 || impostorCount >= len(playerIDs) {
		return Assignment{}, ErrInvalidPartyState
	}

	// Partial Fisher-Yates: after k swaps the first k slots are a uniform
	// sample without replacement. The original comparator-based shuffle
	// this replaces was biased.
	ids := append([]string(nil), playerIDs...)
	for i := 0; i < impostorCount; i++ {
		j := i + rng.IntN(len(ids)-i)
		ids[i], ids[j] = ids[j], ids[i]
	}
	impostors := append([]string(nil), ids[:impostorCount]...)

	firstSpeaker := playerIDs[rng.IntN(len(playerIDs))]

	return Assignment{
		Impostors:    impostors,
		FirstSpeaker: firstSpeaker,
		Roles:        buildRoles(playerIDs, impostors, firstSpeaker, secretWord),
	}, nil
}

// buildRoles derives the per-player role table from a fixed impostor set and
// first speaker. It involves no randomness.
func buildRoles(playerIDs, impostors []string, firstSpeaker, secretWord string) map[string]Role {
	impostorSet := make(map[string]bool, len(impostors))
	for _, id := range impostors {
		impostorSet[id] = true
	}

	roles := make(map[string]Role, len(playerIDs))
	for _, id := range playerIDs {
		if impostorSet[id] {
			teammates := make([]string, 0, len(impostors)-1)
			for _, other := range impostors {
				if other != id {
					teammates = append(teammates, other)
				}
			}
			roles[id] = Role{
				Type:           RoleImpostor,
				Teammates:      teammates,
				IsFirstSpeaker: id == firstSpeaker,
			}
		} else {
			roles[id] = Role{
				Type:           RoleWordHolder,
				Word:           secretWord,
				IsFirstSpeaker: id == firstSpeaker,
			}
		}
	}
	return roles
}

// newRand builds a PCG generator seeded from crypto/rand.
func newRand() (*rand.Rand, error) {
	var b [16]byte
	if _, err := crand.Read(b[:]); err != nil {
		return nil, fmt.Errorf("read random seed: %w", err)
	}
	return rand.New(rand.NewPCG(
		binary.LittleEndian.Uint64(b[:8]),
		binary.LittleEndian.Uint64(b[8:]),
	)), nil
}
