package imposter

import "errors"

var (
	// ErrInvalidSettings indicates a malformed impostor count or theme.
	ErrInvalidSettings = errors.New("impostor count must be a positive integer and theme must not be empty")
	// ErrNotFound indicates the session code is unknown.
	ErrNotFound = errors.New("session not found")
	// ErrAlreadyStarted indicates a join attempt on a session past waiting.
	ErrAlreadyStarted = errors.New("game has already started")
	// ErrForbidden indicates the actor is not the host.
	ErrForbidden = errors.New("only the host may do that")
	// ErrNotWaiting indicates a start attempt on a session past waiting.
	ErrNotWaiting = errors.New("game is not in waiting state")
	// ErrInsufficientPlayers indicates fewer than two players at start.
	ErrInsufficientPlayers = errors.New("need at least 2 players to start")
	// ErrInvalidPartyState indicates the impostor count does not fit the roster.
	ErrInvalidPartyState = errors.New("too many impostors for player count")
	// ErrNotActive indicates a role fetch outside a playing round.
	ErrNotActive = errors.New("game is not active")
	// ErrNotAMember indicates the player id is not in the roster.
	ErrNotAMember = errors.New("player not in this session")
	// ErrRoleMissing indicates a committed round with no role for a roster
	// member. It is an internal consistency failure, not a caller mistake.
	ErrRoleMissing = errors.New("role not found for player")

	// errCodeInUse is returned by stores when a generated code collides.
	errCodeInUse = errors.New("session code already in use")
)
