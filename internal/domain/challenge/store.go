package challenge

import "github.com/google/uuid"

// Store holds live challenges. Implementations must be safe for concurrent use.
//
// A key moves through the store as reservation -> live challenge -> gone.
// The reservation exists while a question is being generated, so a second
// join request for the same key cannot start a second generation. Committing
// replaces the reservation with a live PENDING challenge; cancelling drops it.
type Store interface {
	// Reserve marks key as issuing. It returns false when the key already
	// holds a reservation or a live challenge.
	Reserve(key Key) bool

	// Cancel drops the reservation for key without committing a challenge.
	Cancel(key Key)

	// Commit replaces the reservation for ch.Key with ch as the live challenge.
	Commit(ch Challenge)

	// Get returns a copy of the live challenge for key.
	Get(key Key) (Challenge, bool)

	// Claim flips the live challenge for key from PENDING to ANSWERED and
	// returns a copy. It returns false when there is no live challenge or it
	// was already claimed.
	Claim(key Key) (Challenge, bool)

	// ClaimByID behaves like Claim but only matches the challenge instance
	// with the given id. Deadline timers use it so a timer armed for an old
	// instance cannot claim a newer one.
	ClaimByID(key Key, id uuid.UUID) (Challenge, bool)

	// Remove deletes the challenge for key when its instance id matches.
	Remove(key Key, id uuid.UUID) bool

	// KeysForUser returns the keys of live challenges held by a user,
	// most recently issued first.
	KeysForUser(userID int64) []Key

	// Len counts live challenges. Reservations are not counted.
	Len() int
}
