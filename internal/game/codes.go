// internal/game/codes.go
package game

import "math/rand"

// Room codes are short enough to read out loud and type on a phone, and
// the 36^6 space keeps collisions among tens of live rooms negligible.
// The store still resamples on collision.
const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 6
)

func newRoomCode() string {
	b := make([]byte, codeLength)
	for i := range b {
		b[i] = codeAlphabet[rand.Intn(len(codeAlphabet))]
	}
	return string(b)
}
