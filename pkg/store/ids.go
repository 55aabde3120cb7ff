package store

import (
	"math/rand/v2"

	"github.com/oklog/ulid/v2"
)

// MaxIDAttempts bounds the collision retries of Create.
const MaxIDAttempts = 10

// IDSource produces candidate record ids.
type IDSource func() string

const (
	idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	idLength   = 8
)

// ShortID returns a short random id. Collisions are possible and are
// resolved by Create.
func ShortID() string {
	b := make([]byte, idLength)
	for i := range b {
		b[i] = idAlphabet[rand.IntN(len(idAlphabet))]
	}
	return string(b)
}

// ThreadID returns a ULID. Thread ids are handed to users for reattaching,
// so they sort by creation time.
func ThreadID() string {
	return ulid.Make().String()
}
