// Package ids mints the ULIDs that key audit entries, approval requests
// and moderation records. They sort by creation time, which is what the
// audit and inbox listings order on.
package ids

import (
	cryptorand "crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// The entropy source is monotonic within a millisecond, so identifiers
// minted in a burst still sort in creation order.
var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(cryptorand.Reader, 0)
)

// New returns a fresh identifier. Safe for concurrent use.
func New() string {
	mu.Lock()
	defer mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
