// Package idx generates the identifiers the service hands out: ULID-based
// public user ids and UUID correlation ids for requests.
package idx

import (
	"crypto/rand"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// ErrInvalid reports a malformed identifier.
var ErrInvalid = errors.New("idx: invalid identifier")

var (
	uidOnce sync.Once
	uidGen  *generator
)

// generator hands out ULIDs from a monotonic source. The entropy source is not
// safe for concurrent use so access is serialised.
type generator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func (g *generator) at(t time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	return ulid.MustNew(ulid.Timestamp(t), g.entropy).String()
}

func initUID() {
	uidGen = &generator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// NewUID returns a new public user identifier. UIDs sort by creation time.
func NewUID() string {
	return NewUIDAt(time.Now().UTC())
}

// NewUIDAt generates a UID at the provided time, useful for tests.
func NewUIDAt(t time.Time) string {
	uidOnce.Do(initUID)
	return uidGen.at(t)
}

// ParseUID validates a UID taken from user input and returns its canonical
// form.
func ParseUID(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrInvalid
	}

	u, err := ulid.ParseStrict(s)
	if err != nil {
		return "", ErrInvalid
	}
	return u.String(), nil
}

// UIDTime extracts the embedded creation time, or the zero time when uid is
// malformed.
func UIDTime(uid string) time.Time {
	u, err := ulid.ParseStrict(uid)
	if err != nil {
		return time.Time{}
	}
	return ulid.Time(u.Time())
}

// NewCorrelationID returns a random UUID v4 used to tie logs and error
// responses to a single request.
func NewCorrelationID() string {
	return uuid.NewString()
}

// ValidCorrelationID reports whether s is usable as a caller supplied
// correlation id. Anything that is not a UUID is replaced by the server.
func ValidCorrelationID(s string) bool {
	if s == "" || len(s) > 64 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
