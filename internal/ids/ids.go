package ids

import (
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// New returns a lexicographically sortable identifier used for request ids
// and other untyped keys.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Entity tags prefixed onto row keys so an id read off a log line or an
// audit row names its table at a glance.
const (
	TagRecord    = "csr"
	TagComponent = "cmp"
	TagAttempt   = "att"
	TagView      = "view"
	TagServer    = "psr"
	TagAdmin     = "adm"
	TagAccessLog = "alg"
)

// Tagged returns a ULID prefixed with an entity tag, e.g. "csr_01H…".
func Tagged(tag string) string {
	return tag + "_" + New()
}
