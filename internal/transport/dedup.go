package transport

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vitaliisemenov/recsa-core/internal/types"
	"github.com/vitaliisemenov/recsa-core/internal/wire"
)

// dedupCapacity bounds the in-flight dedup cache shared by every
// destination.
const dedupCapacity = 64

// dedupCache suppresses enqueueing a message byte-identical to one
// already sitting in a peer's queue awaiting send — a redundant resend
// would only flood a slow peer's dispatch handler without conveying new
// information, since the already-queued copy carries the same state.
type dedupCache struct {
	cache *lru.Cache[string, struct{}]
}

func newDedupCache() *dedupCache {
	c, err := lru.New[string, struct{}](dedupCapacity)
	if err != nil {
		// Only returns an error for a non-positive size, which dedupCapacity
		// never is.
		panic(fmt.Sprintf("transport: dedup cache: %v", err))
	}
	return &dedupCache{cache: c}
}

func fingerprint(to types.NodeID, msg wire.Message) string {
	h := sha256.Sum256(append([]byte(fmt.Sprintf("%d:%d:", to, msg.Type)), msg.Data...))
	return hex.EncodeToString(h[:])
}

// markPending records msg as in-flight to to, reporting whether an
// identical message was already pending.
func (d *dedupCache) markPending(to types.NodeID, msg wire.Message) bool {
	key := fingerprint(to, msg)
	if d.cache.Contains(key) {
		return true
	}
	d.cache.Add(key, struct{}{})
	return false
}

// clearPending removes msg's fingerprint once it has actually been sent,
// so a later identical message is allowed to queue again.
func (d *dedupCache) clearPending(to types.NodeID, msg wire.Message) {
	d.cache.Remove(fingerprint(to, msg))
}
