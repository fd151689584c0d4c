package cluster

import (
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"time"
)

var Logger = logger.GetLogger("cluster")

// BannageTracker remembers nodes that failed and treats them as unavailable
// for the bannage duration. Deciding when to ban is left to the caller.
type BannageTracker struct {
	duration time.Duration
	banned   *xsync.MapOf[int, time.Time] // node id -> ban expiry
	now      func() time.Time
}

// NewBannageTracker creates a tracker that bans nodes for duration
func NewBannageTracker(duration time.Duration) *BannageTracker {
	return &BannageTracker{
		duration: duration,
		banned:   xsync.NewMapOf[int, time.Time](),
		now:      time.Now,
	}
}

// Duration returns how long a ban lasts
func (b *BannageTracker) Duration() time.Duration {
	return b.duration
}

// Ban marks the node unavailable until the bannage duration has passed
func (b *BannageTracker) Ban(nodeID int) {
	until := b.now().Add(b.duration)
	b.banned.Store(nodeID, until)
	Logger.Infof("Banned node %d until %s", nodeID, until.Format(time.RFC3339))
}

// Unban makes the node available again immediately
func (b *BannageTracker) Unban(nodeID int) {
	b.banned.Delete(nodeID)
}

// IsBanned reports whether the node is currently banned. Expired bans are dropped.
func (b *BannageTracker) IsBanned(nodeID int) bool {
	until, ok := b.banned.Load(nodeID)
	if !ok {
		return false
	}
	if b.now().Before(until) {
		return true
	}
	b.banned.Compute(nodeID, func(old time.Time, loaded bool) (time.Time, bool) {
		// keep a ban that was renewed in the meantime
		return old, !loaded || !b.now().Before(old)
	})
	return false
}

// Available filters out banned nodes
func (b *BannageTracker) Available(nodes []Node) []Node {
	available := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		if !b.IsBanned(n.ID) {
			available = append(available, n)
		}
	}
	return available
}
