package tracker

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/linkgate/linkgate/internal/model"
)

const (
	logShardCount = 32

	// tombstoneTTL outlives any click still being enriched for a deleted link.
	tombstoneTTL = 5 * time.Minute
)

type logShard struct {
	mu        sync.RWMutex
	events    map[string][]model.ClickEvent
	purged    map[string]time.Time
	lastSweep time.Time
}

// MemoryLog is a sharded in-memory EventLog. Purged link ids are remembered
// for tombstoneTTL so a click that lands after its link was deleted is dropped.
type MemoryLog struct {
	shards []*logShard
	now    func() time.Time
}

// NewMemoryLog creates an empty log.
func NewMemoryLog() *MemoryLog {
	shards := make([]*logShard, logShardCount)
	for i := range shards {
		shards[i] = &logShard{
			events: make(map[string][]model.ClickEvent),
			purged: make(map[string]time.Time),
		}
	}
	return &MemoryLog{shards: shards, now: time.Now}
}

func (l *MemoryLog) shardFor(linkID string) *logShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(linkID))
	return l.shards[h.Sum32()%uint32(len(l.shards))]
}

// Append adds an event to its link's log.
func (l *MemoryLog) Append(_ context.Context, event *model.ClickEvent) error {
	sh := l.shardFor(event.LinkID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if _, gone := sh.purged[event.LinkID]; gone {
		return nil
	}
	sh.events[event.LinkID] = append(sh.events[event.LinkID], *event)
	return nil
}

// Events returns a copy of a link's events in append order.
func (l *MemoryLog) Events(_ context.Context, linkID string) ([]model.ClickEvent, error) {
	sh := l.shardFor(linkID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	events := sh.events[linkID]
	out := make([]model.ClickEvent, len(events))
	copy(out, events)
	return out, nil
}

// Purge drops every event of a link and rejects later appends for it.
func (l *MemoryLog) Purge(_ context.Context, linkID string) error {
	sh := l.shardFor(linkID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	now := l.now()
	sh.sweep(now)
	delete(sh.events, linkID)
	sh.purged[linkID] = now
	return nil
}

// sweep forgets tombstones older than tombstoneTTL, at most once per TTL.
// Caller holds sh.mu.
func (sh *logShard) sweep(now time.Time) {
	if now.Sub(sh.lastSweep) < tombstoneTTL {
		return
	}
	sh.lastSweep = now
	for id, at := range sh.purged {
		if now.Sub(at) > tombstoneTTL {
			delete(sh.purged, id)
		}
	}
}
