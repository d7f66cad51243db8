package store

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/linkgate/linkgate/internal/model"
	"github.com/linkgate/linkgate/internal/shortcode"
)

const defaultShardCount = 32

type shard struct {
	mu    sync.RWMutex
	links map[string]*model.Link
}

// Memory is a lock-striped in-memory LinkStore. Every mutation of a short
// code happens under that code's shard write lock.
type Memory struct {
	shards     []*shard
	gen        shortcode.Source
	maxRetries int
	purger     ClickPurger
	now        func() time.Time
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithShards sets the number of lock stripes.
func WithShards(n int) MemoryOption {
	return func(m *Memory) {
		if n > 0 {
			m.shards = newShards(n)
		}
	}
}

// WithMaxRetries sets the generated-code collision retry budget.
func WithMaxRetries(n int) MemoryOption {
	return func(m *Memory) {
		if n > 0 {
			m.maxRetries = n
		}
	}
}

// WithPurger sets the click log cleared when a link is deleted.
func WithPurger(p ClickPurger) MemoryOption {
	return func(m *Memory) { m.purger = p }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// NewMemory creates an empty in-memory store.
func NewMemory(gen shortcode.Source, opts ...MemoryOption) *Memory {
	m := &Memory{
		shards:     newShards(defaultShardCount),
		gen:        gen,
		maxRetries: DefaultMaxRetries,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func newShards(n int) []*shard {
	shards := make([]*shard, n)
	for i := range shards {
		shards[i] = &shard{links: make(map[string]*model.Link)}
	}
	return shards
}

func (m *Memory) shardFor(code string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(code))
	return m.shards[h.Sum32()%uint32(len(m.shards))]
}

// Create inserts a new link.
func (m *Memory) Create(ctx context.Context, p CreateParams) (*model.Link, error) {
	now := m.now()
	if err := validateCreate(p, now); err != nil {
		return nil, err
	}

	return createWithRetry(ctx, m.gen, m.maxRetries, p.CustomCode, func(_ context.Context, code string) (*model.Link, error) {
		sh := m.shardFor(code)
		sh.mu.Lock()
		defer sh.mu.Unlock()

		if _, exists := sh.links[code]; exists {
			return nil, model.ErrAliasExists
		}
		link := newLink(p, code, now)
		sh.links[code] = link
		return link.Clone(), nil
	})
}

// Find returns a copy of the link with its effective status.
func (m *Memory) Find(_ context.Context, code string) (*model.Link, error) {
	sh := m.shardFor(code)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	link, ok := sh.links[code]
	if !ok {
		return nil, model.ErrLinkNotFound
	}
	c := link.Clone()
	c.Status = c.EffectiveStatus(m.now())
	return c, nil
}

// Resolve counts a click on an active link and returns its post-increment copy.
func (m *Memory) Resolve(_ context.Context, code string) (*model.Link, error) {
	sh := m.shardFor(code)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	link, ok := sh.links[code]
	if !ok {
		return nil, model.ErrLinkNotFound
	}
	if err := resolveLink(link, m.now()); err != nil {
		return nil, err
	}
	return link.Clone(), nil
}

// Update applies a partial update.
func (m *Memory) Update(_ context.Context, code string, p UpdateParams) (*model.Link, error) {
	sh := m.shardFor(code)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	link, ok := sh.links[code]
	if !ok {
		return nil, model.ErrLinkNotFound
	}

	updated := link.Clone()
	if err := applyUpdate(updated, p, m.now()); err != nil {
		return nil, err
	}
	sh.links[code] = updated
	return updated.Clone(), nil
}

// Delete removes the link and its click events.
func (m *Memory) Delete(ctx context.Context, code string) (*model.Link, error) {
	sh := m.shardFor(code)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	link, ok := sh.links[code]
	if !ok {
		return nil, model.ErrLinkNotFound
	}
	if m.purger != nil {
		if err := m.purger.Purge(ctx, link.ID); err != nil {
			return nil, model.ErrInternal.Wrap(err)
		}
	}
	delete(sh.links, code)
	return link, nil
}

// List returns a page of links matching the query.
func (m *Memory) List(_ context.Context, q ListQuery) (*ListResult, error) {
	q = q.Normalize()
	now := m.now()

	matched := make([]*model.Link, 0)
	for _, sh := range m.shards {
		sh.mu.RLock()
		for _, link := range sh.links {
			if q.OwnerID != "" && link.OwnerID != q.OwnerID {
				continue
			}
			status := link.EffectiveStatus(now)
			if q.Status != nil && status != *q.Status {
				continue
			}
			c := link.Clone()
			c.Status = status
			matched = append(matched, c)
		}
		sh.mu.RUnlock()
	}

	sortLinks(matched, q.SortBy, q.Ascending)

	total := len(matched)
	start := min(q.Offset(), total)
	end := min(start+q.Size, total)

	return &ListResult{
		Links:      matched[start:end],
		Pagination: model.NewPagination(q.Page, q.Size, total),
	}, nil
}

// Summary returns store-wide totals.
func (m *Memory) Summary(_ context.Context) (model.ServiceSummary, error) {
	now := m.now()
	var s model.ServiceSummary
	for _, sh := range m.shards {
		sh.mu.RLock()
		for _, link := range sh.links {
			s.TotalURLs++
			s.TotalClicks += link.ClickCount
			if link.EffectiveStatus(now) == model.LinkStatusActive {
				s.ActiveURLs++
			}
		}
		sh.mu.RUnlock()
	}
	return s, nil
}
