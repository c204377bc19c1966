package api

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultCacheTTL is how long cached reads stay fresh.
const DefaultCacheTTL = 30 * time.Second

type cacheEntry struct {
	value   interface{}
	expires time.Time
}

func (e cacheEntry) live(now time.Time) bool {
	return e.expires.IsZero() || now.Before(e.expires)
}

// CachedClient wraps a LexiconAPI with a read-through TTL cache.
// Concurrent misses for the same key share one upstream call. Successful
// writes drop the entries they make stale. Health is never cached.
type CachedClient struct {
	next  LexiconAPI
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	mu      sync.Mutex
	entries map[string]cacheEntry
	// gen is bumped by every invalidation. A fetch that started under an
	// older generation returns its result but does not store it.
	gen uint64
}

// NewCachedClient wraps next. A non-positive ttl keeps entries until they
// are invalidated.
func NewCachedClient(next LexiconAPI, ttl time.Duration) *CachedClient {
	return &CachedClient{
		next:    next,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

func (c *CachedClient) lookup(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !e.live(c.now()) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

func (c *CachedClient) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

func (c *CachedClient) store(key string, gen uint64, value interface{}) {
	e := cacheEntry{value: value}
	if c.ttl > 0 {
		e.expires = c.now().Add(c.ttl)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return
	}
	c.entries[key] = e
}

// load returns the cached value for key or calls fetch once across
// concurrent callers. The shared fetch runs detached from any single
// caller's cancellation; each caller stops waiting when its own ctx is
// done. Errors are not cached.
func (c *CachedClient) load(ctx context.Context, key string, fetch func(context.Context) (interface{}, error)) (interface{}, error) {
	if v, ok := c.lookup(key); ok {
		return v, nil
	}

	gen := c.generation()
	fetchCtx := context.WithoutCancel(ctx)
	// Callers after an invalidation never join a flight started before it.
	flight := key + "@" + strconv.FormatUint(gen, 10)
	ch := c.group.DoChan(flight, func() (interface{}, error) {
		if v, ok := c.lookup(key); ok {
			return v, nil
		}
		v, err := fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		c.store(key, gen, v)
		return v, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

// Invalidate drops the given keys.
func (c *CachedClient) Invalidate(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	for _, k := range keys {
		delete(c.entries, k)
	}
}

// InvalidatePrefix drops every key starting with prefix.
func (c *CachedClient) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
}

// Purge empties the cache.
func (c *CachedClient) Purge() {
	c.mu.Lock()
	c.gen++
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

// Len returns the number of live entries.
func (c *CachedClient) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	now := c.now()
	for _, e := range c.entries {
		if e.live(now) {
			n++
		}
	}
	return n
}

func (c *CachedClient) Health(ctx context.Context) (*Health, error) {
	return c.next.Health(ctx)
}

func (c *CachedClient) ListDocuments(ctx context.Context) (*DocumentListResponse, error) {
	v, err := c.load(ctx, "documents", func(ctx context.Context) (interface{}, error) {
		return c.next.ListDocuments(ctx)
	})
	if err != nil {
		return nil, err
	}
	src := v.(*DocumentListResponse)
	out := *src
	out.Documents = append(out.Documents[:0:0], src.Documents...)
	return &out, nil
}

func (c *CachedClient) GetDocument(ctx context.Context, id string) (*DocumentDetail, error) {
	v, err := c.load(ctx, "document:"+id, func(ctx context.Context) (interface{}, error) {
		return c.next.GetDocument(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	out := *v.(*DocumentDetail)
	return &out, nil
}

func (c *CachedClient) GetDocumentBySection(ctx context.Context, sectionNumber string) (*DocumentDetail, error) {
	v, err := c.load(ctx, "section:"+sectionNumber, func(ctx context.Context) (interface{}, error) {
		return c.next.GetDocumentBySection(ctx, sectionNumber)
	})
	if err != nil {
		return nil, err
	}
	out := *v.(*DocumentDetail)
	return &out, nil
}

func (c *CachedClient) Query(ctx context.Context, q string) (*QueryOutput, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, ValidationError{Message: "query cannot be empty"}
	}
	v, err := c.load(ctx, "query:"+q, func(ctx context.Context) (interface{}, error) {
		return c.next.Query(ctx, q)
	})
	if err != nil {
		return nil, err
	}
	src := v.(*QueryOutput)
	out := *src
	out.Citations = append(out.Citations[:0:0], src.Citations...)
	return &out, nil
}

func (c *CachedClient) ListConversations(ctx context.Context) (*ConversationList, error) {
	v, err := c.load(ctx, "conversations", func(ctx context.Context) (interface{}, error) {
		return c.next.ListConversations(ctx)
	})
	if err != nil {
		return nil, err
	}
	src := v.(*ConversationList)
	out := ConversationList{Total: src.Total}
	if src.Conversations != nil {
		out.Conversations = make([]Conversation, len(src.Conversations))
		for i, conv := range src.Conversations {
			out.Conversations[i] = conv.Clone()
		}
	}
	return &out, nil
}

func (c *CachedClient) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	v, err := c.load(ctx, "conversation:"+id, func(ctx context.Context) (interface{}, error) {
		return c.next.GetConversation(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	out := v.(*Conversation).Clone()
	return &out, nil
}

func (c *CachedClient) CreateConversation(ctx context.Context, title string) (*Conversation, error) {
	conv, err := c.next.CreateConversation(ctx, title)
	if err != nil {
		return nil, err
	}
	c.Invalidate("conversations")
	return conv, nil
}

func (c *CachedClient) SendMessage(ctx context.Context, conversationID, message string) (*Message, error) {
	msg, err := c.next.SendMessage(ctx, conversationID, message)
	if err != nil {
		return nil, err
	}
	c.Invalidate("conversations", "conversation:"+conversationID)
	return msg, nil
}

func (c *CachedClient) DeleteConversation(ctx context.Context, id string) error {
	if err := c.next.DeleteConversation(ctx, id); err != nil {
		return err
	}
	c.Invalidate("conversations", "conversation:"+id)
	return nil
}

func (c *CachedClient) RenameConversation(ctx context.Context, id, title string) (*Conversation, error) {
	conv, err := c.next.RenameConversation(ctx, id, title)
	if err != nil {
		return nil, err
	}
	c.Invalidate("conversations", "conversation:"+id)
	return conv, nil
}

var _ LexiconAPI = (*CachedClient)(nil)
