package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/garyjia/erp-approvals/internal/application/port"
	"github.com/garyjia/erp-approvals/internal/domain/entity"
)

// MembershipCache is a read-through cache of GroupsForUser in front of a MembershipRepository.
// Writes go to the backing repository and evict the affected user.
type MembershipCache struct {
	next port.MembershipRepository

	mu         sync.Mutex
	items      map[string]*list.Element
	order      *list.List
	ttl        time.Duration
	maxEntries int
	now        func() time.Time

	// generation is bumped by every invalidation. A load only fills the
	// cache if no invalidation ran while it was reading the repository.
	generation uint64
}

type cacheEntry struct {
	key       string
	groups    []string
	expiresAt time.Time
}

// NewMembershipCache wraps next with a cache bounded by ttl and maxEntries
func NewMembershipCache(next port.MembershipRepository, ttl time.Duration, maxEntries int) *MembershipCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &MembershipCache{
		next:       next,
		items:      make(map[string]*list.Element),
		order:      list.New(),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// GroupsForUser serves from the cache and falls back to the repository
func (c *MembershipCache) GroupsForUser(ctx context.Context, companyID, userID string) ([]string, error) {
	key := cacheKey(companyID, userID)
	groups, gen, ok := c.get(key)
	if ok {
		return groups, nil
	}

	groups, err := c.next.GroupsForUser(ctx, companyID, userID)
	if err != nil {
		return nil, err
	}
	c.set(key, groups, gen)
	return clone(groups), nil
}

// AddMember writes through and evicts the user
func (c *MembershipCache) AddMember(ctx context.Context, membership *entity.GroupMembership) error {
	defer c.Invalidate(membership.CompanyID, membership.UserID)
	return c.next.AddMember(ctx, membership)
}

// RemoveMember writes through and evicts the user
func (c *MembershipCache) RemoveMember(ctx context.Context, companyID, groupID, userID string) error {
	defer c.Invalidate(companyID, userID)
	return c.next.RemoveMember(ctx, companyID, groupID, userID)
}

// ListMembers is not cached
func (c *MembershipCache) ListMembers(ctx context.Context, companyID, groupID string) ([]string, error) {
	return c.next.ListMembers(ctx, companyID, groupID)
}

// Invalidate drops the cached groups of a user
func (c *MembershipCache) Invalidate(companyID, userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	if elem, ok := c.items[cacheKey(companyID, userID)]; ok {
		c.order.Remove(elem)
		delete(c.items, elem.Value.(*cacheEntry).key)
	}
}

// Len returns the number of cached users, expired entries included
func (c *MembershipCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// get returns the cached groups, or the generation a miss should be filled under
func (c *MembershipCache) get(key string) ([]string, uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return nil, c.generation, false
	}
	entry := elem.Value.(*cacheEntry)
	if c.now().After(entry.expiresAt) {
		c.order.Remove(elem)
		delete(c.items, key)
		return nil, c.generation, false
	}
	c.order.MoveToFront(elem)
	return clone(entry.groups), c.generation, true
}

func (c *MembershipCache) set(key string, groups []string, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		return
	}

	if elem, ok := c.items[key]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.groups = clone(groups)
		entry.expiresAt = c.now().Add(c.ttl)
		c.order.MoveToFront(elem)
		return
	}

	entry := &cacheEntry{
		key:       key,
		groups:    clone(groups),
		expiresAt: c.now().Add(c.ttl),
	}
	c.items[key] = c.order.PushFront(entry)
	c.trim()
}

func (c *MembershipCache) trim() {
	for len(c.items) > c.maxEntries {
		elem := c.order.Back()
		if elem == nil {
			return
		}
		delete(c.items, elem.Value.(*cacheEntry).key)
		c.order.Remove(elem)
	}
}

func cacheKey(companyID, userID string) string {
	return companyID + "\x00" + userID
}

func clone(groups []string) []string {
	if groups == nil {
		return nil
	}
	out := make([]string, len(groups))
	copy(out, groups)
	return out
}

// Verify interface compliance
var _ port.MembershipRepository = (*MembershipCache)(nil)
