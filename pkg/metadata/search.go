package metadata

import (
	"container/list"
	"sort"
	"strings"
	"sync"
	"time"
)

// searchCacheCapacity bounds the LRU search cache.
const searchCacheCapacity = 50

// searchCache is a small LRU of search results, keyed by (username, query)
// because results are filtered by the requester's read permission. Any file
// create or delete invalidates the cache as a whole: stale results are
// cheaper to recompute than to patch.
type searchCache struct {
	mu      sync.Mutex
	cap     int
	order   *list.List // front = most recently used
	entries map[string]*list.Element
}

type searchEntry struct {
	key     string
	results []string
	addedAt time.Time
}

func newSearchCache(capacity int) *searchCache {
	return &searchCache{
		cap:     capacity,
		order:   list.New(),
		entries: make(map[string]*list.Element),
	}
}

func searchKey(username, query string) string {
	return username + "\x00" + query
}

func (c *searchCache) get(username, query string) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.entries[searchKey(username, query)]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(elem)
	entry := elem.Value.(*searchEntry)
	out := make([]string, len(entry.results))
	copy(out, entry.results)
	return out, true
}

func (c *searchCache) put(username, query string, results []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := searchKey(username, query)
	if elem, ok := c.entries[key]; ok {
		c.order.MoveToFront(elem)
		elem.Value.(*searchEntry).results = results
		return
	}
	elem := c.order.PushFront(&searchEntry{key: key, results: results, addedAt: time.Now()})
	c.entries[key] = elem
	for c.order.Len() > c.cap {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*searchEntry).key)
	}
}

func (c *searchCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.entries = make(map[string]*list.Element)
}

func (c *searchCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Search scans the registry for files matching query that username may
// read. Match classes, in order: exact name, substring, case-insensitive
// substring. Results are served from the LRU cache when possible.
func (s *Store) Search(username, query string) []string {
	if query == "" {
		return nil
	}
	if cached, ok := s.search.get(username, query); ok {
		return cached
	}

	var exact, substr, insensitive []string
	lower := strings.ToLower(query)

	s.mu.RLock()
	for name, rec := range s.files {
		readable := rec.Owner == username
		if !readable {
			if entry, ok := rec.ACL[username]; ok && entry.CanRead {
				readable = true
			}
		}
		if !readable {
			continue
		}
		switch {
		case name == query:
			exact = append(exact, name)
		case strings.Contains(name, query):
			substr = append(substr, name)
		case strings.Contains(strings.ToLower(name), lower):
			insensitive = append(insensitive, name)
		}
	}
	s.mu.RUnlock()

	sort.Strings(substr)
	sort.Strings(insensitive)
	results := append(exact, substr...)
	results = append(results, insensitive...)

	// The cache keeps its own copy; the returned slice belongs to the caller.
	cached := make([]string, len(results))
	copy(cached, results)
	s.search.put(username, query, cached)
	return results
}

// SearchCacheLen exposes the cache size for tests and metrics.
func (s *Store) SearchCacheLen() int {
	return s.search.len()
}
