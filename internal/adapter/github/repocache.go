package github

import "sync"

// RepoCache memoises repository metadata for the lifetime of the process.
// Its mutex is leaf-level: it is never held while taking the limiter's.
type RepoCache struct {
	mu    sync.Mutex
	repos map[string]Repository
}

// NewRepoCache creates an empty cache.
func NewRepoCache() *RepoCache {
	return &RepoCache{repos: make(map[string]Repository)}
}

// Get returns the cached record for "owner/repo".
func (c *RepoCache) Get(key string) (Repository, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.repos[key]
	return r, ok
}

// Put stores a record.
func (c *RepoCache) Put(key string, r Repository) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.repos[key] = r
}

// Len reports the number of cached repositories.
func (c *RepoCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.repos)
}
