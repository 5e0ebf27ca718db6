package source

import (
	"io/fs"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/phobologic/chunkplan/internal/parse"
)

// DefaultCacheSize bounds the number of parsed files kept between runs.
const DefaultCacheSize = 4096

type cacheKey struct {
	path  string
	size  int64
	mtime int64
}

// Cache remembers the imports of parsed files. An entry is valid while the
// file keeps its size and modification time. It is safe for concurrent use;
// a nil *Cache disables caching.
type Cache struct {
	entries *lru.Cache[cacheKey, []parse.Import]
}

// NewCache returns a cache holding at most size files.
func NewCache(size int) (*Cache, error) {
	c, err := lru.New[cacheKey, []parse.Import](size)
	if err != nil {
		return nil, err
	}
	return &Cache{entries: c}, nil
}

func key(path string, info fs.FileInfo) cacheKey {
	return cacheKey{path: path, size: info.Size(), mtime: info.ModTime().UnixNano()}
}

// Get returns the cached imports of path if info still matches.
func (c *Cache) Get(path string, info fs.FileInfo) ([]parse.Import, bool) {
	if c == nil {
		return nil, false
	}
	return c.entries.Get(key(path, info))
}

// Add stores the imports of path.
func (c *Cache) Add(path string, info fs.FileInfo, imports []parse.Import) {
	if c == nil {
		return
	}
	c.entries.Add(key(path, info), imports)
}

// Len returns the number of cached files.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.entries.Len()
}
