package project

import (
	"sync"

	"gfuzz/internal/funcmap"
)

// analysisCache 按运行时字节码哈希缓存分析结果，同一份代码（如多次链接的库）只分析一次
type analysisCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	once    sync.Once
	result  funcmap.Map
	skipped []funcmap.SkippedSelector
	err     error
}

func newAnalysisCache() *analysisCache {
	return &analysisCache{entries: make(map[string]*cacheEntry)}
}

// entry 取不到哈希时返回不缓存的新条目
func (cache *analysisCache) entry(c Contract) *cacheEntry {
	key, err := c.BytecodeHash()
	if err != nil || key == "" {
		return &cacheEntry{}
	}
	cache.mu.Lock()
	defer cache.mu.Unlock()
	e, ok := cache.entries[key]
	if !ok {
		e = &cacheEntry{}
		cache.entries[key] = e
	}
	return e
}
