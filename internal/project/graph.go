package project

import (
	"sync"

	"gfuzz/internal/funcmap"
	"gfuzz/internal/selector"
)

// Graph 整个项目的 选择器 -> 可能调用的选择器，多个worker并发合并
type Graph struct {
	mu        sync.RWMutex
	selectors funcmap.Map
}

func NewGraph() *Graph {
	return &Graph{selectors: make(funcmap.Map)}
}

// Merge 按选择器做并集，不会持有m中的集合
func (g *Graph) Merge(m funcmap.Map) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.selectors.Merge(m)
}

func (g *Graph) Callees(sel selector.Selector) (selector.Set, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	callees, ok := g.selectors[sel]
	if !ok {
		return nil, false
	}
	result := selector.NewSet()
	result.Union(callees)
	return result, true
}

// Snapshot 返回拷贝
func (g *Graph) Snapshot() funcmap.Map {
	g.mu.RLock()
	defer g.mu.RUnlock()
	result := make(funcmap.Map, len(g.selectors))
	result.Merge(g.selectors)
	return result
}

func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.selectors)
}
