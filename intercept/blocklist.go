package intercept

import (
	"strings"
	"sync"
)

// DefaultBlockPattern drops requests to the ad network
const DefaultBlockPattern = "googlead"

// BlockList matches request URLs against substring rules
type BlockList struct {
	lock     sync.RWMutex
	patterns []string
}

// NewBlockList with the given patterns
func NewBlockList(patterns ...string) *BlockList {
	b := &BlockList{patterns: make([]string, 0)}
	b.Add(patterns)
	return b
}

// NewDefaultBlockList containing DefaultBlockPattern
func NewDefaultBlockList() *BlockList {
	return NewBlockList(DefaultBlockPattern)
}

// Add patterns, empty and duplicate patterns are ignored
func (b *BlockList) Add(patterns []string) {
	b.lock.Lock()
	defer b.lock.Unlock()
	for _, p := range patterns {
		if p == "" || indexFunction(b.patterns, p) >= 0 {
			continue
		}
		b.patterns = append(b.patterns, p)
	}
}

// Patterns currently configured
func (b *BlockList) Patterns() []string {
	b.lock.RLock()
	defer b.lock.RUnlock()
	p := make([]string, len(b.patterns))
	copy(p, b.patterns)
	return p
}

// Match returns the first pattern contained in url
func (b *BlockList) Match(url string) (string, bool) {
	b.lock.RLock()
	defer b.lock.RUnlock()
	for _, p := range b.patterns {
		if strings.Contains(url, p) {
			return p, true
		}
	}
	return "", false
}

func indexFunction(vs []string, t string) int {
	for i, v := range vs {
		if v == t {
			return i
		}
	}
	return -1
}
