// Package directory provides entity directories that back lookup.Service:
// an in-memory suffix index, a SQLite table, file loading and hot reload.
//
// Every directory matches case-insensitively on substrings and returns names
// in directory order, the same policy the editor's demo dataset uses.
package directory

import (
	"context"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/tchap/go-patricia/v2/patricia"
	"golang.org/x/text/cases"
)

// Memory is an in-memory directory. Every suffix of every case-folded name is
// stored in a patricia trie, so a substring query is a subtree visit.
type Memory struct {
	mu    sync.RWMutex
	names []string
	index *patricia.Trie
}

// NewMemory builds a directory from names. Empty and duplicate names are skipped.
func NewMemory(names []string) *Memory {
	m := &Memory{}
	m.Replace(names)
	return m
}

// Replace swaps the whole dataset. Searches in flight keep the old one.
func (m *Memory) Replace(names []string) {
	kept, index := buildIndex(names)

	m.mu.Lock()
	m.names = kept
	m.index = index
	m.mu.Unlock()

	log.Debugf("Indexed %d directory entries", len(kept))
}

// Search returns every name containing query, ignoring case.
func (m *Memory) Search(ctx context.Context, query string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	names, index := m.names, m.index
	m.mu.RUnlock()

	seen := make(map[int]struct{})
	err := index.VisitSubtree(patricia.Prefix(fold(query)), func(_ patricia.Prefix, item patricia.Item) error {
		for _, id := range item.([]int) {
			seen[id] = struct{}{}
		}
		return nil
	})
	if err != nil {
		log.Errorf("Error visiting directory index: %v", err)
		return nil, err
	}

	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	results := make([]string, len(ids))
	for i, id := range ids {
		results[i] = names[id]
	}
	return results, nil
}

// Len returns the number of indexed names.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.names)
}

func buildIndex(names []string) ([]string, *patricia.Trie) {
	trie := patricia.NewTrie()
	kept := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))

	for _, name := range names {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		id := len(kept)
		kept = append(kept, name)

		folded := fold(name)
		for i := range folded {
			key := patricia.Prefix(folded[i:])
			if item := trie.Get(key); item != nil {
				ids := item.([]int)
				if ids[len(ids)-1] != id {
					trie.Set(key, append(ids, id))
				}
				continue
			}
			trie.Insert(key, []int{id})
		}
	}
	return kept, trie
}

// fold maps s to its case-folded form. Casers are not safe for concurrent
// use, so each call gets its own.
func fold(s string) string {
	return cases.Fold().String(s)
}
