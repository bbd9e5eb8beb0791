package suggest

import (
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// ErrLookupTimeout is delivered to waiters when a lookup outlives the cache timeout.
var ErrLookupTimeout = errors.New("lookup timed out")

type cacheEntry struct {
	results  []string
	resolved bool
	waiters  []NotifyFunc
	timer    *time.Timer
	lastUsed int64
}

// QueryCache memoizes lookups by exact query string. A key is either pending
// (one fetch in flight, waiters queued) or resolved. Resolved entries beyond
// maxEntries are evicted least recently used first; pending ones never are.
type QueryCache struct {
	entries     map[string]*cacheEntry
	maxEntries  int
	timeout     time.Duration
	accessCount int64
	resolved    int
	hits        int
	misses      int
	joins       int
	evictions   int
	timeouts    int
	failures    int
	purges      int
	mu          sync.Mutex
}

var _ ICache = (*QueryCache)(nil)

// NewQueryCache creates a cache holding up to maxEntries resolved queries
// (0 for unbounded). A positive timeout fails lookups that take longer.
func NewQueryCache(maxEntries int, timeout time.Duration) *QueryCache {
	return &QueryCache{
		entries:    make(map[string]*cacheEntry),
		maxEntries: maxEntries,
		timeout:    timeout,
	}
}

// Request returns (results, true) when key is resolved. Otherwise notify is
// queued for key and (nil, false) is returned; fetch is only called when no
// lookup for key is already in flight. The returned slice is shared and must
// not be modified.
func (qc *QueryCache) Request(key string, fetch FetchFunc, notify NotifyFunc) ([]string, bool) {
	qc.mu.Lock()

	if e, ok := qc.entries[key]; ok {
		if e.resolved {
			qc.hits++
			e.lastUsed = qc.nextAccess()
			results := e.results
			qc.mu.Unlock()
			return results, true
		}
		qc.joins++
		if notify != nil {
			e.waiters = append(e.waiters, notify)
		}
		qc.mu.Unlock()
		return nil, false
	}

	qc.misses++
	e := &cacheEntry{lastUsed: qc.nextAccess()}
	if notify != nil {
		e.waiters = append(e.waiters, notify)
	}
	qc.entries[key] = e
	if qc.timeout > 0 {
		e.timer = time.AfterFunc(qc.timeout, func() {
			qc.finish(key, e, nil, ErrLookupTimeout)
		})
	}
	qc.mu.Unlock()

	fetch(key, func(results []string, err error) {
		qc.finish(key, e, results, err)
	})
	return nil, false
}

// finish settles a pending entry once. Late or repeated calls are ignored.
func (qc *QueryCache) finish(key string, e *cacheEntry, results []string, err error) {
	qc.mu.Lock()
	if e.resolved || qc.entries[key] != e {
		qc.mu.Unlock()
		return
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	waiters := e.waiters
	e.waiters = nil

	if err != nil {
		// failed keys are dropped so the next request retries
		delete(qc.entries, key)
		qc.failures++
		if errors.Is(err, ErrLookupTimeout) {
			qc.timeouts++
		}
		results = nil
	} else {
		e.results = results
		e.resolved = true
		e.lastUsed = qc.nextAccess()
		qc.resolved++
		qc.evictLRU()
	}
	qc.mu.Unlock()

	for _, notify := range waiters {
		notify(key, results, err)
	}
}

// Peek returns the resolved results for key, if any.
func (qc *QueryCache) Peek(key string) ([]string, bool) {
	qc.mu.Lock()
	defer qc.mu.Unlock()

	e, ok := qc.entries[key]
	if !ok || !e.resolved {
		return nil, false
	}
	return e.results, true
}

// Purge forgets every resolved entry, for when the directory behind the
// cache changes. Pending entries keep their waiters and resolve as usual.
func (qc *QueryCache) Purge() {
	qc.mu.Lock()
	defer qc.mu.Unlock()

	for key, e := range qc.entries {
		if e.resolved {
			delete(qc.entries, key)
		}
	}
	qc.resolved = 0
	qc.purges++
	log.Debug("Purged query cache")
}

// Len returns the number of cached keys, pending ones included.
func (qc *QueryCache) Len() int {
	qc.mu.Lock()
	defer qc.mu.Unlock()
	return len(qc.entries)
}

func (qc *QueryCache) Stats() map[string]int {
	qc.mu.Lock()
	defer qc.mu.Unlock()

	return map[string]int{
		"cacheEntries":    len(qc.entries),
		"resolvedEntries": qc.resolved,
		"maxCacheEntries": qc.maxEntries,
		"cacheHits":       qc.hits,
		"cacheMisses":     qc.misses,
		"inflightJoins":   qc.joins,
		"evictions":       qc.evictions,
		"timeouts":        qc.timeouts,
		"failures":        qc.failures,
		"purges":          qc.purges,
	}
}

func (qc *QueryCache) nextAccess() int64 {
	qc.accessCount++
	return qc.accessCount
}

func (qc *QueryCache) evictLRU() {
	if qc.maxEntries <= 0 {
		return
	}
	for qc.resolved > qc.maxEntries {
		var oldestKey string
		var oldestTime int64 = 9223372036854775807

		for key, e := range qc.entries {
			if e.resolved && e.lastUsed < oldestTime {
				oldestTime = e.lastUsed
				oldestKey = key
			}
		}

		delete(qc.entries, oldestKey)
		qc.resolved--
		qc.evictions++
		log.Debugf("Evicted query '%s' from cache", oldestKey)
	}
}
