// Package suggest is the middle of the typeahead pipeline: it memoizes directory
// lookups per query and turns raw results into a bounded list of menu options.
package suggest

// FetchFunc starts a lookup for key and eventually calls done once.
// It is invoked without cache locks held, but done should run on another
// goroutine when the caller's notify re-enters its own locks.
type FetchFunc func(key string, done func(results []string, err error))

// NotifyFunc receives the outcome for a key that was not resolved when it
// was requested. On failure results is nil and err is set.
type NotifyFunc func(key string, results []string, err error)

// ICache defines the query cache used by the typeahead controller
type ICache interface {
	// Request returns cached results, or registers notify and makes sure
	// exactly one fetch is in flight for key
	Request(key string, fetch FetchFunc, notify NotifyFunc) ([]string, bool)

	// Peek returns resolved results without touching recency or stats
	Peek(key string) ([]string, bool)

	// Purge drops resolved entries; lookups in flight are left alone
	Purge()

	// Stats returns counters about cache usage
	Stats() map[string]int
}
