// Package typeahead drives the mention menu. A Controller reacts to text
// changes, looks queries up through a per-controller cache and publishes the
// ranked options to whatever renders the menu.
//
// Handlers are serialized by one mutex, which gives the same guarantees as a
// single UI event loop: a lookup that finishes after a newer keystroke is
// recognized by its query and dropped before it reaches the menu. Snapshots
// are queued under that mutex and delivered to listeners without it, in
// queue order.
package typeahead

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bastiangx/mentionserve/internal/logger"
	"github.com/bastiangx/mentionserve/pkg/lookup"
	"github.com/bastiangx/mentionserve/pkg/suggest"
	"github.com/bastiangx/mentionserve/pkg/trigger"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

const (
	DefaultLookupTimeout = 3 * time.Second
	DefaultCacheSize     = 256
)

var (
	ErrNoActiveQuery = errors.New("no active mention query")
	ErrUnknownOption = errors.New("option is not in the menu")
)

// Editor applies the edit produced by selecting an option: the span of
// length bytes at leadOffset is replaced by a mention of entityKey.
type Editor interface {
	ReplaceSpan(leadOffset, length int, entityKey string)
}

// EditorFunc adapts a function to Editor.
type EditorFunc func(leadOffset, length int, entityKey string)

func (f EditorFunc) ReplaceSpan(leadOffset, length int, entityKey string) {
	f(leadOffset, length, entityKey)
}

// State is what the menu renderer reads. Idle when Active is false.
type State struct {
	Version       uint64
	Query         string
	Active        bool
	Pending       bool
	Options       []suggest.Option
	SelectedIndex int
	Match         trigger.Match
}

// Controller owns the mention query state of one editor.
type Controller struct {
	mu        sync.Mutex
	delivered *sync.Cond
	id        string
	matcher   *trigger.Matcher
	service   lookup.Service
	editor    Editor
	cache     suggest.ICache
	ranker    *suggest.Ranker
	handles   *suggest.Handles
	logger    *log.Logger
	ctx       context.Context
	timeout   time.Duration
	state     State
	listeners []func(State)
	stats     map[string]int

	// awaiting holds queries whose resolution callback is registered
	awaiting map[string]struct{}

	// outbox is the publish queue; queued counts snapshots ever queued and
	// sent those handed to every listener
	outbox   []State
	queued   uint64
	sent     uint64
	draining bool
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithCache replaces the default bounded query cache.
func WithCache(cache suggest.ICache) ControllerOption {
	return func(c *Controller) {
		c.cache = cache
	}
}

// WithRanker sets how many options the menu shows.
func WithRanker(r *suggest.Ranker) ControllerOption {
	return func(c *Controller) {
		c.ranker = r
	}
}

func WithLogger(l *log.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = l
	}
}

// WithLookupTimeout bounds every lookup. Zero disables the bound.
func WithLookupTimeout(d time.Duration) ControllerOption {
	return func(c *Controller) {
		c.timeout = d
	}
}

// WithContext sets the parent context of every lookup.
func WithContext(ctx context.Context) ControllerOption {
	return func(c *Controller) {
		c.ctx = ctx
	}
}

func WithHandles(h *suggest.Handles) ControllerOption {
	return func(c *Controller) {
		c.handles = h
	}
}

// New creates a controller. editor may be nil when selections are not needed.
func New(matcher *trigger.Matcher, service lookup.Service, editor Editor, opts ...ControllerOption) *Controller {
	c := &Controller{
		id:      uuid.NewString(),
		matcher: matcher,
		service: service,
		editor:  editor,
		ctx:     context.Background(),
		timeout:  DefaultLookupTimeout,
		stats:    make(map[string]int),
		awaiting: make(map[string]struct{}),
	}
	c.delivered = sync.NewCond(&c.mu)
	for _, opt := range opts {
		opt(c)
	}

	if c.cache == nil {
		c.cache = suggest.NewQueryCache(DefaultCacheSize, c.timeout)
	}
	if c.ranker == nil {
		c.ranker = suggest.NewRanker(suggest.DefaultLimit)
	}
	if c.handles == nil {
		c.handles = suggest.NewHandles()
	}
	if c.logger == nil {
		c.logger = logger.Default("typeahead")
	}
	c.logger = c.logger.With("session", c.id[:8])
	return c
}

// SessionID identifies this controller in logs and IPC messages.
func (c *Controller) SessionID() string {
	return c.id
}

// Handles returns the registry the renderer keeps option handles in.
func (c *Controller) Handles() *suggest.Handles {
	return c.handles
}

// OnChange registers fn to receive every new state, in order. fn runs
// without the state lock held and may read State and Stats, but must not
// call mutating controller methods.
func (c *Controller) OnChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// State returns a snapshot of the current menu state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// TextChanged handles the text between the start of the block and the cursor.
func (c *Controller) TextChanged(text string) {
	c.mu.Lock()
	c.stats["textChanges"]++

	match, ok := c.matcher.Check(text)
	if !ok {
		if !c.state.Active {
			c.mu.Unlock()
			return
		}
		c.resetLocked()
		c.publishAndUnlock()
		return
	}

	c.stats["matches"]++
	query := match.MatchingString

	c.state.Active = true
	c.state.Match = match
	c.state.Query = query
	c.state.Version++

	if _, ok := c.awaiting[query]; ok {
		// already registered, resolved will deliver it once
		c.state.Pending = true
	} else if results, hit := c.cache.Request(query, c.fetch, c.resolved); hit {
		c.applyLocked(results)
	} else {
		c.awaiting[query] = struct{}{}
		// previous options stay visible until the new ones arrive
		c.state.Pending = true
	}
	c.publishAndUnlock()
}

// fetch is called by the cache from inside Request, so c.mu is held.
func (c *Controller) fetch(query string, done func([]string, error)) {
	c.stats["lookups"]++
	c.logger.Debug("Looking up", "query", query)

	ctx, cancel := context.WithCancel(c.ctx)
	if c.timeout > 0 {
		ctx, cancel = context.WithTimeout(c.ctx, c.timeout)
	}
	lookup.Go(ctx, c.service, query, func(results []string, err error) {
		cancel()
		done(results, err)
	})
}

// resolved applies lookup results, unless the query they answer is no
// longer the one in the menu.
func (c *Controller) resolved(query string, results []string, err error) {
	c.mu.Lock()
	delete(c.awaiting, query)
	if !c.state.Active || c.state.Query != query {
		c.stats["staleResults"]++
		c.logger.Debug("Dropped stale results", "query", query, "current", c.state.Query)
		c.mu.Unlock()
		return
	}

	if err != nil {
		c.stats["failedLookups"]++
		c.logger.Warn("Lookup failed", "query", query, "err", err)
		results = nil
	}
	c.state.Version++
	c.applyLocked(results)
	c.publishAndUnlock()
}

// SelectOption closes the menu and then has the editor replace the matched
// span with opt. The editor runs with no controller lock held, so it may
// feed the resulting text straight back into TextChanged.
func (c *Controller) SelectOption(opt suggest.Option) error {
	c.mu.Lock()
	if !c.state.Active {
		c.mu.Unlock()
		return ErrNoActiveQuery
	}
	if indexOf(c.state.Options, opt.Key) < 0 {
		c.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownOption, opt.Key)
	}

	match := c.state.Match
	c.stats["selections"]++
	c.logger.Debug("Selected", "entity", opt.Key, "lead", match.LeadOffset)
	c.resetLocked()
	c.publishAndUnlock()

	if c.editor != nil {
		c.editor.ReplaceSpan(match.LeadOffset, len(match.ReplaceableString), opt.Key)
	}
	return nil
}

// SelectHighlighted selects the option at SelectedIndex.
func (c *Controller) SelectHighlighted() error {
	c.mu.Lock()
	if !c.state.Active || len(c.state.Options) == 0 {
		c.mu.Unlock()
		return ErrNoActiveQuery
	}
	opt := c.state.Options[c.state.SelectedIndex]
	c.mu.Unlock()
	return c.SelectOption(opt)
}

// SetHighlightedIndex moves the highlight, clamped to the visible options.
func (c *Controller) SetHighlightedIndex(i int) {
	c.mu.Lock()
	n := len(c.state.Options)
	if n == 0 {
		c.mu.Unlock()
		return
	}
	c.highlightLocked(min(max(i, 0), n-1))
}

// MoveHighlight moves the highlight by delta, wrapping at both ends.
func (c *Controller) MoveHighlight(delta int) {
	c.mu.Lock()
	n := len(c.state.Options)
	if n == 0 {
		c.mu.Unlock()
		return
	}
	c.highlightLocked(((c.state.SelectedIndex+delta)%n + n) % n)
}

func (c *Controller) highlightLocked(i int) {
	if i == c.state.SelectedIndex {
		c.mu.Unlock()
		return
	}
	c.state.SelectedIndex = i
	c.state.Version++
	c.publishAndUnlock()
}

// Close dismisses the menu without editing (escape, click outside).
func (c *Controller) Close() {
	c.mu.Lock()
	if !c.state.Active {
		c.mu.Unlock()
		return
	}
	c.stats["dismissals"]++
	c.resetLocked()
	c.publishAndUnlock()
}

// Stats returns controller counters merged with the cache's.
func (c *Controller) Stats() map[string]int {
	c.mu.Lock()
	stats := make(map[string]int, len(c.stats))
	for k, v := range c.stats {
		stats[k] = v
	}
	c.mu.Unlock()

	for k, v := range c.cache.Stats() {
		stats[k] = v
	}
	return stats
}

func (c *Controller) applyLocked(results []string) {
	options := c.ranker.Rank(results)
	if !sameKeys(options, c.state.Options) {
		c.state.SelectedIndex = 0
	}
	c.state.Options = options
	c.state.Pending = false
	c.handles.Retain(options)
}

func (c *Controller) resetLocked() {
	c.state = State{Version: c.state.Version + 1}
	c.handles.Retain(nil)
}

// publishAndUnlock queues the current state and returns once listeners have
// seen it. Whichever caller finds the queue idle drains it; the others wait.
func (c *Controller) publishAndUnlock() {
	c.outbox = append(c.outbox, c.state)
	c.queued++
	seq := c.queued

	for c.sent < seq {
		if c.draining {
			c.delivered.Wait()
			continue
		}
		c.drainLocked()
	}
	c.mu.Unlock()
}

// drainLocked delivers queued snapshots until the queue is empty. c.mu is
// released around every listener call.
func (c *Controller) drainLocked() {
	c.draining = true
	for len(c.outbox) > 0 {
		snapshot := c.outbox[0]
		c.outbox[0] = State{}
		c.outbox = c.outbox[1:]
		listeners := c.listeners

		c.mu.Unlock()
		for _, fn := range listeners {
			fn(snapshot)
		}
		c.mu.Lock()

		c.sent++
		c.delivered.Broadcast()
	}
	c.draining = false
}

func indexOf(options []suggest.Option, key string) int {
	for i, opt := range options {
		if opt.Key == key {
			return i
		}
	}
	return -1
}

func sameKeys(a, b []suggest.Option) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Key != b[i].Key {
			return false
		}
	}
	return true
}
