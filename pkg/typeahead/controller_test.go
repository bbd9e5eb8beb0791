package typeahead

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bastiangx/mentionserve/internal/logger"
	"github.com/bastiangx/mentionserve/pkg/directory"
	"github.com/bastiangx/mentionserve/pkg/lookup"
	"github.com/bastiangx/mentionserve/pkg/suggest"
	"github.com/bastiangx/mentionserve/pkg/trigger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = time.Second
	tick    = 2 * time.Millisecond
)

// gatedService answers each query only once the test releases it.
type gatedService struct {
	mu    sync.Mutex
	dir   *directory.Memory
	gates map[string]chan struct{}
	calls map[string]int
}

func newGatedService() *gatedService {
	return &gatedService{
		dir:   directory.NewMemory(directory.Sample()),
		gates: make(map[string]chan struct{}),
		calls: make(map[string]int),
	}
}

func (g *gatedService) gate(query string) chan struct{} {
	ch, ok := g.gates[query]
	if !ok {
		ch = make(chan struct{})
		g.gates[query] = ch
	}
	return ch
}

func (g *gatedService) Search(ctx context.Context, query string) ([]string, error) {
	g.mu.Lock()
	g.calls[query]++
	ch := g.gate(query)
	g.mu.Unlock()

	select {
	case <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.dir.Search(ctx, query)
}

func (g *gatedService) release(query string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	close(g.gate(query))
}

func (g *gatedService) count(query string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[query]
}

type edit struct {
	lead   int
	length int
	entity string
}

type recordingEditor struct {
	mu    sync.Mutex
	edits []edit
}

func (r *recordingEditor) ReplaceSpan(lead, length int, entity string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edits = append(r.edits, edit{lead, length, entity})
}

func (r *recordingEditor) all() []edit {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]edit(nil), r.edits...)
}

func newTestController(t *testing.T, svc lookup.Service, editor Editor, opts ...ControllerOption) *Controller {
	t.Helper()
	m, err := trigger.NewMatcher(trigger.DefaultConfig())
	require.NoError(t, err)
	opts = append([]ControllerOption{WithLogger(logger.Discard())}, opts...)
	return New(m, svc, editor, opts...)
}

func keys(options []suggest.Option) []string {
	out := make([]string, len(options))
	for i, opt := range options {
		out[i] = opt.Key
	}
	return out
}

func resolvedFor(c *Controller, query string) func() bool {
	return func() bool {
		s := c.State()
		return s.Active && s.Query == query && !s.Pending
	}
}

var hanResults = []string{"Han Solo", "Inspector Thanoth", "Petty Officer Thanisson", "Thane Kyrell"}

func TestMentionLookupEndToEnd(t *testing.T) {
	c := newTestController(t, directory.NewMemory(directory.Sample()), nil)

	c.TextChanged("Hi @Han")
	require.Eventually(t, resolvedFor(c, "Han"), waitFor, tick)

	s := c.State()
	assert.Equal(t, hanResults, keys(s.Options))
	assert.Equal(t, 3, s.Match.LeadOffset)
	assert.Equal(t, "@Han", s.Match.ReplaceableString)
	assert.Equal(t, 0, s.SelectedIndex)
	assert.NotEmpty(t, c.SessionID())
}

func TestStaleResultsAreDropped(t *testing.T) {
	t.Run("older_resolves_last", func(t *testing.T) {
		svc := newGatedService()
		c := newTestController(t, svc, nil)

		c.TextChanged("Hi @Ha")
		c.TextChanged("Hi @Han")
		assert.True(t, c.State().Pending)

		svc.release("Han")
		require.Eventually(t, resolvedFor(c, "Han"), waitFor, tick)

		svc.release("Ha")
		require.Eventually(t, func() bool { return c.Stats()["staleResults"] == 1 }, waitFor, tick)
		assert.Equal(t, hanResults, keys(c.State().Options))
	})

	t.Run("older_resolves_first", func(t *testing.T) {
		svc := newGatedService()
		c := newTestController(t, svc, nil)

		c.TextChanged("Hi @Ha")
		c.TextChanged("Hi @Han")

		svc.release("Ha")
		require.Eventually(t, func() bool { return c.Stats()["staleResults"] == 1 }, waitFor, tick)
		s := c.State()
		assert.True(t, s.Pending)
		assert.Empty(t, s.Options)

		svc.release("Han")
		require.Eventually(t, resolvedFor(c, "Han"), waitFor, tick)
		assert.Equal(t, hanResults, keys(c.State().Options))
	})

	t.Run("menu_closed_before_results", func(t *testing.T) {
		svc := newGatedService()
		c := newTestController(t, svc, nil)

		c.TextChanged("Hi @Han")
		c.TextChanged("Hi there")
		svc.release("Han")

		require.Eventually(t, func() bool { return c.Stats()["staleResults"] == 1 }, waitFor, tick)
		assert.False(t, c.State().Active)
		assert.Empty(t, c.State().Options)
	})
}

func TestPreviousOptionsStayWhilePending(t *testing.T) {
	svc := newGatedService()
	c := newTestController(t, svc, nil)

	c.TextChanged("Hi @Han")
	svc.release("Han")
	require.Eventually(t, resolvedFor(c, "Han"), waitFor, tick)

	c.TextChanged("Hi @Han ")
	s := c.State()
	assert.True(t, s.Pending)
	assert.Equal(t, "Han ", s.Query)
	assert.Equal(t, hanResults, keys(s.Options))

	svc.release("Han ")
	require.Eventually(t, resolvedFor(c, "Han "), waitFor, tick)
	assert.Equal(t, []string{"Han Solo"}, keys(c.State().Options))
}

func TestRepeatedQueryUsesCache(t *testing.T) {
	svc := newGatedService()
	c := newTestController(t, svc, nil)

	c.TextChanged("Hi @Han")
	c.TextChanged("Hi @Han")
	svc.release("Han")
	require.Eventually(t, resolvedFor(c, "Han"), waitFor, tick)

	c.TextChanged("Hi")
	assert.False(t, c.State().Active)

	c.TextChanged("Hi @Han")
	s := c.State()
	assert.False(t, s.Pending, "cached answer is applied synchronously")
	assert.Equal(t, hanResults, keys(s.Options))
	assert.Equal(t, 1, svc.count("Han"))

	stats := c.Stats()
	assert.Equal(t, 1, stats["lookups"])
	assert.Equal(t, 1, stats["cacheHits"])
	assert.Equal(t, 4, stats["textChanges"])
}

func TestSelectOption(t *testing.T) {
	editor := &recordingEditor{}
	c := newTestController(t, directory.NewMemory(directory.Sample()), editor)

	var states []State
	var mu sync.Mutex
	c.OnChange(func(s State) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, s)
	})

	err := c.SelectOption(suggest.Option{Key: "Han Solo"})
	assert.ErrorIs(t, err, ErrNoActiveQuery)

	c.TextChanged("Hi @Han")
	require.Eventually(t, resolvedFor(c, "Han"), waitFor, tick)

	err = c.SelectOption(suggest.Option{Key: "Yoda"})
	assert.ErrorIs(t, err, ErrUnknownOption)
	assert.True(t, c.State().Active)

	require.NoError(t, c.SelectOption(c.State().Options[0]))
	assert.Equal(t, []edit{{lead: 3, length: 4, entity: "Han Solo"}}, editor.all())
	assert.False(t, c.State().Active)
	assert.Empty(t, c.State().Options)
	assert.Equal(t, 1, c.Stats()["selections"])

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, states)
	for i := 1; i < len(states); i++ {
		assert.Greater(t, states[i].Version, states[i-1].Version)
	}
	assert.False(t, states[len(states)-1].Active)
}

func TestCloseDismissesWithoutEdit(t *testing.T) {
	editor := &recordingEditor{}
	c := newTestController(t, directory.NewMemory(directory.Sample()), editor)

	c.Close()
	assert.Equal(t, 0, c.Stats()["dismissals"])

	c.TextChanged("Luke Skywalker")
	require.Eventually(t, resolvedFor(c, "Skywalker"), waitFor, tick)
	assert.Equal(t, 5, c.State().Match.LeadOffset)

	c.Close()
	assert.False(t, c.State().Active)
	assert.Empty(t, editor.all())
	assert.Equal(t, 1, c.Stats()["dismissals"])
}

func TestHighlight(t *testing.T) {
	editor := &recordingEditor{}
	c := newTestController(t, directory.NewMemory(directory.Sample()), editor)

	c.MoveHighlight(1)
	assert.Equal(t, 0, c.State().SelectedIndex)
	assert.ErrorIs(t, c.SelectHighlighted(), ErrNoActiveQuery)

	c.TextChanged("Hi @Han")
	require.Eventually(t, resolvedFor(c, "Han"), waitFor, tick)

	c.SetHighlightedIndex(10)
	assert.Equal(t, 3, c.State().SelectedIndex)
	c.SetHighlightedIndex(-2)
	assert.Equal(t, 0, c.State().SelectedIndex)

	c.MoveHighlight(-1)
	assert.Equal(t, 3, c.State().SelectedIndex)
	c.MoveHighlight(1)
	assert.Equal(t, 0, c.State().SelectedIndex)
	c.MoveHighlight(6)
	assert.Equal(t, 2, c.State().SelectedIndex)

	require.NoError(t, c.SelectHighlighted())
	assert.Equal(t, []edit{{lead: 3, length: 4, entity: "Petty Officer Thanisson"}}, editor.all())
}

func TestLookupTimeoutShowsNoOptions(t *testing.T) {
	svc := newGatedService()
	c := newTestController(t, svc, nil, WithLookupTimeout(20*time.Millisecond))

	c.TextChanged("Hi @Han")
	require.Eventually(t, resolvedFor(c, "Han"), waitFor, tick)

	assert.Empty(t, c.State().Options)
	assert.Equal(t, 1, c.Stats()["failedLookups"])

	// failures are not cached
	c.TextChanged("Hi")
	c.TextChanged("Hi @Han")
	assert.True(t, c.State().Pending)
	assert.Equal(t, 2, c.Stats()["lookups"])
}

func TestLookupErrorShowsNoOptions(t *testing.T) {
	boom := errors.New("directory offline")
	svc := lookup.ServiceFunc(func(context.Context, string) ([]string, error) {
		return nil, boom
	})
	c := newTestController(t, svc, nil)

	c.TextChanged("Hi @Yo")
	require.Eventually(t, resolvedFor(c, "Yo"), waitFor, tick)
	assert.Empty(t, c.State().Options)
	assert.Equal(t, 1, c.Stats()["failedLookups"])
}

func TestNoTriggerNoLookup(t *testing.T) {
	svc := newGatedService()
	c := newTestController(t, svc, nil)

	for _, text := range []string{"Hi /Han", "email@ab", "hello world", "", "@"} {
		c.TextChanged(text)
		assert.False(t, c.State().Active, text)
	}
	assert.Equal(t, 0, c.Stats()["lookups"])
}

func TestRankerLimitsOptions(t *testing.T) {
	c := newTestController(t, directory.NewMemory(directory.Sample()), nil, WithRanker(suggest.NewRanker(2)))

	c.TextChanged("Hi @Han")
	require.Eventually(t, resolvedFor(c, "Han"), waitFor, tick)
	assert.Equal(t, hanResults[:2], keys(c.State().Options))
}

func TestHandlesFollowVisibleOptions(t *testing.T) {
	c := newTestController(t, directory.NewMemory(directory.Sample()), nil)

	c.TextChanged("Hi @Han")
	require.Eventually(t, resolvedFor(c, "Han"), waitFor, tick)
	for _, opt := range c.State().Options {
		c.Handles().Register(opt.Key, opt.Rank)
	}
	c.Handles().Register("Yoda", 99)

	c.TextChanged("Hi @Han S")
	require.Eventually(t, resolvedFor(c, "Han S"), waitFor, tick)
	assert.Equal(t, 1, c.Handles().Len())

	c.Close()
	assert.Equal(t, 0, c.Handles().Len())
}

func TestListenerMayReadState(t *testing.T) {
	c := newTestController(t, directory.NewMemory(directory.Sample()), nil)

	var mu sync.Mutex
	var seen []State
	c.OnChange(func(s State) {
		time.Sleep(time.Millisecond)
		current := c.State()
		_ = c.Stats()
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, s)
		assert.GreaterOrEqual(t, current.Version, s.Version)
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, text := range []string{"Hi @H", "Hi @Ha", "Hi @Han", "Hi @Han ", "Hi @Han S"} {
			c.TextChanged(text)
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("typing stalled while a listener read the state")
	}
	require.Eventually(t, resolvedFor(c, "Han S"), waitFor, tick)

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(seen); i++ {
		assert.Greater(t, seen[i].Version, seen[i-1].Version)
	}
}

func TestEditorMayFeedTextBack(t *testing.T) {
	var c *Controller
	var texts []string
	editor := EditorFunc(func(lead, length int, entity string) {
		text := "Hi " + entity
		texts = append(texts, text)
		c.TextChanged(text)
	})
	c = newTestController(t, directory.NewMemory(directory.Sample()), editor)

	var mu sync.Mutex
	var states []State
	c.OnChange(func(s State) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, s)
	})

	c.TextChanged("Hi @Han")
	require.Eventually(t, resolvedFor(c, "Han"), waitFor, tick)

	done := make(chan error, 1)
	go func() { done <- c.SelectOption(c.State().Options[0]) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("selection stalled when the editor fed text back")
	}

	assert.Equal(t, []string{"Hi Han Solo"}, texts)
	// "Solo" reads as a capitalized name, so a fresh query starts
	s := c.State()
	assert.True(t, s.Active)
	assert.Equal(t, "Solo", s.Query)

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(states); i++ {
		assert.Greater(t, states[i].Version, states[i-1].Version)
	}
}

func TestRetypedPendingQueryPublishesOnce(t *testing.T) {
	svc := newGatedService()
	c := newTestController(t, svc, nil)

	var mu sync.Mutex
	answered := 0
	c.OnChange(func(s State) {
		if s.Active && s.Query == "Han" && !s.Pending {
			mu.Lock()
			answered++
			mu.Unlock()
		}
	})
	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return answered
	}

	c.TextChanged("Hi @Han")
	c.TextChanged("Hi")
	c.TextChanged("Hi @Han")
	c.TextChanged("Hi @Ha")
	c.TextChanged("Hi @Han")
	assert.True(t, c.State().Pending)

	svc.release("Han")
	require.Eventually(t, func() bool { return count() == 1 }, waitFor, tick)
	assert.Never(t, func() bool { return count() > 1 }, 50*time.Millisecond, tick)

	stats := c.Stats()
	assert.Equal(t, 0, stats["inflightJoins"])
	assert.Equal(t, 1, svc.count("Han"))
}

func TestDirectoryReloadRefreshesCachedQueries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.txt")
	require.NoError(t, os.WriteFile(path, []byte("Han Solo\n"), 0644))

	mem := directory.NewMemory(nil)
	w, err := directory.Watch(path, mem, logger.Discard())
	require.NoError(t, err)
	defer w.Stop()

	cache := suggest.NewQueryCache(DefaultCacheSize, time.Second)
	reloaded := make(chan struct{}, 8)
	w.OnReload(cache.Purge)
	w.OnReload(func() { reloaded <- struct{}{} })

	c := newTestController(t, mem, nil, WithCache(cache))
	c.TextChanged("Hi @Han")
	require.Eventually(t, resolvedFor(c, "Han"), waitFor, tick)
	assert.Equal(t, []string{"Han Solo"}, keys(c.State().Options))

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("Han Solo\nHan Jr\n"), 0644))
	select {
	case <-reloaded:
	case <-time.After(2 * time.Second):
		t.Fatal("directory was not reloaded")
	}

	c.TextChanged("Hi")
	c.TextChanged("Hi @Han")
	require.Eventually(t, func() bool {
		s := c.State()
		return resolvedFor(c, "Han")() && len(s.Options) == 2
	}, waitFor, tick)
	assert.Equal(t, []string{"Han Solo", "Han Jr"}, keys(c.State().Options))
	assert.Equal(t, 2, c.Stats()["lookups"])
}
