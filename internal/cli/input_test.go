package cli

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bastiangx/mentionserve/internal/logger"
	"github.com/bastiangx/mentionserve/pkg/directory"
	"github.com/bastiangx/mentionserve/pkg/trigger"
	"github.com/bastiangx/mentionserve/pkg/typeahead"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newHandler(t *testing.T, in string) (*InputHandler, *syncBuffer) {
	t.Helper()
	matcher, err := trigger.NewMatcher(trigger.DefaultConfig())
	require.NoError(t, err)

	out := &syncBuffer{}
	h := NewInputHandler(strings.NewReader(in), out, func(editor typeahead.Editor) *typeahead.Controller {
		return typeahead.New(matcher, directory.NewMemory(directory.Sample()), editor,
			typeahead.WithLogger(logger.Discard()))
	}, 24, true)
	return h, out
}

func waitResolved(t *testing.T, h *InputHandler, query string) {
	t.Helper()
	require.Eventually(t, func() bool {
		s := h.ctrl.State()
		return s.Active && s.Query == query && !s.Pending
	}, time.Second, 2*time.Millisecond)
}

func TestSelectByNumber(t *testing.T) {
	h, out := newHandler(t, "")

	h.handleInput("Hi @Han")
	waitResolved(t, h, "Han")
	assert.Contains(t, out.String(), "Han Solo")

	h.handleInput(":2")
	assert.Equal(t, "Hi Inspector Thanoth", h.Buffer().String())
	assert.Equal(t, []Mention{{Offset: 3, Entity: "Inspector Thanoth"}}, h.Buffer().Mentions())
	assert.False(t, h.ctrl.State().Active)
	assert.Contains(t, out.String(), "=> Hi Inspector Thanoth")
}

func TestHighlightAndEnter(t *testing.T) {
	h, _ := newHandler(t, "")

	h.handleInput("Hi @Han")
	waitResolved(t, h, "Han")

	h.handleInput(":up")
	assert.Equal(t, 3, h.ctrl.State().SelectedIndex)
	h.handleInput(":down")
	h.handleInput(":down")
	assert.Equal(t, 1, h.ctrl.State().SelectedIndex)

	h.handleInput(":enter")
	assert.Equal(t, "Hi Inspector Thanoth", h.Buffer().String())
}

func TestEscapeAndBadCommands(t *testing.T) {
	h, out := newHandler(t, "")

	h.handleInput("Hi @Han")
	waitResolved(t, h, "Han")

	h.handleInput(":9")
	assert.True(t, h.ctrl.State().Active, "out of range selection keeps the menu")

	h.handleInput(":bogus")
	assert.Contains(t, out.String(), "unknown command")

	h.handleInput(":esc")
	assert.False(t, h.ctrl.State().Active)
	assert.Equal(t, "Hi @Han", h.Buffer().String())
	assert.Contains(t, out.String(), "(menu closed)")

	h.handleInput(":stats")
	assert.Contains(t, out.String(), "dismissals")
}

func TestStartReadsUntilEOF(t *testing.T) {
	h, out := newHandler(t, "hello\n:help\n")
	require.NoError(t, h.Start())
	assert.Contains(t, out.String(), ":enter")
	assert.Equal(t, "hello", h.Buffer().String())
}

func TestBufferClampsSpan(t *testing.T) {
	b := &Buffer{}
	b.Set("Hi @Ha")
	b.ReplaceSpan(3, 40, "Han Solo")
	assert.Equal(t, "Hi Han Solo", b.String())

	b.Set("@Yo")
	b.ReplaceSpan(-1, 3, "Yoda")
	assert.Equal(t, "Yoda", b.String())
	assert.Len(t, b.Mentions(), 1)
}

func TestRenderMenuTruncatesWideLabels(t *testing.T) {
	state := typeahead.State{Active: true, Query: "Han"}
	assert.Contains(t, renderMenu(state, 10, true), "no matches")

	state.Pending = true
	assert.Contains(t, renderMenu(state, 10, true), "@Han …")
	assert.NotContains(t, renderMenu(state, 10, false), "…")
}
