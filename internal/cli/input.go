// Package cli is an interactive front end for debugging the mention pipeline.
// Each input line is the text before the cursor; lines starting with ':'
// drive the menu.
package cli

import (
	"bufio"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/bastiangx/mentionserve/pkg/typeahead"
	"github.com/charmbracelet/log"
)

const helpText = `commands:
  :N       select option N
  :up      move highlight up
  :down    move highlight down
  :enter   select the highlighted option
  :esc     close the menu
  :stats   show counters
  :help    show this help`

// InputHandler reads lines from in and renders the menu to out. The menu is
// redrawn whenever the controller publishes, including when results arrive
// after the prompt.
type InputHandler struct {
	ctrl        *typeahead.Controller
	buffer      *Buffer
	in          io.Reader
	out         io.Writer
	outMu       sync.Mutex
	menuWidth   int
	showPending bool
}

// NewInputHandler builds the controller with the handler's Buffer as editor.
func NewInputHandler(in io.Reader, out io.Writer, build func(typeahead.Editor) *typeahead.Controller, menuWidth int, showPending bool) *InputHandler {
	if menuWidth < 8 {
		menuWidth = 8
	}
	h := &InputHandler{
		buffer:      &Buffer{},
		in:          in,
		out:         out,
		menuWidth:   menuWidth,
		showPending: showPending,
	}
	h.ctrl = build(h.buffer)
	h.ctrl.OnChange(h.render)
	return h
}

// Buffer returns the text the selections are applied to.
func (h *InputHandler) Buffer() *Buffer {
	return h.buffer
}

// Start runs the input loop until in is exhausted.
func (h *InputHandler) Start() error {
	h.println("MentionServe CLI [BETA]")
	h.println("type text ending in a mention (e.g. 'Hi @Han') and press Enter. :help for commands, Ctrl+C to exit")

	scanner := bufio.NewScanner(h.in)
	for {
		h.print("> ")
		if !scanner.Scan() {
			h.println("")
			return scanner.Err()
		}
		h.handleInput(strings.TrimRight(scanner.Text(), "\r"))
	}
}

func (h *InputHandler) handleInput(line string) {
	if !strings.HasPrefix(line, ":") {
		log.Debug("Text changed", "text", line)
		h.buffer.Set(line)
		h.ctrl.TextChanged(line)
		return
	}

	var err error
	switch cmd := strings.TrimSpace(line[1:]); cmd {
	case "up":
		h.ctrl.MoveHighlight(-1)
	case "down":
		h.ctrl.MoveHighlight(1)
	case "enter":
		err = h.ctrl.SelectHighlighted()
	case "esc":
		h.ctrl.Close()
	case "stats":
		h.printStats()
	case "help":
		h.println(helpText)
	default:
		n, convErr := strconv.Atoi(cmd)
		if convErr != nil {
			h.println(fmt.Sprintf("unknown command %q, try :help", line))
			return
		}
		err = h.selectNth(n)
	}

	if err != nil {
		log.Warnf("Selection failed: %v", err)
		return
	}
	if cmd := strings.TrimSpace(line[1:]); cmd == "enter" || isNumber(cmd) {
		h.println(fmt.Sprintf("=> %s", h.buffer.String()))
	}
}

// selectNth selects the 1-based option n.
func (h *InputHandler) selectNth(n int) error {
	options := h.ctrl.State().Options
	if n < 1 || n > len(options) {
		return fmt.Errorf("%w: option %d of %d", typeahead.ErrUnknownOption, n, len(options))
	}
	return h.ctrl.SelectOption(options[n-1])
}

func (h *InputHandler) render(state typeahead.State) {
	h.println(renderMenu(state, h.menuWidth, h.showPending))
}

func (h *InputHandler) printStats() {
	stats := h.ctrl.Stats()
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		h.println(fmt.Sprintf("%-16s %d", k, stats[k]))
	}
}

func (h *InputHandler) print(s string) {
	h.outMu.Lock()
	defer h.outMu.Unlock()
	fmt.Fprint(h.out, s)
}

func (h *InputHandler) println(s string) {
	h.outMu.Lock()
	defer h.outMu.Unlock()
	fmt.Fprintln(h.out, s)
}

func isNumber(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}
