package server

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/bastiangx/mentionserve/internal/logger"
	"github.com/bastiangx/mentionserve/pkg/suggest"
	"github.com/bastiangx/mentionserve/pkg/typeahead"
	"github.com/charmbracelet/log"
	"github.com/vmihailenco/msgpack/v5"
)

// DefaultMaxText is the longest text accepted by the "text" action, in bytes.
const DefaultMaxText = 1000

// Server handles the IPC for one editor session.
type Server struct {
	ctrl    *typeahead.Controller
	dec     *msgpack.Decoder
	maxText int
	logger  *log.Logger

	// wmu guards the encoder and the reply bookkeeping below.
	wmu        sync.Mutex
	enc        *msgpack.Encoder
	inRequest  bool
	replyStart time.Time
	editID     string

	// lastVersion is the newest state version written to the client
	lastVersion uint64
}

// Option configures a Server.
type Option func(*Server)

// WithMaxText sets the text length limit in bytes.
func WithMaxText(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxText = n
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// NewServer creates a server reading requests from r and writing to w.
// build receives the server as the controller's Editor.
func NewServer(r io.Reader, w io.Writer, build func(typeahead.Editor) *typeahead.Controller, opts ...Option) *Server {
	s := &Server{
		dec:     msgpack.NewDecoder(r),
		enc:     msgpack.NewEncoder(w),
		maxText: DefaultMaxText,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Default("server")
	}

	s.ctrl = build(s)
	s.ctrl.OnChange(s.onChange)
	return s
}

// Controller returns the controller driven by this server.
func (s *Server) Controller() *typeahead.Controller {
	return s.ctrl
}

// Start serves requests until the input ends. EOF is a clean shutdown;
// a broken stream is returned as an error.
func (s *Server) Start() error {
	s.logger.Debug("Starting Server.", "session", s.ctrl.SessionID())
	s.send(StatusResponse{Type: TypeStatus, Status: "ready", Session: s.ctrl.SessionID()})

	for {
		var raw msgpack.RawMessage
		if err := s.dec.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				s.logger.Debug("Input closed, stopping")
				return nil
			}
			s.logger.Errorf("Reading request: %v", err)
			return fmt.Errorf("read request: %w", err)
		}

		var req Request
		if err := msgpack.Unmarshal(raw, &req); err != nil {
			s.logger.Warnf("Malformed request: %v", err)
			s.sendError("", "invalid request", 400)
			continue
		}
		s.handleRequest(req)
	}
}

func (s *Server) handleRequest(req Request) {
	switch req.Action {
	case ActionText:
		if len(req.Text) > s.maxText {
			s.sendError(req.ID, fmt.Sprintf("text exceeds maximum length of %d bytes", s.maxText), 400)
			return
		}
		s.reply(req.ID, func() error {
			s.ctrl.TextChanged(req.Text)
			return nil
		})
	case ActionSelect:
		s.reply(req.ID, func() error {
			return s.handleSelect(req)
		})
	case ActionHighlight:
		if req.Index == nil {
			s.sendError(req.ID, "missing 'index' parameter", 400)
			return
		}
		s.reply(req.ID, func() error {
			s.ctrl.SetHighlightedIndex(*req.Index)
			return nil
		})
	case ActionMove:
		s.reply(req.ID, func() error {
			s.ctrl.MoveHighlight(req.Delta)
			return nil
		})
	case ActionClose:
		s.reply(req.ID, func() error {
			s.ctrl.Close()
			return nil
		})
	case ActionState:
		s.reply(req.ID, func() error { return nil })
	case ActionStats:
		s.send(StatsResponse{ID: req.ID, Type: TypeStats, Stats: s.ctrl.Stats()})
	case ActionHealth:
		s.send(StatusResponse{ID: req.ID, Type: TypeStatus, Status: "ok", Session: s.ctrl.SessionID()})
	default:
		s.sendError(req.ID, fmt.Sprintf("unknown action: %s", req.Action), 400)
	}
}

// handleSelect picks by key, then by index, then the highlighted option.
func (s *Server) handleSelect(req Request) error {
	s.wmu.Lock()
	s.editID = req.ID
	s.wmu.Unlock()

	switch {
	case req.Key != "":
		return s.ctrl.SelectOption(suggest.Option{Key: req.Key})
	case req.Index != nil:
		options := s.ctrl.State().Options
		if *req.Index < 0 || *req.Index >= len(options) {
			return fmt.Errorf("%w: index %d", typeahead.ErrUnknownOption, *req.Index)
		}
		return s.ctrl.SelectOption(options[*req.Index])
	default:
		return s.ctrl.SelectHighlighted()
	}
}

// reply runs fn and answers req with the state as of fn's return. States
// published while fn runs are held back, the reply carries them or a newer
// one. Controller handlers return only after their state was published, so
// the reply never races its own snapshot.
func (s *Server) reply(id string, fn func() error) {
	s.wmu.Lock()
	s.inRequest = true
	s.replyStart = time.Now()
	s.wmu.Unlock()

	err := fn()

	s.wmu.Lock()
	defer s.wmu.Unlock()
	s.inRequest = false

	// listeners run without controller locks, so reading state under wmu is safe
	state := s.ctrl.State()
	if err != nil {
		if state.Version > s.lastVersion {
			s.writeMenuLocked("", TypeUpdate, state)
		}
		s.writeLocked(ErrorResponse{ID: id, Type: TypeError, Error: err.Error(), Code: errorCode(err)})
		return
	}
	s.writeMenuLocked(id, TypeMenu, state)
}

// onChange pushes states the client has not seen as updates.
func (s *Server) onChange(state typeahead.State) {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	if s.inRequest || state.Version <= s.lastVersion {
		return
	}
	s.writeMenuLocked("", TypeUpdate, state)
}

func (s *Server) writeMenuLocked(id, kind string, state typeahead.State) {
	s.writeLocked(s.menu(id, kind, state))
	s.lastVersion = max(s.lastVersion, state.Version)
}

// ReplaceSpan implements typeahead.Editor by sending the edit to the client.
func (s *Server) ReplaceSpan(leadOffset, length int, entityKey string) {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	s.writeLocked(EditMessage{
		ID:     s.editID,
		Type:   TypeEdit,
		Lead:   leadOffset,
		Length: length,
		Entity: entityKey,
	})
	s.editID = ""
}

func (s *Server) menu(id, kind string, state typeahead.State) MenuResponse {
	options := make([]MenuOption, len(state.Options))
	for i, opt := range state.Options {
		options[i] = MenuOption{Key: opt.Key, Label: opt.Label}
	}
	resp := MenuResponse{
		ID:       id,
		Type:     kind,
		Session:  s.ctrl.SessionID(),
		Query:    state.Query,
		Active:   state.Active,
		Pending:  state.Pending,
		Options:  options,
		Selected: state.SelectedIndex,
	}
	if id != "" {
		resp.TimeTaken = time.Since(s.replyStart).Microseconds()
	}
	return resp
}

func (s *Server) send(v any) {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	s.writeLocked(v)
}

func (s *Server) sendError(id, message string, code int) {
	s.send(ErrorResponse{ID: id, Type: TypeError, Error: message, Code: code})
}

func (s *Server) writeLocked(v any) {
	if err := s.enc.Encode(v); err != nil {
		s.logger.Errorf("Encoding response: %v", err)
	}
}

func errorCode(err error) int {
	switch {
	case errors.Is(err, typeahead.ErrNoActiveQuery):
		return 409
	case errors.Is(err, typeahead.ErrUnknownOption):
		return 404
	default:
		return 500
	}
}
