/*
Package server implements msgpack IPC for the mention typeahead.

The server reads requests from stdin and writes responses to stdout, both as
a stream of msgpack maps. Logs go to stderr so they never mix with replies.

# IPC

Every request names an action. The editor sends the text before the cursor
on each keystroke:

	{"id": "1", "action": "text", "text": "Hi @Han"}

and receives the menu state. While the lookup runs the previous options
stay visible and pending is set:

	{"id": "1", "type": "menu", "session": "…", "q": "Han", "active": true, "pending": true, "s": [], "sel": 0, "t": 42}

When results arrive the server pushes an update without an id:

	{"type": "update", "q": "Han", "active": true, "pending": false, "s": [{"k": "Han Solo", "l": "Han Solo"}], "sel": 0}

Selecting an option produces the edit to apply, then the closed menu:

	{"id": "2", "action": "select", "key": "Han Solo"}
	{"id": "2", "type": "edit", "lead": 3, "len": 4, "entity": "Han Solo"}

Other actions: "highlight" (index), "move" (delta), "close", "state",
"stats" and "health". Failures are reported with an error message and a
code; the stream keeps going.

	{"id": "3", "type": "error", "e": "unknown action: foo", "c": 400}
*/
package server

// Message types.
const (
	TypeMenu   = "menu"
	TypeUpdate = "update"
	TypeEdit   = "edit"
	TypeStats  = "stats"
	TypeStatus = "status"
	TypeError  = "error"
)

// Actions.
const (
	ActionText      = "text"
	ActionSelect    = "select"
	ActionHighlight = "highlight"
	ActionMove      = "move"
	ActionClose     = "close"
	ActionState     = "state"
	ActionStats     = "stats"
	ActionHealth    = "health"
)

// Request is a single client message.
type Request struct {
	ID     string `msgpack:"id"`
	Action string `msgpack:"action"`
	Text   string `msgpack:"text,omitempty"`
	// Index is the option for "highlight", or for "select" without a key.
	Index *int   `msgpack:"index,omitempty"`
	Delta int    `msgpack:"delta,omitempty"`
	Key   string `msgpack:"key,omitempty"`
}

// MenuOption - minimal option entry
type MenuOption struct {
	Key   string `msgpack:"k"`
	Label string `msgpack:"l"`
}

// MenuResponse carries the menu state, as a reply ("menu") or a push ("update").
type MenuResponse struct {
	ID        string       `msgpack:"id,omitempty"`
	Type      string       `msgpack:"type"`
	Session   string       `msgpack:"session,omitempty"`
	Query     string       `msgpack:"q"`
	Active    bool         `msgpack:"active"`
	Pending   bool         `msgpack:"pending"`
	Options   []MenuOption `msgpack:"s"`
	Selected  int          `msgpack:"sel"`
	TimeTaken int64        `msgpack:"t,omitempty"`
}

// EditMessage tells the editor to replace Length bytes at Lead with a
// mention of Entity.
type EditMessage struct {
	ID     string `msgpack:"id,omitempty"`
	Type   string `msgpack:"type"`
	Lead   int    `msgpack:"lead"`
	Length int    `msgpack:"len"`
	Entity string `msgpack:"entity"`
}

// StatsResponse - controller and cache counters
type StatsResponse struct {
	ID    string         `msgpack:"id"`
	Type  string         `msgpack:"type"`
	Stats map[string]int `msgpack:"stats"`
}

// StatusResponse answers "health" and announces readiness.
type StatusResponse struct {
	ID      string `msgpack:"id,omitempty"`
	Type    string `msgpack:"type"`
	Status  string `msgpack:"status"`
	Session string `msgpack:"session,omitempty"`
}

// ErrorResponse holds basic error information
type ErrorResponse struct {
	ID    string `msgpack:"id"`
	Type  string `msgpack:"type"`
	Error string `msgpack:"e"`
	Code  int    `msgpack:"c"`
}
