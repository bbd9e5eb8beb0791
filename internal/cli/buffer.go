package cli

import "sync"

// Mention is an entity inserted into the buffer by a selection.
type Mention struct {
	Offset int
	Entity string
}

// Buffer is the CLI's stand-in for an editor block. It implements
// typeahead.Editor so selections land in it.
type Buffer struct {
	mu       sync.Mutex
	text     string
	mentions []Mention
}

// Set replaces the text, as when the user types a new line.
func (b *Buffer) Set(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.text = text
	b.mentions = b.mentions[:0]
}

func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text
}

// Mentions returns the entities inserted since the last Set.
func (b *Buffer) Mentions() []Mention {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Mention(nil), b.mentions...)
}

// ReplaceSpan swaps length bytes at leadOffset for the entity name.
// Out of range spans are clamped to the text.
func (b *Buffer) ReplaceSpan(leadOffset, length int, entityKey string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	start := min(max(leadOffset, 0), len(b.text))
	end := min(max(start+length, start), len(b.text))
	b.text = b.text[:start] + entityKey + b.text[end:]
	b.mentions = append(b.mentions, Mention{Offset: start, Entity: entityKey})
}
