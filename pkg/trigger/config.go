package trigger

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultPunctuation is the set of characters that end a mention token.
const DefaultPunctuation = `.,+*?$@|#{}()^-[]\/!%'"~=<>_:;`

// maxRepeat is the largest repetition count the regexp engine accepts.
const maxRepeat = 1000

var (
	ErrEmptyTriggerSet = errors.New("trigger set is empty")
	ErrInvalidLength   = errors.New("invalid length limit")
	ErrTriggerConflict = errors.New("competing trigger overlaps mention triggers")
)

// Config describes the mention grammars. It is read once by NewMatcher.
type Config struct {
	// TriggerChars is the set of characters that start a mention, e.g. "@".
	TriggerChars string
	// Punctuation terminates a mention token and may join words inside it.
	Punctuation string
	// MaxLength caps the number of char/join pairs after the trigger.
	MaxLength int
	// AliasMaxLength caps the join-less alias grammar.
	AliasMaxLength int
	// MinLength is the minimum query length (in runes) after the trigger.
	MinLength int
	// NameMinLength is the minimum length of a capitalized-name match.
	NameMinLength    int
	CapitalizedNames bool
	// Competing is a second trigger (e.g. "/" for slash commands) that
	// suppresses mention matching when it matches. Empty disables it.
	Competing          string
	CompetingMinLength int
}

// DefaultConfig returns the grammar used by the editor out of the box.
func DefaultConfig() Config {
	return Config{
		TriggerChars:       "@",
		Punctuation:        DefaultPunctuation,
		MaxLength:          75,
		AliasMaxLength:     50,
		MinLength:          1,
		NameMinLength:      3,
		CapitalizedNames:   true,
		Competing:          "/",
		CompetingMinLength: 0,
	}
}

// Validate reports configuration errors. They are meant to be fatal at startup.
func (c Config) Validate() error {
	if c.TriggerChars == "" {
		return ErrEmptyTriggerSet
	}
	if c.MaxLength < 1 || c.MaxLength > maxRepeat {
		return fmt.Errorf("%w: max_length=%d (1..%d)", ErrInvalidLength, c.MaxLength, maxRepeat)
	}
	if c.AliasMaxLength < 1 || c.AliasMaxLength > c.MaxLength {
		return fmt.Errorf("%w: alias_max_length=%d (1..%d)", ErrInvalidLength, c.AliasMaxLength, c.MaxLength)
	}
	if c.MinLength < 0 || c.MinLength > c.MaxLength {
		return fmt.Errorf("%w: min_length=%d", ErrInvalidLength, c.MinLength)
	}
	if c.CapitalizedNames && c.NameMinLength < 1 {
		return fmt.Errorf("%w: name_min_length=%d", ErrInvalidLength, c.NameMinLength)
	}
	if c.CompetingMinLength < 0 || c.CompetingMinLength > c.MaxLength {
		return fmt.Errorf("%w: competing_min_length=%d", ErrInvalidLength, c.CompetingMinLength)
	}
	if c.Competing != "" && strings.ContainsAny(c.Competing, c.TriggerChars) {
		return fmt.Errorf("%w: %q", ErrTriggerConflict, c.Competing)
	}
	return nil
}
