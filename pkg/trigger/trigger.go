// Package trigger finds mention queries at the end of the text before a cursor.
//
// Two grammars are tried in order: a trigger-char grammar ("@han", "@Han Solo")
// and a capitalized-name grammar ("Han"). A competing trigger such as "/" for
// slash commands suppresses both when it matches. All patterns are compiled once
// by NewMatcher; a Matcher is immutable and safe for concurrent use.
//
// Offsets are byte offsets into the scanned text. Length limits count runes.
package trigger

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// space matches whitespace the way a JavaScript regexp does. Go's \s is
// ASCII only, so \v, \p{Z} and U+FEFF are added.
const space = `\s\v\p{Z}\x{FEFF}`

// Match is a mention query found at the tail of the scanned text.
type Match struct {
	// LeadOffset is where the replaceable span starts.
	LeadOffset int
	// MatchingString is the lookup query, without the trigger char.
	MatchingString string
	// ReplaceableString is the span replaced when an option is selected.
	ReplaceableString string
}

// Matcher evaluates text against the compiled mention grammars.
type Matcher struct {
	cfg       Config
	atSign    *regexp.Regexp
	alias     *regexp.Regexp
	name      *regexp.Regexp
	competing *Basic
}

// NewMatcher validates cfg and compiles its grammars.
func NewMatcher(cfg Config) (*Matcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	triggers := classEscape(cfg.TriggerChars)
	punc := classEscape(cfg.Punctuation)
	validChars := "[^" + triggers + punc + space + "]"

	joins := []string{`\.[ |$]`, " "}
	if punc != "" {
		joins = append(joins, "["+punc+"]")
	}
	validJoins := "(?:" + strings.Join(joins, "|") + "|)"

	atSign, err := regexp.Compile(`(^|[` + space + `]|\()([` + triggers + `]((?:` + validChars + validJoins +
		`){0,` + strconv.Itoa(cfg.MaxLength) + `}))$`)
	if err != nil {
		return nil, err
	}
	alias, err := regexp.Compile(`(^|[` + space + `]|\()([` + triggers + `]((?:` + validChars +
		`){0,` + strconv.Itoa(cfg.AliasMaxLength) + `}))$`)
	if err != nil {
		return nil, err
	}
	name, err := regexp.Compile(`(^|[^#])((?:\b[A-Z][^` + space + punc + `]{1,})$)`)
	if err != nil {
		return nil, err
	}

	m := &Matcher{cfg: cfg, atSign: atSign, alias: alias, name: name}

	if cfg.Competing != "" {
		m.competing, err = NewBasic(cfg.Competing, cfg.CompetingMinLength, cfg.MaxLength, cfg.Punctuation)
		if err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Config returns the configuration the matcher was built from.
func (m *Matcher) Config() Config {
	return m.cfg
}

// Check is the trigger function the controller runs on every text change.
// It returns no match when the competing trigger matches the same text.
func (m *Matcher) Check(text string) (Match, bool) {
	if m.competing != nil {
		if _, ok := m.competing.Check(text); ok {
			return Match{}, false
		}
	}
	return m.CheckMention(text)
}

// CheckMention runs the mention grammars without the competing trigger.
func (m *Matcher) CheckMention(text string) (Match, bool) {
	if match, ok := m.CheckTrigger(text); ok {
		return match, true
	}
	if !m.cfg.CapitalizedNames {
		return Match{}, false
	}
	return m.CheckCapitalizedName(text)
}

// CheckTrigger matches "@query" at the end of text. The alias grammar is
// only consulted when the primary grammar does not match at all.
func (m *Matcher) CheckTrigger(text string) (Match, bool) {
	loc := m.atSign.FindStringSubmatchIndex(text)
	if loc == nil {
		loc = m.alias.FindStringSubmatchIndex(text)
	}
	if loc == nil {
		return Match{}, false
	}

	matching := text[loc[6]:loc[7]]
	if utf8.RuneCountInString(matching) < m.cfg.MinLength {
		return Match{}, false
	}
	return Match{
		LeadOffset:        loc[0] + (loc[3] - loc[2]),
		MatchingString:    matching,
		ReplaceableString: text[loc[4]:loc[5]],
	}, true
}

// CheckCapitalizedName matches a capitalized word at the end of text.
// Short words are rejected so sentence starts like "Hi" do not open the menu.
func (m *Matcher) CheckCapitalizedName(text string) (Match, bool) {
	loc := m.name.FindStringSubmatchIndex(text)
	if loc == nil {
		return Match{}, false
	}

	matching := text[loc[4]:loc[5]]
	if utf8.RuneCountInString(matching) < m.cfg.NameMinLength {
		return Match{}, false
	}
	return Match{
		LeadOffset:        loc[0] + (loc[3] - loc[2]),
		MatchingString:    matching,
		ReplaceableString: matching,
	}, true
}

// classEscape renders chars for use inside a regexp character class.
func classEscape(chars string) string {
	var b strings.Builder
	for _, r := range chars {
		if r < utf8.RuneSelf && !isWordByte(byte(r)) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isWordByte(c byte) bool {
	return c == '_' || ('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}
