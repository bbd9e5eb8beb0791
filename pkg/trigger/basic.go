package trigger

import (
	"fmt"
	"regexp"
	"strconv"
	"unicode/utf8"
)

// Basic is a single-character typeahead trigger without join rules, such as
// "/" for slash commands. The mention Matcher uses one to stand down when a
// competing menu owns the text.
type Basic struct {
	re        *regexp.Regexp
	minLength int
}

// NewBasic compiles a trigger grammar for char.
func NewBasic(char string, minLength, maxLength int, punctuation string) (*Basic, error) {
	if char == "" {
		return nil, ErrEmptyTriggerSet
	}
	if maxLength < 1 || maxLength > maxRepeat {
		return nil, fmt.Errorf("%w: max_length=%d", ErrInvalidLength, maxLength)
	}

	trigger := classEscape(char)
	validChars := "[^" + trigger + classEscape(punctuation) + space + "]"
	re, err := regexp.Compile(`(^|[` + space + `]|\()([` + trigger + `]((?:` + validChars +
		`){0,` + strconv.Itoa(maxLength) + `}))$`)
	if err != nil {
		return nil, err
	}
	return &Basic{re: re, minLength: minLength}, nil
}

// Check matches the trigger followed by up to maxLength valid chars at the end of text.
func (b *Basic) Check(text string) (Match, bool) {
	loc := b.re.FindStringSubmatchIndex(text)
	if loc == nil {
		return Match{}, false
	}
	matching := text[loc[6]:loc[7]]
	if utf8.RuneCountInString(matching) < b.minLength {
		return Match{}, false
	}
	return Match{
		LeadOffset:        loc[0] + (loc[3] - loc[2]),
		MatchingString:    matching,
		ReplaceableString: text[loc[4]:loc[5]],
	}, true
}
