package suggest

import (
	"github.com/bastiangx/mentionserve/internal/utils"
)

// DefaultLimit is the number of options shown in the mention menu.
const DefaultLimit = 5

// Option is a menu entry. Key is the entity name and is unique within a
// ranked list as long as the directory returns unique names.
type Option struct {
	Key   string `msgpack:"k"`
	Label string `msgpack:"l"`
	Rank  uint16 `msgpack:"r"`
}

// Ranker turns directory results into menu options.
type Ranker struct {
	limit int
}

// NewRanker returns a ranker keeping at most limit options.
// A non-positive limit falls back to DefaultLimit.
func NewRanker(limit int) *Ranker {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Ranker{limit: limit}
}

// Limit returns the maximum number of options Rank produces.
func (r *Ranker) Limit() int {
	return r.limit
}

// Rank keeps the directory's order and truncates to the limit.
func (r *Ranker) Rank(raw []string) []Option {
	n := len(raw)
	if n > r.limit {
		n = r.limit
	}

	ranks := utils.CreateRankList(n)
	options := make([]Option, n)
	for i := 0; i < n; i++ {
		options[i] = Option{
			Key:   raw[i],
			Label: raw[i],
			Rank:  ranks[i],
		}
	}
	return options
}
