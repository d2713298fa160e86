package recommend

import (
	"sort"
	"time"

	"github.com/imrishuroy/pharmacy-orderflow/internal/catalog"
)

const (
	// DefaultAlternatives is the result size of the alternatives view.
	DefaultAlternatives = 8
	// DefaultRecommendations is the result size of the personalised view.
	DefaultRecommendations = 10
	// MaxAnchors is how many most-bought items seed recommendations.
	MaxAnchors = 5
)

// Options tune ranking.
type Options struct {
	MaxResults int
	// PreferCheaper breaks score ties by ascending price.
	PreferCheaper bool
	// IncludeExpired keeps candidates past their expiry date.
	IncludeExpired bool
	// Now is the reference time for expiry; zero means time.Now.
	Now time.Time
}

// AlternativeOptions returns the defaults of the alternatives view.
func AlternativeOptions() Options {
	return Options{MaxResults: DefaultAlternatives, PreferCheaper: true}
}

// RecommendationOptions returns the defaults of the personalised view.
func RecommendationOptions() Options {
	return Options{MaxResults: DefaultRecommendations, PreferCheaper: true}
}

func (o Options) now() time.Time {
	if o.Now.IsZero() {
		return time.Now()
	}
	return o.Now
}

func (o Options) limit(def int) int {
	if o.MaxResults <= 0 {
		return def
	}
	return o.MaxResults
}

// Scored is a candidate with its similarity score.
type Scored struct {
	Item  catalog.Item `json:"item"`
	Score float64      `json:"score"`
}

// eligible reports whether it may be offered at all.
func (o Options) eligible(it catalog.Item, now time.Time) bool {
	if !it.InStock() {
		return false
	}
	return o.IncludeExpired || !it.Expired(now)
}

// Rank scores every eligible candidate in pool against base and returns the
// best matches. Zero scores and base itself are dropped.
func Rank(base catalog.Item, pool []catalog.Item, opts Options) []Scored {
	now := opts.now()
	out := make([]Scored, 0, len(pool))
	for _, cand := range pool {
		if cand.ID == base.ID || !opts.eligible(cand, now) {
			continue
		}
		if s := Score(base, cand); s > 0 {
			out = append(out, Scored{Item: cand, Score: s})
		}
	}
	sortScored(out, opts.PreferCheaper)
	return truncate(out, opts.limit(DefaultAlternatives))
}

func sortScored(s []Scored, preferCheaper bool) {
	sort.SliceStable(s, func(i, j int) bool {
		a, b := s[i], s[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if preferCheaper && a.Item.Price != b.Item.Price {
			return a.Item.Price < b.Item.Price
		}
		return a.Item.ID < b.Item.ID
	})
}

func truncate(s []Scored, n int) []Scored {
	if len(s) > n {
		return s[:n]
	}
	return s
}
