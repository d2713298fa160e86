package recommend

import (
	"sort"

	"github.com/imrishuroy/pharmacy-orderflow/internal/catalog"
)

// Purchase is one bought line from a user's order history.
type Purchase struct {
	ItemID   string
	Quantity int
}

// Frequencies sums purchased quantity per item id. Non-positive quantities
// are ignored.
func Frequencies(history []Purchase) map[string]int {
	freq := map[string]int{}
	for _, p := range history {
		if p.ItemID == "" || p.Quantity <= 0 {
			continue
		}
		freq[p.ItemID] += p.Quantity
	}
	return freq
}

// TopAnchors returns up to n item ids by descending frequency, ties by id.
func TopAnchors(freq map[string]int, n int) []string {
	ids := make([]string, 0, len(freq))
	for id := range freq {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if freq[ids[i]] != freq[ids[j]] {
			return freq[ids[i]] > freq[ids[j]]
		}
		return ids[i] < ids[j]
	})
	if len(ids) > n {
		ids = ids[:n]
	}
	return ids
}

// Result is a personalised recommendation list.
type Result struct {
	Items []Scored `json:"items"`
	// ColdStart is set when the list is the cheapest-items fallback.
	ColdStart bool `json:"coldStart"`
}

// Recommend scores every unpurchased eligible candidate by its best
// similarity to any anchor. With no anchors, or when nothing scores above
// zero, it falls back to the cheapest eligible items.
func Recommend(anchors []catalog.Item, purchased map[string]int, pool []catalog.Item, opts Options) Result {
	limit := opts.limit(DefaultRecommendations)
	now := opts.now()

	if len(anchors) > 0 {
		out := make([]Scored, 0, len(pool))
		for _, cand := range pool {
			if _, bought := purchased[cand.ID]; bought || !opts.eligible(cand, now) {
				continue
			}
			best := 0.0
			for _, a := range anchors {
				if s := Score(a, cand); s > best {
					best = s
				}
			}
			if best > 0 {
				out = append(out, Scored{Item: cand, Score: best})
			}
		}
		if len(out) > 0 {
			sortScored(out, opts.PreferCheaper)
			return Result{Items: truncate(out, limit)}
		}
	}
	return Result{Items: Cheapest(pool, purchased, opts), ColdStart: true}
}

// Cheapest returns eligible items not in exclude, ascending by price.
func Cheapest(pool []catalog.Item, exclude map[string]int, opts Options) []Scored {
	now := opts.now()
	out := make([]Scored, 0, len(pool))
	for _, it := range pool {
		if _, skip := exclude[it.ID]; skip || !opts.eligible(it, now) {
			continue
		}
		out = append(out, Scored{Item: it})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Item.Price != out[j].Item.Price {
			return out[i].Item.Price < out[j].Item.Price
		}
		return out[i].Item.ID < out[j].Item.ID
	})
	return truncate(out, opts.limit(DefaultRecommendations))
}
