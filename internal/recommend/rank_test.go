package recommend

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/pharmacy-orderflow/internal/catalog"
)

var refTime = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func med(id, generic string, price float64, stock int) catalog.Item {
	return catalog.Item{ID: id, Kind: catalog.KindMedicine, Name: id, GenericName: generic, Category: "Pain Relief", Price: price, StockQuantity: stock}
}

func ids(s []Scored) []string {
	out := make([]string, 0, len(s))
	for _, x := range s {
		out = append(out, x.Item.ID)
	}
	return out
}

func TestRank_FiltersAndOrders(t *testing.T) {
	past := refTime.Add(-24 * time.Hour)
	expired := med("expired", "Paracetamol", 50, 4)
	expired.ExpiryDate = &past

	base := med("base", "Paracetamol", 50, 10)
	pool := []catalog.Item{
		base,
		med("exact-cheap", "Paracetamol", 48, 3),
		med("exact-pricey", "Paracetamol", 49, 3),
		med("partial", "Paracetamol Extra", 50, 3),
		med("sold-out", "Paracetamol", 50, 0),
		expired,
		{ID: "unrelated", Kind: catalog.KindProduct, GenericName: "Soap", Category: "Hygiene", Price: 900, StockQuantity: 3, RequiresPrescription: true},
	}

	opts := AlternativeOptions()
	opts.Now = refTime
	got := Rank(base, pool, opts)
	assert.Equal(t, []string{"exact-cheap", "exact-pricey", "partial"}, ids(got))
	for _, s := range got {
		assert.Greater(t, s.Score, 0.0)
	}

	opts.IncludeExpired = true
	assert.Contains(t, ids(Rank(base, pool, opts)), "expired")
}

func TestRank_TieBreak(t *testing.T) {
	base := med("base", "Ibuprofen", 100, 1)
	a := med("a", "Ibuprofen", 100, 1)
	b := med("b", "Ibuprofen", 100, 1)
	a.Price, b.Price = 99, 97 // both within 10%, equal score

	require.Equal(t, Score(base, a), Score(base, b))

	cheaper := Rank(base, []catalog.Item{a, b}, Options{PreferCheaper: true, Now: refTime})
	assert.Equal(t, []string{"b", "a"}, ids(cheaper))

	byID := Rank(base, []catalog.Item{b, a}, Options{PreferCheaper: false, Now: refTime})
	assert.Equal(t, []string{"a", "b"}, ids(byID))
}

func TestRank_Limit(t *testing.T) {
	base := med("base", "Paracetamol", 50, 1)
	var pool []catalog.Item
	for i := 0; i < 20; i++ {
		pool = append(pool, med(string(rune('a'+i)), "Paracetamol", 50, 1))
	}
	assert.Len(t, Rank(base, pool, Options{Now: refTime}), DefaultAlternatives)
	assert.Len(t, Rank(base, pool, Options{MaxResults: 3, Now: refTime}), 3)
}
