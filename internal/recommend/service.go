package recommend

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/imrishuroy/pharmacy-orderflow/internal/catalog"
	"github.com/imrishuroy/pharmacy-orderflow/internal/logger"
	"github.com/imrishuroy/pharmacy-orderflow/internal/orders"
)

// HistoryReader lists a user's past orders.
type HistoryReader interface {
	ListForUser(ctx context.Context, userID string) ([]orders.OrderSummary, error)
}

// Observer is told about every list served.
type Observer interface {
	RecommendationServed(flow string, coldStart bool)
}

// Service feeds catalog and order data to the scorer.
type Service struct {
	pool     catalog.Lister
	items    catalog.Getter
	history  HistoryReader
	observer Observer
}

// NewService builds a Service. pool is usually a catalog.CachedLister;
// observer may be nil.
func NewService(pool catalog.Lister, items catalog.Getter, history HistoryReader, observer Observer) *Service {
	return &Service{pool: pool, items: items, history: history, observer: observer}
}

// Alternatives ranks in-stock items similar to itemID.
func (s *Service) Alternatives(ctx context.Context, itemID string, opts Options) ([]Scored, error) {
	base, err := s.items.Get(ctx, itemID)
	if err != nil {
		return nil, &orders.PersistenceError{Op: "load catalog item", Err: err}
	}
	if base == nil {
		return nil, &orders.NotFoundError{Kind: "item", ID: itemID}
	}
	pool, err := s.pool.ListInStock(ctx)
	if err != nil {
		return nil, &orders.PersistenceError{Op: "list catalog", Err: err}
	}
	out := Rank(*base, pool, opts)
	s.observe("alternatives", false)
	return out, nil
}

// ForUser recommends items for userID from their purchase history.
func (s *Service) ForUser(ctx context.Context, userID string, opts Options) (Result, error) {
	summaries, err := s.history.ListForUser(ctx, userID)
	if err != nil {
		var pe *orders.PersistenceError
		if errors.As(err, &pe) {
			return Result{}, err
		}
		return Result{}, &orders.PersistenceError{Op: "list order history", Err: err}
	}
	var purchases []Purchase
	for _, sum := range summaries {
		for _, it := range sum.Items {
			purchases = append(purchases, Purchase{ItemID: it.ItemID, Quantity: it.Quantity})
		}
	}
	freq := Frequencies(purchases)

	pool, err := s.pool.ListInStock(ctx)
	if err != nil {
		return Result{}, &orders.PersistenceError{Op: "list catalog", Err: err}
	}
	anchors, err := s.anchors(ctx, TopAnchors(freq, MaxAnchors), pool)
	if err != nil {
		return Result{}, err
	}

	res := Recommend(anchors, freq, pool, opts)
	s.observe("personal", res.ColdStart)
	logger.FromContext(ctx).Debug("recommendations served",
		zap.String("user_id", userID),
		zap.Int("anchors", len(anchors)),
		zap.Int("results", len(res.Items)),
		zap.Bool("cold_start", res.ColdStart))
	return res, nil
}

// anchors resolves anchor ids, preferring the in-stock pool and falling back
// to the catalog for items that have sold out. Deleted items are skipped.
func (s *Service) anchors(ctx context.Context, ids []string, pool []catalog.Item) ([]catalog.Item, error) {
	byID := make(map[string]catalog.Item, len(pool))
	for _, it := range pool {
		byID[it.ID] = it
	}
	out := make([]catalog.Item, 0, len(ids))
	for _, id := range ids {
		if it, ok := byID[id]; ok {
			out = append(out, it)
			continue
		}
		it, err := s.items.Get(ctx, id)
		if err != nil {
			return nil, &orders.PersistenceError{Op: "load catalog item", Err: fmt.Errorf("anchor %s: %w", id, err)}
		}
		if it != nil {
			out = append(out, *it)
		}
	}
	return out, nil
}

func (s *Service) observe(flow string, coldStart bool) {
	if s.observer != nil {
		s.observer.RecommendationServed(flow, coldStart)
	}
}
