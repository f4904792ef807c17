// internal/catalog/loader.go
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/solatis/cardwright/internal/types"
)

/*
 * Resolver population.
 *
 * Loader fetches every catalog list concurrently and only returns once all of
 * them completed, so no parse/expand step can ever run against a partial
 * snapshot (which would otherwise drop operands that simply had not loaded
 * yet).
 *
 * Fan-out:
 *   1. parameters, conditions, rules, cards, product cards in parallel
 *   2. factors per parameter, started as soon as parameters arrive,
 *      bounded by FactorConcurrency
 *
 * The whole load runs under Timeout. A deadline hit is reported as
 * ErrResolverTimeout and is a hard failure; the caller never receives the
 * lists that did make it.
 */

// Observer receives per-source load latencies and load failures.
// *metrics.Metrics implements it.
type Observer interface {
	ObserveLoadLatency(source string, d time.Duration)
	IncrementLoadFailure(reason string)
}

// Loader populates snapshots from a Reader.
type Loader struct {
	reader            Reader
	timeout           time.Duration
	factorConcurrency int
	observer          Observer
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithTimeout bounds the whole population. Zero disables the bound.
func WithTimeout(d time.Duration) LoaderOption {
	return func(l *Loader) { l.timeout = d }
}

// WithFactorConcurrency bounds concurrent per-parameter factor fetches.
func WithFactorConcurrency(n int) LoaderOption {
	return func(l *Loader) { l.factorConcurrency = n }
}

// WithObserver records fetch latencies.
func WithObserver(o Observer) LoaderOption {
	return func(l *Loader) { l.observer = o }
}

// NewLoader creates a loader with a 10s timeout and 8 concurrent factor fetches.
func NewLoader(reader Reader, opts ...LoaderOption) *Loader {
	l := &Loader{
		reader:            reader,
		timeout:           10 * time.Second,
		factorConcurrency: 8,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.factorConcurrency <= 0 {
		l.factorConcurrency = 1
	}
	return l
}

// Load fetches all lists and builds a Snapshot.
func (l *Loader) Load(ctx context.Context) (*Snapshot, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	contents, err := l.fetch(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			l.failed("timeout")
			return nil, fmt.Errorf("%w after %v", types.ErrResolverTimeout, l.timeout)
		}
		l.failed("fetch")
		return nil, err
	}
	snap, err := NewSnapshot(contents)
	if err != nil {
		l.failed("invalid")
		return nil, err
	}
	return snap, nil
}

func (l *Loader) fetch(ctx context.Context) (Contents, error) {
	var c Contents

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		params, err := timed(l, "parameters", func() ([]types.Parameter, error) { return l.reader.FetchParameters(gctx) })
		if err != nil {
			return fmt.Errorf("fetch parameters: %w", err)
		}
		c.Parameters = params
		factors, err := l.fetchFactors(gctx, params)
		if err != nil {
			return err
		}
		c.Factors = factors
		return nil
	})

	g.Go(func() error {
		conds, err := timed(l, "conditions", func() ([]types.Condition, error) { return l.reader.FetchConditions(gctx) })
		if err != nil {
			return fmt.Errorf("fetch conditions: %w", err)
		}
		c.Conditions = conds
		return nil
	})

	g.Go(func() error {
		rules, err := timed(l, "rules", func() ([]types.Rule, error) { return l.reader.FetchRules(gctx) })
		if err != nil {
			return fmt.Errorf("fetch rules: %w", err)
		}
		c.Rules = rules
		return nil
	})

	g.Go(func() error {
		cards, err := timed(l, "cards", func() ([]types.Card, error) { return l.reader.FetchCards(gctx) })
		if err != nil {
			return fmt.Errorf("fetch cards: %w", err)
		}
		c.Cards = cards
		return nil
	})

	g.Go(func() error {
		pcs, err := timed(l, "product_cards", func() ([]types.ProductCard, error) { return l.reader.FetchProductCards(gctx) })
		if err != nil {
			return fmt.Errorf("fetch product cards: %w", err)
		}
		c.ProductCards = pcs
		return nil
	})

	// Wait for all goroutines; first failure cancels the rest.
	if err := g.Wait(); err != nil {
		return Contents{}, err
	}
	// A reader that ignores ctx can finish after the deadline; never hand out
	// a snapshot built past it.
	if err := ctx.Err(); err != nil {
		return Contents{}, err
	}
	return c, nil
}

// fetchFactors loads factors for every parameter with bounded concurrency and
// returns them ordered by ID.
func (l *Loader) fetchFactors(ctx context.Context, params []types.Parameter) ([]types.Factor, error) {
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.factorConcurrency)

	var mu sync.Mutex
	var all []types.Factor
	for _, p := range params {
		id := p.ID
		g.Go(func() error {
			factors, err := l.reader.FetchFactorsByParameter(gctx, id)
			if err != nil {
				return fmt.Errorf("fetch factors for parameter %d: %w", id, err)
			}
			mu.Lock()
			all = append(all, factors...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if l.observer != nil {
		l.observer.ObserveLoadLatency("factors", time.Since(start))
	}

	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all, nil
}

func (l *Loader) failed(reason string) {
	if l.observer != nil {
		l.observer.IncrementLoadFailure(reason)
	}
}

func timed[T any](l *Loader, source string, fetch func() (T, error)) (T, error) {
	start := time.Now()
	v, err := fetch()
	if l.observer != nil {
		l.observer.ObserveLoadLatency(source, time.Since(start))
	}
	return v, err
}
