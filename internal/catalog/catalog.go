// Package catalog defines the persistence boundary the expression core consumes
// and the immutable snapshot every parse, render and expand call reads from.
package catalog

import (
	"context"

	"github.com/solatis/cardwright/internal/types"
)

// Reader fetches the entities resolvers are populated from.
// Implemented by store.SQLStore and store.MemoryStore.
type Reader interface {
	FetchParameters(ctx context.Context) ([]types.Parameter, error)
	FetchFactorsByParameter(ctx context.Context, id types.ParameterID) ([]types.Factor, error)
	FetchConditions(ctx context.Context) ([]types.Condition, error)
	// FetchRules returns every version of every rule, active or not.
	FetchRules(ctx context.Context) ([]types.Rule, error)
	FetchCards(ctx context.Context) ([]types.Card, error)
	FetchProductCards(ctx context.Context) ([]types.ProductCard, error)
}

// Writer persists confirmed expressions.
type Writer interface {
	// SaveRule inserts a new version of the rule family named rule.Name.
	// baseVersion is the family's max version the edit started from (0 for a new
	// family); a newer version saved meanwhile yields ErrVersionConflict.
	SaveRule(ctx context.Context, rule types.Rule, baseVersion int) (types.Rule, error)
	// SaveCard inserts when card.ID is zero, otherwise replaces the expressions.
	SaveCard(ctx context.Context, card types.Card) (types.Card, error)
	// SaveProductCard inserts when pc.ID is zero, otherwise replaces the expressions.
	SaveProductCard(ctx context.Context, pc types.ProductCard) (types.ProductCard, error)
}

// Store is a Reader that can also persist.
type Store interface {
	Reader
	Writer
}
