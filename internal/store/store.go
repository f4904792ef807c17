package store

import (
	"context"

	"github.com/solatis/cardwright/internal/catalog"
	"github.com/solatis/cardwright/internal/types"
)

// Admin manages the factor layer and rule activation, which sit outside the
// expression authoring flow.
type Admin interface {
	InsertParameter(ctx context.Context, p types.Parameter) (types.Parameter, error)
	InsertFactor(ctx context.Context, f types.Factor) (types.Factor, error)
	SetRuleActive(ctx context.Context, id types.RuleID, active bool) error
}

// AdminStore is a catalog store that can also be administered.
type AdminStore interface {
	catalog.Store
	Admin
}

var (
	_ AdminStore = (*SQLStore)(nil)
	_ AdminStore = (*MemoryStore)(nil)
)
