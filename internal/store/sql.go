// Package store implements catalog.Store over SQL (sqlx + dotsql) and in memory.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/solatis/cardwright/internal/core/db"
	"github.com/solatis/cardwright/internal/expr"
	"github.com/solatis/cardwright/internal/types"
)

// SQLStore persists the catalog in SQLite or PostgreSQL.
type SQLStore struct {
	q *db.Queries
}

// NewSQLStore creates a store over loaded queries.
func NewSQLStore(q *db.Queries) *SQLStore {
	return &SQLStore{q: q}
}

type parameterRow struct {
	ID          int64  `db:"parameter_id"`
	Name        string `db:"name"`
	DataType    string `db:"data_type"`
	IsMandatory bool   `db:"is_mandatory"`
}

type factorRow struct {
	ID          int64  `db:"factor_id"`
	ParameterID int64  `db:"parameter_id"`
	ConditionID int64  `db:"condition_id"`
	Value1      string `db:"value1"`
	Value2      string `db:"value2"`
}

type conditionRow struct {
	ID   int64  `db:"condition_id"`
	Name string `db:"name"`
}

type ruleRow struct {
	ID               int64  `db:"rule_id"`
	Name             string `db:"name"`
	Version          int    `db:"version"`
	IsActive         bool   `db:"is_active"`
	ShownExpression  string `db:"shown_expression"`
	StoredExpression string `db:"stored_expression"`
}

type cardRow struct {
	ID               int64  `db:"card_id"`
	Name             string `db:"name"`
	ShownExpression  string `db:"shown_expression"`
	StoredExpression string `db:"stored_expression"`
}

type productCardRow struct {
	ID               int64  `db:"product_card_id"`
	Name             string `db:"name"`
	ProductID        int64  `db:"product_id"`
	ShownExpression  string `db:"shown_expression"`
	StoredExpression string `db:"stored_expression"`
}

// FetchParameters implements catalog.Reader.
func (s *SQLStore) FetchParameters(ctx context.Context) ([]types.Parameter, error) {
	var rows []parameterRow
	if err := s.q.Select(ctx, "list-parameters", &rows); err != nil {
		return nil, fmt.Errorf("list parameters: %w", err)
	}
	out := make([]types.Parameter, 0, len(rows))
	for _, r := range rows {
		out = append(out, types.Parameter{
			ID:          types.ParameterID(r.ID),
			Name:        r.Name,
			DataType:    types.ParseDataType(r.DataType),
			IsMandatory: r.IsMandatory,
		})
	}
	return out, nil
}

// FetchFactorsByParameter implements catalog.Reader.
func (s *SQLStore) FetchFactorsByParameter(ctx context.Context, id types.ParameterID) ([]types.Factor, error) {
	var rows []factorRow
	if err := s.q.Select(ctx, "list-factors-by-parameter", &rows, int64(id)); err != nil {
		return nil, fmt.Errorf("list factors: %w", err)
	}
	out := make([]types.Factor, 0, len(rows))
	for _, r := range rows {
		out = append(out, types.Factor{
			ID:          types.FactorID(r.ID),
			ParameterID: types.ParameterID(r.ParameterID),
			ConditionID: types.ConditionID(r.ConditionID),
			Value1:      r.Value1,
			Value2:      r.Value2,
		})
	}
	return out, nil
}

// FetchConditions implements catalog.Reader.
func (s *SQLStore) FetchConditions(ctx context.Context) ([]types.Condition, error) {
	var rows []conditionRow
	if err := s.q.Select(ctx, "list-conditions", &rows); err != nil {
		return nil, fmt.Errorf("list conditions: %w", err)
	}
	out := make([]types.Condition, 0, len(rows))
	for _, r := range rows {
		out = append(out, types.Condition{
			ID:   types.ConditionID(r.ID),
			Name: r.Name,
			Kind: types.ParseConditionKind(r.Name),
		})
	}
	return out, nil
}

// FetchRules implements catalog.Reader.
func (s *SQLStore) FetchRules(ctx context.Context) ([]types.Rule, error) {
	var rows []ruleRow
	if err := s.q.Select(ctx, "list-rules", &rows); err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	out := make([]types.Rule, 0, len(rows))
	for _, r := range rows {
		out = append(out, types.Rule{
			ID:               types.RuleID(r.ID),
			Name:             r.Name,
			Version:          r.Version,
			IsActive:         r.IsActive,
			ShownExpression:  r.ShownExpression,
			StoredExpression: r.StoredExpression,
		})
	}
	return out, nil
}

// FetchCards implements catalog.Reader.
func (s *SQLStore) FetchCards(ctx context.Context) ([]types.Card, error) {
	var rows []cardRow
	if err := s.q.Select(ctx, "list-cards", &rows); err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	out := make([]types.Card, 0, len(rows))
	for _, r := range rows {
		out = append(out, types.Card{
			ID:               types.CardID(r.ID),
			Name:             r.Name,
			ShownExpression:  r.ShownExpression,
			StoredExpression: r.StoredExpression,
		})
	}
	return out, nil
}

// FetchProductCards implements catalog.Reader.
func (s *SQLStore) FetchProductCards(ctx context.Context) ([]types.ProductCard, error) {
	var rows []productCardRow
	if err := s.q.Select(ctx, "list-product-cards", &rows); err != nil {
		return nil, fmt.Errorf("list product cards: %w", err)
	}
	out := make([]types.ProductCard, 0, len(rows))
	for _, r := range rows {
		out = append(out, types.ProductCard{
			ID:               types.ProductCardID(r.ID),
			Name:             r.Name,
			ProductID:        r.ProductID,
			ShownExpression:  r.ShownExpression,
			StoredExpression: r.StoredExpression,
		})
	}
	return out, nil
}

// SaveRule implements catalog.Writer. The version check and the insert run in
// one transaction; the (name, version) unique constraint catches writers that
// raced past the check.
func (s *SQLStore) SaveRule(ctx context.Context, rule types.Rule, baseVersion int) (types.Rule, error) {
	tx, err := s.q.DB().BeginTxx(ctx, nil)
	if err != nil {
		return types.Rule{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	rule.Name = expr.NormalizeName(rule.Name)
	var latest int
	if err := s.q.GetTx(ctx, tx, "latest-rule-version", &latest, rule.Name); err != nil {
		return types.Rule{}, fmt.Errorf("latest rule version: %w", err)
	}
	if latest != baseVersion {
		return types.Rule{}, fmt.Errorf("%w: %s is at version %d, edit started from %d", types.ErrVersionConflict, rule.Name, latest, baseVersion)
	}

	rule.Version = latest + 1
	var id int64
	err = s.q.GetTx(ctx, tx, "insert-rule", &id, rule.Name, rule.Version, rule.IsActive, rule.ShownExpression, rule.StoredExpression)
	if err != nil {
		if isUniqueViolation(err) {
			return types.Rule{}, fmt.Errorf("%w: %s version %d already exists", types.ErrVersionConflict, rule.Name, rule.Version)
		}
		return types.Rule{}, fmt.Errorf("insert rule: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return types.Rule{}, fmt.Errorf("%w: %s version %d already exists", types.ErrVersionConflict, rule.Name, rule.Version)
		}
		return types.Rule{}, fmt.Errorf("commit rule: %w", err)
	}
	rule.ID = types.RuleID(id)
	return rule, nil
}

// SetRuleActive activates or deactivates one rule version.
func (s *SQLStore) SetRuleActive(ctx context.Context, id types.RuleID, active bool) error {
	res, err := s.q.Exec(ctx, "set-rule-active", active, int64(id))
	if err != nil {
		return fmt.Errorf("set rule active: %w", err)
	}
	return requireRow(res, "rule", int64(id))
}

// SaveCard implements catalog.Writer.
func (s *SQLStore) SaveCard(ctx context.Context, card types.Card) (types.Card, error) {
	if card.ID == 0 {
		var id int64
		if err := s.q.Get(ctx, "insert-card", &id, card.Name, card.ShownExpression, card.StoredExpression); err != nil {
			return types.Card{}, fmt.Errorf("insert card: %w", err)
		}
		card.ID = types.CardID(id)
		return card, nil
	}

	res, err := s.q.Exec(ctx, "update-card", card.Name, card.ShownExpression, card.StoredExpression, int64(card.ID))
	if err != nil {
		return types.Card{}, fmt.Errorf("update card: %w", err)
	}
	if err := requireRow(res, "card", int64(card.ID)); err != nil {
		return types.Card{}, err
	}
	return card, nil
}

// SaveProductCard implements catalog.Writer.
func (s *SQLStore) SaveProductCard(ctx context.Context, pc types.ProductCard) (types.ProductCard, error) {
	if pc.ID == 0 {
		var id int64
		if err := s.q.Get(ctx, "insert-product-card", &id, pc.Name, pc.ProductID, pc.ShownExpression, pc.StoredExpression); err != nil {
			return types.ProductCard{}, fmt.Errorf("insert product card: %w", err)
		}
		pc.ID = types.ProductCardID(id)
		return pc, nil
	}

	res, err := s.q.Exec(ctx, "update-product-card", pc.Name, pc.ProductID, pc.ShownExpression, pc.StoredExpression, int64(pc.ID))
	if err != nil {
		return types.ProductCard{}, fmt.Errorf("update product card: %w", err)
	}
	if err := requireRow(res, "product card", int64(pc.ID)); err != nil {
		return types.ProductCard{}, err
	}
	return pc, nil
}

// InsertParameter adds a parameter and returns it with its assigned ID.
func (s *SQLStore) InsertParameter(ctx context.Context, p types.Parameter) (types.Parameter, error) {
	var id int64
	if err := s.q.Get(ctx, "insert-parameter", &id, p.Name, p.DataType.String(), p.IsMandatory); err != nil {
		return types.Parameter{}, fmt.Errorf("insert parameter: %w", err)
	}
	p.ID = types.ParameterID(id)
	return p, nil
}

// InsertFactor adds a factor and returns it with its assigned ID.
func (s *SQLStore) InsertFactor(ctx context.Context, f types.Factor) (types.Factor, error) {
	var id int64
	if err := s.q.Get(ctx, "insert-factor", &id, int64(f.ParameterID), int64(f.ConditionID), f.Value1, f.Value2); err != nil {
		return types.Factor{}, fmt.Errorf("insert factor: %w", err)
	}
	f.ID = types.FactorID(id)
	return f, nil
}

func requireRow(res sql.Result, kind string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", kind, id, types.ErrNotFound)
	}
	return nil
}

// isUniqueViolation detects unique constraint failures from either driver.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
