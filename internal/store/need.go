package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"needsmatch/internal/utils"
	"needsmatch/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
)

const needTableName = "needs"

var needColumns = utils.StructTagValues(types.Need{})

// Columns a manager may change after creation. quantity_fulfilled and
// request_count only move through checkout and basket activity.
var needEditableColumns = []string{
	"title",
	"description",
	"unit_cost",
	"quantity",
	"priority",
	"category",
	"org_type",
	"deadline",
	"perishable",
	"bundle_tag",
	"service_required",
}

type NeedRepository struct {
	pool *pgxpool.Pool
}

func NewNeedRepository(pool *pgxpool.Pool) *NeedRepository {
	return &NeedRepository{pool: pool}
}

func (r *NeedRepository) Need(ctx context.Context, needID string) (*types.Need, error) {

	query, args, err := psql().Select(needColumns...).From(needTableName).
		Where(sq.Eq{"id": needID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate need query: %w", err)
	}

	var need = new(types.Need)
	err = pgxscan.Get(ctx, r.pool, need, query, args...)
	if err != nil && !pgxscan.NotFound(err) {
		return nil, fmt.Errorf("failed to fetch need %s: %w", needID, err)
	}

	if err != nil {
		return nil, types.ErrNeedNotFound
	}

	return need, nil

}

// Needs returns every need matching the SQL-expressible parts of filter.
// Ordering and limits are applied by the caller once scores are known.
func (r *NeedRepository) Needs(ctx context.Context, filter types.NeedFilter, now time.Time) ([]*types.Need, error) {

	builder := psql().Select(needColumns...).From(needTableName)

	if filter.Priority != "" {
		builder = builder.Where(sq.Eq{"priority": filter.Priority})
	}
	if filter.Category != "" {
		builder = builder.Where(sq.Eq{"category": filter.Category})
	}
	if filter.OrgType != "" {
		builder = builder.Where(sq.Eq{"org_type": filter.OrgType})
	}
	if filter.BundleTag != "" {
		builder = builder.Where(sq.Eq{"bundle_tag": filter.BundleTag})
	}
	if filter.ManagerID != "" {
		builder = builder.Where(sq.Eq{"manager_id": filter.ManagerID})
	}
	if filter.Perishable != nil {
		builder = builder.Where(sq.Eq{"perishable": *filter.Perishable})
	}
	if filter.ServiceRequired != nil {
		builder = builder.Where(sq.Eq{"service_required": *filter.ServiceRequired})
	}
	if filter.DueWithinDays != nil {
		cutoff := now.Add(time.Duration(*filter.DueWithinDays) * 24 * time.Hour)
		builder = builder.Where(sq.And{
			sq.NotEq{"deadline": nil},
			sq.LtOrEq{"deadline": cutoff},
		})
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + escapeLike(search) + "%"
		builder = builder.Where(sq.Or{
			sq.ILike{"title": pattern},
			sq.ILike{"description": pattern},
		})
	}

	query, args, err := builder.OrderBy("created_at DESC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate needs query: %w", err)
	}

	var needs = make([]*types.Need, 0)
	err = pgxscan.Select(ctx, r.pool, &needs, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch needs: %w", err)
	}

	return needs, nil
}

func (r *NeedRepository) CreateNeed(ctx context.Context, need *types.Need) error {

	now := time.Now()
	need.ID = utils.NanoID()
	need.QuantityFulfilled = 0
	need.RequestCount = 0
	need.UpdatedAt = now
	need.CreatedAt = now

	needMap := utils.StructToMap(need)

	query, args, err := psql().Insert(needTableName).SetMap(needMap).ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate insert need query: %w", err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	if isForeignKeyViolation(err) {
		return types.ErrUserNotFound
	}
	return utils.ErrorWrapOrNil(err, "failed to create need")

}

// UpdateNeed writes the given columns of need and refreshes need with the
// stored row. Columns outside the editable set are ignored, and updated_at
// is always written. Leaving untouched columns alone keeps two edits to
// different fields from overwriting each other.
func (r *NeedRepository) UpdateNeed(ctx context.Context, needID string, need *types.Need, columns []string) error {

	need.ID = needID
	need.UpdatedAt = time.Now()

	needMap := utils.StructToMap(need)
	setMap := map[string]any{"updated_at": need.UpdatedAt}
	for _, column := range columns {
		if slices.Contains(needEditableColumns, column) {
			setMap[column] = needMap[column]
		}
	}

	query, args, err := psql().Update(needTableName).
		SetMap(setMap).
		Where(sq.Eq{"id": needID}).
		Suffix("RETURNING " + strings.Join(needColumns, ", ")).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate update need query for need %s: %w", needID, err)
	}

	err = pgxscan.Get(ctx, r.pool, need, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return types.ErrNeedNotFound
		}
		if isCheckViolation(err) {
			return types.NewValidationError("quantity", "cannot be less than the quantity already fulfilled")
		}
		return fmt.Errorf("failed to update need %s: %w", needID, err)
	}

	return nil

}

// DeleteNeed removes a need. Basket lines, funding records and events that
// reference it go with it through ON DELETE CASCADE.
func (r *NeedRepository) DeleteNeed(ctx context.Context, needID string) error {

	query, args, err := psql().Delete(needTableName).Where(sq.Eq{"id": needID}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate delete need query for need %s: %w", needID, err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete need %s: %w", needID, err)
	}

	if tag.RowsAffected() == 0 {
		return types.ErrNeedNotFound
	}

	return nil

}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
