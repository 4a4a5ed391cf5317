package store

import (
	"context"
	"fmt"
	"time"

	"needsmatch/internal/basket"
	"needsmatch/internal/utils"
	"needsmatch/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const basketTableName = "basket_items"

var basketColumns = utils.StructTagValues(types.BasketItem{})

type BasketRepository struct {
	pool *pgxpool.Pool
}

func NewBasketRepository(pool *pgxpool.Pool) *BasketRepository {
	return &BasketRepository{pool: pool}
}

// Basket returns a user's basket lines joined with their needs, oldest line
// first. Totals are left to the caller.
func (r *BasketRepository) Basket(ctx context.Context, userID string) ([]*types.BasketEntry, error) {
	query, args, err := psql().
		Select(utils.PrefixSliceOfStrings("b", basketColumns)...).
		Columns(
			"n.title AS need_title",
			"n.unit_cost",
			"GREATEST(n.quantity - n.quantity_fulfilled, 0) AS remaining",
		).
		From(basketTableName + " b").
		Join(needTableName + " n ON n.id = b.need_id").
		Where(sq.Eq{"b.user_id": userID}).
		OrderBy("b.created_at ASC", "b.id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate basket query: %w", err)
	}

	var entries = make([]*types.BasketEntry, 0)
	err = pgxscan.Select(ctx, r.pool, &entries, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch basket for user %s: %w", userID, err)
	}

	return entries, nil
}

func (r *BasketRepository) Item(ctx context.Context, itemID string) (*types.BasketItem, error) {
	return basketItem(ctx, r.pool, itemID, false)
}

// Add puts delta more units of a need into the user's basket. An existing
// line for the same need is combined with delta and the combined quantity is
// checked against what is left of the need; on failure the line is left as
// it was. A brand new line counts as one more request for the need.
func (r *BasketRepository) Add(ctx context.Context, userID, needID string, delta int) (*types.BasketItem, error) {
	var item *types.BasketItem

	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		need, err := lockNeed(ctx, tx, needID)
		if err != nil {
			return err
		}

		existing, err := basketItemByNeed(ctx, tx, userID, needID)
		if err != nil {
			return err
		}

		current := 0
		if existing != nil {
			current = existing.Quantity
		}

		quantity, err := basket.CheckAdd(need, current, delta)
		if err != nil {
			return err
		}

		now := time.Now()
		if existing != nil {
			existing.Quantity = quantity
			existing.UpdatedAt = now
			item = existing
			return updateBasketQuantity(ctx, tx, existing)
		}

		item = &types.BasketItem{
			ID:        utils.NanoID(),
			UserID:    userID,
			NeedID:    needID,
			Quantity:  quantity,
			CreatedAt: now,
			UpdatedAt: now,
		}

		query, args, err := psql().Insert(basketTableName).SetMap(utils.StructToMap(item)).ToSql()
		if err != nil {
			return fmt.Errorf("failed to generate insert basket item query: %w", err)
		}
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			if isForeignKeyViolation(err) {
				return types.ErrUserNotFound
			}
			return fmt.Errorf("failed to insert basket item: %w", err)
		}

		query, args, err = psql().Update(needTableName).
			Set("request_count", sq.Expr("request_count + 1")).
			Where(sq.Eq{"id": needID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to generate request count query: %w", err)
		}
		_, err = tx.Exec(ctx, query, args...)
		return utils.ErrorWrapOrNil(err, "failed to bump need request count")
	})
	if err != nil {
		return nil, err
	}

	return item, nil
}

// SetQuantity replaces the quantity of a basket line after checking it
// against the need's remaining availability.
func (r *BasketRepository) SetQuantity(ctx context.Context, itemID string, quantity int) (*types.BasketItem, error) {
	var item *types.BasketItem

	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		// Need before basket row, as in Add. Checkout never locks basket
		// rows ahead of needs.
		peek, err := basketItem(ctx, tx, itemID, false)
		if err != nil {
			return err
		}

		need, err := lockNeed(ctx, tx, peek.NeedID)
		if err != nil {
			return err
		}

		item, err = basketItem(ctx, tx, itemID, true)
		if err != nil {
			return err
		}

		if err := basket.CheckQuantity(need, quantity); err != nil {
			return err
		}

		item.Quantity = quantity
		item.UpdatedAt = time.Now()
		return updateBasketQuantity(ctx, tx, item)
	})
	if err != nil {
		return nil, err
	}

	return item, nil
}

func (r *BasketRepository) Delete(ctx context.Context, itemID string) error {
	query, args, err := psql().Delete(basketTableName).Where(sq.Eq{"id": itemID}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate delete basket item query: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete basket item %s: %w", itemID, err)
	}

	if tag.RowsAffected() == 0 {
		return types.ErrBasketItemNotFound
	}

	return nil
}

// Clear empties a user's basket and reports how many lines were removed.
func (r *BasketRepository) Clear(ctx context.Context, userID string) (int64, error) {
	query, args, err := psql().Delete(basketTableName).Where(sq.Eq{"user_id": userID}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to generate clear basket query: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to clear basket for user %s: %w", userID, err)
	}

	return tag.RowsAffected(), nil
}

func basketItem(ctx context.Context, q pgxscan.Querier, itemID string, forUpdate bool) (*types.BasketItem, error) {
	builder := psql().Select(basketColumns...).From(basketTableName).Where(sq.Eq{"id": itemID})
	if forUpdate {
		builder = builder.Suffix("FOR UPDATE")
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate basket item query: %w", err)
	}

	var item types.BasketItem
	err = pgxscan.Get(ctx, q, &item, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrBasketItemNotFound
		}
		return nil, fmt.Errorf("failed to fetch basket item %s: %w", itemID, err)
	}

	return &item, nil
}

// basketItemByNeed returns nil without error when the user has no line for
// the need.
func basketItemByNeed(ctx context.Context, tx pgx.Tx, userID, needID string) (*types.BasketItem, error) {
	query, args, err := psql().Select(basketColumns...).From(basketTableName).
		Where(sq.Eq{"user_id": userID, "need_id": needID}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate basket line query: %w", err)
	}

	var item types.BasketItem
	err = pgxscan.Get(ctx, tx, &item, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch basket line: %w", err)
	}

	return &item, nil
}

func updateBasketQuantity(ctx context.Context, tx pgx.Tx, item *types.BasketItem) error {
	query, args, err := psql().Update(basketTableName).
		Set("quantity", item.Quantity).
		Set("updated_at", item.UpdatedAt).
		Where(sq.Eq{"id": item.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate update basket item query: %w", err)
	}

	_, err = tx.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to update basket item")
}

// lockNeed reads a need and holds its row lock until the transaction ends.
func lockNeed(ctx context.Context, tx pgx.Tx, needID string) (*types.Need, error) {
	query, args, err := psql().Select(needColumns...).From(needTableName).
		Where(sq.Eq{"id": needID}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate need lock query: %w", err)
	}

	var need types.Need
	err = pgxscan.Get(ctx, tx, &need, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrNeedNotFound
		}
		return nil, fmt.Errorf("failed to lock need %s: %w", needID, err)
	}

	return &need, nil
}
