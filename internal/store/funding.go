package store

import (
	"context"
	"fmt"
	"slices"
	"time"

	"needsmatch/internal/basket"
	"needsmatch/internal/utils"
	"needsmatch/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const fundingTableName = "funding_records"

var fundingColumns = utils.StructTagValues(types.FundingRecord{})

// BeforeCommitFunc runs after every checkout write has been issued but
// before the transaction commits. Returning an error rolls the checkout
// back.
type BeforeCommitFunc func(ctx context.Context, receipt *types.CheckoutReceipt) error

type FundingRepository struct {
	pool *pgxpool.Pool
}

func NewFundingRepository(pool *pgxpool.Pool) *FundingRepository {
	return &FundingRepository{pool: pool}
}

// Checkout turns a user's basket into funding records.
//
// Every need the basket references is locked first, in id order, and the
// basket is read again once those locks are held. Add and SetQuantity also
// lock the need before touching a basket row, so no checkout can wait on a
// basket row while holding up one of them. All lines are validated against
// the locked needs before any write; then, in basket order, each line gets a
// funding record and bumps its need's fulfilled count. Only the lines that
// were funded are deleted. Everything runs in one transaction, so a failure
// at any step leaves no trace.
func (r *FundingRepository) Checkout(ctx context.Context, userID string, beforeCommit BeforeCommitFunc) (*types.CheckoutReceipt, error) {
	var receipt *types.CheckoutReceipt

	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		snapshot, err := basketLines(ctx, tx, userID)
		if err != nil {
			return err
		}
		if len(snapshot) == 0 {
			return types.ErrEmptyBasket
		}

		needs, err := lockNeeds(ctx, tx, snapshot)
		if err != nil {
			return err
		}

		// Lines added for other needs since the snapshot stay in the basket
		// for the next checkout.
		locked := make(map[string]bool, len(snapshot))
		for _, item := range snapshot {
			locked[item.NeedID] = true
		}

		current, err := basketLines(ctx, tx, userID)
		if err != nil {
			return err
		}

		items := make([]*types.BasketItem, 0, len(current))
		for _, item := range current {
			if locked[item.NeedID] {
				items = append(items, item)
			}
		}

		lines := make([]basket.Line, len(items))
		for i, item := range items {
			lines[i] = basket.Line{Item: item, Need: needs[item.NeedID]}
		}

		if err := basket.ValidateCheckout(lines); err != nil {
			return err
		}

		now := time.Now()
		receipt = &types.CheckoutReceipt{
			UserID:  userID,
			Records: make([]*types.FundingRecord, 0, len(lines)),
			Total:   decimal.Zero,
		}

		for _, line := range lines {
			record := &types.FundingRecord{
				ID:        utils.NanoID(),
				UserID:    userID,
				NeedID:    line.Need.ID,
				Quantity:  line.Item.Quantity,
				Amount:    basket.LineAmount(line.Need.UnitCost, line.Item.Quantity),
				CreatedAt: now,
			}

			if err := insertFundingRecord(ctx, tx, record); err != nil {
				return err
			}

			if err := fulfil(ctx, tx, line.Need, line.Item.Quantity, now); err != nil {
				return err
			}

			receipt.Records = append(receipt.Records, record)
			receipt.Total = receipt.Total.Add(record.Amount)
		}

		funded := make([]string, len(items))
		for i, item := range items {
			funded[i] = item.ID
		}

		query, args, err := psql().Delete(basketTableName).Where(sq.Eq{"id": funded}).ToSql()
		if err != nil {
			return fmt.Errorf("failed to generate clear basket query: %w", err)
		}
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to clear basket after checkout: %w", err)
		}

		if beforeCommit != nil {
			return beforeCommit(ctx, receipt)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return receipt, nil
}

func (r *FundingRepository) FundingByUser(ctx context.Context, userID string) ([]*types.FundingEntry, error) {
	return r.entries(ctx, sq.Eq{"f.user_id": userID})
}

func (r *FundingRepository) FundingByNeed(ctx context.Context, needID string) ([]*types.FundingEntry, error) {
	return r.entries(ctx, sq.Eq{"f.need_id": needID})
}

func (r *FundingRepository) AllFunding(ctx context.Context) ([]*types.FundingEntry, error) {
	return r.entries(ctx, nil)
}

func (r *FundingRepository) entries(ctx context.Context, where sq.Sqlizer) ([]*types.FundingEntry, error) {
	builder := psql().
		Select(utils.PrefixSliceOfStrings("f", fundingColumns)...).
		Columns("n.title AS need_title", "u.username").
		From(fundingTableName + " f").
		Join(needTableName + " n ON n.id = f.need_id").
		Join(userTableName + " u ON u.id = f.user_id").
		OrderBy("f.created_at DESC", "f.id ASC")
	if where != nil {
		builder = builder.Where(where)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate funding query: %w", err)
	}

	var entries = make([]*types.FundingEntry, 0)
	err = pgxscan.Select(ctx, r.pool, &entries, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch funding records: %w", err)
	}

	return entries, nil
}

// basketLines reads a user's basket without locking it. Checkout relies on
// the need locks instead.
func basketLines(ctx context.Context, tx pgx.Tx, userID string) ([]*types.BasketItem, error) {
	query, args, err := psql().Select(basketColumns...).From(basketTableName).
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate basket lines query: %w", err)
	}

	var items []*types.BasketItem
	if err := pgxscan.Select(ctx, tx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("failed to read basket for user %s: %w", userID, err)
	}

	return items, nil
}

// lockNeeds locks every need referenced by items in id order. Needs that no
// longer exist are simply absent from the returned map.
func lockNeeds(ctx context.Context, tx pgx.Tx, items []*types.BasketItem) (map[string]*types.Need, error) {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.NeedID)
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)

	found := make(map[string]*types.Need, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	query, args, err := psql().Select(needColumns...).From(needTableName).
		Where(sq.Eq{"id": ids}).
		OrderBy("id ASC").
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate needs lock query: %w", err)
	}

	var needs []*types.Need
	if err := pgxscan.Select(ctx, tx, &needs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to lock needs: %w", err)
	}

	for _, need := range needs {
		found[need.ID] = need
	}

	return found, nil
}

func insertFundingRecord(ctx context.Context, tx pgx.Tx, record *types.FundingRecord) error {
	query, args, err := psql().Insert(fundingTableName).SetMap(utils.StructToMap(record)).ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate insert funding record query: %w", err)
	}

	_, err = tx.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to insert funding record")
}

// fulfil bumps a locked need's fulfilled count. The guard in the WHERE
// clause keeps quantity_fulfilled within quantity even if a caller forgot to
// validate first.
func fulfil(ctx context.Context, tx pgx.Tx, need *types.Need, quantity int, now time.Time) error {
	query, args, err := psql().Update(needTableName).
		Set("quantity_fulfilled", sq.Expr("quantity_fulfilled + ?", quantity)).
		Set("updated_at", now).
		Where(sq.Eq{"id": need.ID}).
		Where(sq.Expr("quantity_fulfilled + ? <= quantity", quantity)).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate fulfil need query: %w", err)
	}

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to fulfil need %s: %w", need.ID, err)
	}

	if tag.RowsAffected() == 0 {
		return &types.AvailabilityError{
			NeedID:    need.ID,
			NeedTitle: need.Title,
			Requested: quantity,
			Available: need.Remaining(),
		}
	}

	need.QuantityFulfilled += quantity
	return nil
}
