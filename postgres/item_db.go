package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgxutil"
	"github.com/nicolasparada/go-db"
	"github.com/tradepost/tradepost/errs"
	"github.com/tradepost/tradepost/id"
	"github.com/tradepost/tradepost/types"
)

func (p *Postgres) CreateItem(ctx context.Context, sellerID, title string, price int64) (types.Created, error) {
	var out types.Created

	const q = `
		INSERT INTO items (id, seller_id, title, price, status)
		VALUES (@item_id, @seller_id, @title, @price, @status)
		RETURNING id, created_at
	`

	rows, err := p.db.Query(ctx, q, pgx.StrictNamedArgs{
		"item_id":   id.Generate(),
		"seller_id": sellerID,
		"title":     title,
		"price":     price,
		"status":    types.ItemStatusActive,
	})
	if err != nil {
		return out, fmt.Errorf("sql insert item: %w", err)
	}

	out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.Created])
	if err != nil {
		return out, fmt.Errorf("sql collect inserted item: %w", err)
	}

	return out, nil
}

func (p *Postgres) Item(ctx context.Context, itemID string) (types.Item, error) {
	var out types.Item

	const q = `
		SELECT items.*
		FROM items
		WHERE items.id = @item_id
	`

	rows, err := p.db.Query(ctx, q, pgx.StrictNamedArgs{
		"item_id": itemID,
	})
	if err != nil {
		return out, fmt.Errorf("sql select item: %w", err)
	}

	out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.Item])
	if db.IsNotFoundError(err) {
		return out, errs.NewNotFoundError("item not found")
	}

	if err != nil {
		return out, fmt.Errorf("sql collect item: %w", err)
	}

	return out, nil
}

func (p *Postgres) ItemStatus(ctx context.Context, itemID string) (types.ItemStatus, error) {
	status, err := pgxutil.SelectRow(ctx, p.db, `
		SELECT status FROM items WHERE id = $1
	`, []any{itemID}, pgx.RowTo[types.ItemStatus])
	if db.IsNotFoundError(err) {
		return status, errs.NewNotFoundError("item not found")
	}

	if err != nil {
		return status, fmt.Errorf("sql select item status: %w", err)
	}

	return status, nil
}

// setItemStatus is only called inside engine transactions. Item
// availability is never written outside a negotiation transition.
func (p *Postgres) setItemStatus(ctx context.Context, itemID string, status types.ItemStatus) error {
	const q = `
		UPDATE items
		SET status = @status
		WHERE id = @item_id
	`

	tag, err := p.db.Exec(ctx, q, pgx.StrictNamedArgs{
		"item_id": itemID,
		"status":  status,
	})
	if err != nil {
		return fmt.Errorf("sql update item status: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return errs.NewNotFoundError("item not found")
	}

	return nil
}
