package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/nicolasparada/go-db"
	"github.com/tradepost/tradepost/errs"
	"github.com/tradepost/tradepost/id"
	"github.com/tradepost/tradepost/types"
)

func (p *Postgres) CreateUser(ctx context.Context, username string) (types.Created, error) {
	var out types.Created

	const q = `
		INSERT INTO users (id, username)
		VALUES (@user_id, @username)
		RETURNING id, created_at
	`

	rows, err := p.db.Query(ctx, q, pgx.StrictNamedArgs{
		"user_id":  id.Generate(),
		"username": username,
	})
	if err != nil {
		return out, fmt.Errorf("sql insert user: %w", err)
	}

	out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.Created])
	if isUniqueViolation(err) {
		return out, errs.NewConflictError("username already taken")
	}

	if err != nil {
		return out, fmt.Errorf("sql collect inserted user: %w", err)
	}

	return out, nil
}

func (p *Postgres) User(ctx context.Context, userID string) (types.User, error) {
	var out types.User

	const q = `
		SELECT users.*
		FROM users
		WHERE users.id = @user_id
	`

	rows, err := p.db.Query(ctx, q, pgx.StrictNamedArgs{
		"user_id": userID,
	})
	if err != nil {
		return out, fmt.Errorf("sql select user: %w", err)
	}

	out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.User])
	if db.IsNotFoundError(err) {
		return out, errs.NewNotFoundError("user not found")
	}

	if err != nil {
		return out, fmt.Errorf("sql collect user: %w", err)
	}

	return out, nil
}

func (p *Postgres) UserByUsername(ctx context.Context, username string) (types.User, error) {
	var out types.User

	const q = `
		SELECT users.*
		FROM users
		WHERE users.username = @username
	`

	rows, err := p.db.Query(ctx, q, pgx.StrictNamedArgs{
		"username": username,
	})
	if err != nil {
		return out, fmt.Errorf("sql select user by username: %w", err)
	}

	out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.User])
	if db.IsNotFoundError(err) {
		return out, errs.NewNotFoundError("user not found")
	}

	if err != nil {
		return out, fmt.Errorf("sql collect user by username: %w", err)
	}

	return out, nil
}
