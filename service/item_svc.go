package service

import (
	"context"

	"github.com/tradepost/tradepost/auth"
	"github.com/tradepost/tradepost/errs"
	"github.com/tradepost/tradepost/types"
	"github.com/tradepost/tradepost/validator"
)

func (svc *Service) CreateItem(ctx context.Context, title string, price int64) (types.Created, error) {
	var out types.Created

	v := validator.New()
	if title == "" {
		v.AddError("Title", "Title is required")
	}
	if len(title) > 140 {
		v.AddError("Title", "Title must be at most 140 characters")
	}
	if price < 0 {
		v.AddError("Price", "Price must not be negative")
	}
	if err := v.AsError(); err != nil {
		return out, err
	}

	loggedInUser, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return out, errs.Unauthenticated
	}

	return svc.Postgres.CreateItem(ctx, loggedInUser.ID, title, price)
}

func (svc *Service) Item(ctx context.Context, itemID string) (types.Item, error) {
	return svc.Postgres.Item(ctx, itemID)
}
