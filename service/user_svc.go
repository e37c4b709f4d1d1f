package service

import (
	"context"

	"github.com/tradepost/tradepost/errs"
	"github.com/tradepost/tradepost/types"
	"github.com/tradepost/tradepost/validator"
)

func validUsername(s string) bool {
	if len(s) < 3 || len(s) > 21 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9',
			r == '_':
		default:
			return false
		}
	}
	return true
}

func (svc *Service) CreateUser(ctx context.Context, username string) (types.Created, error) {
	var out types.Created

	if !validUsername(username) {
		v := validator.New()
		v.AddError("Username", "Username must be 3 to 21 letters, digits or underscores")
		return out, v.AsError()
	}

	return svc.Postgres.CreateUser(ctx, username)
}

func (svc *Service) User(ctx context.Context, userID string) (types.User, error) {
	return svc.Postgres.User(ctx, userID)
}

// UserByUsername backs login: unknown usernames surface as not found
// rather than being auto-registered.
func (svc *Service) UserByUsername(ctx context.Context, username string) (types.User, error) {
	var out types.User

	if !validUsername(username) {
		return out, errs.NewNotFoundError("user not found")
	}

	return svc.Postgres.UserByUsername(ctx, username)
}
