package service

import (
	"context"
	"time"

	"github.com/tradepost/tradepost/auth"
	"github.com/tradepost/tradepost/errs"
	"github.com/tradepost/tradepost/metrics"
	"github.com/tradepost/tradepost/types"
)

// ConfirmationAvailability reports whether the caller can confirm the
// purchase of an item within a conversation, resolving any expired pending
// record on the way.
func (svc *Service) ConfirmationAvailability(ctx context.Context, in types.RetrieveConfirmationStatus) (types.ConfirmationAvailability, error) {
	var out types.ConfirmationAvailability

	if err := in.Validate(); err != nil {
		return out, err
	}

	loggedInUser, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return out, errs.Unauthenticated
	}

	in.SetLoggedInUserID(loggedInUser.ID)

	return svc.Postgres.ConfirmationAvailability(ctx, in)
}

// ProposeConfirmation records the seller's meetup outcome and starts the
// buyer's response window.
func (svc *Service) ProposeConfirmation(ctx context.Context, in types.ProposeConfirmation) (types.PurchaseConfirmation, error) {
	var out types.PurchaseConfirmation

	if err := in.Validate(); err != nil {
		return out, err
	}

	loggedInUser, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return out, errs.Unauthenticated
	}

	in.SetLoggedInUserID(loggedInUser.ID)

	out, err := svc.Postgres.ProposeConfirmation(ctx, in, svc.confirmWindow)
	if err != nil {
		return out, err
	}

	metrics.Transitions.WithLabelValues("confirmation", "propose").Inc()
	metrics.MessagesPosted.WithLabelValues("system").Inc()

	return out, nil
}

// RespondConfirmation applies the buyer's accept or deny while the record
// is pending and unexpired.
func (svc *Service) RespondConfirmation(ctx context.Context, in types.RespondConfirmation) (types.PurchaseConfirmation, error) {
	var out types.PurchaseConfirmation

	if err := in.Validate(); err != nil {
		return out, err
	}

	loggedInUser, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return out, errs.Unauthenticated
	}

	in.SetLoggedInUserID(loggedInUser.ID)

	out, err := svc.Postgres.RespondConfirmation(ctx, in)
	if err != nil {
		return out, err
	}

	action := "deny"
	if in.Accept {
		action = "accept"
	}
	metrics.Transitions.WithLabelValues("confirmation", action).Inc()
	metrics.MessagesPosted.WithLabelValues("system").Inc()

	return out, nil
}

// SweepExpiredConfirmations auto-accepts expired pending confirmations on
// a fixed interval until the context ends. Run it in its own goroutine.
func (svc *Service) SweepExpiredConfirmations(ctx context.Context) {
	t := time.NewTicker(svc.sweepInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			svc.sweepExpiredConfirmationsOnce()
		}
	}
}

func (svc *Service) sweepExpiredConfirmationsOnce() {
	svc.background(func(ctx context.Context) error {
		ids, err := svc.Postgres.ExpiredConfirmationIDs(ctx)
		if err != nil {
			return err
		}

		for _, confirmationID := range ids {
			if err := svc.Postgres.ResolveExpired(ctx, confirmationID); err != nil {
				// Racing a concurrent lazy resolution is fine.
				if errs.IsInvalidTransition(err) || errs.IsNotFound(err) {
					continue
				}
				return err
			}

			metrics.Transitions.WithLabelValues("confirmation", "auto_accept").Inc()
			metrics.MessagesPosted.WithLabelValues("system").Inc()
		}

		return nil
	})
}
