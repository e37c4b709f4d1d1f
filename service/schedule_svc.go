package service

import (
	"context"

	"github.com/tradepost/tradepost/auth"
	"github.com/tradepost/tradepost/errs"
	"github.com/tradepost/tradepost/metrics"
	"github.com/tradepost/tradepost/types"
)

// ProposeSchedule creates a pending meetup request for an item and marks
// the item pending. Only the item's seller may propose, and only while no
// other live request exists for the item.
func (svc *Service) ProposeSchedule(ctx context.Context, in types.ProposeSchedule) (types.ScheduledPurchase, error) {
	var out types.ScheduledPurchase

	if err := in.Validate(); err != nil {
		return out, err
	}

	loggedInUser, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return out, errs.Unauthenticated
	}

	in.SetLoggedInUserID(loggedInUser.ID)

	out, err := svc.Postgres.ProposeSchedule(ctx, in)
	if err != nil {
		return out, err
	}

	metrics.Transitions.WithLabelValues("schedule", "propose").Inc()
	metrics.MessagesPosted.WithLabelValues("system").Inc()

	return out, nil
}

func (svc *Service) Schedule(ctx context.Context, scheduleID string) (types.ScheduledPurchase, error) {
	var out types.ScheduledPurchase

	if _, loggedIn := auth.UserFromContext(ctx); !loggedIn {
		return out, errs.Unauthenticated
	}

	return svc.Postgres.Schedule(ctx, scheduleID)
}

// RespondSchedule applies the buyer's accept or decline to a pending
// request. Accepting reveals the verification code; declining frees the
// item.
func (svc *Service) RespondSchedule(ctx context.Context, in types.RespondSchedule) (types.ScheduledPurchase, error) {
	var out types.ScheduledPurchase

	if err := in.Validate(); err != nil {
		return out, err
	}

	loggedInUser, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return out, errs.Unauthenticated
	}

	in.SetLoggedInUserID(loggedInUser.ID)

	out, err := svc.Postgres.RespondSchedule(ctx, in)
	if err != nil {
		return out, err
	}

	action := "decline"
	if in.Accept {
		action = "accept"
	}
	metrics.Transitions.WithLabelValues("schedule", action).Inc()
	metrics.MessagesPosted.WithLabelValues("system").Inc()

	return out, nil
}

// CancelSchedule lets either participant cancel a pending or accepted
// request.
func (svc *Service) CancelSchedule(ctx context.Context, in types.CancelSchedule) (types.ScheduledPurchase, error) {
	var out types.ScheduledPurchase

	if err := in.Validate(); err != nil {
		return out, err
	}

	loggedInUser, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return out, errs.Unauthenticated
	}

	in.SetLoggedInUserID(loggedInUser.ID)

	out, err := svc.Postgres.CancelSchedule(ctx, in)
	if err != nil {
		return out, err
	}

	metrics.Transitions.WithLabelValues("schedule", "cancel").Inc()
	metrics.MessagesPosted.WithLabelValues("system").Inc()

	return out, nil
}
