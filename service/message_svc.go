package service

import (
	"context"

	"github.com/tradepost/tradepost/auth"
	"github.com/tradepost/tradepost/errs"
	"github.com/tradepost/tradepost/metrics"
	"github.com/tradepost/tradepost/types"
)

// CreateMessage appends a user message to the conversation ledger. When an
// image is attached it goes to object storage first and gets removed again
// if the message itself fails to persist.
func (svc *Service) CreateMessage(ctx context.Context, in types.CreateMessage) (types.MessageCreated, error) {
	var out types.MessageCreated

	if err := in.Validate(); err != nil {
		return out, err
	}

	loggedInUser, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return out, errs.Unauthenticated
	}

	in.SetLoggedInUserID(loggedInUser.ID)

	var cleanupImage func()
	if in.Image != nil {
		cleanup, err := svc.Minio.Upload(ctx, svc.messageBucket, *in.Image)
		if err != nil {
			return out, err
		}

		in.ImagePath = in.Image.Path
		cleanupImage = cleanup
	}

	out, err := svc.Postgres.CreateMessage(ctx, in)
	if err != nil {
		if cleanupImage != nil {
			go cleanupImage()
		}
		return out, err
	}

	metrics.MessagesPosted.WithLabelValues("user").Inc()

	return out, nil
}

// Messages returns ledger entries after the given id, oldest first.
// Clients poll with the last id they have seen.
func (svc *Service) Messages(ctx context.Context, in types.ListMessages) ([]types.Message, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	loggedInUser, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return nil, errs.Unauthenticated
	}

	in.SetLoggedInUserID(loggedInUser.ID)

	return svc.Postgres.Messages(ctx, in)
}

// MarkRead zeroes the caller's unread count and clears the first-unread
// pointer for the conversation.
func (svc *Service) MarkRead(ctx context.Context, in types.MarkRead) error {
	if err := in.Validate(); err != nil {
		return err
	}

	loggedInUser, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return errs.Unauthenticated
	}

	in.SetLoggedInUserID(loggedInUser.ID)

	return svc.Postgres.MarkRead(ctx, in)
}
