package service

import (
	"context"
	"time"

	"github.com/tradepost/tradepost/auth"
	"github.com/tradepost/tradepost/errs"
	"github.com/tradepost/tradepost/metrics"
	"github.com/tradepost/tradepost/types"
)

// EnsureConversation returns the one conversation between the logged-in
// user and the other user, creating it under the pair lock when absent.
// Concurrent calls for the same pair serialize on the lock so exactly one
// row ever exists.
func (svc *Service) EnsureConversation(ctx context.Context, in types.EnsureConversation) (types.Conversation, error) {
	var out types.Conversation

	if err := in.Validate(); err != nil {
		return out, err
	}

	loggedInUser, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return out, errs.Unauthenticated
	}

	in.SetLoggedInUserID(loggedInUser.ID)

	lo, hi := types.CanonicalPair(loggedInUser.ID, in.OtherUserID)
	key := types.PairLockKey(lo, hi)

	lockStart := time.Now()
	if err := svc.Postgres.AcquirePairLock(ctx, key, svc.pairLockWait); err != nil {
		return out, err
	}
	metrics.PairLockWait.Observe(time.Since(lockStart).Seconds())

	defer func() {
		// Release even when the caller's context is already gone.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), svc.backgroundTimeout)
		defer cancel()

		if err := svc.Postgres.ReleasePairLock(ctx, key); err != nil {
			select {
			case svc.errs <- err:
			default:
			}
		}
	}()

	out, created, err := svc.Postgres.EnsureConversation(ctx, in)
	if err != nil {
		return out, err
	}

	if created {
		metrics.Transitions.WithLabelValues("conversation", "create").Inc()
	}

	return out, nil
}

func (svc *Service) Conversation(ctx context.Context, conversationID string) (types.Conversation, error) {
	var out types.Conversation

	loggedInUser, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return out, errs.Unauthenticated
	}

	return svc.Postgres.Conversation(ctx, conversationID, loggedInUser.ID)
}

func (svc *Service) Conversations(ctx context.Context, in types.ListConversations) (types.Page[types.Conversation], error) {
	var out types.Page[types.Conversation]

	if err := in.Validate(); err != nil {
		return out, err
	}

	loggedInUser, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return out, errs.Unauthenticated
	}

	in.SetLoggedInUserID(loggedInUser.ID)

	return svc.Postgres.Conversations(ctx, in)
}

// DeleteConversation soft-deletes the conversation for the caller,
// cancelling its live purchase state. When the other side already deleted,
// the conversation and its ledger are removed for good.
func (svc *Service) DeleteConversation(ctx context.Context, in types.DeleteConversation) error {
	if err := in.Validate(); err != nil {
		return err
	}

	loggedInUser, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return errs.Unauthenticated
	}

	in.SetLoggedInUserID(loggedInUser.ID)

	hardDeleted, err := svc.Postgres.DeleteConversation(ctx, in)
	if err != nil {
		return err
	}

	mode := "soft"
	if hardDeleted {
		mode = "hard"
	}
	metrics.ConversationsDeleted.WithLabelValues(mode).Inc()

	return nil
}
