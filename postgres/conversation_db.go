package postgres

import (
	"context"
	"fmt"
	"slices"

	"github.com/jackc/pgx/v5"
	"github.com/nicolasparada/go-db"
	"github.com/tradepost/tradepost/errs"
	"github.com/tradepost/tradepost/id"
	"github.com/tradepost/tradepost/types"
)

// EnsureConversation finds or creates the conversation between the caller
// and the other user. Callers must hold the pair lock for the canonical
// pair while calling; creation is check-then-act.
//
// When the conversation is created and an item is supplied, an intro
// system message is posted from the item's buyer to its seller. When the
// caller had soft-deleted an existing conversation, it is reopened for
// them with a fresh participant row.
func (p *Postgres) EnsureConversation(ctx context.Context, in types.EnsureConversation) (types.Conversation, bool, error) {
	var out types.Conversation
	var created bool

	err := p.db.RunTx(ctx, func(ctx context.Context) error {
		lo, hi := types.CanonicalPair(in.LoggedInUserID(), in.OtherUserID)

		convo, err := p.conversationByPair(ctx, lo, hi)
		if err == nil {
			out = convo
			if convo.DeletedBy(in.LoggedInUserID()) {
				out, err = p.reopenConversation(ctx, convo, in.LoggedInUserID())
				return err
			}
			return nil
		}

		if !errs.IsNotFound(err) {
			return err
		}

		convo, err = p.createConversation(ctx, lo, hi)
		if err != nil {
			return err
		}

		created = true

		if in.ItemID != "" {
			if err := p.postListingIntro(ctx, convo, in.ItemID); err != nil {
				return err
			}
		}

		out = convo
		return nil
	})

	return out, created, err
}

func (p *Postgres) conversationByPair(ctx context.Context, lo, hi string) (types.Conversation, error) {
	var out types.Conversation

	const q = `
		SELECT conversations.*
		FROM conversations
		WHERE conversations.lo_user_id = @lo_user_id
			AND conversations.hi_user_id = @hi_user_id
	`

	rows, err := p.db.Query(ctx, q, pgx.StrictNamedArgs{
		"lo_user_id": lo,
		"hi_user_id": hi,
	})
	if err != nil {
		return out, fmt.Errorf("sql select conversation by pair: %w", err)
	}

	out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.Conversation])
	if db.IsNotFoundError(err) {
		return out, errs.NewNotFoundError("conversation not found")
	}

	if err != nil {
		return out, fmt.Errorf("sql collect conversation by pair: %w", err)
	}

	return out, nil
}

func (p *Postgres) createConversation(ctx context.Context, lo, hi string) (types.Conversation, error) {
	var out types.Conversation

	loUser, err := p.User(ctx, lo)
	if err != nil {
		return out, err
	}

	hiUser, err := p.User(ctx, hi)
	if err != nil {
		return out, err
	}

	const q = `
		INSERT INTO conversations (id, lo_user_id, hi_user_id, lo_username, hi_username)
		VALUES (@conversation_id, @lo_user_id, @hi_user_id, @lo_username, @hi_username)
		RETURNING conversations.*
	`

	rows, err := p.db.Query(ctx, q, pgx.StrictNamedArgs{
		"conversation_id": id.Generate(),
		"lo_user_id":      lo,
		"hi_user_id":      hi,
		"lo_username":     loUser.Username,
		"hi_username":     hiUser.Username,
	})
	if err != nil {
		return out, fmt.Errorf("sql insert conversation: %w", err)
	}

	out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.Conversation])
	if isUniqueViolation(err) {
		// Lost the race to a concurrent winner despite the pair lock.
		return out, errs.NewConflictError("conversation already exists")
	}

	if err != nil {
		return out, fmt.Errorf("sql collect inserted conversation: %w", err)
	}

	const qp = `
		INSERT INTO conversation_participants (conversation_id, user_id)
		VALUES (@conversation_id, @lo_user_id)
			 , (@conversation_id, @hi_user_id)
	`

	_, err = p.db.Exec(ctx, qp, pgx.StrictNamedArgs{
		"conversation_id": out.ID,
		"lo_user_id":      lo,
		"hi_user_id":      hi,
	})
	if err != nil {
		return out, fmt.Errorf("sql insert participants: %w", err)
	}

	return out, nil
}

func (p *Postgres) reopenConversation(ctx context.Context, convo types.Conversation, userID string) (types.Conversation, error) {
	var out types.Conversation

	const q = `
		UPDATE conversations
		SET lo_deleted = CASE WHEN lo_user_id = @user_id THEN false ELSE lo_deleted END,
			hi_deleted = CASE WHEN hi_user_id = @user_id THEN false ELSE hi_deleted END
		WHERE id = @conversation_id
		RETURNING conversations.*
	`

	rows, err := p.db.Query(ctx, q, pgx.StrictNamedArgs{
		"conversation_id": convo.ID,
		"user_id":         userID,
	})
	if err != nil {
		return out, fmt.Errorf("sql reopen conversation: %w", err)
	}

	out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.Conversation])
	if err != nil {
		return out, fmt.Errorf("sql collect reopened conversation: %w", err)
	}

	const qp = `
		INSERT INTO conversation_participants (conversation_id, user_id)
		VALUES (@conversation_id, @user_id)
		ON CONFLICT (conversation_id, user_id) DO NOTHING
	`

	_, err = p.db.Exec(ctx, qp, pgx.StrictNamedArgs{
		"conversation_id": convo.ID,
		"user_id":         userID,
	})
	if err != nil {
		return out, fmt.Errorf("sql reinsert participant: %w", err)
	}

	return out, nil
}

func (p *Postgres) postListingIntro(ctx context.Context, convo types.Conversation, itemID string) error {
	item, err := p.Item(ctx, itemID)
	if err != nil {
		return err
	}

	if !convo.Has(item.SellerID) {
		return errs.NewInvalidArgumentError("ItemID", "item does not belong to either participant")
	}

	buyerID, buyerName := convo.Other(item.SellerID)

	_, err = p.insertMessage(ctx, convo, messageParams{
		senderID: buyerID,
		content:  fmt.Sprintf("%s is interested in %q", buyerName, item.Title),
		event: &types.SystemEvent{
			Kind:      types.SystemEventListingIntro,
			ItemID:    item.ID,
			ItemTitle: item.Title,
		},
	})
	return err
}

// Conversation fetches one conversation the user takes part in, with their
// participation (unread state and the other party) attached.
func (p *Postgres) Conversation(ctx context.Context, conversationID, userID string) (types.Conversation, error) {
	var out types.Conversation

	const q = `
		SELECT conversations.*,
			json_build_object(
				'conversationID', participants.conversation_id,
				'userID', participants.user_id,
				'unreadCount', participants.unread_count,
				'firstUnreadMessageID', participants.first_unread_message_id,
				'createdAt', participants.created_at,
				'updatedAt', participants.updated_at,
				'otherUser', json_build_object(
					'id', other_user.id,
					'username', other_user.username
				)
			) AS participation
		FROM conversations
		INNER JOIN conversation_participants AS participants
			ON participants.conversation_id = conversations.id
			AND participants.user_id = @user_id
		INNER JOIN users AS other_user
			ON other_user.id = CASE
				WHEN conversations.lo_user_id = @user_id THEN conversations.hi_user_id
				ELSE conversations.lo_user_id
			END
		WHERE conversations.id = @conversation_id
	`

	rows, err := p.db.Query(ctx, q, pgx.StrictNamedArgs{
		"conversation_id": conversationID,
		"user_id":         userID,
	})
	if err != nil {
		return out, fmt.Errorf("sql select conversation: %w", err)
	}

	out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.Conversation])
	if db.IsNotFoundError(err) {
		return out, errs.NewNotFoundError("conversation not found")
	}

	if err != nil {
		return out, fmt.Errorf("sql collect conversation: %w", err)
	}

	if out.DeletedBy(userID) {
		return out, errs.NewNotFoundError("conversation not found")
	}

	return out, nil
}

// Conversations lists the caller's inbox, newest conversation first,
// excluding ones they soft-deleted.
func (p *Postgres) Conversations(ctx context.Context, in types.ListConversations) (types.Page[types.Conversation], error) {
	var out types.Page[types.Conversation]

	query := `
		SELECT conversations.*,
			json_build_object(
				'conversationID', participants.conversation_id,
				'userID', participants.user_id,
				'unreadCount', participants.unread_count,
				'firstUnreadMessageID', participants.first_unread_message_id,
				'createdAt', participants.created_at,
				'updatedAt', participants.updated_at,
				'otherUser', json_build_object(
					'id', other_user.id,
					'username', other_user.username
				)
			) AS participation
		FROM conversations
		INNER JOIN conversation_participants AS participants
			ON participants.conversation_id = conversations.id
			AND participants.user_id = @user_id
		INNER JOIN users AS other_user
			ON other_user.id = CASE
				WHEN conversations.lo_user_id = @user_id THEN conversations.hi_user_id
				ELSE conversations.lo_user_id
			END
		WHERE NOT (
			(conversations.lo_user_id = @user_id AND conversations.lo_deleted)
			OR (conversations.hi_user_id = @user_id AND conversations.hi_deleted)
		)
	`
	args := pgx.StrictNamedArgs{
		"user_id": in.LoggedInUserID(),
	}

	backwards := in.PageArgs.IsBackwards()

	if in.PageArgs.After != nil {
		after, err := DecodeCursor(*in.PageArgs.After)
		if err != nil {
			return out, err
		}

		query += ` AND conversations.id < @after_id`
		args["after_id"] = after.ID
	}

	if in.PageArgs.Before != nil {
		before, err := DecodeCursor(*in.PageArgs.Before)
		if err != nil {
			return out, err
		}

		query += ` AND conversations.id > @before_id`
		args["before_id"] = before.ID
	}

	if backwards {
		query += ` ORDER BY conversations.id ASC`
	} else {
		query += ` ORDER BY conversations.id DESC`
	}

	limit := uint(defaultPageSize)
	if in.PageArgs.First != nil {
		limit = *in.PageArgs.First
	}
	if in.PageArgs.Last != nil {
		limit = *in.PageArgs.Last
	}

	query += ` LIMIT @limit`
	args["limit"] = limit + 1

	rows, err := p.db.Query(ctx, query, args)
	if err != nil {
		return out, fmt.Errorf("sql select conversations: %w", err)
	}

	out.Items, err = pgx.CollectRows(rows, pgx.RowToStructByNameLax[types.Conversation])
	if err != nil {
		return out, fmt.Errorf("sql collect conversations: %w", err)
	}

	if uint(len(out.Items)) > limit {
		out.Items = out.Items[:limit]
		if backwards {
			out.PageInfo.HasPreviousPage = true
		} else {
			out.PageInfo.HasNextPage = true
		}
	}

	if backwards {
		slices.Reverse(out.Items)
	}

	if len(out.Items) != 0 {
		start, err := EncodeCursor(Cursor{ID: out.Items[0].ID})
		if err != nil {
			return out, err
		}

		end, err := EncodeCursor(Cursor{ID: out.Items[len(out.Items)-1].ID})
		if err != nil {
			return out, err
		}

		out.PageInfo.StartCursor = &start
		out.PageInfo.EndCursor = &end
	}

	return out, nil
}

// DeleteConversation runs the cascade teardown: revert item statuses that
// are no longer justified, drop the conversation's negotiation records,
// drop the caller's participant row and set their soft-delete flag, and
// hard-delete once both sides have deleted. Returns whether the hard
// delete happened.
func (p *Postgres) DeleteConversation(ctx context.Context, in types.DeleteConversation) (bool, error) {
	var hardDeleted bool

	err := p.db.RunTx(ctx, func(ctx context.Context) error {
		convo, err := p.conversationForUpdate(ctx, in.ConversationID)
		if err != nil {
			return err
		}

		userID := in.LoggedInUserID()

		if !convo.Has(userID) {
			return errs.NewPermissionDeniedError("not a participant of this conversation")
		}

		if convo.DeletedBy(userID) {
			return errs.NewConflictError("conversation already deleted")
		}

		schedules, err := p.conversationSchedules(ctx, convo.ID)
		if err != nil {
			return err
		}

		batch := make([]string, 0, len(schedules))
		for _, s := range schedules {
			batch = append(batch, s.ID)
		}

		for _, s := range schedules {
			if s.Status.Terminal() {
				continue
			}

			live, err := p.itemHasLiveRequest(ctx, s.ItemID, batch)
			if err != nil {
				return err
			}

			if !live {
				if err := p.setItemStatus(ctx, s.ItemID, types.ItemStatusActive); err != nil {
					return err
				}
			}
		}

		// Confirmations go with their schedules through the FK cascade.
		const qs = `
			DELETE FROM scheduled_purchases
			WHERE conversation_id = @conversation_id
		`
		if _, err := p.db.Exec(ctx, qs, pgx.StrictNamedArgs{"conversation_id": convo.ID}); err != nil {
			return fmt.Errorf("sql delete scheduled purchases: %w", err)
		}

		const qp = `
			DELETE FROM conversation_participants
			WHERE conversation_id = @conversation_id
				AND user_id = @user_id
		`
		if _, err := p.db.Exec(ctx, qp, pgx.StrictNamedArgs{
			"conversation_id": convo.ID,
			"user_id":         userID,
		}); err != nil {
			return fmt.Errorf("sql delete participant: %w", err)
		}

		const qd = `
			UPDATE conversations
			SET lo_deleted = CASE WHEN lo_user_id = @user_id THEN true ELSE lo_deleted END,
				hi_deleted = CASE WHEN hi_user_id = @user_id THEN true ELSE hi_deleted END
			WHERE id = @conversation_id
			RETURNING lo_deleted AND hi_deleted
		`
		rows, err := p.db.Query(ctx, qd, pgx.StrictNamedArgs{
			"conversation_id": convo.ID,
			"user_id":         userID,
		})
		if err != nil {
			return fmt.Errorf("sql soft delete conversation: %w", err)
		}

		bothDeleted, err := pgx.CollectExactlyOneRow(rows, pgx.RowTo[bool])
		if err != nil {
			return fmt.Errorf("sql collect soft delete flags: %w", err)
		}

		if bothDeleted {
			const qh = `
				DELETE FROM conversations
				WHERE id = @conversation_id
			`
			if _, err := p.db.Exec(ctx, qh, pgx.StrictNamedArgs{"conversation_id": convo.ID}); err != nil {
				return fmt.Errorf("sql hard delete conversation: %w", err)
			}

			hardDeleted = true
		}

		return nil
	})

	return hardDeleted, err
}

func (p *Postgres) conversationForUpdate(ctx context.Context, conversationID string) (types.Conversation, error) {
	var out types.Conversation

	const q = `
		SELECT conversations.*
		FROM conversations
		WHERE conversations.id = @conversation_id
		FOR UPDATE
	`

	rows, err := p.db.Query(ctx, q, pgx.StrictNamedArgs{
		"conversation_id": conversationID,
	})
	if err != nil {
		return out, fmt.Errorf("sql select conversation for update: %w", err)
	}

	out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.Conversation])
	if db.IsNotFoundError(err) {
		return out, errs.NewNotFoundError("conversation not found")
	}

	if err != nil {
		return out, fmt.Errorf("sql collect conversation for update: %w", err)
	}

	return out, nil
}

// Participant reads one participant's unread state.
func (p *Postgres) Participant(ctx context.Context, conversationID, userID string) (types.Participant, error) {
	var out types.Participant

	const q = `
		SELECT participants.*
		FROM conversation_participants AS participants
		WHERE participants.conversation_id = @conversation_id
			AND participants.user_id = @user_id
	`

	rows, err := p.db.Query(ctx, q, pgx.StrictNamedArgs{
		"conversation_id": conversationID,
		"user_id":         userID,
	})
	if err != nil {
		return out, fmt.Errorf("sql select participant: %w", err)
	}

	out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.Participant])
	if db.IsNotFoundError(err) {
		return out, errs.NewNotFoundError("participant not found")
	}

	if err != nil {
		return out, fmt.Errorf("sql collect participant: %w", err)
	}

	return out, nil
}
