package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/tradepost/tradepost/errs"
	"github.com/tradepost/tradepost/types"
)

const maxMessagePageSize = 200

type messageParams struct {
	senderID  string
	content   string
	imagePath *string
	event     *types.SystemEvent
}

// CreateMessage appends one message to the ledger and updates the
// receiver's unread state in the same transaction, so an observed unread
// count always has that many stored messages behind it.
func (p *Postgres) CreateMessage(ctx context.Context, in types.CreateMessage) (types.MessageCreated, error) {
	var out types.MessageCreated

	err := p.db.RunTx(ctx, func(ctx context.Context) error {
		convo, err := p.Conversation(ctx, in.ConversationID, in.LoggedInUserID())
		if err != nil {
			return err
		}

		var imagePath *string
		if in.ImagePath != "" {
			imagePath = &in.ImagePath
		}

		out, err = p.insertMessage(ctx, convo, messageParams{
			senderID:  in.LoggedInUserID(),
			content:   in.Content,
			imagePath: imagePath,
			event:     in.Event(),
		})
		return err
	})

	return out, err
}

// insertMessage is the single write path for user and system messages.
// It must run inside a transaction.
func (p *Postgres) insertMessage(ctx context.Context, convo types.Conversation, mp messageParams) (types.MessageCreated, error) {
	var out types.MessageCreated

	receiverID, receiverUsername := convo.Other(mp.senderID)

	const q = `
		INSERT INTO messages (conversation_id, sender_id, receiver_id, sender_username, receiver_username, content, image_path, event)
		VALUES (@conversation_id, @sender_id, @receiver_id, @sender_username, @receiver_username, @content, @image_path, @event)
		RETURNING id, created_at
	`

	rows, err := p.db.Query(ctx, q, pgx.StrictNamedArgs{
		"conversation_id":   convo.ID,
		"sender_id":         mp.senderID,
		"receiver_id":       receiverID,
		"sender_username":   convo.Username(mp.senderID),
		"receiver_username": receiverUsername,
		"content":           mp.content,
		"image_path":        mp.imagePath,
		"event":             mp.event,
	})
	if err != nil {
		return out, fmt.Errorf("sql insert message: %w", err)
	}

	out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.MessageCreated])
	if err != nil {
		return out, fmt.Errorf("sql collect inserted message: %w", err)
	}

	// Sticky pointer: only set while unset, so it keeps naming the oldest
	// unread message of the current unread episode. A receiver who
	// soft-deleted the conversation has no participant row; zero rows is
	// fine then.
	const qu = `
		UPDATE conversation_participants
		SET unread_count = unread_count + 1,
			first_unread_message_id = COALESCE(first_unread_message_id, @message_id),
			updated_at = now()
		WHERE conversation_id = @conversation_id
			AND user_id = @receiver_id
	`

	_, err = p.db.Exec(ctx, qu, pgx.StrictNamedArgs{
		"conversation_id": convo.ID,
		"receiver_id":     receiverID,
		"message_id":      out.ID,
	})
	if err != nil {
		return out, fmt.Errorf("sql update receiver unread state: %w", err)
	}

	return out, nil
}

// Messages returns messages in ascending id order, strictly after the
// cursor. Repeated polls with the same cursor return the same prefix;
// nothing durably stored is ever skipped.
func (p *Postgres) Messages(ctx context.Context, in types.ListMessages) ([]types.Message, error) {
	if _, err := p.Conversation(ctx, in.ConversationID, in.LoggedInUserID()); err != nil {
		return nil, err
	}

	limit := in.Limit
	if limit == 0 || limit > maxMessagePageSize {
		limit = maxMessagePageSize
	}

	const q = `
		SELECT messages.*
		FROM messages
		WHERE messages.conversation_id = @conversation_id
			AND messages.id > @after_id
		ORDER BY messages.id ASC
		LIMIT @limit
	`

	rows, err := p.db.Query(ctx, q, pgx.StrictNamedArgs{
		"conversation_id": in.ConversationID,
		"after_id":        in.After,
		"limit":           limit,
	})
	if err != nil {
		return nil, fmt.Errorf("sql select messages: %w", err)
	}

	out, err := pgx.CollectRows(rows, pgx.RowToStructByNameLax[types.Message])
	if err != nil {
		return nil, fmt.Errorf("sql collect messages: %w", err)
	}

	return out, nil
}

// MarkRead ends the caller's unread episode. It is the only operation
// that resets the unread count and clears the sticky pointer.
func (p *Postgres) MarkRead(ctx context.Context, in types.MarkRead) error {
	const q = `
		UPDATE conversation_participants
		SET unread_count = 0,
			first_unread_message_id = NULL,
			updated_at = now()
		WHERE conversation_id = @conversation_id
			AND user_id = @user_id
	`

	tag, err := p.db.Exec(ctx, q, pgx.StrictNamedArgs{
		"conversation_id": in.ConversationID,
		"user_id":         in.LoggedInUserID(),
	})
	if err != nil {
		return fmt.Errorf("sql mark conversation read: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return errs.NewNotFoundError("conversation not found")
	}

	return nil
}
