package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/nicolasparada/go-db"
	"github.com/tradepost/tradepost/errs"
	"github.com/tradepost/tradepost/id"
	"github.com/tradepost/tradepost/types"
)

// Verification codes are exchanged face to face at the meetup, so the
// alphabet avoids lookalike characters.
const verificationCodeAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

func newVerificationCode() (string, error) {
	code, err := gonanoid.Generate(verificationCodeAlphabet, 6)
	if err != nil {
		return "", fmt.Errorf("generate verification code: %w", err)
	}
	return code, nil
}

const meetingTimeLayout = "Mon, Jan 2 at 3:04 PM"

// ProposeSchedule creates a pending meetup proposal for an item, marks the
// item pending and records the proposal as a system message, all in one
// transaction. Fails with a conflict while any non-terminal request exists
// for the item.
func (p *Postgres) ProposeSchedule(ctx context.Context, in types.ProposeSchedule) (types.ScheduledPurchase, error) {
	var out types.ScheduledPurchase

	err := p.db.RunTx(ctx, func(ctx context.Context) error {
		convo, err := p.Conversation(ctx, in.ConversationID, in.LoggedInUserID())
		if err != nil {
			return err
		}

		item, err := p.Item(ctx, in.ItemID)
		if err != nil {
			return err
		}

		if item.SellerID != in.LoggedInUserID() {
			return errs.NewPermissionDeniedError("only the item's seller may propose a scheduled purchase")
		}

		live, err := p.itemHasLiveRequest(ctx, item.ID, nil)
		if err != nil {
			return err
		}

		if live {
			return errs.NewConflictError("item already has an active scheduled purchase")
		}

		buyerID, _ := convo.Other(item.SellerID)

		code, err := newVerificationCode()
		if err != nil {
			return err
		}

		const q = `
			INSERT INTO scheduled_purchases (id, conversation_id, item_id, buyer_id, seller_id, meeting_at, location, price, trade_description, notes, verification_code, status)
			VALUES (@schedule_id, @conversation_id, @item_id, @buyer_id, @seller_id, @meeting_at, @location, @price, @trade_description, @notes, @verification_code, @status)
			RETURNING scheduled_purchases.*
		`

		rows, err := p.db.Query(ctx, q, pgx.StrictNamedArgs{
			"schedule_id":       id.Generate(),
			"conversation_id":   convo.ID,
			"item_id":           item.ID,
			"buyer_id":          buyerID,
			"seller_id":         item.SellerID,
			"meeting_at":        in.MeetingAt,
			"location":          in.Location,
			"price":             in.Price,
			"trade_description": in.TradeDescription,
			"notes":             in.Notes,
			"verification_code": code,
			"status":            types.ScheduleStatusPending,
		})
		if err != nil {
			return fmt.Errorf("sql insert scheduled purchase: %w", err)
		}

		out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.ScheduledPurchase])
		if isUniqueViolation(err) {
			return errs.NewConflictError("item already has an active scheduled purchase")
		}

		if err != nil {
			return fmt.Errorf("sql collect inserted scheduled purchase: %w", err)
		}

		if err := p.setItemStatus(ctx, item.ID, types.ItemStatusPending); err != nil {
			return err
		}

		_, err = p.insertMessage(ctx, convo, messageParams{
			senderID: item.SellerID,
			content: fmt.Sprintf("%s proposed a meetup at %s on %s",
				convo.Username(item.SellerID), in.Location, in.MeetingAt.Format(meetingTimeLayout)),
			event: &types.SystemEvent{
				Kind:       types.SystemEventScheduleRequest,
				ItemID:     item.ID,
				ItemTitle:  item.Title,
				ScheduleID: out.ID,
				MeetingAt:  &out.MeetingAt,
				Location:   out.Location,
			},
		})
		return err
	})

	return out, err
}

func (p *Postgres) Schedule(ctx context.Context, scheduleID string) (types.ScheduledPurchase, error) {
	return p.schedule(ctx, scheduleID, false)
}

func (p *Postgres) schedule(ctx context.Context, scheduleID string, forUpdate bool) (types.ScheduledPurchase, error) {
	var out types.ScheduledPurchase

	q := `
		SELECT scheduled_purchases.*
		FROM scheduled_purchases
		WHERE scheduled_purchases.id = @schedule_id
	`
	if forUpdate {
		q += ` FOR UPDATE`
	}

	rows, err := p.db.Query(ctx, q, pgx.StrictNamedArgs{
		"schedule_id": scheduleID,
	})
	if err != nil {
		return out, fmt.Errorf("sql select scheduled purchase: %w", err)
	}

	out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.ScheduledPurchase])
	if db.IsNotFoundError(err) {
		return out, errs.NewNotFoundError("scheduled purchase not found")
	}

	if err != nil {
		return out, fmt.Errorf("sql collect scheduled purchase: %w", err)
	}

	return out, nil
}

// RespondSchedule applies the designated buyer's accept or decline. The
// transition is guarded on the pending status so two concurrent responses
// cannot both apply.
func (p *Postgres) RespondSchedule(ctx context.Context, in types.RespondSchedule) (types.ScheduledPurchase, error) {
	var out types.ScheduledPurchase

	err := p.db.RunTx(ctx, func(ctx context.Context) error {
		sched, err := p.schedule(ctx, in.ScheduleID, true)
		if err != nil {
			return err
		}

		if sched.BuyerID != in.LoggedInUserID() {
			return errs.NewPermissionDeniedError("only the designated buyer may respond")
		}

		next := types.ScheduleStatusDeclined
		if in.Accept {
			next = types.ScheduleStatusAccepted
		}

		out, err = p.transitionSchedule(ctx, sched, next, []types.ScheduleStatus{types.ScheduleStatusPending}, nil)
		if err != nil {
			return err
		}

		convo, err := p.Conversation(ctx, sched.ConversationID, in.LoggedInUserID())
		if err != nil {
			return err
		}

		buyerName := convo.Username(sched.BuyerID)

		if in.Accept {
			_, err = p.insertMessage(ctx, convo, messageParams{
				senderID: sched.BuyerID,
				content: fmt.Sprintf("%s accepted the meetup. Verification code: %s",
					buyerName, sched.VerificationCode),
				event: &types.SystemEvent{
					Kind:             types.SystemEventScheduleAccepted,
					ItemID:           sched.ItemID,
					ScheduleID:       sched.ID,
					MeetingAt:        &sched.MeetingAt,
					Location:         sched.Location,
					VerificationCode: sched.VerificationCode,
				},
			})
			return err
		}

		// Declining frees the item: by the single-live-request invariant no
		// other non-terminal request can reference it.
		if err := p.setItemStatus(ctx, sched.ItemID, types.ItemStatusActive); err != nil {
			return err
		}

		_, err = p.insertMessage(ctx, convo, messageParams{
			senderID: sched.BuyerID,
			content:  fmt.Sprintf("%s declined the meetup", buyerName),
			event: &types.SystemEvent{
				Kind:       types.SystemEventScheduleDenied,
				ItemID:     sched.ItemID,
				ScheduleID: sched.ID,
			},
		})
		return err
	})

	return out, err
}

// CancelSchedule may be called by either participant while the request is
// pending or accepted.
func (p *Postgres) CancelSchedule(ctx context.Context, in types.CancelSchedule) (types.ScheduledPurchase, error) {
	var out types.ScheduledPurchase

	err := p.db.RunTx(ctx, func(ctx context.Context) error {
		sched, err := p.schedule(ctx, in.ScheduleID, true)
		if err != nil {
			return err
		}

		userID := in.LoggedInUserID()

		if sched.BuyerID != userID && sched.SellerID != userID {
			return errs.NewPermissionDeniedError("not a participant of this scheduled purchase")
		}

		from := []types.ScheduleStatus{types.ScheduleStatusPending, types.ScheduleStatusAccepted}
		out, err = p.transitionSchedule(ctx, sched, types.ScheduleStatusCancelled, from, &userID)
		if err != nil {
			return err
		}

		live, err := p.itemHasLiveRequest(ctx, sched.ItemID, []string{sched.ID})
		if err != nil {
			return err
		}

		if !live {
			if err := p.setItemStatus(ctx, sched.ItemID, types.ItemStatusActive); err != nil {
				return err
			}
		}

		convo, err := p.Conversation(ctx, sched.ConversationID, userID)
		if err != nil {
			return err
		}

		_, err = p.insertMessage(ctx, convo, messageParams{
			senderID: userID,
			content:  fmt.Sprintf("%s cancelled the meetup", convo.Username(userID)),
			event: &types.SystemEvent{
				Kind:        types.SystemEventScheduleCancelled,
				ItemID:      sched.ItemID,
				ScheduleID:  sched.ID,
				CancelledBy: userID,
			},
		})
		return err
	})

	return out, err
}

// transitionSchedule moves a request to next only if it is still in one of
// the expected source states, and reports an invalid transition otherwise.
func (p *Postgres) transitionSchedule(ctx context.Context, sched types.ScheduledPurchase, next types.ScheduleStatus, from []types.ScheduleStatus, cancelledBy *string) (types.ScheduledPurchase, error) {
	var out types.ScheduledPurchase

	// responded_at records the buyer's decision only; cancels leave it be.
	const q = `
		UPDATE scheduled_purchases
		SET status = @next,
			responded_at = CASE
				WHEN @next IN ('accepted', 'declined') THEN COALESCE(responded_at, now())
				ELSE responded_at
			END,
			cancelled_by = @cancelled_by
		WHERE id = @schedule_id
			AND status = ANY(@from)
		RETURNING scheduled_purchases.*
	`

	fromStrs := make([]string, 0, len(from))
	for _, s := range from {
		fromStrs = append(fromStrs, s.String())
	}

	rows, err := p.db.Query(ctx, q, pgx.StrictNamedArgs{
		"schedule_id":  sched.ID,
		"next":         next,
		"from":         fromStrs,
		"cancelled_by": cancelledBy,
	})
	if err != nil {
		return out, fmt.Errorf("sql transition scheduled purchase: %w", err)
	}

	out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.ScheduledPurchase])
	if db.IsNotFoundError(err) {
		return out, errs.NewInvalidTransitionError(
			fmt.Sprintf("scheduled purchase is %s, cannot move to %s", sched.Status, next))
	}

	if err != nil {
		return out, fmt.Errorf("sql collect transitioned scheduled purchase: %w", err)
	}

	return out, nil
}

// itemHasLiveRequest is the shared reversion predicate: whether any
// non-terminal request outside the exclusion set still references the
// item. Single-record cancels exclude themselves; the conversation
// cascade excludes its whole deletion batch.
func (p *Postgres) itemHasLiveRequest(ctx context.Context, itemID string, excludeIDs []string) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT 1
			FROM scheduled_purchases
			WHERE item_id = @item_id
				AND status IN (@pending, @accepted)
				AND id <> ALL(@exclude_ids)
		)
	`

	if excludeIDs == nil {
		excludeIDs = []string{}
	}

	rows, err := p.db.Query(ctx, q, pgx.StrictNamedArgs{
		"item_id":     itemID,
		"pending":     types.ScheduleStatusPending,
		"accepted":    types.ScheduleStatusAccepted,
		"exclude_ids": excludeIDs,
	})
	if err != nil {
		return false, fmt.Errorf("sql check live requests for item: %w", err)
	}

	exists, err := pgx.CollectExactlyOneRow(rows, pgx.RowTo[bool])
	if err != nil {
		return false, fmt.Errorf("sql collect live request check: %w", err)
	}

	return exists, nil
}

func (p *Postgres) conversationSchedules(ctx context.Context, conversationID string) ([]types.ScheduledPurchase, error) {
	const q = `
		SELECT scheduled_purchases.*
		FROM scheduled_purchases
		WHERE scheduled_purchases.conversation_id = @conversation_id
	`

	rows, err := p.db.Query(ctx, q, pgx.StrictNamedArgs{
		"conversation_id": conversationID,
	})
	if err != nil {
		return nil, fmt.Errorf("sql select conversation schedules: %w", err)
	}

	out, err := pgx.CollectRows(rows, pgx.RowToStructByNameLax[types.ScheduledPurchase])
	if err != nil {
		return nil, fmt.Errorf("sql collect conversation schedules: %w", err)
	}

	return out, nil
}

// AcceptedScheduleForItem finds the accepted request a confirmation would
// resolve, scoped to one conversation.
func (p *Postgres) AcceptedScheduleForItem(ctx context.Context, conversationID, itemID string) (types.ScheduledPurchase, error) {
	var out types.ScheduledPurchase

	const q = `
		SELECT scheduled_purchases.*
		FROM scheduled_purchases
		WHERE scheduled_purchases.conversation_id = @conversation_id
			AND scheduled_purchases.item_id = @item_id
			AND scheduled_purchases.status = @accepted
		ORDER BY scheduled_purchases.created_at DESC
		LIMIT 1
	`

	rows, err := p.db.Query(ctx, q, pgx.StrictNamedArgs{
		"conversation_id": conversationID,
		"item_id":         itemID,
		"accepted":        types.ScheduleStatusAccepted,
	})
	if err != nil {
		return out, fmt.Errorf("sql select accepted schedule for item: %w", err)
	}

	out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.ScheduledPurchase])
	if db.IsNotFoundError(err) {
		return out, errs.NewNotFoundError("no accepted scheduled purchase for this item")
	}

	if err != nil {
		return out, fmt.Errorf("sql collect accepted schedule for item: %w", err)
	}

	return out, nil
}
