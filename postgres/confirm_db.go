package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hako/durafmt"
	"github.com/jackc/pgx/v5"
	"github.com/nicolasparada/go-db"
	"github.com/tradepost/tradepost/errs"
	"github.com/tradepost/tradepost/id"
	"github.com/tradepost/tradepost/types"
)

// ConfirmationAvailability answers whether the seller can confirm the
// purchase of an item within a conversation right now. Expired pending
// confirmations are resolved first, so the answer never reflects a
// nominally pending record past its deadline.
func (p *Postgres) ConfirmationAvailability(ctx context.Context, in types.RetrieveConfirmationStatus) (types.ConfirmationAvailability, error) {
	var out types.ConfirmationAvailability

	err := p.db.RunTx(ctx, func(ctx context.Context) error {
		if _, err := p.Conversation(ctx, in.ConversationID, in.LoggedInUserID()); err != nil {
			return err
		}

		if err := p.resolveExpiredForItem(ctx, in.ConversationID, in.ItemID); err != nil {
			return err
		}

		confirmed, err := p.hasConfirmedForItem(ctx, in.ConversationID, in.ItemID)
		if err != nil {
			return err
		}

		if confirmed {
			out = types.ConfirmationAvailability{
				ReasonCode: types.ConfirmationReasonAlreadyConfirmed,
				Message:    "This purchase has already been confirmed",
			}
			return nil
		}

		pending, err := p.pendingConfirmationForItem(ctx, in.ConversationID, in.ItemID)
		if err != nil && !errs.IsNotFound(err) {
			return err
		}

		if err == nil {
			remaining := durafmt.Parse(time.Until(pending.ExpiresAt).Round(time.Minute)).LimitFirstN(1)
			out = types.ConfirmationAvailability{
				ReasonCode: types.ConfirmationReasonPendingRequest,
				Message:    fmt.Sprintf("Waiting for the buyer to respond; auto-accepts in %s", remaining),
			}
			return nil
		}

		sched, err := p.AcceptedScheduleForItem(ctx, in.ConversationID, in.ItemID)
		if errs.IsNotFound(err) {
			out = types.ConfirmationAvailability{
				ReasonCode: types.ConfirmationReasonMissingSchedule,
				Message:    "No accepted meetup exists for this item yet",
			}
			return nil
		}

		if err != nil {
			return err
		}

		out = types.ConfirmationAvailability{
			CanConfirm: true,
			ScheduleID: sched.ID,
		}
		return nil
	})

	return out, err
}

// ProposeConfirmation records the seller's attestation of the meetup
// outcome. The backing schedule must still be accepted and must not have a
// live or already-confirmed record.
func (p *Postgres) ProposeConfirmation(ctx context.Context, in types.ProposeConfirmation, window time.Duration) (types.PurchaseConfirmation, error) {
	var out types.PurchaseConfirmation

	err := p.db.RunTx(ctx, func(ctx context.Context) error {
		sched, err := p.schedule(ctx, in.ScheduleID, true)
		if err != nil {
			return err
		}

		if sched.SellerID != in.LoggedInUserID() {
			return errs.NewPermissionDeniedError("only the seller may confirm the purchase")
		}

		if sched.Status != types.ScheduleStatusAccepted {
			return errs.NewInvalidTransitionError(
				fmt.Sprintf("scheduled purchase is %s, confirmation requires accepted", sched.Status))
		}

		if err := p.resolveExpiredForItem(ctx, sched.ConversationID, sched.ItemID); err != nil {
			return err
		}

		confirmed, err := p.hasConfirmedForSchedule(ctx, sched.ID)
		if err != nil {
			return err
		}

		if confirmed {
			return errs.NewConflictError("this purchase has already been confirmed")
		}

		var failureReason *types.FailureReason
		if !in.Successful {
			failureReason = &in.FailureReason
		}

		const q = `
			INSERT INTO purchase_confirmations (id, schedule_id, conversation_id, item_id, final_price, seller_notes, successful, failure_reason, failure_notes, status, expires_at)
			VALUES (@confirmation_id, @schedule_id, @conversation_id, @item_id, @final_price, @seller_notes, @successful, @failure_reason, @failure_notes, @status, now() + make_interval(secs => @window_seconds))
			RETURNING purchase_confirmations.*
		`

		rows, err := p.db.Query(ctx, q, pgx.StrictNamedArgs{
			"confirmation_id": id.Generate(),
			"schedule_id":     sched.ID,
			"conversation_id": sched.ConversationID,
			"item_id":         sched.ItemID,
			"final_price":     in.FinalPrice,
			"seller_notes":    in.SellerNotes,
			"successful":      in.Successful,
			"failure_reason":  failureReason,
			"failure_notes":   in.FailureNotes,
			"status":          types.ConfirmationStatusPending,
			"window_seconds":  window.Seconds(),
		})
		if err != nil {
			return fmt.Errorf("sql insert purchase confirmation: %w", err)
		}

		out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.PurchaseConfirmation])
		if isUniqueViolation(err) {
			return errs.NewConflictError("a confirmation is already pending for this purchase")
		}

		if err != nil {
			return fmt.Errorf("sql collect inserted purchase confirmation: %w", err)
		}

		convo, err := p.Conversation(ctx, sched.ConversationID, in.LoggedInUserID())
		if err != nil {
			return err
		}

		outcome := "successful"
		if !in.Successful {
			outcome = "unsuccessful"
		}

		windowText := durafmt.Parse(window).LimitFirstN(1)

		_, err = p.insertMessage(ctx, convo, messageParams{
			senderID: sched.SellerID,
			content: fmt.Sprintf("%s marked the purchase as %s. %s has %s to respond",
				convo.Username(sched.SellerID), outcome, convo.Username(sched.BuyerID), windowText),
			event: &types.SystemEvent{
				Kind:           types.SystemEventConfirmRequest,
				ItemID:         sched.ItemID,
				ScheduleID:     sched.ID,
				ConfirmationID: out.ID,
				FinalPrice:     out.FinalPrice,
				Successful:     &out.Successful,
				ExpiresAt:      &out.ExpiresAt,
			},
		})
		return err
	})

	return out, err
}

// errConfirmationExpired aborts the response transaction before any write
// so the auto-accept can run in its own transaction.
var errConfirmationExpired = errors.New("confirmation expired")

// RespondConfirmation applies the buyer's accept or deny while the record
// is pending and unexpired. An expired record auto-accepts instead and the
// response is rejected.
func (p *Postgres) RespondConfirmation(ctx context.Context, in types.RespondConfirmation) (types.PurchaseConfirmation, error) {
	var out types.PurchaseConfirmation

	err := p.db.RunTx(ctx, func(ctx context.Context) error {
		c, err := p.confirmation(ctx, in.ConfirmationID, true)
		if err != nil {
			return err
		}

		sched, err := p.schedule(ctx, c.ScheduleID, false)
		if err != nil {
			return err
		}

		if sched.BuyerID != in.LoggedInUserID() {
			return errs.NewPermissionDeniedError("only the buyer may respond to the confirmation")
		}

		if c.Expired(time.Now()) {
			return errConfirmationExpired
		}

		next := types.ConfirmationStatusDenied
		if in.Accept {
			next = types.ConfirmationStatusAccepted
		}

		out, err = p.transitionConfirmation(ctx, c, next)
		if err != nil {
			return err
		}

		if err := p.applyConfirmationOutcome(ctx, out); err != nil {
			return err
		}

		convo, err := p.Conversation(ctx, c.ConversationID, in.LoggedInUserID())
		if err != nil {
			return err
		}

		buyerName := convo.Username(sched.BuyerID)

		kind := types.SystemEventConfirmDenied
		content := fmt.Sprintf("%s disputed the purchase confirmation", buyerName)
		if in.Accept {
			kind = types.SystemEventConfirmAccepted
			content = fmt.Sprintf("%s accepted the purchase confirmation", buyerName)
		}

		_, err = p.insertMessage(ctx, convo, messageParams{
			senderID: sched.BuyerID,
			content:  content,
			event: &types.SystemEvent{
				Kind:           kind,
				ItemID:         c.ItemID,
				ScheduleID:     c.ScheduleID,
				ConfirmationID: c.ID,
				FinalPrice:     c.FinalPrice,
				Successful:     &c.Successful,
			},
		})
		return err
	})

	if errors.Is(err, errConfirmationExpired) {
		if rerr := p.ResolveExpired(ctx, in.ConfirmationID); rerr != nil {
			return out, rerr
		}
		return out, errs.NewInvalidTransitionError("response window has elapsed; the confirmation auto-accepted")
	}

	return out, err
}

// ResolveExpired auto-accepts one expired pending confirmation. Invoked
// by the periodic sweep; the lazy path goes through resolveExpiredForItem.
func (p *Postgres) ResolveExpired(ctx context.Context, confirmationID string) error {
	return p.db.RunTx(ctx, func(ctx context.Context) error {
		c, err := p.confirmation(ctx, confirmationID, true)
		if err != nil {
			return err
		}

		if !c.Expired(time.Now()) {
			return nil
		}

		sched, err := p.schedule(ctx, c.ScheduleID, false)
		if err != nil {
			return err
		}

		return p.autoAcceptConfirmation(ctx, c, sched)
	})
}

// ExpiredConfirmationIDs feeds the sweep.
func (p *Postgres) ExpiredConfirmationIDs(ctx context.Context) ([]string, error) {
	const q = `
		SELECT id
		FROM purchase_confirmations
		WHERE status = @pending
			AND expires_at < now()
	`

	rows, err := p.db.Query(ctx, q, pgx.StrictNamedArgs{
		"pending": types.ConfirmationStatusPending,
	})
	if err != nil {
		return nil, fmt.Errorf("sql select expired confirmations: %w", err)
	}

	out, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("sql collect expired confirmations: %w", err)
	}

	return out, nil
}

func (p *Postgres) resolveExpiredForItem(ctx context.Context, conversationID, itemID string) error {
	c, err := p.pendingConfirmationForItem(ctx, conversationID, itemID)
	if errs.IsNotFound(err) {
		return nil
	}

	if err != nil {
		return err
	}

	if !c.Expired(time.Now()) {
		return nil
	}

	sched, err := p.schedule(ctx, c.ScheduleID, false)
	if err != nil {
		return err
	}

	return p.autoAcceptConfirmation(ctx, c, sched)
}

// autoAcceptConfirmation applies the timeout resolution: same effects as a
// buyer accept, recorded as auto_accepted.
func (p *Postgres) autoAcceptConfirmation(ctx context.Context, c types.PurchaseConfirmation, sched types.ScheduledPurchase) error {
	resolved, err := p.transitionConfirmation(ctx, c, types.ConfirmationStatusAutoAccepted)
	if err != nil {
		return err
	}

	if err := p.applyConfirmationOutcome(ctx, resolved); err != nil {
		return err
	}

	convo, err := p.conversationByID(ctx, c.ConversationID)
	if err != nil {
		return err
	}

	windowText := durafmt.Parse(c.ExpiresAt.Sub(c.CreatedAt).Round(time.Minute)).LimitFirstN(1)

	_, err = p.insertMessage(ctx, convo, messageParams{
		senderID: sched.BuyerID,
		content:  fmt.Sprintf("The purchase confirmation was automatically accepted after %s without a response", windowText),
		event: &types.SystemEvent{
			Kind:           types.SystemEventConfirmAutoAccepted,
			ItemID:         c.ItemID,
			ScheduleID:     c.ScheduleID,
			ConfirmationID: c.ID,
			FinalPrice:     c.FinalPrice,
			Successful:     &c.Successful,
		},
	})
	return err
}

// applyConfirmationOutcome writes the item-status side effect of a
// terminal confirmation.
func (p *Postgres) applyConfirmationOutcome(ctx context.Context, c types.PurchaseConfirmation) error {
	switch {
	case c.Status.Confirmed() && c.Successful:
		return p.setItemStatus(ctx, c.ItemID, types.ItemStatusSold)
	case c.Status.Terminal():
		// A denied confirmation or an unsuccessful meetup frees the item.
		return p.setItemStatus(ctx, c.ItemID, types.ItemStatusActive)
	}
	return nil
}

func (p *Postgres) transitionConfirmation(ctx context.Context, c types.PurchaseConfirmation, next types.ConfirmationStatus) (types.PurchaseConfirmation, error) {
	var out types.PurchaseConfirmation

	const q = `
		UPDATE purchase_confirmations
		SET status = @next,
			resolved_at = now()
		WHERE id = @confirmation_id
			AND status = @pending
		RETURNING purchase_confirmations.*
	`

	rows, err := p.db.Query(ctx, q, pgx.StrictNamedArgs{
		"confirmation_id": c.ID,
		"next":            next,
		"pending":         types.ConfirmationStatusPending,
	})
	if err != nil {
		return out, fmt.Errorf("sql transition purchase confirmation: %w", err)
	}

	out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.PurchaseConfirmation])
	if db.IsNotFoundError(err) {
		return out, errs.NewInvalidTransitionError(
			fmt.Sprintf("purchase confirmation is %s, cannot move to %s", c.Status, next))
	}

	if err != nil {
		return out, fmt.Errorf("sql collect transitioned purchase confirmation: %w", err)
	}

	return out, nil
}

func (p *Postgres) confirmation(ctx context.Context, confirmationID string, forUpdate bool) (types.PurchaseConfirmation, error) {
	var out types.PurchaseConfirmation

	q := `
		SELECT purchase_confirmations.*
		FROM purchase_confirmations
		WHERE purchase_confirmations.id = @confirmation_id
	`
	if forUpdate {
		q += ` FOR UPDATE`
	}

	rows, err := p.db.Query(ctx, q, pgx.StrictNamedArgs{
		"confirmation_id": confirmationID,
	})
	if err != nil {
		return out, fmt.Errorf("sql select purchase confirmation: %w", err)
	}

	out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.PurchaseConfirmation])
	if db.IsNotFoundError(err) {
		return out, errs.NewNotFoundError("purchase confirmation not found")
	}

	if err != nil {
		return out, fmt.Errorf("sql collect purchase confirmation: %w", err)
	}

	return out, nil
}

func (p *Postgres) pendingConfirmationForItem(ctx context.Context, conversationID, itemID string) (types.PurchaseConfirmation, error) {
	var out types.PurchaseConfirmation

	const q = `
		SELECT purchase_confirmations.*
		FROM purchase_confirmations
		WHERE purchase_confirmations.conversation_id = @conversation_id
			AND purchase_confirmations.item_id = @item_id
			AND purchase_confirmations.status = @pending
		FOR UPDATE
	`

	rows, err := p.db.Query(ctx, q, pgx.StrictNamedArgs{
		"conversation_id": conversationID,
		"item_id":         itemID,
		"pending":         types.ConfirmationStatusPending,
	})
	if err != nil {
		return out, fmt.Errorf("sql select pending confirmation: %w", err)
	}

	out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.PurchaseConfirmation])
	if db.IsNotFoundError(err) {
		return out, errs.NewNotFoundError("no pending confirmation")
	}

	if err != nil {
		return out, fmt.Errorf("sql collect pending confirmation: %w", err)
	}

	return out, nil
}

func (p *Postgres) hasConfirmedForItem(ctx context.Context, conversationID, itemID string) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT 1
			FROM purchase_confirmations
			WHERE conversation_id = @conversation_id
				AND item_id = @item_id
				AND status IN (@accepted, @auto_accepted)
		)
	`

	rows, err := p.db.Query(ctx, q, pgx.StrictNamedArgs{
		"conversation_id": conversationID,
		"item_id":         itemID,
		"accepted":        types.ConfirmationStatusAccepted,
		"auto_accepted":   types.ConfirmationStatusAutoAccepted,
	})
	if err != nil {
		return false, fmt.Errorf("sql check confirmed for item: %w", err)
	}

	exists, err := pgx.CollectExactlyOneRow(rows, pgx.RowTo[bool])
	if err != nil {
		return false, fmt.Errorf("sql collect confirmed check: %w", err)
	}

	return exists, nil
}

func (p *Postgres) hasConfirmedForSchedule(ctx context.Context, scheduleID string) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT 1
			FROM purchase_confirmations
			WHERE schedule_id = @schedule_id
				AND status IN (@accepted, @auto_accepted)
		)
	`

	rows, err := p.db.Query(ctx, q, pgx.StrictNamedArgs{
		"schedule_id":   scheduleID,
		"accepted":      types.ConfirmationStatusAccepted,
		"auto_accepted": types.ConfirmationStatusAutoAccepted,
	})
	if err != nil {
		return false, fmt.Errorf("sql check confirmed for schedule: %w", err)
	}

	exists, err := pgx.CollectExactlyOneRow(rows, pgx.RowTo[bool])
	if err != nil {
		return false, fmt.Errorf("sql collect confirmed check: %w", err)
	}

	return exists, nil
}

func (p *Postgres) conversationByID(ctx context.Context, conversationID string) (types.Conversation, error) {
	var out types.Conversation

	const q = `
		SELECT conversations.*
		FROM conversations
		WHERE conversations.id = @conversation_id
	`

	rows, err := p.db.Query(ctx, q, pgx.StrictNamedArgs{
		"conversation_id": conversationID,
	})
	if err != nil {
		return out, fmt.Errorf("sql select conversation by id: %w", err)
	}

	out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.Conversation])
	if db.IsNotFoundError(err) {
		return out, errs.NewNotFoundError("conversation not found")
	}

	if err != nil {
		return out, fmt.Errorf("sql collect conversation by id: %w", err)
	}

	return out, nil
}
