package service

import (
	"strings"
	"testing"
	"time"

	"github.com/tradepost/tradepost/errs"
	"github.com/tradepost/tradepost/types"
)

func setupNegotiation(t *testing.T, svc *Service) (seller, buyer types.User, convo types.Conversation, item types.Item) {
	t.Helper()

	seller = createTestUser(t, svc)
	buyer = createTestUser(t, svc)
	item = createTestItem(t, svc, seller, "Mechanical keyboard", 8000)

	convo, err := svc.EnsureConversation(asUser(buyer), types.EnsureConversation{
		OtherUserID: seller.ID,
		ItemID:      item.ID,
	})
	if err != nil {
		t.Fatalf("ensure conversation: %v", err)
	}

	return seller, buyer, convo, item
}

func TestService_ProposeSchedule(t *testing.T) {
	svc := newTestService(t, defaultConfirmWindow)
	seller, buyer, convo, item := setupNegotiation(t, svc)

	// Only the item's seller may propose.
	price := int64(8000)
	_, err := svc.ProposeSchedule(asUser(buyer), types.ProposeSchedule{
		ConversationID: convo.ID,
		ItemID:         item.ID,
		MeetingAt:      time.Now().Add(time.Hour * 24),
		Location:       "Market square",
		Price:          &price,
	})
	if !errs.IsPermissionDenied(err) {
		t.Fatalf("want permission denied for buyer proposal, got %v", err)
	}

	sched := proposeTestSchedule(t, svc, seller, convo.ID, item.ID)

	if sched.Status != types.ScheduleStatusPending {
		t.Fatalf("schedule status = %s, want %s", sched.Status, types.ScheduleStatusPending)
	}

	got, err := svc.Item(asUser(seller), item.ID)
	if err != nil {
		t.Fatalf("fetch item: %v", err)
	}
	if got.Status != types.ItemStatusPending {
		t.Fatalf("item status = %s, want %s", got.Status, types.ItemStatusPending)
	}

	// One live request per item.
	_, err = svc.ProposeSchedule(asUser(seller), types.ProposeSchedule{
		ConversationID: convo.ID,
		ItemID:         item.ID,
		MeetingAt:      time.Now().Add(time.Hour * 24),
		Location:       "Market square",
		Price:          &price,
	})
	if !errs.IsConflict(err) {
		t.Fatalf("want conflict for second live request, got %v", err)
	}

	msgs, err := svc.Messages(asUser(buyer), types.ListMessages{ConversationID: convo.ID})
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	last := msgs[len(msgs)-1]
	if !last.IsSystem() || last.Event.Kind != types.SystemEventScheduleRequest {
		t.Fatalf("want schedule request system message, got %+v", last)
	}
}

func TestService_RespondSchedule_accept(t *testing.T) {
	svc := newTestService(t, defaultConfirmWindow)
	seller, buyer, convo, item := setupNegotiation(t, svc)

	sched := proposeTestSchedule(t, svc, seller, convo.ID, item.ID)

	// Only the buyer may respond.
	_, err := svc.RespondSchedule(asUser(seller), types.RespondSchedule{ScheduleID: sched.ID, Accept: true})
	if !errs.IsPermissionDenied(err) {
		t.Fatalf("want permission denied for seller response, got %v", err)
	}

	accepted, err := svc.RespondSchedule(asUser(buyer), types.RespondSchedule{ScheduleID: sched.ID, Accept: true})
	if err != nil {
		t.Fatalf("accept schedule: %v", err)
	}

	if accepted.Status != types.ScheduleStatusAccepted {
		t.Fatalf("schedule status = %s, want %s", accepted.Status, types.ScheduleStatusAccepted)
	}
	if accepted.RespondedAt == nil {
		t.Fatal("responded at not set on accept")
	}
	if len(accepted.VerificationCode) != 6 {
		t.Fatalf("verification code %q, want 6 characters", accepted.VerificationCode)
	}
	for _, r := range accepted.VerificationCode {
		if !strings.ContainsRune("23456789ABCDEFGHJKLMNPQRSTUVWXYZ", r) {
			t.Fatalf("verification code %q contains ambiguous character %q", accepted.VerificationCode, r)
		}
	}

	// Accepting again is rejected.
	_, err = svc.RespondSchedule(asUser(buyer), types.RespondSchedule{ScheduleID: sched.ID, Accept: true})
	if !errs.IsInvalidTransition(err) {
		t.Fatalf("want invalid transition on double accept, got %v", err)
	}
}

func TestService_RespondSchedule_decline(t *testing.T) {
	svc := newTestService(t, defaultConfirmWindow)
	seller, buyer, convo, item := setupNegotiation(t, svc)

	sched := proposeTestSchedule(t, svc, seller, convo.ID, item.ID)

	declined, err := svc.RespondSchedule(asUser(buyer), types.RespondSchedule{ScheduleID: sched.ID, Accept: false})
	if err != nil {
		t.Fatalf("decline schedule: %v", err)
	}
	if declined.Status != types.ScheduleStatusDeclined {
		t.Fatalf("schedule status = %s, want %s", declined.Status, types.ScheduleStatusDeclined)
	}

	got, err := svc.Item(asUser(seller), item.ID)
	if err != nil {
		t.Fatalf("fetch item: %v", err)
	}
	if got.Status != types.ItemStatusActive {
		t.Fatalf("item status = %s, want %s after decline", got.Status, types.ItemStatusActive)
	}

	// Terminal states reject cancellation.
	_, err = svc.CancelSchedule(asUser(seller), types.CancelSchedule{ScheduleID: sched.ID})
	if !errs.IsInvalidTransition(err) {
		t.Fatalf("want invalid transition cancelling declined schedule, got %v", err)
	}

	// The declined request no longer blocks the item.
	resched := proposeTestSchedule(t, svc, seller, convo.ID, item.ID)
	if resched.Status != types.ScheduleStatusPending {
		t.Fatalf("re-proposed schedule status = %s, want %s", resched.Status, types.ScheduleStatusPending)
	}
}

func TestService_CancelSchedule(t *testing.T) {
	svc := newTestService(t, defaultConfirmWindow)
	seller, buyer, convo, item := setupNegotiation(t, svc)

	sched := proposeTestSchedule(t, svc, seller, convo.ID, item.ID)

	if _, err := svc.RespondSchedule(asUser(buyer), types.RespondSchedule{ScheduleID: sched.ID, Accept: true}); err != nil {
		t.Fatalf("accept schedule: %v", err)
	}

	// Either participant may cancel an accepted schedule.
	cancelled, err := svc.CancelSchedule(asUser(buyer), types.CancelSchedule{ScheduleID: sched.ID})
	if err != nil {
		t.Fatalf("cancel schedule: %v", err)
	}
	if cancelled.Status != types.ScheduleStatusCancelled {
		t.Fatalf("schedule status = %s, want %s", cancelled.Status, types.ScheduleStatusCancelled)
	}
	if cancelled.CancelledBy == nil || *cancelled.CancelledBy != buyer.ID {
		t.Fatalf("cancelled by = %v, want %s", cancelled.CancelledBy, buyer.ID)
	}

	got, err := svc.Item(asUser(seller), item.ID)
	if err != nil {
		t.Fatalf("fetch item: %v", err)
	}
	if got.Status != types.ItemStatusActive {
		t.Fatalf("item status = %s, want %s after cancel", got.Status, types.ItemStatusActive)
	}

	// The cancelled request no longer blocks the item.
	resched := proposeTestSchedule(t, svc, seller, convo.ID, item.ID)
	if resched.Status != types.ScheduleStatusPending {
		t.Fatalf("re-proposed schedule status = %s, want %s", resched.Status, types.ScheduleStatusPending)
	}
}

func TestService_ProposeSchedule_validation(t *testing.T) {
	svc := newTestService(t, defaultConfirmWindow)
	seller, _, convo, item := setupNegotiation(t, svc)

	price := int64(1000)

	tt := []struct {
		name string
		in   types.ProposeSchedule
	}{
		{
			name: "meeting_in_the_past",
			in: types.ProposeSchedule{
				ConversationID: convo.ID,
				ItemID:         item.ID,
				MeetingAt:      time.Now().Add(-time.Hour),
				Location:       "Market square",
				Price:          &price,
			},
		},
		{
			name: "missing_price_and_trade",
			in: types.ProposeSchedule{
				ConversationID: convo.ID,
				ItemID:         item.ID,
				MeetingAt:      time.Now().Add(time.Hour),
				Location:       "Market square",
			},
		},
		{
			name: "both_price_and_trade",
			in: types.ProposeSchedule{
				ConversationID: convo.ID,
				ItemID:         item.ID,
				MeetingAt:      time.Now().Add(time.Hour),
				Location:       "Market square",
				Price:          &price,
				TradeDescription: "my old laptop",
			},
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.ProposeSchedule(asUser(seller), tc.in); err == nil {
				t.Fatal("want validation error, got nil")
			}
		})
	}
}
