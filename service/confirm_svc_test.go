package service

import (
	"testing"
	"time"

	"github.com/tradepost/tradepost/errs"
	"github.com/tradepost/tradepost/types"
)

func TestService_ConfirmationAvailability(t *testing.T) {
	svc := newTestService(t, defaultConfirmWindow)
	seller, buyer, convo, item := setupNegotiation(t, svc)

	// Before any schedule is accepted there is nothing to confirm.
	avail, err := svc.ConfirmationAvailability(asUser(seller), types.RetrieveConfirmationStatus{
		ConversationID: convo.ID,
		ItemID:         item.ID,
	})
	if err != nil {
		t.Fatalf("confirmation availability: %v", err)
	}
	if avail.CanConfirm || avail.ReasonCode != types.ConfirmationReasonMissingSchedule {
		t.Fatalf("want missing schedule, got %+v", avail)
	}

	sched := proposeTestSchedule(t, svc, seller, convo.ID, item.ID)

	// A pending schedule is still not confirmable.
	avail, err = svc.ConfirmationAvailability(asUser(seller), types.RetrieveConfirmationStatus{
		ConversationID: convo.ID,
		ItemID:         item.ID,
	})
	if err != nil {
		t.Fatalf("confirmation availability: %v", err)
	}
	if avail.CanConfirm {
		t.Fatalf("pending schedule should not be confirmable: %+v", avail)
	}

	if _, err := svc.RespondSchedule(asUser(buyer), types.RespondSchedule{ScheduleID: sched.ID, Accept: true}); err != nil {
		t.Fatalf("accept schedule: %v", err)
	}

	avail, err = svc.ConfirmationAvailability(asUser(seller), types.RetrieveConfirmationStatus{
		ConversationID: convo.ID,
		ItemID:         item.ID,
	})
	if err != nil {
		t.Fatalf("confirmation availability: %v", err)
	}
	if !avail.CanConfirm || avail.ScheduleID != sched.ID {
		t.Fatalf("want confirmable via schedule %s, got %+v", sched.ID, avail)
	}
}

func TestService_ConfirmPurchase_happyPath(t *testing.T) {
	svc := newTestService(t, defaultConfirmWindow)
	seller, buyer, convo, item := setupNegotiation(t, svc)

	sched := proposeTestSchedule(t, svc, seller, convo.ID, item.ID)
	if _, err := svc.RespondSchedule(asUser(buyer), types.RespondSchedule{ScheduleID: sched.ID, Accept: true}); err != nil {
		t.Fatalf("accept schedule: %v", err)
	}

	finalPrice := int64(7500)
	confirm, err := svc.ProposeConfirmation(asUser(seller), types.ProposeConfirmation{
		ScheduleID: sched.ID,
		Successful: true,
		FinalPrice: &finalPrice,
	})
	if err != nil {
		t.Fatalf("propose confirmation: %v", err)
	}
	if confirm.Status != types.ConfirmationStatusPending {
		t.Fatalf("confirmation status = %s, want %s", confirm.Status, types.ConfirmationStatusPending)
	}

	// A second proposal while one is pending is a conflict.
	_, err = svc.ProposeConfirmation(asUser(seller), types.ProposeConfirmation{
		ScheduleID: sched.ID,
		Successful: true,
		FinalPrice: &finalPrice,
	})
	if !errs.IsConflict(err) {
		t.Fatalf("want conflict for duplicate confirmation, got %v", err)
	}

	avail, err := svc.ConfirmationAvailability(asUser(seller), types.RetrieveConfirmationStatus{
		ConversationID: convo.ID,
		ItemID:         item.ID,
	})
	if err != nil {
		t.Fatalf("confirmation availability: %v", err)
	}
	if avail.CanConfirm || avail.ReasonCode != types.ConfirmationReasonPendingRequest {
		t.Fatalf("want pending request, got %+v", avail)
	}

	// Only the buyer may respond.
	_, err = svc.RespondConfirmation(asUser(seller), types.RespondConfirmation{ConfirmationID: confirm.ID, Accept: true})
	if !errs.IsPermissionDenied(err) {
		t.Fatalf("want permission denied for seller response, got %v", err)
	}

	accepted, err := svc.RespondConfirmation(asUser(buyer), types.RespondConfirmation{ConfirmationID: confirm.ID, Accept: true})
	if err != nil {
		t.Fatalf("accept confirmation: %v", err)
	}
	if accepted.Status != types.ConfirmationStatusAccepted {
		t.Fatalf("confirmation status = %s, want %s", accepted.Status, types.ConfirmationStatusAccepted)
	}

	got, err := svc.Item(asUser(seller), item.ID)
	if err != nil {
		t.Fatalf("fetch item: %v", err)
	}
	if got.Status != types.ItemStatusSold {
		t.Fatalf("item status = %s, want %s", got.Status, types.ItemStatusSold)
	}

	avail, err = svc.ConfirmationAvailability(asUser(seller), types.RetrieveConfirmationStatus{
		ConversationID: convo.ID,
		ItemID:         item.ID,
	})
	if err != nil {
		t.Fatalf("confirmation availability: %v", err)
	}
	if avail.CanConfirm || avail.ReasonCode != types.ConfirmationReasonAlreadyConfirmed {
		t.Fatalf("want already confirmed, got %+v", avail)
	}
}

func TestService_ConfirmPurchase_denyFreesItem(t *testing.T) {
	svc := newTestService(t, defaultConfirmWindow)
	seller, buyer, convo, item := setupNegotiation(t, svc)

	sched := proposeTestSchedule(t, svc, seller, convo.ID, item.ID)
	if _, err := svc.RespondSchedule(asUser(buyer), types.RespondSchedule{ScheduleID: sched.ID, Accept: true}); err != nil {
		t.Fatalf("accept schedule: %v", err)
	}

	confirm, err := svc.ProposeConfirmation(asUser(seller), types.ProposeConfirmation{
		ScheduleID:    sched.ID,
		Successful:    false,
		FailureReason: types.FailureReasonNoShow,
	})
	if err != nil {
		t.Fatalf("propose confirmation: %v", err)
	}

	denied, err := svc.RespondConfirmation(asUser(buyer), types.RespondConfirmation{ConfirmationID: confirm.ID, Accept: false})
	if err != nil {
		t.Fatalf("deny confirmation: %v", err)
	}
	if denied.Status != types.ConfirmationStatusDenied {
		t.Fatalf("confirmation status = %s, want %s", denied.Status, types.ConfirmationStatusDenied)
	}

	got, err := svc.Item(asUser(seller), item.ID)
	if err != nil {
		t.Fatalf("fetch item: %v", err)
	}
	if got.Status != types.ItemStatusActive {
		t.Fatalf("item status = %s, want %s after deny", got.Status, types.ItemStatusActive)
	}
}

func TestService_ConfirmPurchase_autoAccept(t *testing.T) {
	svc := newTestService(t, time.Millisecond*50)
	seller, buyer, convo, item := setupNegotiation(t, svc)

	sched := proposeTestSchedule(t, svc, seller, convo.ID, item.ID)
	if _, err := svc.RespondSchedule(asUser(buyer), types.RespondSchedule{ScheduleID: sched.ID, Accept: true}); err != nil {
		t.Fatalf("accept schedule: %v", err)
	}

	finalPrice := int64(7500)
	confirm, err := svc.ProposeConfirmation(asUser(seller), types.ProposeConfirmation{
		ScheduleID: sched.ID,
		Successful: true,
		FinalPrice: &finalPrice,
	})
	if err != nil {
		t.Fatalf("propose confirmation: %v", err)
	}

	time.Sleep(time.Millisecond * 100)

	// The late response triggers the auto-accept and is rejected.
	_, err = svc.RespondConfirmation(asUser(buyer), types.RespondConfirmation{ConfirmationID: confirm.ID, Accept: false})
	if !errs.IsInvalidTransition(err) {
		t.Fatalf("want invalid transition for late response, got %v", err)
	}

	got, err := svc.Item(asUser(seller), item.ID)
	if err != nil {
		t.Fatalf("fetch item: %v", err)
	}
	if got.Status != types.ItemStatusSold {
		t.Fatalf("item status = %s, want %s after auto-accept", got.Status, types.ItemStatusSold)
	}

	avail, err := svc.ConfirmationAvailability(asUser(seller), types.RetrieveConfirmationStatus{
		ConversationID: convo.ID,
		ItemID:         item.ID,
	})
	if err != nil {
		t.Fatalf("confirmation availability: %v", err)
	}
	if avail.CanConfirm || avail.ReasonCode != types.ConfirmationReasonAlreadyConfirmed {
		t.Fatalf("want already confirmed after auto-accept, got %+v", avail)
	}
}

func TestService_ProposeConfirmation_requiresAcceptedSchedule(t *testing.T) {
	svc := newTestService(t, defaultConfirmWindow)
	seller, _, convo, item := setupNegotiation(t, svc)

	sched := proposeTestSchedule(t, svc, seller, convo.ID, item.ID)

	finalPrice := int64(7500)
	_, err := svc.ProposeConfirmation(asUser(seller), types.ProposeConfirmation{
		ScheduleID: sched.ID,
		Successful: true,
		FinalPrice: &finalPrice,
	})
	if !errs.IsInvalidTransition(err) {
		t.Fatalf("want invalid transition for pending schedule, got %v", err)
	}
}

func TestService_ProposeConfirmation_validation(t *testing.T) {
	svc := newTestService(t, defaultConfirmWindow)

	in := types.ProposeConfirmation{
		ScheduleID: "not-an-id",
		Successful: false,
	}
	seller := createTestUser(t, svc)
	if _, err := svc.ProposeConfirmation(asUser(seller), in); err == nil {
		t.Fatal("want validation error for missing failure reason and bad id, got nil")
	}

	in = types.ProposeConfirmation{
		ScheduleID:    "not-an-id",
		Successful:    false,
		FailureReason: types.FailureReasonOther,
	}
	if _, err := svc.ProposeConfirmation(asUser(seller), in); err == nil {
		t.Fatal("want validation error for other without notes, got nil")
	}
}
