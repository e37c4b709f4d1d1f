package service

import (
	"testing"

	"github.com/tradepost/tradepost/errs"
	"github.com/tradepost/tradepost/types"
	"golang.org/x/sync/errgroup"
)

func TestService_EnsureConversation_singleRowPerPair(t *testing.T) {
	svc := newTestService(t, defaultConfirmWindow)

	alice := createTestUser(t, svc)
	bob := createTestUser(t, svc)

	first, err := svc.EnsureConversation(asUser(alice), types.EnsureConversation{OtherUserID: bob.ID})
	if err != nil {
		t.Fatalf("ensure conversation: %v", err)
	}

	// The other side resolves to the same row.
	second, err := svc.EnsureConversation(asUser(bob), types.EnsureConversation{OtherUserID: alice.ID})
	if err != nil {
		t.Fatalf("ensure conversation from other side: %v", err)
	}

	if first.ID != second.ID {
		t.Fatalf("want one conversation per pair, got %q and %q", first.ID, second.ID)
	}

	if first.LoUserID >= first.HiUserID {
		t.Fatalf("pair not canonical: lo=%q hi=%q", first.LoUserID, first.HiUserID)
	}
}

func TestService_EnsureConversation_concurrent(t *testing.T) {
	svc := newTestService(t, defaultConfirmWindow)

	alice := createTestUser(t, svc)
	bob := createTestUser(t, svc)

	ids := make([]string, 8)

	var g errgroup.Group
	for i := range ids {
		g.Go(func() error {
			ctx := asUser(alice)
			if i%2 == 0 {
				ctx = asUser(bob)
			}
			in := types.EnsureConversation{OtherUserID: bob.ID}
			if i%2 == 0 {
				in = types.EnsureConversation{OtherUserID: alice.ID}
			}

			convo, err := svc.EnsureConversation(ctx, in)
			if err != nil {
				return err
			}

			ids[i] = convo.ID
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent ensure conversation: %v", err)
	}

	for _, got := range ids[1:] {
		if got != ids[0] {
			t.Fatalf("concurrent calls produced different conversations: %q and %q", ids[0], got)
		}
	}
}

func TestService_EnsureConversation_listingIntro(t *testing.T) {
	svc := newTestService(t, defaultConfirmWindow)

	seller := createTestUser(t, svc)
	buyer := createTestUser(t, svc)
	item := createTestItem(t, svc, seller, "Road bike", 12000)

	convo, err := svc.EnsureConversation(asUser(buyer), types.EnsureConversation{
		OtherUserID: seller.ID,
		ItemID:      item.ID,
	})
	if err != nil {
		t.Fatalf("ensure conversation: %v", err)
	}

	msgs, err := svc.Messages(asUser(seller), types.ListMessages{ConversationID: convo.ID})
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}

	if len(msgs) != 1 {
		t.Fatalf("want 1 intro message, got %d", len(msgs))
	}
	if !msgs[0].IsSystem() || msgs[0].Event.Kind != types.SystemEventListingIntro {
		t.Fatalf("want listing intro system message, got %+v", msgs[0])
	}
	if msgs[0].Event.ItemID != item.ID {
		t.Fatalf("intro message item = %q, want %q", msgs[0].Event.ItemID, item.ID)
	}
}

func TestService_Conversations_pageArgsBounds(t *testing.T) {
	svc := newTestService(t, defaultConfirmWindow)

	alice := createTestUser(t, svc)

	first := uint(1)
	last := uint(1)
	oversized := uint(201)

	tt := []struct {
		name string
		args types.PageArgs
	}{
		{name: "first_and_last", args: types.PageArgs{First: &first, Last: &last}},
		{name: "first_overflow", args: types.PageArgs{First: &oversized}},
		{name: "last_overflow", args: types.PageArgs{Last: &oversized}},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Conversations(asUser(alice), types.ListConversations{PageArgs: tc.args})
			if !errs.IsInvalidArgument(err) {
				t.Fatalf("want invalid argument, got %v", err)
			}
		})
	}

	if _, err := svc.Conversations(asUser(alice), types.ListConversations{
		PageArgs: types.PageArgs{First: &first},
	}); err != nil {
		t.Fatalf("in-bounds listing: %v", err)
	}
}

func TestService_DeleteConversation(t *testing.T) {
	svc := newTestService(t, defaultConfirmWindow)

	alice := createTestUser(t, svc)
	bob := createTestUser(t, svc)

	convo, err := svc.EnsureConversation(asUser(alice), types.EnsureConversation{OtherUserID: bob.ID})
	if err != nil {
		t.Fatalf("ensure conversation: %v", err)
	}

	if _, err := svc.CreateMessage(asUser(alice), types.CreateMessage{
		ConversationID: convo.ID,
		Content:        "hi",
	}); err != nil {
		t.Fatalf("create message: %v", err)
	}

	if err := svc.DeleteConversation(asUser(alice), types.DeleteConversation{ConversationID: convo.ID}); err != nil {
		t.Fatalf("delete conversation: %v", err)
	}

	// Gone for the deleter, still visible for the other side.
	if _, err := svc.Conversation(asUser(alice), convo.ID); !errs.IsNotFound(err) {
		t.Fatalf("want not found for deleter, got %v", err)
	}
	if _, err := svc.Conversation(asUser(bob), convo.ID); err != nil {
		t.Fatalf("other participant should still see the conversation: %v", err)
	}

	// Deleting twice is a conflict.
	err = svc.DeleteConversation(asUser(alice), types.DeleteConversation{ConversationID: convo.ID})
	if !errs.IsConflict(err) && !errs.IsNotFound(err) {
		t.Fatalf("want conflict or not found on double delete, got %v", err)
	}

	// Second side deletes too and the row is removed for good.
	if err := svc.DeleteConversation(asUser(bob), types.DeleteConversation{ConversationID: convo.ID}); err != nil {
		t.Fatalf("delete conversation by other side: %v", err)
	}
	if _, err := svc.Conversation(asUser(bob), convo.ID); !errs.IsNotFound(err) {
		t.Fatalf("want not found after hard delete, got %v", err)
	}
}

func TestService_EnsureConversation_reopensAfterSoftDelete(t *testing.T) {
	svc := newTestService(t, defaultConfirmWindow)

	alice := createTestUser(t, svc)
	bob := createTestUser(t, svc)

	convo, err := svc.EnsureConversation(asUser(alice), types.EnsureConversation{OtherUserID: bob.ID})
	if err != nil {
		t.Fatalf("ensure conversation: %v", err)
	}

	if err := svc.DeleteConversation(asUser(alice), types.DeleteConversation{ConversationID: convo.ID}); err != nil {
		t.Fatalf("delete conversation: %v", err)
	}

	reopened, err := svc.EnsureConversation(asUser(alice), types.EnsureConversation{OtherUserID: bob.ID})
	if err != nil {
		t.Fatalf("re-ensure conversation: %v", err)
	}

	if reopened.ID != convo.ID {
		t.Fatalf("want the same conversation reopened, got %q and %q", convo.ID, reopened.ID)
	}

	if _, err := svc.Conversation(asUser(alice), convo.ID); err != nil {
		t.Fatalf("reopened conversation should be visible: %v", err)
	}
}

func TestService_DeleteConversation_cancelsLiveRequests(t *testing.T) {
	svc := newTestService(t, defaultConfirmWindow)

	seller := createTestUser(t, svc)
	buyer := createTestUser(t, svc)
	item := createTestItem(t, svc, seller, "Camera", 30000)

	convo, err := svc.EnsureConversation(asUser(buyer), types.EnsureConversation{
		OtherUserID: seller.ID,
		ItemID:      item.ID,
	})
	if err != nil {
		t.Fatalf("ensure conversation: %v", err)
	}

	sched := proposeTestSchedule(t, svc, seller, convo.ID, item.ID)

	if _, err := svc.RespondSchedule(asUser(buyer), types.RespondSchedule{
		ScheduleID: sched.ID,
		Accept:     true,
	}); err != nil {
		t.Fatalf("accept schedule: %v", err)
	}

	if err := svc.DeleteConversation(asUser(buyer), types.DeleteConversation{ConversationID: convo.ID}); err != nil {
		t.Fatalf("delete conversation: %v", err)
	}

	got, err := svc.Item(asUser(seller), item.ID)
	if err != nil {
		t.Fatalf("fetch item: %v", err)
	}
	if got.Status != types.ItemStatusActive {
		t.Fatalf("item status = %s, want %s after deletion cancelled the request", got.Status, types.ItemStatusActive)
	}

	if _, err := svc.Schedule(asUser(seller), sched.ID); !errs.IsNotFound(err) {
		t.Fatalf("want schedule removed with the conversation, got %v", err)
	}
}
