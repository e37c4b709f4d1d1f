package types

import (
	"time"

	"github.com/tradepost/tradepost/id"
	"github.com/tradepost/tradepost/validator"
)

// Conversation is the unique message thread between exactly two users.
// Participants are stored as the canonical ordered pair (lo < hi) so that
// at most one row can exist per unordered pair.
type Conversation struct {
	ID         string    `db:"id"`
	LoUserID   string    `db:"lo_user_id"`
	HiUserID   string    `db:"hi_user_id"`
	LoUsername string    `db:"lo_username"`
	HiUsername string    `db:"hi_username"`
	LoDeleted  bool      `db:"lo_deleted"`
	HiDeleted  bool      `db:"hi_deleted"`
	CreatedAt  time.Time `db:"created_at"`

	Participation *Participant `db:"participation,omitempty"`
}

func (c Conversation) Has(userID string) bool {
	return c.LoUserID == userID || c.HiUserID == userID
}

func (c Conversation) Other(userID string) (otherUserID, otherUsername string) {
	if c.LoUserID == userID {
		return c.HiUserID, c.HiUsername
	}
	return c.LoUserID, c.LoUsername
}

func (c Conversation) Username(userID string) string {
	if c.LoUserID == userID {
		return c.LoUsername
	}
	return c.HiUsername
}

func (c Conversation) DeletedBy(userID string) bool {
	if c.LoUserID == userID {
		return c.LoDeleted
	}
	return c.HiDeleted
}

// CanonicalPair orders two user IDs so (a, b) and (b, a) address the same
// conversation.
func CanonicalPair(a, b string) (lo, hi string) {
	if a < b {
		return a, b
	}
	return b, a
}

func PairLockKey(lo, hi string) string {
	return "pair:" + lo + ":" + hi
}

type Participant struct {
	ConversationID       string    `db:"conversation_id"`
	UserID               string    `db:"user_id"`
	UnreadCount          int32     `db:"unread_count"`
	FirstUnreadMessageID *int64    `db:"first_unread_message_id"`
	CreatedAt            time.Time `db:"created_at"`
	UpdatedAt            time.Time `db:"updated_at"`

	OtherUser *User `db:"other_user,omitempty"`
}

type EnsureConversation struct {
	OtherUserID string
	ItemID      string

	loggedInUserID string
}

func (in *EnsureConversation) SetLoggedInUserID(userID string) {
	in.loggedInUserID = userID
}

func (in EnsureConversation) LoggedInUserID() string {
	return in.loggedInUserID
}

func (in *EnsureConversation) Validate() error {
	v := validator.New()

	if in.OtherUserID == "" {
		v.AddError("OtherUserID", "Other user ID is required")
	}
	if !id.Valid(in.OtherUserID) {
		v.AddError("OtherUserID", "Other user ID is invalid")
	}
	if in.ItemID != "" && !id.Valid(in.ItemID) {
		v.AddError("ItemID", "Item ID is invalid")
	}

	return v.AsError()
}

type ListConversations struct {
	PageArgs PageArgs

	loggedInUserID string
}

func (in *ListConversations) SetLoggedInUserID(userID string) {
	in.loggedInUserID = userID
}

func (in ListConversations) LoggedInUserID() string {
	return in.loggedInUserID
}

func (in *ListConversations) Validate() error {
	return in.PageArgs.Validate()
}

type DeleteConversation struct {
	ConversationID string

	loggedInUserID string
}

func (in *DeleteConversation) SetLoggedInUserID(userID string) {
	in.loggedInUserID = userID
}

func (in DeleteConversation) LoggedInUserID() string {
	return in.loggedInUserID
}

func (in *DeleteConversation) Validate() error {
	v := validator.New()

	if in.ConversationID == "" {
		v.AddError("ConversationID", "Conversation ID is required")
	}
	if !id.Valid(in.ConversationID) {
		v.AddError("ConversationID", "Conversation ID is invalid")
	}

	return v.AsError()
}
