package types

import (
	"time"
	"unicode/utf8"

	"github.com/tradepost/tradepost/id"
	"github.com/tradepost/tradepost/validator"
)

// MaxMessageContentLength is measured in UTF-8 code points.
const MaxMessageContentLength = 500

// Message ids come from a database sequence; ascending id is the
// conversation read order, wall-clock timestamps are informational only.
type Message struct {
	ID               int64        `db:"id"`
	ConversationID   string       `db:"conversation_id"`
	SenderID         string       `db:"sender_id"`
	ReceiverID       string       `db:"receiver_id"`
	SenderUsername   string       `db:"sender_username"`
	ReceiverUsername string       `db:"receiver_username"`
	Content          string       `db:"content"`
	ImagePath        *string      `db:"image_path"`
	Event            *SystemEvent `db:"event"`
	CreatedAt        time.Time    `db:"created_at"`
	EditedAt         *time.Time   `db:"edited_at"`
}

func (m Message) IsSystem() bool {
	return m.Event != nil
}

type MessageCreated struct {
	ID        int64     `db:"id"`
	CreatedAt time.Time `db:"created_at"`
}

type CreateMessage struct {
	ConversationID string
	Content        string

	// Image, when set, is uploaded to object storage before the message is
	// written and its path is stored on the message.
	Image *ImageUpload

	ImagePath string

	loggedInUserID string
	event          *SystemEvent
}

func (in *CreateMessage) SetLoggedInUserID(userID string) {
	in.loggedInUserID = userID
}

func (in CreateMessage) LoggedInUserID() string {
	return in.loggedInUserID
}

// SetEvent tags the message as system-generated. Only the negotiation
// engines set it; it never comes from client input.
func (in *CreateMessage) SetEvent(ev *SystemEvent) {
	in.event = ev
}

func (in CreateMessage) Event() *SystemEvent {
	return in.event
}

func (in *CreateMessage) Validate() error {
	v := validator.New()

	if in.ConversationID == "" {
		v.AddError("ConversationID", "Conversation ID is required")
	}
	if !id.Valid(in.ConversationID) {
		v.AddError("ConversationID", "Conversation ID is invalid")
	}
	if in.Content == "" && in.Image == nil && in.ImagePath == "" && in.event == nil {
		v.AddError("Content", "Content or an image is required")
	}
	if utf8.RuneCountInString(in.Content) > MaxMessageContentLength {
		v.AddError("Content", "Content must be at most 500 characters")
	}
	if in.Image != nil {
		if err := in.Image.Validate(); err != nil {
			return err
		}
	}
	if in.event != nil && !in.event.Kind.Valid() {
		v.AddError("Event", "Unknown system event kind")
	}

	return v.AsError()
}

type ListMessages struct {
	ConversationID string
	// After is the id of the last message the caller has seen; zero means
	// from the beginning. Safe to reuse across polls.
	After int64
	Limit int32

	loggedInUserID string
}

func (in *ListMessages) SetLoggedInUserID(userID string) {
	in.loggedInUserID = userID
}

func (in ListMessages) LoggedInUserID() string {
	return in.loggedInUserID
}

func (in *ListMessages) Validate() error {
	v := validator.New()

	if in.ConversationID == "" {
		v.AddError("ConversationID", "Conversation ID is required")
	}
	if !id.Valid(in.ConversationID) {
		v.AddError("ConversationID", "Conversation ID is invalid")
	}
	if in.After < 0 {
		v.AddError("After", "After cursor must not be negative")
	}
	if in.Limit < 0 {
		v.AddError("Limit", "Limit must not be negative")
	}

	return v.AsError()
}

type MarkRead struct {
	ConversationID string

	loggedInUserID string
}

func (in *MarkRead) SetLoggedInUserID(userID string) {
	in.loggedInUserID = userID
}

func (in MarkRead) LoggedInUserID() string {
	return in.loggedInUserID
}

func (in *MarkRead) Validate() error {
	v := validator.New()

	if in.ConversationID == "" {
		v.AddError("ConversationID", "Conversation ID is required")
	}
	if !id.Valid(in.ConversationID) {
		v.AddError("ConversationID", "Conversation ID is invalid")
	}

	return v.AsError()
}
