package types

import (
	"time"
	"unicode/utf8"

	"github.com/tradepost/tradepost/id"
	"github.com/tradepost/tradepost/validator"
)

type ScheduleStatus string

const (
	ScheduleStatusPending   ScheduleStatus = "pending"
	ScheduleStatusAccepted  ScheduleStatus = "accepted"
	ScheduleStatusDeclined  ScheduleStatus = "declined"
	ScheduleStatusCancelled ScheduleStatus = "cancelled"
)

func (s ScheduleStatus) String() string {
	return string(s)
}

// Terminal reports whether no further transition is possible. For any item
// at most one request may be non-terminal at a time.
func (s ScheduleStatus) Terminal() bool {
	return s == ScheduleStatusDeclined || s == ScheduleStatusCancelled
}

// ScheduledPurchase is a proposed in-person meetup for one item inside one
// conversation. The seller proposes and may cancel; the designated buyer
// accepts or declines.
type ScheduledPurchase struct {
	ID               string         `db:"id"`
	ConversationID   string         `db:"conversation_id"`
	ItemID           string         `db:"item_id"`
	BuyerID          string         `db:"buyer_id"`
	SellerID         string         `db:"seller_id"`
	MeetingAt        time.Time      `db:"meeting_at"`
	Location         string         `db:"location"`
	Price            *int64         `db:"price"`
	TradeDescription string         `db:"trade_description"`
	Notes            string         `db:"notes"`
	VerificationCode string         `db:"verification_code"`
	Status           ScheduleStatus `db:"status"`
	CreatedAt        time.Time      `db:"created_at"`
	RespondedAt      *time.Time     `db:"responded_at"`
	CancelledBy      *string        `db:"cancelled_by"`
}

type ProposeSchedule struct {
	ConversationID   string
	ItemID           string
	MeetingAt        time.Time
	Location         string
	Price            *int64
	TradeDescription string
	Notes            string

	loggedInUserID string
}

func (in *ProposeSchedule) SetLoggedInUserID(userID string) {
	in.loggedInUserID = userID
}

func (in ProposeSchedule) LoggedInUserID() string {
	return in.loggedInUserID
}

func (in *ProposeSchedule) Validate() error {
	v := validator.New()

	if in.ConversationID == "" {
		v.AddError("ConversationID", "Conversation ID is required")
	}
	if !id.Valid(in.ConversationID) {
		v.AddError("ConversationID", "Conversation ID is invalid")
	}
	if in.ItemID == "" {
		v.AddError("ItemID", "Item ID is required")
	}
	if !id.Valid(in.ItemID) {
		v.AddError("ItemID", "Item ID is invalid")
	}
	if in.MeetingAt.IsZero() {
		v.AddError("MeetingAt", "Meeting time is required")
	} else if !in.MeetingAt.After(time.Now()) {
		v.AddError("MeetingAt", "Meeting time must be in the future")
	}
	if in.Location == "" {
		v.AddError("Location", "Meeting location is required")
	}
	if in.Price == nil && in.TradeDescription == "" {
		v.AddError("Price", "Either a price or a trade description is required")
	}
	if in.Price != nil && in.TradeDescription != "" {
		v.AddError("Price", "Price and trade description are mutually exclusive")
	}
	if in.Price != nil && *in.Price < 0 {
		v.AddError("Price", "Price must not be negative")
	}
	if utf8.RuneCountInString(in.Notes) > MaxMessageContentLength {
		v.AddError("Notes", "Notes must be at most 500 characters")
	}

	return v.AsError()
}

type RespondSchedule struct {
	ScheduleID string
	Accept     bool

	loggedInUserID string
}

func (in *RespondSchedule) SetLoggedInUserID(userID string) {
	in.loggedInUserID = userID
}

func (in RespondSchedule) LoggedInUserID() string {
	return in.loggedInUserID
}

func (in *RespondSchedule) Validate() error {
	v := validator.New()

	if in.ScheduleID == "" {
		v.AddError("ScheduleID", "Schedule ID is required")
	}
	if !id.Valid(in.ScheduleID) {
		v.AddError("ScheduleID", "Schedule ID is invalid")
	}

	return v.AsError()
}

type CancelSchedule struct {
	ScheduleID string

	loggedInUserID string
}

func (in *CancelSchedule) SetLoggedInUserID(userID string) {
	in.loggedInUserID = userID
}

func (in CancelSchedule) LoggedInUserID() string {
	return in.loggedInUserID
}

func (in *CancelSchedule) Validate() error {
	v := validator.New()

	if in.ScheduleID == "" {
		v.AddError("ScheduleID", "Schedule ID is required")
	}
	if !id.Valid(in.ScheduleID) {
		v.AddError("ScheduleID", "Schedule ID is invalid")
	}

	return v.AsError()
}
