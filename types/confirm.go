package types

import (
	"time"
	"unicode/utf8"

	"github.com/tradepost/tradepost/id"
	"github.com/tradepost/tradepost/validator"
)

type ConfirmationStatus string

const (
	ConfirmationStatusPending      ConfirmationStatus = "pending"
	ConfirmationStatusAccepted     ConfirmationStatus = "accepted"
	ConfirmationStatusDenied       ConfirmationStatus = "denied"
	ConfirmationStatusAutoAccepted ConfirmationStatus = "auto_accepted"
)

func (s ConfirmationStatus) String() string {
	return string(s)
}

func (s ConfirmationStatus) Terminal() bool {
	return s != ConfirmationStatusPending
}

// Confirmed reports whether the purchase went through as far as the record
// is concerned: the buyer accepted the attestation or the response window
// lapsed.
func (s ConfirmationStatus) Confirmed() bool {
	return s == ConfirmationStatusAccepted || s == ConfirmationStatusAutoAccepted
}

type FailureReason string

const (
	FailureReasonNoShow            FailureReason = "no_show"
	FailureReasonItemMismatch      FailureReason = "item_mismatch"
	FailureReasonPriceDisagreement FailureReason = "price_disagreement"
	FailureReasonOther             FailureReason = "other"
)

func (r FailureReason) Valid() bool {
	switch r {
	case FailureReasonNoShow, FailureReasonItemMismatch, FailureReasonPriceDisagreement, FailureReasonOther:
		return true
	}
	return false
}

// PurchaseConfirmation is the seller's post-meetup attestation layered on
// an accepted ScheduledPurchase. The buyer has until ExpiresAt to accept
// or deny; after that the record auto-accepts.
type PurchaseConfirmation struct {
	ID             string             `db:"id"`
	ScheduleID     string             `db:"schedule_id"`
	ConversationID string             `db:"conversation_id"`
	ItemID         string             `db:"item_id"`
	FinalPrice     *int64             `db:"final_price"`
	SellerNotes    string             `db:"seller_notes"`
	Successful     bool               `db:"successful"`
	FailureReason  *FailureReason     `db:"failure_reason"`
	FailureNotes   string             `db:"failure_notes"`
	Status         ConfirmationStatus `db:"status"`
	CreatedAt      time.Time          `db:"created_at"`
	ResolvedAt     *time.Time         `db:"resolved_at"`
	ExpiresAt      time.Time          `db:"expires_at"`
}

func (c PurchaseConfirmation) Expired(now time.Time) bool {
	return c.Status == ConfirmationStatusPending && now.After(c.ExpiresAt)
}

type ConfirmationReason string

const (
	ConfirmationReasonPendingRequest   ConfirmationReason = "pending_request"
	ConfirmationReasonMissingSchedule  ConfirmationReason = "missing_schedule"
	ConfirmationReasonAlreadyConfirmed ConfirmationReason = "already_confirmed"
)

// ConfirmationAvailability answers "can the seller confirm this purchase
// right now, and if not, why".
type ConfirmationAvailability struct {
	CanConfirm bool               `json:"canConfirm"`
	ReasonCode ConfirmationReason `json:"reasonCode,omitempty"`
	Message    string             `json:"message,omitempty"`

	// ScheduleID is set when an accepted schedule backs the availability.
	ScheduleID string `json:"scheduleId,omitempty"`
}

type RetrieveConfirmationStatus struct {
	ConversationID string
	ItemID         string

	loggedInUserID string
}

func (in *RetrieveConfirmationStatus) SetLoggedInUserID(userID string) {
	in.loggedInUserID = userID
}

func (in RetrieveConfirmationStatus) LoggedInUserID() string {
	return in.loggedInUserID
}

func (in *RetrieveConfirmationStatus) Validate() error {
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

	return v.AsError()
}

type ProposeConfirmation struct {
	ScheduleID    string
	Successful    bool
	FinalPrice    *int64
	SellerNotes   string
	FailureReason FailureReason
	FailureNotes  string

	loggedInUserID string
}

func (in *ProposeConfirmation) SetLoggedInUserID(userID string) {
	in.loggedInUserID = userID
}

func (in ProposeConfirmation) LoggedInUserID() string {
	return in.loggedInUserID
}

func (in *ProposeConfirmation) Validate() error {
	v := validator.New()

	if in.ScheduleID == "" {
		v.AddError("ScheduleID", "Schedule ID is required")
	}
	if !id.Valid(in.ScheduleID) {
		v.AddError("ScheduleID", "Schedule ID is invalid")
	}
	if in.FinalPrice != nil && *in.FinalPrice < 0 {
		v.AddError("FinalPrice", "Final price must not be negative")
	}
	if !in.Successful {
		if in.FailureReason == "" {
			v.AddError("FailureReason", "Failure reason is required for an unsuccessful purchase")
		} else if !in.FailureReason.Valid() {
			v.AddError("FailureReason", "Unknown failure reason")
		}
		if in.FailureReason == FailureReasonOther && in.FailureNotes == "" {
			v.AddError("FailureNotes", "Notes are required when the failure reason is other")
		}
	}
	if in.Successful && in.FailureReason != "" {
		v.AddError("FailureReason", "Failure reason is only valid for an unsuccessful purchase")
	}
	if utf8.RuneCountInString(in.SellerNotes) > MaxMessageContentLength {
		v.AddError("SellerNotes", "Notes must be at most 500 characters")
	}

	return v.AsError()
}

type RespondConfirmation struct {
	ConfirmationID string
	Accept         bool

	loggedInUserID string
}

func (in *RespondConfirmation) SetLoggedInUserID(userID string) {
	in.loggedInUserID = userID
}

func (in RespondConfirmation) LoggedInUserID() string {
	return in.loggedInUserID
}

func (in *RespondConfirmation) Validate() error {
	v := validator.New()

	if in.ConfirmationID == "" {
		v.AddError("ConfirmationID", "Confirmation ID is required")
	}
	if !id.Valid(in.ConfirmationID) {
		v.AddError("ConfirmationID", "Confirmation ID is invalid")
	}

	return v.AsError()
}
