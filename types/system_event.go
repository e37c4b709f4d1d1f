package types

import "time"

// SystemEventKind is the closed set of system-generated message kinds.
// Renderers can switch over it exhaustively.
type SystemEventKind string

const (
	SystemEventListingIntro        SystemEventKind = "listing_intro"
	SystemEventScheduleRequest     SystemEventKind = "schedule_request"
	SystemEventScheduleAccepted    SystemEventKind = "schedule_accepted"
	SystemEventScheduleDenied      SystemEventKind = "schedule_denied"
	SystemEventScheduleCancelled   SystemEventKind = "schedule_cancelled"
	SystemEventConfirmRequest      SystemEventKind = "confirm_request"
	SystemEventConfirmAccepted     SystemEventKind = "confirm_accepted"
	SystemEventConfirmDenied       SystemEventKind = "confirm_denied"
	SystemEventConfirmAutoAccepted SystemEventKind = "confirm_auto_accepted"
)

func (k SystemEventKind) Valid() bool {
	switch k {
	case SystemEventListingIntro,
		SystemEventScheduleRequest,
		SystemEventScheduleAccepted,
		SystemEventScheduleDenied,
		SystemEventScheduleCancelled,
		SystemEventConfirmRequest,
		SystemEventConfirmAccepted,
		SystemEventConfirmDenied,
		SystemEventConfirmAutoAccepted:
		return true
	}
	return false
}

// SystemEvent is the structured metadata carried by system-generated
// messages. Only the fields relevant to the kind are set; the ledger
// doubles as the audit trail for the negotiation engines.
type SystemEvent struct {
	Kind SystemEventKind `json:"kind"`

	ItemID    string `json:"itemId,omitempty"`
	ItemTitle string `json:"itemTitle,omitempty"`

	ScheduleID       string     `json:"scheduleId,omitempty"`
	MeetingAt        *time.Time `json:"meetingAt,omitempty"`
	Location         string     `json:"location,omitempty"`
	VerificationCode string     `json:"verificationCode,omitempty"`
	CancelledBy      string     `json:"cancelledBy,omitempty"`

	ConfirmationID string     `json:"confirmationId,omitempty"`
	FinalPrice     *int64     `json:"finalPrice,omitempty"`
	Successful     *bool      `json:"successful,omitempty"`
	FailureReason  string     `json:"failureReason,omitempty"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`
}
