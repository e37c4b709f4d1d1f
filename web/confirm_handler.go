package web

import (
	"net/http"

	"github.com/tradepost/tradepost/types"
)

func (h *Handler) confirmationAvailability(w http.ResponseWriter, r *http.Request) {
	in := types.RetrieveConfirmationStatus{
		ConversationID: r.PathValue("conversationID"),
		ItemID:         r.PathValue("itemID"),
	}

	out, err := h.Service.ConfirmationAvailability(r.Context(), in)
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, out, http.StatusOK)
}

func (h *Handler) proposeConfirmation(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ScheduleID    string `json:"scheduleId"`
		Successful    bool   `json:"successful"`
		FinalPrice    *int64 `json:"finalPrice"`
		SellerNotes   string `json:"sellerNotes"`
		FailureReason string `json:"failureReason"`
		FailureNotes  string `json:"failureNotes"`
	}
	if err := decodeJSON(r, &body); err != nil {
		h.respondErr(w, err)
		return
	}

	in := types.ProposeConfirmation{
		ScheduleID:    body.ScheduleID,
		Successful:    body.Successful,
		FinalPrice:    body.FinalPrice,
		SellerNotes:   body.SellerNotes,
		FailureReason: types.FailureReason(body.FailureReason),
		FailureNotes:  body.FailureNotes,
	}

	out, err := h.Service.ProposeConfirmation(r.Context(), in)
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, out, http.StatusCreated)
}

func (h *Handler) respondConfirmation(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Accept bool `json:"accept"`
	}
	if err := decodeJSON(r, &body); err != nil {
		h.respondErr(w, err)
		return
	}

	in := types.RespondConfirmation{
		ConfirmationID: r.PathValue("confirmationID"),
		Accept:         body.Accept,
	}

	out, err := h.Service.RespondConfirmation(r.Context(), in)
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, out, http.StatusOK)
}
