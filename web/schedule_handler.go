package web

import (
	"net/http"
	"time"

	"github.com/tradepost/tradepost/types"
)

func (h *Handler) proposeSchedule(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ItemID           string    `json:"itemId"`
		MeetingAt        time.Time `json:"meetingAt"`
		Location         string    `json:"location"`
		Price            *int64    `json:"price"`
		TradeDescription string    `json:"tradeDescription"`
		Notes            string    `json:"notes"`
	}
	if err := decodeJSON(r, &body); err != nil {
		h.respondErr(w, err)
		return
	}

	in := types.ProposeSchedule{
		ConversationID:   r.PathValue("conversationID"),
		ItemID:           body.ItemID,
		MeetingAt:        body.MeetingAt,
		Location:         body.Location,
		Price:            body.Price,
		TradeDescription: body.TradeDescription,
		Notes:            body.Notes,
	}

	out, err := h.Service.ProposeSchedule(r.Context(), in)
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, out, http.StatusCreated)
}

func (h *Handler) showSchedule(w http.ResponseWriter, r *http.Request) {
	out, err := h.Service.Schedule(r.Context(), r.PathValue("scheduleID"))
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, out, http.StatusOK)
}

func (h *Handler) respondSchedule(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Accept bool `json:"accept"`
	}
	if err := decodeJSON(r, &body); err != nil {
		h.respondErr(w, err)
		return
	}

	in := types.RespondSchedule{
		ScheduleID: r.PathValue("scheduleID"),
		Accept:     body.Accept,
	}

	out, err := h.Service.RespondSchedule(r.Context(), in)
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, out, http.StatusOK)
}

func (h *Handler) cancelSchedule(w http.ResponseWriter, r *http.Request) {
	in := types.CancelSchedule{
		ScheduleID: r.PathValue("scheduleID"),
	}

	out, err := h.Service.CancelSchedule(r.Context(), in)
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, out, http.StatusOK)
}
