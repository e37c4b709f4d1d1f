package web

import (
	"net/http"

	"github.com/tradepost/tradepost/types"
)

func (h *Handler) ensureConversation(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OtherUserID string `json:"otherUserId"`
		ItemID      string `json:"itemId"`
	}
	if err := decodeJSON(r, &body); err != nil {
		h.respondErr(w, err)
		return
	}

	in := types.EnsureConversation{
		OtherUserID: body.OtherUserID,
		ItemID:      body.ItemID,
	}

	out, err := h.Service.EnsureConversation(r.Context(), in)
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, out, http.StatusOK)
}

func (h *Handler) conversations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	in := types.ListConversations{
		PageArgs: types.PageArgs{
			First:  queryUintPtr(q, "first"),
			Last:   queryUintPtr(q, "last"),
			After:  queryStrPtr(q, "after"),
			Before: queryStrPtr(q, "before"),
		},
	}

	out, err := h.Service.Conversations(r.Context(), in)
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, out, http.StatusOK)
}

func (h *Handler) showConversation(w http.ResponseWriter, r *http.Request) {
	out, err := h.Service.Conversation(r.Context(), r.PathValue("conversationID"))
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, out, http.StatusOK)
}

func (h *Handler) deleteConversation(w http.ResponseWriter, r *http.Request) {
	in := types.DeleteConversation{
		ConversationID: r.PathValue("conversationID"),
	}

	if err := h.Service.DeleteConversation(r.Context(), in); err != nil {
		h.respondErr(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
