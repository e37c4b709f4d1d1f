package web

import (
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/tradepost/tradepost/types"
)

func (h *Handler) createMessage(w http.ResponseWriter, r *http.Request) {
	in := types.CreateMessage{
		ConversationID: r.PathValue("conversationID"),
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if strings.HasPrefix(mediaType, "multipart/") {
		if err := r.ParseMultipartForm(types.MaxImageSize); err != nil {
			h.respondErr(w, fmt.Errorf("parse multipart form: %w", err))
			return
		}

		in.Content = r.PostFormValue("content")

		file, header, err := r.FormFile("image")
		if err == nil {
			defer file.Close()
			img := types.NewImageUpload(header.Header.Get("Content-Type"), header.Size, file)
			in.Image = &img
		}
	} else {
		var body struct {
			Content string `json:"content"`
		}
		if err := decodeJSON(r, &body); err != nil {
			h.respondErr(w, err)
			return
		}
		in.Content = body.Content
	}

	out, err := h.Service.CreateMessage(r.Context(), in)
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, out, http.StatusCreated)
}

func (h *Handler) messages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var after int64
	if q.Has("after") {
		n, err := strconv.ParseInt(q.Get("after"), 10, 64)
		if err == nil {
			after = n
		}
	}

	var limit int32
	if q.Has("limit") {
		n, err := strconv.ParseInt(q.Get("limit"), 10, 32)
		if err == nil {
			limit = int32(n)
		}
	}

	in := types.ListMessages{
		ConversationID: r.PathValue("conversationID"),
		After:          after,
		Limit:          limit,
	}

	out, err := h.Service.Messages(r.Context(), in)
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, out, http.StatusOK)
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	in := types.MarkRead{
		ConversationID: r.PathValue("conversationID"),
	}

	if err := h.Service.MarkRead(r.Context(), in); err != nil {
		h.respondErr(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
