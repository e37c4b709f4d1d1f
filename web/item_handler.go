package web

import "net/http"

func (h *Handler) createItem(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title string `json:"title"`
		Price int64  `json:"price"`
	}
	if err := decodeJSON(r, &body); err != nil {
		h.respondErr(w, err)
		return
	}

	out, err := h.Service.CreateItem(r.Context(), body.Title, body.Price)
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, out, http.StatusCreated)
}

func (h *Handler) showItem(w http.ResponseWriter, r *http.Request) {
	out, err := h.Service.Item(r.Context(), r.PathValue("itemID"))
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, out, http.StatusOK)
}
