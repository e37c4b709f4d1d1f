package web

import (
	"fmt"
	"net/http"

	"github.com/tradepost/tradepost/auth"
	"github.com/tradepost/tradepost/errs"
)

const sessKeyUserID = "logged_in_user_id"

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
	}
	if err := decodeJSON(r, &in); err != nil {
		h.respondErr(w, err)
		return
	}

	out, err := h.Service.CreateUser(r.Context(), in.Username)
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, out, http.StatusCreated)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
	}
	if err := decodeJSON(r, &in); err != nil {
		h.respondErr(w, err)
		return
	}

	ctx := r.Context()

	user, err := h.Service.UserByUsername(ctx, in.Username)
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.sess.Put(ctx, sessKeyUserID, user.ID)

	if err := h.sess.RenewToken(ctx); err != nil {
		h.respondErr(w, fmt.Errorf("renew session token: %w", err))
		return
	}

	h.respond(w, user, http.StatusOK)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	h.sess.Remove(ctx, sessKeyUserID)
	if err := h.sess.RenewToken(ctx); err != nil {
		h.respondErr(w, fmt.Errorf("renew session token: %w", err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	user, loggedIn := auth.UserFromContext(r.Context())
	if !loggedIn {
		h.respondErr(w, errs.Unauthenticated)
		return
	}

	h.respond(w, user, http.StatusOK)
}

func (h *Handler) withUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if !h.sess.Exists(ctx, sessKeyUserID) {
			next.ServeHTTP(w, r)
			return
		}

		loggedInUserID := h.sess.GetString(ctx, sessKeyUserID)
		user, err := h.Service.User(ctx, loggedInUserID)
		if err != nil {
			h.respondErr(w, fmt.Errorf("get session user: %w", err))
			return
		}

		ctx = auth.ContextWithUser(ctx, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
