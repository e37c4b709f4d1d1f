// Package web exposes the service as a JSON HTTP API.
package web

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tradepost/tradepost/service"
)

type Handler struct {
	Service      *service.Service
	ErrorLogger  *slog.Logger
	SessionStore scs.Store

	sess    *scs.SessionManager
	handler http.Handler
	once    sync.Once
}

func (h *Handler) init() {
	h.sess = scs.New()
	h.sess.Store = h.SessionStore
	h.sess.Lifetime = time.Hour * 24 * 7 // 7 days
	h.sess.ErrorFunc = func(w http.ResponseWriter, r *http.Request, err error) {
		h.respondErr(w, err)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/users", h.createUser)
	mux.HandleFunc("POST /api/login", h.login)
	mux.HandleFunc("POST /api/logout", h.logout)
	mux.HandleFunc("GET /api/me", h.me)

	mux.HandleFunc("POST /api/items", h.createItem)
	mux.HandleFunc("GET /api/items/{itemID}", h.showItem)

	mux.HandleFunc("POST /api/conversations", h.ensureConversation)
	mux.HandleFunc("GET /api/conversations", h.conversations)
	mux.HandleFunc("GET /api/conversations/{conversationID}", h.showConversation)
	mux.HandleFunc("DELETE /api/conversations/{conversationID}", h.deleteConversation)

	mux.HandleFunc("POST /api/conversations/{conversationID}/messages", h.createMessage)
	mux.HandleFunc("GET /api/conversations/{conversationID}/messages", h.messages)
	mux.HandleFunc("POST /api/conversations/{conversationID}/read", h.markRead)

	mux.HandleFunc("POST /api/conversations/{conversationID}/schedules", h.proposeSchedule)
	mux.HandleFunc("GET /api/schedules/{scheduleID}", h.showSchedule)
	mux.HandleFunc("POST /api/schedules/{scheduleID}/respond", h.respondSchedule)
	mux.HandleFunc("POST /api/schedules/{scheduleID}/cancel", h.cancelSchedule)

	mux.HandleFunc("GET /api/conversations/{conversationID}/items/{itemID}/confirmation", h.confirmationAvailability)
	mux.HandleFunc("POST /api/confirmations", h.proposeConfirmation)
	mux.HandleFunc("POST /api/confirmations/{confirmationID}/respond", h.respondConfirmation)

	mux.Handle("GET /metrics", promhttp.Handler())

	h.handler = mux
	h.handler = h.withUser(h.handler)
	h.handler = h.sess.LoadAndSave(h.handler)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.once.Do(h.init)
	h.handler.ServeHTTP(w, r)
}
