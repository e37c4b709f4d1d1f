package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/tradepost/tradepost/errs"
	"github.com/tradepost/tradepost/validator"
)

func (h *Handler) respond(w http.ResponseWriter, v any, statusCode int) {
	b, err := json.Marshal(v)
	if err != nil {
		h.respondErr(w, fmt.Errorf("marshal response: %w", err))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	_, _ = w.Write(b)
}

type errorPayload struct {
	Error  string              `json:"error"`
	Kind   string              `json:"kind,omitempty"`
	Fields map[string][]string `json:"fields,omitempty"`
}

func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	statusCode := err2code(err)

	if statusCode == http.StatusInternalServerError {
		h.ErrorLogger.Error("internal error", "err", err)
		http.Error(w, http.StatusText(statusCode), statusCode)
		return
	}

	payload := errorPayload{Error: err.Error()}

	var e *errs.Error
	if errors.As(err, &e) {
		payload.Kind = string(e.Kind)
	}

	var v *validator.Validator
	if errors.As(err, &v) {
		payload.Fields = v.Errors
	}

	b, merr := json.Marshal(payload)
	if merr != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	_, _ = w.Write(b)
}

func err2code(err error) int {
	var v *validator.Validator
	if errors.As(err, &v) {
		return http.StatusUnprocessableEntity
	}

	var e *errs.Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}

	switch e.Kind {
	case errs.KindInvalidArgument:
		return http.StatusUnprocessableEntity
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindConflict, errs.KindInvalidTransition:
		return http.StatusConflict
	case errs.KindPermissionDenied:
		return http.StatusForbidden
	case errs.KindUnauthenticated:
		return http.StatusUnauthorized
	case errs.KindBusy:
		return http.StatusServiceUnavailable
	}

	return http.StatusInternalServerError
}

func queryStrPtr(q url.Values, key string) *string {
	if !q.Has(key) {
		return nil
	}
	s := q.Get(key)
	return &s
}

func queryUintPtr(q url.Values, key string) *uint {
	if !q.Has(key) {
		return nil
	}
	n, err := strconv.ParseUint(q.Get(key), 10, 32)
	if err != nil {
		return nil
	}
	u := uint(n)
	return &u
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		return errs.NewInvalidArgumentError("body", "malformed JSON body")
	}

	return nil
}
