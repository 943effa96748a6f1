package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"fleetsim/pkg/logging"
	"fleetsim/pkg/sim"

	"github.com/go-playground/validator/v10"
	"github.com/julienschmidt/httprouter"
)

type errorBody struct {
	Code int    `json:"code"`
	Text string `json:"text"`
}

var validate = validator.New()

func writeJSON(w http.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func (s *Server) sendResponse(w http.ResponseWriter, r *http.Request, v interface{}) {
	if err := writeJSON(w, http.StatusOK, v); err != nil {
		logging.LogError(logging.FromContext(r.Context()), "encode response", err, slog.String("path", r.URL.Path))
	}
}

func (s *Server) errorResponse(w http.ResponseWriter, r *http.Request, status int, text string) {
	if err := writeJSON(w, status, errorBody{Code: status, Text: text}); err != nil {
		logging.LogError(logging.FromContext(r.Context()), "encode error response", err, slog.String("path", r.URL.Path))
	}
}

// engineError maps engine errors to status codes.
func (s *Server) engineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, sim.ErrBusNotFound):
		s.errorResponse(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, sim.ErrUnknownCondition):
		s.errorResponse(w, r, http.StatusBadRequest, err.Error())
	default:
		logging.LogError(logging.FromContext(r.Context()), "request", err, slog.String("path", r.URL.Path))
		s.errorResponse(w, r, http.StatusInternalServerError, "internal server error")
	}
}

// decodeBody reads a JSON body into dst and validates it. It writes the
// error response itself and reports whether the handler should continue.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}, allowEmpty bool) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if !(allowEmpty && errors.Is(err, io.EOF)) {
			s.errorResponse(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
			return false
		}
	}
	if err := validate.Struct(dst); err != nil {
		s.errorResponse(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func busIDParam(r *http.Request) (int, error) {
	id, err := strconv.Atoi(httprouter.ParamsFromContext(r.Context()).ByName("id"))
	if err != nil || id <= 0 {
		return 0, errors.New("bus id must be a positive integer")
	}
	return id, nil
}

func idParam(r *http.Request) string {
	return httprouter.ParamsFromContext(r.Context()).ByName("id")
}

// intQuery returns the named query parameter or def when it is absent.
func intQuery(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errors.New(name + " must be a non-negative integer")
	}
	return v, nil
}
