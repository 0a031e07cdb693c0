package api

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/smartpc/smartpc/pkg/errors"
)

// errorBody is the shape of every error response.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// batch is implemented by results that carry per-item outcomes.
type batch interface {
	AllFailed() bool
}

// handlerFunc returns the success body or an error to translate.
type handlerFunc func(r *http.Request) (interface{}, error)

// route adapts a handlerFunc. A batch result in which every item failed is
// answered with 500 and still carries the per-item results.
func (s *Server) route(fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := fn(r)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		if b, ok := body.(batch); ok && b.AllFailed() {
			respondJSON(w, http.StatusInternalServerError, body)
			return
		}
		respondJSON(w, http.StatusOK, body)
	}
}

func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Error encoding JSON response", "error", err)
	}
}

// respondError maps err to its status. Dependency failures surface the raw
// provider text in the error field.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	e, ok := errors.As(err)
	if !ok {
		s.logger.Error("Unhandled error", "path", r.URL.Path, "error", err)
		respondJSON(w, http.StatusInternalServerError, errorBody{
			Message: "Internal server error",
			Error:   err.Error(),
		})
		return
	}

	status := errors.HTTPStatusOf(e)
	if status >= 500 {
		s.logger.Error("Request failed", "path", r.URL.Path, "code", e.Code, "error", err)
	} else {
		s.logger.Debug("Request rejected", "path", r.URL.Path, "code", e.Code, "message", e.Message)
	}
	respondJSON(w, status, errorBody{
		Message: e.Message,
		Error:   e.CauseText(),
		Code:    string(e.Code),
	})
}

// decode reads a JSON body into dst and validates it.
func (s *Server) decode(r *http.Request, dst interface{}) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return errors.Validation("Could not read request body").WithCause(err)
	}
	return s.decodeBytes(data, dst)
}

const maxBodyBytes = 1 << 20

func (s *Server) decodeBytes(data []byte, dst interface{}) error {
	if len(strings.TrimSpace(string(data))) == 0 {
		return errors.Validation("Request body is required")
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return errors.Validation("Invalid JSON body").WithCause(err)
	}
	return s.check(dst)
}

// check runs the struct validator and folds its report into one message.
func (s *Server) check(v interface{}) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if !stderrors.As(err, &fields) {
		return errors.Validation("Invalid request").WithCause(err)
	}
	msgs := make([]string, 0, len(fields))
	for _, f := range fields {
		msgs = append(msgs, fieldMessage(f))
	}
	return errors.Validation(strings.Join(msgs, "; "))
}

func fieldMessage(f validator.FieldError) string {
	switch f.Tag() {
	case "required", "required_without":
		return fmt.Sprintf("%s is required", f.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", f.Field(), f.Param())
	case "min":
		return fmt.Sprintf("%s must have at least %s item(s)", f.Field(), f.Param())
	case "gt", "gte", "lte", "max":
		return fmt.Sprintf("%s must be %s %s", f.Field(), f.Tag(), f.Param())
	default:
		return fmt.Sprintf("%s is invalid", f.Field())
	}
}

// query helpers

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Validation(fmt.Sprintf("%s must be an integer", name))
	}
	return n, nil
}

func boolParam(r *http.Request, name string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return b
}
