package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"foodplanner/internal/assistant"
	"foodplanner/internal/clipper"
	"foodplanner/internal/database"
	"foodplanner/internal/history"
	"foodplanner/internal/llm"
	"foodplanner/internal/shopping"
	"foodplanner/internal/weekplan"
)

const maxBodyBytes = 10 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Raw     string `json:"raw,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// badRequest is a client error found by the handlers themselves.
type badRequest struct {
	msg string
}

func (e *badRequest) Error() string { return e.msg }

func badRequestf(format string, args ...any) error {
	return &badRequest{msg: fmt.Sprintf(format, args...)}
}

// notFound names the missing resource when err is database.ErrNotFound.
func notFound(resource string, err error) error {
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("%s %w", resource, database.ErrNotFound)
	}
	return err
}

func (s *Server) respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to write response", zap.Error(err))
	}
}

// fail maps err onto a status code and JSON error body.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr      *assistant.ValidationError
		malformed *assistant.MalformedResponseError
		breq      *badRequest
		fields    validator.ValidationErrors
	)

	switch {
	case errors.As(err, &verr), errors.As(err, &breq):
		s.respond(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.As(err, &fields):
		s.respond(w, http.StatusBadRequest, errorResponse{Error: validationMessage(fields)})
	case errors.Is(err, weekplan.ErrInvalid),
		errors.Is(err, shopping.ErrInvalid),
		errors.Is(err, history.ErrMissingRecipe),
		errors.Is(err, clipper.ErrInvalidURL),
		errors.Is(err, clipper.ErrDomainNotAllowed):
		s.respond(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, database.ErrNotFound):
		s.respond(w, http.StatusNotFound, errorResponse{Error: capitalize(err.Error())})
	case errors.Is(err, llm.ErrNotConfigured):
		s.respond(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	case errors.As(err, &malformed):
		s.logger.Error("malformed AI response",
			zap.String("agent", malformed.Agent),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		s.respond(w, http.StatusInternalServerError, errorResponse{
			Error:   "Failed to parse AI response",
			Details: err.Error(),
			Raw:     malformed.Raw,
		})
	default:
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		s.respond(w, http.StatusInternalServerError, errorResponse{
			Error:   "Internal server error",
			Details: err.Error(),
		})
	}
}

func validationMessage(errs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(errs))
	for _, fe := range errs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "gte":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param()))
		case "lte":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of %s", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", fe.Field()))
		}
	}
	return strings.Join(msgs, ", ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// decode reads a JSON body into v. An empty body leaves v unchanged.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return badRequestf("request body exceeds %d bytes", tooLarge.Limit)
		}
		return badRequestf("invalid JSON body: %v", err)
	}
	return nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, badRequestf("%s must be a non-negative integer", name)
	}
	return n, nil
}

func pathInt64(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, badRequestf("%s must be an integer", name)
	}
	return n, nil
}
