package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"needsmatch/pkg/types"

	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

func (s *Service) writeJSON(w http.ResponseWriter, r *http.Request, status int, body types.Response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.WithError(err).WithField("path", r.URL.Path).Error("failed to encode response")
	}
}

func (s *Service) ok(w http.ResponseWriter, r *http.Request, data any) {
	s.writeJSON(w, r, http.StatusOK, types.Response{Success: true, Data: data})
}

func (s *Service) okList(w http.ResponseWriter, r *http.Request, data any, count int) {
	s.writeJSON(w, r, http.StatusOK, types.Response{Success: true, Data: data, Count: &count})
}

func (s *Service) created(w http.ResponseWriter, r *http.Request, message string, data any) {
	s.writeJSON(w, r, http.StatusCreated, types.Response{Success: true, Message: message, Data: data})
}

func (s *Service) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.writeJSON(w, r, status, types.Response{Success: false, Error: message})
}

// handleError maps domain errors onto status codes. Anything unrecognised
// is a 500 with the underlying message surfaced.
func (s *Service) handleError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	var (
		validationErr   *types.ValidationError
		availabilityErr *types.AvailabilityError
	)

	switch {
	case errors.As(err, &validationErr):
		s.writeJSON(w, r, http.StatusBadRequest, types.Response{
			Success: false,
			Error:   validationErr.Error(),
			Field:   validationErr.Field,
		})
	case errors.As(err, &availabilityErr):
		s.writeError(w, r, http.StatusBadRequest, availabilityErr.Error())
	case errors.Is(err, types.ErrEmptyBasket):
		s.writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, types.ErrForbidden):
		s.writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, types.ErrNeedNotFound),
		errors.Is(err, types.ErrUserNotFound),
		errors.Is(err, types.ErrBasketItemNotFound),
		errors.Is(err, types.ErrEventNotFound),
		errors.Is(err, types.ErrSignupNotFound):
		s.writeError(w, r, http.StatusNotFound, err.Error())
	default:
		s.logger.WithError(err).WithField("path", r.URL.Path).Error(msg)
		s.writeError(w, r, http.StatusInternalServerError, fmt.Sprintf("%s: %s", msg, err.Error()))
	}
}

// decodeJSON reads a JSON body into dst and runs struct validation on it.
// Both failure kinds come back as *types.ValidationError.
func (s *Service) decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var (
			syntaxErr *json.SyntaxError
			typeErr   *json.UnmarshalTypeError
		)
		switch {
		case errors.Is(err, io.EOF):
			return types.NewValidationError("", "request body is required")
		case errors.As(err, &syntaxErr):
			return types.NewValidationError("", "malformed JSON at offset %d", syntaxErr.Offset)
		case errors.As(err, &typeErr):
			return types.NewValidationError(typeErr.Field, "must be a %s", typeErr.Type.String())
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			field := strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
			return types.NewValidationError(field, "is not a recognised field")
		default:
			return types.NewValidationError("", "invalid request body: %s", err.Error())
		}
	}

	return s.validateStruct(dst)
}

func (s *Service) validateStruct(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return types.NewValidationError("", "%s", err.Error())
	}

	fe := fieldErrs[0]
	return types.NewValidationError(fe.Field(), "%s", describeFieldError(fe))
}

// newValidator reports fields by their json names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	}
	return fmt.Sprintf("failed %q validation", fe.Tag())
}
