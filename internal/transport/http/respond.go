package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"contest-service/internal/domain"
)

// Error reason codes exposed to clients. The two forbidden reasons must stay
// distinguishable so the app can render "no attempts left" vs "contest ended".
const (
	CodeNotFound          = "not_found"
	CodeAttemptsExhausted = "attempts_exhausted"
	CodeContestNotActive  = "contest_not_active"
	CodeForeignQuestion   = "foreign_question"
	CodeUnauthorized      = "unauthorized"
	CodeValidation        = "validation_failed"
	CodeInternal          = "internal_error"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type envelope struct {
	Success bool               `json:"success"`
	Data    interface{}        `json:"data,omitempty"`
	Error   *errorBody         `json:"error,omitempty"`
	Errors  []domain.FieldError `json:"errors,omitempty"`
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, code, message string, fields []domain.FieldError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{
		Success: false,
		Error:   &errorBody{Code: code, Message: message},
		Errors:  fields,
	})
}

// writeDomainError maps the error taxonomy onto HTTP statuses. Internal
// invariant violations degrade to a generic error without exposing details.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrContestNotFound):
		writeError(w, http.StatusNotFound, CodeNotFound, "contest not found", nil)
	case errors.Is(err, domain.ErrQuestionNotFound):
		writeError(w, http.StatusNotFound, CodeNotFound, "question not found", nil)
	case errors.Is(err, domain.ErrAttemptsExhausted):
		writeError(w, http.StatusForbidden, CodeAttemptsExhausted, "you have used all your attempts", nil)
	case errors.Is(err, domain.ErrContestNotActive):
		writeError(w, http.StatusForbidden, CodeContestNotActive, "the contest is not active", nil)
	case errors.Is(err, domain.ErrForeignQuestion):
		writeError(w, http.StatusBadRequest, CodeForeignQuestion, "question does not belong to this contest", nil)
	case errors.Is(err, domain.ErrNotCelebrity):
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "only celebrities can do this", nil)
	default:
		if verr, ok := domain.AsValidationError(err); ok {
			writeError(w, http.StatusUnprocessableEntity, CodeValidation, "invalid request", verr.Fields)
			return
		}
		writeError(w, http.StatusInternalServerError, CodeInternal, "something went wrong", nil)
	}
}
