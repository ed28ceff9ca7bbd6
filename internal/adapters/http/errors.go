package httpadapter

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"antygravity/internal/domain"
)

// apiError carries an explicit status for errors raised by the handlers.
type apiError struct {
	code   int
	msg    string
	fields map[string]string
}

func (e *apiError) Error() string { return e.msg }

type errorBody struct {
	Error     string            `json:"error"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// statusFor maps service errors onto HTTP statuses.
func statusFor(err error) (int, errorBody) {
	var (
		ae   *apiError
		verr *domain.ValidationError
		upe  *domain.UnknownPolicyError
	)
	switch {
	case errors.As(err, &ae):
		return ae.code, errorBody{Error: ae.msg, Fields: ae.fields}
	case errors.As(err, &verr):
		return http.StatusBadRequest, errorBody{Error: verr.Kind().Error(), Fields: verr.Fields}
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, errorBody{Error: err.Error()}
	case errors.As(err, &upe):
		return http.StatusUnprocessableEntity, errorBody{
			Error:  domain.ErrUnknownPolicyVersion.Error(),
			Fields: map[string]string{"policy_version": upe.Version},
		}
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, errorBody{Error: "not found"}
	}
	return http.StatusInternalServerError, errorBody{Error: "internal server error"}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, body := statusFor(err)
	body.RequestID = middleware.GetReqID(r.Context())
	if code >= http.StatusInternalServerError {
		slog.Default().ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "request_id", body.RequestID, "err", err)
	}
	writeJSON(w, code, body)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
