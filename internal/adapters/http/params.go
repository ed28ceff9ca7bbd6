package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"
)

// pathID binds the {id} segment as a UUID.
func pathID(r *http.Request) (string, error) {
	var id uuid.UUID
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		return "", &apiError{code: http.StatusBadRequest, msg: "invalid id", fields: map[string]string{"id": "must be a UUID"}}
	}
	return id.String(), nil
}

// queryParam binds an optional form-style query parameter into dest.
func queryParam(r *http.Request, name string, dest any) error {
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), dest); err != nil {
		return &apiError{code: http.StatusBadRequest, msg: "invalid query parameter", fields: map[string]string{name: err.Error()}}
	}
	return nil
}

func decodeBody(r *http.Request, dest any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dest); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return &apiError{code: http.StatusBadRequest, msg: "missing body"}
		case errors.As(err, &tooLarge):
			return &apiError{code: http.StatusRequestEntityTooLarge, msg: fmt.Sprintf("body exceeds %d bytes", tooLarge.Limit)}
		}
		return &apiError{code: http.StatusBadRequest, msg: "malformed JSON body: " + err.Error()}
	}
	return nil
}
