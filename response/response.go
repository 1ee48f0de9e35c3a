package response

import (
	"encoding/json"
	"net/http"
)

type errorBody struct {
	Error string `json:"error"`
	Type  string `json:"type,omitempty"`
}

// WriteError renders e as JSON with its status code
func WriteError(w http.ResponseWriter, r *http.Request, e *Error) {
	WriteResponse(w, r, e.StatusCode, errorBody{
		Error: e.Message,
		Type:  e.Type,
	})
}

// WriteResponse renders v as JSON with the given status code
func WriteResponse(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
