package utils

import (
	"encoding/json"
	"net/http"
)

// WriteJSON encodes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// WriteError sends {"detail": detail}, the error shape mobile clients parse.
func WriteError(w http.ResponseWriter, status int, detail string) error {
	return WriteJSON(w, status, map[string]string{"detail": detail})
}
