package main

import (
	"encoding/json"
	"net/http"
)

// APIError represents a structured API error response
type APIError struct {
	Code    string `json:"error_code"`
	Message string `json:"error_message"`
}

// writeError writes a structured error response
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIError{
		Code:    code,
		Message: message,
	})
}
