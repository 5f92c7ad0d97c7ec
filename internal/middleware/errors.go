package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// apiError is one entry of the error envelope returned on rejected requests.
type apiError struct {
	Detail string `json:"detail"`
	Status string `json:"status"`
}

type errorEnvelope struct {
	Errors []apiError `json:"errors"`
}

// WriteError writes the JSON error envelope used across the gateway:
//
//	{"errors": [{"detail": "...", "status": "401"}]}
func WriteError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{
		Errors: []apiError{{Detail: detail, Status: strconv.Itoa(status)}},
	})
}
