package utils

import (
	"encoding/json"
	"net/http"

	"github.com/riteshkumar/billy-ledger/internal/models"
)

func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// WriteError writes a machine-readable error kind plus optional details. The
// kind is what clients translate into user-facing text.
func WriteError(w http.ResponseWriter, status int, errorKind, details string) {
	response := models.ErrorResponse{
		Error:   errorKind,
		Message: details,
	}
	WriteJSON(w, status, response)
}
