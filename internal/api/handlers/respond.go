package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wonny/quantscan/internal/contracts"
	"github.com/wonny/quantscan/internal/risk"
	"github.com/wonny/quantscan/internal/s0_data/collector"
)

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// errorStatus maps domain errors onto HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, contracts.ErrInvalidRequest),
		errors.Is(err, contracts.ErrUnknownStrategy):
		return http.StatusBadRequest
	case errors.Is(err, contracts.ErrNoResult),
		errors.Is(err, risk.ErrInsufficientData),
		errors.Is(err, collector.ErrNoData):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
