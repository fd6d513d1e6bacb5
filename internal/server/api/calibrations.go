package api

import (
	"errors"
	"net/http"

	"github.com/ayusman/eyetrack/internal/store"
)

// CalibrationHandler serves the latest valid stored calibration.
type CalibrationHandler struct {
	store *store.Store
}

// NewCalibrationHandler creates a new CalibrationHandler with the given store.
func NewCalibrationHandler(s *store.Store) *CalibrationHandler {
	return &CalibrationHandler{store: s}
}

// ServeHTTP handles GET /api/calibrations/latest.
func (h *CalibrationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	c, err := h.store.Calibrations().Latest()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "No valid calibration")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get calibration")
		return
	}
	writeJSON(w, http.StatusOK, c)
}
