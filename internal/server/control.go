package server

import (
	"errors"
	"net/http"

	"github.com/ayusman/eyetrack/internal/detector"
	"github.com/ayusman/eyetrack/internal/engine"
	"github.com/ayusman/eyetrack/internal/geom"
)

// controlHandler serves the engine settings and calibration endpoints.
type controlHandler struct {
	tracker Tracker
}

type resultResponse struct {
	engine.TrackingResult
	Timestamp int64 `json:"timestamp"`
}

type backendRequest struct {
	Backend string `json:"backend"`
}

type backendResponse struct {
	Backend string `json:"backend"`
	Active  string `json:"active,omitempty"`
}

type variantRequest struct {
	Variant string `json:"variant"`
}

type cameraRequest struct {
	FocalLength    float64      `json:"focal_length"`
	PrincipalPoint geom.Point2D `json:"principal_point"`
}

type targetResponse struct {
	Target *geom.Point2D `json:"target"`
}

type calibrationFinishResponse struct {
	Valid bool   `json:"valid"`
	ID    string `json:"id,omitempty"`
}

// result handles GET /api/result.
func (c *controlHandler) result(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	res, at, ok := c.tracker.Latest()
	if !ok {
		writeError(w, http.StatusNotFound, "No frame processed yet")
		return
	}
	writeJSON(w, http.StatusOK, resultResponse{TrackingResult: res, Timestamp: at.UnixMilli()})
}

// backend handles GET and PUT /api/backend.
func (c *controlHandler) backend(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPut:
		var req backendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		b, err := detector.ParseBackend(req.Backend)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := c.tracker.SetDetectorBackend(b); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	resp := backendResponse{Backend: c.tracker.DetectorBackend().String()}
	if active, ok := c.tracker.ActiveBackend(); ok {
		resp.Active = active.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

// backends handles GET /api/backends.
func (c *controlHandler) backends(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"backends": c.tracker.BackendStatus()})
}

// retry handles POST /api/backends/retry.
func (c *controlHandler) retry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req backendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	b, err := detector.ParseBackend(req.Backend)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := c.tracker.RetryDetectorLoad(b); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"backends": c.tracker.BackendStatus()})
}

// variant handles GET and PUT /api/variant.
func (c *controlHandler) variant(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPut:
		var req variantRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		if err := c.tracker.SetModelVariant(req.Variant); err != nil {
			if errors.Is(err, engine.ErrUnknownVariant) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, variantRequest{Variant: c.tracker.ModelVariant()})
}

// camera handles GET and PUT /api/camera.
func (c *controlHandler) camera(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPut:
		var req cameraRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		if err := c.tracker.SetCameraParameters(req.FocalLength, req.PrincipalPoint); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	focal, pp := c.tracker.CameraParameters()
	writeJSON(w, http.StatusOK, cameraRequest{FocalLength: focal, PrincipalPoint: pp})
}

// calibration handles GET /api/calibration.
func (c *controlHandler) calibration(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, c.tracker.Calibration())
}

// calibrationStart handles POST /api/calibration/start.
func (c *controlHandler) calibrationStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	c.tracker.StartCalibration()
	writeJSON(w, http.StatusOK, c.tracker.Calibration())
}

// calibrationPoint handles POST /api/calibration/point.
func (c *controlHandler) calibrationPoint(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var p geom.Point2D
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	c.tracker.AddCalibrationPoint(p)
	writeJSON(w, http.StatusOK, c.tracker.Calibration())
}

// calibrationFinish handles POST /api/calibration/finish.
func (c *controlHandler) calibrationFinish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	valid, rec, err := c.tracker.FinishCalibration()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save calibration")
		return
	}
	resp := calibrationFinishResponse{Valid: valid}
	if rec != nil {
		resp.ID = rec.ID
	}
	writeJSON(w, http.StatusOK, resp)
}

// target handles GET, PUT and DELETE /api/target. Recorded samples carry the
// current target.
func (c *controlHandler) target(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPut:
		var p geom.Point2D
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		c.tracker.SetTarget(p)
	case http.MethodDelete:
		c.tracker.ClearTarget()
		w.WriteHeader(http.StatusNoContent)
		return
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var resp targetResponse
	if p, ok := c.tracker.Target(); ok {
		resp.Target = &p
	}
	writeJSON(w, http.StatusOK, resp)
}
