package server

import (
	"fmt"
	"image/color"
	"net/http"
	"time"

	"gocv.io/x/gocv"
)

// streamInterval paces the MJPEG stream at about 15 FPS.
const streamInterval = 66 * time.Millisecond

var overlay = color.RGBA{G: 255, A: 255}

// StreamHandler serves the captured frames as MJPEG with the tracked face
// rectangle and landmarks drawn on top.
type StreamHandler struct {
	tracker Tracker
}

// NewStreamHandler creates a new StreamHandler.
func NewStreamHandler(t Tracker) *StreamHandler {
	return &StreamHandler{tracker: t}
}

// ServeHTTP streams MJPEG frames to connected clients.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		buf, ok := h.encode()
		if !ok {
			continue
		}

		fmt.Fprintf(w, "--frame\r\n")
		fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
		fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(buf))
		w.Write(buf)
		fmt.Fprintf(w, "\r\n")

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}

// encode draws the latest result over the latest frame and returns it as JPEG.
func (h *StreamHandler) encode() ([]byte, bool) {
	frame, ok := h.tracker.Snapshot()
	defer frame.Close()
	if !ok {
		return nil, false
	}

	if res, _, ok := h.tracker.Latest(); ok && res.FaceDetected {
		gocv.Rectangle(&frame, res.FaceRect.Image(), overlay, 2)
		for _, p := range res.Landmarks {
			gocv.Circle(&frame, p.Image(), 2, overlay, -1)
		}
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, frame)
	if err != nil {
		return nil, false
	}
	defer buf.Close()

	return append([]byte(nil), buf.GetBytes()...), true
}
