package app

import (
	"errors"
	"time"

	"github.com/ayusman/eyetrack/internal/capture"
	"github.com/ayusman/eyetrack/internal/engine"
)

// runPipeline reads frames on a ticker and tracks each one. The rate starts at
// IdleFPS, rises to ActiveFPS when the motion gate fires and falls back after
// IdleTimeoutMs without motion. Every frame is tracked; only the rate changes.
func (a *App) runPipeline(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	activeMode := false
	lastMotionTime := time.Now()

	ticker := time.NewTicker(time.Second / time.Duration(IdleFPS))
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if !a.IsEnabled() {
				continue
			}

			frame, err := a.camera.ReadFrame()
			if err != nil {
				if errors.Is(err, capture.ErrNoFrames) {
					a.log.Debug("camera has no more frames")
				} else {
					a.log.WithError(err).Warn("error reading frame")
				}
				continue
			}

			motion, changed := a.motion.Detect(frame)

			switch {
			case motion:
				lastMotionTime = time.Now()
				if !activeMode {
					activeMode = true
					a.camera.SetFPS(ActiveFPS)
					ticker.Reset(time.Second / time.Duration(ActiveFPS))
					a.log.WithField("changed", changed).Debug("switched to active mode")
				}
			case activeMode && time.Since(lastMotionTime) > time.Duration(IdleTimeoutMs)*time.Millisecond:
				activeMode = false
				a.camera.SetFPS(IdleFPS)
				ticker.Reset(time.Second / time.Duration(IdleFPS))
				a.log.Debug("switched to idle mode")
			}

			a.setSnapshot(*frame)
			f := engine.FrameFromMat(*frame)
			frame.Close()

			a.ProcessFrame(f)
		}
	}
}
