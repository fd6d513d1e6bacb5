package store

import "math"

// ErrorScale is the summed gaze error at which accuracy reaches zero.
const ErrorScale = 1000.0

// Assessment labels, best first.
const (
	AssessmentExcellent  = "Excellent"
	AssessmentGood       = "Good"
	AssessmentFair       = "Fair"
	AssessmentPoor       = "Poor"
	AssessmentIncomplete = "Incomplete"
)

// Summary scores a recorded session against its target points.
type Summary struct {
	SessionID  string  `json:"session_id"`
	Samples    int     `json:"samples"`
	FaceFrames int     `json:"face_frames"`
	Targeted   int     `json:"targeted"`
	Scored     int     `json:"scored"`
	MeanError  float64 `json:"mean_error"`
	Accuracy   float64 `json:"accuracy"`
	// MeanDistance averages the face distance over frames with a face.
	MeanDistance float64 `json:"mean_distance"`
	Analysis     string  `json:"analysis"`
	Assessment   string  `json:"assessment"`
}

// Summarize scores samples. A sample counts toward accuracy when a face was
// found, the eyes were focused and a target was set; its error is
// |gazeX-targetX| + |gazeY-targetY|. Accuracy is 1 - meanError/ErrorScale,
// floored at 0, and 0 when nothing was scored.
func Summarize(sessionID string, samples []Sample) Summary {
	sum := Summary{SessionID: sessionID, Samples: len(samples)}
	if len(samples) == 0 {
		sum.Analysis = "No data"
		sum.Assessment = AssessmentIncomplete
		return sum
	}

	var totalErr, totalDist float64
	for _, s := range samples {
		if s.FaceDetected {
			sum.FaceFrames++
			totalDist += s.Distance
		}
		if s.Target == nil {
			continue
		}
		sum.Targeted++
		if !s.FaceDetected || !s.EyesFocused {
			continue
		}
		sum.Scored++
		totalErr += math.Abs(s.GazeX-s.Target.X) + math.Abs(s.GazeY-s.Target.Y)
	}

	if sum.FaceFrames > 0 {
		sum.MeanDistance = totalDist / float64(sum.FaceFrames)
	}
	if sum.Scored > 0 {
		sum.MeanError = totalErr / float64(sum.Scored)
		sum.Accuracy = math.Max(0, 1-sum.MeanError/ErrorScale)
	}

	switch {
	case sum.Accuracy > 0.8:
		sum.Assessment, sum.Analysis = AssessmentExcellent, "High accuracy tracking"
	case sum.Accuracy > 0.6:
		sum.Assessment, sum.Analysis = AssessmentGood, "Moderate accuracy tracking"
	case sum.Accuracy > 0.4:
		sum.Assessment, sum.Analysis = AssessmentFair, "Room for improvement"
	default:
		sum.Assessment, sum.Analysis = AssessmentPoor, "Significant tracking issues detected"
	}
	return sum
}
