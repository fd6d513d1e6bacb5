package store

import (
	"database/sql"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/ayusman/eyetrack/internal/geom"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Sample is one recorded frame of a tracking session.
type Sample struct {
	ID              int64          `json:"id"`
	SessionID       string         `json:"session_id"`
	FrameIndex      int            `json:"frame_index"`
	CapturedAt      time.Time      `json:"captured_at"`
	FaceDetected    bool           `json:"face_detected"`
	Face            geom.Rect      `json:"face_rect"`
	Confidence      float64        `json:"confidence"`
	Distance        float64        `json:"distance"`
	GazeX           float64        `json:"gaze_x"`
	GazeY           float64        `json:"gaze_y"`
	EyesFocused     bool           `json:"eyes_focused"`
	Pitch           float64        `json:"pitch"`
	Yaw             float64        `json:"yaw"`
	Roll            float64        `json:"roll"`
	HeadMoving      bool           `json:"head_moving"`
	ShouldersMoving bool           `json:"shoulders_moving"`
	Backend         string         `json:"backend"`
	Landmarks       []geom.Point2D `json:"landmarks"`
	// Target is the on-screen point the user was asked to look at, if any.
	Target *geom.Point2D `json:"target,omitempty"`
}

// SampleRepository provides access to recorded frames.
type SampleRepository struct {
	db *sql.DB
}

// Samples returns the sample repository for this store.
func (s *Store) Samples() *SampleRepository {
	return &SampleRepository{db: s.db}
}

// Append inserts samples in a single transaction.
func (r *SampleRepository) Append(samples ...Sample) error {
	if len(samples) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO tracking_samples (
			session_id, frame_index, captured_at, face_detected,
			face_x, face_y, face_width, face_height,
			confidence, distance, gaze_x, gaze_y, eyes_focused,
			pitch, yaw, roll, head_moving, shoulders_moving, backend, landmarks,
			target_x, target_y
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range samples {
		marks := s.Landmarks
		if marks == nil {
			marks = []geom.Point2D{}
		}
		data, err := json.Marshal(marks)
		if err != nil {
			return fmt.Errorf("encode landmarks: %w", err)
		}
		var tx, ty sql.NullFloat64
		if s.Target != nil {
			tx = sql.NullFloat64{Float64: s.Target.X, Valid: true}
			ty = sql.NullFloat64{Float64: s.Target.Y, Valid: true}
		}
		if _, err := stmt.Exec(
			s.SessionID, s.FrameIndex, s.CapturedAt, s.FaceDetected,
			s.Face.X, s.Face.Y, s.Face.Width, s.Face.Height,
			s.Confidence, s.Distance, s.GazeX, s.GazeY, s.EyesFocused,
			s.Pitch, s.Yaw, s.Roll, s.HeadMoving, s.ShouldersMoving, s.Backend, string(data),
			tx, ty,
		); err != nil {
			return fmt.Errorf("insert sample %d: %w", s.FrameIndex, err)
		}
	}

	return tx.Commit()
}

// GetBySessionID retrieves a session's samples in frame order.
func (r *SampleRepository) GetBySessionID(sessionID string) ([]Sample, error) {
	rows, err := r.db.Query(
		`SELECT id, session_id, frame_index, captured_at, face_detected,
			face_x, face_y, face_width, face_height,
			confidence, distance, gaze_x, gaze_y, eyes_focused,
			pitch, yaw, roll, head_moving, shoulders_moving, backend, landmarks,
			target_x, target_y
		 FROM tracking_samples
		 WHERE session_id = ?
		 ORDER BY frame_index`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var s Sample
		var data string
		var tx, ty sql.NullFloat64
		if err := rows.Scan(
			&s.ID, &s.SessionID, &s.FrameIndex, &s.CapturedAt, &s.FaceDetected,
			&s.Face.X, &s.Face.Y, &s.Face.Width, &s.Face.Height,
			&s.Confidence, &s.Distance, &s.GazeX, &s.GazeY, &s.EyesFocused,
			&s.Pitch, &s.Yaw, &s.Roll, &s.HeadMoving, &s.ShouldersMoving, &s.Backend, &data,
			&tx, &ty,
		); err != nil {
			return nil, err
		}
		if tx.Valid && ty.Valid {
			s.Target = &geom.Point2D{X: tx.Float64, Y: ty.Float64}
		}
		if err := json.Unmarshal([]byte(data), &s.Landmarks); err != nil {
			return nil, fmt.Errorf("decode landmarks of sample %d: %w", s.ID, err)
		}
		samples = append(samples, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return samples, nil
}

// Count returns how many samples a session holds.
func (r *SampleRepository) Count(sessionID string) (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM tracking_samples WHERE session_id = ?`, sessionID).Scan(&n)
	return n, err
}

// DeleteBySessionID removes all samples for a session.
func (r *SampleRepository) DeleteBySessionID(sessionID string) error {
	_, err := r.db.Exec(`DELETE FROM tracking_samples WHERE session_id = ?`, sessionID)
	return err
}
